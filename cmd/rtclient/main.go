// Command rtclient runs the storefront realtime client from a terminal.
//
// It connects to the realtime endpoint, prints every event it receives and
// sends each line typed on stdin as a chat message.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/rickgao/storefront-realtime/internal/config"
	"github.com/rickgao/storefront-realtime/internal/connection"
	"github.com/rickgao/storefront-realtime/internal/telemetry"
	"github.com/rickgao/storefront-realtime/internal/version"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file (yaml or toml)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	logLevel := flag.String("log-level", "", "override logging.level")
	healthAddr := flag.String("health-addr", ":8081", "health server address, empty to disable")
	flag.Parse()

	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := config.LoadEnvFile(*envFile); err != nil {
		bootLogger.Error("failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := newLogger(os.Stderr, cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting rtclient",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger, *healthAddr); err != nil {
		logger.Error("rtclient failed", "error", err)
		os.Exit(1)
	}

	logger.Info("rtclient stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, healthAddr string) error {
	connCfg, err := managerConfig(cfg)
	if err != nil {
		return err
	}

	creds, err := newCredentials(cfg.Auth)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newLimiter(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	sink, closeSink, err := newSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	var batcher *telemetry.Batcher
	if sink != nil {
		batcher = telemetry.NewBatcher(batcherConfig(cfg.Telemetry), sink, creds, logger)
		batcher.SetURL(cfg.Connection.PageURL)
		if err := batcher.Start(ctx); err != nil {
			return fmt.Errorf("start telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := batcher.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown incomplete", "error", err)
			}
		}()
	}

	manager := connection.NewManager(connCfg,
		connection.WithLogger(logger),
		connection.WithCredentials(creds),
		connection.WithLimiter(limiter),
	)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		manager.Close(shutdownCtx)
	}()

	var healthServer *http.Server
	if healthAddr != "" {
		healthServer = &http.Server{
			Addr:              healthAddr,
			Handler:           createHealthHandler(manager, batcher),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting health server", "addr", healthAddr)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	events, stopListening := manager.Listen(64)
	defer stopListening()

	manager.Connect()
	logger.Info("rtclient running", "url", connCfg.URL)

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			if healthServer != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				healthServer.Shutdown(shutdownCtx)
				shutdownCancel()
			}
			return nil

		case e := <-events:
			printEvent(e)
			if batcher != nil && e.Kind == connection.EventStatus {
				batcher.Log("connection_state", map[string]any{"state": e.State.String()})
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if !manager.Send("chat", map[string]any{"message": line}) {
				logger.Warn("message not sent", "state", manager.State())
				continue
			}
			if batcher != nil {
				batcher.Log("chat_sent", map[string]any{"length": len(line)})
			}
		}
	}
}

func readLines(f *os.File, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			out <- line
		}
	}
}

func printEvent(e connection.Event) {
	switch e.Kind {
	case connection.EventStatus:
		fmt.Printf("[status] %s\n", e.State)
	case connection.EventMessage:
		fmt.Printf("[%s] %s\n", e.Frame.Kind(), e.Frame.Raw)
	}
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(manager *connection.Manager, batcher *telemetry.Batcher) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := manager.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["connection"] = map[string]any{
			"state":       stats.State.String(),
			"attempts":    stats.Attempts,
			"subscribers": stats.Subscribers,
			"received":    stats.FramesReceived,
			"sent":        stats.Sent,
			"dropped":     stats.Dropped,
		}
		health.Components["history"] = stats.History
		switch stats.State {
		case connection.StateConnected:
		case connection.StateConnecting:
			health.Status = "degraded"
		default:
			health.Status = "unhealthy"
		}

		if batcher != nil {
			health.Components["telemetry"] = batcher.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
