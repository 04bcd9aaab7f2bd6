// Command devserver runs a local stand-in for the storefront realtime
// backend so the client can be exercised without the real services.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"

	"github.com/rickgao/storefront-realtime/internal/config"
	"github.com/rickgao/storefront-realtime/internal/devserver"
	"github.com/rickgao/storefront-realtime/internal/version"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file (yaml or toml)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	addr := flag.String("addr", "", "listen address, overrides devserver.addr")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	if err := config.LoadEnvFile(*envFile); err != nil {
		logger.Error("failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.DevServer.Addr = *addr
	}

	logger.Info("starting devserver",
		"version", version.Version,
		"addr", cfg.DevServer.Addr,
		"require_auth", cfg.DevServer.RequireAuth,
	)

	gin.SetMode(gin.ReleaseMode)

	srvCfg := devserver.DefaultConfig()
	srvCfg.RequireAuth = cfg.DevServer.RequireAuth
	srvCfg.JWTSecret = cfg.DevServer.JWTSecret
	if cfg.Connection.MaxOutboundBytes > 0 {
		srvCfg.ReadLimit = int64(cfg.Connection.MaxOutboundBytes) * 2
	}

	srv := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           devserver.New(srvCfg, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	logger.Info("devserver stopped")
}
