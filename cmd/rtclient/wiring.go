package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/storefront-realtime/internal/auth"
	"github.com/rickgao/storefront-realtime/internal/config"
	"github.com/rickgao/storefront-realtime/internal/connection"
	"github.com/rickgao/storefront-realtime/internal/database"
	"github.com/rickgao/storefront-realtime/internal/history"
	"github.com/rickgao/storefront-realtime/internal/ratelimit"
	"github.com/rickgao/storefront-realtime/internal/telemetry"
	"github.com/rickgao/storefront-realtime/internal/version"
)

// newLogger builds the process logger from the logging section.
func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// managerConfig maps the connection section onto a Manager config.
func managerConfig(cfg *config.Config) (connection.Config, error) {
	conn := cfg.Connection

	url := conn.URL
	if url == "" {
		resolved, err := connection.ResolveURL(conn.PageURL, conn.Path)
		if err != nil {
			return connection.Config{}, fmt.Errorf("resolve websocket url: %w", err)
		}
		url = resolved
	}

	return connection.Config{
		URL:                  url,
		ReconnectBaseWait:    conn.ReconnectBaseDelay.Duration,
		ReconnectMaxWait:     conn.ReconnectMaxDelay.Duration,
		MaxReconnectAttempts: conn.MaxReconnectAttempts,
		HeartbeatInterval:    conn.HeartbeatInterval.Duration,
		MaxInboundBytes:      conn.MaxInboundBytes,
		MaxOutboundBytes:     conn.MaxOutboundBytes,
		RateLimit:            cfg.RateLimit.Limit,
		RateWindow:           cfg.RateLimit.Window.Duration,
		HandshakeTimeout:     conn.HandshakeTimeout.Duration,
		WriteTimeout:         conn.WriteTimeout.Duration,
		BufferSize:           conn.BufferSize,
		History: history.Limits{
			Chat:          cfg.History.Chat,
			AI:            cfg.History.AI,
			Notifications: cfg.History.Notifications,
			Orders:        cfg.History.Orders,
		},
	}, nil
}

// newCredentials picks a token file watcher when one is configured.
func newCredentials(cfg config.AuthConfig) (auth.Provider, error) {
	if cfg.TokenFile != "" {
		p, err := auth.NewFileProvider(cfg.TokenFile, cfg.CSRF)
		if err != nil {
			return nil, fmt.Errorf("load token file: %w", err)
		}
		return p, nil
	}
	return auth.NewMutable(auth.Credentials{
		Token:  cfg.Token,
		CSRF:   cfg.CSRF,
		UserID: cfg.UserID,
	}), nil
}

// newLimiter returns the inbound limiter and a cleanup func.
func newLimiter(cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, func(), error) {
	rl := cfg.RateLimit
	if rl.Backend != "redis" {
		return ratelimit.NewWindow(rl.Limit, rl.Window.Duration), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	limiter := ratelimit.NewRedis(client, rl.Limit, rl.Window.Duration, cfg.Redis.KeyPrefix, logger)
	return limiter, func() { client.Close() }, nil
}

// newSink builds the telemetry sink. A nil sink disables telemetry.
func newSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (telemetry.Sink, func(), error) {
	tel := cfg.Telemetry
	switch tel.Sink {
	case "http":
		return telemetry.NewHTTPSink(tel.Endpoint,
			telemetry.WithLogger(logger),
			telemetry.WithTimeout(tel.DeliveryTimeout.Duration),
		), func() {}, nil

	case "postgres":
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		sink := telemetry.NewPostgresSink(pool)
		if err := sink.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return sink, pool.Close, nil

	default:
		return nil, func() {}, nil
	}
}

// batcherConfig maps the telemetry section onto a Batcher config.
func batcherConfig(cfg config.TelemetryConfig) telemetry.Config {
	return telemetry.Config{
		Service:         cfg.Service,
		BatchSize:       cfg.BatchSize,
		FlushInterval:   cfg.FlushInterval.Duration,
		DeliveryTimeout: cfg.DeliveryTimeout.Duration,
		MaxConcurrency:  cfg.MaxConcurrency,
		MaxQueue:        cfg.MaxQueue,
		UserAgent:       version.UserAgent(),
	}
}

var _ telemetry.DB = (*pgxpool.Pool)(nil)
