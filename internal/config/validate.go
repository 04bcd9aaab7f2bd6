package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if err := c.Connection.validate(); err != nil {
		return err
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when rate_limit.backend is redis")
		}
	default:
		return fmt.Errorf("rate_limit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Limit < 1 {
		return errors.New("rate_limit.limit must be >= 1")
	}
	if c.RateLimit.Window.Duration <= 0 {
		return errors.New("rate_limit.window must be > 0")
	}

	if c.History.Chat < 1 || c.History.AI < 1 || c.History.Notifications < 1 || c.History.Orders < 1 {
		return errors.New("history limits must be >= 1")
	}

	return c.validateTelemetry()
}

func (c *ConnectionConfig) validate() error {
	if c.URL == "" && c.PageURL == "" {
		return errors.New("connection.url or connection.page_url is required")
	}
	if c.ReconnectBaseDelay.Duration <= 0 {
		return errors.New("connection.reconnect_base_delay must be > 0")
	}
	if c.ReconnectMaxDelay.Duration < c.ReconnectBaseDelay.Duration {
		return fmt.Errorf("connection.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			c.ReconnectMaxDelay.Duration, c.ReconnectBaseDelay.Duration)
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.New("connection.max_reconnect_attempts must be >= 0")
	}
	if c.HeartbeatInterval.Duration <= 0 {
		return errors.New("connection.heartbeat_interval must be > 0")
	}
	if c.MaxInboundBytes < 1 {
		return errors.New("connection.max_inbound_bytes must be >= 1")
	}
	if c.MaxOutboundBytes < 1 {
		return errors.New("connection.max_outbound_bytes must be >= 1")
	}
	if c.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	t := &c.Telemetry
	switch t.Sink {
	case "none":
		return nil
	case "http":
		if t.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry.sink is http")
		}
	case "postgres":
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("telemetry.sink must be http, postgres or none, got %q", t.Sink)
	}

	if t.BatchSize < 1 {
		return errors.New("telemetry.batch_size must be >= 1")
	}
	if t.FlushInterval.Duration <= 0 {
		return errors.New("telemetry.flush_interval must be > 0")
	}
	if t.MaxConcurrency < 0 {
		return errors.New("telemetry.max_concurrency must be >= 0")
	}
	if t.MaxQueue < t.BatchSize {
		return fmt.Errorf("telemetry.max_queue (%d) cannot be less than batch_size (%d)", t.MaxQueue, t.BatchSize)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
