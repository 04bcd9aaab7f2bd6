package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultPageURL              = "http://localhost:8080"
	DefaultWSPath               = "/ws"
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultMaxInboundBytes      = 1 << 20
	DefaultMaxOutboundBytes     = 64 << 10
	DefaultBufferSize           = 256
	DefaultRateLimitBackend     = "memory"
	DefaultRateLimit            = 100
	DefaultRateWindow           = 60 * time.Second
	DefaultChatHistory          = 100
	DefaultAIHistory            = 50
	DefaultNotificationHistory  = 50
	DefaultOrderHistory         = 50
	DefaultTelemetrySink        = "http"
	DefaultTelemetryPath        = "/api/activity"
	DefaultTelemetryService     = "storefront"
	DefaultBatchSize            = 10
	DefaultFlushInterval        = 5 * time.Second
	DefaultDeliveryTimeout      = 10 * time.Second
	DefaultMaxQueue             = 1000
	DefaultRedisKeyPrefix       = "ratelimit:"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultDevServerAddr        = ":8080"
)

func (c *Config) applyDefaults() {
	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Connection defaults
	conn := &c.Connection
	if conn.URL == "" && conn.PageURL == "" {
		conn.PageURL = DefaultPageURL
	}
	if conn.Path == "" {
		conn.Path = DefaultWSPath
	}
	setDuration(&conn.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	setDuration(&conn.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	if conn.MaxReconnectAttempts == 0 {
		conn.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	setDuration(&conn.HeartbeatInterval, DefaultHeartbeatInterval)
	setDuration(&conn.HandshakeTimeout, DefaultHandshakeTimeout)
	setDuration(&conn.WriteTimeout, DefaultWriteTimeout)
	if conn.MaxInboundBytes == 0 {
		conn.MaxInboundBytes = DefaultMaxInboundBytes
	}
	if conn.MaxOutboundBytes == 0 {
		conn.MaxOutboundBytes = DefaultMaxOutboundBytes
	}
	if conn.BufferSize == 0 {
		conn.BufferSize = DefaultBufferSize
	}

	// Rate limit defaults
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = DefaultRateLimitBackend
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = DefaultRateLimit
	}
	setDuration(&c.RateLimit.Window, DefaultRateWindow)

	// History defaults
	if c.History.Chat == 0 {
		c.History.Chat = DefaultChatHistory
	}
	if c.History.AI == 0 {
		c.History.AI = DefaultAIHistory
	}
	if c.History.Notifications == 0 {
		c.History.Notifications = DefaultNotificationHistory
	}
	if c.History.Orders == 0 {
		c.History.Orders = DefaultOrderHistory
	}

	// Telemetry defaults
	tel := &c.Telemetry
	if tel.Sink == "" {
		tel.Sink = DefaultTelemetrySink
	}
	if tel.Endpoint == "" && tel.Sink == "http" && conn.PageURL != "" {
		tel.Endpoint = conn.PageURL + DefaultTelemetryPath
	}
	if tel.Service == "" {
		tel.Service = DefaultTelemetryService
	}
	if tel.BatchSize == 0 {
		tel.BatchSize = DefaultBatchSize
	}
	setDuration(&tel.FlushInterval, DefaultFlushInterval)
	setDuration(&tel.DeliveryTimeout, DefaultDeliveryTimeout)
	if tel.MaxQueue == 0 {
		tel.MaxQueue = DefaultMaxQueue
	}

	// Redis defaults
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Database defaults
	applyDBDefaults(&c.Database)

	// Dev server defaults
	if c.DevServer.Addr == "" {
		c.DevServer.Addr = DefaultDevServerAddr
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

func setDuration(d *Duration, def time.Duration) {
	if d.Duration == 0 {
		d.Duration = def
	}
}
