package config

import "time"

// Config is the top-level configuration for the realtime client binaries.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"    toml:"logging"    envPrefix:"LOG_"`
	Connection ConnectionConfig `yaml:"connection" toml:"connection" envPrefix:"WS_"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" toml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	History    HistoryConfig    `yaml:"history"    toml:"history"    envPrefix:"HISTORY_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"  toml:"telemetry"  envPrefix:"TELEMETRY_"`
	Auth       AuthConfig       `yaml:"auth"       toml:"auth"       envPrefix:"AUTH_"`
	Redis      RedisConfig      `yaml:"redis"      toml:"redis"      envPrefix:"REDIS_"`
	Database   DBConfig         `yaml:"database"   toml:"database"   envPrefix:"DB_"`
	DevServer  DevServerConfig  `yaml:"devserver"  toml:"devserver"  envPrefix:"DEVSERVER_"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"  toml:"level"  env:"LEVEL"`  // debug, info, warn, error
	Format string `yaml:"format" toml:"format" env:"FORMAT"` // text, json
}

// ConnectionConfig configures the Connection Manager.
type ConnectionConfig struct {
	URL     string `yaml:"url"      toml:"url"      env:"URL"`      // explicit ws:// or wss:// endpoint
	PageURL string `yaml:"page_url" toml:"page_url" env:"PAGE_URL"` // http(s) base the endpoint is derived from
	Path    string `yaml:"path"     toml:"path"     env:"PATH"`

	ReconnectBaseDelay   Duration `yaml:"reconnect_base_delay"   toml:"reconnect_base_delay"   env:"RECONNECT_BASE_DELAY"`
	ReconnectMaxDelay    Duration `yaml:"reconnect_max_delay"    toml:"reconnect_max_delay"    env:"RECONNECT_MAX_DELAY"`
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts" toml:"max_reconnect_attempts" env:"MAX_RECONNECT_ATTEMPTS"`
	HeartbeatInterval    Duration `yaml:"heartbeat_interval"     toml:"heartbeat_interval"     env:"HEARTBEAT_INTERVAL"`
	HandshakeTimeout     Duration `yaml:"handshake_timeout"      toml:"handshake_timeout"      env:"HANDSHAKE_TIMEOUT"`
	WriteTimeout         Duration `yaml:"write_timeout"          toml:"write_timeout"          env:"WRITE_TIMEOUT"`

	MaxInboundBytes  int `yaml:"max_inbound_bytes"  toml:"max_inbound_bytes"  env:"MAX_INBOUND_BYTES"`
	MaxOutboundBytes int `yaml:"max_outbound_bytes" toml:"max_outbound_bytes" env:"MAX_OUTBOUND_BYTES"`
	BufferSize       int `yaml:"buffer_size"        toml:"buffer_size"        env:"BUFFER_SIZE"`
}

// RateLimitConfig configures the inbound sliding-window limiter.
type RateLimitConfig struct {
	Backend string   `yaml:"backend" toml:"backend" env:"BACKEND"` // memory, redis
	Limit   int      `yaml:"limit"   toml:"limit"   env:"LIMIT"`
	Window  Duration `yaml:"window"  toml:"window"  env:"WINDOW"`
}

// HistoryConfig caps the in-memory message streams.
type HistoryConfig struct {
	Chat          int `yaml:"chat"          toml:"chat"          env:"CHAT"`
	AI            int `yaml:"ai"            toml:"ai"            env:"AI"`
	Notifications int `yaml:"notifications" toml:"notifications" env:"NOTIFICATIONS"`
	Orders        int `yaml:"orders"        toml:"orders"        env:"ORDERS"`
}

// TelemetryConfig configures the Telemetry Batcher.
type TelemetryConfig struct {
	Sink            string   `yaml:"sink"             toml:"sink"             env:"SINK"` // http, postgres, none
	Endpoint        string   `yaml:"endpoint"         toml:"endpoint"         env:"ENDPOINT"`
	Service         string   `yaml:"service"          toml:"service"          env:"SERVICE"`
	BatchSize       int      `yaml:"batch_size"       toml:"batch_size"       env:"BATCH_SIZE"`
	FlushInterval   Duration `yaml:"flush_interval"   toml:"flush_interval"   env:"FLUSH_INTERVAL"`
	DeliveryTimeout Duration `yaml:"delivery_timeout" toml:"delivery_timeout" env:"DELIVERY_TIMEOUT"`
	MaxConcurrency  int      `yaml:"max_concurrency"  toml:"max_concurrency"  env:"MAX_CONCURRENCY"`
	MaxQueue        int      `yaml:"max_queue"        toml:"max_queue"        env:"MAX_QUEUE"`
}

// AuthConfig supplies the credentials attached to outbound traffic.
type AuthConfig struct {
	Token     string `yaml:"token"      toml:"token"      env:"TOKEN"`
	TokenFile string `yaml:"token_file" toml:"token_file" env:"TOKEN_FILE"`
	CSRF      string `yaml:"csrf"       toml:"csrf"       env:"CSRF"`
	UserID    string `yaml:"user_id"    toml:"user_id"    env:"USER_ID"`
}

// RedisConfig configures the shared rate-limit store.
type RedisConfig struct {
	Addr      string `yaml:"addr"       toml:"addr"       env:"ADDR"`
	Password  string `yaml:"password"   toml:"password"   env:"PASSWORD"`
	DB        int    `yaml:"db"         toml:"db"         env:"DB"`
	KeyPrefix string `yaml:"key_prefix" toml:"key_prefix" env:"KEY_PREFIX"`
}

// DBConfig configures a PostgreSQL connection pool.
type DBConfig struct {
	Host     string `yaml:"host"      toml:"host"      env:"HOST"`
	Port     int    `yaml:"port"      toml:"port"      env:"PORT"`
	Name     string `yaml:"name"      toml:"name"      env:"NAME"`
	User     string `yaml:"user"      toml:"user"      env:"USER"`
	Password string `yaml:"password"  toml:"password"  env:"PASSWORD"`
	SSLMode  string `yaml:"ssl_mode"  toml:"ssl_mode"  env:"SSL_MODE"`
	MaxConns int    `yaml:"max_conns" toml:"max_conns" env:"MAX_CONNS"`
	MinConns int    `yaml:"min_conns" toml:"min_conns" env:"MIN_CONNS"`
}

// DevServerConfig configures the local backend stand-in.
type DevServerConfig struct {
	Addr        string `yaml:"addr"         toml:"addr"         env:"ADDR"`
	RequireAuth bool   `yaml:"require_auth" toml:"require_auth" env:"REQUIRE_AUTH"`
	JWTSecret   string `yaml:"jwt_secret"   toml:"jwt_secret"   env:"JWT_SECRET"`
}

// Duration is a time.Duration written as a Go duration string ("30s") in
// YAML, TOML and environment variables.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
