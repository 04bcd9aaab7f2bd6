package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/storefront-realtime/internal/history"
	"github.com/rickgao/storefront-realtime/internal/protocol"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrBadScheme     = errors.New("unsupported url scheme")
)

// State is the connection state machine's current position.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return "unknown"
}

// EventKind distinguishes status changes from inbound messages.
type EventKind int

const (
	EventStatus EventKind = iota
	EventMessage
)

func (k EventKind) String() string {
	if k == EventStatus {
		return "status"
	}
	return "message"
}

// Event is delivered to every subscriber.
type Event struct {
	Kind  EventKind
	State State          // set for EventStatus
	Frame protocol.Frame // set for EventMessage
}

// Handler receives events on the manager's loop goroutine. It must not block.
type Handler func(Event)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket transport.
type ClientConfig struct {
	URL              string // ws:// or wss:// endpoint
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size

	// OnDrop is called from the read loop for each frame discarded because
	// the message buffer was full. It must not block.
	OnDrop func()
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// Config configures the Manager.
type Config struct {
	URL string // WebSocket URL (see ResolveURL)

	ReconnectBaseWait time.Duration // First backoff delay
	ReconnectMaxWait  time.Duration // Backoff cap

	// MaxReconnectAttempts counts scheduled reconnects, not dials. The
	// initial dial is not one of them, so a dead endpoint sees
	// MaxReconnectAttempts+1 failed dials before the manager gives up.
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration

	MaxInboundBytes  int // Larger inbound frames are dropped
	MaxOutboundBytes int // Larger outbound envelopes are rejected

	RateLimit  int           // Accepted inbound frames per window
	RateWindow time.Duration // Sliding window length

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	BufferSize       int // Transport inbound buffer

	History history.Limits
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectBaseWait:    1 * time.Second,
		ReconnectMaxWait:     30 * time.Second,
		MaxReconnectAttempts: 10,
		HeartbeatInterval:    30 * time.Second,
		MaxInboundBytes:      1 << 20,
		MaxOutboundBytes:     64 << 10,
		RateLimit:            100,
		RateWindow:           60 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           256,
		History:              history.DefaultLimits(),
	}
}

func (c Config) clientConfig() ClientConfig {
	return ClientConfig{
		URL:              c.URL,
		HandshakeTimeout: c.HandshakeTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}
}

// DropStats counts inbound frames discarded before fan-out, by reason.
type DropStats struct {
	BufferFull  int64 // discarded by the transport before reaching the manager
	Oversized   int64
	Malformed   int64
	Untyped     int64
	RateLimited int64
}

// Stats provides statistics about the connection manager.
type Stats struct {
	State       State
	Attempts    int   // Consecutive reconnect attempts since the last open
	Dials       int64 // Transports created
	Subscribers int

	FramesReceived  int64
	FramesDelivered int64
	Dropped         DropStats

	Sent     int64 // Envelopes written
	Rejected int64 // Send calls that returned false

	History history.StoreStats
}
