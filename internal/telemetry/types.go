package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rickgao/storefront-realtime/internal/auth"
)

// ErrShutdown is reported in logs for records offered after Shutdown.
var ErrShutdown = errors.New("batcher shut down")

// Record is one activity event. It is not modified after Log returns.
type Record struct {
	Service   string         `json:"service"`
	Action    string         `json:"action"`
	UserID    string         `json:"userId"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"` // epoch ms, strictly increasing per Batcher
	URL       string         `json:"url"`
	UserAgent string         `json:"userAgent"`
	SessionID string         `json:"sessionId"`
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Sink delivers one record.
type Sink interface {
	Deliver(ctx context.Context, rec Record, creds auth.Credentials) error
}

// BatchSink is implemented by sinks that can write a whole batch in one
// round trip. The Batcher prefers it when available.
type BatchSink interface {
	Sink
	DeliverBatch(ctx context.Context, recs []Record, creds auth.Credentials) error
}

// DeliveryError is a non-2xx response from the collection endpoint.
type DeliveryError struct {
	StatusCode int
	Message    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("telemetry delivery failed %d: %s", e.StatusCode, e.Message)
}

// IsAuthFailure reports whether the endpoint rejected our credentials.
// These are dropped silently; re-authentication happens elsewhere.
func (e *DeliveryError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Config configures the Batcher.
type Config struct {
	Service         string        // service field on every record
	BatchSize       int           // queue length that triggers a flush
	FlushInterval   time.Duration // periodic flush
	DeliveryTimeout time.Duration // per delivery call
	MaxConcurrency  int           // parallel deliveries per batch, 0 = unlimited
	MaxQueue        int           // queued records kept while delivery lags; oldest dropped beyond it
	SessionID       string        // fixed session id; generated when empty
	UserAgent       string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Service:         "storefront",
		BatchSize:       10,
		FlushInterval:   5 * time.Second,
		DeliveryTimeout: 10 * time.Second,
		MaxQueue:        1000,
	}
}

// Stats provides statistics about the batcher.
type Stats struct {
	Logged      int64 // records accepted by Log
	Queued      int   // records currently waiting
	Flushes     int64 // batches taken from the queue
	Delivered   int64
	Failed      int64
	AuthDropped int64 // records rejected with 401/403
	Dropped     int64 // oldest records evicted by MaxQueue
	Rejected    int64 // records offered after Shutdown
}
