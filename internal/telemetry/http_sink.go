package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/storefront-realtime/internal/auth"
)

// HTTPSink POSTs each record to a collection endpoint.
type HTTPSink struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPOption configures an HTTPSink.
type HTTPOption func(*HTTPSink)

// NewHTTPSink creates a sink posting to endpoint.
func NewHTTPSink(endpoint string, opts ...HTTPOption) *HTTPSink {
	s := &HTTPSink{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSink) {
		s.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPSink) {
		s.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(s *HTTPSink) {
		s.httpClient = hc
	}
}

// activityBody is the wire shape accepted by the activity endpoint. Session
// context travels inside data.
type activityBody struct {
	Service string         `json:"service"`
	Action  string         `json:"action"`
	UserID  string         `json:"userId"`
	Data    map[string]any `json:"data"`
}

func bodyFor(rec Record) activityBody {
	data := make(map[string]any, len(rec.Data)+4)
	for k, v := range rec.Data {
		data[k] = v
	}
	setDefault(data, "timestamp", rec.Timestamp)
	setDefault(data, "sessionId", rec.SessionID)
	if rec.URL != "" {
		setDefault(data, "url", rec.URL)
	}
	if rec.UserAgent != "" {
		setDefault(data, "userAgent", rec.UserAgent)
	}
	return activityBody{
		Service: rec.Service,
		Action:  rec.Action,
		UserID:  rec.UserID,
		Data:    data,
	}
}

// setDefault sets key unless the caller already supplied it.
func setDefault(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// Deliver implements Sink.
func (s *HTTPSink) Deliver(ctx context.Context, rec Record, creds auth.Credentials) error {
	payload, err := json.Marshal(bodyFor(rec))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.CSRF != "" {
		req.Header.Set("X-CSRF-Token", creds.CSRF)
	}
	if rec.UserAgent != "" {
		req.Header.Set("User-Agent", rec.UserAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	s.logger.Debug("activity posted", "action", rec.Action, "status", resp.StatusCode)
	return nil
}
