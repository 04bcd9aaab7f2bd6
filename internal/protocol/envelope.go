package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEnvelopeTooLarge is returned by Encode when the serialized envelope
// exceeds the caller's size cap.
var ErrEnvelopeTooLarge = errors.New("envelope exceeds size limit")

// Outbound kinds sent by the client itself.
const (
	KindAuth      Kind = "auth"
	KindJoin      Kind = "join"
	KindPresence  Kind = "presence"
	KindHeartbeat Kind = "heartbeat"
)

// DefaultChannel is joined on every successful open.
const DefaultChannel = "general"

// Meta carries the per-send context stamped on every envelope.
type Meta struct {
	UserID string
	CSRF   string
	Now    time.Time
}

// Envelope is a flat outbound frame: the caller's fields plus type,
// timestamp and optional identity.
type Envelope map[string]any

// NewEnvelope builds an envelope for kind. Fields in data are copied as-is;
// type, timestamp, userId and csrfToken always come from the arguments.
func NewEnvelope(kind Kind, data map[string]any, meta Meta) Envelope {
	env := make(Envelope, len(data)+4)
	for k, v := range data {
		env[k] = v
	}

	now := meta.Now
	if now.IsZero() {
		now = time.Now()
	}
	env["type"] = string(kind)
	env["timestamp"] = now.UnixMilli()
	if meta.UserID != "" {
		env["userId"] = meta.UserID
	}
	if meta.CSRF != "" {
		env["csrfToken"] = meta.CSRF
	}
	return env
}

// Encode serializes the envelope, rejecting it when it would exceed maxBytes.
// A maxBytes of zero disables the check.
func (e Envelope) Encode(maxBytes int) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrEnvelopeTooLarge, len(data), maxBytes)
	}
	return data, nil
}

// AuthData is the payload of the authenticate frame.
func AuthData(token string) map[string]any {
	return map[string]any{"token": token}
}

// JoinData is the payload of the channel join frame.
func JoinData(channel string) map[string]any {
	return map[string]any{"channel": channel}
}

// PresenceData is the payload of the presence announcement.
func PresenceData(status string) map[string]any {
	return map[string]any{"status": status}
}
