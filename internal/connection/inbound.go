package connection

import (
	"errors"

	"github.com/rickgao/storefront-realtime/internal/auth"
	"github.com/rickgao/storefront-realtime/internal/protocol"
)

// handleFrame validates one inbound frame and, if it survives, applies the
// built-in side effects and fans it out.
func (m *Manager) handleFrame(msg TimestampedMessage) {
	m.counters.received.Add(1)

	if m.cfg.MaxInboundBytes > 0 && len(msg.Data) > m.cfg.MaxInboundBytes {
		m.counters.oversized.Add(1)
		m.logger.Warn("dropping oversized frame", "bytes", len(msg.Data), "limit", m.cfg.MaxInboundBytes)
		return
	}

	decoded, err := protocol.Decode(msg.Data)
	if err != nil {
		if errors.Is(err, protocol.ErrMissingType) {
			m.counters.untyped.Add(1)
		} else {
			m.counters.malformed.Add(1)
		}
		m.logger.Warn("dropping invalid frame", "error", err)
		return
	}

	key := m.rateKey()
	if !m.limiter.Allow(m.ctx, key) {
		m.counters.limited.Add(1)
		m.logger.Warn("rate limit exceeded, dropping frame", "key", key, "type", decoded.Kind())
		return
	}

	m.apply(decoded)

	m.counters.delivered.Add(1)
	m.dispatch(Event{
		Kind: EventMessage,
		Frame: protocol.Frame{
			Message:    decoded,
			Raw:        msg.Data,
			ReceivedAt: msg.ReceivedAt,
		},
	})
}

// rateKey is the current user, or a shared key for anonymous sessions.
func (m *Manager) rateKey() string {
	if id := m.creds.Credentials().Identity(); id != "" {
		return id
	}
	return auth.Anonymous
}

// apply runs the built-in handling for msg.
func (m *Manager) apply(msg protocol.Message) {
	m.store.Apply(msg)

	switch v := msg.(type) {
	case *protocol.Ping:
		if t := m.current(); t != nil {
			if err := m.write(t, protocol.KindHeartbeat, nil); err != nil {
				m.logger.Debug("ping reply failed", "error", err)
			}
		}
	case *protocol.Connection:
		m.logger.Info("server greeting", "client_id", v.ClientID)
	case *protocol.Notification:
		level := v.Level
		if level == "" {
			level = "info"
		}
		m.notifier.Notify(Toast{Level: level, Title: v.Title, Message: v.Message})
	case *protocol.Error:
		m.notifier.Notify(Toast{Level: "error", Title: "Server error", Message: v.Message})
	case *protocol.OrderUpdate:
		text := v.Message
		if text == "" {
			text = "Status: " + v.Status
		}
		m.notifier.Notify(Toast{Level: "info", Title: "Order " + v.OrderID, Message: text})
	case *protocol.Unknown:
		m.logger.Debug("unknown message type", "type", v.Type)
	}
}
