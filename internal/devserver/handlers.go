package devserver

import (
	"context"
	"errors"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rickgao/storefront-realtime/internal/protocol"
)

// readLoop handles frames from one peer until it disconnects.
func (s *Server) readLoop(ctx context.Context, p *peer) {
	for {
		var frame map[string]any
		if err := wsjson.Read(ctx, p.conn, &frame); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				s.logger.Debug("peer read failed", "peer", p.id, "error", err)
			}
			return
		}
		s.handleFrame(ctx, p, frame)
	}
}

func (s *Server) handleFrame(ctx context.Context, p *peer, frame map[string]any) {
	kind, _ := frame["type"].(string)

	switch protocol.Kind(kind) {
	case protocol.KindHeartbeat, protocol.KindPing:
		s.reply(ctx, p, map[string]any{"type": string(protocol.KindPong)})

	case protocol.KindAuth:
		token, _ := frame["token"].(string)
		userID, err := s.verify(token)
		if err != nil {
			s.reply(ctx, p, map[string]any{
				"type":    string(protocol.KindError),
				"message": "authentication failed",
				"code":    "auth_failed",
			})
			return
		}
		p.mu.Lock()
		p.userID = userID
		p.mu.Unlock()

	case protocol.KindJoin:
		// Single shared room; nothing to track.

	case protocol.KindPresence:
		status, _ := frame["status"].(string)
		s.Broadcast(ctx, map[string]any{
			"type":   string(protocol.KindPresenceUpdate),
			"userId": p.user(),
			"status": status,
		})

	case protocol.KindChat:
		room, _ := frame["room"].(string)
		if room == "" {
			room = protocol.DefaultChannel
		}
		s.Broadcast(ctx, map[string]any{
			"type":    string(protocol.KindChat),
			"userId":  p.user(),
			"message": frame["message"],
			"room":    room,
		})

	case protocol.KindTyping:
		frame["userId"] = p.user()
		s.Broadcast(ctx, frame)

	default:
		s.logger.Debug("ignoring frame", "peer", p.id, "type", kind)
	}
}

func (s *Server) reply(ctx context.Context, p *peer, v any) {
	if err := s.write(ctx, p, v); err != nil {
		s.logger.Debug("reply failed", "peer", p.id, "error", err)
	}
}
