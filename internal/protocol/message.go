package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrMalformed   = errors.New("malformed frame")
	ErrMissingType = errors.New("frame missing type")
)

// Kind is the "type" tag of a frame.
type Kind string

// Inbound kinds.
const (
	KindConnection      Kind = "connection"
	KindAIResponse      Kind = "ai-response"
	KindChat            Kind = "chat"
	KindTyping          Kind = "typing"
	KindPresenceUpdate  Kind = "presence-update"
	KindOrderUpdate     Kind = "order-update"
	KindPriceUpdate     Kind = "price-update"
	KindInventoryUpdate Kind = "inventory-update"
	KindNotification    Kind = "notification"
	KindPing            Kind = "ping"
	KindPong            Kind = "pong"
	KindError           Kind = "error"
)

// Message is one decoded inbound frame. The concrete type is always one of
// the pointer types in this file; switch on it to handle each variant.
type Message interface {
	Kind() Kind
}

// Connection is the server greeting sent right after the socket opens.
type Connection struct {
	ClientID string `json:"clientId"`
	Message  string `json:"message"`
}

// AIResponse is a reply from the shopping assistant.
type AIResponse struct {
	Message        string          `json:"message"`
	ConversationID string          `json:"conversationId,omitempty"`
	Products       json.RawMessage `json:"products,omitempty"`
}

// Chat is a room chat line.
type Chat struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	Room    string `json:"room"`
}

// Typing reports that a user started or stopped typing in a room.
type Typing struct {
	UserID   string `json:"userId"`
	Room     string `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

// PresenceUpdate reports a user's online status.
type PresenceUpdate struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// OrderUpdate reports an order status change.
type OrderUpdate struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PriceUpdate reports a new product price.
type PriceUpdate struct {
	ProductID     string  `json:"productId"`
	Price         float64 `json:"price"`
	PreviousPrice float64 `json:"previousPrice,omitempty"`
}

// InventoryUpdate reports a new stock level.
type InventoryUpdate struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
}

// Notification is a user-facing notice.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level,omitempty"` // "info", "success", "warning", "error"
}

// Ping is a server-initiated liveness check.
type Ping struct{}

// Pong answers a client heartbeat.
type Pong struct{}

// Error is a server-side error report.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Unknown is any frame whose tag is not recognised.
type Unknown struct {
	Type string
}

func (*Connection) Kind() Kind      { return KindConnection }
func (*AIResponse) Kind() Kind      { return KindAIResponse }
func (*Chat) Kind() Kind            { return KindChat }
func (*Typing) Kind() Kind          { return KindTyping }
func (*PresenceUpdate) Kind() Kind  { return KindPresenceUpdate }
func (*OrderUpdate) Kind() Kind     { return KindOrderUpdate }
func (*PriceUpdate) Kind() Kind     { return KindPriceUpdate }
func (*InventoryUpdate) Kind() Kind { return KindInventoryUpdate }
func (*Notification) Kind() Kind    { return KindNotification }
func (*Ping) Kind() Kind            { return KindPing }
func (*Pong) Kind() Kind            { return KindPong }
func (*Error) Kind() Kind           { return KindError }
func (u *Unknown) Kind() Kind       { return Kind(u.Type) }

// Frame is a decoded inbound frame together with its original bytes.
type Frame struct {
	Message    Message
	Raw        json.RawMessage // verbatim wire bytes
	ReceivedAt time.Time
}

// Kind returns the frame's tag.
func (f Frame) Kind() Kind {
	if f.Message == nil {
		return ""
	}
	return f.Message.Kind()
}

type header struct {
	Type string `json:"type"`
}

// Decode parses one inbound frame. It returns ErrMalformed for anything that
// isn't a JSON object of the expected shape and ErrMissingType when the tag
// is absent or empty. Unrecognised tags are not an error.
func Decode(data []byte) (Message, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if h.Type == "" {
		return nil, ErrMissingType
	}

	msg := newMessage(Kind(h.Type))
	if msg == nil {
		return &Unknown{Type: h.Type}, nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, h.Type, err)
	}
	return msg, nil
}

func newMessage(k Kind) Message {
	switch k {
	case KindConnection:
		return &Connection{}
	case KindAIResponse:
		return &AIResponse{}
	case KindChat:
		return &Chat{}
	case KindTyping:
		return &Typing{}
	case KindPresenceUpdate:
		return &PresenceUpdate{}
	case KindOrderUpdate:
		return &OrderUpdate{}
	case KindPriceUpdate:
		return &PriceUpdate{}
	case KindInventoryUpdate:
		return &InventoryUpdate{}
	case KindNotification:
		return &Notification{}
	case KindPing:
		return &Ping{}
	case KindPong:
		return &Pong{}
	case KindError:
		return &Error{}
	}
	return nil
}
