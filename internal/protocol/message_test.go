package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDecode_KnownKinds(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Kind
	}{
		{"connection", `{"type":"connection","clientId":"c1"}`, KindConnection},
		{"ai response", `{"type":"ai-response","message":"try these","products":[{"id":"P1"}]}`, KindAIResponse},
		{"chat", `{"type":"chat","userId":"u1","message":"hi","room":"general"}`, KindChat},
		{"typing", `{"type":"typing","userId":"u1","isTyping":true}`, KindTyping},
		{"presence", `{"type":"presence-update","userId":"u1","status":"online"}`, KindPresenceUpdate},
		{"order", `{"type":"order-update","orderId":"O1","status":"shipped"}`, KindOrderUpdate},
		{"price", `{"type":"price-update","productId":"P1","price":9.99}`, KindPriceUpdate},
		{"inventory", `{"type":"inventory-update","productId":"P1","stock":3}`, KindInventoryUpdate},
		{"notification", `{"type":"notification","title":"Hi","message":"there"}`, KindNotification},
		{"ping", `{"type":"ping"}`, KindPing},
		{"pong", `{"type":"pong","timestamp":1}`, KindPong},
		{"error", `{"type":"error","message":"bad"}`, KindError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if msg.Kind() != tt.want {
				t.Errorf("Kind() = %q, want %q", msg.Kind(), tt.want)
			}
			if _, unknown := msg.(*Unknown); unknown {
				t.Errorf("Decode() returned Unknown for %q", tt.want)
			}
		})
	}
}

func TestDecode_ChatFields(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"chat","userId":"u1","message":"hi","room":"general"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	chat, ok := msg.(*Chat)
	if !ok {
		t.Fatalf("Decode() = %T, want *Chat", msg)
	}
	if chat.UserID != "u1" || chat.Message != "hi" || chat.Room != "general" {
		t.Errorf("chat = %+v", chat)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"flash-sale","discount":20}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	u, ok := msg.(*Unknown)
	if !ok {
		t.Fatalf("Decode() = %T, want *Unknown", msg)
	}
	if u.Kind() != "flash-sale" {
		t.Errorf("Kind() = %q, want flash-sale", u.Kind())
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `{"type":`, ErrMalformed},
		{"array", `[1,2,3]`, ErrMalformed},
		{"numeric type", `{"type":42}`, ErrMalformed},
		{"wrong field type", `{"type":"inventory-update","stock":"many"}`, ErrMalformed},
		{"missing type", `{"message":"hi"}`, ErrMissingType},
		{"empty type", `{"type":""}`, ErrMissingType},
		{"null", `null`, ErrMissingType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewEnvelope(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	env := NewEnvelope("ai-chat", map[string]any{
		"message": "find shoes",
		"type":    "spoofed",
	}, Meta{UserID: "u1", CSRF: "tok", Now: now})

	data, err := env.Encode(0)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got["type"] != "ai-chat" {
		t.Errorf("type = %v, want ai-chat", got["type"])
	}
	if got["message"] != "find shoes" {
		t.Errorf("message = %v, want find shoes", got["message"])
	}
	if got["timestamp"] != float64(1700000000123) {
		t.Errorf("timestamp = %v, want 1700000000123", got["timestamp"])
	}
	if got["userId"] != "u1" {
		t.Errorf("userId = %v, want u1", got["userId"])
	}
	if got["csrfToken"] != "tok" {
		t.Errorf("csrfToken = %v, want tok", got["csrfToken"])
	}
}

func TestNewEnvelope_AnonymousOmitsIdentity(t *testing.T) {
	env := NewEnvelope(KindHeartbeat, nil, Meta{})

	if _, ok := env["userId"]; ok {
		t.Error("anonymous envelope should not carry userId")
	}
	if _, ok := env["csrfToken"]; ok {
		t.Error("envelope without csrf should not carry csrfToken")
	}
	if _, ok := env["timestamp"]; !ok {
		t.Error("envelope must always carry timestamp")
	}
}

func TestEnvelope_EncodeTooLarge(t *testing.T) {
	env := NewEnvelope("chat", map[string]any{
		"message": strings.Repeat("x", 100),
	}, Meta{})

	if _, err := env.Encode(64); !errors.Is(err, ErrEnvelopeTooLarge) {
		t.Errorf("Encode(64) error = %v, want ErrEnvelopeTooLarge", err)
	}
	if _, err := env.Encode(1024); err != nil {
		t.Errorf("Encode(1024) error = %v", err)
	}
}
