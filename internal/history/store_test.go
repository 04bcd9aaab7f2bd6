package history

import (
	"testing"

	"github.com/rickgao/storefront-realtime/internal/protocol"
)

func TestStore_ChatCapped(t *testing.T) {
	s := NewStore(Limits{Chat: 2, AI: 1, Notifications: 1, Orders: 1})

	for _, text := range []string{"a", "b", "c"} {
		if !s.Apply(&protocol.Chat{UserID: "u1", Message: text, Room: "general"}) {
			t.Fatal("Apply(chat) = false")
		}
	}

	got := s.ChatHistory()
	if len(got) != 2 {
		t.Fatalf("len(ChatHistory()) = %d, want 2", len(got))
	}
	if got[0].Message != "b" || got[1].Message != "c" {
		t.Errorf("ChatHistory() = %+v, want b, c", got)
	}

	stats := s.Stats().Chat
	want := RingStats{Count: 2, Capacity: 2, TotalPushed: 3, Overwritten: 1}
	if stats != want {
		t.Errorf("Stats().Chat = %+v, want %+v", stats, want)
	}
	if s.Stats().Orders.Count != 0 {
		t.Errorf("Stats().Orders.Count = %d, want 0", s.Stats().Orders.Count)
	}
}

func TestStore_LatestValues(t *testing.T) {
	s := NewStore(DefaultLimits())

	s.Apply(&protocol.PriceUpdate{ProductID: "P1", Price: 10})
	s.Apply(&protocol.PriceUpdate{ProductID: "P1", Price: 8, PreviousPrice: 10})
	s.Apply(&protocol.InventoryUpdate{ProductID: "P1", Stock: 4})
	s.Apply(&protocol.PresenceUpdate{UserID: "u1", Status: "online"})
	s.Apply(&protocol.PresenceUpdate{UserID: "u1", Status: "away"})

	if p, ok := s.Price("P1"); !ok || p.Price != 8 || p.PreviousPrice != 10 {
		t.Errorf("Price(P1) = %+v, %v", p, ok)
	}
	if n, ok := s.Stock("P1"); !ok || n != 4 {
		t.Errorf("Stock(P1) = %d, %v, want 4, true", n, ok)
	}
	if _, ok := s.Stock("P2"); ok {
		t.Error("Stock(P2) should be unknown")
	}
	if got := s.Presence()["u1"]; got != "away" {
		t.Errorf("Presence()[u1] = %q, want away", got)
	}
}

func TestStore_Typing(t *testing.T) {
	s := NewStore(DefaultLimits())

	s.Apply(&protocol.Typing{UserID: "u1", Room: "general", IsTyping: true})
	s.Apply(&protocol.Typing{UserID: "u2", Room: "general", IsTyping: true})
	s.Apply(&protocol.Typing{UserID: "u1", Room: "general", IsTyping: false})

	got := s.Typing("general")
	if len(got) != 1 || got[0] != "u2" {
		t.Errorf("Typing(general) = %v, want [u2]", got)
	}
}

func TestStore_IgnoresOtherKinds(t *testing.T) {
	s := NewStore(DefaultLimits())

	if s.Apply(&protocol.Ping{}) {
		t.Error("Apply(ping) should return false")
	}
	if s.Apply(&protocol.Unknown{Type: "flash-sale"}) {
		t.Error("Apply(unknown) should return false")
	}
}

func TestStore_PresenceIsCopy(t *testing.T) {
	s := NewStore(DefaultLimits())
	s.Apply(&protocol.PresenceUpdate{UserID: "u1", Status: "online"})

	p := s.Presence()
	p["u1"] = "hacked"

	if got := s.Presence()["u1"]; got != "online" {
		t.Errorf("store mutated through Presence(): %q", got)
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(DefaultLimits())
	s.Apply(&protocol.Chat{Message: "hi"})
	s.Apply(&protocol.PresenceUpdate{UserID: "u1", Status: "online"})
	s.Reset()

	if len(s.ChatHistory()) != 0 || len(s.Presence()) != 0 {
		t.Error("Reset() left data behind")
	}
}
