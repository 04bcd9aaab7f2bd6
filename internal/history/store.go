package history

import (
	"maps"
	"sync"

	"github.com/rickgao/storefront-realtime/internal/protocol"
)

// Limits caps each bounded stream.
type Limits struct {
	Chat          int
	AI            int
	Notifications int
	Orders        int
}

// DefaultLimits returns the stream caps used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		Chat:          100,
		AI:            50,
		Notifications: 50,
		Orders:        50,
	}
}

// Store holds the derived views. It is safe for concurrent use.
type Store struct {
	chat          *Ring[protocol.Chat]
	ai            *Ring[protocol.AIResponse]
	notifications *Ring[protocol.Notification]
	orders        *Ring[protocol.OrderUpdate]

	mu        sync.RWMutex
	presence  map[string]string // user ID -> status
	prices    map[string]protocol.PriceUpdate
	inventory map[string]int // product ID -> stock
	typing    map[string]map[string]bool
}

// NewStore creates an empty store.
func NewStore(limits Limits) *Store {
	return &Store{
		chat:          NewRing[protocol.Chat](limits.Chat),
		ai:            NewRing[protocol.AIResponse](limits.AI),
		notifications: NewRing[protocol.Notification](limits.Notifications),
		orders:        NewRing[protocol.OrderUpdate](limits.Orders),
		presence:      make(map[string]string),
		prices:        make(map[string]protocol.PriceUpdate),
		inventory:     make(map[string]int),
		typing:        make(map[string]map[string]bool),
	}
}

// Apply records msg in the matching view. It reports whether msg was
// stored; kinds with no view are ignored.
func (s *Store) Apply(msg protocol.Message) bool {
	switch m := msg.(type) {
	case *protocol.Chat:
		s.chat.Push(*m)
	case *protocol.AIResponse:
		s.ai.Push(*m)
	case *protocol.Notification:
		s.notifications.Push(*m)
	case *protocol.OrderUpdate:
		s.orders.Push(*m)
	case *protocol.PresenceUpdate:
		s.mu.Lock()
		s.presence[m.UserID] = m.Status
		s.mu.Unlock()
	case *protocol.PriceUpdate:
		s.mu.Lock()
		s.prices[m.ProductID] = *m
		s.mu.Unlock()
	case *protocol.InventoryUpdate:
		s.mu.Lock()
		s.inventory[m.ProductID] = m.Stock
		s.mu.Unlock()
	case *protocol.Typing:
		s.applyTyping(m)
	default:
		return false
	}
	return true
}

func (s *Store) applyTyping(m *protocol.Typing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.typing[m.Room]
	if !m.IsTyping {
		delete(room, m.UserID)
		if len(room) == 0 {
			delete(s.typing, m.Room)
		}
		return
	}
	if room == nil {
		room = make(map[string]bool)
		s.typing[m.Room] = room
	}
	room[m.UserID] = true
}

// ChatHistory returns the most recent chat lines, oldest first.
func (s *Store) ChatHistory() []protocol.Chat { return s.chat.Snapshot() }

// AIResponses returns the most recent assistant replies, oldest first.
func (s *Store) AIResponses() []protocol.AIResponse { return s.ai.Snapshot() }

// Notifications returns the most recent notifications, oldest first.
func (s *Store) Notifications() []protocol.Notification { return s.notifications.Snapshot() }

// OrderUpdates returns the most recent order updates, oldest first.
func (s *Store) OrderUpdates() []protocol.OrderUpdate { return s.orders.Snapshot() }

// Presence returns user ID -> status.
func (s *Store) Presence() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.presence)
}

// Price returns the latest price update for a product.
func (s *Store) Price(productID string) (protocol.PriceUpdate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[productID]
	return p, ok
}

// Stock returns the latest stock level for a product.
func (s *Store) Stock(productID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.inventory[productID]
	return n, ok
}

// Typing returns the users currently typing in room.
func (s *Store) Typing(room string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.typing[room]))
	for u := range s.typing[room] {
		users = append(users, u)
	}
	return users
}

// StoreStats reports the bounded streams' fill and eviction counts.
type StoreStats struct {
	Chat          RingStats
	AI            RingStats
	Notifications RingStats
	Orders        RingStats
}

// Stats returns per-stream ring statistics.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Chat:          s.chat.Stats(),
		AI:            s.ai.Stats(),
		Notifications: s.notifications.Stats(),
		Orders:        s.orders.Stats(),
	}
}

// Reset clears every view.
func (s *Store) Reset() {
	s.chat.Reset()
	s.ai.Reset()
	s.notifications.Reset()
	s.orders.Reset()

	s.mu.Lock()
	s.presence = make(map[string]string)
	s.prices = make(map[string]protocol.PriceUpdate)
	s.inventory = make(map[string]int)
	s.typing = make(map[string]map[string]bool)
	s.mu.Unlock()
}
