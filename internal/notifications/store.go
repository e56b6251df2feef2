// Package notifications keeps the client-local HITL notification log and
// binds it to the live channel for one organization at a time.
package notifications

import (
	"slices"
	"sync"

	"github.com/gotrs-io/gotrs-hitl/internal/metrics"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

const DefaultMaxEntries = 200

// State is a point-in-time copy of the store
type State struct {
	Notifications []types.HitlNotification `json:"notifications"`
	UnreadCount   int                      `json:"unreadCount"`
	Connected     bool                     `json:"connected"`
}

// Store is the memory-only notification log, newest first. Nothing here is
// persisted or touches the network.
type Store struct {
	mu         sync.RWMutex
	entries    []types.HitlNotification
	unread     int
	connected  bool
	maxEntries int
	metrics    *metrics.Metrics
}

// NewStore builds a store keeping at most maxEntries notifications; 0 means
// unbounded
func NewStore(maxEntries int, m *metrics.Metrics) *Store {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Store{maxEntries: maxEntries, metrics: m}
}

// Add prepends n. The oldest entries beyond the bound are dropped.
func (s *Store) Add(n types.HitlNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = slices.Insert(s.entries, 0, n)
	if !n.Read {
		s.unread++
	}
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		for _, dropped := range s.entries[s.maxEntries:] {
			if !dropped.Read {
				s.unread--
			}
		}
		s.entries = slices.Clip(s.entries[:s.maxEntries])
	}
	s.metrics.SetUnread(s.unread)
}

// MarkAsRead flags the entry at index (0 is newest). It reports false when
// the index is out of range.
func (s *Store) MarkAsRead(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.entries) {
		return false
	}
	if !s.entries[index].Read {
		s.entries[index].Read = true
		s.unread--
		s.metrics.SetUnread(s.unread)
	}
	return true
}

func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		s.entries[i].Read = true
	}
	s.unread = 0
	s.metrics.SetUnread(0)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.unread = 0
	s.metrics.SetUnread(0)
}

func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Notifications returns a copy of the log, newest first
func (s *Store) Notifications() []types.HitlNotification {
	return s.filter(func(types.HitlNotification) bool { return true })
}

// GetNotificationsByType returns the entries whose hitlType equals hitlType
func (s *Store) GetNotificationsByType(hitlType string) []types.HitlNotification {
	return s.filter(func(n types.HitlNotification) bool { return n.HitlType == hitlType })
}

// GetUnreadNotifications returns the entries not yet read
func (s *Store) GetUnreadNotifications() []types.HitlNotification {
	return s.filter(func(n types.HitlNotification) bool { return !n.Read })
}

// Snapshot copies the whole state under one lock
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Notifications: append([]types.HitlNotification{}, s.entries...),
		UnreadCount:   s.unread,
		Connected:     s.connected,
	}
}

func (s *Store) filter(keep func(types.HitlNotification) bool) []types.HitlNotification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.HitlNotification, 0, len(s.entries))
	for _, n := range s.entries {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}
