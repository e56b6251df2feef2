package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// LocalIndex is an in-memory TypeIndex with TTL expiry and LRU eviction
type LocalIndex struct {
	mu      sync.RWMutex
	items   map[string]*localItem
	maxSize int
	ttl     time.Duration
	stats   Stats
	stopCh  chan struct{}
	once    sync.Once
}

type localItem struct {
	names      []string
	expiresAt  time.Time
	accessedAt time.Time
}

// NewLocalIndex creates a local index and starts its cleanup loop
func NewLocalIndex(ttl time.Duration, maxSize int, cleanupInterval time.Duration) *LocalIndex {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	li := &LocalIndex{
		items:   make(map[string]*localItem),
		maxSize: maxSize,
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go li.cleanupLoop(cleanupInterval)

	return li
}

func (li *LocalIndex) Names(_ context.Context, orgID int64) ([]string, bool, error) {
	li.mu.Lock()
	defer li.mu.Unlock()

	item, exists := li.items[orgKey(orgID)]
	if !exists || time.Now().After(item.expiresAt) {
		li.stats.Misses++
		return nil, false, nil
	}

	item.accessedAt = time.Now()
	li.stats.Hits++
	return slices.Clone(item.names), true, nil
}

func (li *LocalIndex) Store(_ context.Context, orgID int64, names []string) error {
	li.mu.Lock()
	defer li.mu.Unlock()

	key := orgKey(orgID)
	if _, exists := li.items[key]; !exists && len(li.items) >= li.maxSize {
		li.evictLRU()
	}

	now := time.Now()
	li.items[key] = &localItem{
		names:      slices.Clone(names),
		expiresAt:  now.Add(li.ttl),
		accessedAt: now,
	}
	li.stats.Sets++
	li.stats.Size = int64(len(li.items))
	return nil
}

func (li *LocalIndex) Invalidate(_ context.Context, orgID int64) error {
	li.mu.Lock()
	defer li.mu.Unlock()

	key := orgKey(orgID)
	if _, exists := li.items[key]; exists {
		delete(li.items, key)
		li.stats.Invalidations++
		li.stats.Size = int64(len(li.items))
	}
	return nil
}

// Stats returns a copy of the usage counters
func (li *LocalIndex) Stats() Stats {
	li.mu.RLock()
	defer li.mu.RUnlock()
	s := li.stats
	s.Size = int64(len(li.items))
	return s
}

// evictLRU removes the least recently used entry
func (li *LocalIndex) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range li.items {
		if oldestKey == "" || item.accessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessedAt
		}
	}

	if oldestKey != "" {
		delete(li.items, oldestKey)
		li.stats.Evictions++
	}
}

func (li *LocalIndex) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			li.cleanup()
		case <-li.stopCh:
			return
		}
	}
}

// cleanup removes expired entries
func (li *LocalIndex) cleanup() {
	li.mu.Lock()
	defer li.mu.Unlock()

	now := time.Now()
	for key, item := range li.items {
		if now.After(item.expiresAt) {
			delete(li.items, key)
			li.stats.Evictions++
		}
	}
	li.stats.Size = int64(len(li.items))
}

// Close stops the cleanup loop. It is safe to call more than once.
func (li *LocalIndex) Close() error {
	li.once.Do(func() { close(li.stopCh) })
	return nil
}
