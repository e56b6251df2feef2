// Package cache keeps a short-lived index of HITL type names per
// organization, used to recognize bracketed type tags without a round trip
// for every notification. Writes through the repository invalidate it.
package cache

import (
	"context"
	"strconv"
	"time"
)

// TypeIndex stores the HITL type names of an organization
type TypeIndex interface {
	// Names returns the cached names and whether the entry was present
	Names(ctx context.Context, orgID int64) ([]string, bool, error)
	Store(ctx context.Context, orgID int64, names []string) error
	Invalidate(ctx context.Context, orgID int64) error
	Close() error
}

// Stats tracks index usage
type Stats struct {
	Hits          int64
	Misses        int64
	Sets          int64
	Invalidations int64
	Evictions     int64
	Size          int64
}

func orgKey(orgID int64) string {
	return "hitl-types:" + strconv.FormatInt(orgID, 10)
}

// Options selects and tunes the index backend
type Options struct {
	Backend string // local, redis or none
	TTL     time.Duration

	MaxEntries      int
	CleanupInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}
