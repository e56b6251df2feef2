package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// RedisIndex shares the type-name index between processes of the same
// operator, e.g. the CLI and the serve daemon
type RedisIndex struct {
	client    redis.Cmdable
	closer    func() error
	ttl       time.Duration
	keyPrefix string
	metrics   *indexMetrics
}

type indexMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	errors prometheus.Counter
}

func newIndexMetrics(reg prometheus.Registerer) *indexMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &indexMetrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "gotrs_hitl_type_index_hits_total",
			Help: "Total number of HITL type index hits",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "gotrs_hitl_type_index_misses_total",
			Help: "Total number of HITL type index misses",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gotrs_hitl_type_index_errors_total",
			Help: "Total number of HITL type index errors",
		}),
	}
}

func (m *indexMetrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *indexMetrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *indexMetrics) fail() {
	if m != nil {
		m.errors.Inc()
	}
}

// NewRedisIndex connects to redis and verifies the connection
func NewRedisIndex(opts Options, reg prometheus.Registerer) (*RedisIndex, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.RedisAddr,
		Password:     opts.RedisPassword,
		DB:           opts.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	idx := NewRedisIndexWithClient(client, opts.TTL, opts.KeyPrefix, reg)
	idx.closer = client.Close
	return idx, nil
}

// NewRedisIndexWithClient wraps an existing client; Close leaves it open
func NewRedisIndexWithClient(client redis.Cmdable, ttl time.Duration, keyPrefix string, reg prometheus.Registerer) *RedisIndex {
	if keyPrefix == "" {
		keyPrefix = "gotrs-hitl:"
	}
	return &RedisIndex{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		metrics:   newIndexMetrics(reg),
	}
}

func (ri *RedisIndex) key(orgID int64) string {
	return ri.keyPrefix + orgKey(orgID)
}

func (ri *RedisIndex) Names(ctx context.Context, orgID int64) ([]string, bool, error) {
	val, err := ri.client.Get(ctx, ri.key(orgID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			ri.metrics.miss()
			return nil, false, nil
		}
		ri.metrics.fail()
		return nil, false, err
	}

	var names []string
	if err := json.Unmarshal(val, &names); err != nil {
		ri.metrics.fail()
		return nil, false, fmt.Errorf("corrupt type index entry: %w", err)
	}
	ri.metrics.hit()
	return names, true, nil
}

func (ri *RedisIndex) Store(ctx context.Context, orgID int64, names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := ri.client.Set(ctx, ri.key(orgID), data, ri.ttl).Err(); err != nil {
		ri.metrics.fail()
		return err
	}
	return nil
}

func (ri *RedisIndex) Invalidate(ctx context.Context, orgID int64) error {
	if err := ri.client.Del(ctx, ri.key(orgID)).Err(); err != nil {
		ri.metrics.fail()
		return err
	}
	return nil
}

func (ri *RedisIndex) Close() error {
	if ri.closer != nil {
		return ri.closer()
	}
	return nil
}

// New builds the index selected by opts.Backend. "none" (or a zero TTL)
// returns a nil index, which callers treat as "always ask the server".
func New(opts Options, reg prometheus.Registerer) (TypeIndex, error) {
	if opts.TTL <= 0 {
		return nil, nil
	}
	switch opts.Backend {
	case "", "local":
		return NewLocalIndex(opts.TTL, opts.MaxEntries, opts.CleanupInterval), nil
	case "redis":
		idx, err := NewRedisIndex(opts, reg)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
