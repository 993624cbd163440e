// Package cloudsync mirrors save points to Redis for sessions that opted
// into cloud sync, so another device can pick up the latest state.
package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// ErrMirrorClosed is returned after Close.
var ErrMirrorClosed = errors.New("cloudsync: mirror closed")

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr     string
	Password string
	DB       int

	// Prefix is the key prefix for every mirrored key (default: "waypoint:").
	Prefix string

	// TTL expires mirrored save points (0 = never expire).
	TTL time.Duration

	// MaxPerCharacter bounds how many save points are mirrored per character
	// (default: 10). Older ones are dropped from the mirror only.
	MaxPerCharacter int

	PoolSize int
}

// Mirror copies save points to Redis.
type Mirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	keep   int

	mu     sync.RWMutex
	closed bool
}

// New connects to Redis and returns a mirror.
func New(cfg Config) (*Mirror, error) {
	if cfg.Addr == "" {
		return nil, errors.New("cloudsync: redis address is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cloudsync: redis ping failed: %w", err)
	}
	return NewFromClient(client, cfg), nil
}

// NewFromClient creates a mirror from an existing client.
func NewFromClient(client *redis.Client, cfg Config) *Mirror {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "waypoint:"
	}
	keep := cfg.MaxPerCharacter
	if keep <= 0 {
		keep = 10
	}
	return &Mirror{client: client, prefix: prefix, ttl: cfg.TTL, keep: keep}
}

func (m *Mirror) savePointKey(id string) string {
	return m.prefix + "sp:" + id
}

func (m *Mirror) characterKey(characterID string) string {
	return m.prefix + "character:" + characterID
}

func (m *Mirror) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Mirror stores sp and indexes it under its character, trimming the index
// to the newest MaxPerCharacter entries.
func (m *Mirror) Mirror(ctx context.Context, sp *domain.SavePoint) error {
	if m.isClosed() {
		return ErrMirrorClosed
	}
	data, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("cloudsync: marshal save point: %w", err)
	}

	index := m.characterKey(sp.CharacterID)
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.savePointKey(sp.ID), data, m.ttl)
	pipe.ZAdd(ctx, index, redis.Z{Score: float64(sp.CreatedAt), Member: sp.ID})
	if m.ttl > 0 {
		pipe.Expire(ctx, index, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cloudsync: mirror %s: %w", sp.ID, err)
	}
	return m.trim(ctx, index)
}

func (m *Mirror) trim(ctx context.Context, index string) error {
	stale, err := m.client.ZRange(ctx, index, 0, int64(-m.keep-1)).Result()
	if err != nil {
		return fmt.Errorf("cloudsync: read index: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	pipe := m.client.TxPipeline()
	members := make([]any, len(stale))
	for i, id := range stale {
		pipe.Del(ctx, m.savePointKey(id))
		members[i] = id
	}
	pipe.ZRem(ctx, index, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cloudsync: trim index: %w", err)
	}
	return nil
}

// List returns the mirrored save points of a character, newest first.
// Entries whose key already expired are skipped.
func (m *Mirror) List(ctx context.Context, characterID string) ([]*domain.SavePoint, error) {
	if m.isClosed() {
		return nil, ErrMirrorClosed
	}
	ids, err := m.client.ZRevRange(ctx, m.characterKey(characterID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("cloudsync: read index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = m.savePointKey(id)
	}
	values, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cloudsync: read save points: %w", err)
	}

	out := make([]*domain.SavePoint, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		sp := &domain.SavePoint{}
		if err := json.Unmarshal([]byte(s), sp); err != nil {
			return nil, fmt.Errorf("cloudsync: decode save point: %w", err)
		}
		out = append(out, sp)
	}
	return out, nil
}

// Close closes the Redis client.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.client.Close()
}
