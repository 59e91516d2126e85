package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CorrelationStore maps an operator-side notification id to the connection it was sent for
type CorrelationStore interface {
	Remember(ctx context.Context, notificationID int64, connectionID string) error
	// Resolve returns "" when the id is unknown or expired
	Resolve(ctx context.Context, notificationID int64) (string, error)
}

const correlationKeyPrefix = "relay:corr:"

// RedisCorrelationStore keeps correlations as expiring Redis keys
type RedisCorrelationStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCorrelationStore(rdb *redis.Client, ttl time.Duration) *RedisCorrelationStore {
	return &RedisCorrelationStore{rdb: rdb, ttl: ttl}
}

func (s *RedisCorrelationStore) Remember(ctx context.Context, notificationID int64, connectionID string) error {
	key := correlationKeyPrefix + strconv.FormatInt(notificationID, 10)
	if err := s.rdb.Set(ctx, key, connectionID, s.ttl).Err(); err != nil {
		return fmt.Errorf("remember correlation: %w", err)
	}
	return nil
}

func (s *RedisCorrelationStore) Resolve(ctx context.Context, notificationID int64) (string, error) {
	key := correlationKeyPrefix + strconv.FormatInt(notificationID, 10)
	id, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve correlation: %w", err)
	}
	return id, nil
}

type correlationEntry struct {
	connectionID string
	expiresAt    time.Time
}

// MemoryCorrelationStore is a TTL map for single-process deployments
type MemoryCorrelationStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]correlationEntry
	now     func() time.Time
}

func NewMemoryCorrelationStore(ttl time.Duration) *MemoryCorrelationStore {
	return &MemoryCorrelationStore{ttl: ttl, entries: make(map[int64]correlationEntry), now: time.Now}
}

func (s *MemoryCorrelationStore) Remember(ctx context.Context, notificationID int64, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// expired entries are dropped lazily on write
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.entries[notificationID] = correlationEntry{connectionID: connectionID, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryCorrelationStore) Resolve(ctx context.Context, notificationID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[notificationID]
	if !ok || s.now().After(e.expiresAt) {
		return "", nil
	}
	return e.connectionID, nil
}
