// Package session tracks revoked access tokens so a logout takes effect before expiry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers token ids until their natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevoker is used when no Redis is configured; revocations are per process.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = until
	m.sweep()
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if m.now().After(until) {
		delete(m.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// sweep drops expired entries; caller holds the lock.
func (m *MemoryRevoker) sweep() {
	now := m.now()
	for id, until := range m.revoked {
		if now.After(until) {
			delete(m.revoked, id)
		}
	}
}

const redisKeyPrefix = "busops:revoked:"

// RedisRevoker shares revocations across API instances.
type RedisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker connects to the given redis:// URL and pings it.
func NewRedisRevoker(ctx context.Context, url string) (*RedisRevoker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisRevoker{client: client}, nil
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, redisKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisRevoker) Close() error {
	return r.client.Close()
}
