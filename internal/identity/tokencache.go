package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache stores issued security tokens keyed by account and tenant.
// The key format is "tok:{accountId}:{tenantId}".
type TokenCache interface {
	// Get looks up a cached token by key.
	Get(ctx context.Context, key string) (tok *SecurityToken, found bool, err error)

	// Put saves a token keyed by account and tenant with a TTL.
	Put(ctx context.Context, key string, tok SecurityToken, ttl time.Duration) error

	// Delete removes a cached token, forcing the next lookup to the broker.
	Delete(ctx context.Context, key string) error
}

// TokenCacheKey builds the standard token cache key.
func TokenCacheKey(accountID, tenantID string) string {
	return fmt.Sprintf("tok:%s:%s", accountID, tenantID)
}

// --- MemoryTokenCache ---

// MemoryTokenCache is an in-memory TokenCache with TTL support. Suitable for
// testing and single-instance deployments.
type MemoryTokenCache struct {
	mu      sync.RWMutex
	entries map[string]*memToken
}

type memToken struct {
	tok       SecurityToken
	expiresAt time.Time
}

// NewMemoryTokenCache creates a new in-memory token cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{
		entries: make(map[string]*memToken),
	}
}

// Get looks up a cached token, dropping it if the TTL has elapsed.
func (c *MemoryTokenCache) Get(_ context.Context, key string) (*SecurityToken, bool, error) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	tok := entry.tok
	return &tok, true, nil
}

// Put saves a token with TTL.
func (c *MemoryTokenCache) Put(_ context.Context, key string, tok SecurityToken, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &memToken{
		tok:       tok,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a cached token.
func (c *MemoryTokenCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries (including expired ones). For testing.
func (c *MemoryTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HealthCheck always succeeds for the in-memory cache.
func (c *MemoryTokenCache) HealthCheck(_ context.Context) error {
	return nil
}

// --- RedisTokenCache ---

// RedisTokenCache is a Redis-backed TokenCache with TTL.
type RedisTokenCache struct {
	client redis.Cmdable
}

// NewRedisTokenCache creates a new Redis-backed token cache.
func NewRedisTokenCache(client redis.Cmdable) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

// Get looks up a cached token in Redis.
func (c *RedisTokenCache) Get(ctx context.Context, key string) (*SecurityToken, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var tok SecurityToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, false, fmt.Errorf("unmarshal token %q: %w", key, err)
	}

	return &tok, true, nil
}

// Put saves a token in Redis with TTL.
func (c *RedisTokenCache) Put(ctx context.Context, key string, tok SecurityToken, ttl time.Duration) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes a cached token from Redis.
func (c *RedisTokenCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (c *RedisTokenCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
