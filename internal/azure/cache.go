package azure

import (
	"context"
	"sync"
	"time"

	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

type subsEntry struct {
	subs    []model.Subscription
	expires time.Time
}

// SubscriptionCache caches subscription lists per account and tenant so
// reopening the browse pane does not refetch them. Entries expire after the
// configured TTL.
type SubscriptionCache struct {
	browser ResourceBrowser
	ttl     time.Duration
	metrics *observability.Metrics

	mu    sync.RWMutex
	cache map[string]subsEntry
}

// NewSubscriptionCache wraps a browser with a TTL cache.
func NewSubscriptionCache(browser ResourceBrowser, ttl time.Duration, metrics *observability.Metrics) *SubscriptionCache {
	return &SubscriptionCache{
		browser: browser,
		ttl:     ttl,
		metrics: metrics,
		cache:   make(map[string]subsEntry),
	}
}

// ListSubscriptions returns cached subscriptions when fresh, otherwise
// delegates to the wrapped browser.
func (c *SubscriptionCache) ListSubscriptions(ctx context.Context, accountID, tenantID string) ([]model.Subscription, error) {
	key := accountID + ":" + tenantID

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expires) {
		c.mu.RUnlock()
		if c.metrics != nil {
			c.metrics.SubscriptionCacheHits.Inc()
		}
		return entry.subs, nil
	}
	c.mu.RUnlock()

	if c.metrics != nil {
		c.metrics.SubscriptionCacheMisses.Inc()
	}

	subs, err := c.browser.ListSubscriptions(ctx, accountID, tenantID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = subsEntry{subs: subs, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return subs, nil
}

// ListServers delegates to the wrapped browser. Server lists are not cached;
// the browse pane refetches them so new servers show up.
func (c *SubscriptionCache) ListServers(ctx context.Context, subscriptionID string) ([]model.Server, error) {
	return c.browser.ListServers(ctx, subscriptionID)
}

// Invalidate drops cached subscriptions for the account.
func (c *SubscriptionCache) Invalidate(accountID string) {
	prefix := accountID + ":"
	c.mu.Lock()
	for key := range c.cache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.cache, key)
		}
	}
	c.mu.Unlock()
}
