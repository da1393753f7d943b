// Package capability fetches and caches the connection capability document
// that drives form schema compilation.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

const documentPath = "/capabilities/mssql"

type cacheEntry struct {
	doc     *model.CapabilityDocument
	expires time.Time
}

// Client fetches the capability document from the remote connection provider
// and caches it for the configured TTL. The document is untrusted input; the
// schema compiler tolerates malformed descriptors, so the client only rejects
// payloads that are not JSON at all.
type Client struct {
	baseURL string
	ttl     time.Duration
	client  *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	cache *cacheEntry
}

// NewClient creates a capability client from configuration.
func NewClient(cfg config.CapabilityConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		ttl:     cfg.CacheTTL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: logger,
	}
}

// Fetch returns the capability document, serving from cache when the TTL has
// not elapsed.
func (c *Client) Fetch(ctx context.Context) (*model.CapabilityDocument, error) {
	c.mu.RLock()
	if c.cache != nil && time.Now().Before(c.cache.expires) {
		doc := c.cache.doc
		c.mu.RUnlock()
		return doc, nil
	}
	c.mu.RUnlock()

	doc, err := c.fetchRemote(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache = &cacheEntry{doc: doc, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return doc, nil
}

// Invalidate drops the cached document so the next Fetch hits the remote.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}

func (c *Client) fetchRemote(ctx context.Context) (*model.CapabilityDocument, error) {
	ctx, span := observability.StartSpan(ctx, "capability.Fetch")
	var err error
	defer func() { observability.EndSpanWithError(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+documentPath, nil)
	if err != nil {
		return nil, fmt.Errorf("capability: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			err = model.NewBackendUnavailableError()
			return nil, err
		}
		return nil, fmt.Errorf("capability: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		err = model.NewBackendUnavailableError()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("capability: unexpected status %d", resp.StatusCode)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
	if err != nil {
		return nil, fmt.Errorf("capability: read response: %w", err)
	}

	var doc model.CapabilityDocument
	if err = json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("capability: parse document: %w", err)
	}

	c.logger.Info("capability document fetched",
		zap.Int("option_count", len(doc.Options)),
	)
	return &doc, nil
}

// HealthCheck verifies the remote capability source is reachable. A cached
// document within its TTL counts as healthy without a remote round trip.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	if c.cache != nil && time.Now().Before(c.cache.expires) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	_, err := c.Fetch(ctx)
	return err
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
