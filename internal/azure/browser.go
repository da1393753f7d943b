// Package azure loads cloud subscriptions and servers for the browse flow,
// and opens firewall rules during connect recovery.
package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

// ResourceBrowser lists the cloud resources the browse flow walks through.
type ResourceBrowser interface {
	// ListSubscriptions returns the subscriptions visible to the account in
	// the given tenant.
	ListSubscriptions(ctx context.Context, accountID, tenantID string) ([]model.Subscription, error)

	// ListServers returns the database servers in the given subscription.
	ListServers(ctx context.Context, subscriptionID string) ([]model.Server, error)
}

// HTTPBrowser implements ResourceBrowser against the resource service API.
type HTTPBrowser struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBrowser creates a browser from configuration.
func NewHTTPBrowser(cfg config.AzureConfig) *HTTPBrowser {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPBrowser{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListSubscriptions returns the subscriptions visible to the account in the
// given tenant.
func (b *HTTPBrowser) ListSubscriptions(ctx context.Context, accountID, tenantID string) ([]model.Subscription, error) {
	path := fmt.Sprintf("/accounts/%s/tenants/%s/subscriptions",
		url.PathEscape(accountID), url.PathEscape(tenantID))

	var subs []model.Subscription
	if err := b.get(ctx, path, &subs); err != nil {
		return nil, err
	}
	// The tenant is implicit in the request path; stamp it so grouping works.
	for i := range subs {
		if subs[i].TenantID == "" {
			subs[i].TenantID = tenantID
		}
	}
	return subs, nil
}

// ListServers returns the database servers in the given subscription.
func (b *HTTPBrowser) ListServers(ctx context.Context, subscriptionID string) ([]model.Server, error) {
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/servers"

	var servers []model.Server
	if err := b.get(ctx, path, &servers); err != nil {
		return nil, err
	}
	for i := range servers {
		if servers[i].SubscriptionID == "" {
			servers[i].SubscriptionID = subscriptionID
		}
	}
	return servers, nil
}

func (b *HTTPBrowser) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("azure: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := b.client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return model.NewBackendUnavailableError()
		}
		return fmt.Errorf("azure: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("azure: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return model.NewUnauthorizedError("resource service rejected the request")
	case resp.StatusCode >= 500:
		return model.NewBackendUnavailableError()
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("azure: unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("azure: parse response: %w", err)
	}
	return nil
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
