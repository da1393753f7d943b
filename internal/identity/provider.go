// Package identity talks to the host identity service for Azure accounts,
// tenants, and security tokens, and caches issued tokens.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

// SecurityToken is an access token issued for a specific account and tenant.
type SecurityToken struct {
	Token     string    `json:"token"`
	ExpiresOn time.Time `json:"expiresOn"`
}

// Provider is the identity surface the dialog depends on. Implementations
// talk to the host's account store and token broker.
type Provider interface {
	// SignIn runs the interactive sign-in flow and returns the new account.
	SignIn(ctx context.Context) (model.Account, error)

	// ListAccounts returns the signed-in accounts known to the host.
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// ListTenants returns the tenants visible to the given account.
	ListTenants(ctx context.Context, accountID string) ([]model.Tenant, error)

	// GetSecurityToken returns an access token for the account and tenant.
	GetSecurityToken(ctx context.Context, accountID, tenantID string) (SecurityToken, error)
}

// HTTPProvider implements Provider against the identity service HTTP API.
type HTTPProvider struct {
	baseURL string
	scopes  []string
	client  *http.Client
	logger  *zap.Logger
	cache   TokenCache
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewHTTPProvider creates a provider from configuration. The token cache is
// consulted before the remote broker; pass nil to disable caching.
func NewHTTPProvider(cfg config.IdentityConfig, cache TokenCache, metrics *observability.Metrics, logger *zap.Logger) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		scopes:  cfg.Scopes,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		cache:   cache,
		ttl:     cfg.TokenCache.DefaultTTL,
		metrics: metrics,
	}
}

// SignIn runs the interactive sign-in flow via the identity service.
func (p *HTTPProvider) SignIn(ctx context.Context) (model.Account, error) {
	var account model.Account
	err := p.post(ctx, "/accounts/signin", map[string]any{"scopes": p.scopes}, &account)
	if err != nil {
		return model.Account{}, err
	}
	p.logger.Info("account signed in", zap.String("account_id", account.ID))
	return account, nil
}

// ListAccounts returns the signed-in accounts.
func (p *HTTPProvider) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if err := p.get(ctx, "/accounts", &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListTenants returns the tenants visible to the account.
func (p *HTTPProvider) ListTenants(ctx context.Context, accountID string) ([]model.Tenant, error) {
	var tenants []model.Tenant
	path := "/accounts/" + url.PathEscape(accountID) + "/tenants"
	if err := p.get(ctx, path, &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}

// GetSecurityToken returns an access token for the account and tenant,
// serving from the token cache when a fresh token is available.
func (p *HTTPProvider) GetSecurityToken(ctx context.Context, accountID, tenantID string) (SecurityToken, error) {
	key := TokenCacheKey(accountID, tenantID)

	if p.cache != nil {
		tok, found, err := p.cache.Get(ctx, key)
		if err != nil {
			p.logger.Warn("token cache lookup failed", zap.Error(err))
		} else if found && !IsExpired(tok.Token, time.Minute) {
			if p.metrics != nil {
				p.metrics.TokenCacheHitsTotal.Inc()
			}
			return *tok, nil
		}
	}
	if p.metrics != nil {
		p.metrics.TokenCacheMissesTotal.Inc()
	}

	var tok SecurityToken
	path := "/accounts/" + url.PathEscape(accountID) + "/tenants/" + url.PathEscape(tenantID) + "/token"
	if err := p.post(ctx, path, map[string]any{"scopes": p.scopes}, &tok); err != nil {
		return SecurityToken{}, err
	}

	if p.cache != nil {
		ttl := p.ttl
		if !tok.ExpiresOn.IsZero() {
			if until := time.Until(tok.ExpiresOn); until > 0 && until < ttl {
				ttl = until
			}
		}
		if err := p.cache.Put(ctx, key, tok, ttl); err != nil {
			p.logger.Warn("token cache store failed", zap.Error(err))
		}
	}

	return tok, nil
}

// --- HTTP plumbing ---

func (p *HTTPProvider) get(ctx context.Context, path string, out any) error {
	return p.do(ctx, http.MethodGet, path, nil, out)
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out any) error {
	return p.do(ctx, http.MethodPost, path, body, out)
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := p.client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return model.NewBackendUnavailableError()
		}
		return fmt.Errorf("identity: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("identity: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return model.NewUnauthorizedError("identity service rejected the request")
	case resp.StatusCode >= 500:
		return model.NewBackendUnavailableError()
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("identity: parse response: %w", err)
		}
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
