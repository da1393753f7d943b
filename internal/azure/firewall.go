package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

// FallbackClientIP is offered when the provider's firewall error message does
// not contain a parsable address.
const FallbackClientIP = "0.0.0.0"

// FirewallRuleRequest describes one firewall rule to open on a server.
type FirewallRuleRequest struct {
	ServerName string `json:"serverName"`
	RuleName   string `json:"ruleName"`
	StartIP    string `json:"startIp"`
	EndIP      string `json:"endIp"`
	AccountID  string `json:"accountId"`
	TenantID   string `json:"tenantId"`
}

// FirewallClient opens server firewall rules through the resource service.
type FirewallClient interface {
	CreateFirewallRule(ctx context.Context, req FirewallRuleRequest) error
}

var clientIPPattern = regexp.MustCompile(`\b(\d{1,3}(?:\.\d{1,3}){3})\b`)

// ClientIPFromError extracts the blocked client address from the provider's
// firewall error message. Falls back to 0.0.0.0 when no address is found, so
// the recovery dialog always has a prefill.
func ClientIPFromError(message string) string {
	if m := clientIPPattern.FindString(message); m != "" {
		return m
	}
	return FallbackClientIP
}

// CreateFirewallRule opens a firewall rule on the server through the resource
// service.
func (b *HTTPBrowser) CreateFirewallRule(ctx context.Context, req FirewallRuleRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("azure: marshal firewall rule: %w", err)
	}

	path := "/servers/" + url.PathEscape(req.ServerName) + "/firewall-rules"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("azure: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	observability.InjectTraceHeaders(ctx, httpReq.Header)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if isConnectionError(err) {
			return model.NewBackendUnavailableError()
		}
		return fmt.Errorf("azure: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return model.NewUnauthorizedError("resource service rejected the request")
	case resp.StatusCode >= 500:
		return model.NewBackendUnavailableError()
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated, resp.StatusCode == http.StatusNoContent:
		return nil
	default:
		return fmt.Errorf("azure: unexpected status %d", resp.StatusCode)
	}
}
