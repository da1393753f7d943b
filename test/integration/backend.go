package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bbrooks37/vscode-mssql/model"
)

// MockBackend simulates the remote provider: the capability document, the
// validate-and-save endpoint, the identity service, and the cloud resource
// API, all behind one HTTP test server. Responses are configurable per route
// and received requests are recorded for assertion.
type MockBackend struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	document model.CapabilityDocument
	accounts []model.Account
	tenants  map[string][]model.Tenant
	subs     map[string][]model.Subscription
	servers  map[string][]model.Server

	connectResults []model.ConnectResult
	connectCalls   []map[string]any

	firewallRules []map[string]any
	firewallFail  bool

	tokenExpiry time.Time
}

// NewMockBackend starts the backend with a minimal default capability
// document and no accounts.
func NewMockBackend(t *testing.T) *MockBackend {
	t.Helper()
	b := &MockBackend{
		t:           t,
		document:    DefaultCapabilityDocument(),
		tenants:     make(map[string][]model.Tenant),
		subs:        make(map[string][]model.Subscription),
		servers:     make(map[string][]model.Server),
		tokenExpiry: time.Now().Add(time.Hour),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /capabilities/mssql", b.handleCapabilities)
	mux.HandleFunc("POST /connection/connect", b.handleConnect)
	mux.HandleFunc("GET /accounts", b.handleAccounts)
	mux.HandleFunc("POST /accounts/signin", b.handleSignIn)
	mux.HandleFunc("GET /accounts/{accountId}/tenants", b.handleTenants)
	mux.HandleFunc("POST /accounts/{accountId}/tenants/{tenantId}/token", b.handleToken)
	mux.HandleFunc("GET /accounts/{accountId}/tenants/{tenantId}/subscriptions", b.handleSubscriptions)
	mux.HandleFunc("GET /subscriptions/{subscriptionId}/servers", b.handleServers)
	mux.HandleFunc("POST /servers/{serverName}/firewall-rules", b.handleFirewallRule)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the backend's base URL.
func (b *MockBackend) URL() string { return b.server.URL }

// DefaultCapabilityDocument is the descriptor set used unless a test
// replaces it.
func DefaultCapabilityDocument() model.CapabilityDocument {
	return model.CapabilityDocument{
		Options: []model.OptionDescriptor{
			{Name: model.FieldServer, DisplayName: "Server", ValueKind: model.ValueKindString, Required: true},
			{Name: model.FieldDatabase, DisplayName: "Database", ValueKind: model.ValueKindString},
			{Name: model.FieldUser, DisplayName: "User name", ValueKind: model.ValueKindString},
			{Name: model.FieldPassword, DisplayName: "Password", ValueKind: model.ValueKindPassword},
			{Name: model.FieldAuthType, DisplayName: "Authentication", ValueKind: model.ValueKindCategory,
				CategoryValues: []model.CategoryValue{
					{Name: model.AuthSqlLogin, DisplayName: "SQL Login"},
					{Name: model.AuthAzureMFA, DisplayName: "Azure MFA"},
					{Name: model.AuthIntegrated, DisplayName: "Integrated"},
				}},
			{Name: model.FieldEncrypt, DisplayName: "Encrypt", ValueKind: model.ValueKindBoolean, Category: "security"},
			{Name: model.FieldTrustServerCert, DisplayName: "Trust server certificate", ValueKind: model.ValueKindBoolean, Category: "security"},
			{Name: "connectTimeout", DisplayName: "Connect timeout", ValueKind: model.ValueKindNumber, Category: "initialization"},
		},
		CategoryLabels: map[string]string{
			"security":       "Security",
			"initialization": "Initialization",
		},
	}
}

// ScriptConnectResults sets the sequence of connect outcomes. The last one
// repeats once the script runs out.
func (b *MockBackend) ScriptConnectResults(results ...model.ConnectResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectResults = results
}

// ConnectCalls returns the profiles received by the connect endpoint.
func (b *MockBackend) ConnectCalls() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.connectCalls...)
}

// FirewallRules returns the firewall rule payloads received so far.
func (b *MockBackend) FirewallRules() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.firewallRules...)
}

// FailFirewallRules makes rule creation return 500.
func (b *MockBackend) FailFirewallRules() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.firewallFail = true
}

// AddAccount registers an account with its tenants.
func (b *MockBackend) AddAccount(account model.Account, tenants ...model.Tenant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts = append(b.accounts, account)
	b.tenants[account.ID] = tenants
}

// AddSubscription registers a subscription under a tenant with its servers.
func (b *MockBackend) AddSubscription(accountID string, sub model.Subscription, servers ...model.Server) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := accountID + ":" + sub.TenantID
	b.subs[key] = append(b.subs[key], sub)
	b.servers[sub.ID] = servers
}

// --- handlers ---

func (b *MockBackend) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	doc := b.document
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

func (b *MockBackend) handleConnect(w http.ResponseWriter, r *http.Request) {
	var profile map[string]any
	json.NewDecoder(r.Body).Decode(&profile)

	b.mu.Lock()
	b.connectCalls = append(b.connectCalls, profile)
	result := model.ConnectResult{Success: true, ConnectionID: "conn-1"}
	if n := len(b.connectResults); n > 0 {
		idx := len(b.connectCalls) - 1
		if idx >= n {
			idx = n - 1
		}
		result = b.connectResults[idx]
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (b *MockBackend) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	accounts := append([]model.Account(nil), b.accounts...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, accounts)
}

func (b *MockBackend) handleSignIn(w http.ResponseWriter, _ *http.Request) {
	account := model.Account{ID: "acc-signin", DisplayName: "Signed In"}
	b.mu.Lock()
	b.accounts = append(b.accounts, account)
	if _, ok := b.tenants[account.ID]; !ok {
		b.tenants[account.ID] = []model.Tenant{{ID: "ten-signin", DisplayName: "Default Directory"}}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, account)
}

func (b *MockBackend) handleTenants(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	tenants := b.tenants[r.PathValue("accountId")]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, tenants)
}

func (b *MockBackend) handleToken(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	expiry := b.tokenExpiry
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     "integration-token",
		"expiresOn": expiry,
	})
}

func (b *MockBackend) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("accountId") + ":" + r.PathValue("tenantId")
	b.mu.Lock()
	subs := b.subs[key]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, subs)
}

func (b *MockBackend) handleServers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	servers := b.servers[r.PathValue("subscriptionId")]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, servers)
}

func (b *MockBackend) handleFirewallRule(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	json.NewDecoder(r.Body).Decode(&payload)
	payload["serverName"] = r.PathValue("serverName")

	b.mu.Lock()
	fail := b.firewallFail
	if !fail {
		b.firewallRules = append(b.firewallRules, payload)
	}
	b.mu.Unlock()

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "rule creation failed"})
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
