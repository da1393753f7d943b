package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/azure"
	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/internal/dialog"
	"github.com/bbrooks37/vscode-mssql/internal/identity"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/internal/store"
	"github.com/bbrooks37/vscode-mssql/model"
)

// --- fakes ---

type stubCapability struct{}

func (stubCapability) Fetch(context.Context) (*model.CapabilityDocument, error) {
	return &model.CapabilityDocument{
		Options: []model.OptionDescriptor{
			{Name: model.FieldServer, DisplayName: "Server", ValueKind: model.ValueKindString, Required: true},
			{Name: model.FieldUser, DisplayName: "User name", ValueKind: model.ValueKindString},
			{Name: model.FieldPassword, DisplayName: "Password", ValueKind: model.ValueKindPassword},
			{Name: model.FieldAuthType, DisplayName: "Authentication", ValueKind: model.ValueKindCategory,
				CategoryValues: []model.CategoryValue{
					{Name: model.AuthSqlLogin, DisplayName: "SQL Login"},
					{Name: model.AuthIntegrated, DisplayName: "Integrated"},
				}},
		},
	}, nil
}

type stubIdentity struct{}

func (stubIdentity) SignIn(context.Context) (model.Account, error) {
	return model.Account{ID: "acc-1"}, nil
}

func (stubIdentity) ListAccounts(context.Context) ([]model.Account, error) { return nil, nil }

func (stubIdentity) ListTenants(context.Context, string) ([]model.Tenant, error) { return nil, nil }

func (stubIdentity) GetSecurityToken(context.Context, string, string) (identity.SecurityToken, error) {
	return identity.SecurityToken{}, nil
}

type stubBrowser struct{}

func (stubBrowser) ListSubscriptions(context.Context, string, string) ([]model.Subscription, error) {
	return nil, nil
}

func (stubBrowser) ListServers(context.Context, string) ([]model.Server, error) { return nil, nil }

type stubConnector struct {
	result model.ConnectResult
}

func (s stubConnector) Connect(context.Context, *model.ConnectionProfile) (model.ConnectResult, error) {
	return s.result, nil
}

type stubFirewall struct{}

func (stubFirewall) CreateFirewallRule(context.Context, azure.FirewallRuleRequest) error { return nil }

func testDeps(t *testing.T) Dependencies {
	t.Helper()
	cfg := config.Defaults()
	cfg.Server.CORS.AllowedOrigins = []string{"https://app.example.com"}
	cfg.Server.HandlerTimeout = 5 * time.Second
	cfg.Observability.Metrics.Enabled = false
	logger := zap.NewNop()

	controller := dialog.NewController(dialog.Deps{
		Capability: stubCapability{},
		Identity:   stubIdentity{},
		TokenCache: identity.NewMemoryTokenCache(),
		Browser:    stubBrowser{},
		Loader:     azure.NewLoader(stubBrowser{}, cfg.Azure, nil, logger),
		Firewall:   stubFirewall{},
		Store:      store.NewMemoryConnectionStore(),
		Connector:  stubConnector{result: model.ConnectResult{Success: true, ConnectionID: "conn-1"}},
		Logger:     logger,
	})

	return Dependencies{
		Config:     cfg,
		Controller: controller,
		Logger:     logger,
		Readiness: observability.ReadinessChecks{
			SchemaCompiled: func() bool { return true },
		},
	}
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) model.SessionSnapshot {
	t.Helper()
	var snap model.SessionSnapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	return snap
}

func openSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w := postJSON(t, r, "/dialogs/", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("open status = %d, body = %s", w.Code, w.Body.String())
	}
	snap := decodeSnapshot(t, w)
	if snap.ID == "" {
		t.Fatal("open returned no session ID")
	}
	return snap.ID
}

// --- routes ---

func TestRouter_Health(t *testing.T) {
	r := NewRouter(testDeps(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestRouter_OpenAndEditAndConnect(t *testing.T) {
	r := NewRouter(testDeps(t))
	id := openSession(t, r)

	for _, edit := range []map[string]any{
		{"field": model.FieldAuthType, "value": model.AuthSqlLogin},
		{"field": model.FieldServer, "value": "db.example.com"},
		{"field": model.FieldUser, "value": "alice"},
	} {
		w := postJSON(t, r, fmt.Sprintf("/dialogs/%s/form-action", id), edit)
		if w.Code != http.StatusOK {
			t.Fatalf("form-action %v status = %d, body = %s", edit, w.Code, w.Body.String())
		}
	}

	w := postJSON(t, r, fmt.Sprintf("/dialogs/%s/connect", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("connect status = %d, body = %s", w.Code, w.Body.String())
	}
	snap := decodeSnapshot(t, w)
	if snap.ConnectionStatus != model.StatusLoaded {
		t.Errorf("ConnectionStatus = %q, want loaded", snap.ConnectionStatus)
	}
}

func TestRouter_UnknownSessionIs404(t *testing.T) {
	r := NewRouter(testDeps(t))

	w := postJSON(t, r, "/dialogs/nope/connect", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Error == nil || body.Error.Code != model.ErrSessionNotFound {
		t.Errorf("error = %+v, want SESSION_NOT_FOUND", body.Error)
	}
}

func TestRouter_BadJSONIs400(t *testing.T) {
	r := NewRouter(testDeps(t))
	id := openSession(t, r)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/dialogs/%s/form-action", id),
		bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRouter_FormActionRequiresFieldOrButton(t *testing.T) {
	r := NewRouter(testDeps(t))
	id := openSession(t, r)

	w := postJSON(t, r, fmt.Sprintf("/dialogs/%s/form-action", id), map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRouter_SetInputModeRejectsUnknownMode(t *testing.T) {
	r := NewRouter(testDeps(t))
	id := openSession(t, r)

	w := postJSON(t, r, fmt.Sprintf("/dialogs/%s/input-mode", id), map[string]any{"mode": "telepathy"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRouter_CloseFinalTearsDownSession(t *testing.T) {
	r := NewRouter(testDeps(t))
	id := openSession(t, r)

	w := postJSON(t, r, fmt.Sprintf("/dialogs/%s/close", id), map[string]any{"final": true})
	if w.Code != http.StatusOK {
		t.Fatalf("close status = %d", w.Code)
	}

	w = postJSON(t, r, fmt.Sprintf("/dialogs/%s/connect", id), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("connect after close status = %d, want 404", w.Code)
	}
}

func TestRouter_CORSPreflightAndHeaders(t *testing.T) {
	r := NewRouter(testDeps(t))

	req := httptest.NewRequest(http.MethodOptions, "/dialogs/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if w.Header().Get("X-Correlation-Id") == "" {
		t.Error("X-Correlation-Id header missing")
	}
}

func TestRouter_CorrelationIDEchoed(t *testing.T) {
	r := NewRouter(testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-Id"); got != "abc-123" {
		t.Errorf("X-Correlation-Id = %q, want abc-123", got)
	}
}
