// Package integration provides a reusable test harness for end-to-end
// testing of the connection dialog server. It starts the full HTTP router
// backed by real HTTP clients pointed at a mock provider backend, with
// in-memory stores.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/azure"
	"github.com/bbrooks37/vscode-mssql/internal/capability"
	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/internal/dialog"
	"github.com/bbrooks37/vscode-mssql/internal/identity"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/internal/store"
	"github.com/bbrooks37/vscode-mssql/internal/transport"
	"github.com/bbrooks37/vscode-mssql/model"
)

// TestHarness encapsulates a fully wired dialog server with a mock provider
// backend.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	Backend    *MockBackend
	Store      *store.MemoryConnectionStore
	TokenCache *identity.MemoryTokenCache
	Controller *dialog.Controller
}

// NewTestHarness starts the backend and the dialog server. Both are torn down
// via t.Cleanup.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	backend := NewMockBackend(t)
	logger := zap.NewNop()

	cfg := config.Defaults()
	cfg.Capability.BaseURL = backend.URL()
	cfg.Capability.CacheTTL = time.Minute
	cfg.Identity.BaseURL = backend.URL()
	cfg.Azure.BaseURL = backend.URL()
	cfg.Azure.ServerLoadTimeout = 5 * time.Second
	cfg.Server.HandlerTimeout = 10 * time.Second
	cfg.Observability.Metrics.Enabled = false

	memStore := store.NewMemoryConnectionStore()
	tokenCache := identity.NewMemoryTokenCache()

	capClient := capability.NewClient(cfg.Capability, logger)
	provider := identity.NewHTTPProvider(cfg.Identity, tokenCache, nil, logger)
	browser := azure.NewHTTPBrowser(cfg.Azure)
	loader := azure.NewLoader(browser, cfg.Azure, nil, logger)

	controller := dialog.NewController(dialog.Deps{
		Capability: capClient,
		Identity:   provider,
		TokenCache: tokenCache,
		Browser:    browser,
		Loader:     loader,
		Firewall:   browser,
		Store:      memStore,
		Connector:  capClient,
		Logger:     logger,
	})

	router := transport.NewRouter(transport.Dependencies{
		Config:     cfg,
		Controller: controller,
		Logger:     logger,
		Readiness: observability.ReadinessChecks{
			SchemaCompiled: func() bool { return true },
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestHarness{
		t:          t,
		server:     server,
		Backend:    backend,
		Store:      memStore,
		TokenCache: tokenCache,
		Controller: controller,
	}
}

// POST sends a JSON request to the dialog server.
func (h *TestHarness) POST(path string, body any) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encoding request body: %v", err)
		}
	}
	resp, err := http.Post(h.server.URL+path, "application/json", &buf)
	if err != nil {
		h.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// GET sends a GET request to the dialog server.
func (h *TestHarness) GET(path string) *http.Response {
	h.t.Helper()
	resp, err := http.Get(h.server.URL + path)
	if err != nil {
		h.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// ParseJSON decodes and closes a response body.
func (h *TestHarness) ParseJSON(resp *http.Response, dst any) {
	h.t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		h.t.Fatalf("decoding response: %v", err)
	}
}

// AssertStatus fails the test when the response status differs.
func (h *TestHarness) AssertStatus(resp *http.Response, want int) {
	h.t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		h.t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

// OpenDialog opens a session and returns its snapshot.
func (h *TestHarness) OpenDialog() model.SessionSnapshot {
	h.t.Helper()
	resp := h.POST("/dialogs/", nil)
	h.AssertStatus(resp, http.StatusCreated)
	var snap model.SessionSnapshot
	h.ParseJSON(resp, &snap)
	return snap
}

// SetField applies one form edit and returns the resulting snapshot.
func (h *TestHarness) SetField(sessionID, field string, value any) model.SessionSnapshot {
	h.t.Helper()
	resp := h.POST(fmt.Sprintf("/dialogs/%s/form-action", sessionID),
		map[string]any{"field": field, "value": value})
	h.AssertStatus(resp, http.StatusOK)
	var snap model.SessionSnapshot
	h.ParseJSON(resp, &snap)
	return snap
}

// Connect runs the connect flow and returns the resulting snapshot.
func (h *TestHarness) Connect(sessionID string) model.SessionSnapshot {
	h.t.Helper()
	resp := h.POST(fmt.Sprintf("/dialogs/%s/connect", sessionID), nil)
	h.AssertStatus(resp, http.StatusOK)
	var snap model.SessionSnapshot
	h.ParseJSON(resp, &snap)
	return snap
}
