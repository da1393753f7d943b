package capability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/model"
)

func testClient(t *testing.T, handler http.HandlerFunc, ttl time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.CapabilityConfig{
		BaseURL:  server.URL,
		Timeout:  2 * time.Second,
		CacheTTL: ttl,
	}, zap.NewNop())
}

func documentHandler(hits *atomic.Int32, doc model.CapabilityDocument) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

func TestFetch_ServesFromCacheWithinTTL(t *testing.T) {
	var hits atomic.Int32
	doc := model.CapabilityDocument{
		Options: []model.OptionDescriptor{{Name: "server", ValueKind: model.ValueKindString}},
	}
	c := testClient(t, documentHandler(&hits, doc), time.Minute)
	ctx := context.Background()

	first, err := c.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(first.Options) != 1 || first.Options[0].Name != "server" {
		t.Fatalf("document = %+v", first)
	}

	if _, err := c.Fetch(ctx); err != nil {
		t.Fatalf("second Fetch error: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("remote hits = %d, want 1 (cached)", got)
	}
}

func TestFetch_InvalidateForcesRefetch(t *testing.T) {
	var hits atomic.Int32
	c := testClient(t, documentHandler(&hits, model.CapabilityDocument{}), time.Minute)
	ctx := context.Background()

	if _, err := c.Fetch(ctx); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	c.Invalidate()
	if _, err := c.Fetch(ctx); err != nil {
		t.Fatalf("Fetch after invalidate error: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("remote hits = %d, want 2", got)
	}
}

func TestFetch_ExpiredTTLRefetches(t *testing.T) {
	var hits atomic.Int32
	c := testClient(t, documentHandler(&hits, model.CapabilityDocument{}), -time.Second)
	ctx := context.Background()

	c.Fetch(ctx)
	c.Fetch(ctx)
	if got := hits.Load(); got != 2 {
		t.Errorf("remote hits = %d, want 2 (TTL already elapsed)", got)
	}
}

func TestFetch_ServerErrorIsBackendUnavailable(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, time.Minute)

	_, err := c.Fetch(context.Background())
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok || ee.Code != model.ErrBackendUnavailable {
		t.Errorf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
}

func TestFetch_NonJSONBodyFails(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}, time.Minute)

	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("Fetch accepted a non-JSON body")
	}
}

func TestConnect_MapsProviderResult(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != connectPath {
			http.NotFound(w, r)
			return
		}
		var values map[string]any
		json.NewDecoder(r.Body).Decode(&values)
		if values["server"] != "db.example.com" {
			t.Errorf("payload server = %v", values["server"])
		}
		json.NewEncoder(w).Encode(model.ConnectResult{
			Success:      false,
			ErrorNumber:  model.ProviderErrFirewallBlocked,
			ErrorMessage: "blocked",
		})
	}, time.Minute)

	p := model.NewConnectionProfile()
	p.Set(model.FieldServer, "db.example.com")

	result, err := c.Connect(context.Background(), p)
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	if result.Success || result.ErrorNumber != model.ProviderErrFirewallBlocked {
		t.Errorf("result = %+v, want firewall failure", result)
	}
}

func TestHealthCheck_UsesCachedDocument(t *testing.T) {
	var hits atomic.Int32
	c := testClient(t, documentHandler(&hits, model.CapabilityDocument{}), time.Minute)
	ctx := context.Background()

	if _, err := c.Fetch(ctx); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if err := c.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck error: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("remote hits = %d, want 1", got)
	}
}
