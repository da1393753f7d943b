package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/bbrooks37/vscode-mssql/model"
)

func TestDialogLifecycle_OpenEditConnect(t *testing.T) {
	h := NewTestHarness(t)
	snap := h.OpenDialog()

	if snap.InputMode != model.InputModeParameters {
		t.Errorf("InputMode = %q, want parameters", snap.InputMode)
	}
	if _, ok := snap.Schema.Fields[model.FieldServer]; !ok {
		t.Fatal("compiled schema missing server field")
	}

	h.SetField(snap.ID, model.FieldAuthType, model.AuthSqlLogin)
	h.SetField(snap.ID, model.FieldServer, "db.example.com")
	h.SetField(snap.ID, model.FieldUser, "alice")
	h.SetField(snap.ID, model.FieldPassword, "hunter2")
	h.SetField(snap.ID, model.FieldProfileName, "prod")

	final := h.Connect(snap.ID)
	if final.ConnectionStatus != model.StatusLoaded {
		t.Fatalf("ConnectionStatus = %q, want loaded", final.ConnectionStatus)
	}
	if len(final.Saved) != 1 {
		t.Errorf("Saved = %d profiles, want 1", len(final.Saved))
	}
	if len(final.Recent) != 1 {
		t.Errorf("Recent = %d entries, want 1", len(final.Recent))
	}

	// The connect endpoint received the cleaned profile: no connection string,
	// credentials present.
	calls := h.Backend.ConnectCalls()
	if len(calls) != 1 {
		t.Fatalf("connect calls = %d, want 1", len(calls))
	}
	if _, ok := calls[0][model.FieldConnectionString]; ok {
		t.Error("cleaned profile still carried a connection string")
	}
	if calls[0][model.FieldServer] != "db.example.com" {
		t.Errorf("connect payload server = %v", calls[0][model.FieldServer])
	}
}

func TestDialogLifecycle_ValidationBlocksRemoteCall(t *testing.T) {
	h := NewTestHarness(t)
	snap := h.OpenDialog()

	h.SetField(snap.ID, model.FieldAuthType, model.AuthSqlLogin)
	final := h.Connect(snap.ID)

	if final.ConnectionStatus != model.StatusError {
		t.Errorf("ConnectionStatus = %q, want error", final.ConnectionStatus)
	}
	if calls := h.Backend.ConnectCalls(); len(calls) != 0 {
		t.Errorf("connect calls = %d, want 0", len(calls))
	}
}

func TestRecovery_TrustCertificate(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.ScriptConnectResults(
		model.ConnectResult{Success: false, ErrorNumber: model.ProviderErrCertUntrusted, ErrorMessage: "chain not trusted"},
		model.ConnectResult{Success: true, ConnectionID: "conn-2"},
	)
	snap := h.OpenDialog()

	h.SetField(snap.ID, model.FieldAuthType, model.AuthSqlLogin)
	h.SetField(snap.ID, model.FieldServer, "db.example.com")
	h.SetField(snap.ID, model.FieldUser, "alice")

	failed := h.Connect(snap.ID)
	if failed.Recovery.Kind != model.RecoveryTrustCert {
		t.Fatalf("Recovery.Kind = %q, want trustCertificate", failed.Recovery.Kind)
	}

	resp := h.POST(fmt.Sprintf("/dialogs/%s/trust-certificate", snap.ID), nil)
	h.AssertStatus(resp, http.StatusOK)
	var final model.SessionSnapshot
	h.ParseJSON(resp, &final)

	if final.ConnectionStatus != model.StatusLoaded {
		t.Errorf("ConnectionStatus = %q, want loaded", final.ConnectionStatus)
	}

	calls := h.Backend.ConnectCalls()
	if len(calls) != 2 {
		t.Fatalf("connect calls = %d, want 2", len(calls))
	}
	if calls[1][model.FieldTrustServerCert] != true {
		t.Error("retry payload did not trust the server certificate")
	}
}

func TestRecovery_FirewallRule(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.AddAccount(model.Account{ID: "acc-1", DisplayName: "Account One"},
		model.Tenant{ID: "ten-1", DisplayName: "Tenant One"})
	h.Backend.ScriptConnectResults(
		model.ConnectResult{Success: false, ErrorNumber: model.ProviderErrFirewallBlocked,
			ErrorMessage: "Client with IP address 203.0.113.42 is not allowed to access the server"},
		model.ConnectResult{Success: true, ConnectionID: "conn-2"},
	)
	snap := h.OpenDialog()

	h.SetField(snap.ID, model.FieldAuthType, model.AuthSqlLogin)
	h.SetField(snap.ID, model.FieldServer, "myserver.database.windows.net")
	h.SetField(snap.ID, model.FieldUser, "alice")

	failed := h.Connect(snap.ID)
	if failed.Recovery.Kind != model.RecoveryFirewall {
		t.Fatalf("Recovery.Kind = %q, want addFirewallRule", failed.Recovery.Kind)
	}
	if failed.Recovery.ClientIP != "203.0.113.42" {
		t.Errorf("Recovery.ClientIP = %q, want 203.0.113.42", failed.Recovery.ClientIP)
	}

	resp := h.POST(fmt.Sprintf("/dialogs/%s/firewall-rule", snap.ID), map[string]any{
		"ruleName": "allow-dev",
		"tenantId": "ten-1",
	})
	h.AssertStatus(resp, http.StatusOK)
	var final model.SessionSnapshot
	h.ParseJSON(resp, &final)

	if final.ConnectionStatus != model.StatusLoaded {
		t.Errorf("ConnectionStatus = %q, want loaded", final.ConnectionStatus)
	}

	rules := h.Backend.FirewallRules()
	if len(rules) != 1 {
		t.Fatalf("firewall rules = %d, want 1", len(rules))
	}
	if rules[0]["serverName"] != "myserver.database.windows.net" {
		t.Errorf("rule server = %v", rules[0]["serverName"])
	}
	if rules[0]["startIp"] != "203.0.113.42" {
		t.Errorf("rule startIp = %v, want the IP parsed from the error", rules[0]["startIp"])
	}
}

func TestBrowse_LoadsSubscriptionsAndServers(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.AddAccount(model.Account{ID: "acc-1"}, model.Tenant{ID: "ten-1"})
	h.Backend.AddSubscription("acc-1",
		model.Subscription{ID: "sub-1", DisplayName: "Production", TenantID: "ten-1"},
		model.Server{Name: "srv-a", FullName: "srv-a.database.windows.net", SubscriptionID: "sub-1"},
	)
	snap := h.OpenDialog()

	resp := h.POST(fmt.Sprintf("/dialogs/%s/input-mode", snap.ID), map[string]any{"mode": "azureBrowse"})
	h.AssertStatus(resp, http.StatusOK)
	var browse model.SessionSnapshot
	h.ParseJSON(resp, &browse)

	if len(browse.Subscriptions) != 1 || browse.Subscriptions[0].ID != "sub-1" {
		t.Fatalf("Subscriptions = %+v, want [sub-1]", browse.Subscriptions)
	}

	// The server fan-out runs in the background; fetch the one subscription
	// synchronously to assert the merge path.
	resp = h.POST(fmt.Sprintf("/dialogs/%s/azure/servers", snap.ID), map[string]any{"subscriptionId": "sub-1"})
	h.AssertStatus(resp, http.StatusOK)
	var loaded model.SessionSnapshot
	h.ParseJSON(resp, &loaded)

	if len(loaded.Servers) != 1 || loaded.Servers[0].Name != "srv-a" {
		t.Errorf("Servers = %+v, want [srv-a]", loaded.Servers)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.GET("/healthz")
	h.AssertStatus(resp, http.StatusOK)
	var health map[string]any
	h.ParseJSON(resp, &health)
	if health["status"] != "ok" {
		t.Errorf("health status = %v, want ok", health["status"])
	}

	resp = h.GET("/readyz")
	h.AssertStatus(resp, http.StatusOK)
}
