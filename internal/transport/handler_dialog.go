package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bbrooks37/vscode-mssql/internal/dialog"
	"github.com/bbrooks37/vscode-mssql/model"
)

func handleOpenDialog(c *dialog.Controller) http.HandlerFunc {
	type openRequest struct {
		Profile         map[string]any `json:"profile"`
		EditingExisting bool           `json:"editingExisting"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req openRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}

		opts := dialog.OpenOptions{EditingExisting: req.EditingExisting}
		if len(req.Profile) > 0 {
			opts.Profile = model.ProfileFromValues(req.Profile)
		}

		snap, err := c.OpenDialog(r.Context(), opts)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, snap)
	}
}

func handleCloseDialog(c *dialog.Controller) http.HandlerFunc {
	type closeRequest struct {
		Final bool `json:"final"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req closeRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}

		snap, err := c.CloseDialog(r.Context(), chi.URLParam(r, "sessionId"), req.Final)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleSetInputMode(c *dialog.Controller) http.HandlerFunc {
	type modeRequest struct {
		Mode model.InputMode `json:"mode"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req modeRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}

		snap, err := c.SetInputMode(r.Context(), chi.URLParam(r, "sessionId"), req.Mode)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleFormAction(c *dialog.Controller) http.HandlerFunc {
	type actionRequest struct {
		Field    string `json:"field"`
		Value    any    `json:"value"`
		ButtonID string `json:"buttonId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.Field == "" && req.ButtonID == "" {
			WriteError(w, model.NewBadRequestError("field or buttonId is required"))
			return
		}

		snap, err := c.FormAction(r.Context(), chi.URLParam(r, "sessionId"), req.Field, req.Value, req.ButtonID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleLoadConnection(c *dialog.Controller) http.HandlerFunc {
	type loadRequest struct {
		Profile map[string]any `json:"profile"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req loadRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}

		snap, err := c.LoadConnection(r.Context(), chi.URLParam(r, "sessionId"), req.Profile)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleConnect(c *dialog.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := c.Connect(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleTrustCertificate(c *dialog.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := c.TrustCertificate(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleAddFirewallRule(c *dialog.Controller) http.HandlerFunc {
	type firewallRequest struct {
		RuleName string `json:"ruleName"`
		StartIP  string `json:"startIp"`
		EndIP    string `json:"endIp"`
		TenantID string `json:"tenantId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req firewallRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.RuleName == "" {
			WriteError(w, model.NewBadRequestError("ruleName is required"))
			return
		}

		snap, err := c.AddFirewallRule(r.Context(), chi.URLParam(r, "sessionId"),
			req.RuleName, req.StartIP, req.EndIP, req.TenantID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleLoadAzureServers(c *dialog.Controller) http.HandlerFunc {
	type serversRequest struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req serversRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.SubscriptionID == "" {
			WriteError(w, model.NewBadRequestError("subscriptionId is required"))
			return
		}

		snap, err := c.LoadAzureServers(r.Context(), chi.URLParam(r, "sessionId"), req.SubscriptionID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleFilterSubscriptions(c *dialog.Controller) http.HandlerFunc {
	type filterRequest struct {
		SubscriptionIDs []string `json:"subscriptionIds"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req filterRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}

		snap, err := c.FilterAzureSubscriptions(r.Context(), chi.URLParam(r, "sessionId"), req.SubscriptionIDs)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleRefreshConnections(c *dialog.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := c.RefreshConnections(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleDeleteSavedConnection(c *dialog.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := c.DeleteSavedConnection(r.Context(), chi.URLParam(r, "sessionId"), chi.URLParam(r, "profileName"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func handleRemoveRecentConnection(c *dialog.Controller) http.HandlerFunc {
	type removeRequest struct {
		Profile map[string]any `json:"profile"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req removeRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}

		snap, err := c.RemoveRecentConnection(r.Context(), chi.URLParam(r, "sessionId"), req.Profile)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}
