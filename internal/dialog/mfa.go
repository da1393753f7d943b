package dialog

import (
	"context"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/form"
	"github.com/bbrooks37/vscode-mssql/internal/identity"
	"github.com/bbrooks37/vscode-mssql/model"
)

// runMFAHandler applies the cross-field side effects of account, tenant, and
// auth-type edits under Azure MFA: refresh the tenant list for the selected
// account, auto-select the first tenant, and rebuild the account field's
// action buttons. Runs on the session queue.
func (c *Controller) runMFAHandler(ctx context.Context, s *model.DialogSession) {
	if s.Profile.AuthType() != model.AuthAzureMFA {
		return
	}

	accountID := s.Profile.GetString(model.FieldAccountID)
	if accountID != "" {
		tenants, err := c.deps.Identity.ListTenants(ctx, accountID)
		if err != nil {
			// A failed lookup counts as zero tenants; the tenant field stays
			// visible and the cached list, if any, is kept.
			c.deps.Logger.Warn("tenant lookup failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		} else {
			c.cacheTenants(accountID, tenants)
			s.Tenants = tenants

			if s.Profile.GetString(model.FieldTenantID) == "" && len(tenants) > 0 {
				s.Profile.Set(model.FieldTenantID, tenants[0].ID)
			}
			if spec, ok := s.Schema.Fields[model.FieldTenantID]; ok {
				spec.Options = spec.Options[:0]
				for _, t := range tenants {
					label := t.DisplayName
					if label == "" {
						label = t.ID
					}
					spec.Options = append(spec.Options, model.FieldOption{Label: label, Value: t.ID})
				}
			}
		}
	}

	c.refreshAccountButtons(ctx, s, accountID)
}

// refreshAccountButtons rebuilds the account field's buttons: sign-in is
// always present, and a refresh-token button appears only when the cached
// token for the current account and tenant has expired.
func (c *Controller) refreshAccountButtons(ctx context.Context, s *model.DialogSession, accountID string) {
	spec, ok := s.Schema.Fields[model.FieldAccountID]
	if !ok {
		return
	}

	buttons := []model.ActionButton{{ID: model.ActionSignIn, Label: "Sign in"}}

	if accountID != "" && c.deps.TokenCache != nil {
		tenantID := s.Profile.GetString(model.FieldTenantID)
		key := identity.TokenCacheKey(accountID, tenantID)
		tok, found, err := c.deps.TokenCache.Get(ctx, key)
		if err == nil && found && identity.IsExpired(tok.Token, 0) {
			buttons = append(buttons, model.ActionButton{ID: model.ActionRefreshToken, Label: "Refresh token"})
		}
	}

	spec.Buttons = buttons
}

// handleSignIn runs the interactive sign-in flow and selects the new account.
func (c *Controller) handleSignIn(ctx context.Context, a *actor) error {
	s := a.session

	account, err := c.deps.Identity.SignIn(ctx)
	if err != nil {
		s.FormError = err.Error()
		return nil
	}

	known := false
	for _, acc := range s.Accounts {
		if acc.ID == account.ID {
			known = true
			break
		}
	}
	if !known {
		s.Accounts = append(s.Accounts, account)
	}

	s.Profile.Set(model.FieldAccountID, account.ID)
	s.Profile.Clear(model.FieldTenantID)
	s.FormError = ""

	c.runMFAHandler(ctx, s)
	form.ApplyVisibility(ctx, s.Schema, s.Profile, s.InputMode, c.tenantCounter())
	return nil
}

// handleRefreshToken drops the cached token and fetches a fresh one from the
// broker.
func (c *Controller) handleRefreshToken(ctx context.Context, a *actor) error {
	s := a.session
	accountID := s.Profile.GetString(model.FieldAccountID)
	tenantID := s.Profile.GetString(model.FieldTenantID)
	if accountID == "" {
		return model.NewBadRequestError("no account selected")
	}

	if c.deps.TokenCache != nil {
		_ = c.deps.TokenCache.Delete(ctx, identity.TokenCacheKey(accountID, tenantID))
	}

	if _, err := c.deps.Identity.GetSecurityToken(ctx, accountID, tenantID); err != nil {
		s.FormError = err.Error()
		return nil
	}
	s.FormError = ""

	c.refreshAccountButtons(ctx, s, accountID)
	return nil
}
