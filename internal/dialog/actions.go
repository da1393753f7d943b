package dialog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/form"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

// SetInputMode switches the active field set. Entering azureBrowse triggers
// the account/subscription/server load pipeline; leaving it cancels any
// server load still in flight.
func (c *Controller) SetInputMode(ctx context.Context, sessionID string, mode model.InputMode) (model.SessionSnapshot, error) {
	switch mode {
	case model.InputModeParameters, model.InputModeConnectionString, model.InputModeAzureBrowse:
	default:
		return model.SessionSnapshot{}, model.NewBadRequestError(fmt.Sprintf("unknown input mode %q", mode))
	}

	return c.withSession(ctx, sessionID, func(a *actor) error {
		s := a.session
		if s.InputMode == mode {
			return nil
		}
		leaving := s.InputMode
		s.InputMode = mode
		form.ApplyVisibility(ctx, s.Schema, s.Profile, mode, c.tenantCounter())

		if leaving == model.InputModeAzureBrowse {
			c.deps.Loader.CancelPending()
			a.serverBatch++
		}
		if mode == model.InputModeAzureBrowse {
			return c.startBrowse(ctx, a)
		}
		return nil
	})
}

// FormAction applies one form event: either an action-button press or a
// field edit followed by validation, the MFA side-effect handler, and a
// visibility recompute.
func (c *Controller) FormAction(ctx context.Context, sessionID, fieldKey string, value any, buttonID string) (model.SessionSnapshot, error) {
	return c.withSession(ctx, sessionID, func(a *actor) error {
		if buttonID != "" {
			handler, ok := c.buttons[buttonID]
			if !ok {
				return model.NewBadRequestError(fmt.Sprintf("unknown action button %q", buttonID))
			}
			return handler(ctx, a)
		}

		s := a.session
		s.Profile.Set(fieldKey, value)
		form.ValidateField(s.Schema, s.InputMode, fieldKey, s.Profile)

		switch fieldKey {
		case model.FieldAccountID, model.FieldTenantID, model.FieldAuthType:
			c.runMFAHandler(ctx, s)
		}

		form.ApplyVisibility(ctx, s.Schema, s.Profile, s.InputMode, c.tenantCounter())
		return nil
	})
}

// LoadConnection replaces the working profile with a deep copy of a saved or
// recent one, restores its stored password, and recomputes the derived state.
func (c *Controller) LoadConnection(ctx context.Context, sessionID string, values map[string]any) (model.SessionSnapshot, error) {
	return c.withSession(ctx, sessionID, func(a *actor) error {
		s := a.session
		profile := model.ProfileFromValues(values).Clone()

		name := profile.GetString(model.FieldProfileName)
		if name != "" && profile.GetString(model.FieldPassword) == "" {
			password, err := c.deps.Store.LookupPassword(ctx, name)
			if err != nil {
				c.deps.Logger.Warn("password lookup failed", zap.String("profile", name), zap.Error(err))
			} else if password != "" {
				profile.Set(model.FieldPassword, password)
			}
		}

		s.Profile = profile
		s.EditingExisting = name != ""
		s.OriginalName = name
		s.FormError = ""
		form.ClearValidation(s.Schema)

		if profile.HasConnectionString() {
			s.InputMode = model.InputModeConnectionString
		} else {
			s.InputMode = model.InputModeParameters
		}

		c.runMFAHandler(ctx, s)
		form.ApplyVisibility(ctx, s.Schema, s.Profile, s.InputMode, c.tenantCounter())
		c.deps.Logger.Debug("connection loaded into dialog",
			zap.String("session_id", s.ID),
			zap.Any("profile", observability.RedactProfile(s.Profile)),
		)
		return nil
	})
}

// LoadAzureServers fetches the servers of a single subscription and merges
// them into the session.
func (c *Controller) LoadAzureServers(ctx context.Context, sessionID, subscriptionID string) (model.SessionSnapshot, error) {
	return c.withSession(ctx, sessionID, func(a *actor) error {
		s := a.session
		s.ServerStatus = model.StatusLoading

		servers, err := c.deps.Browser.ListServers(ctx, subscriptionID)
		if err != nil {
			c.deps.Logger.Warn("server load failed",
				zap.String("subscription_id", subscriptionID),
				zap.Error(err),
			)
			s.ServerStatus = model.StatusError
			return nil
		}

		merged := s.Servers[:0]
		for _, srv := range s.Servers {
			if srv.SubscriptionID != subscriptionID {
				merged = append(merged, srv)
			}
		}
		s.Servers = append(merged, servers...)
		for i := range s.Subscriptions {
			if s.Subscriptions[i].ID == subscriptionID {
				s.Subscriptions[i].Loaded = true
			}
		}
		s.ServerStatus = model.StatusLoaded
		return nil
	})
}

// FilterAzureSubscriptions restricts the browse view to the selected
// subscriptions and reloads all servers. An empty selection restores the
// full list.
func (c *Controller) FilterAzureSubscriptions(ctx context.Context, sessionID string, subscriptionIDs []string) (model.SessionSnapshot, error) {
	return c.withSession(ctx, sessionID, func(a *actor) error {
		s := a.session

		subs, err := c.loadAllSubscriptions(ctx, s)
		if err != nil {
			s.FormError = err.Error()
			s.SubscriptionStatus = model.StatusError
			return nil
		}

		if len(subscriptionIDs) > 0 {
			selected := make(map[string]bool, len(subscriptionIDs))
			for _, id := range subscriptionIDs {
				selected[id] = true
			}
			filtered := subs[:0]
			for _, sub := range subs {
				if selected[sub.ID] {
					filtered = append(filtered, sub)
				}
			}
			subs = filtered
		}

		s.Subscriptions = subs
		s.SubscriptionStatus = model.StatusLoaded
		c.kickServerLoad(ctx, a)
		return nil
	})
}

// RefreshConnections reloads the saved and recent lists from the store.
func (c *Controller) RefreshConnections(ctx context.Context, sessionID string) (model.SessionSnapshot, error) {
	return c.withSession(ctx, sessionID, func(a *actor) error {
		return c.reloadLists(ctx, a.session)
	})
}

// DeleteSavedConnection removes a saved profile and reloads the lists.
func (c *Controller) DeleteSavedConnection(ctx context.Context, sessionID, profileName string) (model.SessionSnapshot, error) {
	return c.withSession(ctx, sessionID, func(a *actor) error {
		if err := c.deps.Store.RemoveProfile(ctx, profileName); err != nil {
			return err
		}
		return c.reloadLists(ctx, a.session)
	})
}

// RemoveRecentConnection drops one entry from the recently-used list and
// reloads the lists.
func (c *Controller) RemoveRecentConnection(ctx context.Context, sessionID string, values map[string]any) (model.SessionSnapshot, error) {
	return c.withSession(ctx, sessionID, func(a *actor) error {
		if err := c.deps.Store.RemoveRecent(ctx, model.ProfileFromValues(values)); err != nil {
			return err
		}
		return c.reloadLists(ctx, a.session)
	})
}

func (c *Controller) reloadLists(ctx context.Context, s *model.DialogSession) error {
	saved, recent, err := c.deps.Store.LoadAll(ctx, true)
	if err != nil {
		return fmt.Errorf("reload connection lists: %w", err)
	}
	s.Saved = saved
	s.Recent = recent
	return nil
}

// --- browse pipeline ---

// startBrowse runs on the session queue. It loads accounts and subscriptions
// inline, then fans the server load out in the background so the dialog
// stays responsive.
func (c *Controller) startBrowse(ctx context.Context, a *actor) error {
	s := a.session

	accounts, err := c.deps.Identity.ListAccounts(ctx)
	if err != nil {
		s.FormError = err.Error()
		s.SubscriptionStatus = model.StatusError
		return nil
	}
	s.Accounts = accounts

	s.SubscriptionStatus = model.StatusLoading
	subs, err := c.loadAllSubscriptions(ctx, s)
	if err != nil {
		s.FormError = err.Error()
		s.SubscriptionStatus = model.StatusError
		return nil
	}
	s.Subscriptions = subs
	s.SubscriptionStatus = model.StatusLoaded

	c.kickServerLoad(ctx, a)
	return nil
}

// loadAllSubscriptions enumerates subscriptions for the selected account, or
// for every signed-in account when none is selected.
func (c *Controller) loadAllSubscriptions(ctx context.Context, s *model.DialogSession) ([]model.Subscription, error) {
	accounts := s.Accounts
	if selected := s.Profile.GetString(model.FieldAccountID); selected != "" {
		for _, acc := range accounts {
			if acc.ID == selected {
				accounts = []model.Account{acc}
				break
			}
		}
	}

	var all []model.Subscription
	for _, acc := range accounts {
		tenants := c.cachedTenants(acc.ID)
		if tenants == nil {
			fetched, err := c.deps.Identity.ListTenants(ctx, acc.ID)
			if err != nil {
				c.deps.Logger.Warn("tenant load failed", zap.String("account_id", acc.ID), zap.Error(err))
				continue
			}
			c.cacheTenants(acc.ID, fetched)
			tenants = fetched
		}

		subs, err := c.deps.Loader.LoadSubscriptions(ctx, acc.ID, tenants)
		if err != nil {
			return nil, err
		}
		all = append(all, subs...)
	}
	return all, nil
}

// kickServerLoad starts a background all-subscriptions server load for the
// session's current subscription list. A newer batch supersedes the running
// one; stale results never land in the session.
func (c *Controller) kickServerLoad(ctx context.Context, a *actor) {
	s := a.session
	s.ServerStatus = model.StatusLoading
	a.serverBatch++
	batch := a.serverBatch
	subs := append([]model.Subscription(nil), s.Subscriptions...)

	// The load outlives the triggering request.
	loadCtx := context.WithoutCancel(ctx)

	go func() {
		result, err := c.deps.Loader.LoadServers(loadCtx, subs)
		if err != nil {
			_ = a.do(loadCtx, func() error {
				if a.serverBatch == batch {
					a.session.ServerStatus = model.StatusError
				}
				return nil
			})
			return
		}
		_ = a.do(loadCtx, func() error {
			if a.serverBatch != batch {
				return nil
			}
			a.session.Servers = result.Servers
			for i := range a.session.Subscriptions {
				a.session.Subscriptions[i].Loaded = result.Loaded[a.session.Subscriptions[i].ID]
			}
			a.session.ServerStatus = model.StatusLoaded
			return nil
		})
	}()
}
