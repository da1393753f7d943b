package dialog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/azure"
	"github.com/bbrooks37/vscode-mssql/internal/form"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

// Clean returns a deep copy of the profile with every value irrelevant to the
// current input mode removed: hidden fields are cleared; in parameters and
// browse modes the connection string is cleared; in connection-string mode
// everything except the connection string and the profile name is cleared.
// Clean is idempotent.
func Clean(schema *model.FormSchema, mode model.InputMode, profile *model.ConnectionProfile) *model.ConnectionProfile {
	p := profile.Clone()

	if mode == model.InputModeConnectionString {
		for _, key := range p.Keys() {
			if key != model.FieldConnectionString && key != model.FieldProfileName {
				p.Clear(key)
			}
		}
		return p
	}

	for key, spec := range schema.Fields {
		if spec.Hidden {
			p.Clear(key)
		}
	}
	p.Clear(model.FieldConnectionString)
	return p
}

// Connect runs the connect attempt: clear stale errors, clean the profile,
// validate the whole form, invoke the remote validate-and-save collaborator,
// and classify the outcome. A second Connect while one is suspended at the
// remote call is rejected with a form-level error and makes no remote call.
func (c *Controller) Connect(ctx context.Context, sessionID string) (model.SessionSnapshot, error) {
	a, err := c.lookup(sessionID)
	if err != nil {
		return model.SessionSnapshot{}, err
	}

	ctx, span := observability.StartSpan(ctx, "dialog.Connect",
		observability.AttrSessionID.String(sessionID),
	)
	defer span.End()

	start := time.Now()
	var (
		cleaned  *model.ConnectionProfile
		mode     model.InputMode
		authMode string
		stop     bool
		snap     model.SessionSnapshot
	)

	// Phase 1 on the session queue: guard, reset, clean, validate.
	err = a.do(ctx, func() error {
		s := a.session
		mode = s.InputMode
		authMode = s.Profile.AuthType()

		if a.connectInFlight {
			s.FormError = "A connection attempt is already in progress"
			stop = true
			snap = s.Snapshot()
			return model.NewConnectInFlightError()
		}

		s.FormError = ""
		s.Recovery = model.RecoveryDialog{}
		form.ClearValidation(s.Schema)
		s.ConnectionStatus = model.StatusLoading

		cleaned = Clean(s.Schema, s.InputMode, s.Profile)
		c.deps.Logger.Debug("profile cleaned for connect",
			zap.String("session_id", s.ID),
			zap.Any("profile", observability.RedactProfile(cleaned)),
		)
		invalid := form.ValidateForm(s.Schema, s.InputMode, cleaned)
		if len(invalid) > 0 {
			s.ConnectionStatus = model.StatusError
			stop = true
			if c.deps.Metrics != nil {
				c.deps.Metrics.RecordValidationFailure(string(s.InputMode))
			}
			snap = s.Snapshot()
			return nil
		}

		a.connectInFlight = true
		return nil
	})
	if stop || err != nil {
		return snap, err
	}

	// Suspension point: the remote validate-and-save call runs off the queue
	// so the dialog stays responsive.
	result, rerr := c.deps.Connector.Connect(ctx, cleaned)

	// Phase 2 on the session queue: classify and finish.
	finishCtx := context.WithoutCancel(ctx)
	err = a.do(finishCtx, func() error {
		s := a.session
		a.connectInFlight = false

		if rerr != nil {
			s.FormError = rerr.Error()
			s.ConnectionStatus = model.StatusError
			c.emitConnect(finishCtx, s, mode, authMode, false, "localFailure", rerr.Error(), start)
			snap = s.Snapshot()
			return nil
		}

		if !result.Success {
			c.classifyFailure(finishCtx, s, result, mode, authMode, start)
			snap = s.Snapshot()
			return nil
		}

		c.finishSuccess(finishCtx, s, cleaned, result)
		c.emitConnect(finishCtx, s, mode, authMode, true, "success", "", start)
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

// classifyFailure routes a provider failure to the matching recovery dialog
// or surfaces it as a form error.
func (c *Controller) classifyFailure(ctx context.Context, s *model.DialogSession, result model.ConnectResult, mode model.InputMode, authMode string, start time.Time) {
	s.ConnectionStatus = model.StatusError

	switch result.ErrorNumber {
	case model.ProviderErrCertUntrusted:
		// Expected user flow, not a fault: no diagnostic event.
		s.Recovery = model.RecoveryDialog{
			Kind:    model.RecoveryTrustCert,
			Message: result.ErrorMessage,
		}
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordRecoveryDialog(string(model.RecoveryTrustCert))
		}

	case model.ProviderErrFirewallBlocked:
		accountID := s.Profile.GetString(model.FieldAccountID)
		tenants := c.cachedTenants(accountID)
		if tenants == nil {
			tenants = s.Tenants
		}
		s.Recovery = model.RecoveryDialog{
			Kind:       model.RecoveryFirewall,
			Message:    result.ErrorMessage,
			ClientIP:   azure.ClientIPFromError(result.ErrorMessage),
			ServerName: s.Profile.GetString(model.FieldServer),
			Tenants:    tenants,
		}
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordRecoveryDialog(string(model.RecoveryFirewall))
		}

	default:
		s.FormError = result.ErrorMessage
		c.emitConnect(ctx, s, mode, authMode, false, "providerError", result.ErrorMessage, start)
	}
}

// finishSuccess runs the post-connect persistence path: replace the edited
// profile, save, record the recent entry, and refresh the lists.
func (c *Controller) finishSuccess(ctx context.Context, s *model.DialogSession, cleaned *model.ConnectionProfile, result model.ConnectResult) {
	name := cleaned.GetString(model.FieldProfileName)

	if s.EditingExisting && s.OriginalName != "" && s.OriginalName != name {
		if err := c.deps.Store.RemoveProfile(ctx, s.OriginalName); err != nil {
			c.deps.Logger.Warn("removing replaced profile failed",
				zap.String("profile", s.OriginalName),
				zap.Error(err),
			)
		}
	}

	if name != "" {
		if err := c.deps.Store.Save(ctx, cleaned); err != nil {
			c.deps.Logger.Warn("saving profile failed", zap.String("profile", name), zap.Error(err))
		}
	}
	if err := c.deps.Store.AddRecent(ctx, cleaned); err != nil {
		c.deps.Logger.Warn("recording recent connection failed", zap.Error(err))
	}

	if err := c.reloadLists(ctx, s); err != nil {
		c.deps.Logger.Warn("reloading lists failed", zap.Error(err))
	}

	s.ConnectionStatus = model.StatusLoaded
	s.Recovery = model.RecoveryDialog{}
	c.deps.Logger.Info("connection established",
		zap.String("session_id", s.ID),
		zap.String("connection_id", result.ConnectionID),
	)
}

// TrustCertificate confirms the trust-certificate recovery dialog: the trust
// flag is set on the profile and the connect flow retries. Without a pending
// trust-certificate dialog the call fails with RECOVERY_PENDING.
func (c *Controller) TrustCertificate(ctx context.Context, sessionID string) (model.SessionSnapshot, error) {
	_, err := c.withSession(ctx, sessionID, func(a *actor) error {
		if a.session.Recovery.Kind != model.RecoveryTrustCert {
			return model.NewRecoveryPendingError(model.RecoveryTrustCert)
		}
		a.session.Profile.Set(model.FieldTrustServerCert, true)
		a.session.Recovery = model.RecoveryDialog{}
		return nil
	})
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	return c.Connect(ctx, sessionID)
}

// AddFirewallRule creates a firewall rule scoped to the given tenant and, on
// any outcome, retries the connect flow. A creation failure surfaces as a
// form error while the recovery dialog closes. Without a pending firewall
// dialog the call fails with RECOVERY_PENDING.
func (c *Controller) AddFirewallRule(ctx context.Context, sessionID, ruleName, startIP, endIP, tenantID string) (model.SessionSnapshot, error) {
	a, err := c.lookup(sessionID)
	if err != nil {
		return model.SessionSnapshot{}, err
	}

	var req azure.FirewallRuleRequest
	err = a.do(ctx, func() error {
		s := a.session
		if s.Recovery.Kind != model.RecoveryFirewall {
			return model.NewRecoveryPendingError(model.RecoveryFirewall)
		}
		req = azure.FirewallRuleRequest{
			ServerName: s.Profile.GetString(model.FieldServer),
			RuleName:   ruleName,
			StartIP:    startIP,
			EndIP:      endIP,
			AccountID:  s.Profile.GetString(model.FieldAccountID),
			TenantID:   tenantID,
		}
		if req.StartIP == "" {
			req.StartIP = s.Recovery.ClientIP
		}
		if req.EndIP == "" {
			req.EndIP = req.StartIP
		}
		s.Recovery = model.RecoveryDialog{}
		return nil
	})
	if err != nil {
		return model.SessionSnapshot{}, err
	}

	// Token context scoped to the tenant the rule targets.
	if req.AccountID != "" && tenantID != "" {
		if _, terr := c.deps.Identity.GetSecurityToken(ctx, req.AccountID, tenantID); terr != nil {
			c.deps.Logger.Warn("token fetch for firewall rule failed", zap.Error(terr))
		}
	}

	if ferr := c.deps.Firewall.CreateFirewallRule(ctx, req); ferr != nil {
		_, err = c.withSession(ctx, sessionID, func(a *actor) error {
			a.session.FormError = ferr.Error()
			return nil
		})
		if err != nil {
			return model.SessionSnapshot{}, err
		}
	}

	return c.Connect(ctx, sessionID)
}

// emitConnect publishes one connect diagnostic event. Raw profile values
// never ride along.
func (c *Controller) emitConnect(ctx context.Context, s *model.DialogSession, mode model.InputMode, authMode string, success bool, outcome, errMsg string, start time.Time) {
	duration := time.Since(start)
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordConnectAttempt(string(mode), authMode, outcome, duration)
	}
	c.notify(ctx, Event{
		SessionID: s.ID,
		Action:    "connect",
		InputMode: mode,
		AuthMode:  authMode,
		Success:   success,
		Outcome:   outcome,
		Duration:  duration,
		Error:     errMsg,
	})
}
