// Package dialog owns the connection dialog session state and drives every
// exposed action through a per-session serial task queue.
package dialog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/azure"
	"github.com/bbrooks37/vscode-mssql/internal/form"
	"github.com/bbrooks37/vscode-mssql/internal/identity"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/internal/store"
	"github.com/bbrooks37/vscode-mssql/model"
)

// Connector is the remote validate-and-save collaborator. A failed attempt
// reports the provider's error number for recovery classification.
type Connector interface {
	Connect(ctx context.Context, profile *model.ConnectionProfile) (model.ConnectResult, error)
}

// CapabilitySource supplies the descriptor document the schema is compiled
// from.
type CapabilitySource interface {
	Fetch(ctx context.Context) (*model.CapabilityDocument, error)
}

// buttonHandler runs a field action button. It executes on the session's
// task queue and may mutate the session.
type buttonHandler func(ctx context.Context, a *actor) error

// Deps carries the collaborators a Controller needs.
type Deps struct {
	Capability CapabilitySource
	Identity   identity.Provider
	TokenCache identity.TokenCache
	Browser    azure.ResourceBrowser
	Loader     *azure.Loader
	Firewall   azure.FirewallClient
	Store      store.ConnectionStore
	Connector  Connector
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Controller owns every open dialog session. All session mutation funnels
// through the per-session actor so no two actions interleave their writes.
type Controller struct {
	deps      Deps
	compiler  *form.Compiler
	buttons   map[string]buttonHandler
	observers []Observer

	mu       sync.RWMutex
	sessions map[string]*actor

	// tenantMu guards the tenant cache backing the visibility engine's
	// synchronous tenant-count lookup.
	tenantMu sync.RWMutex
	tenants  map[string][]model.Tenant
}

// NewController creates a controller. The compiler reports schema diagnostics
// to the metrics sink when one is configured.
func NewController(deps Deps, observers ...Observer) *Controller {
	var sinks []form.DiagnosticSink
	if deps.Metrics != nil {
		sinks = append(sinks, deps.Metrics)
	}

	c := &Controller{
		deps:      deps,
		compiler:  form.NewCompiler(deps.Logger, sinks...),
		buttons:   make(map[string]buttonHandler),
		observers: observers,
		sessions:  make(map[string]*actor),
		tenants:   make(map[string][]model.Tenant),
	}
	c.buttons[model.ActionSignIn] = c.handleSignIn
	c.buttons[model.ActionRefreshToken] = c.handleRefreshToken
	return c
}

// --- actor: the per-session serial task queue ---

// actor serializes all access to one DialogSession. Tasks run one at a time
// on the actor goroutine; remote calls that must not block the queue run
// outside and re-enqueue their completion.
type actor struct {
	session *model.DialogSession

	tasks chan *task
	quit  chan struct{}
	done  chan struct{}

	// Mutated only on the actor goroutine.
	connectInFlight bool
	serverBatch     uint64
}

type task struct {
	fn   func() error
	done chan error
}

func newActor(session *model.DialogSession) *actor {
	a := &actor{
		session: session,
		tasks:   make(chan *task, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *actor) run() {
	defer close(a.done)
	for {
		select {
		case t := <-a.tasks:
			t.done <- t.fn()
		case <-a.quit:
			// Drain anything already queued so callers are not left hanging.
			for {
				select {
				case t := <-a.tasks:
					t.done <- model.NewSessionNotFoundError(a.session.ID)
				default:
					return
				}
			}
		}
	}
}

// do runs fn on the actor goroutine and waits for it.
func (a *actor) do(ctx context.Context, fn func() error) error {
	t := &task{fn: fn, done: make(chan error, 1)}
	select {
	case a.tasks <- t:
	case <-a.quit:
		return model.NewSessionNotFoundError(a.session.ID)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *actor) stop() {
	close(a.quit)
	<-a.done
}

// --- session lifecycle ---

// OpenOptions configure a new dialog session.
type OpenOptions struct {
	// Profile seeds the working profile, typically from a saved connection.
	// Nil opens a blank dialog.
	Profile *model.ConnectionProfile

	// EditingExisting marks the dialog as editing a saved connection, so a
	// successful connect replaces the old profile.
	EditingExisting bool
}

// OpenDialog fetches the capability document, compiles the form schema,
// loads the saved and recent connection lists, and registers a new session.
func (c *Controller) OpenDialog(ctx context.Context, opts OpenOptions) (model.SessionSnapshot, error) {
	ctx, span := observability.StartSpan(ctx, "dialog.Open")
	var err error
	defer func() { observability.EndSpanWithError(span, err) }()

	doc, err := c.deps.Capability.Fetch(ctx)
	if err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("open dialog: %w", err)
	}
	schema := c.compiler.Compile(*doc)
	if c.deps.Metrics != nil {
		c.deps.Metrics.SchemaFieldsCompiled.Add(float64(len(schema.Fields)))
	}

	saved, recent, err := c.deps.Store.LoadAll(ctx, true)
	if err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("open dialog: %w", err)
	}

	profile := opts.Profile
	if profile == nil {
		profile = model.NewConnectionProfile()
	} else {
		profile = profile.Clone()
	}

	mode := model.InputModeParameters
	if profile.HasConnectionString() {
		mode = model.InputModeConnectionString
	}

	session := &model.DialogSession{
		ID:                 uuid.NewString(),
		Profile:            profile,
		InputMode:          mode,
		Schema:             schema,
		Saved:              saved,
		Recent:             recent,
		ConnectionStatus:   model.StatusNotStarted,
		SubscriptionStatus: model.StatusNotStarted,
		ServerStatus:       model.StatusNotStarted,
		EditingExisting:    opts.EditingExisting,
		OriginalName:       profile.GetString(model.FieldProfileName),
	}

	a := newActor(session)
	var snap model.SessionSnapshot
	err = a.do(ctx, func() error {
		c.runMFAHandler(ctx, session)
		form.ApplyVisibility(ctx, session.Schema, session.Profile, session.InputMode, c.tenantCounter())
		snap = session.Snapshot()
		return nil
	})
	if err != nil {
		a.stop()
		return model.SessionSnapshot{}, err
	}

	c.mu.Lock()
	c.sessions[session.ID] = a
	c.mu.Unlock()

	if c.deps.Metrics != nil {
		c.deps.Metrics.ActiveSessions.Inc()
	}
	c.deps.Logger.Info("dialog opened",
		zap.String("session_id", session.ID),
		zap.Bool("editing_existing", opts.EditingExisting),
	)
	return snap, nil
}

// CloseDialog clears any active recovery dialog. When final is set the
// session is torn down and pending loads are cancelled.
func (c *Controller) CloseDialog(ctx context.Context, sessionID string, final bool) (model.SessionSnapshot, error) {
	a, err := c.lookup(sessionID)
	if err != nil {
		return model.SessionSnapshot{}, err
	}

	var snap model.SessionSnapshot
	err = a.do(ctx, func() error {
		a.session.Recovery = model.RecoveryDialog{}
		snap = a.session.Snapshot()
		return nil
	})
	if err != nil {
		return model.SessionSnapshot{}, err
	}

	if final {
		c.deps.Loader.CancelPending()
		c.mu.Lock()
		delete(c.sessions, sessionID)
		c.mu.Unlock()
		a.stop()
		if c.deps.Metrics != nil {
			c.deps.Metrics.ActiveSessions.Dec()
		}
		c.deps.Logger.Info("dialog closed", zap.String("session_id", sessionID))
	}
	return snap, nil
}

// SessionCount returns the number of open sessions.
func (c *Controller) SessionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Controller) lookup(sessionID string) (*actor, error) {
	c.mu.RLock()
	a, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return a, nil
}

// withSession runs fn on the session's task queue and returns the resulting
// snapshot.
func (c *Controller) withSession(ctx context.Context, sessionID string, fn func(a *actor) error) (model.SessionSnapshot, error) {
	a, err := c.lookup(sessionID)
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	var snap model.SessionSnapshot
	err = a.do(ctx, func() error {
		ferr := fn(a)
		snap = a.session.Snapshot()
		return ferr
	})
	return snap, err
}

// tenantCounter exposes the tenant cache to the visibility engine. A miss
// counts as zero tenants.
func (c *Controller) tenantCounter() form.TenantCounter {
	return func(_ context.Context, accountID string) (int, error) {
		c.tenantMu.RLock()
		defer c.tenantMu.RUnlock()
		tenants, ok := c.tenants[accountID]
		if !ok {
			return 0, fmt.Errorf("no tenants cached for account %q", accountID)
		}
		return len(tenants), nil
	}
}

func (c *Controller) cacheTenants(accountID string, tenants []model.Tenant) {
	c.tenantMu.Lock()
	c.tenants[accountID] = tenants
	c.tenantMu.Unlock()
}

func (c *Controller) cachedTenants(accountID string) []model.Tenant {
	c.tenantMu.RLock()
	defer c.tenantMu.RUnlock()
	return c.tenants[accountID]
}

func (c *Controller) notify(ctx context.Context, event Event) {
	event.ID = uuid.NewString()
	for _, obs := range c.observers {
		obs.OnDialogEvent(ctx, event)
	}
}
