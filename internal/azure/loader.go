package azure

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

// ServerLoadResult is the outcome of one all-subscriptions server load.
type ServerLoadResult struct {
	// Servers holds every server fetched, ordered by subscription input
	// order and then by the order the service returned them.
	Servers []model.Server

	// Loaded maps subscription ID to whether its servers were fetched.
	// A subscription whose fetch failed stays false and its servers are
	// simply absent; the batch as a whole still succeeds.
	Loaded map[string]bool

	// Failures counts subscriptions whose fetch failed.
	Failures int
}

// Loader fans out resource fetches across subscriptions. Starting a new
// server-load batch cancels any batch still in flight; the superseded call
// returns the cancellation error and its partial results are discarded.
type Loader struct {
	browser     ResourceBrowser
	concurrency int
	timeout     time.Duration
	metrics     *observability.Metrics
	logger      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewLoader creates a loader from configuration.
func NewLoader(browser ResourceBrowser, cfg config.AzureConfig, metrics *observability.Metrics, logger *zap.Logger) *Loader {
	concurrency := cfg.LoadConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	timeout := cfg.ServerLoadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		browser:     browser,
		concurrency: concurrency,
		timeout:     timeout,
		metrics:     metrics,
		logger:      logger,
	}
}

// LoadSubscriptions fetches subscriptions for every tenant of the account
// concurrently. A tenant whose fetch fails contributes no subscriptions but
// does not fail the batch.
func (l *Loader) LoadSubscriptions(ctx context.Context, accountID string, tenants []model.Tenant) ([]model.Subscription, error) {
	results := make([][]model.Subscription, len(tenants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, tenant := range tenants {
		g.Go(func() error {
			subs, err := l.browser.ListSubscriptions(gctx, accountID, tenant.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.logger.Warn("subscription load failed",
					zap.String("tenant_id", tenant.ID),
					zap.Error(err),
				)
				return nil
			}
			results[i] = subs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.Subscription
	for _, subs := range results {
		all = append(all, subs...)
	}
	return all, nil
}

// LoadServers fetches servers for every subscription concurrently. A second
// call supersedes the first: the in-flight batch is cancelled and its caller
// receives the cancellation error.
func (l *Loader) LoadServers(ctx context.Context, subs []model.Subscription) (*ServerLoadResult, error) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	ctx, cancelTimeout := context.WithTimeout(ctx, l.timeout)
	defer cancelTimeout()

	start := time.Now()
	results := make([][]model.Server, len(subs))
	loaded := make([]bool, len(subs))
	var failMu sync.Mutex
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, sub := range subs {
		g.Go(func() error {
			servers, err := l.browser.ListServers(gctx, sub.ID)
			if err != nil {
				// A superseding batch cancels this one; propagate that.
				// Any other failure is isolated to this subscription.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.logger.Warn("server load failed",
					zap.String("subscription_id", sub.ID),
					zap.Error(err),
				)
				failMu.Lock()
				failures++
				failMu.Unlock()
				return nil
			}
			results[i] = servers
			loaded[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if l.metrics != nil {
			l.metrics.RecordServerLoadBatch("superseded", 0, time.Since(start))
		}
		return nil, err
	}

	out := &ServerLoadResult{
		Loaded:   make(map[string]bool, len(subs)),
		Failures: failures,
	}
	for i, sub := range subs {
		out.Loaded[sub.ID] = loaded[i]
		out.Servers = append(out.Servers, results[i]...)
	}

	if l.metrics != nil {
		outcome := "complete"
		if failures > 0 {
			outcome = "partial"
		}
		l.metrics.RecordServerLoadBatch(outcome, failures, time.Since(start))
	}
	return out, nil
}

// CancelPending cancels any server-load batch still in flight.
func (l *Loader) CancelPending() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()
}
