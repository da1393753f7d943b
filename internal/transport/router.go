package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/internal/dialog"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config     *config.Config
	Controller *dialog.Controller
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Readiness  observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// dialog middleware chain.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler())
	}

	r.Route("/dialogs", func(r chi.Router) {
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(deps.Logger))
		r.Use(observability.TracingMiddleware)
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		c := deps.Controller
		r.Post("/", handleOpenDialog(c))

		r.Route("/{sessionId}", func(r chi.Router) {
			r.Use(SessionContext)

			r.Post("/close", handleCloseDialog(c))
			r.Post("/input-mode", handleSetInputMode(c))
			r.Post("/form-action", handleFormAction(c))
			r.Post("/load-connection", handleLoadConnection(c))
			r.Post("/connect", handleConnect(c))
			r.Post("/trust-certificate", handleTrustCertificate(c))
			r.Post("/firewall-rule", handleAddFirewallRule(c))

			r.Post("/azure/servers", handleLoadAzureServers(c))
			r.Post("/azure/filter-subscriptions", handleFilterSubscriptions(c))

			r.Post("/connections/refresh", handleRefreshConnections(c))
			r.Delete("/connections/{profileName}", handleDeleteSavedConnection(c))
			r.Post("/recents/remove", handleRemoveRecentConnection(c))
		})
	})

	return r
}
