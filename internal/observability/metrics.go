package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets   = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	remoteDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// Metrics holds all Prometheus metric instruments for the dialog engine.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Connect metrics
	ConnectAttemptsTotal  *prometheus.CounterVec
	ConnectDuration       *prometheus.HistogramVec
	RecoveryDialogsOpened *prometheus.CounterVec
	ValidationFailures    *prometheus.CounterVec

	// Schema metrics
	SchemaFieldsCompiled prometheus.Counter
	SchemaFieldsSkipped  *prometheus.CounterVec

	// Resource load metrics
	ServerLoadBatchesTotal  *prometheus.CounterVec
	ServerLoadFailuresTotal prometheus.Counter
	ServerLoadDuration      prometheus.Histogram
	SubscriptionCacheHits   prometheus.Counter
	SubscriptionCacheMisses prometheus.Counter

	// Token cache metrics
	TokenCacheHitsTotal   prometheus.Counter
	TokenCacheMissesTotal prometheus.Counter

	// Session metrics
	ActiveSessions prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mssqldlg_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mssqldlg_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		ConnectAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mssqldlg_connect_attempts_total",
			Help: "Total number of connect attempts.",
		}, []string{"input_mode", "auth_mode", "outcome"}),
		ConnectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mssqldlg_connect_duration_seconds",
			Help:    "Connect attempt duration in seconds.",
			Buckets: remoteDurationBuckets,
		}, []string{"input_mode"}),
		RecoveryDialogsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mssqldlg_recovery_dialogs_opened_total",
			Help: "Total number of recovery dialogs opened, by kind.",
		}, []string{"kind"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mssqldlg_validation_failures_total",
			Help: "Total number of whole-form validation failures.",
		}, []string{"input_mode"}),

		SchemaFieldsCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mssqldlg_schema_fields_compiled_total",
			Help: "Total number of form fields compiled from capability documents.",
		}),
		SchemaFieldsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mssqldlg_schema_fields_skipped_total",
			Help: "Total number of capability descriptors skipped.",
		}, []string{"reason"}),

		ServerLoadBatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mssqldlg_server_load_batches_total",
			Help: "Total number of server-load batches, by outcome.",
		}, []string{"outcome"}),
		ServerLoadFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mssqldlg_server_load_failures_total",
			Help: "Total number of per-subscription server load failures.",
		}),
		ServerLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mssqldlg_server_load_duration_seconds",
			Help:    "Duration of the all-subscriptions server load batch.",
			Buckets: remoteDurationBuckets,
		}),
		SubscriptionCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mssqldlg_subscription_cache_hits_total",
			Help: "Total subscription handle cache hits.",
		}),
		SubscriptionCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mssqldlg_subscription_cache_misses_total",
			Help: "Total subscription handle cache misses.",
		}),

		TokenCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mssqldlg_token_cache_hits_total",
			Help: "Total security-token cache hits.",
		}),
		TokenCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mssqldlg_token_cache_misses_total",
			Help: "Total security-token cache misses.",
		}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mssqldlg_active_sessions",
			Help: "Number of open dialog sessions.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ConnectAttemptsTotal,
		m.ConnectDuration,
		m.RecoveryDialogsOpened,
		m.ValidationFailures,
		m.SchemaFieldsCompiled,
		m.SchemaFieldsSkipped,
		m.ServerLoadBatchesTotal,
		m.ServerLoadFailuresTotal,
		m.ServerLoadDuration,
		m.SubscriptionCacheHits,
		m.SubscriptionCacheMisses,
		m.TokenCacheHitsTotal,
		m.TokenCacheMissesTotal,
		m.ActiveSessions,
	)

	return m
}

// --- Recording helpers ---

// RecordConnectAttempt records a connect attempt outcome.
func (m *Metrics) RecordConnectAttempt(inputMode, authMode, outcome string, duration time.Duration) {
	m.ConnectAttemptsTotal.WithLabelValues(inputMode, authMode, outcome).Inc()
	m.ConnectDuration.WithLabelValues(inputMode).Observe(duration.Seconds())
}

// RecordRecoveryDialog records a recovery dialog being opened.
func (m *Metrics) RecordRecoveryDialog(kind string) {
	m.RecoveryDialogsOpened.WithLabelValues(kind).Inc()
}

// RecordValidationFailure records a whole-form validation failure.
func (m *Metrics) RecordValidationFailure(inputMode string) {
	m.ValidationFailures.WithLabelValues(inputMode).Inc()
}

// RecordServerLoadBatch records a completed server-load batch.
func (m *Metrics) RecordServerLoadBatch(outcome string, failures int, duration time.Duration) {
	m.ServerLoadBatchesTotal.WithLabelValues(outcome).Inc()
	m.ServerLoadFailuresTotal.Add(float64(failures))
	m.ServerLoadDuration.Observe(duration.Seconds())
}

// OnSchemaDiagnostic implements form.DiagnosticSink.
func (m *Metrics) OnSchemaDiagnostic(_, _, reason string) {
	m.SchemaFieldsSkipped.WithLabelValues(reason).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pattern := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(duration.Seconds())
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
