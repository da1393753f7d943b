// Package main is the entry point for the connection dialog server. It wires
// all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/internal/azure"
	"github.com/bbrooks37/vscode-mssql/internal/capability"
	"github.com/bbrooks37/vscode-mssql/internal/config"
	"github.com/bbrooks37/vscode-mssql/internal/dialog"
	"github.com/bbrooks37/vscode-mssql/internal/identity"
	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/internal/store"
	"github.com/bbrooks37/vscode-mssql/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "mssql-dialogd", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Initialize the connection store.
	connStore, storeCloser, err := buildConnectionStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("connection store initialization failed", zap.Error(err))
		return 1
	}

	// Step 5: Initialize the security-token cache.
	tokenCache, tokenCloser := buildTokenCache(cfg.Identity.TokenCache, logger)

	// Step 6: Build the remote collaborators.
	capClient := capability.NewClient(cfg.Capability, logger)
	identityProvider := identity.NewHTTPProvider(cfg.Identity, tokenCache, metrics, logger)

	browser := azure.NewHTTPBrowser(cfg.Azure)
	cachedBrowser := azure.NewSubscriptionCache(browser, cfg.Azure.SubscriptionTTL, metrics)
	loader := azure.NewLoader(cachedBrowser, cfg.Azure, metrics, logger)

	// Step 7: Build the dialog controller.
	controller := dialog.NewController(dialog.Deps{
		Capability: capClient,
		Identity:   identityProvider,
		TokenCache: tokenCache,
		Browser:    cachedBrowser,
		Loader:     loader,
		Firewall:   browser,
		Store:      connStore,
		Connector:  capClient,
		Metrics:    metrics,
		Logger:     logger,
	}, dialog.NewLoggingObserver(logger))

	// Step 8: Build readiness checks and the HTTP router.
	readiness := observability.ReadinessChecks{
		SchemaCompiled: func() bool {
			_, err := capClient.Fetch(context.Background())
			return err == nil
		},
	}
	if hc, ok := connStore.(observability.HealthChecker); ok {
		readiness.ConnectionStore = hc
	}
	if hc, ok := tokenCache.(observability.HealthChecker); ok {
		readiness.TokenCache = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:     cfg,
		Controller: controller,
		Metrics:    metrics,
		Logger:     logger,
		Readiness:  readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 9: Start the HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store_driver", cfg.Store.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel any server loads still running.
	loader.CancelPending()

	// Close stores.
	if storeCloser != nil {
		storeCloser()
	}
	if tokenCloser != nil {
		tokenCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildConnectionStore creates the persisted-connection store based on config.
func buildConnectionStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.ConnectionStore, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory connection store")
		return store.NewMemoryConnectionStore(), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			if cfg.DSNEnv != "" {
				return nil, nil, fmt.Errorf("connection store: %s environment variable not set", cfg.DSNEnv)
			}
			logger.Warn("connection store DSN not configured, using in-memory store")
			return store.NewMemoryConnectionStore(), nil, nil
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connection store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connection store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connection store: ping: %w", err)
		}

		return store.NewPgConnectionStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported connection store driver: %q", cfg.Driver)
	}
}

// buildTokenCache creates the security-token cache based on config.
func buildTokenCache(cfg config.TokenCacheConfig, logger *zap.Logger) (identity.TokenCache, func()) {
	switch cfg.Driver {
	case "redis":
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			logger.Warn("token cache redis address not configured, using in-memory cache")
			return identity.NewMemoryTokenCache(), nil
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		return identity.NewRedisTokenCache(client), func() { client.Close() }
	default:
		logger.Info("using in-memory token cache")
		return identity.NewMemoryTokenCache(), nil
	}
}
