package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lucirr/dip-console/pkg/audit"
	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/config"
	"github.com/lucirr/dip-console/pkg/middleware"
	"github.com/lucirr/dip-console/pkg/observability"
	"github.com/lucirr/dip-console/pkg/oidc"
	"github.com/lucirr/dip-console/pkg/portal"
	"github.com/lucirr/dip-console/pkg/roles"
	"github.com/lucirr/dip-console/pkg/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dip-console: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting dip-console")

	ctx := context.Background()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       true,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	db, err := openPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	defer redisClient.Close()

	var recorder *audit.Recorder
	var retention *audit.RetentionJob
	if cfg.Audit.Enabled {
		recorder, err = audit.NewRecorder(db, logger)
		if err != nil {
			return err
		}
		retention = audit.NewRetentionJob(recorder, cfg.Audit.Retention, cfg.Audit.RetentionSchedule, logger)
		if err := retention.Start(); err != nil {
			return fmt.Errorf("failed to start audit retention job: %w", err)
		}
	}

	rolesClient, err := roles.NewClient(cfg.Roles, logger, metrics)
	if err != nil {
		return err
	}

	codec, err := session.NewCodec(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL)
	if err != nil {
		return err
	}
	sessionStore := session.NewStore(redisClient)
	enricher := session.NewEnricher(rolesClient, logger, metrics)

	oidcClient, err := oidc.NewClient(cfg.OIDC, logger)
	if err != nil {
		return err
	}

	rules := authz.DefaultRules()
	if cfg.Authz.RulesFile != "" {
		rules, err = authz.LoadRulesFile(cfg.Authz.RulesFile)
		if err != nil {
			return err
		}
	}
	registry, err := authz.NewRegistry(rules, cfg.Authz.PrefixMatch)
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	if metrics != nil {
		router.Use(metrics.HTTPMiddleware)
	}
	router.Use(middleware.NewSessionLoader(codec, sessionStore, cfg.Session.CookieName, logger).Handler)
	router.Use(middleware.NewRouteGuard(registry, "/login", logger, metrics, recorder).Handler)

	oidc.NewHandlers(oidcClient, enricher, codec, sessionStore, registry,
		logger, metrics, recorder, cfg.Server.BaseURL).RegisterRoutes(router)
	portal.NewHandlers(portal.NewStore(db), logger, metrics, recorder).RegisterRoutes(router)

	var handler http.Handler = router
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(router, "dip-console")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	if retention != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			retention.Stop()
			return nil
		})
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(otelProviders.Shutdown)
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.Infof("Console server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("console server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}

func openPostgres(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}
