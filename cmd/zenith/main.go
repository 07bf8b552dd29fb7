package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/iamolegga/goqite"
	"github.com/iamolegga/goqite/jobs"

	"github.com/zenithhq/zenith/internal/auth"
	"github.com/zenithhq/zenith/internal/httptools"
	"github.com/zenithhq/zenith/internal/infra/config"
	"github.com/zenithhq/zenith/internal/infra/db"
	"github.com/zenithhq/zenith/internal/infra/logger"
	"github.com/zenithhq/zenith/internal/infra/metrics"
	"github.com/zenithhq/zenith/internal/infra/server"
	"github.com/zenithhq/zenith/internal/infra/tracing"
	_ "github.com/zenithhq/zenith/internal/infra/validation"
	"github.com/zenithhq/zenith/internal/openapi"
	"github.com/zenithhq/zenith/internal/rbac"
	"github.com/zenithhq/zenith/internal/webhooks"
	"github.com/zenithhq/zenith/pkg/gracefulshutdown"
)

const healthcheckProbePath = "/healthz"

func main() {
	//
	// Infra
	//

	gracefulshutdown.SubscribeForShutdown()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Env)
	slog.Debug("starting zenith", "config", *cfg)

	if err := db.Migrate(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Namespace); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	database, err := db.New(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Namespace)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	//
	// Services
	//

	var flavor goqite.SQLFlavor
	switch cfg.Database.Driver {
	case "postgres":
		flavor = goqite.SQLFlavorPostgreSQL
	case "sqlite":
		flavor = goqite.SQLFlavorSQLite
	default:
		slog.Error("unsupported database driver", "driver", cfg.Database.Driver)
		os.Exit(1)
	}

	deliveryQueue := goqite.New(goqite.NewOpts{
		DB:         database.DB,
		Name:       webhooks.QueueName,
		SQLFlavor:  flavor,
		MaxReceive: 5,
		Timeout:    time.Second * 15,
	})

	webhookRepo := webhooks.NewRepo(database)
	webhookService := webhooks.NewService(webhookRepo, deliveryQueue)

	rbacRepo := rbac.NewRepo(database)
	rbacCache := rbac.NewMemoryCache(cfg.RBAC.CacheCapacity, cfg.RBAC.CacheTTL)
	rbacService, err := rbac.NewService(
		gracefulshutdown.GetServerBaseContext(),
		rbacRepo,
		rbacCache,
	)
	if err != nil {
		slog.Error("failed to create rbac service", "error", err)
		os.Exit(1)
	}

	// Start delivery worker
	deliveryWorker := webhooks.NewWorker(webhookRepo, deliveryQueue, cfg.Webhooks)
	runner := jobs.NewRunner(jobs.NewRunnerOpts{
		Limit:        cfg.Webhooks.WorkerLimit,
		PollInterval: time.Second,
		Queue:        deliveryQueue,
		Log:          slog.Default(),
	})
	runner.Register(webhooks.QueueName, deliveryWorker.Handle)
	go runner.Start(gracefulshutdown.GetServerBaseContext())

	//
	// Routes
	//

	reflector := openapi.NewReflector()

	routes := []httptools.Route{
		webhooks.NewRouteSubscriptions(webhookService),
		webhooks.NewRouteSubscription(webhookService),
		webhooks.NewRouteLogs(webhookService),
		webhooks.NewRouteEvents(webhookService),
		rbac.NewRouteCheck(rbacService),
		rbac.NewRouteRoles(rbacService),
		rbac.NewRoutePermissions(rbacService),
	}
	mux := http.NewServeMux()
	hideRouteMiddleware := httptools.Hidden(
		httptools.IsLocalNetworkReq,
		http.StatusNotFound,
	)
	if cfg.Metrics.Enable {
		metricsHandler := metrics.Init(cfg.Metrics.GoMetrics)
		mux.Handle(
			"GET "+cfg.Metrics.Path,
			httptools.Wrap(metricsHandler, hideRouteMiddleware),
		)
	}
	mux.Handle(
		"GET "+healthcheckProbePath,
		httptools.Wrap(
			nil,
			hideRouteMiddleware,
			gracefulshutdown.HealthCheckMiddleware,
			db.HealthCheckMiddleware(database),
		),
	)
	for _, route := range routes {
		route.Register(mux, reflector)
	}
	openapi.NewRoute(reflector).Register(mux, reflector)

	//
	// Middlewares
	//

	// skip tracing, logging and metrics for unnecessary endpoints
	middlewares := []func(http.Handler) http.Handler{
		httptools.Skip(tracing.Middleware, healthcheckProbePath, cfg.Metrics.Path),
		httptools.Skip(logger.Middleware, healthcheckProbePath, cfg.Metrics.Path),
		logger.RecoveryMiddleware,
		httptools.Skip(
			auth.Middleware(cfg.Auth.APIKey),
			healthcheckProbePath,
			cfg.Metrics.Path,
		),
	}
	if cfg.Metrics.Enable {
		middlewares = append(
			middlewares,
			httptools.Skip(
				metrics.Middleware,
				healthcheckProbePath,
				cfg.Metrics.Path,
			),
		)
	}

	//
	// Start server
	//

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, httptools.Wrap(mux, middlewares...))
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()
	gracefulshutdown.WaitForShutdown(srv)
}
