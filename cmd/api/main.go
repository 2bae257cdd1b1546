package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stayhq-ng/hostelpay-backend/api/routes"
	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/internal/admins"
	"github.com/stayhq-ng/hostelpay-backend/internal/payments"
	"github.com/stayhq-ng/hostelpay-backend/internal/reconcile"
	"github.com/stayhq-ng/hostelpay-backend/internal/students"
	paycashlesswebhook "github.com/stayhq-ng/hostelpay-backend/internal/webhooks/paycashless"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/metrics"
	"github.com/stayhq-ng/hostelpay-backend/pkg/migrate"
	"github.com/stayhq-ng/hostelpay-backend/pkg/paycashless"
	"github.com/stayhq-ng/hostelpay-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := paycashless.NewClient(cfg.Paycashless)
	if err != nil {
		logg.Error(context.Background(), "failed to create paycashless client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	paymentsRepo := payments.NewRepository(dbClient.DB())
	studentsRepo := students.NewRepository(dbClient.DB())
	activityRepo := activity.NewRepository(dbClient.DB())
	adminsRepo := admins.NewRepository(dbClient.DB())

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:        paymentsRepo,
		Students:    studentsRepo,
		Gateway:     gateway,
		Activity:    activityRepo,
		Payment:     cfg.Payment,
		Paycashless: cfg.Paycashless,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		DB:       dbClient,
		Payments: paymentsRepo,
		Activity: activityRepo,
		Gateway:  gateway,
		Payment:  cfg.Payment,
		Metrics:  syncMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}

	studentsService, err := students.NewService(students.ServiceParams{
		Repo:     studentsRepo,
		Payments: paymentsService,
		Activity: activityRepo,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create students service", err)
		os.Exit(1)
	}

	adminsService, err := admins.NewService(admins.ServiceParams{
		Repo:     adminsRepo,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admins service", err)
		os.Exit(1)
	}

	webhookService, err := paycashlesswebhook.NewService(paycashlesswebhook.ServiceParams{
		DB:       dbClient,
		Payments: paymentsRepo,
		Activity: activityRepo,
		Payment:  cfg.Payment,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := paycashlesswebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			paymentsService,
			studentsService,
			adminsService,
			engine,
			activityRepo,
			webhookService,
			webhookGuard,
			registry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
