package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stayhq-ng/hostelpay-backend/api/controllers"
	webhookcontrollers "github.com/stayhq-ng/hostelpay-backend/api/controllers/webhooks"
	"github.com/stayhq-ng/hostelpay-backend/api/middleware"
	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/internal/admins"
	"github.com/stayhq-ng/hostelpay-backend/internal/payments"
	"github.com/stayhq-ng/hostelpay-backend/internal/reconcile"
	"github.com/stayhq-ng/hostelpay-backend/internal/students"
	paycashlesswebhook "github.com/stayhq-ng/hostelpay-backend/internal/webhooks/paycashless"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	paymentsService *payments.Service,
	studentsService *students.Service,
	adminsService *admins.Service,
	engine *reconcile.Engine,
	activityRepo activity.Repository,
	webhookService *paycashlesswebhook.Service,
	webhookGuard *paycashlesswebhook.IdempotencyGuard,
	metricsRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.PublicRateLimit.LoginWindow,
		cfg.PublicRateLimit.LoginIPLimit,
		cfg.PublicRateLimit.LoginEmailLimit,
	)
	checkStatusPolicy := middleware.NewAuthRateLimitPolicy(
		"check_status",
		cfg.PublicRateLimit.CheckStatusWindow,
		cfg.PublicRateLimit.CheckStatusIPLimit,
		cfg.PublicRateLimit.CheckStatusEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			r.Post("/initiate", controllers.PaymentInitiate(paymentsService, logg))
			r.With(middleware.AuthRateLimit(checkStatusPolicy, redisClient, logg)).
				Post("/check-status", controllers.PaymentCheckStatus(paymentsService, logg))
			r.Post("/verify", controllers.PaymentVerify(paymentsService, logg))
		})
		r.Post("/students/register", controllers.StudentRegister(studentsService, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paycashless", webhookcontrollers.PaycashlessWebhook(webhookService, cfg.Paycashless, webhookGuard, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/auth/login", controllers.AdminAuthLogin(adminsService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(enums.AdminRoleAdmin, logg))

			r.Route("/payments", func(r chi.Router) {
				r.Post("/sync-all", controllers.AdminSyncAll(engine, logg))
				r.Post("/sync", controllers.AdminSyncEmail(engine, logg))
				r.Post("/cleanup-duplicates", controllers.AdminCleanupDuplicates(engine, logg))
				r.Post("/check", controllers.AdminPaymentCheck(paymentsService, logg))
			})
			r.Get("/activity", controllers.ActivityList(activityRepo, logg))
		})
	})

	return r
}
