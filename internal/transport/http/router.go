package http

import (
	"net/http"

	"github.com/carelink-api/internal/application/alert"
	"github.com/carelink-api/internal/application/audit"
	"github.com/carelink-api/internal/application/dispatch"
	"github.com/carelink-api/internal/application/recipient"
	"github.com/carelink-api/internal/application/reminder"
	"github.com/carelink-api/internal/config"
	"github.com/carelink-api/internal/domain"
	"github.com/carelink-api/internal/transport/http/handler"
	appmiddleware "github.com/carelink-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Services bundles the application services. Built once and shared between
// the router and the worker runner.
type Services struct {
	Alerts    alert.Service
	Reminders reminder.Service
	Dispatch  dispatch.Service
	Audit     audit.Service
}

// BuildServices wires the application layer from infrastructure deps.
func BuildServices(cfg *config.Config, deps *Deps) *Services {
	auditSvc := audit.NewService(audit.ServiceDeps{
		AuditRepo:       deps.AuditRepo,
		Archive:         deps.ArchiveStore,
		RetentionMonths: cfg.AuditRetentionMonths,
		BatchSize:       cfg.AuditSweepBatchSize,
		Metrics:         deps.Metrics,
	})
	dispatchSvc := dispatch.NewService(dispatch.ServiceDeps{
		NotificationRepo: deps.NotificationRepo,
		ProfileRepo:      deps.ProfileRepo,
		PushSender:       deps.PushSender,
		SMSSender:        deps.SMSSender,
		Metrics:          deps.Metrics,
		Workers:          cfg.DispatchWorkers,
	})
	reminderSvc := reminder.NewService(reminder.ServiceDeps{
		ReminderRepo: deps.ReminderRepo,
		ProfileRepo:  deps.ProfileRepo,
		Dispatcher:   dispatchSvc,
		Auditor:      auditSvc,
		Metrics:      deps.Metrics,
		Lookahead:    cfg.ReminderLookahead,
		Workers:      cfg.DispatchWorkers,
	})
	alertSvc := alert.NewService(alert.ServiceDeps{
		AlertRepo:    deps.AlertRepo,
		ResponseRepo: deps.ResponseRepo,
		ProfileRepo:  deps.ProfileRepo,
		Recipients:   recipient.NewResolver(deps.CareTeamRepo, deps.ProfileRepo),
		Dispatcher:   dispatchSvc,
		Auditor:      auditSvc,
		Metrics:      deps.Metrics,
		Workers:      cfg.DispatchWorkers,
	})
	return &Services{
		Alerts:    alertSvc,
		Reminders: reminderSvc,
		Dispatch:  dispatchSvc,
		Audit:     auditSvc,
	}
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps, svcs *Services) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10, applied to the panic-style alert endpoint.
	alertRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	alertH := handler.NewAlertHandler(svcs.Alerts)
	reminderH := handler.NewReminderHandler(svcs.Reminders)
	notifH := handler.NewNotificationHandler(svcs.Dispatch)
	jobH := handler.NewJobHandler(svcs.Reminders, svcs.Dispatch, svcs.Audit)
	auditH := handler.NewAuditHandler(svcs.Audit)

	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(alertRL.Limit).Post("/alerts", alertH.Raise)
			r.Get("/alerts", alertH.ListBySubject)
			r.Get("/alerts/{id}", alertH.Get)
			r.Post("/alerts/{id}/responses", alertH.Respond)
			r.Get("/alerts/{id}/responses", alertH.ListResponses)

			r.Post("/medication-events", reminderH.LogMedicationEvent)

			r.Post("/reminders", reminderH.Create)
			r.Get("/reminders", reminderH.ListBySubject)
			r.Put("/reminders/{id}", reminderH.Update)

			r.Get("/notifications", notifH.List)
			r.Put("/notifications/{id}/read", notifH.MarkAsRead)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/jobs/fire-reminders", jobH.FireReminders)
				r.Post("/jobs/process-deferred", jobH.ProcessDeferred)
				r.Post("/jobs/sweep-audit", jobH.SweepAudit)
				r.Get("/audit-records", auditH.ListByActor)
			})
		})
	})

	return r
}
