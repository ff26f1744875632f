// Package server assembles the HTTP router.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/handler"
	appMiddleware "github.com/tasktrack/backend/internal/middleware"
	"github.com/tasktrack/backend/internal/service"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth          *service.AuthService
	Tasks         *service.TaskService
	Subscriptions *service.SubscriptionService
	Analytics     *service.AnalyticsService
	Ping          func(ctx context.Context) error
	CORSOrigins   []string
	Log           logrus.FieldLogger
	Now           func() time.Time

	// Per-IP limits; zero values use the defaults.
	GlobalRPS   float64
	GlobalBurst int
	AuthRPS     float64
	AuthBurst   int
}

func (d *Deps) defaults() {
	if d.GlobalRPS == 0 {
		d.GlobalRPS, d.GlobalBurst = 20, 40
	}
	if d.AuthRPS == 0 {
		d.AuthRPS, d.AuthBurst = 1, 5
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
}

// NewRouter builds the API router. ctx bounds the rate limiter cleanup.
func NewRouter(ctx context.Context, d Deps) http.Handler {
	d.defaults()

	authHandler := handler.NewAuthHandler(d.Auth)
	taskHandler := handler.NewTaskHandler(d.Tasks)
	subHandler := handler.NewSubscriptionHandler(d.Subscriptions)
	analyticsHandler := handler.NewAnalyticsHandler(d.Analytics)
	healthHandler := handler.NewHealthHandler(d.Ping)

	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Logger(d.Log))
	r.Use(appMiddleware.Recovery(d.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appMiddleware.NewRateLimiter(ctx, d.GlobalRPS, d.GlobalBurst).Middleware())

	// Public routes
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", subHandler.Plans)

	// Auth routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.NewRateLimiter(ctx, d.AuthRPS, d.AuthBurst).Middleware())
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(d.Auth))
		r.Use(appMiddleware.LoadUser(d.Auth))

		r.Get("/api/auth/me", authHandler.Me)

		// Tasks
		r.Get("/api/tasks", taskHandler.List)
		r.Post("/api/tasks", taskHandler.Create)
		r.Get("/api/tasks/{id}", taskHandler.Get)
		r.Put("/api/tasks/{id}", taskHandler.Update)
		r.Patch("/api/tasks/{id}", taskHandler.Update)
		r.Delete("/api/tasks/{id}", taskHandler.Delete)

		// Subscription
		r.Get("/api/subscription", subHandler.Get)
		r.Post("/api/subscription/upgrade", subHandler.Upgrade)
		r.Get("/api/subscription/export", subHandler.Export)
		r.Get("/api/subscription/history", subHandler.History)

		// Analytics (premium)
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.PremiumOnly(domain.FeatureAnalytics, d.Now))
			r.Get("/api/analytics", analyticsHandler.Dashboard)
		})
	})

	return r
}
