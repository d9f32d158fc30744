package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/adpulse/adpulse/internal/handler"
	"github.com/adpulse/adpulse/internal/middleware"
)

// RouterConfig carries the middleware settings the router needs.
type RouterConfig struct {
	IsDevelopment      bool
	CORSAllowedOrigins []string
	MaxRequestBodySize int64
	RateLimitAPI       bool
	RateLimitIP        bool
	RateLimitIPRPS     int
	RateLimitIPBurst   int
}

// Routes holds the handlers and auth backends mounted by NewRouter.
// Metrics may be nil to leave /metrics unmounted.
type Routes struct {
	Health    *handler.HealthHandler
	Reports   *handler.ReportHandler
	Schedules *handler.ScheduleHandler
	Formats   *handler.FormatHandler
	Accounts  *handler.AccountHandler
	APIKeys   *handler.APIKeyHandler
	Metrics   http.Handler

	Keys      middleware.KeyStore
	AuthCache middleware.AuthCache
	Limiter   middleware.RateLimiter
}

// NewRouter builds the chi router with every route and middleware.
func NewRouter(cfg RouterConfig, routes Routes, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(cors))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/healthz", routes.Health.Healthz)
	r.Get("/readyz", routes.Health.Readyz)
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	limits := middleware.RateLimitConfig{
		Logger:     logger,
		Limiter:    routes.Limiter,
		APIEnabled: cfg.RateLimitAPI,
		IPEnabled:  cfg.RateLimitIP,
		IPRPS:      cfg.RateLimitIPRPS,
		IPBurst:    cfg.RateLimitIPBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(limits))
		r.Use(middleware.Auth(middleware.AuthConfig{
			Logger: logger,
			Keys:   routes.Keys,
			Cache:  routes.AuthCache,
		}))
		r.Use(middleware.RateLimitAPI(limits))

		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.RequireReports())
			r.Post("/generate", routes.Reports.Generate)
			r.Post("/preview", routes.Reports.Preview)
			r.Get("/", routes.Reports.List)
			r.Get("/{id}", routes.Reports.Get)
			r.Delete("/{id}", routes.Reports.Delete)
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Use(middleware.RequireSchedules())
			r.Get("/", routes.Schedules.List)
			r.Post("/", routes.Schedules.Create)
			r.Get("/{id}", routes.Schedules.Get)
			r.Patch("/{id}", routes.Schedules.Update)
			r.Delete("/{id}", routes.Schedules.Delete)
			r.Post("/{id}/run", routes.Schedules.Run)
			r.Get("/{id}/deliveries", routes.Schedules.Deliveries)
		})

		r.With(middleware.RequireScheduler()).Post("/scheduler/tick", routes.Schedules.Tick)

		r.Route("/formats", func(r chi.Router) {
			r.Use(middleware.RequireFormats())
			r.Get("/", routes.Formats.List)
			r.Post("/", routes.Formats.Create)
			r.Post("/defaults", routes.Formats.SeedDefaults)
			r.Get("/{id}", routes.Formats.Get)
			r.Patch("/{id}", routes.Formats.Update)
			r.Delete("/{id}", routes.Formats.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/settings", routes.Accounts.GetSettings)
			r.Put("/settings", routes.Accounts.UpdateSettings)

			r.Get("/clients", routes.Accounts.ListClients)
			r.Post("/clients", routes.Accounts.CreateClient)
			r.Patch("/clients/{id}", routes.Accounts.UpdateClient)
			r.Delete("/clients/{id}", routes.Accounts.DeleteClient)

			r.Get("/api-keys", routes.APIKeys.List)
			r.Post("/api-keys", routes.APIKeys.Create)
			r.Delete("/api-keys/{id}", routes.APIKeys.Revoke)
		})
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}
