/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RealIP, RequestID: Client address and unique ID per request
  2. Logger:            Request logging
  3. Recoverer:         Panic recovery (500 instead of crash)
  4. Timeout:           Request deadline (APP_REQUEST_TIMEOUT)
  5. Secure headers:    unrolled/secure (frame deny, nosniff, SSL in production)
  6. Rate limit:        Per client IP (RATE_LIMIT_PER_MINUTE)
  7. CORS:              Cross-origin requests for frontends
  8. Metrics:           Prometheus request counters

ROUTE GROUPS:
  /api/columns           Column catalog
  /api/templates/*       Template graph, reorder, validation
  /api/requisitions/*    Line item calculation and workflow
  /api/recalculation/*   Recalculation log and manual sweep
  /api/scenarios/*       Demo scenarios
  /metrics               Prometheus
  /healthz               Liveness
  /jobs/health           Job queue depth

SEE ALSO:
  - handlers.go, requisitions.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"github.com/warp/requisition-engine/jobs"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	CORSOrigins        []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	Production         bool

	// Jobs mounts /jobs/health when set.
	Jobs *jobs.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        opts.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !opts.Production,
	})

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if err := secureMiddleware.Process(w, req); err != nil {
				h.Logger.Warn("secure headers blocked request", slog.Any("error", err))
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(opts.RateLimitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			})))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(h.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	if opts.Jobs != nil {
		r.Route("/jobs", opts.Jobs.MountRoutes)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/columns", h.ListColumns)

		// Template routes
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/{id}", h.GetTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
			r.Get("/{id}/validation", h.ValidateTemplate)
			r.Post("/{id}/stock-based-mode", h.ToggleStockBasedMode)
			r.Post("/{id}/columns", h.AddColumn)
			r.Delete("/{id}/columns/{name}", h.RemoveColumn)
			r.Post("/{id}/columns/{name}/move", h.MoveColumn)
			r.Get("/{id}/columns/{name}/circular", h.GetCircularDependencies)
		})

		// Requisition routes
		r.Route("/requisitions", func(r chi.Router) {
			r.Get("/", h.ListRequisitions)
			r.Post("/", h.CreateRequisition)
			r.Get("/{id}", h.GetRequisition)
			r.Get("/{id}/validation", h.ValidateRequisition)
			r.Delete("/{id}", h.DeleteRequisition)
			r.Put("/{id}/line-items/{lineItemId}", h.UpdateLineItem)
			r.Post("/{id}/recalculate", h.RecalculateRequisition)
			r.Post("/{id}/{action}", h.TransitionRequisition)
		})

		// Recalculation routes
		r.Route("/recalculation", func(r chi.Router) {
			r.Get("/runs", h.ListRecalculationRuns)
			r.Post("/process", h.TriggerRecalculation)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
