/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in log lines
  2. RealIP:     Client address behind proxies
  3. Logger:     logrus request logging (middleware.go)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Per-route latency histogram (middleware.go)
  6. CORS:       Cross-origin requests for the frontend

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Endpoint list
  - cmd/capacity/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AllowedOrigins defaults to every origin.
	AllowedOrigins []string
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(instrument(h.recorder))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Total-Count"},
		MaxAge:         300,
	}))

	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Directory routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Get("/{key}", h.GetProject)
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateUser)
		})
		r.Route("/sync", func(r chi.Router) {
			r.Post("/projects", h.SyncProjects)
			r.Post("/users", h.SyncUsers)
			r.Post("/all", h.SyncAll)
			r.Get("/logs", h.ListSyncLogs)
		})

		// Record routes
		r.Route("/allocations", func(r chi.Router) {
			r.Get("/", h.ListAllocations)
			r.Post("/", h.CreateAllocation)
			r.Put("/{id}", h.UpdateAllocation)
			r.Delete("/{id}", h.DeleteAllocation)
		})
		r.Route("/absences", func(r chi.Router) {
			r.Get("/", h.ListAbsences)
			r.Post("/", h.CreateAbsence)
			r.Put("/{id}", h.UpdateAbsence)
			r.Delete("/{id}", h.DeleteAbsence)
		})

		// FTE routes
		r.Route("/fte", func(r chi.Router) {
			r.Get("/", h.ListFTE)
			r.Post("/", h.CreateFTE)
			r.Post("/range", h.FTERange)
			r.Post("/bulk", h.FTEBulk)
			r.Get("/calendar", h.FTECalendar)
			r.Put("/{id}", h.UpdateFTE)
			r.Delete("/{id}", h.DeleteFTE)
		})

		// Analysis routes
		r.Get("/calendar", h.Calendar)
		r.Get("/analytics/overload", h.Overload)
		r.Get("/optimization/suggestions", h.Optimization)
		r.Get("/verification/time", h.VerifyTime)
		r.Get("/time/project/{key}", h.ProjectTime)
		r.Get("/export/allocations.csv", h.ExportAllocations)
	})

	return r
}
