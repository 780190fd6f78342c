package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/api/middleware"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Maestro-Source", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(h.Version))
	r.Handle("/metrics", promhttp.Handler())

	// Fleet-level API
	r.Route("/api", func(r chi.Router) {
		r.Get("/projects", h.ListProjects)
		r.Get("/tools", h.ListTools)
		r.Get("/system/awareness", h.Awareness)

		r.Route("/command-center", func(r chi.Router) {
			r.Get("/state", h.CommandCenterState)
			r.Get("/fleet-registry", h.FleetRegistry)
			r.Post("/actions", h.DispatchAction)
			r.Get("/projects/{slug}", h.CommandCenterProject)
			r.Route("/nodes/{slug}", func(r chi.Router) {
				r.Get("/status", h.NodeStatus)
				r.Get("/conversation", h.GetConversation)
				r.Post("/conversation/send", h.SendConversation)
			})
		})
	})

	// Command-center WebSocket
	r.Get("/ws/command-center", h.CommandCenterWS)

	// Per-project surface
	r.Route("/{slug}", func(r chi.Router) {
		r.Get("/ws", h.ProjectWS)

		r.Route("/api", func(r chi.Router) {
			r.Get("/project", h.GetProject)
			r.Get("/search", h.Search)

			r.Route("/pages", func(r chi.Router) {
				r.Get("/", h.ListPages)
				r.Route("/{page}", func(r chi.Router) {
					r.Get("/", h.GetPage)
					r.Get("/image", h.PageImage)
					r.Get("/thumb", h.PageThumb)
					r.Get("/cross-references", h.FindCrossReferences)
					r.Route("/regions", func(r chi.Router) {
						r.Get("/", h.ListRegions)
						r.Get("/{id}", h.GetRegion)
						r.Get("/{id}/crop", h.RegionCrop)
					})
				})
			})

			r.Route("/workspaces", func(r chi.Router) {
				r.Get("/", h.ListWorkspaces)
				r.Get("/{ws}", h.GetWorkspace)
				r.Get("/{ws}/images/{file}", h.WorkspaceImage)
			})

			r.Post("/tools/{op}", h.InvokeTool)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "maestro-runtime",
	})
}

func versionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"version": version,
			"service": "maestro-runtime",
		})
	}
}
