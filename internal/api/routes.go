package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins is used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, hc *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if hc != nil {
		r.Get("/health", hc.HandleHealth)
		r.Get("/health/live", hc.HandleLiveness)
		r.Get("/health/ready", hc.HandleReadiness)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/records", func(r chi.Router) {
			r.Post("/", h.UploadRecords)
			r.Post("/sample", h.LoadSample)
			r.Post("/s3", h.LoadFromStorage)
			r.Post("/warehouse", h.LoadFromWarehouse)
		})

		r.Get("/session", h.GetSession)
		r.Post("/session/reset", h.ResetSession)

		r.Route("/report", func(r chi.Router) {
			r.Get("/rows", h.GetRows)
			r.Get("/chart", h.GetChart)
			r.Get("/chart.png", h.GetChartPNG)
			r.Get("/export", h.ExportReport)
			r.Post("/archive", h.ArchiveReport)
			r.Get("/digest", h.GetDigest)
			r.Post("/digest/send", h.SendDigest)
		})

		r.Route("/annotations", func(r chi.Router) {
			r.Post("/import", h.ImportAnnotations)
			r.Get("/{date}/{campaign}", h.GetAnnotation)
			r.Put("/{date}/{campaign}", h.PutAnnotation)
		})
	})

	return r
}
