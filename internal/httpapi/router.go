package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	custommw "github.com/jcom-dev/mapclusters/internal/middleware"
)

// NewRouter builds the chi router: middleware stack, CORS, swagger UI, and
// the /api route group, matching the teacher's cmd/api/main.go layering.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.Logger)
	r.Use(custommw.Recoverer)
	r.Use(custommw.Timeout(5 * time.Second))
	r.Use(custommw.SecurityHeaders)
	r.Use(chimw.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Get("/markers", h.GetMarkers)
		r.Get("/tiles/{z}/{x}/{y}", h.GetTile)
		r.Get("/status", h.GetStatus)
		r.Delete("/cache", h.FlushCache)
	})

	return r
}
