// Package server wires handlers and middleware into the HTTP router.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/auth"
	"github.com/ayush/project-tracker/internal/httpx"
	"github.com/ayush/project-tracker/internal/logging"
	"github.com/ayush/project-tracker/internal/middleware"
	"github.com/ayush/project-tracker/internal/models"
	"github.com/ayush/project-tracker/internal/projects"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Auth     *auth.Handler
	Projects *projects.Handler
	Tokens   middleware.TokenVerifier
	Docs     http.Handler
	Log      logging.Logger

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type health struct {
	Status string `json:"status"`
}

// NewRouter builds the full route table.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Recoverer(d.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	notFound := func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, apierr.NotFound("Route not found"))
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, health{Status: "ok"})
	})
	if d.Docs != nil {
		r.Method(http.MethodGet, "/docs/openapi.json", d.Docs)
	}

	requireAuth := middleware.RequireAuth(d.Tokens)
	// register and login share one budget per client
	limit := middleware.RateLimit(d.RateLimitRequests, d.RateLimitWindow)

	r.Route("/auth", func(r chi.Router) {
		r.With(limit).Post("/register", d.Auth.Register)
		r.With(limit).Post("/login", d.Auth.Login)
		r.With(requireAuth).Get("/me", d.Auth.Me)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", d.Projects.Create)
		r.Get("/", d.Projects.List)
		r.Get("/{id}", d.Projects.Get)
		r.Patch("/{id}", d.Projects.Update)
		r.Delete("/{id}", d.Projects.Delete)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAuth, middleware.RequireRole(models.RoleAdmin))
		r.Get("/projects", d.Projects.AdminList)
		r.Delete("/projects/{id}", d.Projects.AdminDelete)
	})

	return r
}
