package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dancetime/booking/internal/config"
	"github.com/dancetime/booking/internal/http/handlers"
	"github.com/dancetime/booking/internal/http/views"
	"github.com/dancetime/booking/internal/middleware"
	"github.com/dancetime/booking/internal/session"
	"github.com/dancetime/booking/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Store    storage.Store
	Sessions session.Manager
	Views    *views.Renderer
	Logger   zerolog.Logger
}

// NewRouter builds the full route table and middleware chain.
func NewRouter(cfg config.Config, deps Deps) http.Handler {
	pages := handlers.NewPages(deps.Views, deps.Logger)
	admin := handlers.AdminAccount{Username: cfg.AdminUsername, Password: cfg.AdminPassword}
	throttle := middleware.Throttle(cfg.LoginRatePerMinute, cfg.LoginBurst)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logging(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.LoadIdentity(deps.Sessions))

	r.NotFound(pages.NotFound)
	r.MethodNotAllowed(pages.MethodNotAllowed)
	r.Handle("/static/*", http.StripPrefix("/static/", views.Static()))

	handlers.NewHealthHandler(time.Now(), deps.Store).Register(r)
	handlers.NewAuthHandler(deps.Store, deps.Sessions, pages, admin, throttle, deps.Logger).Register(r)
	handlers.NewCourseHandler(deps.Store, pages, deps.Logger).Register(r)
	handlers.NewAdminHandler(deps.Store, pages, deps.Logger).Register(r)
	handlers.NewUserHandler(deps.Store, deps.Sessions, pages, deps.Logger).Register(r)

	return r
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
