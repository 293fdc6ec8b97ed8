package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/circademic/gradetrack/internal/auth"
	"github.com/circademic/gradetrack/internal/config"
	"github.com/circademic/gradetrack/internal/health"
	"github.com/circademic/gradetrack/internal/live"
	"github.com/circademic/gradetrack/internal/locale"
	"github.com/circademic/gradetrack/internal/tracker"
)

// Server represents the HTTP API server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	auth     *auth.Service
	tracker  *tracker.Service
	broker   live.Broker
	locales  *locale.Loader
	health   *health.Registry
	upgrader websocket.Upgrader
}

// Dependencies are the services the API is built on
type Dependencies struct {
	Auth    *auth.Service
	Tracker *tracker.Service
	Broker  live.Broker
	Locales *locale.Loader
	Health  *health.Registry
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	s := &Server{
		config:  cfg,
		auth:    deps.Auth,
		tracker: deps.Tracker,
		broker:  deps.Broker,
		locales: deps.Locales,
		health:  deps.Health,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Language", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(s.localize)

	// Health check (outside versioned API - public)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Live dashboards stay open, so they are kept out of the request timeout
		r.With(s.authenticate).Get("/live", s.handleLive)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Public
			r.Route("/auth", func(r chi.Router) {
				r.Post("/signup", s.handleSignUp)
				r.Post("/signin", s.handleSignIn)
				r.Post("/google", s.handleGoogleSignIn)
				r.Post("/password-reset", s.handlePasswordReset)
				r.Post("/password-reset/confirm", s.handleConfirmPasswordReset)
				r.With(s.authenticate).Post("/signout", s.handleSignOut)
			})
			r.Post("/shield", s.handleShield)

			// Authenticated
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)

				r.Get("/me", s.handleMe)
				r.Get("/profile", s.handleGetProfile)
				r.Put("/profile", s.handleUpdateProfile)
				r.Delete("/account", s.handleDeleteAccount)
				r.Get("/dashboard", s.handleDashboard)

				r.Route("/courses", func(r chi.Router) {
					r.Get("/", s.handleListCourses)
					r.Post("/", s.handleAddCourse)
					r.Get("/export.csv", s.handleExportCSV)
					r.Get("/export.xlsx", s.handleExportXLSX)
					r.Post("/import", s.handleImportCourses)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetCourse)
						r.Put("/", s.handleUpdateCourse)
						r.Delete("/", s.handleDeleteCourse)
					})
				})
			})
		})
	})

	s.router = r
}

// checkOrigin applies the CORS origin list to WebSocket upgrades
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.config.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.config.AllowedOrigins, origin)
}
