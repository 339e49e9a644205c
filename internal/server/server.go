// Package server provides the HTTP server and routing for the wallet optimizer.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/cryptowallet/internal/database"
	"github.com/aristath/cryptowallet/internal/metrics"
	"github.com/aristath/cryptowallet/internal/scheduler"
	"github.com/aristath/cryptowallet/pkg/embedded"
)

// RouteRegistrar mounts a module's routes under /api.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	DataDir   string
	Databases []*database.DB
	Modules   []RouteRegistrar
	Jobs      []scheduler.Job
	Runs      RunCounter
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	databases      []*database.DB
	modules        []RouteRegistrar
	systemHandlers *SystemHandlers
	dashboard      fs.FS
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		databases:      cfg.Databases,
		modules:        cfg.Modules,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.DataDir, cfg.Databases, cfg.Jobs, cfg.Runs),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// No write timeout: run streams are long-lived websockets.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Metrics
	s.router.Use(metrics.HTTPMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/databases", s.systemHandlers.HandleDatabaseStats)
			r.Post("/jobs/{name}", func(w http.ResponseWriter, r *http.Request) {
				s.systemHandlers.HandleTriggerJob(w, r, chi.URLParam(r, "name"))
			})
		})

		for _, m := range s.modules {
			m.RegisterRoutes(r)
		}
	})

	// Dashboard from the embedded filesystem
	dashboardFS, err := embedded.Dashboard()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to open embedded dashboard")
		return
	}
	s.dashboard = dashboardFS

	assetsFS, err := fs.Sub(dashboardFS, "assets")
	if err != nil {
		s.log.Warn().Err(err).Msg("Dashboard assets directory not found in embedded files")
	} else {
		s.router.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(assetsFS))))
	}
	s.router.Get("/", s.handleDashboard)
}

// handleDashboard serves index.html from the embedded dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	indexFile, err := s.dashboard.Open("index.html")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to open embedded index.html")
		http.Error(w, "Dashboard not available", http.StatusInternalServerError)
		return
	}
	defer indexFile.Close()

	data, err := io.ReadAll(indexFile)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read embedded index.html")
		http.Error(w, "Dashboard not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to write index.html response")
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth pings every database
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	checks := make(map[string]string, len(s.databases))
	for _, db := range s.databases {
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check failed")
			checks[db.Name()] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		checks[db.Name()] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"databases": checks,
		"timestamp": time.Now().Format(time.RFC3339),
	}); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode health response")
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
