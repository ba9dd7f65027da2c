package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"botsupport/internal/auth"
	"botsupport/internal/config"
	"botsupport/internal/metrics"
)

type Server struct {
	cfg              config.Config
	logger           requestLogger
	db               Pinger
	gate             *auth.Gate
	metrics          *metrics.Collector
	migrationHandler *MigrationHandler
	tablesHandler    *TablesHandler
	userHandler      *UserHandler
}

type requestLogger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// New wires the API. db may be nil when no connection string is configured.
func New(cfg config.Config, logger requestLogger, db Pinger, gate *auth.Gate, collector *metrics.Collector, migrationHandler *MigrationHandler, tablesHandler *TablesHandler, userHandler *UserHandler) *Server {
	return &Server{
		cfg:              cfg,
		logger:           logger,
		db:               db,
		gate:             gate,
		metrics:          collector,
		migrationHandler: migrationHandler,
		tablesHandler:    tablesHandler,
		userHandler:      userHandler,
	}
}

func (s *Server) Start(ctx context.Context) error {
	r := s.Routes()
	// WriteTimeout leaves room for the configured apply timeout.
	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddress,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.ApplyTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", s.cfg.HTTPAddress, "restricted", s.gate.Restricted)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(AuditContext)
	r.Use(RequestLogger(s.logger))
	if s.metrics != nil {
		r.Use(RequestMetrics(s.metrics))
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	authMiddleware := NewAuthMiddleware(s.gate, s.logger)

	r.Route("/api/v1", func(api chi.Router) {
		api.Method(http.MethodGet, "/health", HealthHandler{DB: s.db})

		api.Get("/migrations", s.migrationHandler.List)
		api.Get("/migrations/{name}", s.migrationHandler.Get)
		api.With(authMiddleware.RequireApplyToken).Post("/migrations/{name}/apply", s.migrationHandler.Apply)

		api.With(authMiddleware.RequireToken).Method(http.MethodGet, "/tables", s.tablesHandler)

		api.Route("/users", func(ur chi.Router) {
			ur.Use(authMiddleware.RequireToken)
			ur.Get("/", s.userHandler.List)
			ur.Get("/stats", s.userHandler.Stats)
			ur.Get("/{id}", s.userHandler.Get)
		})
	})

	return r
}
