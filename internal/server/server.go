package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/sluice/internal/config"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/handler"
	"github.com/faucetdb/sluice/internal/mapping"
	"github.com/faucetdb/sluice/internal/schema"
	"github.com/faucetdb/sluice/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	CORSMethods     []string
	RateLimit       int // requests per minute per client IP
}

// DefaultConfig returns the explorer defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
		CORSMethods:     []string{"GET"},
		RateLimit:       600,
	}
}

// ConfigFromYAML converts the server section of sluice.yaml.
func ConfigFromYAML(y config.ServerConfig) (Config, error) {
	cfg := DefaultConfig()
	if y.Host != "" {
		cfg.Host = y.Host
	}
	if y.Port != 0 {
		cfg.Port = y.Port
	}
	if y.ShutdownTimeout != "" {
		d, err := time.ParseDuration(y.ShutdownTimeout)
		if err != nil {
			return cfg, fmt.Errorf("server.shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if len(y.CORS.Origins) > 0 {
		cfg.CORSOrigins = y.CORS.Origins
	}
	if len(y.CORS.Methods) > 0 {
		cfg.CORSMethods = y.CORS.Methods
	}
	cfg.RateLimit = y.RateLimit
	return cfg, nil
}

// Server is the read-only schema explorer. It serves the stored sources, the
// schema model built from the registered mappings and live introspection of
// connected sources.
type Server struct {
	cfg        Config
	router     chi.Router
	registry   *connector.Registry
	store      *config.Store
	schemas    *schema.Context
	mappings   *mapping.Context
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with its routes and middleware in place.
func New(cfg Config, registry *connector.Registry, store *config.Store, schemas *schema.Context, mappings *mapping.Context, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:      cfg,
		registry: registry,
		store:    store,
		schemas:  schemas,
		mappings: mappings,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: append([]string{"OPTIONS"}, s.cfg.CORSMethods...),
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(chimw.Compress(5))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))

		sources := handler.NewSourceHandler(s.registry, s.store)
		schemas := handler.NewSchemaHandler(s.registry, s.schemas, s.mappings)
		spec := handler.NewOpenAPIHandler(s.schemas)

		r.Get("/sources", sources.ListSources)
		r.Get("/sources/{sourceName}", sources.GetSource)
		r.Get("/sources/{sourceName}/tables", sources.ListTableNames)
		r.Get("/sources/{sourceName}/procedures", sources.ListProcedures)

		r.Get("/schema", schemas.ListSchemas)
		r.Get("/schema/{schemaName}/tables", schemas.ListTables)
		r.Get("/schema/{schemaName}/tables/{tableName}", schemas.GetTable)
		r.Get("/schema/{schemaName}/foreign-keys", schemas.ListForeignKeys)
		r.Get("/schema/{schemaName}/ddl", schemas.GetDDL)

		r.Get("/mappings", schemas.ListMappings)
		r.Get("/openapi.json", spec.ServeSpec)
	})

	s.router = r
}

// handleHealthz is a liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz pings every connected source and answers 503 when any fails.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	for _, name := range s.registry.Sources() {
		conn, err := s.registry.Get(name)
		if err == nil {
			err = conn.Ping(r.Context())
		}
		if err != nil {
			checks[name] = "error: " + err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// a SIGINT or SIGTERM arrives, then drains in-flight requests and closes all
// connected sources.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("explorer listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down explorer")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.registry.CloseAll()
	s.logger.Info("explorer stopped")
	return nil
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
