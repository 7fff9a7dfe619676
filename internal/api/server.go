// Package api serves pipeline signatures, port lookups and the result cache
// over HTTP.
//
// Every request that carries a pipeline builds its own pipeline.Pipeline
// against the current registry, so requests share nothing but the registry
// and the artifact cache. The registry can be swapped at runtime with
// SetRegistry, which is how `provgraph serve --watch` reloads packages.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/provgraph/pkg/cache"
	"github.com/matzehuels/provgraph/pkg/core/ports"
	"github.com/matzehuels/provgraph/pkg/pipeline"
	"github.com/matzehuels/provgraph/pkg/registry"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 8 << 20

// Config configures a Server.
type Config struct {
	// Registry resolves classes and ports. Nil disables port checking and
	// the class endpoints answer 501.
	Registry *registry.Registry
	// Cache stores module results and rendered diagrams. Nil means no cache.
	Cache cache.Cache
	// Keyer builds cache keys. Nil means cache.DefaultKeyer.
	Keyer cache.Keyer
	// Logger is the request logger. Nil means log.Default().
	Logger *log.Logger
	// Metrics, if set, is mounted at /metrics.
	Metrics http.Handler
	// MaxBodyBytes bounds request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Server is the HTTP API. It is safe for concurrent use.
type Server struct {
	mu  sync.RWMutex
	reg *registry.Registry

	cache   cache.Cache
	keyer   cache.Keyer
	planner *pipeline.Planner
	logger  *log.Logger
	maxBody int64
	router  chi.Router
}

// New creates a server and its routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNullCache()
	}
	if cfg.Keyer == nil {
		cfg.Keyer = cache.NewDefaultKeyer()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		reg:     cfg.Registry,
		cache:   cfg.Cache,
		keyer:   cfg.Keyer,
		planner: pipeline.NewPlanner(cfg.Cache, cfg.Keyer, cfg.Logger),
		logger:  cfg.Logger,
		maxBody: cfg.MaxBodyBytes,
	}
	s.router = s.routes(cfg.Metrics)
	return s
}

func (s *Server) routes(metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/signatures", s.handleSignatures)
		r.Post("/plan", s.handlePlan)
		r.Post("/check", s.handleCheck)
		r.Post("/contractible", s.handleContractible)
		r.Post("/render", s.handleRender)
		r.Post("/connectable", s.handleConnectable)

		r.Get("/classes", s.handleClasses)
		r.Get("/classes/{name}/ports", s.handlePorts)

		r.Get("/results/{signature}", s.handleGetResult)
		r.Put("/results/{signature}", s.handlePutResult)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry returns the current registry, which may be nil.
func (s *Server) Registry() *registry.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg
}

// SetRegistry replaces the registry. Requests already running keep the
// registry they started with.
func (s *Server) SetRegistry(r *registry.Registry) {
	s.mu.Lock()
	s.reg = r
	s.mu.Unlock()
	s.logger.Info("registry replaced", "packages", packageCount(r))
}

func (s *Server) resolver(reg *registry.Registry) *ports.Resolver {
	if reg == nil {
		return nil
	}
	return reg.Resolver()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func packageCount(r *registry.Registry) int {
	if r == nil {
		return 0
	}
	return len(r.Packages())
}
