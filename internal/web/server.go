// Package web provides the HTTP JSON API over the ingestion engine.
// Handlers only decode requests and encode results; all business logic
// lives in internal/core.
package web

import (
	"context"
	"net/http"

	"github.com/aurelio-data/cartera/internal/config"
	"github.com/aurelio-data/cartera/internal/core"
	appmw "github.com/aurelio-data/cartera/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the ingestion API.
type Server struct {
	service *core.Service
	cfg     config.ServerConfig
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg config.ServerConfig) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.TrustedProxyList()))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
}

// setupRoutes configures all HTTP routes.
//
// Catalog, schema, load, sync and archive operations are all scoped by a
// sub-portfolio id and a load cycle; both appear in the URL so a handler
// never has to guess which catalog an operation targets.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/subportfolios/{subPortfolioID}/{cycle}", func(r chi.Router) {
		// Column resolution (pure lookup, no mutation)
		r.Post("/resolve", s.handleResolveColumns)

		// Header catalog
		r.Get("/headers", s.handleListHeaders)
		r.Post("/headers", s.handleCreateHeader)
		r.Post("/aliases", s.handleAddAlias)
		r.Delete("/aliases/{alias}", s.handleRemoveAlias)
		r.Post("/ignored", s.handleIgnoreColumn)
		r.Delete("/ignored/{column}", s.handleUnignoreColumn)
		r.Get("/history", s.handleListHistory)

		// Provider table schema
		r.Post("/table", s.handleCreateTable)
		r.Delete("/table", s.handleDropTable)
		r.Post("/columns", s.handleAddColumn)
		r.Delete("/columns/{name}", s.handleDropColumn)

		// Row loading
		r.Post("/rows", s.handleLoadRows)

		// Consolidation
		r.Post("/sync", s.handleSync)

		// Period archiving
		r.Post("/archive", s.handleArchive)
		r.Get("/period", s.handlePeriodStatus)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
