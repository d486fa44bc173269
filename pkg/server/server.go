// Package server implements the SOS Meet relay: the WebSocket transport, the
// session directory, and the components that commands are dispatched to.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/store"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store store.DataStore
}

// Server is the SOS Meet relay server.
type Server struct {
	cfg        Config
	store      store.DataStore
	dir        *Directory
	metrics    *Metrics
	dispatcher *Dispatcher
	hub        *Hub
	origins    *originPolicy
	registry   *prometheus.Registry
	handler    http.Handler
}

// New creates a Server. It loads the alarm catalog when one is configured.
func New(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server: missing store dependency")
	}

	policy := NewAlarmValidator(cfg.AlarmPolicy, cfg.SoundKeys)
	catalog := model.DefaultAlarmCodes()
	if cfg.AlarmCatalog != "" {
		loaded, err := LoadCatalogFromYAML(cfg.AlarmCatalog, policy)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		catalog = loaded
	}

	metrics := NewMetrics()
	dir := NewDirectory()
	dispatcher := NewDispatcher(deps.Store, dir, metrics, DispatcherOptions{
		Catalog:     catalog,
		Policy:      policy,
		StrictAuthz: cfg.StrictAuthz,
	})

	s := &Server{
		cfg:        cfg,
		store:      deps.Store,
		dir:        dir,
		metrics:    metrics,
		dispatcher: dispatcher,
		hub:        NewHub(dispatcher, metrics),
		origins:    newOriginPolicy(cfg.AllowedOrigins),
		registry:   metrics.NewRegistry(dir.Count),
	}
	s.handler = s.routes()

	slog.Debug("server configured",
		"backend", cfg.StoreBackend, "policy", cfg.AlarmPolicy,
		"strict_authz", cfg.StrictAuthz, "catalog_codes", len(catalog))
	return s, nil
}

// Handler returns the HTTP handler serving /ws and the operational endpoints.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Directory returns the session directory.
func (s *Server) Directory() *Directory {
	return s.dir
}
