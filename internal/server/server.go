// Package server exposes the HTTP API the add-on web UI talks to.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/systmms/opsync/internal/groups"
	"github.com/systmms/opsync/internal/ratelimit"
	"github.com/systmms/opsync/internal/store"
	syncengine "github.com/systmms/opsync/internal/sync"
)

// Server routes UI requests to the sync engine and services.
type Server struct {
	Router chi.Router

	orchestrator *syncengine.Orchestrator
	cache        *syncengine.ItemCache
	reconciler   *syncengine.Reconciler
	groups       *groups.Service
	items        store.ItemRepo
	limits       *ratelimit.Tracker
	logger       *zap.SugaredLogger
}

// New builds the router with all API endpoints.
func New(
	orchestrator *syncengine.Orchestrator,
	cache *syncengine.ItemCache,
	reconciler *syncengine.Reconciler,
	groupSvc *groups.Service,
	items store.ItemRepo,
	limits *ratelimit.Tracker,
	logger *zap.SugaredLogger,
) *Server {
	s := &Server{
		orchestrator: orchestrator,
		cache:        cache,
		reconciler:   reconciler,
		groups:       groupSvc,
		items:        items,
		limits:       limits,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", s.handleSync)

		r.Get("/items", s.handleListItems)
		r.Post("/items/{vaultID}/{itemID}/refresh", s.handleRefreshItem)
		r.Get("/vaults", s.handleListVaults)
		r.Get("/vaults/{id}", s.handleGetVault)

		r.Get("/secrets", s.handleListSecrets)
		r.Get("/secrets/{id}", s.handleGetSecret)
		r.Post("/secrets/{id}/assign", s.handleAssignSecret)
		r.Post("/secrets/{id}/unassign", s.handleUnassignSecret)
		r.Post("/secrets/{id}/toggle-skip", s.handleToggleSkipSecret)

		r.Get("/groups", s.handleListGroups)
		r.Post("/groups", s.handleCreateGroup)
		r.Get("/groups/{id}", s.handleGetGroup)
		r.Patch("/groups/{id}", s.handleUpdateGroup)
		r.Delete("/groups/{id}", s.handleDeleteGroup)
		r.Put("/groups/{id}/secrets", s.handleSetGroupSecrets)
		r.Post("/groups/{id}/secrets/add", s.handleAddGroupSecrets)
		r.Post("/groups/{id}/secrets/remove", s.handleRemoveGroupSecrets)

		r.Get("/ratelimits", s.handleGetRateLimits)
		r.Post("/ratelimits/refresh", s.handleRefreshRateLimits)
		r.Get("/ratelimits/warnings", s.handleRateLimitWarnings)
	})

	s.Router = r
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
