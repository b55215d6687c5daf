package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.items.List(r.Context())
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleRefreshItem(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultID")
	itemID := chi.URLParam(r, "itemID")
	writeActionResult(w, s.cache.RefreshOne(r.Context(), itemID, vaultID))
}

func (s *Server) handleListVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := s.items.ListVaults(r.Context())
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaults)
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	vault, err := s.items.GetVault(r.Context(), id)
	if err != nil {
		writeActionResult(w, err)
		return
	}
	if vault == nil {
		writeActionResult(w, opsyncerrors.NotFoundError{Entity: "vault", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, vault)
}
