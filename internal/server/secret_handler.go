package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
)

type assignRequest struct {
	ItemID    string `json:"itemId"`
	Reference string `json:"reference"`
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.reconciler.List(r.Context())
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusOK, secrets)
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	secret, err := s.reconciler.Get(r.Context(), id)
	if err != nil {
		writeActionResult(w, err)
		return
	}
	if secret == nil {
		writeActionResult(w, opsyncerrors.NotFoundError{Entity: "secret", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, secret)
}

func (s *Server) handleAssignSecret(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeBody(r, &req); err != nil {
		writeActionResult(w, err)
		return
	}
	if req.ItemID == "" || req.Reference == "" {
		writeActionResult(w, opsyncerrors.ValidationError{Message: "itemId and reference are required"})
		return
	}

	writeActionResult(w, s.reconciler.Assign(r.Context(), chi.URLParam(r, "id"), req.ItemID, req.Reference))
}

func (s *Server) handleUnassignSecret(w http.ResponseWriter, r *http.Request) {
	writeActionResult(w, s.reconciler.Unassign(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleToggleSkipSecret(w http.ResponseWriter, r *http.Request) {
	secret, previous, err := s.reconciler.ToggleSkip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"isSkipped":     secret.IsSkipped,
		"previousState": previous,
	})
}
