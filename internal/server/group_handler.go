package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
)

type groupCreateRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	SecretIDs   []string `json:"secretIds,omitempty"`
}

type groupUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type groupSecretsRequest struct {
	SecretIDs []string `json:"secretIds"`
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	list, err := s.groups.List(r.Context())
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupCreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeActionResult(w, err)
		return
	}

	group, err := s.groups.Create(r.Context(), req.Name, req.Description, req.SecretIDs)
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	group, err := s.groups.Get(r.Context(), id)
	if err != nil {
		writeActionResult(w, err)
		return
	}
	if group == nil {
		writeActionResult(w, opsyncerrors.NotFoundError{Entity: "group", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeActionResult(w, err)
		return
	}

	group, err := s.groups.Update(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	writeActionResult(w, s.groups.Delete(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleSetGroupSecrets(w http.ResponseWriter, r *http.Request) {
	var req groupSecretsRequest
	if err := decodeBody(r, &req); err != nil {
		writeActionResult(w, err)
		return
	}
	writeActionResult(w, s.groups.SetSecrets(r.Context(), chi.URLParam(r, "id"), req.SecretIDs))
}

func (s *Server) handleAddGroupSecrets(w http.ResponseWriter, r *http.Request) {
	var req groupSecretsRequest
	if err := decodeBody(r, &req); err != nil {
		writeActionResult(w, err)
		return
	}
	writeActionResult(w, s.groups.AddSecrets(r.Context(), chi.URLParam(r, "id"), req.SecretIDs))
}

func (s *Server) handleRemoveGroupSecrets(w http.ResponseWriter, r *http.Request) {
	var req groupSecretsRequest
	if err := decodeBody(r, &req); err != nil {
		writeActionResult(w, err)
		return
	}
	writeActionResult(w, s.groups.RemoveSecrets(r.Context(), chi.URLParam(r, "id"), req.SecretIDs))
}
