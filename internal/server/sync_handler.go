package server

import (
	"net/http"
)

// syncResponse is the JSON shape scheduled callers and the UI receive.
type syncResponse struct {
	Done           bool     `json:"done"`
	ChangedSecrets []string `json:"changedSecrets,omitempty"`
	ChangedGroups  []string `json:"changedGroups,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// handleSync runs one sync pass. The scheduled caller hits this without
// parameters; the UI's "update now" button adds ?force=1. Errors become a
// structured failure response, never an unhandled panic.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true"

	result, err := s.orchestrator.Sync(r.Context(), force)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, syncResponse{
			Done:  false,
			Error: err.Error(),
		})
		return
	}

	groupNames := make([]string, 0, len(result.ChangedGroups))
	for _, g := range result.ChangedGroups {
		groupNames = append(groupNames, g.Name)
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Done:           true,
		ChangedSecrets: result.ChangedSecrets,
		ChangedGroups:  groupNames,
	})
}
