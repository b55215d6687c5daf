package server

import (
	"encoding/json"
	"net/http"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
)

// actionResult is the discriminated result every write operation returns.
// Validation and not-found failures surface here instead of as bare HTTP
// errors, so the UI can render them without parsing status codes.
type actionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func writeActionResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, actionResult{Success: true})
	case opsyncerrors.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, actionResult{Success: false, Error: err.Error()})
	case opsyncerrors.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, actionResult{Success: false, Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, actionResult{Success: false, Error: err.Error()})
	}
}

func decodeBody(r *http.Request, into interface{}) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return opsyncerrors.ValidationError{Message: "invalid request body"}
	}
	return nil
}
