package server

import (
	"net/http"
	"strconv"

	"github.com/systmms/opsync/internal/ratelimit"
)

func (s *Server) handleGetRateLimits(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.limits.Stored(r.Context())
	if err != nil {
		writeActionResult(w, err)
		return
	}
	if snapshot == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"available": false})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleRefreshRateLimits(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.limits.FetchAndStore(r.Context())
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleRateLimitWarnings(w http.ResponseWriter, r *http.Request) {
	threshold := ratelimit.DefaultWarningThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			writeJSON(w, http.StatusBadRequest, actionResult{Success: false, Error: "threshold must be a number between 0 and 1"})
			return
		}
		threshold = parsed
	}

	warnings, err := s.limits.WarningLimits(r.Context(), threshold)
	if err != nil {
		writeActionResult(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shouldWarn": len(warnings) > 0,
		"warnings":   warnings,
		"threshold":  threshold,
	})
}
