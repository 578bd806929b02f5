package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleHealth reports process uptime and current room/client counts
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	rooms, clients := r.svc.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(r.startedAt).Seconds()),
		"rooms":          rooms,
		"clients":        clients,
	})
}
