package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// HealthHandler answers liveness and readiness probes.
type HealthHandler struct {
	DB *sql.DB
	// SchedulerRunning reports whether the trigger table is firing.
	SchedulerRunning func() bool
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready checks the database and the scheduler; 503 when either is down.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		JSONError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if h.SchedulerRunning != nil && !h.SchedulerRunning() {
		JSONError(w, "scheduler not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
