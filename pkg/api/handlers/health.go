package handlers

import (
	"net/http"
	"time"
)

// UserCounter reports how many users are currently loaded.
type UserCounter interface {
	UsersCount() int
}

// HealthHandler serves the unauthenticated health endpoints.
type HealthHandler struct {
	realm     string
	users     UserCounter
	startTime time.Time
}

// NewHealthHandler creates a health handler. users may be nil, in which
// case the readiness probe fails.
func NewHealthHandler(realm string, users UserCounter) *HealthHandler {
	return &HealthHandler{
		realm:     realm,
		users:     users,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "filerealm",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready. An empty users file is still ready:
// the store fails closed and serves zero users.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("realm not initialized"))
		return
	}
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"realm": h.realm,
		"users": h.users.UsersCount(),
	}))
}
