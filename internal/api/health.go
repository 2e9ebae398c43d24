package api

import (
	"net/http"
	"time"

	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/database"
)

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	db        *database.DB
	bk        *broker.Client
	startTime time.Time
}

func NewHealthHandler(db *database.DB, bk *broker.Client, startTime time.Time) *HealthHandler {
	return &HealthHandler{db: db, bk: bk, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.bk != nil && h.bk.IsConnected() {
		checks["broker"] = "ok"
	} else {
		checks["broker"] = "disconnected"
		if status == "healthy" {
			status = "degraded"
		}
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
