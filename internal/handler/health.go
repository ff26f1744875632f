package handler

import (
	"context"
	"net/http"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler creates a new HealthHandler. ping checks the database.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}

	// Check DB
	if err := h.ping(r.Context()); err != nil {
		status["database"] = "error"
		status["status"] = "degraded"
	} else {
		status["database"] = "ok"
	}

	code := http.StatusOK
	if status["status"] == "degraded" {
		code = http.StatusServiceUnavailable
	}

	JSON(w, r, code, status)
}
