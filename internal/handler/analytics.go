package handler

import (
	"net/http"

	"github.com/tasktrack/backend/internal/service"
)

// AnalyticsHandler serves the productivity dashboard.
type AnalyticsHandler struct {
	svc *service.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Dashboard handles GET /api/analytics?period=N.
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	period := service.ParsePeriod(r.URL.Query().Get("period"))
	dashboard, err := h.svc.Dashboard(r.Context(), CurrentUser(r), period)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, dashboard)
}
