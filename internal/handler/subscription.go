package handler

import (
	"fmt"
	"net/http"

	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/service"
)

// SubscriptionHandler handles subscription HTTP endpoints.
type SubscriptionHandler struct {
	svc *service.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// Get handles GET /api/subscription.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.GetStatus(r.Context(), CurrentUser(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, status)
}

// Upgrade handles POST /api/subscription/upgrade.
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Upgrade(r.Context(), CurrentUser(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, resp)
}

// Export handles GET /api/subscription/export.
func (h *SubscriptionHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, err := h.svc.ExportData(r.Context(), CurrentUser(r))
	if err != nil {
		Error(w, r, err)
		return
	}

	filename := fmt.Sprintf("tasktrack-export-%s.json", export.ExportedAt.Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	JSON(w, r, http.StatusOK, export)
}

// History handles GET /api/subscription/history.
func (h *SubscriptionHandler) History(w http.ResponseWriter, r *http.Request) {
	changes, err := h.svc.History(r.Context(), CurrentUser(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, changes)
}

// Plans handles GET /api/plans.
func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]interface{}{
		"plans":       domain.AvailablePlans(),
		"taskLimit":   domain.DefaultTaskLimit,
		"premiumDays": int(domain.PremiumTerm.Hours() / 24),
	})
}
