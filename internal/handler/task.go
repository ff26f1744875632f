package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/service"
)

// TaskHandler handles task HTTP endpoints.
type TaskHandler struct {
	svc *service.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	tasks, err := h.svc.List(r.Context(), CurrentUser(r), filter)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, tasks)
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.Get(r.Context(), CurrentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, task)
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.TaskFields
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}

	task, err := h.svc.Create(r.Context(), CurrentUser(r), &req)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusCreated, task)
}

// Update handles PUT and PATCH /api/tasks/{id}. Only fields present in the
// body change; an explicit null clears an optional field.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.TaskPatch
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}

	task, err := h.svc.Update(r.Context(), CurrentUser(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), CurrentUser(r), chi.URLParam(r, "id")); err != nil {
		Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseTaskFilter(r *http.Request) (*domain.TaskFilter, error) {
	q := r.URL.Query()
	f := &domain.TaskFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return nil, domain.ErrValidation("limit: must be an integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil {
			return nil, domain.ErrValidation("offset: must be an integer")
		}
	}
	return f, nil
}
