package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/repository/sqlite"
	"github.com/tasktrack/backend/internal/service"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type api struct {
	t       *testing.T
	handler http.Handler
	clock   time.Time
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a := &api{t: t, clock: base}
	now := func() time.Time { return a.clock }
	log, _ := test.NewNullLogger()

	tx := sqlite.NewTxManager(db)
	users := sqlite.NewUserStore(db)
	tasks := sqlite.NewTaskStore(db, now)
	events := sqlite.NewEventLog(db)
	history := sqlite.NewPlanChangeLog(db)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a.handler = NewRouter(ctx, Deps{
		Auth:          service.NewAuthService("test-secret", users, now, log),
		Tasks:         service.NewTaskService(tx, users, tasks, events, log, service.WithTaskClock(now)),
		Subscriptions: service.NewSubscriptionService(tx, users, tasks, history, nil, now, log),
		Analytics:     service.NewAnalyticsService(tasks, events, time.UTC, now, log),
		Ping:          db.PingContext,
		CORSOrigins:   []string{"http://localhost:3000"},
		Log:           log,
		Now:           now,
		AuthRPS:       100,
		AuthBurst:     100,
	})
	return a
}

type response struct {
	*httptest.ResponseRecorder
}

func (r response) json(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), v), r.Body.String())
}

func (r response) object(t *testing.T) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	r.json(t, &out)
	return out
}

func (a *api) do(method, path, token string, body interface{}) response {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return response{rec}
}

func (a *api) register(email string) string {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Test", "email": email, "password": "hunter22",
	})
	require.Equal(a.t, http.StatusCreated, res.Code, res.Body.String())
	var out domain.LoginResponse
	res.json(a.t, &out)
	return out.Token
}

func TestPublicRoutes(t *testing.T) {
	a := newAPI(t)

	res := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.object(t)["database"])

	res = a.do(http.MethodGet, "/api/plans", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	plans := res.object(t)
	assert.Equal(t, float64(domain.DefaultTaskLimit), plans["taskLimit"])
	assert.Equal(t, float64(365), plans["premiumDays"])
	assert.Len(t, plans["plans"], 2)

	res = a.do(http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, domain.KindUnauthorized, res.object(t)["kind"])
	assert.NotEmpty(t, res.Header().Get("X-Request-ID"))
}

func TestHealthDegraded(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := NewRouter(context.Background(), Deps{
		Ping: func(context.Context) error { return errors.New("down") },
		Log:  log,
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	token := a.register("ann@example.com")

	res := a.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	me := res.object(t)
	assert.Equal(t, "ann@example.com", me["email"])
	assert.NotContains(t, me, "password")

	res = a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusOK, res.Code)

	res = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = a.do(http.MethodPost, "/api/auth/login", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, domain.KindBadRequest, res.object(t)["kind"])
}

func TestTaskCRUD(t *testing.T) {
	a := newAPI(t)
	token := a.register("ann@example.com")
	other := a.register("bob@example.com")

	res := a.do(http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title": "Write report", "priority": "high", "tags": []string{"q1"},
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var task domain.Task
	res.json(t, &task)
	assert.Equal(t, "pending", task.Status)
	assert.Equal(t, []string{"q1"}, task.Tags)

	res = a.do(http.MethodGet, "/api/tasks/"+task.ID, token, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = a.do(http.MethodGet, "/api/tasks/"+task.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, domain.KindForbidden, res.object(t)["kind"])

	res = a.do(http.MethodGet, "/api/tasks/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	a.clock = a.clock.Add(time.Minute)
	res = a.do(http.MethodPatch, "/api/tasks/"+task.ID, token, map[string]interface{}{"status": "done"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var updated domain.Task
	res.json(t, &updated)
	assert.Equal(t, "done", updated.Status)
	assert.Equal(t, "Write report", updated.Title)

	res = a.do(http.MethodPut, "/api/tasks/"+task.ID, token, map[string]interface{}{"priority": "urgent"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Equal(t, domain.KindValidation, res.object(t)["kind"])

	res = a.do(http.MethodGet, "/api/tasks?status=done", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var list []domain.Task
	res.json(t, &list)
	assert.Len(t, list, 1)

	res = a.do(http.MethodGet, "/api/tasks?limit=abc", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = a.do(http.MethodDelete, "/api/tasks/"+task.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = a.do(http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, "[]", res.Body.String())
}

func TestLimitAndGatesOverHTTP(t *testing.T) {
	a := newAPI(t)
	token := a.register("ann@example.com")

	res := a.do(http.MethodPost, "/api/tasks", token, map[string]interface{}{"title": "x", "category": "work"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	gated := res.object(t)
	assert.Equal(t, domain.KindFeatureGated, gated["kind"])
	assert.Equal(t, "categories", gated["feature"])
	assert.Equal(t, true, gated["requiresPremium"])

	for i := 0; i < domain.DefaultTaskLimit; i++ {
		res = a.do(http.MethodPost, "/api/tasks", token, map[string]interface{}{"title": "task"})
		require.Equal(t, http.StatusCreated, res.Code)
	}
	res = a.do(http.MethodPost, "/api/tasks", token, map[string]interface{}{"title": "one more"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	limit := res.object(t)
	assert.Equal(t, domain.KindLimitReached, limit["kind"])
	assert.Equal(t, float64(10), limit["current"])
	assert.Equal(t, float64(10), limit["limit"])

	res = a.do(http.MethodGet, "/api/subscription", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var status domain.SubscriptionStatus
	res.json(t, &status)
	assert.Equal(t, 10, status.CurrentTaskCount)
	assert.Equal(t, 0, *status.Remaining)
}

func TestPremiumRoutes(t *testing.T) {
	a := newAPI(t)
	token := a.register("ann@example.com")

	res := a.do(http.MethodGet, "/api/analytics", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "analytics", res.object(t)["feature"])

	res = a.do(http.MethodGet, "/api/subscription/export", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "export", res.object(t)["feature"])

	res = a.do(http.MethodPost, "/api/subscription/upgrade", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var upgrade domain.UpgradeResponse
	res.json(t, &upgrade)
	assert.True(t, upgrade.Subscription.IsPremium)

	res = a.do(http.MethodPost, "/api/subscription/upgrade", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, domain.KindAlreadyPremium, res.object(t)["kind"])

	res = a.do(http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title": "x", "category": "work", "notes": "n", "reminderAt": base.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = a.do(http.MethodGet, "/api/analytics?period=7", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var dash domain.Dashboard
	res.json(t, &dash)
	assert.Equal(t, 7, dash.Period)
	assert.Equal(t, 1, dash.Overview.TotalTasks)
	assert.True(t, dash.Categories.Available)

	res = a.do(http.MethodGet, "/api/subscription/export", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, `attachment; filename="tasktrack-export-2026-03-10.json"`, res.Header().Get("Content-Disposition"))
	var export domain.Export
	res.json(t, &export)
	assert.Len(t, export.Tasks, 1)

	res = a.do(http.MethodGet, "/api/subscription/history", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var history []domain.PlanChange
	res.json(t, &history)
	require.Len(t, history, 1)
	assert.Equal(t, domain.PlanActionUpgrade, history[0].Action)
}

func TestCORSPreflight(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}
