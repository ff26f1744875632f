package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/backend/internal/contextkeys"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/handler"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeVerifier map[string]string // token -> user id

func (f fakeVerifier) VerifyToken(token string) (*domain.JWTClaims, error) {
	id, ok := f[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &domain.JWTClaims{Sub: id, Email: id + "@example.com"}, nil
}

type fakeLoader map[string]*domain.User

func (f fakeLoader) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, domain.ErrUnauthorized("user not found")
	}
	return u, nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAuth(t *testing.T) {
	mw := Auth(fakeVerifier{"good": "u1"})

	var gotID string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = r.Context().Value(contextkeys.UserID).(string)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusNoContent},
		{"lowercase scheme", "bearer good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, domain.KindUnauthorized, decode(t, rec)["kind"])
			}
		})
	}
	assert.Equal(t, "u1", gotID)
}

func TestLoadUser(t *testing.T) {
	user := &domain.User{ID: "u1", Plan: domain.PlanBasic}
	mw := LoadUser(fakeLoader{"u1": user})

	var got *domain.User
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = handler.CurrentUser(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), contextkeys.UserID, "u1"))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Same(t, user, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), contextkeys.UserID, "gone"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPremiumOnly(t *testing.T) {
	h := PremiumOnly(domain.FeatureAnalytics, func() time.Time { return now })(ok)

	serve := func(u *domain.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), contextkeys.User, u))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(&domain.User{ID: "u1", Plan: domain.PlanBasic})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, domain.KindFeatureGated, body["kind"])
	assert.Equal(t, "analytics", body["feature"])
	assert.Equal(t, true, body["requiresPremium"])

	expired := now.Add(-time.Hour)
	rec = serve(&domain.User{ID: "u1", Plan: domain.PlanPremium, PlanExpiresAt: &expired})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(&domain.User{ID: "u1", Plan: domain.PlanPremium})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecovery(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["error"])
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestLoggerRequestID(t *testing.T) {
	log, hook := test.NewNullLogger()
	var seen string
	var reqLog logrus.FieldLogger
	h := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(contextkeys.RequestID).(string)
		reqLog = handler.RequestLogger(r)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	reqLog.Info("inside handler")
	assert.Equal(t, "req-123", hook.Entries[0].Data["request_id"])
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/api/tasks", entry.Data["path"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 2)

	assert.True(t, rl.allow("1.1.1.1", now))
	assert.True(t, rl.allow("1.1.1.1", now))
	assert.False(t, rl.allow("1.1.1.1", now))
	assert.True(t, rl.allow("2.2.2.2", now), "limits are per IP")
	assert.True(t, rl.allow("1.1.1.1", now.Add(time.Second)), "tokens refill")

	rl.evict(now.Add(visitorTTL + 2*time.Second))
	assert.Empty(t, rl.visitors)

	h := rl.Middleware()(ok)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
	assert.Equal(t, domain.KindRateLimited, decode(t, last)["kind"])
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", extractClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", extractClientIP(req))
}
