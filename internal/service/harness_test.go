package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/repository/sqlite"
	"github.com/tasktrack/backend/pkg/crypto"
)

// 2026-03-10 is a Tuesday.
var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const testKey = "0123456789abcdef0123456789abcdef"

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// harness wires every service over a fresh SQLite database and a pinned clock.
type harness struct {
	clock   *fakeClock
	hook    *test.Hook
	users   *sqlite.UserStore
	tasks   *sqlite.TaskStore
	events  *sqlite.EventLog
	history *sqlite.PlanChangeLog

	taskSvc   *TaskService
	subSvc    *SubscriptionService
	analytics *AnalyticsService
	auth      *AuthService
}

func newHarness(t *testing.T, opts ...TaskOption) *harness {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enc, err := crypto.NewEncryptor(testKey)
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	clock := &fakeClock{t: base}
	h := &harness{
		clock:   clock,
		hook:    hook,
		users:   sqlite.NewUserStore(db),
		tasks:   sqlite.NewTaskStore(db, clock.now),
		events:  sqlite.NewEventLog(db),
		history: sqlite.NewPlanChangeLog(db),
	}
	tx := sqlite.NewTxManager(db)

	opts = append([]TaskOption{WithNoteSealer(enc), WithTaskClock(clock.now)}, opts...)
	h.taskSvc = NewTaskService(tx, h.users, h.tasks, h.events, log, opts...)
	h.subSvc = NewSubscriptionService(tx, h.users, h.tasks, h.history, enc, clock.now, log)
	h.analytics = NewAnalyticsService(h.tasks, h.events, time.UTC, clock.now, log)
	h.auth = NewAuthService("test-secret", h.users, clock.now, log)
	return h
}

func (h *harness) basicUser(t *testing.T, email string) *domain.User {
	t.Helper()
	u := domain.NewBasicUser("Test", email, "hash", h.clock.now())
	require.NoError(t, h.users.Create(context.Background(), u))
	return u
}

func (h *harness) premiumUser(t *testing.T, email string) *domain.User {
	t.Helper()
	u := h.basicUser(t, email)
	_, err := h.subSvc.Upgrade(context.Background(), u)
	require.NoError(t, err)
	return u
}

func (h *harness) eventsOf(t *testing.T, userID string, types ...string) []*domain.TaskEvent {
	t.Helper()
	events, err := h.events.Query(context.Background(), userID, domain.EventFilter{Types: types})
	require.NoError(t, err)
	return events
}

func eventTypes(events []*domain.TaskEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
