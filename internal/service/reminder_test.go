package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/backend/internal/domain"
)

type recordingNotifier struct {
	sent []string
	fail map[string]bool
}

func (n *recordingNotifier) Notify(_ context.Context, _ *domain.User, task *domain.Task) error {
	if n.fail[task.ID] {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, task.ID)
	return nil
}

func TestReminderDispatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	premium := h.premiumUser(t, "ann@example.com")
	basic := h.basicUser(t, "bob@example.com")

	notifier := &recordingNotifier{}
	log, _ := test.NewNullLogger()
	svc := NewReminderService(h.tasks, h.users, notifier, h.clock.now, log)

	soon, err := h.taskSvc.Create(ctx, premium, &domain.TaskFields{Title: "soon", ReminderAt: timePtr(base.Add(5 * time.Minute))})
	require.NoError(t, err)
	later, err := h.taskSvc.Create(ctx, premium, &domain.TaskFields{Title: "later", ReminderAt: timePtr(base.Add(time.Hour))})
	require.NoError(t, err)
	// written straight to the store; the owner is not entitled to reminders
	_, err = h.tasks.Create(ctx, basic.ID, &domain.TaskFields{Title: "gated", ReminderAt: timePtr(base.Add(5 * time.Minute))})
	require.NoError(t, err)

	h.clock.advance(10 * time.Minute)
	n, err := svc.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{soon.ID}, notifier.sent)

	// the window advanced; nothing is sent twice
	n, err = svc.Dispatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.advance(time.Hour)
	n, err = svc.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{soon.ID, later.ID}, notifier.sent)
}

func TestReminderNotifyFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.premiumUser(t, "ann@example.com")

	task, err := h.taskSvc.Create(ctx, u, &domain.TaskFields{Title: "x", ReminderAt: timePtr(base.Add(time.Minute))})
	require.NoError(t, err)

	notifier := &recordingNotifier{fail: map[string]bool{task.ID: true}}
	log, hook := test.NewNullLogger()
	svc := NewReminderService(h.tasks, h.users, notifier, h.clock.now, log)

	h.clock.advance(2 * time.Minute)
	n, err := svc.Dispatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, task.ID, hook.LastEntry().Data["task_id"])
}

func TestLogNotifier(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := NewLogNotifier(log)
	user := &domain.User{ID: "u1", Email: "ann@example.com"}
	task := &domain.Task{ID: "t1", Title: "call mum"}

	require.NoError(t, n.Notify(context.Background(), user, task))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "task reminder", hook.LastEntry().Message)
	assert.Equal(t, "t1", hook.LastEntry().Data["task_id"])
}
