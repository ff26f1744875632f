package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithoutLock(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(nil, nil, log)

	calls := 0
	s.Run(context.Background(), "count", func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})
	assert.Equal(t, 1, calls)
	assert.Empty(t, hook.Entries)
}

func TestRunLogsFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(time.UTC, nil, log)

	s.Run(context.Background(), "broken", func(context.Context) error {
		return errors.New("boom")
	})
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "broken", hook.LastEntry().Data["job"])
}

func TestAddRejectsBadSpec(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := New(time.UTC, nil, log)

	err := s.Add("bad", "every now and then", func(context.Context) error { return nil })
	assert.Error(t, err)

	require.NoError(t, s.Add("ok", "@every 1m", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("cron", "*/5 * * * *", func(context.Context) error { return nil }))
}

func TestScheduledJobRuns(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := New(time.UTC, nil, log)

	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}
