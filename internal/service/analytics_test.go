package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/backend/internal/domain"
)

func TestParsePeriod(t *testing.T) {
	tests := map[string]int{
		"":      30,
		"7":     7,
		" 90 ":  90,
		"0":     30,
		"-5":    30,
		"abc":   30,
		"1000":  365,
		"365":   365,
		"3.5":   30,
		"99999": 365,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParsePeriod(raw), "period %q", raw)
	}
}

func TestDashboardGatedForBasic(t *testing.T) {
	h := newHarness(t)
	u := h.basicUser(t, "ann@example.com")

	d, err := h.analytics.Dashboard(context.Background(), u, 30)
	assert.Nil(t, d)
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindFeatureGated, appErr.Kind)
	assert.Equal(t, "analytics", appErr.Details["feature"])
}

func TestDashboardEmpty(t *testing.T) {
	h := newHarness(t)
	u := h.premiumUser(t, "ann@example.com")

	d, err := h.analytics.Dashboard(context.Background(), u, 0)
	require.NoError(t, err)

	assert.Equal(t, 30, d.Period)
	assert.Equal(t, base, d.GeneratedAt)
	assert.Equal(t, domain.Overview{}, d.Overview)
	assert.Nil(t, d.Productivity.BestDay)
	assert.Zero(t, d.Productivity.CurrentStreak)
	assert.Zero(t, d.Productivity.LongestStreak)
	assert.Len(t, d.Productivity.WeeklyPattern, 7)
	assert.Equal(t, "Monday", d.Productivity.WeeklyPattern[0].Day)
	assert.Equal(t, "Sunday", d.Productivity.WeeklyPattern[6].Day)
	assert.Empty(t, d.Trends.Daily)
	assert.True(t, d.Categories.Available)
	assert.Nil(t, d.Categories.MostProductive)
	assert.Empty(t, d.Priorities)
	assert.Equal(t, domain.WeeklyGoal, d.Goals.WeeklyGoal)
	assert.Zero(t, d.Goals.WeeklyProgress)
	assert.False(t, d.Goals.OnTrack)
}

func TestDashboardStreaks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.premiumUser(t, "ann@example.com")

	complete := func(at time.Time) {
		e := domain.NewTaskEvent(u.ID, "task-"+at.Format("0102"), domain.EventCompleted, nil, at)
		require.NoError(t, h.events.Append(ctx, e))
	}
	// Feb 28 through Mar 4 is a five day run, then a gap, then today.
	for d := 10; d >= 6; d-- {
		complete(base.AddDate(0, 0, -d))
	}
	complete(base.Add(-time.Hour))

	d, err := h.analytics.Dashboard(ctx, u, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Productivity.CurrentStreak)
	assert.Equal(t, 5, d.Productivity.LongestStreak)
	assert.Equal(t, 0.2, d.Productivity.DailyAverage)
	require.NotNil(t, d.Productivity.BestDay)
	assert.Equal(t, "2026-02-28", d.Productivity.BestDay.Date)
	assert.Equal(t, 1, d.Productivity.BestDay.Count)
	assert.Equal(t, 100.0, d.Overview.ConsistencyScore)
	assert.Equal(t, map[int]int{11: 1, 12: 5}, d.Productivity.PeakHours)
	require.Len(t, d.Trends.Daily, 6)
	assert.Equal(t, "2026-02-28", d.Trends.Daily[0].Date)
	assert.Equal(t, "2026-03-10", d.Trends.Daily[5].Date)

	// a window that excludes the old run still reports it as the longest
	d, err = h.analytics.Dashboard(ctx, u, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Productivity.CurrentStreak)
	assert.Equal(t, 5, d.Productivity.LongestStreak)
	assert.Len(t, d.Trends.Daily, 1)
}

func TestDashboardOnTimeAndCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.premiumUser(t, "ann@example.com")

	late, err := h.taskSvc.Create(ctx, u, &domain.TaskFields{
		Title:    "late",
		Priority: domain.PriorityHigh,
		Category: strPtr("work"),
		DueAt:    timePtr(base.Add(time.Hour)),
	})
	require.NoError(t, err)
	_, err = h.taskSvc.Create(ctx, u, &domain.TaskFields{
		Title:    "open",
		Category: strPtr("home"),
		DueAt:    timePtr(base.Add(time.Hour)),
	})
	require.Error(t, err, "home is not a category")
	_, err = h.taskSvc.Create(ctx, u, &domain.TaskFields{
		Title:    "open",
		Category: strPtr("personal"),
		DueAt:    timePtr(base.Add(time.Hour)),
	})
	require.NoError(t, err)

	h.clock.advance(2 * time.Hour)
	_, err = h.taskSvc.Update(ctx, u, late.ID, &domain.TaskPatch{Status: domain.Some(domain.StatusDone)})
	require.NoError(t, err)

	d, err := h.analytics.Dashboard(ctx, u, 30)
	require.NoError(t, err)

	o := d.Overview
	assert.Equal(t, 2, o.TotalTasks)
	assert.Equal(t, 1, o.CompletedTasks)
	assert.Equal(t, 1, o.PendingTasks)
	assert.Equal(t, 1, o.OverdueTasks)
	assert.Equal(t, 50.0, o.CompletionRate)
	assert.Equal(t, 0.0, o.OnTimeRate)
	assert.Equal(t, 2.0, o.AverageCompletionTime)
	assert.Equal(t, 100.0, o.ConsistencyScore)
	assert.Equal(t, 40.0, o.ProductivityScore)

	assert.Equal(t, domain.GroupStat{Total: 1, Completed: 1}, d.Priorities["high"])
	assert.Equal(t, domain.GroupStat{Total: 1, Completed: 0}, d.Priorities["medium"])

	require.True(t, d.Categories.Available)
	assert.Equal(t, domain.GroupStat{Total: 1, Completed: 1}, d.Categories.Breakdown["work"])
	require.NotNil(t, d.Categories.MostProductive)
	assert.Equal(t, "work", *d.Categories.MostProductive)

	// Tuesday: one of 20 done, on track needs 20*2/7
	assert.Equal(t, 1, d.Goals.WeeklyProgress)
	assert.Equal(t, 5.0, d.Goals.WeeklyPercentage)
	assert.False(t, d.Goals.OnTrack)
	assert.Equal(t, 3.5, d.Goals.ProjectedCompletion)
}

func TestDashboardCategoriesUnavailableWithoutFlag(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.premiumUser(t, "ann@example.com")
	u.CanUseCategories = false
	require.NoError(t, h.users.UpdateSubscription(ctx, u))

	d, err := h.analytics.Dashboard(ctx, u, 30)
	require.NoError(t, err)
	assert.False(t, d.Categories.Available)
	assert.Equal(t, "Categories are a Premium feature", d.Categories.Message)
	assert.Nil(t, d.Categories.Breakdown)
}

func TestDashboardIsDeterministic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.premiumUser(t, "ann@example.com")

	for i := 0; i < 5; i++ {
		task, err := h.taskSvc.Create(ctx, u, &domain.TaskFields{Title: "t", Category: strPtr("work")})
		require.NoError(t, err)
		h.clock.advance(3 * time.Hour)
		if i%2 == 0 {
			_, err = h.taskSvc.Update(ctx, u, task.ID, &domain.TaskPatch{Status: domain.Some(domain.StatusDone)})
			require.NoError(t, err)
		}
	}

	first, err := h.analytics.Dashboard(ctx, u, 30)
	require.NoError(t, err)
	second, err := h.analytics.Dashboard(ctx, u, 30)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScoreHelpers(t *testing.T) {
	assert.Equal(t, 33.3, percent(1, 3))
	assert.Equal(t, 100.0, score(140))
	assert.Equal(t, 0.0, score(-3))
	assert.Equal(t, 2.5, round1(2.45))
}
