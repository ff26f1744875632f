package service

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/entitlement"
)

const dateLayout = "2006-01-02"

// AnalyticsService computes the productivity dashboard from current task
// state and the event log. It never writes.
type AnalyticsService struct {
	tasks  TaskStore
	events EventLog
	loc    *time.Location
	now    Clock
	log    logrus.FieldLogger
}

// NewAnalyticsService creates an AnalyticsService. Calendar days are
// evaluated in loc (UTC when nil).
func NewAnalyticsService(tasks TaskStore, events EventLog, loc *time.Location, clock Clock, log logrus.FieldLogger) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{tasks: tasks, events: events, loc: loc, now: clockOrNow(clock), log: log}
}

// ParsePeriod reads the period query parameter. Missing, malformed or
// non-positive values fall back to the default window.
func ParsePeriod(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return domain.DefaultAnalyticsPeriod
	}
	return clampPeriod(n)
}

func clampPeriod(n int) int {
	if n <= 0 {
		return domain.DefaultAnalyticsPeriod
	}
	if n > domain.MaxAnalyticsPeriod {
		return domain.MaxAnalyticsPeriod
	}
	return n
}

// Dashboard returns the analytics for caller over the last period days.
// Non-premium callers get a feature_gated error, never partial data.
func (s *AnalyticsService) Dashboard(ctx context.Context, caller *domain.User, period int) (*domain.Dashboard, error) {
	now := s.now()
	if !entitlement.CanUseFeature(caller, domain.FeatureAnalytics, now) {
		return nil, domain.ErrFeatureGated(domain.FeatureAnalytics)
	}
	period = clampPeriod(period)
	since := now.AddDate(0, 0, -period)

	tasks, err := s.tasks.ListByOwner(ctx, caller.ID, nil)
	if err != nil {
		return nil, domain.ErrInternal("failed to load tasks", err)
	}
	window, err := s.events.Query(ctx, caller.ID, domain.EventFilter{
		Types: []string{domain.EventCreated, domain.EventCompleted},
		From:  &since,
	})
	if err != nil {
		return nil, domain.ErrInternal("failed to load events", err)
	}
	completions, err := s.events.Query(ctx, caller.ID, domain.EventFilter{
		Types: []string{domain.EventCompleted},
	})
	if err != nil {
		return nil, domain.ErrInternal("failed to load events", err)
	}

	in := &analyticsInput{
		now:         now,
		since:       since,
		period:      period,
		loc:         s.loc,
		tasks:       tasks,
		window:      window,
		completions: completions,
	}
	d := in.dashboard()
	d.Categories = in.categories(entitlement.CanUseFeature(caller, domain.FeatureCategories, now))

	s.log.WithFields(logrus.Fields{"user_id": caller.ID, "period": period}).Debug("analytics computed")
	return d, nil
}

// analyticsInput is one snapshot of a user's data. All metrics are pure
// functions of it.
type analyticsInput struct {
	now         time.Time
	since       time.Time
	period      int
	loc         *time.Location
	tasks       []*domain.Task
	window      []*domain.TaskEvent // created and completed events since the window start
	completions []*domain.TaskEvent // every completed event
}

func (in *analyticsInput) dashboard() *domain.Dashboard {
	completionRate := in.completionRate()
	onTimeRate := in.onTimeRate()
	consistency := in.consistencyScore()
	current := in.currentStreak()

	overview := domain.Overview{
		TotalTasks:            len(in.tasks),
		CompletionRate:        completionRate,
		OnTimeRate:            onTimeRate,
		ConsistencyScore:      consistency,
		AverageCompletionTime: in.averageCompletionHours(),
		ProductivityScore:     score(0.4*completionRate + 0.4*onTimeRate + 0.2*consistency),
	}
	for _, t := range in.tasks {
		if t.IsDone() {
			overview.CompletedTasks++
		} else {
			overview.PendingTasks++
		}
		if t.IsOverdue(in.now) {
			overview.OverdueTasks++
		}
	}

	return &domain.Dashboard{
		Period:      in.period,
		GeneratedAt: in.now,
		Overview:    overview,
		Productivity: domain.Productivity{
			DailyAverage:  round1(float64(len(in.windowCompletions())) / float64(in.period)),
			BestDay:       in.bestDay(),
			CurrentStreak: current,
			LongestStreak: max(current, in.longestStreak()),
			WeeklyPattern: in.weeklyPattern(),
			PeakHours:     in.peakHours(),
		},
		Trends:     domain.Trends{Daily: in.dailyTrend()},
		Priorities: in.priorities(),
		Goals:      in.goals(),
	}
}

func (in *analyticsInput) date(t time.Time) string {
	return t.In(in.loc).Format(dateLayout)
}

func (in *analyticsInput) windowTasks() []*domain.Task {
	var out []*domain.Task
	for _, t := range in.tasks {
		if !t.CreatedAt.Before(in.since) {
			out = append(out, t)
		}
	}
	return out
}

func (in *analyticsInput) windowCompletions() []*domain.TaskEvent {
	var out []*domain.TaskEvent
	for _, e := range in.window {
		if e.Type == domain.EventCompleted {
			out = append(out, e)
		}
	}
	return out
}

// latestCompletion maps task id to the time of its most recent completed event.
func (in *analyticsInput) latestCompletion() map[string]time.Time {
	out := make(map[string]time.Time, len(in.completions))
	for _, e := range in.completions {
		if prev, ok := out[e.TaskID]; !ok || e.OccurredAt.After(prev) {
			out[e.TaskID] = e.OccurredAt
		}
	}
	return out
}

// completionRate is done/total over tasks created inside the window.
func (in *analyticsInput) completionRate() float64 {
	tasks := in.windowTasks()
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.IsDone() {
			done++
		}
	}
	return percent(done, len(tasks))
}

// onTimeRate is the share of in-window done tasks with a due date that were
// completed at or before it.
func (in *analyticsInput) onTimeRate() float64 {
	latest := in.latestCompletion()
	total, onTime := 0, 0
	for _, t := range in.windowTasks() {
		if !t.IsDone() || t.DueAt == nil {
			continue
		}
		total++
		completedAt, ok := latest[t.ID]
		if !ok {
			completedAt = t.UpdatedAt
		}
		if !completedAt.After(*t.DueAt) {
			onTime++
		}
	}
	if total == 0 {
		return 0
	}
	return percent(onTime, total)
}

// consistencyScore is 100 - 10σ over per-day completion counts.
func (in *analyticsInput) consistencyScore() float64 {
	counts := map[string]int{}
	for _, e := range in.windowCompletions() {
		counts[in.date(e.OccurredAt)]++
	}
	if len(counts) == 0 {
		return 0
	}

	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(len(counts))
	var variance float64
	for _, c := range counts {
		variance += math.Pow(float64(c)-mean, 2)
	}
	variance /= float64(len(counts))

	return score(100 - 10*math.Sqrt(variance))
}

// averageCompletionHours is the mean time from creation to the latest
// completion for tasks completed inside the window that still exist.
func (in *analyticsInput) averageCompletionHours() float64 {
	byID := make(map[string]*domain.Task, len(in.tasks))
	for _, t := range in.tasks {
		byID[t.ID] = t
	}
	latest := in.latestCompletion()

	seen := map[string]bool{}
	var total float64
	n := 0
	for _, e := range in.windowCompletions() {
		t, ok := byID[e.TaskID]
		if !ok || seen[e.TaskID] {
			continue
		}
		seen[e.TaskID] = true
		total += latest[e.TaskID].Sub(t.CreatedAt).Hours()
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Max(0, round1(total/float64(n)))
}

// completionDays returns the set of calendar dates with at least one
// completion, across all history.
func (in *analyticsInput) completionDays() map[string]bool {
	days := make(map[string]bool, len(in.completions))
	for _, e := range in.completions {
		days[in.date(e.OccurredAt)] = true
	}
	return days
}

// currentStreak counts consecutive completion days walking back from today.
func (in *analyticsInput) currentStreak() int {
	days := in.completionDays()
	local := in.now.In(in.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, in.loc)

	streak := 0
	for days[day.Format(dateLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// longestStreak is the longest run of consecutive completion days ever.
func (in *analyticsInput) longestStreak() int {
	days := in.completionDays()
	dates := make([]time.Time, 0, len(days))
	for d := range days {
		t, err := time.Parse(dateLayout, d)
		if err == nil {
			dates = append(dates, t)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	longest, run := 0, 0
	for i, d := range dates {
		if i > 0 && dates[i-1].AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}

func (in *analyticsInput) bestDay() *domain.DayCount {
	counts := map[string]int{}
	for _, e := range in.windowCompletions() {
		counts[in.date(e.OccurredAt)]++
	}
	var best *domain.DayCount
	for d, c := range counts {
		if best == nil || c > best.Count || (c == best.Count && d < best.Date) {
			best = &domain.DayCount{Date: d, Count: c}
		}
	}
	return best
}

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func (in *analyticsInput) weeklyPattern() []domain.WeekdayCount {
	counts := map[time.Weekday]int{}
	for _, e := range in.windowCompletions() {
		counts[e.OccurredAt.In(in.loc).Weekday()]++
	}
	out := make([]domain.WeekdayCount, 0, len(weekdays))
	for _, wd := range weekdays {
		out = append(out, domain.WeekdayCount{Day: wd.String(), Count: counts[wd]})
	}
	return out
}

func (in *analyticsInput) peakHours() map[int]int {
	out := map[int]int{}
	for _, e := range in.windowCompletions() {
		out[e.OccurredAt.In(in.loc).Hour()]++
	}
	return out
}

func (in *analyticsInput) dailyTrend() []domain.DailyActivity {
	byDate := map[string]*domain.DailyActivity{}
	for _, e := range in.window {
		d := in.date(e.OccurredAt)
		a, ok := byDate[d]
		if !ok {
			a = &domain.DailyActivity{Date: d}
			byDate[d] = a
		}
		switch e.Type {
		case domain.EventCreated:
			a.Created++
		case domain.EventCompleted:
			a.Completed++
		}
	}
	out := make([]domain.DailyActivity, 0, len(byDate))
	for _, a := range byDate {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (in *analyticsInput) categories(allowed bool) domain.CategoryBreakdown {
	if !allowed {
		return domain.CategoryBreakdown{Available: false, Message: "Categories are a Premium feature"}
	}

	breakdown := map[string]domain.GroupStat{}
	for _, t := range in.windowTasks() {
		if t.Category == nil {
			continue
		}
		g := breakdown[*t.Category]
		g.Total++
		if t.IsDone() {
			g.Completed++
		}
		breakdown[*t.Category] = g
	}

	var best *string
	bestCount := 0
	for c, g := range breakdown {
		if g.Completed > bestCount || (g.Completed == bestCount && bestCount > 0 && c < *best) {
			name := c
			best, bestCount = &name, g.Completed
		}
	}
	return domain.CategoryBreakdown{Available: true, Breakdown: breakdown, MostProductive: best}
}

func (in *analyticsInput) priorities() map[string]domain.GroupStat {
	out := map[string]domain.GroupStat{}
	for _, t := range in.windowTasks() {
		g := out[t.Priority]
		g.Total++
		if t.IsDone() {
			g.Completed++
		}
		out[t.Priority] = g
	}
	return out
}

// goals tracks the fixed weekly goal. The week starts Monday; dayIndex is
// 1 on Monday and 7 on Sunday.
func (in *analyticsInput) goals() domain.GoalProgress {
	local := in.now.In(in.loc)
	dayIndex := (int(local.Weekday())+6)%7 + 1
	weekStart := time.Date(local.Year(), local.Month(), local.Day()-(dayIndex-1), 0, 0, 0, 0, in.loc)

	progress := 0
	for _, t := range in.tasks {
		if t.IsDone() && !t.UpdatedAt.Before(weekStart) {
			progress++
		}
	}

	goal := domain.WeeklyGoal
	return domain.GoalProgress{
		WeeklyGoal:          goal,
		WeeklyProgress:      progress,
		WeeklyPercentage:    score(float64(progress) / float64(goal) * 100),
		OnTrack:             float64(progress) >= float64(goal)*float64(dayIndex)/7,
		ProjectedCompletion: round1(float64(progress) / float64(dayIndex) * 7),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// score rounds to one decimal and clamps to [0, 100].
func score(v float64) float64 {
	return math.Min(100, math.Max(0, round1(v)))
}

func percent(part, whole int) float64 {
	return score(float64(part) / float64(whole) * 100)
}
