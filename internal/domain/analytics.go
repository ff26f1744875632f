package domain

import "time"

const (
	// DefaultAnalyticsPeriod is the window in days used when none or an invalid one is given.
	DefaultAnalyticsPeriod = 30
	// MaxAnalyticsPeriod caps the window in days.
	MaxAnalyticsPeriod = 365
	// WeeklyGoal is the fixed weekly completion target.
	WeeklyGoal = 20
)

// Dashboard is the full analytics response for one user and window.
type Dashboard struct {
	Period       int                  `json:"period"`
	GeneratedAt  time.Time            `json:"generatedAt"`
	Overview     Overview             `json:"overview"`
	Productivity Productivity         `json:"productivity"`
	Trends       Trends               `json:"trends"`
	Categories   CategoryBreakdown    `json:"categories"`
	Priorities   map[string]GroupStat `json:"priorities"`
	Goals        GoalProgress         `json:"goals"`
}

// Overview holds headline counts and rates.
type Overview struct {
	TotalTasks            int     `json:"totalTasks"`
	CompletedTasks        int     `json:"completedTasks"`
	PendingTasks          int     `json:"pendingTasks"`
	OverdueTasks          int     `json:"overdueTasks"`
	CompletionRate        float64 `json:"completionRate"`
	OnTimeRate            float64 `json:"onTimeRate"`
	ConsistencyScore      float64 `json:"consistencyScore"`
	AverageCompletionTime float64 `json:"averageCompletionTime"` // hours
	ProductivityScore     float64 `json:"productivityScore"`
}

// Productivity holds streaks and completion distribution.
type Productivity struct {
	DailyAverage  float64        `json:"dailyAverage"`
	BestDay       *DayCount      `json:"bestDay"`
	CurrentStreak int            `json:"currentStreak"`
	LongestStreak int            `json:"longestStreak"`
	WeeklyPattern []WeekdayCount `json:"weeklyPattern"`
	PeakHours     map[int]int    `json:"peakHours"`
}

// DayCount is a number of completions on a calendar date (YYYY-MM-DD).
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// WeekdayCount is a number of completions on a weekday.
type WeekdayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Trends holds per-day activity inside the window.
type Trends struct {
	Daily []DailyActivity `json:"daily"`
}

// DailyActivity counts created and completed events on one date.
type DailyActivity struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// GroupStat counts tasks in one category or priority bucket.
type GroupStat struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// CategoryBreakdown is either a breakdown or an explicit unavailable marker.
type CategoryBreakdown struct {
	Available      bool                 `json:"available"`
	Message        string               `json:"message,omitempty"`
	Breakdown      map[string]GroupStat `json:"breakdown,omitempty"`
	MostProductive *string              `json:"mostProductive,omitempty"`
}

// GoalProgress tracks the fixed weekly completion goal.
type GoalProgress struct {
	WeeklyGoal          int     `json:"weeklyGoal"`
	WeeklyProgress      int     `json:"weeklyProgress"`
	WeeklyPercentage    float64 `json:"weeklyPercentage"`
	OnTrack             bool    `json:"onTrack"`
	ProjectedCompletion float64 `json:"projectedCompletion"`
}
