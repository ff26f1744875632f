package domain

import (
	"math"
	"time"
)

// Plan identifiers stored on users.plan.
const (
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

const (
	// DefaultTaskLimit is the task cap assigned to basic users at signup.
	DefaultTaskLimit = 10
	// UnlimitedTaskLimit is stored for premium users; large enough to never bind.
	UnlimitedTaskLimit = math.MaxInt32
	// PremiumTerm is how long an upgrade lasts.
	PremiumTerm = 365 * 24 * time.Hour
)

// Feature names a premium capability.
type Feature string

const (
	FeatureCategories Feature = "categories"
	FeatureReminders  Feature = "reminders"
	FeatureExport     Feature = "export"
	FeatureNotes      Feature = "notes"
	FeatureAnalytics  Feature = "analytics"
)

// Label is the human readable feature name used in upgrade prompts.
func (f Feature) Label() string {
	switch f {
	case FeatureCategories:
		return "Categories"
	case FeatureReminders:
		return "Reminders"
	case FeatureExport:
		return "Data export"
	case FeatureNotes:
		return "Notes"
	case FeatureAnalytics:
		return "Analytics"
	default:
		return string(f)
	}
}

// PlanInfo describes a subscription plan for the pricing page.
type PlanInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaskLimit *int      `json:"taskLimit"` // nil means unlimited
	Features  []Feature `json:"features"`
	TermDays  int       `json:"termDays,omitempty"`
	Popular   bool      `json:"popular"` // Show "Most Popular" badge
}

// AvailablePlans returns all available plans.
func AvailablePlans() []PlanInfo {
	limit := DefaultTaskLimit
	return []PlanInfo{
		{
			ID:        PlanBasic,
			Name:      "Basic",
			TaskLimit: &limit,
			Features:  []Feature{},
		},
		{
			ID:   PlanPremium,
			Name: "Premium",
			Features: []Feature{
				FeatureCategories,
				FeatureReminders,
				FeatureNotes,
				FeatureExport,
				FeatureAnalytics,
			},
			TermDays: int(PremiumTerm / (24 * time.Hour)),
			Popular:  true,
		},
	}
}
