// Package entitlement answers plan and feature questions about a user.
// Every function is a pure evaluation over the state it is given; callers
// must pass a freshly loaded user and task count.
package entitlement

import (
	"time"

	"github.com/tasktrack/backend/internal/domain"
)

// IsPremium reports whether the user holds an active premium plan.
// A nil expiry means the plan never lapses.
func IsPremium(u *domain.User, now time.Time) bool {
	if u == nil || u.Plan != domain.PlanPremium {
		return false
	}
	return u.PlanExpiresAt == nil || u.PlanExpiresAt.After(now)
}

// CanCreateTask reports whether the user may create one more task given
// their current task count.
func CanCreateTask(u *domain.User, currentTaskCount int, now time.Time) bool {
	if IsPremium(u, now) {
		return true
	}
	return u != nil && currentTaskCount < u.TaskLimit
}

// CanUseFeature reports whether the user may use a premium feature. Flags
// are AND-ed with an active subscription: a flag alone never grants access.
func CanUseFeature(u *domain.User, feature domain.Feature, now time.Time) bool {
	if !IsPremium(u, now) {
		return false
	}
	switch feature {
	case domain.FeatureCategories:
		return u.CanUseCategories
	case domain.FeatureReminders:
		return u.CanSetReminders
	case domain.FeatureExport:
		return u.CanExportData
	case domain.FeatureNotes, domain.FeatureAnalytics:
		return true
	default:
		return false
	}
}

// Remaining returns how many more tasks the user may create, or nil when
// the user is unbounded.
func Remaining(u *domain.User, currentTaskCount int, now time.Time) *int {
	if IsPremium(u, now) {
		return nil
	}
	r := u.TaskLimit - currentTaskCount
	if r < 0 {
		r = 0
	}
	return &r
}
