package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan change actions recorded in the subscription history.
const (
	PlanActionUpgrade = "upgrade"
	PlanActionExpired = "expired"
)

// SubscriptionStatus is the projection returned by GET /api/subscription.
// Remaining is nil for premium users (unbounded).
type SubscriptionStatus struct {
	Plan             string     `json:"plan"`
	ExpiresAt        *time.Time `json:"expiresAt"`
	TaskLimit        *int       `json:"taskLimit"`
	CurrentTaskCount int        `json:"currentTaskCount"`
	Remaining        *int       `json:"remaining"`
	CanSetReminders  bool       `json:"canSetReminders"`
	CanUseCategories bool       `json:"canUseCategories"`
	CanExportData    bool       `json:"canExportData"`
	IsPremium        bool       `json:"isPremium"`
}

// PlanChange is an append-only subscription history row.
type PlanChange struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	FromPlan  string     `json:"fromPlan"`
	ToPlan    string     `json:"toPlan"`
	Action    string     `json:"action"`
	ExpiresAt *time.Time `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewPlanChange stamps a history row with a fresh id.
func NewPlanChange(userID, from, to, action string, expiresAt *time.Time, now time.Time) *PlanChange {
	return &PlanChange{
		ID:        uuid.New().String(),
		UserID:    userID,
		FromPlan:  from,
		ToPlan:    to,
		Action:    action,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
}

// UpgradeResponse is returned after a successful upgrade.
type UpgradeResponse struct {
	Message      string             `json:"message"`
	Subscription SubscriptionStatus `json:"subscription"`
}

// ExportUser is the user summary embedded in a data export.
type ExportUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

// Export is a serializable snapshot of a user's tasks.
type Export struct {
	User       ExportUser `json:"user"`
	Tasks      []*Task    `json:"tasks"`
	ExportedAt time.Time  `json:"exportedAt"`
}
