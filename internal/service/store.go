package service

import (
	"context"
	"time"

	"github.com/tasktrack/backend/internal/domain"
)

// UserStore persists users and their subscription facet. Finders return
// nil, nil when no user matches.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	LockForUpdate(ctx context.Context, id string) (*domain.User, error)
	Exists(ctx context.Context, email string) (bool, error)
	UpdateSubscription(ctx context.Context, u *domain.User) error
	ListLapsedPremium(ctx context.Context, now time.Time) ([]*domain.User, error)
}

// TaskStore is CRUD over tasks scoped by owner. Get, Update and Delete
// return a not_found AppError for unknown ids and a forbidden AppError when
// the caller is not the owner.
type TaskStore interface {
	Create(ctx context.Context, ownerID string, fields *domain.TaskFields) (*domain.Task, error)
	Get(ctx context.Context, taskID, callerID string) (*domain.Task, error)
	Update(ctx context.Context, taskID, callerID string, patch *domain.TaskPatch) (*domain.TaskChange, error)
	Delete(ctx context.Context, taskID, callerID string) (*domain.Task, error)
	ListByOwner(ctx context.Context, ownerID string, filter *domain.TaskFilter) ([]*domain.Task, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	ListReminders(ctx context.Context, from, to time.Time) ([]*domain.Task, error)
}

// EventLog is the append-only task event log.
type EventLog interface {
	Append(ctx context.Context, e *domain.TaskEvent) error
	Query(ctx context.Context, userID string, f domain.EventFilter) ([]*domain.TaskEvent, error)
}

// PlanChangeLog records subscription history.
type PlanChangeLog interface {
	Record(ctx context.Context, c *domain.PlanChange) error
	ListByUser(ctx context.Context, userID string) ([]*domain.PlanChange, error)
}

// Transactor runs fn atomically. Stores called with the ctx handed to fn
// take part in the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock returns the current time. Services take one so tests can pin now.
type Clock func() time.Time

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
