package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/entitlement"
)

// TaskService is the only entry point that mutates tasks. It applies the
// entitlement gates, delegates to the TaskStore and appends lifecycle
// events in the same transaction as the write.
type TaskService struct {
	tx               Transactor
	users            UserStore
	tasks            TaskStore
	events           EventLog
	notes            noteCipher
	emitDeleteEvents bool
	now              Clock
	log              logrus.FieldLogger
}

// TaskOption configures optional TaskService behaviour.
type TaskOption func(*TaskService)

// WithNoteSealer encrypts task notes at rest.
func WithNoteSealer(s NoteSealer) TaskOption {
	return func(ts *TaskService) { ts.notes = noteCipher{sealer: s} }
}

// WithDeleteEvents appends a deleted event when a task is removed.
func WithDeleteEvents(enabled bool) TaskOption {
	return func(ts *TaskService) { ts.emitDeleteEvents = enabled }
}

// WithTaskClock overrides the clock used for entitlement checks.
func WithTaskClock(c Clock) TaskOption {
	return func(ts *TaskService) { ts.now = clockOrNow(c) }
}

// NewTaskService creates a new TaskService.
func NewTaskService(tx Transactor, users UserStore, tasks TaskStore, events EventLog, log logrus.FieldLogger, opts ...TaskOption) *TaskService {
	s := &TaskService{
		tx:     tx,
		users:  users,
		tasks:  tasks,
		events: events,
		now:    clockOrNow(nil),
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create checks the task limit and feature gates, stores the task and
// appends a created event. The caller's user row is locked for the
// duration so concurrent creations cannot overshoot the limit.
func (s *TaskService) Create(ctx context.Context, caller *domain.User, fields *domain.TaskFields) (*domain.Task, error) {
	var created *domain.Task
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.LockForUpdate(ctx, caller.ID)
		if err != nil {
			return domain.ErrInternal("failed to load user", err)
		}
		if user == nil {
			return domain.ErrUnauthorized("user not found")
		}

		now := s.now()
		count, err := s.tasks.CountByOwner(ctx, user.ID)
		if err != nil {
			return domain.ErrInternal("failed to count tasks", err)
		}
		if !entitlement.CanCreateTask(user, count, now) {
			return domain.ErrLimitReached(count, user.TaskLimit)
		}
		if err := gateFields(user, fields.Category, fields.ReminderAt != nil, fields.Notes != nil, now); err != nil {
			return err
		}

		in := *fields
		if in.Notes, err = s.notes.seal(in.Notes); err != nil {
			return domain.ErrInternal("failed to encrypt notes", err)
		}

		task, err := s.tasks.Create(ctx, user.ID, &in)
		if err != nil {
			return storeErr("failed to create task", err)
		}

		e := domain.NewTaskEvent(user.ID, task.ID, domain.EventCreated, map[string]interface{}{
			"category":     task.Category,
			"priority":     task.Priority,
			"has_due_date": task.DueAt != nil,
		}, task.CreatedAt)
		if err := s.events.Append(ctx, e); err != nil {
			return domain.ErrInternal("failed to record event", err)
		}

		created = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": caller.ID, "task_id": created.ID}).Debug("task created")
	if err := s.notes.open(created); err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns one of the caller's tasks.
func (s *TaskService) Get(ctx context.Context, caller *domain.User, taskID string) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, taskID, caller.ID)
	if err != nil {
		return nil, storeErr("failed to get task", err)
	}
	if err := s.notes.open(task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the caller's tasks matching filter.
func (s *TaskService) List(ctx context.Context, caller *domain.User, filter *domain.TaskFilter) ([]*domain.Task, error) {
	if filter != nil {
		if err := filter.Normalize(); err != nil {
			return nil, err
		}
	}
	tasks, err := s.tasks.ListByOwner(ctx, caller.ID, filter)
	if err != nil {
		return nil, storeErr("failed to list tasks", err)
	}
	if err := s.notes.open(tasks...); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update applies a partial update. Feature gates apply only to fields
// present in the patch with a non-null value; clearing is always allowed.
// Events: updated always, status_changed when the status moves and
// completed when it moves to done.
func (s *TaskService) Update(ctx context.Context, caller *domain.User, taskID string, patch *domain.TaskPatch) (*domain.Task, error) {
	now := s.now()
	if err := gateFields(caller, patch.Category.Value, patch.ReminderAt.HasValue(), patch.Notes.HasValue(), now); err != nil {
		return nil, err
	}

	in := *patch
	if in.Notes.HasValue() {
		sealed, err := s.notes.seal(in.Notes.Value)
		if err != nil {
			return nil, domain.ErrInternal("failed to encrypt notes", err)
		}
		in.Notes = domain.Optional[string]{Set: true, Value: sealed}
	}

	var updated *domain.Task
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		change, err := s.tasks.Update(ctx, taskID, caller.ID, &in)
		if err != nil {
			return storeErr("failed to update task", err)
		}
		for _, e := range updateEvents(caller.ID, change) {
			if err := s.events.Append(ctx, e); err != nil {
				return domain.ErrInternal("failed to record event", err)
			}
		}
		updated = change.After
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.notes.open(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete hard-removes one of the caller's tasks.
func (s *TaskService) Delete(ctx context.Context, caller *domain.User, taskID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		task, err := s.tasks.Delete(ctx, taskID, caller.ID)
		if err != nil {
			return storeErr("failed to delete task", err)
		}
		if !s.emitDeleteEvents {
			return nil
		}
		e := domain.NewTaskEvent(caller.ID, task.ID, domain.EventDeleted, map[string]interface{}{
			"status":   task.Status,
			"priority": task.Priority,
			"category": task.Category,
		}, s.now())
		if err := s.events.Append(ctx, e); err != nil {
			return domain.ErrInternal("failed to record event", err)
		}
		return nil
	})
}

func updateEvents(userID string, c *domain.TaskChange) []*domain.TaskEvent {
	before, after := c.Before, c.After
	at := after.UpdatedAt

	events := []*domain.TaskEvent{
		domain.NewTaskEvent(userID, after.ID, domain.EventUpdated, map[string]interface{}{
			"old_status": before.Status,
			"new_status": after.Status,
			"category":   after.Category,
			"priority":   after.Priority,
		}, at),
	}
	if before.Status != after.Status {
		events = append(events, domain.NewTaskEvent(userID, after.ID, domain.EventStatusChanged, map[string]interface{}{
			"old_status": before.Status,
			"new_status": after.Status,
		}, at))
	}
	if !before.IsDone() && after.IsDone() {
		events = append(events, domain.NewTaskEvent(userID, after.ID, domain.EventCompleted, map[string]interface{}{
			"completion_time": at,
			"was_overdue":     after.DueAt != nil && at.After(*after.DueAt),
		}, at))
	}
	return events
}

// gateFields rejects premium-only values the user is not entitled to. Only
// non-empty values are gated.
func gateFields(u *domain.User, category *string, hasReminder, hasNotes bool, now time.Time) error {
	if category != nil && strings.TrimSpace(*category) != "" && !entitlement.CanUseFeature(u, domain.FeatureCategories, now) {
		return domain.ErrFeatureGated(domain.FeatureCategories)
	}
	if hasReminder && !entitlement.CanUseFeature(u, domain.FeatureReminders, now) {
		return domain.ErrFeatureGated(domain.FeatureReminders)
	}
	if hasNotes && !entitlement.CanUseFeature(u, domain.FeatureNotes, now) {
		return domain.ErrFeatureGated(domain.FeatureNotes)
	}
	return nil
}

// storeErr passes AppErrors from the store through unchanged and wraps
// anything else as internal.
func storeErr(msg string, err error) error {
	if _, ok := domain.AsAppError(err); ok {
		return err
	}
	return domain.ErrInternal(msg, err)
}
