package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tasktrack/backend/internal/domain"
)

// TaskRepository handles database operations for tasks. Every mutation is
// scoped to the calling owner.
type TaskRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewTaskRepository creates a new TaskRepository. A nil clock uses time.Now.
// Timestamps are truncated to the microsecond precision of TIMESTAMPTZ so
// returned tasks equal what a later read yields.
func NewTaskRepository(db *pgxpool.Pool, clock func() time.Time) *TaskRepository {
	if clock == nil {
		clock = time.Now
	}
	return &TaskRepository{db: db, now: func() time.Time { return clock().Truncate(time.Microsecond) }}
}

// Create validates the fields, fills defaults and inserts a new task.
func (r *TaskRepository) Create(ctx context.Context, ownerID string, fields *domain.TaskFields) (*domain.Task, error) {
	t, err := domain.NewTask(ownerID, fields, r.now())
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tasks (id, owner_id, title, description, status, category, priority, tags,
			due_at, reminder_at, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = conn(ctx, r.db).Exec(ctx, query,
		t.ID, t.OwnerID, t.Title, t.Description, t.Status, t.Category, t.Priority, tagsArg(t.Tags),
		t.DueAt, t.ReminderAt, t.Notes, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// Get returns a task owned by callerID.
func (r *TaskRepository) Get(ctx context.Context, taskID, callerID string) (*domain.Task, error) {
	return r.findOwned(ctx, taskID, callerID, false)
}

// Update applies a partial update to a task owned by callerID and returns
// the task before and after the change.
func (r *TaskRepository) Update(ctx context.Context, taskID, callerID string, patch *domain.TaskPatch) (*domain.TaskChange, error) {
	before, err := r.findOwned(ctx, taskID, callerID, true)
	if err != nil {
		return nil, err
	}

	after, err := before.ApplyPatch(patch, r.now())
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE tasks SET title = $1, description = $2, status = $3, category = $4, priority = $5,
			tags = $6, due_at = $7, reminder_at = $8, notes = $9, updated_at = $10
		WHERE id = $11
	`
	_, err = conn(ctx, r.db).Exec(ctx, query,
		after.Title, after.Description, after.Status, after.Category, after.Priority,
		tagsArg(after.Tags), after.DueAt, after.ReminderAt, after.Notes, after.UpdatedAt, after.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &domain.TaskChange{Before: before, After: after}, nil
}

// Delete hard-removes a task owned by callerID and returns the removed row.
func (r *TaskRepository) Delete(ctx context.Context, taskID, callerID string) (*domain.Task, error) {
	t, err := r.findOwned(ctx, taskID, callerID, true)
	if err != nil {
		return nil, err
	}
	if _, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}
	return t, nil
}

// ListByOwner returns the owner's tasks. A nil filter returns all of them,
// newest first.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string, filter *domain.TaskFilter) ([]*domain.Task, error) {
	query, args := BuildTaskListQuery(Postgres, ownerID, filter)
	return r.queryTasks(ctx, query, args...)
}

// CountByOwner returns how many tasks the owner currently has.
func (r *TaskRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// ListReminders returns unfinished tasks with reminder_at in (from, to].
func (r *TaskRepository) ListReminders(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks
		WHERE reminder_at > $1 AND reminder_at <= $2 AND status != 'done'
		ORDER BY reminder_at ASC, id`, TaskColumns)
	return r.queryTasks(ctx, query, from, to)
}

func (r *TaskRepository) findOwned(ctx context.Context, taskID, callerID string, forUpdate bool) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, TaskColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}
	t, err := scanTask(conn(ctx, r.db).QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound("task not found")
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if t.OwnerID != callerID {
		return nil, domain.ErrForbidden("you do not own this task")
	}
	return t, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// tagsArg binds tags for the NOT NULL tags column. pgx encodes a nil
// slice as NULL.
func tagsArg(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Status, &t.Category, &t.Priority, &t.Tags,
		&t.DueAt, &t.ReminderAt, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}
