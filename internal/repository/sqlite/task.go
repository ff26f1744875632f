package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/repository"
)

// TaskStore is the SQLite task store.
type TaskStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTaskStore creates a TaskStore. A nil clock uses time.Now.
func NewTaskStore(db *sql.DB, clock func() time.Time) *TaskStore {
	if clock == nil {
		clock = time.Now
	}
	return &TaskStore{db: db, now: clock}
}

func (s *TaskStore) Create(ctx context.Context, ownerID string, fields *domain.TaskFields) (*domain.Task, error) {
	t, err := domain.NewTask(ownerID, fields, s.now())
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	_, err = conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tasks (id, owner_id, title, description, status, category, priority, tags,
			due_at, reminder_at, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, t.Description, t.Status, t.Category, t.Priority, string(tags),
		nullNanos(t.DueAt), nullNanos(t.ReminderAt), t.Notes, nanos(t.CreatedAt), nanos(t.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) Get(ctx context.Context, taskID, callerID string) (*domain.Task, error) {
	return s.findOwned(ctx, taskID, callerID)
}

func (s *TaskStore) Update(ctx context.Context, taskID, callerID string, patch *domain.TaskPatch) (*domain.TaskChange, error) {
	before, err := s.findOwned(ctx, taskID, callerID)
	if err != nil {
		return nil, err
	}
	after, err := before.ApplyPatch(patch, s.now())
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(after.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	_, err = conn(ctx, s.db).ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, category = ?, priority = ?,
			tags = ?, due_at = ?, reminder_at = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		after.Title, after.Description, after.Status, after.Category, after.Priority,
		string(tags), nullNanos(after.DueAt), nullNanos(after.ReminderAt), after.Notes,
		nanos(after.UpdatedAt), after.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return &domain.TaskChange{Before: before, After: after}, nil
}

func (s *TaskStore) Delete(ctx context.Context, taskID, callerID string) (*domain.Task, error) {
	t, err := s.findOwned(ctx, taskID, callerID)
	if err != nil {
		return nil, err
	}
	if _, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) ListByOwner(ctx context.Context, ownerID string, filter *domain.TaskFilter) ([]*domain.Task, error) {
	query, args := repository.BuildTaskListQuery(Dialect, ownerID, filter)
	return s.queryTasks(ctx, query, args...)
}

func (s *TaskStore) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	if err := conn(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE owner_id = ?`, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

func (s *TaskStore) ListReminders(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	query := `SELECT ` + repository.TaskColumns + ` FROM tasks
		WHERE reminder_at > ? AND reminder_at <= ? AND status != 'done'
		ORDER BY reminder_at ASC, id`
	return s.queryTasks(ctx, query, nanos(from), nanos(to))
}

func (s *TaskStore) findOwned(ctx context.Context, taskID, callerID string) (*domain.Task, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+repository.TaskColumns+` FROM tasks WHERE id = ?`, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("task not found")
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	if t.OwnerID != callerID {
		return nil, domain.ErrForbidden("you do not own this task")
	}
	return t, nil
}

func (s *TaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                          domain.Task
		description, category, nts sql.NullString
		tags                       string
		dueAt, reminderAt          sql.NullInt64
		createdAt, updatedAt       int64
	)
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &description, &t.Status, &category, &t.Priority, &tags,
		&dueAt, &reminderAt, &nts, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Description = fromNullString(description)
	t.Category = fromNullString(category)
	t.Notes = fromNullString(nts)
	t.DueAt = fromNullNanos(dueAt)
	t.ReminderAt = fromNullNanos(reminderAt)
	t.CreatedAt = fromNanos(createdAt)
	t.UpdatedAt = fromNanos(updatedAt)
	return &t, nil
}
