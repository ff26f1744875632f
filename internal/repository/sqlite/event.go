package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/repository"
)

// EventLog is the SQLite append-only task event log.
type EventLog struct {
	db *sql.DB
}

func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) Append(ctx context.Context, e *domain.TaskEvent) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	_, err = conn(ctx, l.db).ExecContext(ctx, `
		INSERT INTO task_events (id, user_id, task_id, event_type, event_data, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.TaskID, e.Type, string(data), nanos(e.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (l *EventLog) Query(ctx context.Context, userID string, f domain.EventFilter) ([]*domain.TaskEvent, error) {
	query, args := repository.BuildEventQuery(Dialect, userID, f)
	rows, err := conn(ctx, l.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []*domain.TaskEvent{}
	for rows.Next() {
		var (
			e          domain.TaskEvent
			data       string
			occurredAt int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.TaskID, &e.Type, &data, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("decode event data: %w", err)
		}
		e.OccurredAt = fromNanos(occurredAt)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
