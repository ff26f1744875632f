package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tasktrack/backend/internal/domain"
)

// EventRepository is the append-only task event log. It exposes no update
// or delete.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Append writes one event. task_id is not checked against tasks.
func (r *EventRepository) Append(ctx context.Context, e *domain.TaskEvent) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	query := `
		INSERT INTO task_events (id, user_id, task_id, event_type, event_data, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = conn(ctx, r.db).Exec(ctx, query, e.ID, e.UserID, e.TaskID, e.Type, data, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Query returns the user's events in occurred_at order.
func (r *EventRepository) Query(ctx context.Context, userID string, f domain.EventFilter) ([]*domain.TaskEvent, error) {
	query, args := BuildEventQuery(Postgres, userID, f)
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*domain.TaskEvent{}
	for rows.Next() {
		var e domain.TaskEvent
		var data []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.TaskID, &e.Type, &data, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return nil, fmt.Errorf("failed to decode event data: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
