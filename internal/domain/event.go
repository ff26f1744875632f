package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task lifecycle event types.
const (
	EventCreated       = "created"
	EventUpdated       = "updated"
	EventCompleted     = "completed"
	EventStatusChanged = "status_changed"
	EventDeleted       = "deleted"
)

// TaskEvent is an immutable record of a task lifecycle transition.
// TaskID is a historical reference; the task may no longer exist.
type TaskEvent struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"userId"`
	TaskID     string                 `json:"taskId"`
	Type       string                 `json:"eventType"`
	Data       map[string]interface{} `json:"eventData"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// NewTaskEvent stamps a new event with a fresh id.
func NewTaskEvent(userID, taskID, eventType string, data map[string]interface{}, occurredAt time.Time) *TaskEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &TaskEvent{
		ID:         uuid.New().String(),
		UserID:     userID,
		TaskID:     taskID,
		Type:       eventType,
		Data:       data,
		OccurredAt: occurredAt,
	}
}

// EventFilter narrows an event log query. Zero values mean unbounded.
// From is inclusive, To is exclusive.
type EventFilter struct {
	Types []string
	From  *time.Time
	To    *time.Time
}
