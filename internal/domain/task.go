package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Task statuses. Any status may move to any other; done is not terminal.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Categories lists the allowed task categories.
var Categories = []string{"work", "personal", "health", "finance", "education", "shopping", "travel", "general"}

// Task is a to-do item owned by exactly one user.
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Title       string     `json:"title" validate:"required,max=255"`
	Description *string    `json:"description"`
	Status      string     `json:"status" validate:"required,oneof=pending in_progress done"`
	Category    *string    `json:"category" validate:"omitempty,oneof=work personal health finance education shopping travel general"`
	Priority    string     `json:"priority" validate:"required,oneof=low medium high"`
	Tags        []string   `json:"tags" validate:"dive,required,max=50"`
	DueAt       *time.Time `json:"dueAt"`
	ReminderAt  *time.Time `json:"reminderAt"`
	Notes       *string    `json:"notes"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsDone reports whether the task is completed.
func (t *Task) IsDone() bool {
	return t.Status == StatusDone
}

// IsOverdue reports whether the task has a due date in the past and is not done.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueAt != nil && t.DueAt.Before(now) && !t.IsDone()
}

// TaskFields is the input for creating a task. Omitted status and
// priority default to pending and medium.
type TaskFields struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Category    *string    `json:"category"`
	Priority    string     `json:"priority"`
	Tags        []string   `json:"tags"`
	DueAt       *time.Time `json:"dueAt"`
	ReminderAt  *time.Time `json:"reminderAt"`
	Notes       *string    `json:"notes"`
}

// TaskPatch is a partial update. Only fields that are Set change.
type TaskPatch struct {
	Title       Optional[string]    `json:"title"`
	Description Optional[string]    `json:"description"`
	Status      Optional[string]    `json:"status"`
	Category    Optional[string]    `json:"category"`
	Priority    Optional[string]    `json:"priority"`
	Tags        Optional[[]string]  `json:"tags"`
	DueAt       Optional[time.Time] `json:"dueAt"`
	ReminderAt  Optional[time.Time] `json:"reminderAt"`
	Notes       Optional[string]    `json:"notes"`
}

// TaskChange carries a task before and after an update.
type TaskChange struct {
	Before *Task
	After  *Task
}

// NewTask builds and validates a task from create input.
func NewTask(ownerID string, f *TaskFields, now time.Time) (*Task, error) {
	t := &Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(f.Title),
		Description: f.Description,
		Status:      f.Status,
		Category:    normalizeCategory(f.Category),
		Priority:    f.Priority,
		Tags:        NormalizeTags(f.Tags),
		DueAt:       f.DueAt,
		ReminderAt:  f.ReminderAt,
		Notes:       f.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if err := ValidateTask(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ApplyPatch returns a copy of t with the patch applied and validated.
func (t *Task) ApplyPatch(p *TaskPatch, now time.Time) (*Task, error) {
	next := *t
	next.Tags = append(make([]string, 0, len(t.Tags)), t.Tags...)

	if p.Title.Set {
		if p.Title.Value == nil {
			return nil, ErrValidation("title: cannot be null")
		}
		next.Title = strings.TrimSpace(*p.Title.Value)
	}
	if p.Description.Set {
		next.Description = p.Description.Value
	}
	if p.Status.Set {
		if p.Status.Value == nil {
			return nil, ErrValidation("status: cannot be null")
		}
		next.Status = *p.Status.Value
	}
	if p.Category.Set {
		next.Category = normalizeCategory(p.Category.Value)
	}
	if p.Priority.Set {
		if p.Priority.Value == nil {
			return nil, ErrValidation("priority: cannot be null")
		}
		next.Priority = *p.Priority.Value
	}
	if p.Tags.Set {
		var tags []string
		if p.Tags.Value != nil {
			tags = *p.Tags.Value
		}
		next.Tags = NormalizeTags(tags)
	}
	if p.DueAt.Set {
		next.DueAt = p.DueAt.Value
	}
	if p.ReminderAt.Set {
		next.ReminderAt = p.ReminderAt.Value
	}
	if p.Notes.Set {
		next.Notes = p.Notes.Value
	}

	if err := ValidateTask(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	return &next, nil
}

// NormalizeTags trims tags, drops empties and removes duplicates while
// keeping the first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func normalizeCategory(c *string) *string {
	if c == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*c))
	if v == "" {
		return nil
	}
	return &v
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateTask checks a task against the field rules and returns a
// validation AppError describing every failing field.
func ValidateTask(t *Task) error {
	if err := validate.Struct(t); err != nil {
		return ErrValidation(FormatValidationErrors(err))
	}
	return nil
}

// ValidateStruct runs struct-tag validation on request types.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return ErrValidation(FormatValidationErrors(err))
	}
	return nil
}

// FormatValidationErrors renders validator errors as "field: rule" pairs.
func FormatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s: must be at most %s characters", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s characters", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s]", field, fe.Param()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s: must be a valid email", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// Sortable task columns for listing.
var taskSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"due_at":     true,
	"priority":   true,
	"title":      true,
}

const (
	DefaultTaskPageSize = 50
	MaxTaskPageSize     = 200
)

// TaskFilter narrows and orders a task listing. Limit 0 returns every
// matching task.
type TaskFilter struct {
	Status   string
	Priority string
	Category string
	Tag      string
	Search   string
	Sort     string
	Order    string
	Limit    int
	Offset   int
}

// Normalize fills defaults and rejects unknown enumerations.
func (f *TaskFilter) Normalize() error {
	if f.Status != "" && f.Status != StatusPending && f.Status != StatusInProgress && f.Status != StatusDone {
		return ErrValidation("status: must be one of [pending in_progress done]")
	}
	if f.Priority != "" && f.Priority != PriorityLow && f.Priority != PriorityMedium && f.Priority != PriorityHigh {
		return ErrValidation("priority: must be one of [low medium high]")
	}
	if f.Sort == "" {
		f.Sort = "created_at"
	}
	if !taskSortColumns[f.Sort] {
		return ErrValidation("sort: must be one of [created_at updated_at due_at priority title]")
	}
	f.Order = strings.ToLower(f.Order)
	if f.Order == "" {
		f.Order = "desc"
	}
	if f.Order != "asc" && f.Order != "desc" {
		return ErrValidation("order: must be one of [asc desc]")
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	// Without limit or offset the listing is unbounded. An offset alone
	// pages with the default size.
	if f.Limit <= 0 {
		f.Limit = 0
		if f.Offset > 0 {
			f.Limit = DefaultTaskPageSize
		}
	}
	if f.Limit > MaxTaskPageSize {
		f.Limit = MaxTaskPageSize
	}
	return nil
}
