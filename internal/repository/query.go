package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tasktrack/backend/internal/domain"
)

// Dialect captures the SQL differences between the supported backends.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// TagMatch renders a predicate matching tasks carrying the tag bound to param.
	TagMatch func(param string) string
	// TimeArg converts a timestamp into the backend's bind value.
	TimeArg func(t time.Time) any
}

// Postgres is the pgx dialect.
var Postgres = Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	TagMatch:    func(param string) string { return param + " = ANY(tags)" },
	TimeArg:     func(t time.Time) any { return t },
}

// TaskColumns is the column list every task query selects, in scan order.
const TaskColumns = `id, owner_id, title, description, status, category, priority, tags,
	due_at, reminder_at, notes, created_at, updated_at`

// BuildTaskListQuery returns the SELECT for an owner's task listing. A nil
// filter selects every task, newest first.
func BuildTaskListQuery(d Dialect, ownerID string, f *domain.TaskFilter) (string, []any) {
	args := []any{ownerID}
	where := []string{"owner_id = " + d.Placeholder(1)}
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	if f == nil {
		return fmt.Sprintf("SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC, id",
			TaskColumns, where[0]), args
	}

	if f.Status != "" {
		where = append(where, "status = "+bind(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "priority = "+bind(f.Priority))
	}
	if f.Category != "" {
		where = append(where, "category = "+bind(strings.ToLower(f.Category)))
	}
	if f.Tag != "" {
		where = append(where, d.TagMatch(bind(f.Tag)))
	}
	if f.Search != "" {
		where = append(where, "LOWER(title) LIKE "+bind("%"+strings.ToLower(f.Search)+"%"))
	}

	order := "ASC"
	if f.Order == "desc" {
		order = "DESC"
	}
	sortExpr := f.Sort
	switch f.Sort {
	case "priority":
		sortExpr = "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"
	case "due_at":
		sortExpr = "due_at " + order + " NULLS LAST"
		order = ""
	case "":
		sortExpr = "created_at"
	}
	orderBy := strings.TrimSpace(sortExpr + " " + order)

	query := fmt.Sprintf("SELECT %s FROM tasks WHERE %s ORDER BY %s, id",
		TaskColumns, strings.Join(where, " AND "), orderBy)
	if f.Limit > 0 {
		query += " LIMIT " + bind(f.Limit)
		query += " OFFSET " + bind(f.Offset)
	}
	return query, args
}

// BuildEventQuery returns the SELECT for a user's events in occurred_at order.
func BuildEventQuery(d Dialect, userID string, f domain.EventFilter) (string, []any) {
	args := []any{userID}
	where := []string{"user_id = " + d.Placeholder(1)}
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	if len(f.Types) > 0 {
		ph := make([]string, len(f.Types))
		for i, t := range f.Types {
			ph[i] = bind(t)
		}
		where = append(where, "event_type IN ("+strings.Join(ph, ", ")+")")
	}
	if f.From != nil {
		where = append(where, "occurred_at >= "+bind(d.TimeArg(*f.From)))
	}
	if f.To != nil {
		where = append(where, "occurred_at < "+bind(d.TimeArg(*f.To)))
	}

	return fmt.Sprintf(`SELECT id, user_id, task_id, event_type, event_data, occurred_at
		FROM task_events WHERE %s ORDER BY occurred_at ASC, id ASC`, strings.Join(where, " AND ")), args
}
