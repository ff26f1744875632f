package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tasktrack/backend/internal/domain"
)

// PlanChangeLog is the SQLite subscription history.
type PlanChangeLog struct {
	db *sql.DB
}

func NewPlanChangeLog(db *sql.DB) *PlanChangeLog {
	return &PlanChangeLog{db: db}
}

func (l *PlanChangeLog) Record(ctx context.Context, c *domain.PlanChange) error {
	_, err := conn(ctx, l.db).ExecContext(ctx, `
		INSERT INTO plan_changes (id, user_id, from_plan, to_plan, action, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.FromPlan, c.ToPlan, c.Action, nullNanos(c.ExpiresAt), nanos(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record plan change: %w", err)
	}
	return nil
}

func (l *PlanChangeLog) ListByUser(ctx context.Context, userID string) ([]*domain.PlanChange, error) {
	rows, err := conn(ctx, l.db).QueryContext(ctx, `
		SELECT id, user_id, from_plan, to_plan, action, expires_at, created_at
		FROM plan_changes WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list plan changes: %w", err)
	}
	defer rows.Close()

	changes := []*domain.PlanChange{}
	for rows.Next() {
		var (
			c         domain.PlanChange
			expiresAt sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.FromPlan, &c.ToPlan, &c.Action, &expiresAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan plan change: %w", err)
		}
		c.ExpiresAt = fromNullNanos(expiresAt)
		c.CreatedAt = fromNanos(createdAt)
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}
