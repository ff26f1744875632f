package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tasktrack/backend/internal/domain"
)

// PlanChangeRepository stores the append-only subscription history.
type PlanChangeRepository struct {
	db *pgxpool.Pool
}

func NewPlanChangeRepository(db *pgxpool.Pool) *PlanChangeRepository {
	return &PlanChangeRepository{db: db}
}

func (r *PlanChangeRepository) Record(ctx context.Context, c *domain.PlanChange) error {
	query := `
		INSERT INTO plan_changes (id, user_id, from_plan, to_plan, action, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		c.ID, c.UserID, c.FromPlan, c.ToPlan, c.Action, c.ExpiresAt, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record plan change: %w", err)
	}
	return nil
}

// ListByUser returns the user's plan changes, newest first.
func (r *PlanChangeRepository) ListByUser(ctx context.Context, userID string) ([]*domain.PlanChange, error) {
	query := `
		SELECT id, user_id, from_plan, to_plan, action, expires_at, created_at
		FROM plan_changes WHERE user_id = $1 ORDER BY created_at DESC, id
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan changes: %w", err)
	}
	defer rows.Close()

	changes := []*domain.PlanChange{}
	for rows.Next() {
		var c domain.PlanChange
		if err := rows.Scan(&c.ID, &c.UserID, &c.FromPlan, &c.ToPlan, &c.Action, &c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan change: %w", err)
		}
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}
