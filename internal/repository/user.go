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

const userColumns = `id, name, email, password, plan, plan_expires_at, task_limit,
	can_set_reminders, can_use_categories, can_export_data, created_at, updated_at`

// UserRepository handles database operations for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, password, plan, plan_expires_at, task_limit,
			can_set_reminders, can_use_categories, can_export_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		u.ID, u.Name, u.Email, u.Password, u.Plan, u.PlanExpiresAt, u.TaskLimit,
		u.CanSetReminders, u.CanUseCategories, u.CanExportData, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// LockForUpdate reloads the user holding a row lock until the surrounding
// transaction ends. Concurrent task creations for the same user serialize
// on this lock.
func (r *UserRepository) LockForUpdate(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, query, id)
}

// Exists checks if a user with the given email already exists.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// UpdateSubscription persists the subscription facet of the user.
func (r *UserRepository) UpdateSubscription(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users SET plan = $1, plan_expires_at = $2, task_limit = $3,
			can_set_reminders = $4, can_use_categories = $5, can_export_data = $6, updated_at = $7
		WHERE id = $8
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query,
		u.Plan, u.PlanExpiresAt, u.TaskLimit,
		u.CanSetReminders, u.CanUseCategories, u.CanExportData, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("user not found")
	}
	return nil
}

// ListLapsedPremium returns premium users whose expiry is at or before now.
func (r *UserRepository) ListLapsedPremium(ctx context.Context, now time.Time) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE plan = 'premium' AND plan_expires_at IS NOT NULL AND plan_expires_at <= $1
		ORDER BY plan_expires_at`
	rows, err := conn(ctx, r.db).Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list lapsed users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	u, err := scanUser(conn(ctx, r.db).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// scanUser reads a user row. NULL feature flags read as false.
func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var reminders, categories, export *bool
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Password, &u.Plan, &u.PlanExpiresAt, &u.TaskLimit,
		&reminders, &categories, &export, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.CanSetReminders = reminders != nil && *reminders
	u.CanUseCategories = categories != nil && *categories
	u.CanExportData = export != nil && *export
	return &u, nil
}
