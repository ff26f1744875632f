package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tasktrack/backend/internal/domain"
)

const userColumns = `id, name, email, password, plan, plan_expires_at, task_limit,
	can_set_reminders, can_use_categories, can_export_data, created_at, updated_at`

// UserStore is the SQLite user store.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, name, email, password, plan, plan_expires_at, task_limit,
			can_set_reminders, can_use_categories, can_export_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Password, u.Plan, nullNanos(u.PlanExpiresAt), u.TaskLimit,
		u.CanSetReminders, u.CanUseCategories, u.CanExportData, nanos(u.CreatedAt), nanos(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// LockForUpdate reloads the user. SQLite serializes writers on the single
// connection, so no row lock is taken.
func (s *UserStore) LockForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return s.FindByID(ctx, id)
}

func (s *UserStore) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := conn(ctx, s.db).QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return exists, nil
}

func (s *UserStore) UpdateSubscription(ctx context.Context, u *domain.User) error {
	res, err := conn(ctx, s.db).ExecContext(ctx, `
		UPDATE users SET plan = ?, plan_expires_at = ?, task_limit = ?,
			can_set_reminders = ?, can_use_categories = ?, can_export_data = ?, updated_at = ?
		WHERE id = ?`,
		u.Plan, nullNanos(u.PlanExpiresAt), u.TaskLimit,
		u.CanSetReminders, u.CanUseCategories, u.CanExportData, nanos(u.UpdatedAt), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound("user not found")
	}
	return nil
}

func (s *UserStore) ListLapsedPremium(ctx context.Context, now time.Time) ([]*domain.User, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx, `SELECT `+userColumns+` FROM users
		WHERE plan = 'premium' AND plan_expires_at IS NOT NULL AND plan_expires_at <= ?
		ORDER BY plan_expires_at`, nanos(now))
	if err != nil {
		return nil, fmt.Errorf("list lapsed users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) findOne(ctx context.Context, query, arg string) (*domain.User, error) {
	u, err := scanUser(conn(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// scanUser reads a user row. NULL feature flags read as false.
func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                             domain.User
		expiresAt                     sql.NullInt64
		reminders, categories, export sql.NullBool
		createdAt, updatedAt          int64
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Password, &u.Plan, &expiresAt, &u.TaskLimit,
		&reminders, &categories, &export, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.PlanExpiresAt = fromNullNanos(expiresAt)
	u.CanSetReminders = reminders.Valid && reminders.Bool
	u.CanUseCategories = categories.Valid && categories.Bool
	u.CanExportData = export.Valid && export.Bool
	u.CreatedAt = fromNanos(createdAt)
	u.UpdatedAt = fromNanos(updatedAt)
	return &u, nil
}
