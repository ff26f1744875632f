package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user together with the subscription facet.
// Feature flags are advisory bits; they only grant access while the
// subscription is active (see package entitlement).
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Password         string     `json:"-"` // bcrypt hash, never serialized
	Plan             string     `json:"plan"`
	PlanExpiresAt    *time.Time `json:"planExpiresAt"`
	TaskLimit        int        `json:"taskLimit"`
	CanSetReminders  bool       `json:"canSetReminders"`
	CanUseCategories bool       `json:"canUseCategories"`
	CanExportData    bool       `json:"canExportData"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NewBasicUser returns a user in the signup state: basic plan, default
// task limit and no premium flags.
func NewBasicUser(name, email, passwordHash string, now time.Time) *User {
	return &User{
		ID:        NewUserID(),
		Name:      name,
		Email:     email,
		Password:  passwordHash,
		Plan:      PlanBasic,
		TaskLimit: DefaultTaskLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RegisterRequest is the validated input for signing up.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest is the validated input for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// LoginResponse is the API response after successful login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// UserResponse is the safe API response for a user (no password).
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToResponse strips credentials and subscription internals.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Plan:      u.Plan,
		CreatedAt: u.CreatedAt,
	}
}

// NewUserID generates a new UUID for a user.
func NewUserID() string {
	return uuid.New().String()
}
