package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds let callers branch on the failure without parsing messages.
const (
	KindValidation     = "validation"
	KindNotFound       = "not_found"
	KindForbidden      = "forbidden"
	KindLimitReached   = "limit_reached"
	KindFeatureGated   = "feature_gated"
	KindAlreadyPremium = "already_premium"
	KindUnauthorized   = "unauthorized"
	KindBadRequest     = "bad_request"
	KindConflict       = "conflict"
	KindRateLimited    = "rate_limited"
	KindInternal       = "internal"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int                    `json:"code"`
	Kind    string                 `json:"kind"`
	Message string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Kind: KindForbidden, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthorized, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Kind: KindBadRequest, Message: msg}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Kind: KindConflict, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Kind: KindValidation, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Kind: KindInternal, Message: msg, Err: err}
}

// ErrLimitReached reports that a basic plan user hit their task cap.
func ErrLimitReached(current, limit int) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Kind:    KindLimitReached,
		Message: "Task limit reached. Upgrade to Premium for unlimited tasks.",
		Details: map[string]interface{}{
			"current": current,
			"limit":   limit,
		},
	}
}

// ErrFeatureGated reports use of a premium-only field or endpoint.
func ErrFeatureGated(feature Feature) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Kind:    KindFeatureGated,
		Message: fmt.Sprintf("%s is a Premium feature. Upgrade to use this feature.", feature.Label()),
		Details: map[string]interface{}{
			"feature":         string(feature),
			"requiresPremium": true,
		},
	}
}

func ErrAlreadyPremium() *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Kind:    KindAlreadyPremium,
		Message: "You already have a Premium subscription.",
	}
}

func ErrRateLimited() *AppError {
	return &AppError{
		Code:    http.StatusTooManyRequests,
		Kind:    KindRateLimited,
		Message: "rate limit exceeded, try again later",
	}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}
