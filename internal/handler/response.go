package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/backend/internal/contextkeys"
	"github.com/tasktrack/backend/internal/domain"
)

// RequestLogger returns the request-scoped logger stored by the Logger
// middleware, or the standard logger outside of it.
func RequestLogger(r *http.Request) logrus.FieldLogger {
	if l, ok := r.Context().Value(contextkeys.Logger).(logrus.FieldLogger); ok && l != nil {
		return l
	}
	return logrus.StandardLogger()
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			RequestLogger(r).WithError(err).Error("failed to encode JSON response")
		}
	}
}

// Error writes an error JSON response, using AppError status codes when
// available. The body carries the message, the error kind and any details.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		appErr = domain.ErrInternal("internal server error", err)
	}
	if appErr.Code >= http.StatusInternalServerError {
		RequestLogger(r).WithError(err).Error("request failed")
		JSON(w, r, appErr.Code, map[string]interface{}{"error": "internal server error", "kind": domain.KindInternal})
		return
	}

	body := map[string]interface{}{
		"error": appErr.Message,
		"kind":  appErr.Kind,
	}
	for k, v := range appErr.Details {
		body[k] = v
	}
	JSON(w, r, appErr.Code, body)
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}

// CurrentUser returns the user loaded for this request by the LoadUser
// middleware.
func CurrentUser(r *http.Request) *domain.User {
	u, _ := r.Context().Value(contextkeys.User).(*domain.User)
	return u
}
