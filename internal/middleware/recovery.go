package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/backend/internal/contextkeys"
	"github.com/tasktrack/backend/internal/handler"
)

// Recovery catches panics and returns a 500 error instead of crashing the server.
func Recovery(log logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID, _ := r.Context().Value(contextkeys.RequestID).(string)
					log.WithFields(logrus.Fields{
						"panic":      err,
						"request_id": requestID,
						"stack":      string(debug.Stack()),
					}).Error("panic recovered")
					handler.JSON(w, r, http.StatusInternalServerError, map[string]string{
						"error": "internal server error",
						"kind":  "internal",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
