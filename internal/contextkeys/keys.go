package contextkeys

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// UserID is the context key for the authenticated user's ID.
	UserID contextKey = "userID"
	// UserEmail is the context key for the authenticated user's email.
	UserEmail contextKey = "userEmail"
	// User is the context key for the *domain.User loaded for this request.
	User contextKey = "user"
	// RequestID is the context key for the request correlation id.
	RequestID contextKey = "requestID"
	// Logger is the context key for the request-scoped logrus.FieldLogger.
	Logger contextKey = "logger"
)
