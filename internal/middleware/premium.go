package middleware

import (
	"net/http"
	"time"

	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/entitlement"
	"github.com/tasktrack/backend/internal/handler"
)

// PremiumOnly rejects callers without the given premium feature with a
// feature_gated error. Must be used AFTER LoadUser.
func PremiumOnly(feature domain.Feature, now func() time.Time) func(next http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !entitlement.CanUseFeature(handler.CurrentUser(r), feature, now()) {
				handler.Error(w, r, domain.ErrFeatureGated(feature))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
