package middleware

import (
	"net/http"

	"github.com/Avi18971911/augur-span-reporter/pkg/server/handler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimit sheds requests beyond the limiter's budget with a 429.
func RateLimit(limiter *rate.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.Warn("Rate limit exceeded", zap.String("path", r.URL.Path))
				handler.HttpError(w, "Too many requests", http.StatusTooManyRequests, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
