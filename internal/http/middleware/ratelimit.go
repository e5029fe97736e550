package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/config"
	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/identity"
)

// RateLimit returns a per-minute request limiter keyed by authenticated
// user when available, falling back to client IP.
func RateLimit(cfg *config.RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		logger.Info("rate limiting disabled")
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	logger.Info("rate limiter initialized",
		zap.Int("requests_per_minute", cfg.RequestsPerMinute))

	return httprate.Limit(
		cfg.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyByUserOrIP),
		httprate.WithLimitHandler(limitExceededHandler),
	)
}

// keyByUserOrIP keys authenticated requests by user ID so one noisy user
// cannot exhaust the budget of everyone behind the same NAT
func keyByUserOrIP(r *http.Request) (string, error) {
	if userCtx, ok := identity.FromContext(r.Context()); ok {
		return "user:" + userCtx.UserID, nil
	}
	return httprate.KeyByIP(r)
}

func limitExceededHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   "Too Many Requests",
		Message: "Rate limit exceeded, please slow down",
	})
}
