// Package middleware holds the HTTP middleware of the serving API.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain combines multiple middleware into a single Middleware.
// Chain(mw1, mw2)(handler) results in mw1(mw2(handler)), so mw1 runs first.
func Chain(mws ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			final = mws[i](final)
		}
		return final
	}
}

// Standard is the stack every public route is served behind: request id,
// access log, panic recovery, CORS and the per-client rate limit. A nil
// limiter disables rate limiting.
func Standard(log *slog.Logger, cors config.CORSConfig, limiter *RateLimiter, perMinute int) Middleware {
	mws := []Middleware{RequestID, Logger(log), Recovery(log), CORS(cors)}
	if limiter != nil {
		mws = append(mws, limiter.Limit(perMinute))
	}
	return Chain(mws...)
}
