// Package shield is the HTTP middleware stack of the a11yfix API:
// security headers, JSON body limits, request IDs and per-client rate
// limiting of the expensive endpoints.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Stack(shield.NewRateLimiter(10, time.Minute, "/api/"), 1<<20) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request logger.
const LoggerKey contextKey = "shield_logger"

// Stack returns the middleware in application order: RequestID,
// SecurityHeaders, MaxBody, then rl when non-nil.
func Stack(rl *RateLimiter, maxBody int64) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		RequestID,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
	}
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return stack
}

// GetLogger returns the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
