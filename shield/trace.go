package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/a11yfix/idgen"
	"github.com/hazyhaar/a11yfix/kit"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

var requestIDs = idgen.Prefixed("req_", idgen.Default)

// RequestID reuses a well-formed incoming X-Request-ID or generates one, stores
// it under kit.RequestIDKey, echoes it in the response and attaches a
// request-scoped logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validID(id) {
			id = requestIDs()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := slog.Default().With("request_id", id, "method", r.Method, "path", r.URL.Path)
		ctx := kit.WithRequestID(r.Context(), id)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("shield: request", "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validID accepts 1 to 64 characters of [A-Za-z0-9_-].
func validID(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-') {
			return false
		}
	}
	return true
}
