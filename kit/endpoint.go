// Package kit is the transport-neutral endpoint layer shared by the HTTP
// API and the MCP tool surface.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint handles one decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its duration, transport and request ID.
func Logging(log *slog.Logger, name string) Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{"endpoint", name, "transport", GetTransport(ctx), "request_id", GetRequestID(ctx),
				"duration_ms", time.Since(start).Milliseconds()}
			if err != nil {
				log.Warn("kit: endpoint failed", append(attrs, "error", err)...)
			} else {
				log.Info("kit: endpoint done", attrs...)
			}
			return resp, err
		}
	}
}
