// Package api is the HTTP surface of the pipeline.
//
//	GET  /health
//	POST /api/scan        {"url"|"urls", "maxDepth"}             -> []PageResult
//	POST /api/fixes       {"url"|"urls"|"pages", "dir"|"repo", "publish"} -> RunResult
//	GET  /api/runs        ?limit=N                               -> []Run
//	GET  /api/runs/{id}                                          -> pages and fix events
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/a11yfix/kit"
	"github.com/hazyhaar/a11yfix/pipeline"
	"github.com/hazyhaar/a11yfix/runlog"
	"github.com/hazyhaar/a11yfix/shield"
)

// Handler serves the pipeline over HTTP.
type Handler struct {
	svc     *pipeline.Service
	ledger  *runlog.Ledger
	limiter *shield.RateLimiter
	proxies []string
	maxBody int64
	log     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLedger exposes the run history under /api/runs.
func WithLedger(l *runlog.Ledger) Option { return func(h *Handler) { h.ledger = l } }

// WithRateLimit limits /api/ requests per client IP. Default: 10 per minute.
// max <= 0 disables limiting.
func WithRateLimit(max int, window time.Duration) Option {
	return func(h *Handler) { h.limiter = shield.NewRateLimiter(max, window, "/api/") }
}

// WithTrustedProxies keys rate limiting by X-Forwarded-For for requests
// arriving from these proxies (CIDR or address).
func WithTrustedProxies(proxies ...string) Option {
	return func(h *Handler) { h.proxies = proxies }
}

// WithMaxBody caps request bodies. Default: 1 MiB.
func WithMaxBody(n int64) Option { return func(h *Handler) { h.maxBody = n } }

func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.log = l } }

// New creates a Handler.
func New(svc *pipeline.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:     svc,
		limiter: shield.NewRateLimiter(10, time.Minute, "/api/"),
		maxBody: 1 << 20,
	}
	for _, o := range opts {
		o(h)
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if err := h.limiter.TrustProxies(h.proxies...); err != nil {
		h.log.Warn("api: trusted proxies ignored", "error", err)
	}
	return h
}

// Router returns the chi router with the shield stack installed.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.Stack(h.limiter, h.maxBody) {
		r.Use(mw)
	}
	r.Use(httpTransport)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/scan", serve(h.log, "scan", decode[scanRequest], h.scan))
	r.Post("/api/fixes", serve(h.log, "fixes", decode[pipeline.FixRequest], h.fixes))
	r.Get("/api/runs", h.runs)
	r.Get("/api/runs/{id}", h.run)
	return r
}

func httpTransport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(kit.WithTransport(r.Context(), "http")))
	})
}

type scanRequest struct {
	URL      string   `json:"url"`
	URLs     []string `json:"urls"`
	MaxDepth int      `json:"maxDepth"`
}

func (h *Handler) scan(ctx context.Context, req any) (any, error) {
	a := req.(*scanRequest)
	return h.svc.Scan(ctx, pipeline.FixRequest{URL: a.URL, URLs: a.URLs, MaxDepth: a.MaxDepth}.ScanRequest())
}

// partial carries a RunResult whose publish step failed.
type partial struct {
	res *pipeline.RunResult
	err error
}

func (p *partial) Error() string { return p.err.Error() }
func (p *partial) Unwrap() error { return p.err }

func (h *Handler) fixes(ctx context.Context, req any) (any, error) {
	res, err := h.svc.Run(ctx, *req.(*pipeline.FixRequest))
	if err != nil && res != nil {
		return nil, &partial{res: res, err: err}
	}
	return res, err
}

func decode[T any](r *http.Request) (any, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// serve adapts an endpoint to HTTP: decode, run through kit.Logging, map
// errors to status codes.
func serve(log *slog.Logger, name string, dec func(*http.Request) (any, error), ep kit.Endpoint) http.HandlerFunc {
	ep = kit.Logging(log, name)(ep)
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := dec(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, err)
				return
			}
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := ep(r.Context(), req)
		if err != nil {
			var p *partial
			switch {
			case pipeline.IsClientError(err):
				writeError(w, http.StatusBadRequest, err)
			case errors.As(err, &p):
				writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "result": p.res})
			default:
				shield.GetLogger(r.Context()).Error("api: request failed", "endpoint", name, "error", err)
				writeError(w, http.StatusInternalServerError, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run history disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.ledger.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []runlog.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run history disabled"})
		return
	}
	id := chi.URLParam(r, "id")
	pages, err := h.ledger.Pages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	events, err := h.ledger.Events(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(pages) == 0 && len(events) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "pages": pages, "events": events})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
