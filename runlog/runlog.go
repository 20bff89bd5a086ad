// Package runlog records scan and fix runs in a SQLite ledger.
//
// Writes are queued and flushed in batches by a background goroutine, so
// recording never fails or slows a run: write errors are logged. A nil
// *Ledger accepts every call and records nothing.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/a11yfix/changeset"
	"github.com/hazyhaar/a11yfix/dbopen"
	"github.com/hazyhaar/a11yfix/idgen"
	"github.com/hazyhaar/a11yfix/scan"
)

// Outcomes recorded in fix_events.
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
	OutcomeReview  = "review"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("runlog: closed")

type write func(ctx context.Context, tx *sql.Tx) error

type item struct {
	write   write
	barrier chan struct{}
}

// Ledger is the asynchronous run recorder.
type Ledger struct {
	db       *sql.DB
	newID    idgen.Generator
	now      func() time.Time
	interval time.Duration
	batch    int
	log      *slog.Logger

	ch   chan item
	stop chan struct{}
	done chan struct{}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Ledger) { g.log = l } }

// WithBuffer sets the queue capacity. Default: 1000.
func WithBuffer(n int) Option { return func(g *Ledger) { g.ch = make(chan item, n) } }

// WithFlushInterval sets how often queued writes are committed. Default: 2s.
func WithFlushInterval(d time.Duration) Option { return func(g *Ledger) { g.interval = d } }

// WithIDs sets the generator for event IDs.
func WithIDs(gen idgen.Generator) Option { return func(g *Ledger) { g.newID = gen } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(g *Ledger) { g.now = now } }

// Open applies Schema to db and starts the flush loop. The caller keeps
// ownership of db and closes it after Close.
func Open(db *sql.DB, opts ...Option) (*Ledger, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("runlog: schema: %w", err)
	}
	g := &Ledger{
		db:       db,
		newID:    idgen.Prefixed("evt_", idgen.Default),
		now:      time.Now,
		interval: 2 * time.Second,
		batch:    100,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	if g.ch == nil {
		g.ch = make(chan item, 1000)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	go g.loop()
	return g, nil
}

// OpenFile opens (creating if needed) the ledger database at path.
func OpenFile(path string, opts ...Option) (*Ledger, *sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, nil, err
	}
	g, err := Open(db, opts...)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return g, db, nil
}

// enqueue queues w, committing it synchronously when the queue is full.
func (g *Ledger) enqueue(w write) {
	select {
	case g.ch <- item{write: w}:
	default:
		g.log.Warn("runlog: buffer full, sync fallback")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dbopen.RunTx(ctx, g.db, func(tx *sql.Tx) error { return w(ctx, tx) }); err != nil {
			g.log.Error("runlog: sync write failed", "error", err)
		}
	}
}

func (g *Ledger) loop() {
	defer close(g.done)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	pending := make([]write, 0, g.batch)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := dbopen.RunTx(ctx, g.db, func(tx *sql.Tx) error {
			for _, w := range pending {
				if err := w(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			g.log.Error("runlog: flush failed", "writes", len(pending), "error", err)
		}
		pending = pending[:0]
	}

	for {
		select {
		case it := <-g.ch:
			if it.barrier != nil {
				flush()
				close(it.barrier)
				continue
			}
			pending = append(pending, it.write)
			if len(pending) >= g.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-g.stop:
			for {
				select {
				case it := <-g.ch:
					if it.barrier != nil {
						close(it.barrier)
						continue
					}
					pending = append(pending, it.write)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Flush blocks until every write queued before the call is committed.
func (g *Ledger) Flush(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case <-g.done:
		return ErrClosed
	default:
	}
	b := make(chan struct{})
	select {
	case g.ch <- item{barrier: b}:
	case <-g.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-b:
		return nil
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close commits queued writes and stops the flush loop.
func (g *Ledger) Close() error {
	if g == nil {
		return nil
	}
	select {
	case <-g.stop:
	default:
		close(g.stop)
	}
	<-g.done
	return nil
}

func millis(t time.Time) int64 { return t.UnixMilli() }

// StartRun records a run as running.
func (g *Ledger) StartRun(runID, kind string, seeds []string) {
	if g == nil {
		return
	}
	js, _ := json.Marshal(seeds)
	at := millis(g.now())
	g.enqueue(func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs (run_id, kind, seeds, status, started_at)
			VALUES (?, ?, ?, 'running', ?)`, runID, kind, string(js), at)
		return err
	})
}

// FinishRun marks a run completed, or failed when err is non-nil.
func (g *Ledger) FinishRun(runID string, pages, fixes int, err error) {
	if g == nil {
		return
	}
	status, msg := "completed", sql.NullString{}
	if err != nil {
		status, msg = "failed", sql.NullString{String: err.Error(), Valid: true}
	}
	at := millis(g.now())
	g.enqueue(func(ctx context.Context, tx *sql.Tx) error {
		_, e := tx.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ?, pages = ?, fixes = ?, error = ?
			WHERE run_id = ?`, status, at, pages, fixes, msg, runID)
		return e
	})
}

// RecordPages stores page results under runID.
func (g *Ledger) RecordPages(runID string, pages []scan.PageResult) {
	if g == nil || len(pages) == 0 {
		return
	}
	rows := append([]scan.PageResult(nil), pages...)
	g.enqueue(func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO page_results
			(id, run_id, url, depth, status, critical, serious, moderate, minor, total, violations, error, scanned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range rows {
			vs, _ := json.Marshal(p.Violations)
			id := p.ID
			if id == "" {
				id = g.newID()
			}
			s := p.Summary
			if _, err := stmt.ExecContext(ctx, id, runID, p.URL, p.Depth, string(p.Status),
				s.Critical, s.Serious, s.Moderate, s.Minor, s.Total, string(vs),
				nullable(p.Error), millis(p.Timestamp)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordChangeset stores one event per applied fix, failed fix and
// manual-review item.
func (g *Ledger) RecordChangeset(runID string, cs *changeset.Changeset) {
	if g == nil || cs == nil {
		return
	}
	type event struct {
		outcome, path, rules, desc, errMsg string
		confidence                         float64
	}
	var evs []event
	for _, f := range cs.Fixes {
		evs = append(evs, event{OutcomeApplied, f.FilePath, strings.Join(f.RulesFixed, ","), f.Description, "", f.Confidence})
	}
	for _, f := range cs.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		evs = append(evs, event{OutcomeFailed, f.Path, strings.Join(f.Fix.RulesFixed, ","), f.Fix.Description, msg, f.Fix.Confidence})
	}
	for _, r := range cs.Review {
		evs = append(evs, event{OutcomeReview, r.BestPath, r.RuleID, r.Help, "", r.Confidence})
	}
	if len(evs) == 0 {
		return
	}
	at := millis(g.now())
	ids := make([]string, len(evs))
	for i := range ids {
		ids[i] = g.newID()
	}
	g.enqueue(func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO fix_events
			(event_id, run_id, outcome, file_path, rules, description, confidence, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, e := range evs {
			if _, err := stmt.ExecContext(ctx, ids[i], runID, e.outcome, nullable(e.path), e.rules,
				nullable(e.desc), e.confidence, nullable(e.errMsg), at); err != nil {
				return err
			}
		}
		return nil
	})
}

func nullable(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }
