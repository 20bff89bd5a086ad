package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Run is a row of the runs table.
type Run struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Seeds      []string   `json:"seeds"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Pages      int        `json:"pages"`
	Fixes      int        `json:"fixes"`
	Error      string     `json:"error,omitempty"`
}

// PageRow is a row of the page_results table without the violation list.
type PageRow struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Depth  int    `json:"depth"`
	Status string `json:"status"`
	Total  int    `json:"total"`
	Error  string `json:"error,omitempty"`
}

// FixEvent is a row of the fix_events table.
type FixEvent struct {
	Outcome     string  `json:"outcome"`
	Path        string  `json:"path,omitempty"`
	Rules       string  `json:"rules"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
	Error       string  `json:"error,omitempty"`
}

// Runs returns the most recent runs, newest first. limit <= 0 means 50.
func (g *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := g.db.QueryContext(ctx, `SELECT run_id, kind, seeds, status, started_at, finished_at, pages, fixes, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var seeds string
		var started int64
		var finished sql.NullInt64
		var msg sql.NullString
		if err := rows.Scan(&r.ID, &r.Kind, &seeds, &r.Status, &started, &finished, &r.Pages, &r.Fixes, &msg); err != nil {
			return nil, fmt.Errorf("runlog: scan run: %w", err)
		}
		json.Unmarshal([]byte(seeds), &r.Seeds)
		r.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			t := time.UnixMilli(finished.Int64).UTC()
			r.FinishedAt = &t
		}
		r.Error = msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Pages returns the page rows of a run in scan order.
func (g *Ledger) Pages(ctx context.Context, runID string) ([]PageRow, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT id, url, depth, status, total, error
		FROM page_results WHERE run_id = ? ORDER BY scanned_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: query pages: %w", err)
	}
	defer rows.Close()

	var out []PageRow
	for rows.Next() {
		var p PageRow
		var msg sql.NullString
		if err := rows.Scan(&p.ID, &p.URL, &p.Depth, &p.Status, &p.Total, &msg); err != nil {
			return nil, fmt.Errorf("runlog: scan page: %w", err)
		}
		p.Error = msg.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// Events returns the fix events of a run.
func (g *Ledger) Events(ctx context.Context, runID string) ([]FixEvent, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT outcome, file_path, rules, description, confidence, error
		FROM fix_events WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: query events: %w", err)
	}
	defer rows.Close()

	var out []FixEvent
	for rows.Next() {
		var e FixEvent
		var path, desc, msg sql.NullString
		var conf sql.NullFloat64
		if err := rows.Scan(&e.Outcome, &path, &e.Rules, &desc, &conf, &msg); err != nil {
			return nil, fmt.Errorf("runlog: scan event: %w", err)
		}
		e.Path, e.Description, e.Error, e.Confidence = path.String, desc.String, msg.String, conf.Float64
		out = append(out, e)
	}
	return out, rows.Err()
}
