package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/a11yfix/changeset"
	"github.com/hazyhaar/a11yfix/extract"
	"github.com/hazyhaar/a11yfix/fix"
	"github.com/hazyhaar/a11yfix/hosting"
	"github.com/hazyhaar/a11yfix/match"
	"github.com/hazyhaar/a11yfix/scan"
)

// Report is the outcome of a fix run.
type Report struct {
	RunID     string               `json:"runId"`
	SiteURL   string               `json:"siteUrl"`
	Files     int                  `json:"filesSearched"`
	Nodes     int                  `json:"violationNodes"`
	Changeset *changeset.Changeset `json:"changeset"`
	Summary   changeset.Summary    `json:"summary"`
}

// Fix matches the violations of the completed pages against src and
// builds the changeset. Nodes without an accepted match, whose rule
// produced no fix, or whose fix conflicts with a nested one become
// manual-review entries.
func (s *Service) Fix(ctx context.Context, pages []scan.PageResult, src hosting.Source) (*Report, error) {
	siteURL := ""
	for _, p := range pages {
		if p.URL != "" {
			siteURL = p.URL
			break
		}
	}
	runID := s.runIDs()
	s.ledger.StartRun(runID, "fix", []string{siteURL})

	files, err := s.loadFiles(ctx, src)
	if err != nil {
		s.ledger.FinishRun(runID, len(pages), 0, err)
		return nil, err
	}
	sources := make(map[string]string, len(files))
	for _, f := range files {
		sources[f.Path] = f.Source
	}

	rep := &Report{RunID: runID, SiteURL: siteURL, Files: len(files)}
	var fixes []fix.Fix
	var review []changeset.Review
	seenFix := make(map[string]bool)
	seenReview := make(map[string]bool)
	toReview := func(v scan.Violation, node scan.ViolationNode, pageURL string, results []match.Result) {
		key := v.ID + "\x00" + node.HTML
		if !seenReview[key] {
			seenReview[key] = true
			review = append(review, reviewEntry(v, node, pageURL, results))
		}
	}
	for _, p := range pages {
		if p.Status != scan.StatusCompleted {
			continue
		}
		for _, v := range p.Violations {
			for _, node := range v.Nodes {
				if ctx.Err() != nil {
					break
				}
				rep.Nodes++
				results := s.matcher.MatchFiles(ctx, v, node, files)
				best, ok := s.matcher.Best(results)
				var f *fix.Fix
				if ok {
					f = s.fixes.Generate(v, fix.TargetFromMatch(best, sources[best.FilePath]))
				}
				if f == nil {
					toReview(v, node, p.URL, results)
					continue
				}
				key := f.FilePath + "\x00" + f.OriginalContent + "\x00" + f.FixedContent
				if seenFix[key] {
					continue
				}
				seenFix[key] = true
				nf, ok := s.nest(*f, fixes)
				if !ok {
					toReview(v, node, p.URL, results)
					continue
				}
				fixes = append(fixes, nf)
			}
		}
	}

	cs := changeset.New(siteURL, changeset.WithBase(sources), changeset.WithClock(s.now),
		changeset.WithLogger(s.log)).Build(fixes, review...)
	rep.Changeset = cs
	rep.Summary = cs.Summary()

	s.ledger.RecordChangeset(runID, cs)
	s.ledger.FinishRun(runID, len(pages), len(cs.Fixes), ctx.Err())
	s.log.Info("pipeline: fix done", "run_id", runID, "files", len(files), "nodes", rep.Nodes,
		"fixes", len(cs.Fixes), "review", len(cs.Review), "failed", len(cs.Failures))
	return rep, nil
}

// nest rebases f onto earlier fixes to the same file whose original text
// lies inside f's, so an enclosing element keeps its children's fixes. It
// reports false when f rewrote that inner text itself.
func (s *Service) nest(f fix.Fix, earlier []fix.Fix) (fix.Fix, bool) {
	for _, e := range earlier {
		if e.FilePath != f.FilePath || !strings.Contains(f.OriginalContent, e.OriginalContent) {
			continue
		}
		if !strings.Contains(f.FixedContent, e.OriginalContent) {
			s.log.Warn("pipeline: nested fix conflicts, sent to review", "path", f.FilePath,
				"outer_line", f.Line, "outer_rules", f.RulesFixed, "outer_len", len(f.OriginalContent),
				"inner_line", e.Line, "inner_rules", e.RulesFixed, "inner_len", len(e.OriginalContent))
			return f, false
		}
		f.OriginalContent = strings.Replace(f.OriginalContent, e.OriginalContent, e.FixedContent, 1)
		f.FixedContent = strings.Replace(f.FixedContent, e.OriginalContent, e.FixedContent, 1)
		s.log.Debug("pipeline: nested fix rebased", "path", f.FilePath,
			"outer_line", f.Line, "inner_line", e.Line)
	}
	return f, true
}

func reviewEntry(v scan.Violation, node scan.ViolationNode, pageURL string, results []match.Result) changeset.Review {
	r := changeset.Review{
		RuleID:  v.ID,
		Impact:  string(v.Impact),
		Help:    v.Help,
		HelpURL: v.HelpURL,
		HTML:    node.HTML,
		PageURL: pageURL,
	}
	if r.Help == "" {
		r.Help = v.Description
	}
	if len(results) > 0 {
		r.BestPath = results[0].FilePath
		r.Confidence = results[0].Confidence
	}
	return r
}

// loadFiles reads and extracts the highest-ranked source files. Files
// that fail to read or parse are skipped.
func (s *Service) loadFiles(ctx context.Context, src hosting.Source) ([]*extract.File, error) {
	paths, err := src.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list sources: %w", err)
	}
	ranked := extract.Rank(paths)
	if len(ranked) > s.maxFiles {
		ranked = ranked[:s.maxFiles]
	}

	out := make([]*extract.File, len(ranked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range ranked {
		g.Go(func() error {
			data, err := src.ReadFile(gctx, p)
			if err != nil {
				s.log.Warn("pipeline: source read failed", "path", p, "error", err)
				return nil
			}
			f, err := extract.Parse(p, data, s.log)
			if err != nil {
				s.log.Warn("pipeline: source skipped", "path", p, "error", err)
				return nil
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := out[:0]
	for _, f := range out {
		if f != nil {
			files = append(files, f)
		}
	}
	s.log.Debug("pipeline: sources loaded", "listed", len(paths), "ranked", len(ranked), "parsed", len(files))
	return files, nil
}

// Publish opens a pull request for the report's changeset.
func (s *Service) Publish(ctx context.Context, rep *Report, host hosting.Host) (*hosting.Published, error) {
	if rep == nil || rep.Changeset == nil {
		return nil, hosting.ErrNoUpdates
	}
	return hosting.Publish(ctx, host, rep.Changeset, s.log)
}
