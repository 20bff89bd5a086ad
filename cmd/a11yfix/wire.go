package main

import (
	"database/sql"
	"log/slog"

	"github.com/hazyhaar/a11yfix/fix"
	"github.com/hazyhaar/a11yfix/hosting"
	"github.com/hazyhaar/a11yfix/internal/axe"
	"github.com/hazyhaar/a11yfix/internal/browser"
	"github.com/hazyhaar/a11yfix/internal/config"
	"github.com/hazyhaar/a11yfix/match"
	"github.com/hazyhaar/a11yfix/pipeline"
	"github.com/hazyhaar/a11yfix/runlog"
	"github.com/hazyhaar/a11yfix/scan"
	"github.com/hazyhaar/a11yfix/urlguard"
)

// app holds the wired pipeline and what must be closed with it.
type app struct {
	cfg    *config.Config
	svc    *pipeline.Service
	ledger *runlog.Ledger
	db     *sql.DB
	hosts  pipeline.HostFactory
	log    *slog.Logger
}

func wire(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}
	if cfg.Ledger != "" {
		l, db, err := runlog.OpenFile(cfg.Ledger, runlog.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		a.ledger, a.db = l, db
	}

	cfg.Browser.Logger = logger
	cfg.Axe.Logger = logger
	guard := urlguard.New(urlguard.AllowPrivate(cfg.Crawl.AllowPrivate))
	crawler := scan.New(browser.Factory(cfg.Browser), axe.New(cfg.Axe),
		scan.WithLogger(logger),
		scan.WithLimits(cfg.Crawl.Limits),
		scan.WithRetry(cfg.Crawl.Attempts, cfg.Crawl.Backoff),
		scan.WithSameSite(cfg.Crawl.SameSite),
		scan.WithURLValidator(guard.Check))

	a.hosts = func(repo string) (hosting.Host, error) {
		return hosting.NewGitHub(repo,
			hosting.WithToken(cfg.GitHub.Token),
			hosting.WithAPIBase(cfg.GitHub.APIBase),
			hosting.WithBaseBranch(cfg.GitHub.BaseBranch),
			hosting.WithGitHubLogger(logger))
	}

	a.svc = pipeline.New(crawler,
		pipeline.WithLogger(logger),
		pipeline.WithMatcher(match.New(
			match.WithThreshold(cfg.Match.Threshold),
			match.WithWorkers(cfg.Match.Workers),
			match.WithLogger(logger))),
		pipeline.WithGenerator(fix.New(
			fix.WithAnnotations(cfg.Fix.AnnotationsEnabled()),
			fix.WithLogger(logger))),
		pipeline.WithLedger(a.ledger),
		pipeline.WithHosts(a.hosts),
		pipeline.WithDirRoot(cfg.SourceRoot),
		pipeline.WithMaxFiles(cfg.Fix.MaxFiles),
		pipeline.WithSourceDepth(cfg.Fix.SourceDepth),
		pipeline.WithRequestLimits(cfg.API.MaxBatch, cfg.API.MaxDepth))
	return a, nil
}

// Close flushes the run ledger and closes its database.
func (a *app) Close() {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.Close(); err != nil {
		a.log.Warn("a11yfix: ledger close", "error", err)
	}
	a.db.Close()
}
