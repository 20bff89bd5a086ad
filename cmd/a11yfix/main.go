// Command a11yfix scans a site for accessibility violations and turns them
// into source fixes.
//
// Usage:
//
//	a11yfix -url https://example.com -depth 2              # scan, JSON page results
//	a11yfix -urls https://a.test,https://b.test            # batch scan
//	a11yfix -url https://example.com -dir ./site -fix      # scan and fix a checkout
//	a11yfix -url https://example.com -repo acme/site -fix -publish
//	a11yfix -serve                                         # HTTP API
//	a11yfix -mcp                                           # MCP over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/a11yfix/api"
	"github.com/hazyhaar/a11yfix/hosting"
	"github.com/hazyhaar/a11yfix/internal/config"
	"github.com/hazyhaar/a11yfix/pipeline"
)

var version = "dev"

type flags struct {
	config   string
	url      string
	urls     string
	depth    int
	dir      string
	repo     string
	fix      bool
	publish  bool
	serve    bool
	mcp      bool
	logLevel string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "path to a11yfix.yaml")
	flag.StringVar(&f.url, "url", "", "seed URL (single scan)")
	flag.StringVar(&f.urls, "urls", "", "comma-separated seed URLs (batch scan)")
	flag.IntVar(&f.depth, "depth", 1, "crawl depth; 1 audits the seeds only")
	flag.StringVar(&f.dir, "dir", "", "source directory to fix")
	flag.StringVar(&f.repo, "repo", "", "GitHub repository owner/name to fix")
	flag.BoolVar(&f.fix, "fix", false, "generate fixes from the scan")
	flag.BoolVar(&f.publish, "publish", false, "open a pull request with the fixes (requires -repo)")
	flag.BoolVar(&f.serve, "serve", false, "serve the HTTP API")
	flag.BoolVar(&f.mcp, "mcp", false, "serve MCP tools over stdio")
	flag.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch f.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, f); err != nil {
		logger.Error("a11yfix: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	cfg, err := config.LoadFile(f.config)
	if err != nil {
		return err
	}
	app, err := wire(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	switch {
	case f.serve:
		return serve(ctx, logger, cfg, app)
	case f.mcp:
		srv := mcp.NewServer(&mcp.Implementation{Name: "a11yfix", Version: version}, nil)
		app.svc.RegisterMCP(srv)
		logger.Info("a11yfix: MCP on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	case f.url != "" || f.urls != "":
		return runCLI(ctx, app, f)
	}
	fmt.Fprintln(os.Stderr, "usage: a11yfix -url <url> | -urls <a,b> [-depth n] [-fix -dir <dir> | -repo owner/name [-publish]] | -serve | -mcp")
	os.Exit(2)
	return nil
}

func serve(ctx context.Context, logger *slog.Logger, cfg *config.Config, app *app) error {
	h := api.New(app.svc,
		api.WithLedger(app.ledger),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateWindow),
		api.WithTrustedProxies(cfg.API.TrustedProxies...),
		api.WithMaxBody(cfg.API.MaxBody),
		api.WithLogger(logger))
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("a11yfix: listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("a11yfix: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCLI(ctx context.Context, app *app, f flags) error {
	req := pipeline.FixRequest{URL: f.url, MaxDepth: f.depth}
	if f.urls != "" {
		for _, u := range strings.Split(f.urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				req.URLs = append(req.URLs, u)
			}
		}
	}
	pages, err := app.svc.Scan(ctx, req.ScanRequest())
	if err != nil {
		return err
	}
	if !f.fix {
		return printJSON(pages)
	}

	var src hosting.Source
	var host hosting.Host
	switch {
	case f.repo != "":
		if host, err = app.hosts(f.repo); err != nil {
			return err
		}
		src = hosting.RepoSource(host, app.cfg.Fix.SourceDepth)
	case f.dir != "":
		src = hosting.DirSource(f.dir, 0)
	default:
		return errors.New("a11yfix: -fix needs -dir or -repo")
	}
	rep, err := app.svc.Fix(ctx, pages, src)
	if err != nil {
		return err
	}
	out := pipeline.RunResult{Pages: len(pages), Report: rep}
	if f.publish && host != nil && !rep.Changeset.Empty() {
		out.Published, err = app.svc.Publish(ctx, rep, host)
		if perr := printJSON(out); perr != nil {
			return perr
		}
		return err
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
