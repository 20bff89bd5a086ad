package pipeline

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/a11yfix/kit"
)

type scanArgs struct {
	URL      string   `json:"url"`
	URLs     []string `json:"urls"`
	MaxDepth int      `json:"maxDepth"`
}

// RegisterMCP registers the a11y_scan and a11y_fix tools on srv.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	logged := kit.Logging(s.log, "a11y_scan")
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "a11y_scan",
		Description: "Crawl a site in a headless browser and audit every page for WCAG 2 A/AA violations.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Seed URL (single scan)"},
			"urls":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Seed URLs (batch scan)"},
			"maxDepth": map[string]any{"type": "integer", "minimum": 1, "description": "1 audits the seed only"},
		}),
	}, logged(func(ctx context.Context, req any) (any, error) {
		a := req.(*scanArgs)
		return s.Scan(ctx, FixRequest{URL: a.URL, URLs: a.URLs, MaxDepth: a.MaxDepth}.ScanRequest())
	}), kit.DecodeJSON[scanArgs]())

	logged = kit.Logging(s.log, "a11y_fix")
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name: "a11y_fix",
		Description: "Scan a site (or take prior scan results), match violations to source files in a directory " +
			"or GitHub repository, generate fixes and optionally open a pull request.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":      map[string]any{"type": "string"},
			"urls":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"maxDepth": map[string]any{"type": "integer", "minimum": 1},
			"pages":    map[string]any{"type": "array", "description": "Page results from a11y_scan"},
			"dir":      map[string]any{"type": "string", "description": "Source directory relative to the server's source root"},
			"repo":     map[string]any{"type": "string", "description": "GitHub repository owner/name"},
			"publish":  map[string]any{"type": "boolean"},
		}),
	}, logged(func(ctx context.Context, req any) (any, error) {
		return s.Run(ctx, *req.(*FixRequest))
	}), kit.DecodeJSON[FixRequest]())
}
