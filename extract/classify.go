package extract

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// Kind is the role a file plays in a site's source tree.
type Kind string

const (
	KindPage      Kind = "page"
	KindLayout    Kind = "layout"
	KindComponent Kind = "component"
	KindAPI       Kind = "api"
	KindConfig    Kind = "config"
	KindTest      Kind = "test"
	KindOther     Kind = "other"
)

// Classification describes a candidate source file.
type Classification struct {
	Path      string `json:"path"`
	Kind      Kind   `json:"kind"`
	Framework string `json:"framework"` // react, nextjs, html, unknown
	Language  string `json:"language"`  // tsx, jsx, ts, js, html, css, other
	Priority  int    `json:"priority"`  // 1..10, higher is searched first
	Relevant  bool   `json:"relevant"`
}

var (
	excludeRe = globs(
		"node_modules/**", "**/node_modules/**", ".next/**", "dist/**", "build/**", "out/**",
		"__tests__/**", "**/__tests__/**", "**/*.test.*", "**/*.spec.*", ".git/**",
		"coverage/**", ".nyc_output/**", "temp/**", "tmp/**", ".cache/**", ".turbo/**",
		"public/fonts/**", "public/icons/**", "public/favicon*",
	)
	priorityRe = globs(
		"src/components/**", "src/pages/**", "src/app/**", "components/**", "pages/**",
		"app/**", "src/layouts/**", "layouts/**",
	)
	apiRe = globs("**/api/**", "api/**", "**/*.config.*", "*.config.*", "**/*.setup.*", "**/middleware.*", "middleware.*")
)

// globs compiles simple glob patterns: ** spans directories, * stays
// within one path segment.
func globs(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		q := regexp.QuoteMeta(p)
		q = strings.ReplaceAll(q, `\*\*`, ".*")
		q = strings.ReplaceAll(q, `\*`, "[^/]*")
		out = append(out, regexp.MustCompile(`(?i)^`+q+`$`))
	}
	return out
}

func anyMatch(res []*regexp.Regexp, p string) bool {
	for _, re := range res {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

var scriptExt = map[string]bool{".tsx": true, ".jsx": true, ".js": true, ".ts": true}

// Classify scores a repository-relative path.
func Classify(p string) Classification {
	p = strings.TrimPrefix(strings.ReplaceAll(p, `\`, "/"), "/")
	name := path.Base(p)
	ext := strings.ToLower(path.Ext(name))
	slashed := "/" + p

	isScript := scriptExt[ext]
	isPage := isScript && ((strings.Contains(slashed, "/app/") && strings.TrimSuffix(name, ext) == "page") ||
		(strings.Contains(slashed, "/pages/") && !strings.Contains(slashed, "/api/")))
	isLayout := strings.TrimSuffix(name, ext) == "layout" && isScript ||
		strings.Contains(slashed, "/layouts/") || strings.Contains(strings.ToLower(name), "layout")
	isComponent := isScript && (strings.Contains(slashed, "/components/") ||
		(name[0] >= 'A' && name[0] <= 'Z') || strings.Contains(name, ".component."))

	c := Classification{Path: p, Language: language(ext), Framework: "unknown"}
	switch {
	case strings.Contains(slashed, "/app/") || strings.Contains(slashed, "/pages/") ||
		name == "next.config.js" || name == "next.config.ts":
		c.Framework = "nextjs"
	case isScript:
		c.Framework = "react"
	case ext == ".html" || ext == ".htm":
		c.Framework = "html"
	}

	switch {
	case isPage:
		c.Kind = KindPage
	case isLayout:
		c.Kind = KindLayout
	case isComponent:
		c.Kind = KindComponent
	case anyMatch(apiRe, p):
		c.Kind = KindAPI
	case strings.Contains(name, ".config.") || strings.Contains(name, ".setup."):
		c.Kind = KindConfig
	case strings.Contains(name, ".test.") || strings.Contains(name, ".spec.") || strings.Contains(p, "__tests__"):
		c.Kind = KindTest
	default:
		c.Kind = KindOther
	}

	priority := 1
	if isPage {
		priority += 8
	}
	if isLayout {
		priority += 7
	}
	if isComponent {
		priority += 6
	}
	if isScript {
		priority += 3
	}
	if anyMatch(priorityRe, p) {
		priority += 2
	}
	if anyMatch(apiRe, p) {
		priority = max(1, priority-3)
	}
	c.Priority = min(10, priority)

	switch {
	case anyMatch(excludeRe, p):
		c.Relevant = false
	case c.Kind == KindAPI || c.Kind == KindConfig || c.Kind == KindTest:
		c.Relevant = false
	case c.Kind == KindPage || c.Kind == KindLayout || c.Kind == KindComponent:
		c.Relevant = true
	case c.Framework == "html":
		c.Relevant = true
	case (c.Framework == "react" || c.Framework == "nextjs") && anyMatch(priorityRe, p):
		c.Relevant = true
	}
	return c
}

func language(ext string) string {
	switch ext {
	case ".tsx", ".jsx", ".ts", ".js":
		return ext[1:]
	case ".html", ".htm":
		return "html"
	case ".css", ".scss", ".sass", ".less":
		return "css"
	}
	return "other"
}

// Rank returns the relevant, extractable paths sorted by priority
// descending. Ties keep their input order.
func Rank(paths []string) []string {
	type scored struct {
		path     string
		priority int
	}
	var keep []scored
	for _, p := range paths {
		if _, ok := DialectOf(p); !ok {
			continue
		}
		c := Classify(p)
		if !c.Relevant {
			continue
		}
		keep = append(keep, scored{p, c.Priority})
	}
	sort.SliceStable(keep, func(i, j int) bool { return keep[i].priority > keep[j].priority })
	out := make([]string, len(keep))
	for i, s := range keep {
		out[i] = s.path
	}
	return out
}
