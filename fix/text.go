package fix

import (
	"hash/fnv"
	"html"
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/a11yfix/tag"
)

var labelTexts = map[string]string{
	"text":     "Enter text",
	"email":    "Email address",
	"password": "Password",
	"tel":      "Phone number",
	"url":      "Website URL",
	"search":   "Search",
	"number":   "Enter number",
	"date":     "Select date",
	"time":     "Select time",
	"checkbox": "Check this option",
	"radio":    "Select option",
	"file":     "Choose file",
}

func labelText(inputType string) string {
	if t, ok := labelTexts[strings.ToLower(inputType)]; ok {
		return t
	}
	return "Enter value"
}

var (
	wordSep   = regexp.MustCompile(`[-_.@/\s]+`)
	camelEdge = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// humanize turns an identifier or file name into a short sentence-case
// phrase: "heroBanner_2x.webp" -> "Hero banner 2x".
func humanize(s string) string {
	s = strings.TrimSuffix(s, path.Ext(s))
	s = camelEdge.ReplaceAllString(s, "$1 $2")
	s = strings.TrimSpace(wordSep.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// exprName returns the last identifier of a template expression:
// "product.imageUrl" -> "imageUrl".
func exprName(expr string) string {
	expr = strings.TrimSpace(expr)
	if i := strings.LastIndexAny(expr, ".["); i >= 0 {
		expr = expr[i+1:]
	}
	return strings.Trim(expr, "]'\"` ()")
}

// fileBase returns the last path segment of a URL or path without query.
func fileBase(src string) string {
	if u, err := url.Parse(src); err == nil {
		src = u.Path
	}
	return path.Base(strings.TrimRight(src, "/"))
}

func shortHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

var (
	tagMention = regexp.MustCompile(`<([a-zA-Z][\w-]*)>(\s+element)`)
	strict     = bluemonday.StrictPolicy()
)

// PlainText reduces audit-engine text to plain text safe to embed in
// source comments and review bodies: markup is removed (element
// mentions such as "<img> elements" keep their name), entities are decoded and
// comment terminators are broken up.
func PlainText(s string) string {
	s = tagMention.ReplaceAllString(s, "$1$2")
	s = html.UnescapeString(strict.Sanitize(s))
	s = strings.ReplaceAll(s, "--", "-")
	s = strings.ReplaceAll(s, "*/", "* /")
	return strings.Join(strings.Fields(s), " ")
}

// visibleText approximates the rendered text of a snippet: tags and
// template expressions are removed.
func visibleText(snippet string) string {
	var b strings.Builder
	inTag := false
	for i := 0; i < len(snippet); i++ {
		c := snippet[i]
		switch {
		case c == '{':
			end := tag.SkipBraces(snippet, i)
			if end < 0 {
				i = len(snippet)
				continue
			}
			i = end - 1
		case inTag:
			if c == '>' {
				inTag = false
			}
		case c == '<':
			inTag = true
		default:
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(html.UnescapeString(b.String()))
}

var (
	bgColorRe = regexp.MustCompile(`background color: (#[0-9a-fA-F]{6}|#[0-9a-fA-F]{3})\b`)
)

// contrastColors picks a foreground for the background named in an audit
// failure summary. When the background is unknown both colours are set.
func contrastColors(summary string) (fg, bg string) {
	m := bgColorRe.FindStringSubmatch(summary)
	if m == nil {
		return "#1a1a1a", "#ffffff"
	}
	if luminance(m[1]) > 0.18 {
		return "#1a1a1a", ""
	}
	return "#ffffff", ""
}

// luminance is the WCAG relative luminance of a #rgb or #rrggbb colour.
func luminance(hex string) float64 {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 1
	}
	ch := func(c uint64) float64 {
		s := float64(c) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*ch(v>>16&0xff) + 0.7152*ch(v>>8&0xff) + 0.0722*ch(v&0xff)
}
