package extract

import (
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
	"golang.org/x/net/html"
)

// Markup extracts elements from HTML documents and fragments.
//
// The tokenizer is lenient: stray close tags are ignored and unclosed
// elements end where their parent ends, matching browser recovery. Markup
// therefore never returns ErrUnbalanced.
type Markup struct{}

func (Markup) Extract(path string, src []byte) (*File, error) {
	text := string(src)
	lines := newLineIndex(text)
	f := &File{Path: path, Dialect: tag.Markup, Parser: ParserMarkup, Source: text}

	var stack []*tag.Tag
	closeAt := func(t *tag.Tag, end int) {
		t.Span = lines.span(text, t.Span.Start, end)
	}
	attach := func(t *tag.Tag) {
		if n := len(stack); n > 0 {
			stack[n-1].Children = append(stack[n-1].Children, t)
		}
		f.Tags = append(f.Tags, t)
	}

	z := html.NewTokenizer(strings.NewReader(text))
	off := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		start, end := off, off+len(raw)
		rawOpen := string(raw)
		off = end

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			t := &tag.Tag{Name: tok.Data, Dialect: tag.Markup, Span: tag.Span{Start: start}}
			t.Attrs = markupAttrs(rawOpen, tok)
			attach(t)
			if tt == html.SelfClosingTagToken || tag.IsVoid(tok.Data) {
				closeAt(t, end)
				continue
			}
			stack = append(stack, t)

		case html.EndTagToken:
			tok := z.Token()
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].Name != tok.Data {
					continue
				}
				for j := len(stack) - 1; j > i; j-- {
					closeAt(stack[j], start)
				}
				closeAt(stack[i], end)
				stack = stack[:i]
				break
			}

		case html.TextToken:
			if n := len(stack); n > 0 {
				top := stack[n-1]
				if top.Name == "script" || top.Name == "style" {
					continue
				}
				if txt := strings.Join(strings.Fields(string(z.Text())), " "); txt != "" {
					if top.Text != "" {
						top.Text += " "
					}
					top.Text += txt
				}
			}
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		closeAt(stack[i], len(text))
	}

	f.Imports = markupImports(f.Tags)
	return f, nil
}

// markupAttrs keeps the authored attribute spelling and bare flags by
// re-reading the raw open tag; the tokenizer's view is the fallback.
func markupAttrs(raw string, tok html.Token) []tag.Attr {
	if o, ok := tag.ParseOpenTag(raw, 0); ok && o.Name != "" {
		return o.Attrs
	}
	attrs := make([]tag.Attr, 0, len(tok.Attr))
	for _, a := range tok.Attr {
		attrs = append(attrs, tag.Attr{Name: a.Key, Value: a.Val})
	}
	return attrs
}

func markupImports(tags []*tag.Tag) []string {
	var out []string
	for _, t := range tags {
		switch t.Name {
		case "script":
			if src := t.Value("src"); src != "" {
				out = append(out, src)
			}
		case "link":
			if strings.EqualFold(t.Value("rel"), "stylesheet") {
				if href := t.Value("href"); href != "" {
					out = append(out, href)
				}
			}
		}
	}
	return out
}
