// Package markdown renders post sources to HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// HeadingIDPrefix is prepended to every generated heading anchor.
const HeadingIDPrefix = "header-"

// Renderer converts markdown to HTML with GitHub-flavoured extensions and
// class-based syntax highlighting. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer whose code blocks use the given chroma style.
func New(style string) *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle(style),
					highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
				),
			),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// Render converts src to HTML.
func (r *Renderer) Render(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	ctx := parser.NewContext(parser.WithIDs(newPrefixedIDs(HeadingIDPrefix)))
	if err := r.md.Convert(src, &buf, parser.WithContext(ctx)); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Excerpt returns the plain text of the first paragraph in src, cut to at
// most max runes. A max of zero or less disables truncation.
func (r *Renderer) Excerpt(src []byte, max int) string {
	doc := r.md.Parser().Parse(text.NewReader(src))

	var para ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindParagraph {
			para = n
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if para == nil {
		return ""
	}

	var b strings.Builder
	_ = ast.Walk(para, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})

	return truncate(strings.Join(strings.Fields(b.String()), " "), max)
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:max]), unicode.IsSpace) + "…"
}

// FileName accepts an uploaded file name if it is a markdown file and
// returns its base name. Directory components are discarded.
func FileName(name string) (string, bool) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := path.Ext(base)
	if !strings.EqualFold(ext, ".md") || len(base) == len(ext) {
		return "", false
	}
	return base, true
}

// prefixedIDs generates unique, prefixed heading anchors for one document.
type prefixedIDs struct {
	prefix string
	seen   map[string]struct{}
}

func newPrefixedIDs(prefix string) *prefixedIDs {
	return &prefixedIDs{prefix: prefix, seen: make(map[string]struct{})}
}

func (p *prefixedIDs) Generate(value []byte, _ ast.NodeKind) []byte {
	base := p.prefix + slugify(string(value))
	id := base
	for i := 1; ; i++ {
		if _, taken := p.seen[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
	p.seen[id] = struct{}{}
	return []byte(id)
}

func (p *prefixedIDs) Put(value []byte) {
	p.seen[string(value)] = struct{}{}
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return b.String()
}
