package styleconfig

import (
	"fmt"
	"io"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchContent runs every content pattern against fsys and returns the
// matching paths per pattern, sorted. A pattern that matches nothing maps
// to an empty slice.
func (d Document) MatchContent(fsys fs.FS) (map[string][]string, error) {
	out := make(map[string][]string, len(d.Content))
	for _, pattern := range d.Content {
		matches, err := doublestar.Glob(fsys, cleanPattern(pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		sort.Strings(matches)
		if matches == nil {
			matches = []string{}
		}
		out[pattern] = matches
	}
	return out, nil
}

var jsIdent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// WriteJS writes the document as the CommonJS module the CSS tool loads.
// Map keys are written in sorted order so the output is stable.
func (d Document) WriteJS(w io.Writer) error {
	var b strings.Builder

	b.WriteString("module.exports = {\n")
	b.WriteString("  content: [")
	for i, pattern := range d.Content {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(jsString(pattern))
	}
	b.WriteString("],\n")

	b.WriteString("  theme: {\n    extend: {\n")
	if len(d.Theme.Extend.Colors) > 0 {
		b.WriteString("      colors: {\n")
		for _, token := range d.ColorTokens() {
			fmt.Fprintf(&b, "        %s: %s,\n", jsKey(token), jsString(d.Theme.Extend.Colors[token]))
		}
		b.WriteString("      },\n")
	}
	if len(d.Theme.Extend.FontFamily) > 0 {
		b.WriteString("      fontFamily: {\n")
		for _, token := range d.FontTokens() {
			families := d.Theme.Extend.FontFamily[token]
			quoted := make([]string, len(families))
			for i, f := range families {
				quoted[i] = jsString(f)
			}
			fmt.Fprintf(&b, "        %s: [%s],\n", jsKey(token), strings.Join(quoted, ", "))
		}
		b.WriteString("      },\n")
	}
	b.WriteString("    },\n  },\n")

	b.WriteString("  plugins: [")
	for i, p := range d.Plugins {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "require(%s)", jsString(p.Name))
	}
	b.WriteString("],\n}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func jsKey(k string) string {
	if jsIdent.MatchString(k) {
		return k
	}
	return jsString(k)
}

func jsString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}
