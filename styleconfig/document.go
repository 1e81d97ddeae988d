// Package styleconfig holds the configuration document handed to the
// utility-class CSS tool that builds the blog stylesheet.
//
// The document is plain data: where to look for class names, the theme
// tokens added on top of the tool's defaults, and the plugins to load. The
// package loads it, validates it and writes it back out in the form the
// external tool reads. It never generates CSS itself.
package styleconfig

import (
	"sort"
	"strings"
)

const formsPluginName = "@tailwindcss/forms"

// Document is the whole configuration document.
type Document struct {
	Content []string    `json:"content" yaml:"content" toml:"content"`
	Theme   Theme       `json:"theme" yaml:"theme" toml:"theme"`
	Plugins []PluginRef `json:"plugins" yaml:"plugins" toml:"plugins"`
}

// Theme wraps the additive theme customisation.
type Theme struct {
	Extend Extension `json:"extend" yaml:"extend" toml:"extend"`
}

// Extension maps design-token names to values within each namespace.
type Extension struct {
	Colors     map[string]string   `json:"colors,omitempty" yaml:"colors,omitempty" toml:"colors,omitempty"`
	FontFamily map[string][]string `json:"fontFamily,omitempty" yaml:"fontFamily,omitempty" toml:"fontFamily,omitempty"`
}

// Load returns the blog's configuration document. Every call builds a new
// value; callers may modify the result freely.
func Load() Document {
	return Document{
		Content: []string{"./public/**/*.html"},
		Theme: Theme{
			Extend: Extension{
				Colors: map[string]string{
					"core": "#111010",
				},
				FontFamily: map[string][]string{
					"jetbrains": {"JetBrains Mono", "monospace"},
				},
			},
		},
		Plugins: []PluginRef{{Name: formsPluginName}},
	}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{
		Content: append([]string(nil), d.Content...),
		Plugins: append([]PluginRef(nil), d.Plugins...),
	}
	if d.Theme.Extend.Colors != nil {
		out.Theme.Extend.Colors = make(map[string]string, len(d.Theme.Extend.Colors))
		for k, v := range d.Theme.Extend.Colors {
			out.Theme.Extend.Colors[k] = v
		}
	}
	if d.Theme.Extend.FontFamily != nil {
		out.Theme.Extend.FontFamily = make(map[string][]string, len(d.Theme.Extend.FontFamily))
		for k, v := range d.Theme.Extend.FontFamily {
			out.Theme.Extend.FontFamily[k] = append([]string(nil), v...)
		}
	}
	return out
}

// Color returns the value of a color token.
func (d Document) Color(token string) (string, bool) {
	v, ok := d.Theme.Extend.Colors[token]
	return v, ok
}

// FontStack renders a font token as a CSS font-family list, preferred
// family first. Names containing spaces are quoted. Unknown tokens yield "".
func (d Document) FontStack(token string) string {
	families := d.Theme.Extend.FontFamily[token]
	parts := make([]string, 0, len(families))
	for _, f := range families {
		if strings.ContainsAny(f, " \t") {
			parts = append(parts, `"`+f+`"`)
			continue
		}
		parts = append(parts, f)
	}
	return strings.Join(parts, ", ")
}

// ColorTokens returns the color token names in sorted order.
func (d Document) ColorTokens() []string {
	return sortedKeys(d.Theme.Extend.Colors)
}

// FontTokens returns the font token names in sorted order.
func (d Document) FontTokens() []string {
	return sortedKeys(d.Theme.Extend.FontFamily)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
