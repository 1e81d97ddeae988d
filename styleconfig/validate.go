package styleconfig

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	hexColor  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	// Arguments are numbers with optional units, "none", and the comma,
	// slash and space separators.
	funcColor = regexp.MustCompile(`^(?:rgba?|hsla?|hwb|lab|lch|oklab|oklch)\((?:\s|,|/|none|[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?(?:%|deg|grad|rad|turn)?)+\)$`)
	varColor  = regexp.MustCompile(`^var\(--[A-Za-z0-9_-]+\)$`)
)

var colorKeywords = map[string]struct{}{
	"transparent": {}, "currentcolor": {}, "current": {}, "inherit": {},
	"black": {}, "silver": {}, "gray": {}, "white": {}, "maroon": {}, "red": {},
	"purple": {}, "fuchsia": {}, "green": {}, "lime": {}, "olive": {}, "yellow": {},
	"navy": {}, "blue": {}, "teal": {}, "aqua": {},
}

// fontNameUnsafe lists characters that could end a CSS declaration or the
// enclosing style element when a family name is written into a page.
const fontNameUnsafe = ";{}<>\"\\`\r\n"

// ValidColor reports whether s is color syntax the CSS tool accepts.
func ValidColor(s string) bool {
	if hexColor.MatchString(s) || funcColor.MatchString(s) || varColor.MatchString(s) {
		return true
	}
	_, ok := colorKeywords[strings.ToLower(s)]
	return ok
}

// Validate checks the document and returns every problem found, joined.
// A nil result means the external tool can load the document as is.
func (d Document) Validate() error {
	var errs []error
	add := func(path string, err error) {
		errs = append(errs, &ValidationError{Path: path, Err: err})
	}

	if len(d.Content) == 0 {
		add("content", fmt.Errorf("%w: at least one pattern is required", ErrSchema))
	}
	for i, pattern := range d.Content {
		path := fmt.Sprintf("content[%d]", i)
		switch {
		case strings.TrimSpace(pattern) == "":
			add(path, fmt.Errorf("%w: empty pattern", ErrSchema))
		case !doublestar.ValidatePattern(cleanPattern(pattern)):
			add(path, fmt.Errorf("%w: invalid glob %q", ErrSchema, pattern))
		}
	}

	for _, token := range d.ColorTokens() {
		value := d.Theme.Extend.Colors[token]
		if token == "" {
			add("theme.extend.colors", fmt.Errorf("%w: empty token name", ErrSchema))
		}
		if !ValidColor(value) {
			add("theme.extend.colors."+token, fmt.Errorf("%w: invalid color %q", ErrSchema, value))
		}
	}

	for _, token := range d.FontTokens() {
		families := d.Theme.Extend.FontFamily[token]
		path := "theme.extend.fontFamily." + token
		if token == "" {
			add("theme.extend.fontFamily", fmt.Errorf("%w: empty token name", ErrSchema))
		}
		if len(families) == 0 {
			add(path, fmt.Errorf("%w: at least one family is required", ErrSchema))
		}
		for i, f := range families {
			switch {
			case strings.TrimSpace(f) == "":
				add(fmt.Sprintf("%s[%d]", path, i), fmt.Errorf("%w: empty family name", ErrSchema))
			case strings.ContainsAny(f, fontNameUnsafe):
				add(fmt.Sprintf("%s[%d]", path, i), fmt.Errorf("%w: invalid family name %q", ErrSchema, f))
			}
		}
	}

	for i, p := range d.Plugins {
		if _, err := ResolvePlugin(p.Name); err != nil {
			add(fmt.Sprintf("plugins[%d]", i), err)
		}
	}

	return errors.Join(errs...)
}

// cleanPattern strips the leading "./" the CSS tool tolerates but fs.FS
// globbing does not.
func cleanPattern(pattern string) string {
	for strings.HasPrefix(pattern, "./") {
		pattern = strings.TrimPrefix(pattern, "./")
	}
	return pattern
}
