// Package theme serves the stylesheets for highlighted code blocks.
package theme

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/rs/zerolog"

	"inkwell/logging"
)

// preferredOrder lists styles shown ahead of the alphabetical rest.
var preferredOrder = []string{"monokai", "dracula", "github-dark", "nord", "github"}

// Manager knows the available highlight styles and renders their CSS.
type Manager struct {
	defaultStyle string
	styles       map[string]*chroma.Style
	stylesList   []string
	formatter    *chromahtml.Formatter
	logger       zerolog.Logger

	mu    sync.Mutex
	cache map[string]stylesheet
}

// NewManager loads the registered chroma styles. defaultStyle must be one of them.
func NewManager(defaultStyle string) (*Manager, error) {
	m := &Manager{
		defaultStyle: defaultStyle,
		styles:       make(map[string]*chroma.Style, len(styles.Registry)),
		formatter:    chromahtml.New(chromahtml.WithClasses(true)),
		logger:       logging.WithComponent("theme"),
		cache:        make(map[string]stylesheet),
	}
	for name, style := range styles.Registry {
		m.styles[name] = style
		m.stylesList = append(m.stylesList, name)
	}
	if _, ok := m.styles[defaultStyle]; !ok {
		return nil, fmt.Errorf("unknown highlight style %q", defaultStyle)
	}
	m.stylesList = sortStyles(m.stylesList)

	m.logger.Info().
		Str("event", "theme.loaded").
		Int("styles", len(m.stylesList)).
		Str("default", defaultStyle).
		Msg("loaded highlight styles")
	return m, nil
}

func sortStyles(names []string) []string {
	preferred := make(map[string]bool, len(preferredOrder))
	var sorted []string
	for _, p := range preferredOrder {
		for _, n := range names {
			if n == p {
				sorted = append(sorted, n)
				preferred[n] = true
				break
			}
		}
	}

	var others []string
	for _, n := range names {
		if !preferred[n] {
			others = append(others, n)
		}
	}
	sort.Strings(others)
	return append(sorted, others...)
}

// Default returns the configured default style name.
func (m *Manager) Default() string { return m.defaultStyle }

// ListStyles returns every style name, preferred styles first.
func (m *Manager) ListStyles() []string {
	return m.stylesList
}

// GetStyle returns metadata for a style, or false if it is unknown.
func (m *Manager) GetStyle(name string) (StyleInfo, bool) {
	style, ok := m.styles[name]
	if !ok {
		return StyleInfo{}, false
	}
	return describeStyle(name, style), true
}

// Styles returns metadata for every style in list order.
func (m *Manager) Styles() []StyleInfo {
	out := make([]StyleInfo, 0, len(m.stylesList))
	for _, name := range m.stylesList {
		out = append(out, describeStyle(name, m.styles[name]))
	}
	return out
}

// Resolve returns name if it is a known style and the default otherwise.
func (m *Manager) Resolve(name string) string {
	if _, ok := m.styles[name]; ok {
		return name
	}
	return m.defaultStyle
}

// GetThemeCSS returns the class-based CSS for a style and its ETag.
// Unknown names fall back to the default style.
func (m *Manager) GetThemeCSS(name string) ([]byte, string, error) {
	name = m.Resolve(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	if sheet, ok := m.cache[name]; ok {
		return sheet.css, sheet.etag, nil
	}

	var buf bytes.Buffer
	if err := m.formatter.WriteCSS(&buf, m.styles[name]); err != nil {
		return nil, "", fmt.Errorf("write css for %s: %w", name, err)
	}
	sum := sha256.Sum256(buf.Bytes())
	sheet := stylesheet{
		css:  buf.Bytes(),
		etag: `"` + hex.EncodeToString(sum[:8]) + `"`,
	}
	m.cache[name] = sheet
	return sheet.css, sheet.etag, nil
}
