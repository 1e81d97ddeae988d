package theme

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
)

// darkThreshold is the background brightness below which a style counts as dark.
const darkThreshold = 0.5

// describeStyle extracts display metadata from a chroma style.
func describeStyle(name string, style *chroma.Style) StyleInfo {
	info := StyleInfo{
		Name:    name,
		Display: displayName(name),
	}
	bg := style.Get(chroma.Background).Background
	if bg.IsSet() {
		info.Background = bg.String()
		info.Dark = bg.Brightness() < darkThreshold
	}
	return info
}

// displayName turns "solarized-dark" or "github_dark" into "Solarized Dark".
func displayName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, " ")
}
