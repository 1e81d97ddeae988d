package styleconfig

import (
	"encoding/json"
	"fmt"
	"sort"
)

// PluginRef names a plugin for the external plugin host. What the plugin
// does is not known here; two refs are the same plugin when their names
// match.
type PluginRef struct {
	Name string
}

// FormsPlugin is the forms base-style plugin.
var FormsPlugin = PluginRef{Name: formsPluginName}

var knownPlugins = map[string]struct{}{
	formsPluginName:                  {},
	"@tailwindcss/typography":        {},
	"@tailwindcss/aspect-ratio":      {},
	"@tailwindcss/container-queries": {},
}

// KnownPlugins returns the resolvable plugin names in sorted order.
func KnownPlugins() []string {
	names := make([]string, 0, len(knownPlugins))
	for name := range knownPlugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolvePlugin looks up a plugin by name.
func ResolvePlugin(name string) (PluginRef, error) {
	if _, ok := knownPlugins[name]; !ok {
		return PluginRef{}, fmt.Errorf("%w: %q", ErrUnresolvedPlugin, name)
	}
	return PluginRef{Name: name}, nil
}

func (p PluginRef) String() string { return p.Name }

// MarshalJSON encodes the ref as its bare name.
func (p PluginRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Name)
}

// UnmarshalJSON reads a bare plugin name. Resolution happens in Validate.
func (p *PluginRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	p.Name = name
	return nil
}
