package models

import "strings"

// Plugin markers that are not load-order indexes.
const (
	MarkerDLL       = "DLL"
	MarkerLoadOrder = "LO"
)

// PluginEntry is one name/marker pair of the registry.
type PluginEntry struct {
	Name   string `json:"name"`
	Marker string `json:"marker"`
}

// PluginRegistry is an insertion-ordered set of plugins keyed
// case-insensitively. The first writer of a name wins.
type PluginRegistry struct {
	entries []PluginEntry
	index   map[string]int

	Loaded       bool `json:"loaded"`
	LimitReached bool `json:"limitReached"`
	FromOverride bool `json:"fromOverride"`
}

// NewPluginRegistry creates an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{index: make(map[string]int)}
}

// Add inserts name unless a case-insensitive match already exists.
// It reports whether the entry was inserted.
func (r *PluginRegistry) Add(name, marker string) bool {
	key := strings.ToLower(name)
	if _, ok := r.index[key]; ok {
		return false
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, PluginEntry{Name: name, Marker: marker})
	return true
}

// Marker returns the marker recorded for name.
func (r *PluginRegistry) Marker(name string) (string, bool) {
	i, ok := r.index[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return r.entries[i].Marker, true
}

// Len returns the number of entries.
func (r *PluginRegistry) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the entries in insertion order.
func (r *PluginRegistry) Entries() []PluginEntry {
	out := make([]PluginEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Filter returns a new registry holding the entries keep accepts.
// Flags are carried over.
func (r *PluginRegistry) Filter(keep func(PluginEntry) bool) *PluginRegistry {
	out := NewPluginRegistry()
	out.Loaded = r.Loaded
	out.LimitReached = r.LimitReached
	out.FromOverride = r.FromOverride
	for _, e := range r.entries {
		if keep(e) {
			out.Add(e.Name, e.Marker)
		}
	}
	return out
}

// FindByMarker returns the first entry whose marker equals marker.
func (r *PluginRegistry) FindByMarker(marker string) (PluginEntry, bool) {
	for _, e := range r.entries {
		if strings.EqualFold(e.Marker, marker) {
			return e, true
		}
	}
	return PluginEntry{}, false
}
