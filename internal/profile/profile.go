// Package profile reads the user's speech profile: a YAML document holding
// the preferred engines, API credentials, and per-engine overrides. The
// profile is read-only from this process's perspective and entirely optional;
// every missing file, section, or key silently falls back to compiled-in
// defaults so a bare machine still speaks with the local engines.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Well-known top-level keys.
const (
	KeySTTEngine        = "stt_engine"
	KeySTTPassiveEngine = "stt_passive_engine"
	KeyTTSEngine        = "tts_engine"
	KeyLanguage         = "language"
)

// Profile is one immutable parsed snapshot of the profile document.
// Reloads produce a new Profile; nothing mutates an existing one.
type Profile struct {
	path string
	tree map[string]any
}

// Load reads and parses the profile at path. A missing file is not an error:
// it yields an empty profile and every lookup returns its default. A present
// but unreadable or malformed file is an error, since silently ignoring a
// profile the user wrote would be worse than failing.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Profile{path: path, tree: map[string]any{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return &Profile{path: path, tree: tree}, nil
}

// Empty returns a profile with no values, as if the file did not exist.
func Empty() *Profile {
	return &Profile{tree: map[string]any{}}
}

// Path returns the file path this profile was loaded from.
func (p *Profile) Path() string { return p.path }

// Section returns the named top-level sub-tree. Missing or non-map values
// yield an empty fragment, never nil.
func (p *Profile) Section(name string) Fragment {
	if m, ok := p.tree[name].(map[string]any); ok {
		return Fragment(m)
	}
	return Fragment{}
}

// String returns the top-level scalar for key, or def when absent.
func (p *Profile) String(key, def string) string {
	return Fragment(p.tree).String(key, def)
}

// Fragment is a pass-through view of one configuration sub-tree. Lookups
// coerce scalars leniently and never fail: an absent or unusable value
// returns the caller's default. No schema checking happens at this layer.
type Fragment map[string]any

// String returns the scalar at key as a string, or def.
func (f Fragment) String(key, def string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(s)
	}
	return def
}

// Int returns the scalar at key as an int, or def.
func (f Fragment) Int(key string, def int) int {
	switch v := f[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Sub returns the nested map at key as a fragment. Missing or non-map values
// yield an empty fragment.
func (f Fragment) Sub(key string) Fragment {
	if m, ok := f[key].(map[string]any); ok {
		return Fragment(m)
	}
	return Fragment{}
}

// Has reports whether key is present at all, regardless of type.
func (f Fragment) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Holder hands out the current profile snapshot and swaps in reloaded ones
// atomically. Readers always see a complete snapshot, never a half-applied
// reload.
type Holder struct {
	current atomic.Pointer[Profile]
}

// NewHolder creates a holder seeded with p.
func NewHolder(p *Profile) *Holder {
	h := &Holder{}
	h.current.Store(p)
	return h
}

// Current returns the latest snapshot.
func (h *Holder) Current() *Profile {
	return h.current.Load()
}

// Replace swaps in a new snapshot.
func (h *Holder) Replace(p *Profile) {
	h.current.Store(p)
}

// DefaultPath returns ~/.speechbox/profile.yml, or a relative fallback when
// the home directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".speechbox", "profile.yml")
	}
	return filepath.Join(home, ".speechbox", "profile.yml")
}
