// Package settings implements the layered local/global/node/user
// key-value store.
package settings

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rauldose/node-red-new-sub000/internal/rtutil"
)

// Error is the typed error raised by this package.
type Error struct {
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("settings: %s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("settings: %s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(code, msg string) *Error { return &Error{Code: code, Msg: msg} }

// Storage is the external collaborator persisting the global layer.
type Storage interface {
	GetSettings() (map[string]interface{}, error)
	SaveSettings(map[string]interface{}) error
}

// NodeSettingsSpec is what a node type registers: its own default
// values plus which of those keys are exportable to the editor.
type NodeSettingsSpec struct {
	Defaults   map[string]interface{}
	Exportable map[string]bool
}

// Store is the four-layer settings store.
type Store struct {
	mu      sync.Mutex
	storage Storage

	local  map[string]interface{} // read-only, set at construction
	global map[string]interface{} // mutable, backed by storage
	loaded bool

	nodeSettings map[string]NodeSettingsSpec // node type -> spec
}

// New creates a Store. local is the read-only process-startup layer;
// it is never persisted and Set always rejects keys present in it.
func New(storage Storage, local map[string]interface{}) *Store {
	if local == nil {
		local = map[string]interface{}{}
	}
	return &Store{
		storage:      storage,
		local:        local,
		nodeSettings: make(map[string]NodeSettingsSpec),
	}
}

// Load reads the global layer from storage. Must be called before Get
// or Set touch the global layer.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.storage.GetSettings()
	if err != nil {
		return &Error{Code: "storage_unavailable", Msg: "failed to load settings", Err: err}
	}
	if g == nil {
		g = map[string]interface{}{}
	}
	s.global = g
	s.loaded = true
	return nil
}

// Get resolves prop against local, then global (which includes the
// "users" submap), then the defaults of registered node settings.
// prop=="users" is rejected outright, and Get before Load raises.
func (s *Store) Get(prop string) (interface{}, error) {
	if prop == "users" {
		return nil, newErr("not-available", "users is not directly readable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.local[prop]; ok {
		return v, nil
	}
	if !s.loaded {
		return nil, newErr("not-available", "global settings not loaded")
	}
	if v, ok := s.global[prop]; ok {
		return v, nil
	}
	for _, spec := range s.nodeSettings {
		if v, ok := spec.Defaults[prop]; ok {
			return v, nil
		}
	}
	return nil, nil
}

// Set writes prop into the global layer, persisting only if the value
// actually changed (deep compare). Read-only (local) keys are
// rejected.
func (s *Store) Set(prop string, value interface{}) error {
	if prop == "users" {
		return newErr("not-available", "users is not directly writable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.local[prop]; ok {
		return newErr("property-read-only", prop)
	}
	if !s.loaded {
		return newErr("not-available", "global settings not loaded")
	}
	if existing, ok := s.global[prop]; ok && rtutil.DeepEqual(existing, value) {
		return nil
	}
	s.global[prop] = value
	return s.storage.SaveSettings(s.global)
}

// GetUserSettings/SetUserSettings operate on the per-username submap
// nested inside the global "users" key — the one path by which user
// data is reachable, since Get/Set reject the bare "users" prop.
func (s *Store) GetUserSettings(username, prop string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, newErr("not-available", "global settings not loaded")
	}
	users, _ := s.global["users"].(map[string]interface{})
	if users == nil {
		return nil, nil
	}
	u, _ := users[username].(map[string]interface{})
	if u == nil {
		return nil, nil
	}
	return u[prop], nil
}

func (s *Store) SetUserSettings(username, prop string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return newErr("not-available", "global settings not loaded")
	}
	users, _ := s.global["users"].(map[string]interface{})
	if users == nil {
		users = map[string]interface{}{}
		s.global["users"] = users
	}
	u, _ := users[username].(map[string]interface{})
	if u == nil {
		u = map[string]interface{}{}
		users[username] = u
	}
	if existing, ok := u[prop]; ok && rtutil.DeepEqual(existing, value) {
		return nil
	}
	u[prop] = value
	return s.storage.SaveSettings(s.global)
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// normaliseType camelCases a node type name: strip
// non-alphanumerics, uppercase the character following each stripped
// run, and lowercase the first character.
func normaliseType(nodeType string) string {
	parts := nonAlnum.Split(nodeType, -1)
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	collapsed := strings.Join(parts, "")
	if collapsed == "" {
		return collapsed
	}
	return strings.ToLower(collapsed[:1]) + collapsed[1:]
}

// RegisterNodeSettings records spec for nodeType, enforcing that every
// declared property name starts with the type's normalised prefix.
func (s *Store) RegisterNodeSettings(nodeType string, spec NodeSettingsSpec) error {
	prefix := normaliseType(nodeType)
	for prop := range spec.Defaults {
		if !strings.HasPrefix(prop, prefix) {
			return newErr("invalid_expr", fmt.Sprintf("property %q must start with %q", prop, prefix))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeSettings[nodeType] = spec
	return nil
}

// ExportNodeSettings returns the union of every registered node type's
// exportable defaults, overlaid by any local value already set for
// that key, without ever overwriting a key already present in the
// result. When two node types declare the same key, which one's
// default ends up in the result is not defined.
func (s *Store) ExportNodeSettings() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]interface{}{}
	for _, spec := range s.nodeSettings {
		for prop, def := range spec.Defaults {
			if !spec.Exportable[prop] {
				continue
			}
			if _, present := out[prop]; present {
				continue
			}
			if v, ok := s.local[prop]; ok {
				out[prop] = v
				continue
			}
			out[prop] = def
		}
	}
	return out
}
