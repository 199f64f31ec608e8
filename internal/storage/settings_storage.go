package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// SettingsStorage implements settings.Storage as a single JSON file,
// same one-snapshot approach as FlowStorage. An operator-provided
// settings.yaml in the same data directory seeds the global layer
// when no JSON snapshot exists yet.
type SettingsStorage struct {
	path     string
	yamlPath string
	mu       sync.RWMutex
}

// NewSettingsStorage creates a SettingsStorage backed by
// <dataDir>/settings.json, seeded from <dataDir>/settings.yaml.
func NewSettingsStorage(dataDir string) *SettingsStorage {
	return &SettingsStorage{
		path:     filepath.Join(dataDir, "settings.json"),
		yamlPath: filepath.Join(dataDir, "settings.yaml"),
	}
}

// GetSettings returns nil, nil when no snapshot has ever been saved
// and no YAML seed file is present.
func (s *SettingsStorage) GetSettings() (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.getYAMLSeed()
		}
		return nil, newErr("failed to read settings file", s.path, err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, newErr("failed to unmarshal settings", s.path, err)
	}
	return out, nil
}

func (s *SettingsStorage) getYAMLSeed() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.yamlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newErr("failed to read settings seed", s.yamlPath, err)
	}
	var out map[string]interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, newErr("failed to unmarshal settings seed", s.yamlPath, err)
	}
	return out, nil
}

// SaveSettings atomically writes settings as the new canonical global
// layer.
func (s *SettingsStorage) SaveSettings(settings map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return newErr("failed to create data directory", filepath.Dir(s.path), err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return newErr("failed to marshal settings", s.path, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return newErr("failed to write settings file", s.path, err)
	}
	return os.Rename(tmp, s.path)
}
