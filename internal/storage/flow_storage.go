package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// FlowStorage implements flowmanager.Storage by persisting the whole
// config snapshot as one JSON array file — a single atomic snapshot,
// not per-node files, since the deploy pipeline always reads and
// writes the full config together.
type FlowStorage struct {
	path string
	mu   sync.RWMutex
}

// NewFlowStorage creates a FlowStorage backed by <dataDir>/flows.json.
func NewFlowStorage(dataDir string) *FlowStorage {
	return &FlowStorage{path: filepath.Join(dataDir, "flows.json")}
}

// GetFlows returns nil (not an error) when no snapshot has ever been
// saved.
func (s *FlowStorage) GetFlows() ([]model.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newErr("failed to read flows file", s.path, err)
	}
	var config []model.Element
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, newErr("failed to unmarshal flows", s.path, err)
	}
	return config, nil
}

// SaveFlows atomically writes config as the new canonical snapshot.
func (s *FlowStorage) SaveFlows(config []model.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return newErr("failed to create data directory", filepath.Dir(s.path), err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return newErr("failed to marshal flows", s.path, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return newErr("failed to write flows file", s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return newErr("failed to commit flows file", s.path, err)
	}
	return nil
}
