/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package approval

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// JSONPolicyStore is a PolicyStore that persists trust rules to a JSON
// file on disk. Lookup semantics are identical to MemoryPolicyStore,
// including recursive directory rules with most-specific-ancestor
// selection.
//
// The file is a flat object mapping rule identifiers to granted
// actions, e.g.:
//
//	{
//	  "engine:command:command:git": ["exec"],
//	  "engine:command:directory:/home/me/project": ["read", "write"]
//	}
type JSONPolicyStore struct {
	mu   sync.RWMutex
	file string
	data map[string][]Action
}

// NewJSONPolicyStore constructs a JSON-backed store using filename as
// the persistence location. An existing file is read and parsed; a
// missing file starts the store empty. The constructor is conservative:
// an unreadable or unparseable existing file is an error rather than a
// silent discard of prior grants.
func NewJSONPolicyStore(filename string) (*JSONPolicyStore, error) {
	if filename == "" {
		return nil, errors.New("json policy store filename must not be empty")
	}

	store := &JSONPolicyStore{
		file: filename,
		data: make(map[string][]Action),
	}

	// Load before the store is published to other goroutines; no lock
	// needed yet.
	if err := store.loadFromFile(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *JSONPolicyStore) loadFromFile() error {
	info, err := os.Stat(s.file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return errors.New("json policy store path is a directory, want file")
	}

	f, err := os.Open(s.file)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var raw map[string][]Action
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	if raw == nil {
		raw = make(map[string][]Action)
	}
	s.data = raw
	return nil
}

// persist writes the in-memory map to disk atomically via a temporary
// file + rename. Called with the write lock held.
func (s *JSONPolicyStore) persist() error {
	encoded, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.file)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpPath := s.file + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(encoded); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.file)
}

func (s *JSONPolicyStore) Check(policyID string) ([]Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return checkRules(s.data, policyID)
}

// Save updates the in-memory map and then attempts to persist. A failed
// persist still leaves the update visible to subsequent calls.
func (s *JSONPolicyStore) Save(policyID string, actions []Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[policyID] = actions
	_ = s.persist()
}
