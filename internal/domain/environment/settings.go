// Package environment resolves configuration variables from the run
// environment, the persisted settings file, and the operator, in that order.
package environment

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/ini.v1"
)

// SettingsStore persists resolved variables as shell-style KEY=value lines.
// The file is owner-readable only: it holds admin and database passwords.
// It is also hand-editable by the operator between runs.
type SettingsStore struct {
	mu   sync.Mutex
	path string
}

// NewSettingsStore creates a store backed by the given file path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads all persisted settings. A missing file yields an empty map.
func (s *SettingsStore) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := ini.LooseLoad(s.path)
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", s.path, err)
	}

	out := make(map[string]string)
	for _, key := range cfg.Section("").Keys() {
		out[key.Name()] = key.String()
	}
	return out, nil
}

// Get returns the persisted value for name, if present.
func (s *SettingsStore) Get(name string) (string, bool, error) {
	values, err := s.Load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[name]
	return v, ok, nil
}

// Set upserts one key, preserving all other entries, and rewrites the file
// with mode 0600.
func (s *SettingsStore) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := ini.LooseLoad(s.path)
	if err != nil {
		return fmt.Errorf("load settings %s: %w", s.path, err)
	}

	cfg.Section("").Key(name).SetValue(value)

	return s.write(cfg)
}

// Remove deletes the settings file entirely. Used by reset.
func (s *SettingsStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove settings %s: %w", s.path, err)
	}
	return nil
}

// Emit plain KEY=value lines so the file stays sourceable by a shell.
func init() {
	ini.PrettyFormat = false
}

func (s *SettingsStore) write(cfg *ini.File) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return fmt.Errorf("serialize settings: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return nil
}
