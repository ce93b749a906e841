// Package progress persists which steps have completed, enabling idempotent
// resume: a re-run skips every step recorded here.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store is the durable record of completed step names, backed by a single
// file with one step name per line. A name being present means Execute
// succeeded at least once since the last reset; it says nothing about
// whether the provisioned resources still exist.
type Store struct {
	mu   sync.Mutex
	path string
	done map[string]struct{}
}

// NewStore creates a Store backed by the given file path. Call Load before
// first use.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		done: make(map[string]struct{}),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file yields an empty set.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done = make(map[string]struct{})

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load progress state %s: %w", s.path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		name := strings.TrimSpace(line)
		if name != "" {
			s.done[name] = struct{}{}
		}
	}
	return nil
}

// Done reports whether the named step has completed.
func (s *Store) Done(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[name]
	return ok
}

// MarkDone records a step as completed and rewrites the backing file.
// Duplicate-safe: marking a completed step again is a no-op.
func (s *Store) MarkDone(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.done[name]; ok {
		return nil
	}
	s.done[name] = struct{}{}

	return s.writeLocked()
}

// Completed returns the completed step names, sorted for stable output.
func (s *Store) Completed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.done))
	for name := range s.done {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset deletes the backing file and clears in-memory state.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done = make(map[string]struct{})
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset progress state %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	var b strings.Builder
	for name := range s.done {
		b.WriteString(name)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write progress state %s: %w", s.path, err)
	}
	return nil
}
