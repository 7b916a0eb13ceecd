// Package memory implements the HashStore port with a process-local map and
// an optional JSON snapshot file.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HashStore = (*Store)(nil)

// Store keeps every group in memory. When stateFile is set, each write is
// followed by a full snapshot of all groups to that file.
type Store struct {
	mu        sync.Mutex
	groups    map[string]map[string]string
	stateFile string
	logger    *slog.Logger
}

// NewStore creates an empty Store. stateFile may be empty to disable
// persistence.
func NewStore(stateFile string, logger *slog.Logger) *Store {
	return &Store{
		groups:    make(map[string]map[string]string),
		stateFile: stateFile,
		logger:    logger,
	}
}

// Load reads the snapshot file into memory. A missing, unreadable or
// non-JSON file leaves the store as it is. Groups absent from the file keep
// their current contents.
func (s *Store) Load() {
	if s.stateFile == "" {
		return
	}

	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("state file unreadable, starting empty", "path", s.stateFile, "error", err)
		}
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("state file is not valid JSON, starting empty", "path", s.stateFile, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for group, payload := range raw {
		var entries map[string]string
		if err := json.Unmarshal(payload, &entries); err != nil || entries == nil {
			s.logger.Warn("skipping malformed state group", "group", group)
			continue
		}
		s.groups[group] = entries
	}
	s.logger.Info("state file loaded", "path", s.stateFile, "groups", len(raw))
}

// HGet returns the value under (group, id).
func (s *Store) HGet(_ context.Context, group, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.groups[group][id]
	if !ok {
		return "", driven.ErrNotFound
	}
	return value, nil
}

// HSet stores value in memory, then snapshots. A snapshot failure is returned
// but the in-memory write stands.
func (s *Store) HSet(_ context.Context, group, id, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.groups[group]
	if !ok {
		entries = make(map[string]string)
		s.groups[group] = entries
	}
	entries[id] = value

	return s.snapshotLocked()
}

// HKeys returns the ids in group in sorted order.
func (s *Store) HKeys(_ context.Context, group string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.groups[group]))
	for id := range s.groups[group] {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys, nil
}

// snapshotLocked writes all groups to the state file. Both credential groups
// are always present so the file layout is stable. Caller holds s.mu.
func (s *Store) snapshotLocked() error {
	if s.stateFile == "" {
		return nil
	}

	out := map[string]map[string]string{
		model.GroupAuthenticationCredentials: {},
		model.GroupSessionTokens:             {},
	}
	for group, entries := range s.groups {
		out[group] = entries
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := atomic.WriteFile(s.stateFile, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write state file %q: %w", s.stateFile, err)
	}
	return nil
}
