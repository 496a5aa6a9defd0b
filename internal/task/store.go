// ABOUTME: Durable task collection backed by a single JSON document
// ABOUTME: Supports upsert-by-id, delete, cancellation-flagging, and last-run bookkeeping

package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when a requested task does not exist
var ErrNotFound = errors.New("task not found")

// Store holds the scheduled task collection. The whole collection is read
// on every access and rewritten in full on every mutation; writes are
// serialized so concurrent loops cannot corrupt the file. A missing or
// corrupt file is treated as an empty collection.
type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewStore creates a Store persisting to path on the given filesystem.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// List returns all tasks currently in the store.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the task with the given id, or ErrNotFound.
func (s *Store) Get(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.load() {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, ErrNotFound
}

// Upsert inserts or replaces the task with the same id. The task identifier
// is unique within the store: persisting the same record twice leaves
// exactly one entry.
func (s *Store) Upsert(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.load()
	out := tasks[:0]
	for _, existing := range tasks {
		if existing.ID != t.ID {
			out = append(out, existing)
		}
	}
	out = append(out, t)
	return s.save(out)
}

// Remove deletes the task with the given id. Removing an absent id is not
// an error.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.load()
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return s.save(out)
}

// Cancel flags the task with the given id as cancelled. Cancellation is
// advisory: an in-flight execution is not interrupted.
func (s *Store) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.load()
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].Cancelled = true
		}
	}
	return s.save(tasks)
}

// MarkRun records a run timestamp for the task with the given id.
func (s *Store) MarkRun(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.load()
	for i := range tasks {
		if tasks[i].ID == id {
			ts := at.UTC()
			tasks[i].LastRun = &ts
		}
	}
	return s.save(tasks)
}

// load reads the full collection. Callers must hold s.mu.
func (s *Store) load() []Task {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil
	}
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil
	}
	return tasks
}

// save rewrites the full collection. Callers must hold s.mu.
func (s *Store) save(tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tasks: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating task dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing tasks: %w", err)
	}
	return nil
}
