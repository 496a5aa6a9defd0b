// ABOUTME: Durable key/value state store backed by a single JSON document
// ABOUTME: Holds device identity and volatile runtime facts (active address, test times)

package state

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Well-known state keys.
const (
	KeyDeviceID     = "device_id"
	KeyActiveAddr   = "active_addr"
	KeyLastAddrTest = "last_addr_test"
	KeyLastNetwork  = "last_network"
	KeyMACAddress   = "mac_address"
)

// Store persists small runtime facts as a single JSON document that is
// rewritten in full on every mutation. Writes are serialized; an unreadable
// or corrupt file is treated as empty and regenerated on the next write.
type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// New creates a Store persisting to path on the given filesystem.
func New(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Get returns the value for key, or "" if absent or the file is unreadable.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()[key]
}

// Set stores a single key and rewrites the document.
func (s *Store) Set(key, value string) error {
	return s.Update(func(m map[string]string) {
		m[key] = value
	})
}

// Update applies fn to the current contents under the store lock and
// persists the result, so multi-key mutations land in one write.
func (s *Store) Update(fn func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load()
	fn(m)
	return s.save(m)
}

// GetTime parses the value for key as RFC 3339. The zero time is returned
// for absent or malformed values.
func (s *Store) GetTime(key string) time.Time {
	t, err := time.Parse(time.RFC3339, s.Get(key))
	if err != nil {
		return time.Time{}
	}
	return t
}

// SetTime stores a timestamp in RFC 3339 form.
func (s *Store) SetTime(key string, t time.Time) error {
	return s.Set(key, t.UTC().Format(time.RFC3339))
}

// DeviceID returns the persistent device identifier, generating and storing
// a new one on first use. The identifier is immutable once created.
func (s *Store) DeviceID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load()
	if id := m[KeyDeviceID]; id != "" {
		return id, nil
	}

	id := uuid.New().String()
	m[KeyDeviceID] = id
	if err := s.save(m); err != nil {
		return "", fmt.Errorf("persisting device id: %w", err)
	}
	return id, nil
}

// load reads the full document. Missing or corrupt files yield an empty map.
// Callers must hold s.mu.
func (s *Store) load() map[string]string {
	m := make(map[string]string)
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return make(map[string]string)
	}
	return m
}

// save rewrites the full document. Callers must hold s.mu.
func (s *Store) save(m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return nil
}
