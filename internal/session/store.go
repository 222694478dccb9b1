// Package session implements the persisted recovery store: a namespaced
// key/value store durable across process restarts, kept in a single JSON
// file under the session directory. Every job-state transition and selection
// change is written through immediately, so an in-flight job survives a
// restart without re-submission or lost tracking.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Namespace is the prefix every key carries so unrelated persisted keys can
// never collide with ours.
const Namespace = "vantage."

// Keys owned by the selection context. Disjoint from the job keys below so
// the two writers never race over a shared record.
const (
	KeyProject    = Namespace + "selection.project"
	KeyDataset    = Namespace + "selection.dataset"
	KeyModel      = Namespace + "selection.model"
	KeyConfidence = Namespace + "selection.confidence"
	KeyParams     = Namespace + "selection.params"
)

// Keys owned by the poller / job tracker.
const (
	KeyJobID       = Namespace + "job.id"
	KeyJobKind     = Namespace + "job.kind"
	KeyJobStatus   = Namespace + "job.status"
	KeyJobProgress = Namespace + "job.progress"
)

// SelectionKeys lists every key in the selection subset
var SelectionKeys = []string{KeyProject, KeyDataset, KeyModel, KeyConfidence, KeyParams}

// JobKeys lists every key in the job subset
var JobKeys = []string{KeyJobID, KeyJobKind, KeyJobStatus, KeyJobProgress}

const storeFile = "session.json"

// Store is a write-through key/value store backed by one JSON file. Values
// are arbitrary JSON. All writes replace the file atomically (temp file +
// rename) so a crash mid-write can never leave a torn record behind.
type Store struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage
}

// Open loads the store from dir, creating the directory as needed. A missing
// store file yields an empty store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating session dir %s: %w", dir, err)
	}

	s := &Store{
		path: filepath.Join(dir, storeFile),
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("error reading session store: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		// A corrupt store is recoverable: start clean rather than wedge
		// every future session on one bad file.
		s.data = make(map[string]json.RawMessage)
	}
	return s, nil
}

// Get unmarshals the value stored under key into v. The second return is
// false when the key is absent.
func (s *Store) Get(key string, v interface{}) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("error decoding session key %s: %w", key, err)
	}
	return true, nil
}

// GetString is a convenience wrapper around Get for string values
func (s *Store) GetString(key string) (string, bool) {
	var v string
	ok, err := s.Get(key, &v)
	if err != nil {
		return "", false
	}
	return v, ok
}

// Set stores v under key and writes the file through immediately
func (s *Store) Set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding session key %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.flushLocked()
}

// SetAll stores several values in one write
func (s *Store) SetAll(values map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("error encoding session key %s: %w", key, err)
		}
		s.data[key] = raw
	}
	return s.flushLocked()
}

// Delete removes the given keys in one write. Missing keys are ignored.
func (s *Store) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return s.flushLocked()
}

// Clear removes every namespaced key in one atomic reset, so no stale
// fragment can resurrect a finished job. Keys outside the namespace are left
// untouched.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.data {
		if strings.HasPrefix(key, Namespace) {
			delete(s.data, key)
		}
	}
	return s.flushLocked()
}

// Keys returns the stored keys, for diagnostics
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys
}

func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding session store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("error writing session store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("error replacing session store: %w", err)
	}
	return nil
}
