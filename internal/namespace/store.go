package namespace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/resumelab/ragsweep/pkg/models"
)

// HistoryEntry records one namespace and the variant that owns it.
// Unique by namespace name; append/update-only.
type HistoryEntry struct {
	Namespace string         `json:"namespace"`
	Variant   models.Variant `json:"variant"`
	FirstUsed time.Time      `json:"first_used"`
	LastUsed  time.Time      `json:"last_used"`
}

// Store is the JSON-backed namespace history. All mutations are
// serialized through a single writer and persisted with an atomic
// temp-file rename, so a crash never leaves a torn file and concurrent
// ingests in one process never lose updates.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore opens (or lazily creates) the history file at path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Record upserts the history entry for ns. The first record sets
// FirstUsed; later records only bump LastUsed. Recording a different
// variant for an existing namespace fails with DescriptorMismatchError.
func (s *Store) Record(ns string, v models.Variant) error {
	if ns == "" {
		return fmt.Errorf("namespace name is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	now := s.now()
	if existing, ok := entries[ns]; ok {
		if !existing.Variant.Equal(v) {
			return &DescriptorMismatchError{
				Namespace: ns,
				Existing:  existing.Variant,
				Incoming:  v,
			}
		}
		existing.LastUsed = now
		entries[ns] = existing
	} else {
		entries[ns] = HistoryEntry{
			Namespace: ns,
			Variant:   v,
			FirstUsed: now,
			LastUsed:  now,
		}
	}
	return s.save(entries)
}

// List returns a snapshot of all history entries ordered by recency
// (most recently used first). Safe to call concurrently with writers;
// the snapshot is the best-effort latest state, not linearizable.
func (s *Store) List() ([]HistoryEntry, error) {
	s.mu.Lock()
	entries, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUsed.Equal(out[j].LastUsed) {
			return out[i].LastUsed.After(out[j].LastUsed)
		}
		return out[i].Namespace < out[j].Namespace
	})
	return out, nil
}

// Get returns the entry for ns, or ok=false when it was never recorded.
func (s *Store) Get(ns string) (HistoryEntry, bool, error) {
	s.mu.Lock()
	entries, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return HistoryEntry{}, false, err
	}
	entry, ok := entries[ns]
	return entry, ok, nil
}

// Remove deletes the history entry for ns. Removing an unknown
// namespace is a no-op; the vector store may hold namespaces the
// history never saw and vice versa.
func (s *Store) Remove(ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[ns]; !ok {
		return nil
	}
	delete(entries, ns)
	return s.save(entries)
}

func (s *Store) load() (map[string]HistoryEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]HistoryEntry), nil
		}
		return nil, fmt.Errorf("read namespace history: %w", err)
	}
	entries := make(map[string]HistoryEntry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse namespace history %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]HistoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode namespace history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ns_history-*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
