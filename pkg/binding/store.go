// Package binding records which (platform, recipient) pairs are bound to
// which devices. Bindings are created implicitly when a recipient issues a
// successful device command; they are never implicitly deleted.
package binding

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Target addresses one recipient on one platform.
type Target struct {
	Platform  string `json:"platform"`
	Recipient string `json:"recipient"`
}

// Store is the device → targets mapping. Uniqueness is on the
// (device, platform, recipient) triple; Bind is idempotent.
//
// When constructed with a path, the store persists as a JSON file and
// reloads it on startup, so bindings survive gateway restarts.
type Store struct {
	mu       sync.RWMutex
	byDevice map[string]map[Target]struct{}
	path     string
}

// NewStore opens a store persisted at path. An empty path keeps the store
// in memory only. A missing file is not an error.
func NewStore(path string) (*Store, error) {
	s := &Store{
		byDevice: make(map[string]map[Target]struct{}),
		path:     path,
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var raw map[string][]Target
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for deviceID, targets := range raw {
		set := make(map[Target]struct{}, len(targets))
		for _, t := range targets {
			set[t] = struct{}{}
		}
		s.byDevice[deviceID] = set
	}
	return s, nil
}

// Bind records the (device, platform, recipient) triple. Re-binding an
// existing triple is a no-op and does not rewrite the file.
func (s *Store) Bind(deviceID, platform, recipient string) error {
	t := Target{Platform: platform, Recipient: recipient}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.byDevice[deviceID]
	if !ok {
		set = make(map[Target]struct{})
		s.byDevice[deviceID] = set
	}
	if _, exists := set[t]; exists {
		return nil
	}
	set[t] = struct{}{}

	return s.flushLocked()
}

// Resolve returns the targets bound to deviceID, sorted for stable output.
func (s *Store) Resolve(deviceID string) []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortTargets(s.byDevice[deviceID])
}

// ResolveAll returns every bound target across all devices, deduplicated by
// (platform, recipient): a recipient bound to several devices appears once.
func (s *Store) ResolveAll() []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[Target]struct{})
	for _, set := range s.byDevice {
		for t := range set {
			all[t] = struct{}{}
		}
	}
	return sortTargets(all)
}

// Count returns the number of distinct triples in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, set := range s.byDevice {
		n += len(set)
	}
	return n
}

func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}

	raw := make(map[string][]Target, len(s.byDevice))
	for deviceID, set := range s.byDevice {
		raw[deviceID] = sortTargets(set)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func sortTargets(set map[Target]struct{}) []Target {
	out := make([]Target, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].Recipient < out[j].Recipient
	})
	return out
}
