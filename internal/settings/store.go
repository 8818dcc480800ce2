// Package settings holds per-plugin settings. Each plugin id owns a private
// key/value map; no plugin can see another's values.
package settings

import (
	"fmt"
	"sync"
)

// Persister is the storage the store writes through to. *storage.Local
// satisfies it.
type Persister interface {
	Load(key string, dst any) (bool, error)
	Save(key string, value any) error
}

// Store maps plugin id to that plugin's settings.
type Store struct {
	mu      sync.RWMutex
	values  map[string]map[string]any
	persist Persister
}

// NewStore creates an in-memory store. persist may be nil.
func NewStore(persist Persister) *Store {
	return &Store{
		values:  make(map[string]map[string]any),
		persist: persist,
	}
}

// storageKey is where a plugin's settings live in the persister.
func storageKey(pluginID string) string {
	return "settings/" + pluginID
}

// Get returns the value of key for pluginID.
func (s *Store) Get(pluginID, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[pluginID][key]
	return v, ok
}

// Set stores a value and writes the plugin's settings through to the persister.
func (s *Store) Set(pluginID, key string, value any) error {
	s.mu.Lock()
	m, ok := s.values[pluginID]
	if !ok {
		m = make(map[string]any)
		s.values[pluginID] = m
	}
	m[key] = value
	snapshot := copyMap(m)
	s.mu.Unlock()

	return s.save(pluginID, snapshot)
}

// Delete removes key for pluginID.
func (s *Store) Delete(pluginID, key string) error {
	s.mu.Lock()
	m, ok := s.values[pluginID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(m, key)
	snapshot := copyMap(m)
	s.mu.Unlock()

	return s.save(pluginID, snapshot)
}

// All returns a copy of every setting for pluginID.
func (s *Store) All(pluginID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.values[pluginID])
}

// Defaults sets every key in defaults that pluginID does not have yet.
func (s *Store) Defaults(pluginID string, defaults map[string]any) {
	if len(defaults) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.values[pluginID]
	if !ok {
		m = make(map[string]any, len(defaults))
		s.values[pluginID] = m
	}
	for k, v := range defaults {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
}

// Load hydrates pluginID's settings from the persister, overriding memory
// for every key found there.
func (s *Store) Load(pluginID string) error {
	if s.persist == nil {
		return nil
	}

	var stored map[string]any
	found, err := s.persist.Load(storageKey(pluginID), &stored)
	if err != nil {
		return fmt.Errorf("loading settings for %s: %w", pluginID, err)
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.values[pluginID]
	if !ok {
		m = make(map[string]any, len(stored))
		s.values[pluginID] = m
	}
	for k, v := range stored {
		m[k] = v
	}
	return nil
}

func (s *Store) save(pluginID string, snapshot map[string]any) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.Save(storageKey(pluginID), snapshot); err != nil {
		return fmt.Errorf("saving settings for %s: %w", pluginID, err)
	}
	return nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
