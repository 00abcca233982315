package docstore

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps documents in process memory. Used for tests and the
// "memory" backend.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) ([]byte, error) {
	if err := validateKey(collection, key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (s *MemoryStore) Put(_ context.Context, collection, key string, value []byte) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collection(collection)[key] = slices.Clone(value)
	return nil
}

func (s *MemoryStore) Create(_ context.Context, collection, key string, value []byte) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if _, ok := c[key]; ok {
		return ErrExists
	}
	c[key] = slices.Clone(value)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, collection, key string) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][key]; !ok {
		return ErrNotFound
	}
	delete(s.docs[collection], key)
	return nil
}

func (s *MemoryStore) ListKeys(_ context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.docs[collection]))
	for k := range s.docs[collection] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *MemoryStore) collection(name string) map[string][]byte {
	c, ok := s.docs[name]
	if !ok {
		c = make(map[string][]byte)
		s.docs[name] = c
	}
	return c
}
