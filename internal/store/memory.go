package store

import (
	"context"
	"sync"

	"object-sync-service/internal/user"
)

// MemoryStore is an in-process UserStore used in tests and when no database
// is configured. Users round-trip through the portable form exactly like the
// MySQL store, so serialization bugs surface here too.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Save(ctx context.Context, key string, u *user.User) error {
	payload, err := u.ToPortableForm()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = payload
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, key string) (*user.User, error) {
	s.mu.RLock()
	payload, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return user.FromPortableForm(payload)
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) All(ctx context.Context) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*user.User, 0, len(s.entries))
	for _, payload := range s.entries {
		u, err := user.FromPortableForm(payload)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
