package flash

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu       sync.Mutex
	messages map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]string),
	}
}

func (s *MemoryStore) Push(_ context.Context, session, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[session] = append(s.messages[session], message)
	return nil
}

func (s *MemoryStore) Pop(_ context.Context, session string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.messages[session]
	delete(s.messages, session)
	return messages, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
