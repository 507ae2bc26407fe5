package stores

import (
	"fmt"
	"sync"

	"github.com/Desarso/playground/models"
)

// MemoryStore is the in-process ConversationStore. It lives exactly as long
// as the session that owns it.
type MemoryStore struct {
	mu    sync.RWMutex
	turns []models.Turn
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a turn to the end of the transcript. The role is the only thing
// validated; empty content is stored as-is.
func (s *MemoryStore) Append(turn models.Turn) error {
	if err := turn.Validate(); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
	return nil
}

// Tail returns a copy of every turn in append order.
func (s *MemoryStore) Tail() []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of stored turns.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}
