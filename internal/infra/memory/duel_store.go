package memory

import (
	"sync"

	"quiz-duel-service/internal/app"
)

// DuelStore is an in-memory implementation of app.DuelRepository. It keeps an
// index from player ID to their active duel, enforcing that a player is in at
// most one non-terminal duel.
type DuelStore struct {
	mu     sync.RWMutex
	duels  map[string]*app.Duel
	active map[string]string // playerID -> duelID
}

func NewDuelStore() *DuelStore {
	return &DuelStore{
		duels:  make(map[string]*app.Duel),
		active: make(map[string]string),
	}
}

func (s *DuelStore) Add(d *app.Duel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duels[d.ID()] = d
	for _, playerID := range d.Players() {
		s.active[playerID] = d.ID()
	}
}

func (s *DuelStore) Get(id string) (*app.Duel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	duel, ok := s.duels[id]
	return duel, ok
}

func (s *DuelStore) ActiveByPlayer(playerID string) (*app.Duel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	duelID, ok := s.active[playerID]
	if !ok {
		return nil, false
	}
	duel, ok := s.duels[duelID]
	return duel, ok
}

func (s *DuelStore) MarkCompleted(d *app.Duel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, playerID := range d.Players() {
		if s.active[playerID] == d.ID() {
			delete(s.active, playerID)
		}
	}
}
