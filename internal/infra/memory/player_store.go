package memory

import (
	"context"
	"sync"

	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/rating"
)

// PlayerStore is an in-memory implementation of app.PlayerRepository.
type PlayerStore struct {
	mu      sync.RWMutex
	players map[string]domain.Player
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{players: make(map[string]domain.Player)}
}

// GetOrCreate loads the player, seeding a fresh record at the initial rating
// when the ID is unseen.
func (s *PlayerStore) GetOrCreate(_ context.Context, playerID string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player, ok := s.players[playerID]; ok {
		return player, nil
	}
	player := domain.Player{
		ID:     playerID,
		Rating: rating.InitialRating,
		Tier:   rating.TierFor(rating.InitialRating),
	}
	s.players[playerID] = player
	return player, nil
}

// ApplyResults applies both sides' rating deltas (clamped at zero), recomputes
// tiers, and bumps the result counters under one lock. Either both players
// move or neither does.
func (s *PlayerStore) ApplyResults(_ context.Context, playerIDs [2]string, deltas [2]int, outcomeFirst rating.Outcome) ([2]domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var players [2]domain.Player
	for i, playerID := range playerIDs {
		player, ok := s.players[playerID]
		if !ok {
			return [2]domain.Player{}, domain.ErrPlayerNotFound
		}
		players[i] = player
	}

	outcomes := [2]rating.Outcome{outcomeFirst, outcomeFirst.Inverse()}
	for i := range players {
		players[i].Rating = rating.Apply(players[i].Rating, deltas[i])
		players[i].Tier = rating.TierFor(players[i].Rating)
		switch outcomes[i] {
		case rating.Win:
			players[i].Wins++
		case rating.Loss:
			players[i].Losses++
		default:
			players[i].Draws++
		}
		s.players[playerIDs[i]] = players[i]
	}
	return players, nil
}

// Get returns the player record without creating it.
func (s *PlayerStore) Get(playerID string) (domain.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[playerID]
	return player, ok
}
