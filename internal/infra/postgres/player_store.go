package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/rating"
)

// PlayerStore is a Postgres-backed implementation of app.PlayerRepository.
// ApplyResults runs as a single transaction locking both rows, so concurrent
// duel completions touching the same player serialize cleanly and a failure
// never leaves one side's rating moved without the other's.
type PlayerStore struct {
	pool *pgxpool.Pool
}

func NewPlayerStore(pool *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{pool: pool}
}

func (s *PlayerStore) GetOrCreate(ctx context.Context, playerID string) (domain.Player, error) {
	var player domain.Player
	err := s.pool.QueryRow(ctx, `
		INSERT INTO players (id, rating, tier)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, rating, tier, wins, losses, draws`,
		playerID, rating.InitialRating, rating.TierFor(rating.InitialRating),
	).Scan(&player.ID, &player.Rating, &player.Tier, &player.Wins, &player.Losses, &player.Draws)
	if err != nil {
		return domain.Player{}, fmt.Errorf("get or create player %s: %w", playerID, err)
	}
	return player, nil
}

func (s *PlayerStore) ApplyResults(ctx context.Context, playerIDs [2]string, deltas [2]int, outcomeFirst rating.Outcome) ([2]domain.Player, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return [2]domain.Player{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock rows in ID order so two finalizations sharing a player cannot deadlock.
	order := [2]int{0, 1}
	if playerIDs[1] < playerIDs[0] {
		order = [2]int{1, 0}
	}

	var players [2]domain.Player
	for _, i := range order {
		err = tx.QueryRow(ctx, `SELECT id, rating, wins, losses, draws FROM players WHERE id=$1 FOR UPDATE`, playerIDs[i]).
			Scan(&players[i].ID, &players[i].Rating, &players[i].Wins, &players[i].Losses, &players[i].Draws)
		if errors.Is(err, pgx.ErrNoRows) {
			return [2]domain.Player{}, domain.ErrPlayerNotFound
		}
		if err != nil {
			return [2]domain.Player{}, fmt.Errorf("lock player %s: %w", playerIDs[i], err)
		}
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

		_, err = tx.Exec(ctx, `
			UPDATE players SET rating=$2, tier=$3, wins=$4, losses=$5, draws=$6 WHERE id=$1`,
			players[i].ID, players[i].Rating, players[i].Tier, players[i].Wins, players[i].Losses, players[i].Draws)
		if err != nil {
			return [2]domain.Player{}, fmt.Errorf("update player %s: %w", playerIDs[i], err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return [2]domain.Player{}, fmt.Errorf("commit: %w", err)
	}
	return players, nil
}
