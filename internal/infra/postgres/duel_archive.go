package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-duel-service/internal/domain"
)

// DuelArchive persists completed duel records, including the rating movement
// applied at completion. Writes are idempotent on the duel ID.
type DuelArchive struct {
	pool *pgxpool.Pool
}

func NewDuelArchive(pool *pgxpool.Pool) *DuelArchive {
	return &DuelArchive{pool: pool}
}

func (a *DuelArchive) Archive(ctx context.Context, duel domain.Duel) error {
	data, err := json.Marshal(duel)
	if err != nil {
		return fmt.Errorf("marshal duel %s: %w", duel.ID, err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO duel_archive
			(id, topic, player1, player2, winner_id, draw, score1, score2,
			 rating_delta1, rating_delta2, started_at, ended_at, data)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		duel.ID, duel.Topic,
		duel.Players[domain.SideFirst], duel.Players[domain.SideSecond],
		duel.WinnerID, duel.Draw,
		duel.Scores[domain.SideFirst], duel.Scores[domain.SideSecond],
		duel.RatingDeltas[domain.SideFirst], duel.RatingDeltas[domain.SideSecond],
		duel.StartedAt, duel.EndedAt, data)
	if err != nil {
		return fmt.Errorf("archive duel %s: %w", duel.ID, err)
	}
	return nil
}
