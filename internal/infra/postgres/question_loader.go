package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-duel-service/internal/domain"
)

// QuestionLoader loads a topic's question pool from JSONB rows in Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadTopic(ctx context.Context, topic string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM questions WHERE topic=$1`, topic)
	if err != nil {
		return nil, fmt.Errorf("load topic %q: %w", topic, err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load topic %q: %w", topic, err)
	}
	return questions, nil
}
