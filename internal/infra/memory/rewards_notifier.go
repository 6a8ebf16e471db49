package memory

import (
	"context"
	"log"

	"quiz-duel-service/internal/domain"
)

// LogRewardsNotifier is the default rewards collaborator: it only logs the
// completion. Production deployments replace it with the platform's rewards
// pipeline.
type LogRewardsNotifier struct{}

func NewLogRewardsNotifier() *LogRewardsNotifier { return &LogRewardsNotifier{} }

func (n *LogRewardsNotifier) DuelCompleted(_ context.Context, duel domain.Duel) error {
	log.Printf("duel %s completed: winner=%q draw=%v scores=%v", duel.ID, duel.WinnerID, duel.Draw, duel.Scores)
	return nil
}
