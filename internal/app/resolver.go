package app

import "quiz-duel-service/internal/domain"

// roundVerdict is the outcome of resolving one round.
type roundVerdict struct {
	points    [2]int
	winner    domain.Side
	hasWinner bool
	draw      bool
}

// resolveRound decides a round once both sides have answered. The policy:
// a lone correct side wins the point; two wrong answers award nothing and do
// not count as a draw; two correct answers go to the faster side, with equal
// times scoring nothing but flagging a draw. Total for every input.
func resolveRound(first, second domain.Answer) roundVerdict {
	switch {
	case first.Correct && !second.Correct:
		return wonBy(domain.SideFirst)
	case second.Correct && !first.Correct:
		return wonBy(domain.SideSecond)
	case !first.Correct && !second.Correct:
		// Neither scored. Deliberately not a draw: only a tied pair of
		// correct answers marks the round drawn.
		return roundVerdict{}
	case first.ElapsedMs < second.ElapsedMs:
		return wonBy(domain.SideFirst)
	case second.ElapsedMs < first.ElapsedMs:
		return wonBy(domain.SideSecond)
	default:
		return roundVerdict{draw: true}
	}
}

func wonBy(side domain.Side) roundVerdict {
	verdict := roundVerdict{winner: side, hasWinner: true}
	verdict.points[side] = 1
	return verdict
}
