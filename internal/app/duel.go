package app

import (
	"sync"
	"time"

	"quiz-duel-service/internal/domain"
)

// Duel is the in-memory state machine for one match. All mutation happens
// under its mutex, so concurrent submissions from both players are safe and
// a round is resolved exactly once. Operations on one duel never block
// another duel or the waiting pool.
type Duel struct {
	mu           sync.Mutex
	id           string
	topic        string
	players      [2]string
	rounds       []domain.Round
	current      int // 0-based index into rounds
	scores       [2]int
	status       domain.DuelStatus
	winnerID     string
	draw         bool
	startedAt    time.Time
	endedAt      time.Time
	ratingDeltas [2]int
	now          func() time.Time
}

// NewDuel creates an in-progress duel with all rounds pre-materialized from
// the drawn questions and answers unset.
func NewDuel(id, topic string, players [2]string, questions []domain.Question) *Duel {
	return NewDuelWithClock(id, topic, players, questions, time.Now)
}

// NewDuelWithClock allows deterministic timestamps in tests.
func NewDuelWithClock(id, topic string, players [2]string, questions []domain.Question, now func() time.Time) *Duel {
	rounds := make([]domain.Round, len(questions))
	for i, q := range questions {
		rounds[i] = domain.Round{Number: i + 1, Question: q}
	}
	return &Duel{
		id:        id,
		topic:     topic,
		players:   players,
		rounds:    rounds,
		status:    domain.DuelInProgress,
		startedAt: now(),
		now:       now,
	}
}

// ID returns the duel identifier.
func (d *Duel) ID() string { return d.id }

// Players returns both player IDs indexed by side.
func (d *Duel) Players() [2]string { return d.players }

// SideOf returns the seat playerID holds in this duel.
func (d *Duel) SideOf(playerID string) (domain.Side, bool) {
	switch playerID {
	case d.players[domain.SideFirst]:
		return domain.SideFirst, true
	case d.players[domain.SideSecond]:
		return domain.SideSecond, true
	}
	return 0, false
}

// Completed reports whether the duel has finished.
func (d *Duel) Completed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status == domain.DuelCompleted
}

// submitOutcome describes what a single submission changed.
type submitOutcome struct {
	correct     bool
	roundNumber int
	sealed      bool
	round       domain.Round // populated when sealed
	finished    bool
	nextRound   int // 1-based, 0 once the duel is finished
}

// submit records one side's answer for roundNumber. When the submission
// completes both sides of the active round it resolves the round, seals it,
// updates the scores, and either advances or finalizes the duel. Exactly one
// submission observes finished=true.
func (d *Duel) submit(side domain.Side, roundNumber int, optionID string, elapsedMs int64) (submitOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status != domain.DuelInProgress {
		return submitOutcome{}, domain.ErrDuelNotInProgress
	}

	active := d.current + 1
	switch {
	case roundNumber < active:
		return submitOutcome{}, domain.ErrRoundClosed
	case roundNumber > active:
		return submitOutcome{}, domain.ErrRoundNotActive
	}

	round := &d.rounds[d.current]
	if round.Answers[side] != nil {
		return submitOutcome{}, domain.ErrAlreadyAnswered
	}
	if !round.Question.HasOption(optionID) {
		return submitOutcome{}, domain.ErrOptionNotFound
	}

	answer := &domain.Answer{
		OptionID:    optionID,
		ElapsedMs:   elapsedMs,
		Correct:     optionID == round.Question.Answer,
		SubmittedAt: d.now(),
	}
	round.Answers[side] = answer

	outcome := submitOutcome{
		correct:     answer.Correct,
		roundNumber: round.Number,
		nextRound:   round.Number,
	}

	other := round.Answers[side.Other()]
	if other == nil {
		return outcome, nil
	}

	d.sealLocked(round)
	outcome.sealed = true
	outcome.round = *round

	if d.current+1 < len(d.rounds) {
		d.current++
		outcome.nextRound = d.current + 1
		return outcome, nil
	}

	d.finalizeLocked()
	outcome.finished = true
	outcome.nextRound = 0
	return outcome, nil
}

// sealLocked resolves the round, freezes it, and accumulates the scores.
func (d *Duel) sealLocked(round *domain.Round) {
	verdict := resolveRound(*round.Answers[domain.SideFirst], *round.Answers[domain.SideSecond])
	round.Points = verdict.points
	round.Draw = verdict.draw
	if verdict.hasWinner {
		round.WinnerID = d.players[verdict.winner]
	}
	sealedAt := d.now()
	round.SealedAt = &sealedAt

	d.scores[domain.SideFirst] += verdict.points[domain.SideFirst]
	d.scores[domain.SideSecond] += verdict.points[domain.SideSecond]
}

// finalizeLocked computes the match result from the cumulative scores.
func (d *Duel) finalizeLocked() {
	switch {
	case d.scores[domain.SideFirst] > d.scores[domain.SideSecond]:
		d.winnerID = d.players[domain.SideFirst]
	case d.scores[domain.SideSecond] > d.scores[domain.SideFirst]:
		d.winnerID = d.players[domain.SideSecond]
	default:
		d.draw = true
	}
	d.status = domain.DuelCompleted
	d.endedAt = d.now()
}

// setRatingDeltas records the deltas applied at completion.
func (d *Duel) setRatingDeltas(deltas [2]int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ratingDeltas = deltas
}

// Record returns the full duel record, including answer keys, for archival
// and collaborator notification.
func (d *Duel) Record() domain.Duel {
	d.mu.Lock()
	defer d.mu.Unlock()

	record := domain.Duel{
		ID:           d.id,
		Topic:        d.topic,
		Players:      d.players,
		Rounds:       append([]domain.Round(nil), d.rounds...),
		CurrentRound: d.current + 1,
		Scores:       d.scores,
		Status:       d.status,
		WinnerID:     d.winnerID,
		Draw:         d.draw,
		StartedAt:    d.startedAt,
		RatingDeltas: d.ratingDeltas,
	}
	if d.status == domain.DuelCompleted {
		ended := d.endedAt
		record.EndedAt = &ended
	}
	return record
}

// View returns the client-safe snapshot of the duel.
func (d *Duel) View() domain.DuelView {
	d.mu.Lock()
	defer d.mu.Unlock()

	rounds := make([]domain.RoundView, len(d.rounds))
	for i, round := range d.rounds {
		rounds[i] = round.View()
	}
	view := domain.DuelView{
		ID:           d.id,
		Topic:        d.topic,
		Players:      d.players,
		Status:       d.status,
		CurrentRound: d.current + 1,
		TotalRounds:  len(d.rounds),
		Scores:       d.scores,
		WinnerID:     d.winnerID,
		Draw:         d.draw,
		RatingDeltas: d.ratingDeltas,
		Rounds:       rounds,
		StartedAt:    d.startedAt,
	}
	if d.status == domain.DuelCompleted {
		ended := d.endedAt
		view.EndedAt = &ended
	}
	return view
}
