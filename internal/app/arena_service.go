package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/rating"
)

// DefaultRoundsPerDuel is the number of questions drawn for a match.
const DefaultRoundsPerDuel = 5

// Event names published to client channels.
const (
	EventMatchFound    = "matchFound"
	EventRoundResult   = "roundResult"
	EventDuelCompleted = "duelCompleted"
)

// PlayerChannel is the channel a player listens on while searching.
func PlayerChannel(playerID string) string { return "duel:player:" + playerID }

// DuelChannel is the channel both participants of a duel listen on.
func DuelChannel(duelID string) string { return "duel:match:" + duelID }

// TicketPool holds waiting tickets and hands them out with atomic
// claim-and-remove semantics (in-memory, Redis-marked, etc).
type TicketPool interface {
	// ClaimOrEnqueue atomically claims the oldest waiting ticket whose topic
	// matches t's, or enqueues t when none is compatible. Returns
	// domain.ErrAlreadySearching when t's player already holds a ticket.
	ClaimOrEnqueue(t domain.WaitingTicket) (domain.WaitingTicket, bool, error)
	// Restore puts a claimed ticket back, keeping its original enqueue time.
	Restore(t domain.WaitingTicket)
	// Remove drops the player's ticket if present. No-op when absent.
	Remove(playerID string) bool
}

// DuelRepository tracks live duels and which players are in one.
type DuelRepository interface {
	Add(d *Duel)
	Get(id string) (*Duel, bool)
	ActiveByPlayer(playerID string) (*Duel, bool)
	// MarkCompleted releases the players from the active index. The duel
	// itself stays retrievable until archival.
	MarkCompleted(d *Duel)
}

// PlayerRepository reads and mutates the rating state the duel subsystem owns.
type PlayerRepository interface {
	GetOrCreate(ctx context.Context, playerID string) (domain.Player, error)
	// ApplyResults adds both deltas (clamped at zero), recomputes the tiers,
	// and bumps the win/loss/draw counters, as one atomic update: either both
	// players move or neither does. The second side's outcome is the inverse
	// of outcomeFirst.
	ApplyResults(ctx context.Context, playerIDs [2]string, deltas [2]int, outcomeFirst rating.Outcome) ([2]domain.Player, error)
}

// QuestionBank supplies immutable question payloads for duel creation.
type QuestionBank interface {
	Draw(ctx context.Context, topic string, count int) ([]domain.Question, error)
}

// EventPublisher announces state changes to connected clients. Publication is
// fire-and-forget: a failure never rolls back the state change it announces.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event domain.Event) error
}

// RewardsNotifier lets external systems (XP, achievements, missions) react to
// a completed duel. Best-effort only.
type RewardsNotifier interface {
	DuelCompleted(ctx context.Context, duel domain.Duel) error
}

// DuelArchiver persists completed duel records.
type DuelArchiver interface {
	Archive(ctx context.Context, duel domain.Duel) error
}

// SearchStatus tells a caller whether Search paired them or parked them.
type SearchStatus string

const (
	SearchWaiting SearchStatus = "searching"
	SearchMatched SearchStatus = "matched"
)

// SearchResult is the outcome of a Search call.
type SearchResult struct {
	Status   SearchStatus     `json:"status"`
	TicketID string           `json:"ticketId,omitempty"`
	Duel     *domain.DuelView `json:"duel,omitempty"`
}

// SubmitResult is the outcome of a SubmitAnswer call.
type SubmitResult struct {
	DuelID      string            `json:"duelId"`
	RoundNumber int               `json:"roundNumber"`
	Correct     bool              `json:"correct"`
	RoundSealed bool              `json:"roundSealed"`
	Round       *domain.RoundView `json:"round,omitempty"`
	NextRound   int               `json:"nextRound,omitempty"`
	Completed   bool              `json:"completed"`
	Duel        *domain.DuelView  `json:"duel,omitempty"`
}

// RoundResultPayload is published on the duel channel when a round seals.
type RoundResultPayload struct {
	DuelID    string           `json:"duelId"`
	Round     domain.RoundView `json:"round"`
	Scores    [2]int           `json:"scores"`
	NextRound int              `json:"nextRound,omitempty"`
}

// ArenaConfig wires the collaborators into an ArenaService. Archiver and
// Rewards may be nil; everything else is required.
type ArenaConfig struct {
	Tickets       TicketPool
	Duels         DuelRepository
	Players       PlayerRepository
	Questions     QuestionBank
	Events        EventPublisher
	Rewards       RewardsNotifier
	Archiver      DuelArchiver
	KFactor       int
	RoundsPerDuel int
}

// ArenaService orchestrates matchmaking, duel play, and rating updates around
// the pure core. It is the surface a client-facing layer calls.
type ArenaService struct {
	tickets   TicketPool
	duels     DuelRepository
	players   PlayerRepository
	questions QuestionBank
	events    EventPublisher
	rewards   RewardsNotifier
	archiver  DuelArchiver
	elo       *rating.Engine
	rounds    int
	now       func() time.Time
}

func NewArenaService(cfg ArenaConfig) *ArenaService {
	rounds := cfg.RoundsPerDuel
	if rounds <= 0 {
		rounds = DefaultRoundsPerDuel
	}
	return &ArenaService{
		tickets:   cfg.Tickets,
		duels:     cfg.Duels,
		players:   cfg.Players,
		questions: cfg.Questions,
		events:    cfg.Events,
		rewards:   cfg.Rewards,
		archiver:  cfg.Archiver,
		elo:       rating.NewEngine(cfg.KFactor),
		rounds:    rounds,
		now:       time.Now,
	}
}

// Search pairs the player with the oldest compatible waiting ticket, or parks
// them in the pool. Topic matching is exact; an empty topic only pairs with
// other empty-topic searches.
func (s *ArenaService) Search(ctx context.Context, playerID, topic string) (SearchResult, error) {
	if active, ok := s.duels.ActiveByPlayer(playerID); ok {
		view := active.View()
		return SearchResult{Status: SearchMatched, Duel: &view}, domain.ErrAlreadyInMatch
	}

	if _, err := s.players.GetOrCreate(ctx, playerID); err != nil {
		return SearchResult{}, fmt.Errorf("load player %s: %w", playerID, err)
	}

	ticket := domain.WaitingTicket{
		ID:         uuid.NewString(),
		PlayerID:   playerID,
		Topic:      topic,
		EnqueuedAt: s.now(),
	}

	for {
		claimed, ok, err := s.tickets.ClaimOrEnqueue(ticket)
		if err != nil {
			return SearchResult{}, err
		}
		if !ok {
			return SearchResult{Status: SearchWaiting, TicketID: ticket.ID}, nil
		}

		// A racing pairing may have already put the claimed player into a
		// duel; drop the stale ticket and retry against the next oldest.
		if _, busy := s.duels.ActiveByPlayer(claimed.PlayerID); busy {
			continue
		}

		questions, err := s.questions.Draw(ctx, topic, s.rounds)
		if err != nil {
			s.tickets.Restore(claimed)
			return SearchResult{}, fmt.Errorf("draw questions: %w", err)
		}

		duel := NewDuelWithClock(uuid.NewString(), topic, [2]string{claimed.PlayerID, playerID}, questions, s.now)
		s.duels.Add(duel)

		view := duel.View()
		s.publish(ctx, PlayerChannel(claimed.PlayerID), domain.Event{Name: EventMatchFound, Payload: view})
		s.publish(ctx, PlayerChannel(playerID), domain.Event{Name: EventMatchFound, Payload: view})
		return SearchResult{Status: SearchMatched, Duel: &view}, nil
	}
}

// CancelSearch drops the player's waiting ticket. Returns false, without an
// error, when the ticket was already consumed by a pairing or never existed;
// the client will receive the match-found event in the former case.
func (s *ArenaService) CancelSearch(_ context.Context, playerID string) bool {
	return s.tickets.Remove(playerID)
}

// SubmitAnswer records one player's answer for the given round of a duel.
// When it completes the round, the round is resolved and the duel either
// advances or finalizes; finalization updates both ratings, announces the
// result, and notifies the rewards collaborator.
func (s *ArenaService) SubmitAnswer(ctx context.Context, duelID, playerID string, roundNumber int, optionID string, elapsedMs int64) (SubmitResult, error) {
	duel, ok := s.duels.Get(duelID)
	if !ok {
		return SubmitResult{}, domain.ErrDuelNotFound
	}
	side, ok := duel.SideOf(playerID)
	if !ok {
		return SubmitResult{}, domain.ErrPlayerNotInDuel
	}

	outcome, err := duel.submit(side, roundNumber, optionID, elapsedMs)
	if err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{
		DuelID:      duelID,
		RoundNumber: outcome.roundNumber,
		Correct:     outcome.correct,
		NextRound:   outcome.nextRound,
	}

	if outcome.sealed {
		roundView := outcome.round.View()
		result.RoundSealed = true
		result.Round = &roundView

		view := duel.View()
		s.publish(ctx, DuelChannel(duelID), domain.Event{Name: EventRoundResult, Payload: RoundResultPayload{
			DuelID:    duelID,
			Round:     roundView,
			Scores:    view.Scores,
			NextRound: outcome.nextRound,
		}})
	}

	if outcome.finished {
		if err := s.finalize(ctx, duel); err != nil {
			return SubmitResult{}, fmt.Errorf("duel %s: %w", duelID, err)
		}
		view := duel.View()
		result.Completed = true
		result.Duel = &view
	}
	return result, nil
}

// ActiveDuel returns the player's non-terminal duel, if any. Transports use
// it to resume a session after a reconnect.
func (s *ArenaService) ActiveDuel(_ context.Context, playerID string) (domain.DuelView, bool) {
	duel, ok := s.duels.ActiveByPlayer(playerID)
	if !ok {
		return domain.DuelView{}, false
	}
	return duel.View(), true
}

// GetDuel returns the client-safe snapshot of a duel.
func (s *ArenaService) GetDuel(_ context.Context, duelID string) (domain.DuelView, error) {
	duel, ok := s.duels.Get(duelID)
	if !ok {
		return domain.DuelView{}, domain.ErrDuelNotFound
	}
	return duel.View(), nil
}

// finalize applies the rating change for a freshly completed duel and fans
// out the completion. It runs exactly once per duel: only the submission that
// sealed the last round observes the finished flag. A rating-persistence
// failure is returned to the caller; the completion itself still stands and
// is announced, since both deltas are applied in one atomic repository call
// that leaves ratings untouched on error.
func (s *ArenaService) finalize(ctx context.Context, duel *Duel) error {
	record := duel.Record()

	var ratingErr error
	first, errFirst := s.players.GetOrCreate(ctx, record.Players[domain.SideFirst])
	second, errSecond := s.players.GetOrCreate(ctx, record.Players[domain.SideSecond])
	if errFirst != nil || errSecond != nil {
		ratingErr = fmt.Errorf("loading players for rating update: %v %v", errFirst, errSecond)
	} else {
		outcomeFirst := rating.Draw
		switch record.WinnerID {
		case first.ID:
			outcomeFirst = rating.Win
		case second.ID:
			outcomeFirst = rating.Loss
		}

		deltaFirst, deltaSecond := s.elo.Change(first.Rating, second.Rating, outcomeFirst)
		if _, err := s.players.ApplyResults(ctx, record.Players, [2]int{deltaFirst, deltaSecond}, outcomeFirst); err != nil {
			ratingErr = fmt.Errorf("applying ratings: %w", err)
		} else {
			duel.setRatingDeltas([2]int{deltaFirst, deltaSecond})
		}
	}
	if ratingErr != nil {
		log.Printf("duel %s: %v", record.ID, ratingErr)
	}

	s.duels.MarkCompleted(duel)
	record = duel.Record()

	s.publish(ctx, DuelChannel(duel.ID()), domain.Event{Name: EventDuelCompleted, Payload: duel.View()})

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, record); err != nil {
			log.Printf("duel %s: archive failed: %v", record.ID, err)
		}
	}
	if s.rewards != nil {
		if err := s.rewards.DuelCompleted(ctx, record); err != nil {
			log.Printf("duel %s: rewards notification failed: %v", record.ID, err)
		}
	}
	return ratingErr
}

// publish is fire-and-forget: failures are logged, never surfaced.
func (s *ArenaService) publish(ctx context.Context, channel string, event domain.Event) {
	if err := s.events.Publish(ctx, channel, event); err != nil {
		log.Printf("publish %s to %s failed: %v", event.Name, channel, err)
	}
}
