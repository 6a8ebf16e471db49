package domain

import "errors"

var (
	// ErrDuelNotFound is returned when a duel ID is unknown.
	ErrDuelNotFound = errors.New("duel not found")
	// ErrPlayerNotInDuel is returned when a player submits to a duel they are not part of.
	ErrPlayerNotInDuel = errors.New("player not in duel")
	// ErrDuelNotInProgress rejects submissions to a completed duel.
	ErrDuelNotInProgress = errors.New("duel not in progress")
	// ErrAlreadyAnswered rejects a second answer from the same side for the active round.
	ErrAlreadyAnswered = errors.New("side already answered this round")
	// ErrRoundClosed rejects submissions targeting a round that has already been sealed.
	ErrRoundClosed = errors.New("round already closed")
	// ErrRoundNotActive rejects submissions targeting a round that has not opened yet.
	ErrRoundNotActive = errors.New("round not active")
	// ErrAlreadySearching is returned when a player with a live ticket searches again.
	ErrAlreadySearching = errors.New("player already searching")
	// ErrAlreadyInMatch is returned when a player in a non-terminal duel searches.
	ErrAlreadyInMatch = errors.New("player already in a match")
	// ErrOptionNotFound indicates a submitted option ID is not one of the question's choices.
	ErrOptionNotFound = errors.New("option not found")
	// ErrNoQuestions indicates the question bank could not supply enough questions for a topic.
	ErrNoQuestions = errors.New("not enough questions for topic")
	// ErrPlayerNotFound is returned when a player record cannot be loaded.
	ErrPlayerNotFound = errors.New("player not found")
)

// IsConflict reports whether err is one of the expected-race rejections that
// callers should treat as "someone already acted" rather than a failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyAnswered) ||
		errors.Is(err, ErrRoundClosed) ||
		errors.Is(err, ErrDuelNotInProgress) ||
		errors.Is(err, ErrAlreadySearching) ||
		errors.Is(err, ErrAlreadyInMatch)
}
