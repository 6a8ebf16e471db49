package domain

import "time"

// Side identifies one of the two seats in a duel. Seats are assigned when the
// duel is created and stay fixed for its lifetime.
type Side int

const (
	SideFirst Side = iota
	SideSecond
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideFirst {
		return SideSecond
	}
	return SideFirst
}

// DuelStatus tracks the lifecycle of a duel. A lone searcher is represented by
// a WaitingTicket, not a duel, so a duel is in progress from the moment it exists.
type DuelStatus string

const (
	DuelInProgress DuelStatus = "in_progress"
	DuelCompleted  DuelStatus = "completed"
)

// Player carries the rating state the duel subsystem owns. Account data lives
// elsewhere in the platform.
type Player struct {
	ID     string `json:"id"`
	Rating int    `json:"rating"`
	Tier   string `json:"tier"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
}

// WaitingTicket represents a player searching for an opponent.
type WaitingTicket struct {
	ID         string
	PlayerID   string
	Topic      string
	EnqueuedAt time.Time
}

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is an immutable question payload including its answer key.
type Question struct {
	ID      string   `json:"id"`
	Topic   string   `json:"topic,omitempty"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
	Answer  string   `json:"answer"` // option ID of the correct choice
}

// HasOption reports whether optionID is one of the question's choices.
func (q Question) HasOption(optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// Answer records one side's submission for a round.
type Answer struct {
	OptionID    string    `json:"optionId"`
	ElapsedMs   int64     `json:"elapsedMs"`
	Correct     bool      `json:"correct"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Round is one question exchange inside a duel. Answers are indexed by Side
// and are nil until that side submits. A round is sealed once both sides
// have answered; sealed rounds never change.
type Round struct {
	Number   int        `json:"number"`
	Question Question   `json:"question"`
	Answers  [2]*Answer `json:"answers"`
	Points   [2]int     `json:"points"`
	WinnerID string     `json:"winnerId,omitempty"`
	Draw     bool       `json:"draw"`
	SealedAt *time.Time `json:"sealedAt,omitempty"`
}

// Sealed reports whether both sides have answered and the round is resolved.
func (r Round) Sealed() bool { return r.SealedAt != nil }

// Duel is the full record of a match, as persisted to the archive. Player IDs
// are indexed by Side.
type Duel struct {
	ID           string     `json:"id"`
	Topic        string     `json:"topic,omitempty"`
	Players      [2]string  `json:"players"`
	Rounds       []Round    `json:"rounds"`
	CurrentRound int        `json:"currentRound"` // 1-based
	Scores       [2]int     `json:"scores"`
	Status       DuelStatus `json:"status"`
	WinnerID     string     `json:"winnerId,omitempty"`
	Draw         bool       `json:"draw"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	RatingDeltas [2]int     `json:"ratingDeltas"`
}

// QuestionView is a question stripped of its answer key, safe to send to clients.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// RoundView is the client-facing snapshot of a round. Per-side results are
// only populated once the round is sealed.
type RoundView struct {
	Number   int          `json:"number"`
	Question QuestionView `json:"question"`
	Answered [2]bool      `json:"answered"`
	Points   [2]int       `json:"points"`
	WinnerID string       `json:"winnerId,omitempty"`
	Draw     bool         `json:"draw"`
	Sealed   bool         `json:"sealed"`
}

// DuelView is the client-facing snapshot of a duel.
type DuelView struct {
	ID           string      `json:"id"`
	Topic        string      `json:"topic,omitempty"`
	Players      [2]string   `json:"players"`
	Status       DuelStatus  `json:"status"`
	CurrentRound int         `json:"currentRound"`
	TotalRounds  int         `json:"totalRounds"`
	Scores       [2]int      `json:"scores"`
	WinnerID     string      `json:"winnerId,omitempty"`
	Draw         bool        `json:"draw"`
	RatingDeltas [2]int      `json:"ratingDeltas"`
	Rounds       []RoundView `json:"rounds"`
	StartedAt    time.Time   `json:"startedAt"`
	EndedAt      *time.Time  `json:"endedAt,omitempty"`
}

// View converts a question to its client-safe form.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Prompt: q.Prompt, Options: q.Options}
}

// View converts a round to its client-safe form.
func (r Round) View() RoundView {
	view := RoundView{
		Number:   r.Number,
		Question: r.Question.View(),
		Sealed:   r.Sealed(),
	}
	for side := range r.Answers {
		view.Answered[side] = r.Answers[side] != nil
	}
	if r.Sealed() {
		view.Points = r.Points
		view.WinnerID = r.WinnerID
		view.Draw = r.Draw
	}
	return view
}

// Event is a state-change announcement published to connected clients.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}
