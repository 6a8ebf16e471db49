package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
	"quiz-duel-service/internal/rating"
)

type arenaFixture struct {
	service *app.ArenaService
	broker  *memory.EventBroker
	pool    *memory.TicketPool
	duels   *memory.DuelStore
	players *memory.PlayerStore
	rewards *rewardsRecorder
	archive *archiveRecorder
}

func newArenaFixture(t *testing.T, rounds int) *arenaFixture {
	t.Helper()
	f := &arenaFixture{
		broker:  memory.NewEventBroker(),
		pool:    memory.NewTicketPool(),
		duels:   memory.NewDuelStore(),
		players: memory.NewPlayerStore(),
		rewards: &rewardsRecorder{},
		archive: &archiveRecorder{},
	}
	bank := memory.NewQuestionBank(memory.NewStaticTopicLoader(map[string][]domain.Question{
		"math":    fixedTopic("math", 10),
		"history": fixedTopic("history", 10),
		"":        fixedTopic("any", 10),
	}), 0)
	f.service = app.NewArenaService(app.ArenaConfig{
		Tickets:       f.pool,
		Duels:         f.duels,
		Players:       f.players,
		Questions:     bank,
		Events:        f.broker,
		Rewards:       f.rewards,
		Archiver:      f.archive,
		RoundsPerDuel: rounds,
	})
	return f
}

// fixedTopic builds questions where option "a" is always correct.
func fixedTopic(topic string, n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			ID:     fmt.Sprintf("%s-q%d", topic, i+1),
			Topic:  topic,
			Prompt: "pick a",
			Options: []domain.Option{
				{ID: "a", Text: "right"},
				{ID: "b", Text: "wrong"},
			},
			Answer: "a",
		}
	}
	return questions
}

type rewardsRecorder struct {
	mu    sync.Mutex
	calls int
	last  domain.Duel
}

func (r *rewardsRecorder) DuelCompleted(_ context.Context, duel domain.Duel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = duel
	return nil
}

func (r *rewardsRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type archiveRecorder struct {
	mu      sync.Mutex
	records []domain.Duel
}

func (a *archiveRecorder) Archive(_ context.Context, duel domain.Duel) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, duel)
	return nil
}

func (a *archiveRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

func TestSearchParksThenPairsFIFO(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 5)

	res, err := f.service.Search(ctx, "p1", "math")
	if err != nil || res.Status != app.SearchWaiting {
		t.Fatalf("expected p1 parked, got %+v err=%v", res, err)
	}
	res, err = f.service.Search(ctx, "p2", "math")
	if err != nil || res.Status != app.SearchMatched {
		t.Fatalf("expected p2 matched on insert, got %+v err=%v", res, err)
	}
	if res.Duel.Players != [2]string{"p1", "p2"} {
		t.Fatalf("expected p1 paired with p2, got %v", res.Duel.Players)
	}
	if res.Duel.Status != domain.DuelInProgress || res.Duel.TotalRounds != 5 {
		t.Fatalf("unexpected duel: %+v", res.Duel)
	}

	// Restores (after a failed draw) can leave several same-topic tickets
	// waiting; the next search must claim the oldest one.
	base := time.Now()
	f.pool.Restore(domain.WaitingTicket{ID: "t-p4", PlayerID: "p4", Topic: "math", EnqueuedAt: base.Add(time.Second)})
	f.pool.Restore(domain.WaitingTicket{ID: "t-p3", PlayerID: "p3", Topic: "math", EnqueuedAt: base})

	res, err = f.service.Search(ctx, "p5", "math")
	if err != nil || res.Status != app.SearchMatched {
		t.Fatalf("expected p5 matched, got %+v err=%v", res, err)
	}
	if res.Duel.Players != [2]string{"p3", "p5"} {
		t.Fatalf("expected oldest waiting p3 paired with p5, got %v", res.Duel.Players)
	}
	if f.pool.Waiting() != 1 {
		t.Fatalf("expected p4 still waiting, pool has %d", f.pool.Waiting())
	}
}

func TestSearchTopicsDoNotMix(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 5)

	f.service.Search(ctx, "p1", "math")
	res, err := f.service.Search(ctx, "p2", "history")
	if err != nil || res.Status != app.SearchWaiting {
		t.Fatalf("history search must not pair with math ticket, got %+v err=%v", res, err)
	}
	res, err = f.service.Search(ctx, "p3", "")
	if err != nil || res.Status != app.SearchWaiting {
		t.Fatalf("empty-topic search must not pair with math ticket, got %+v err=%v", res, err)
	}
}

func TestSearchConflicts(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 5)

	f.service.Search(ctx, "p1", "math")
	if _, err := f.service.Search(ctx, "p1", "math"); !errors.Is(err, domain.ErrAlreadySearching) {
		t.Fatalf("expected ErrAlreadySearching, got %v", err)
	}

	f.service.Search(ctx, "p2", "math")
	res, err := f.service.Search(ctx, "p1", "math")
	if !errors.Is(err, domain.ErrAlreadyInMatch) {
		t.Fatalf("expected ErrAlreadyInMatch, got %v", err)
	}
	// The conflict still reports the existing duel so a retrying client can resume.
	if res.Duel == nil || res.Status != app.SearchMatched {
		t.Fatalf("expected existing duel in conflict result, got %+v", res)
	}
}

func TestSearchPublishesMatchFoundToBothPlayers(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 5)

	ch1, cancel1 := f.broker.Subscribe(app.PlayerChannel("p1"))
	defer cancel1()
	ch2, cancel2 := f.broker.Subscribe(app.PlayerChannel("p2"))
	defer cancel2()

	f.service.Search(ctx, "p1", "math")
	f.service.Search(ctx, "p2", "math")

	for name, ch := range map[string]<-chan domain.Event{"p1": ch1, "p2": ch2} {
		event := <-ch
		if event.Name != app.EventMatchFound {
			t.Fatalf("%s: expected matchFound, got %s", name, event.Name)
		}
		view, ok := event.Payload.(domain.DuelView)
		if !ok {
			t.Fatalf("%s: unexpected payload %T", name, event.Payload)
		}
		for _, round := range view.Rounds {
			if round.Question.Options == nil {
				t.Fatalf("expected options in question view")
			}
		}
	}
}

func TestCancelSearch(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 5)

	f.service.Search(ctx, "p1", "math")
	if !f.service.CancelSearch(ctx, "p1") {
		t.Fatalf("expected cancel to remove the ticket")
	}
	if f.service.CancelSearch(ctx, "p1") {
		t.Fatalf("expected second cancel to be a no-op")
	}

	// Ticket consumed by pairing: cancel is a calm no-op and the client keeps
	// the match-found event.
	ch, cancelSub := f.broker.Subscribe(app.PlayerChannel("p2"))
	defer cancelSub()
	f.service.Search(ctx, "p2", "math")
	f.service.Search(ctx, "p3", "math")
	if f.service.CancelSearch(ctx, "p2") {
		t.Fatalf("cancel after pairing should report no ticket")
	}
	if event := <-ch; event.Name != app.EventMatchFound {
		t.Fatalf("expected matchFound to survive the cancel race, got %s", event.Name)
	}
}

// submitBoth plays one round: first side submits (option, elapsed), then second.
func submitBoth(t *testing.T, f *arenaFixture, duelID string, round int, players [2]string, options [2]string, elapsed [2]int64) app.SubmitResult {
	t.Helper()
	if _, err := f.service.SubmitAnswer(context.Background(), duelID, players[0], round, options[0], elapsed[0]); err != nil {
		t.Fatalf("round %d side 1: %v", round, err)
	}
	res, err := f.service.SubmitAnswer(context.Background(), duelID, players[1], round, options[1], elapsed[1])
	if err != nil {
		t.Fatalf("round %d side 2: %v", round, err)
	}
	return res
}

func TestDuelPlayThroughUpdatesRatings(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 5)

	f.service.Search(ctx, "alice", "math")
	res, _ := f.service.Search(ctx, "bob", "math")
	duelID := res.Duel.ID
	players := res.Duel.Players // alice searched first: side 1

	// Alice takes rounds 1-3, bob round 4, round 5 yields nothing.
	submitBoth(t, f, duelID, 1, players, [2]string{"a", "b"}, [2]int64{800, 900})
	submitBoth(t, f, duelID, 2, players, [2]string{"a", "a"}, [2]int64{700, 900})
	submitBoth(t, f, duelID, 3, players, [2]string{"a", "b"}, [2]int64{900, 100})
	submitBoth(t, f, duelID, 4, players, [2]string{"b", "a"}, [2]int64{100, 900})
	final := submitBoth(t, f, duelID, 5, players, [2]string{"b", "b"}, [2]int64{500, 500})

	if !final.Completed || final.Duel == nil {
		t.Fatalf("expected completed duel, got %+v", final)
	}
	if final.Duel.Scores != [2]int{3, 1} {
		t.Fatalf("expected 3-1, got %v", final.Duel.Scores)
	}
	if final.Duel.WinnerID != "alice" || final.Duel.Draw {
		t.Fatalf("expected alice winning, got %+v", final.Duel)
	}
	if final.Duel.RatingDeltas != [2]int{16, -16} {
		t.Fatalf("expected +16/-16 deltas, got %v", final.Duel.RatingDeltas)
	}

	alice, _ := f.players.Get("alice")
	bob, _ := f.players.Get("bob")
	if alice.Rating != 1016 || bob.Rating != 984 {
		t.Fatalf("expected 1016/984, got %d/%d", alice.Rating, bob.Rating)
	}
	if alice.Wins != 1 || bob.Losses != 1 {
		t.Fatalf("expected counters bumped, got %+v %+v", alice, bob)
	}
	if alice.Tier != "Bronze" || bob.Tier != "Bronze" {
		t.Fatalf("unexpected tiers: %s %s", alice.Tier, bob.Tier)
	}

	if f.rewards.count() != 1 {
		t.Fatalf("expected exactly one rewards notification, got %d", f.rewards.count())
	}
	if f.archive.count() != 1 {
		t.Fatalf("expected exactly one archive record, got %d", f.archive.count())
	}
}

func TestEqualTimeRoundDrawsAndAdvances(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 2)

	f.service.Search(ctx, "alice", "")
	res, _ := f.service.Search(ctx, "bob", "")
	duelID := res.Duel.ID
	players := res.Duel.Players

	sealed := submitBoth(t, f, duelID, 1, players, [2]string{"a", "a"}, [2]int64{1500, 1500})
	if !sealed.RoundSealed || sealed.Round == nil {
		t.Fatalf("expected sealed round, got %+v", sealed)
	}
	if !sealed.Round.Draw || sealed.Round.Points != [2]int{0, 0} {
		t.Fatalf("expected drawn round with no points, got %+v", sealed.Round)
	}
	if sealed.NextRound != 2 {
		t.Fatalf("expected advance to round 2, got %d", sealed.NextRound)
	}

	view, err := f.service.GetDuel(ctx, duelID)
	if err != nil || view.CurrentRound != 2 {
		t.Fatalf("expected duel at round 2, got %+v err=%v", view, err)
	}
}

func TestDrawnDuelLeavesRatingsUntouched(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 2)

	f.service.Search(ctx, "alice", "")
	res, _ := f.service.Search(ctx, "bob", "")
	players := res.Duel.Players

	submitBoth(t, f, res.Duel.ID, 1, players, [2]string{"b", "b"}, [2]int64{100, 100})
	final := submitBoth(t, f, res.Duel.ID, 2, players, [2]string{"b", "b"}, [2]int64{100, 100})

	if !final.Completed || !final.Duel.Draw || final.Duel.WinnerID != "" {
		t.Fatalf("expected drawn duel, got %+v", final.Duel)
	}
	alice, _ := f.players.Get("alice")
	bob, _ := f.players.Get("bob")
	if alice.Rating != 1000 || bob.Rating != 1000 {
		t.Fatalf("draw between equals must not move ratings, got %d/%d", alice.Rating, bob.Rating)
	}
	if alice.Draws != 1 || bob.Draws != 1 {
		t.Fatalf("expected draw counters bumped, got %+v %+v", alice, bob)
	}
}

// failingPlayerStore refuses rating updates while keeping player lookups working.
type failingPlayerStore struct {
	*memory.PlayerStore
}

func (s *failingPlayerStore) ApplyResults(_ context.Context, _ [2]string, _ [2]int, _ rating.Outcome) ([2]domain.Player, error) {
	return [2]domain.Player{}, errors.New("ratings unavailable")
}

func TestRatingFailureSurfacesAndMovesNeitherPlayer(t *testing.T) {
	ctx := context.Background()
	players := memory.NewPlayerStore()
	rewards := &rewardsRecorder{}
	bank := memory.NewQuestionBank(memory.NewStaticTopicLoader(map[string][]domain.Question{
		"math": fixedTopic("math", 5),
	}), 0)
	service := app.NewArenaService(app.ArenaConfig{
		Tickets:       memory.NewTicketPool(),
		Duels:         memory.NewDuelStore(),
		Players:       &failingPlayerStore{PlayerStore: players},
		Questions:     bank,
		Events:        memory.NewEventBroker(),
		Rewards:       rewards,
		RoundsPerDuel: 1,
	})

	service.Search(ctx, "alice", "math")
	res, _ := service.Search(ctx, "bob", "math")
	duelID := res.Duel.ID
	sides := res.Duel.Players

	if _, err := service.SubmitAnswer(ctx, duelID, sides[0], 1, "a", 100); err != nil {
		t.Fatalf("side 1: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, duelID, sides[1], 1, "b", 200); err == nil {
		t.Fatalf("expected the sealing submission to surface the rating failure")
	}

	alice, _ := players.Get("alice")
	bob, _ := players.Get("bob")
	if alice.Rating != 1000 || bob.Rating != 1000 {
		t.Fatalf("a failed rating update must move neither player, got %d/%d", alice.Rating, bob.Rating)
	}
	if alice.Wins != 0 || bob.Losses != 0 {
		t.Fatalf("counters must stay untouched, got %+v %+v", alice, bob)
	}

	// The completion itself still stands, without pretending deltas were applied.
	view, err := service.GetDuel(ctx, duelID)
	if err != nil || view.Status != domain.DuelCompleted {
		t.Fatalf("expected completed duel, got %+v err=%v", view, err)
	}
	if view.RatingDeltas != [2]int{0, 0} {
		t.Fatalf("unapplied ratings must not report deltas, got %v", view.RatingDeltas)
	}
	if rewards.count() != 1 {
		t.Fatalf("expected one rewards notification, got %d", rewards.count())
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 2)

	if _, err := f.service.SubmitAnswer(ctx, "ghost", "alice", 1, "a", 100); !errors.Is(err, domain.ErrDuelNotFound) {
		t.Fatalf("expected ErrDuelNotFound, got %v", err)
	}

	f.service.Search(ctx, "alice", "")
	res, _ := f.service.Search(ctx, "bob", "")
	if _, err := f.service.SubmitAnswer(ctx, res.Duel.ID, "mallory", 1, "a", 100); !errors.Is(err, domain.ErrPlayerNotInDuel) {
		t.Fatalf("expected ErrPlayerNotInDuel, got %v", err)
	}
}

func TestConcurrentSubmissionsResolveEachRoundOnce(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 5)

	f.service.Search(ctx, "alice", "math")
	res, _ := f.service.Search(ctx, "bob", "math")
	duelID := res.Duel.ID
	players := res.Duel.Players

	for round := 1; round <= 5; round++ {
		var wg sync.WaitGroup
		var mu sync.Mutex
		sealedCount := 0
		for side := 0; side < 2; side++ {
			wg.Add(1)
			go func(side int) {
				defer wg.Done()
				option := "a"
				if side == 1 {
					option = "b"
				}
				out, err := f.service.SubmitAnswer(ctx, duelID, players[side], round, option, int64(100+side))
				if err != nil {
					t.Errorf("round %d side %d: %v", round, side, err)
					return
				}
				if out.RoundSealed {
					mu.Lock()
					sealedCount++
					mu.Unlock()
				}
			}(side)
		}
		wg.Wait()
		if sealedCount != 1 {
			t.Fatalf("round %d sealed by %d submissions, want exactly 1", round, sealedCount)
		}
	}

	view, err := f.service.GetDuel(ctx, duelID)
	if err != nil {
		t.Fatalf("get duel: %v", err)
	}
	if view.Status != domain.DuelCompleted {
		t.Fatalf("expected completed duel, got %s", view.Status)
	}

	var sum [2]int
	for _, round := range view.Rounds {
		if !round.Sealed {
			t.Fatalf("round %d left unsealed", round.Number)
		}
		sum[0] += round.Points[0]
		sum[1] += round.Points[1]
	}
	if view.Scores != sum {
		t.Fatalf("final scores %v != per-round sum %v (double resolution?)", view.Scores, sum)
	}
	if view.Scores != [2]int{5, 0} {
		t.Fatalf("expected alice sweeping 5-0, got %v", view.Scores)
	}
	if f.rewards.count() != 1 {
		t.Fatalf("duel finalized %d times, want exactly once", f.rewards.count())
	}
}

func TestConcurrentSearchesClaimEachTicketOnce(t *testing.T) {
	ctx := context.Background()
	f := newArenaFixture(t, 5)

	const n = 12
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			playerID := fmt.Sprintf("p%02d", i)
			if _, err := f.service.Search(ctx, playerID, "math"); err != nil {
				t.Errorf("search %s: %v", playerID, err)
			}
		}(i)
	}
	wg.Wait()

	inDuel := make(map[string]string)
	duels := 0
	for i := 0; i < n; i++ {
		playerID := fmt.Sprintf("p%02d", i)
		duel, ok := f.duels.ActiveByPlayer(playerID)
		if !ok {
			continue
		}
		if existing, seen := inDuel[playerID]; seen && existing != duel.ID() {
			t.Fatalf("player %s is in two duels", playerID)
		}
		inDuel[playerID] = duel.ID()
		duels++
	}

	paired := len(inDuel)
	waiting := f.pool.Waiting()
	if paired%2 != 0 {
		t.Fatalf("odd number of paired players: %d", paired)
	}
	if paired+waiting != n {
		t.Fatalf("players lost: %d paired + %d waiting != %d", paired, waiting, n)
	}

	// Every duel must hold two distinct paired players agreeing on its ID.
	byDuel := make(map[string][]string)
	for playerID, duelID := range inDuel {
		byDuel[duelID] = append(byDuel[duelID], playerID)
	}
	for duelID, members := range byDuel {
		if len(members) != 2 {
			t.Fatalf("duel %s has %d members: %v", duelID, len(members), members)
		}
	}
}
