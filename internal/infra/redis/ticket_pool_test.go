package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"quiz-duel-service/internal/domain"
)

func TestTicketPoolSetsAndClearsMarkers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pool := NewTicketPool(client, time.Minute)

	_, ok, err := pool.ClaimOrEnqueue(domain.WaitingTicket{ID: "t1", PlayerID: "p1", EnqueuedAt: time.Now()})
	if ok || err != nil {
		t.Fatalf("expected enqueue, got ok=%v err=%v", ok, err)
	}
	if !mr.Exists("mm:ticket:p1") {
		t.Fatalf("expected liveness marker for p1")
	}

	claimed, ok, err := pool.ClaimOrEnqueue(domain.WaitingTicket{ID: "t2", PlayerID: "p2", EnqueuedAt: time.Now()})
	if !ok || err != nil || claimed.PlayerID != "p1" {
		t.Fatalf("expected claim of p1, got ok=%v claimed=%+v err=%v", ok, claimed, err)
	}
	if mr.Exists("mm:ticket:p1") {
		t.Fatalf("expected p1 marker cleared on claim")
	}

	pool.Restore(claimed)
	if !mr.Exists("mm:ticket:p1") {
		t.Fatalf("expected p1 marker restored")
	}

	if !pool.Remove("p1") {
		t.Fatalf("expected ticket removed")
	}
	if mr.Exists("mm:ticket:p1") {
		t.Fatalf("expected p1 marker cleared on remove")
	}
}
