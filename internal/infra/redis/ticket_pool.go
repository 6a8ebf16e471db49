package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

// TicketPool is a Redis-marked implementation of app.TicketPool.
// Notes:
//   - The authoritative claim-and-remove still happens in the local pool, so
//     the atomicity guarantees are unchanged.
//   - Redis keys mark ticket liveness for dashboards and could be extended to
//     share the pool across instances.
type TicketPool struct {
	client *redis.Client
	ttl    time.Duration
	inner  *memory.TicketPool
}

func NewTicketPool(client *redis.Client, ttl time.Duration) *TicketPool {
	return &TicketPool{
		client: client,
		ttl:    ttl,
		inner:  memory.NewTicketPool(),
	}
}

func (p *TicketPool) ClaimOrEnqueue(t domain.WaitingTicket) (domain.WaitingTicket, bool, error) {
	claimed, ok, err := p.inner.ClaimOrEnqueue(t)
	if err != nil {
		return domain.WaitingTicket{}, false, err
	}
	// best-effort liveness markers
	if ok {
		_ = p.client.Del(context.Background(), p.key(claimed.PlayerID)).Err()
	} else {
		_ = p.client.Set(context.Background(), p.key(t.PlayerID), t.ID, p.ttl).Err()
	}
	return claimed, ok, nil
}

func (p *TicketPool) Restore(t domain.WaitingTicket) {
	p.inner.Restore(t)
	_ = p.client.Set(context.Background(), p.key(t.PlayerID), t.ID, p.ttl).Err()
}

func (p *TicketPool) Remove(playerID string) bool {
	removed := p.inner.Remove(playerID)
	if removed {
		_ = p.client.Del(context.Background(), p.key(playerID)).Err()
	}
	return removed
}

func (p *TicketPool) key(playerID string) string {
	return "mm:ticket:" + playerID
}
