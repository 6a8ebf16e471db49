package memory

import (
	"sync"

	"quiz-duel-service/internal/domain"
)

// TicketPool is an in-memory implementation of app.TicketPool. A single mutex
// makes claim-and-remove atomic, so two concurrent searches can never both
// claim the same ticket.
type TicketPool struct {
	mu       sync.Mutex
	tickets  []domain.WaitingTicket
	byPlayer map[string]struct{}
}

func NewTicketPool() *TicketPool {
	return &TicketPool{byPlayer: make(map[string]struct{})}
}

// ClaimOrEnqueue claims the oldest compatible waiting ticket, or enqueues t
// when none is waiting. Tickets are compatible only on an exact topic match;
// an empty topic matches only other empty topics.
func (p *TicketPool) ClaimOrEnqueue(t domain.WaitingTicket) (domain.WaitingTicket, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byPlayer[t.PlayerID]; ok {
		return domain.WaitingTicket{}, false, domain.ErrAlreadySearching
	}

	if idx, ok := p.oldestCompatibleLocked(t.Topic, t.PlayerID); ok {
		claimed := p.tickets[idx]
		p.removeAtLocked(idx)
		return claimed, true, nil
	}

	p.tickets = append(p.tickets, t)
	p.byPlayer[t.PlayerID] = struct{}{}
	return domain.WaitingTicket{}, false, nil
}

// Restore puts a claimed ticket back with its original enqueue time, so it
// keeps its place in the FIFO order.
func (p *TicketPool) Restore(t domain.WaitingTicket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byPlayer[t.PlayerID]; ok {
		return
	}
	p.tickets = append(p.tickets, t)
	p.byPlayer[t.PlayerID] = struct{}{}
}

// Remove drops the player's ticket if present.
func (p *TicketPool) Remove(playerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.tickets {
		if p.tickets[i].PlayerID == playerID {
			p.removeAtLocked(i)
			return true
		}
	}
	return false
}

// Waiting returns the number of parked tickets.
func (p *TicketPool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tickets)
}

func (p *TicketPool) oldestCompatibleLocked(topic, excludePlayerID string) (int, bool) {
	best := -1
	for i := range p.tickets {
		if p.tickets[i].Topic != topic || p.tickets[i].PlayerID == excludePlayerID {
			continue
		}
		if best == -1 || p.tickets[i].EnqueuedAt.Before(p.tickets[best].EnqueuedAt) {
			best = i
		}
	}
	return best, best != -1
}

func (p *TicketPool) removeAtLocked(idx int) {
	delete(p.byPlayer, p.tickets[idx].PlayerID)
	p.tickets = append(p.tickets[:idx], p.tickets[idx+1:]...)
}
