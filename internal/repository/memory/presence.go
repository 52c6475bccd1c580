package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat_engine/internal/domain"
)

type presenceEntry struct {
	status    string
	expiresAt time.Time
}

// Presence: реализация repository.PresenceRepository в памяти.
type Presence struct {
	mu       sync.Mutex
	now      func() time.Time
	statuses map[domain.Actor]presenceEntry
	lastSeen map[domain.Actor]time.Time
	typing   map[int64]map[domain.Actor]time.Time
}

func NewPresence(now func() time.Time) *Presence {
	if now == nil {
		now = time.Now
	}
	return &Presence{
		now:      now,
		statuses: make(map[domain.Actor]presenceEntry),
		lastSeen: make(map[domain.Actor]time.Time),
		typing:   make(map[int64]map[domain.Actor]time.Time),
	}
}

func (p *Presence) SetStatus(ctx context.Context, actor domain.Actor, status string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == domain.PresenceOffline {
		delete(p.statuses, actor)
		return nil
	}
	p.statuses[actor] = presenceEntry{status: status, expiresAt: p.now().Add(ttl)}
	return nil
}

func (p *Presence) GetStatus(ctx context.Context, actor domain.Actor) (*domain.Presence, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	presence := &domain.Presence{Actor: actor, Status: domain.PresenceOffline}
	if entry, ok := p.statuses[actor]; ok && p.now().Before(entry.expiresAt) {
		presence.Status = entry.status
	}
	if seen, ok := p.lastSeen[actor]; ok {
		presence.LastSeen = &seen
	}
	return presence, nil
}

func (p *Presence) TouchLastSeen(ctx context.Context, actor domain.Actor, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen[actor] = at
	return nil
}

func (p *Presence) StartTyping(ctx context.Context, threadID int64, actor domain.Actor, until time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.typing[threadID] == nil {
		p.typing[threadID] = make(map[domain.Actor]time.Time)
	}
	p.typing[threadID][actor] = until
	return nil
}

func (p *Presence) StopTyping(ctx context.Context, threadID int64, actor domain.Actor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.typing[threadID], actor)
	return nil
}

func (p *Presence) Typing(ctx context.Context, threadID int64, now time.Time) ([]domain.Actor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	actors := make([]domain.Actor, 0)
	for actor, until := range p.typing[threadID] {
		if now.Before(until) {
			actors = append(actors, actor)
		} else {
			delete(p.typing[threadID], actor)
		}
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i].String() < actors[j].String() })
	return actors, nil
}
