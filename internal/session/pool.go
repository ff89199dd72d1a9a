package session

import (
	"sync"
	"time"

	"github.com/xxxsen/ytqa/internal/model"
)

// DefaultSessionID keeps continuity for unauthenticated single-user use.
const DefaultSessionID = "default"

type key struct {
	sessionID string
	videoID   string
}

type memory struct {
	turns      []model.Turn
	lastActive time.Time
}

// Pool keeps a bounded FIFO turn history per (session, video) pair.
// Oldest turns are dropped once a pair reaches capacity; pairs themselves
// live until explicit deletion or idle cleanup.
type Pool struct {
	mu       sync.Mutex
	capacity int
	memories map[key]*memory
	now      func() time.Time
}

func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = 10
	}
	return &Pool{
		capacity: capacity,
		memories: make(map[key]*memory),
		now:      time.Now,
	}
}

func normalizeSessionID(sessionID string) string {
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}

func (p *Pool) Append(sessionID, videoID, question, answer string) {
	k := key{sessionID: normalizeSessionID(sessionID), videoID: videoID}
	p.mu.Lock()
	defer p.mu.Unlock()
	mem := p.memories[k]
	if mem == nil {
		mem = &memory{}
		p.memories[k] = mem
	}
	mem.turns = append(mem.turns, model.Turn{
		Question: question,
		Answer:   answer,
		Ctime:    p.now().UnixMilli(),
	})
	if len(mem.turns) > p.capacity {
		mem.turns = mem.turns[len(mem.turns)-p.capacity:]
	}
	mem.lastActive = p.now()
}

// History returns the pair's turns oldest first.
func (p *Pool) History(sessionID, videoID string) []model.Turn {
	k := key{sessionID: normalizeSessionID(sessionID), videoID: videoID}
	p.mu.Lock()
	defer p.mu.Unlock()
	mem := p.memories[k]
	if mem == nil {
		return nil
	}
	mem.lastActive = p.now()
	out := make([]model.Turn, len(mem.turns))
	copy(out, mem.turns)
	return out
}

// DeleteSession drops every video history belonging to the session.
func (p *Pool) DeleteSession(sessionID string) int {
	sessionID = normalizeSessionID(sessionID)
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for k := range p.memories {
		if k.sessionID == sessionID {
			delete(p.memories, k)
			removed++
		}
	}
	return removed
}

// CleanupIdle evicts pairs that have not been touched within ttl.
func (p *Pool) CleanupIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := p.now().Add(-ttl)
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for k, mem := range p.memories {
		if mem.lastActive.Before(cutoff) {
			delete(p.memories, k)
			removed++
		}
	}
	return removed
}

func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.memories)
}
