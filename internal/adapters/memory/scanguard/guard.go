package scanguard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
)

type lock struct {
	token   string
	expires time.Time
}

// Guard is an in-process scanguard.Guard. Locks expire after ttl so a crashed
// scan cannot block a member forever.
// It is safe for concurrent use.
type Guard struct {
	clock clock.Clock
	ttl   time.Duration

	mu    sync.Mutex
	locks map[domain.MemberID]lock
}

func NewGuard(c clock.Clock, ttl time.Duration) *Guard {
	return &Guard{
		clock: c,
		ttl:   ttl,
		locks: make(map[domain.MemberID]lock),
	}
}

func (g *Guard) Acquire(ctx context.Context, memberID domain.MemberID) (string, bool, error) {
	_ = ctx
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.locks[memberID]; ok && now.Before(l.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	g.locks[memberID] = lock{token: token, expires: now.Add(g.ttl)}
	return token, true, nil
}

func (g *Guard) Release(ctx context.Context, memberID domain.MemberID, token string) error {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.locks[memberID]; ok && l.token == token {
		delete(g.locks, memberID)
	}
	return nil
}
