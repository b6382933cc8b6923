package accesslog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
)

// Repo is an in-memory implementation of accesslog.Repository.
// Entries are kept in append order; the presence index maps members to their latest entry.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	entries []domain.AccessLogEntry
	latest  map[domain.MemberID]domain.AccessLogEntry
}

func NewRepo() *Repo {
	return &Repo{latest: make(map[domain.MemberID]domain.AccessLogEntry)}
}

func (r *Repo) Append(ctx context.Context, e domain.AccessLogEntry, expected domain.Presence) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var cur *domain.AccessLogEntry
	if l, ok := r.latest[e.MemberID]; ok {
		cur = &l
	}
	if domain.PresenceOf(cur) != expected {
		return accesslog.ErrPresenceConflict
	}

	r.entries = append(r.entries, e)
	r.latest[e.MemberID] = e
	return nil
}

func (r *Repo) Latest(ctx context.Context, memberID domain.MemberID) (domain.AccessLogEntry, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.latest[memberID]
	if !ok {
		return domain.AccessLogEntry{}, accesslog.ErrNotFound
	}
	return e, nil
}

func (r *Repo) ListInside(ctx context.Context) ([]domain.AccessLogEntry, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AccessLogEntry, 0)
	for _, e := range r.latest {
		if e.Action == domain.ActionEntry {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *Repo) ListBetween(ctx context.Context, from, to time.Time) ([]domain.AccessLogEntry, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AccessLogEntry, 0)
	for _, e := range r.entries {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]domain.AccessLogEntry, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AccessLogEntry, len(r.entries))
	copy(out, r.entries)
	sortNewestFirst(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortNewestFirst orders by timestamp descending. Equal timestamps keep reverse append order.
func sortNewestFirst(es []domain.AccessLogEntry) {
	for i, j := 0, len(es)-1; i < j; i, j = i+1, j-1 {
		es[i], es[j] = es[j], es[i]
	}
	sort.SliceStable(es, func(i, j int) bool {
		return es[i].Timestamp.After(es[j].Timestamp)
	})
}
