package membershiprepo

import (
	"context"
	"sort"
	"sync"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
)

// Repo is an in-memory implementation of membershiprepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.MembershipID]domain.Membership
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.MembershipID]domain.Membership)}
}

func (r *Repo) Create(ctx context.Context, m domain.Membership) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; ok {
		return membershiprepo.ErrAlreadyExists
	}
	r.byID[m.ID] = m
	return nil
}

func (r *Repo) Update(ctx context.Context, m domain.Membership) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[m.ID]
	if !ok {
		return membershiprepo.ErrNotFound
	}
	// Owner and creation time are immutable.
	m.MemberID = existing.MemberID
	m.CreatedAt = existing.CreatedAt
	r.byID[m.ID] = m
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return domain.Membership{}, membershiprepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.Membership, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Membership, 0)
	for _, m := range r.byID {
		if m.MemberID == memberID {
			out = append(out, m)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *Repo) ListByMembers(ctx context.Context, memberIDs []domain.MemberID) (map[domain.MemberID][]domain.Membership, error) {
	_ = ctx
	want := make(map[domain.MemberID]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		want[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.MemberID][]domain.Membership)
	for _, m := range r.byID {
		if _, ok := want[m.MemberID]; ok {
			out[m.MemberID] = append(out[m.MemberID], m)
		}
	}
	for id := range out {
		sortNewestFirst(out[id])
	}
	return out, nil
}

func sortNewestFirst(ms []domain.Membership) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].EndDate.Equal(ms[j].EndDate) {
			return ms[i].EndDate.After(ms[j].EndDate)
		}
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}
