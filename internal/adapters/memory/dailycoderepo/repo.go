package dailycoderepo

import (
	"context"
	"sync"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
)

// Repo is an in-memory implementation of dailycoderepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu     sync.RWMutex
	byDate map[string]domain.DailyCode
}

func NewRepo() *Repo {
	return &Repo{byDate: make(map[string]domain.DailyCode)}
}

func (r *Repo) GetByDate(ctx context.Context, date string) (domain.DailyCode, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	dc, ok := r.byDate[date]
	if !ok {
		return domain.DailyCode{}, dailycoderepo.ErrNotFound
	}
	return dc, nil
}

func (r *Repo) Create(ctx context.Context, dc domain.DailyCode) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byDate[dc.Date]; ok {
		return dailycoderepo.ErrAlreadyExists
	}
	r.byDate[dc.Date] = dc
	return nil
}
