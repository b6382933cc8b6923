package dailycodes

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	clockport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
)

// Registry issues and looks up the entry/exit code pair of the current calendar day.
type Registry struct {
	repo   dailycoderepo.Repository
	clk    clockport.Clock
	cal    domain.Calendar
	logger *zap.Logger
}

func NewRegistry(repo dailycoderepo.Repository, clk clockport.Clock, cal domain.Calendar, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{repo: repo, clk: clk, cal: cal, logger: logger}
}

// Generate returns today's code pair, creating it on first call of the day.
// Subsequent calls return the stored pair unchanged.
func (r *Registry) Generate(ctx context.Context) (domain.DailyCode, error) {
	now := r.clk.Now()
	date := r.cal.DateKey(now)

	existing, err := r.repo.GetByDate(ctx, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, dailycoderepo.ErrNotFound) {
		return domain.DailyCode{}, fmt.Errorf("load daily code %s: %w", date, err)
	}

	dc := domain.NewDailyCode(r.cal, now)
	if err := r.repo.Create(ctx, dc); err != nil {
		if errors.Is(err, dailycoderepo.ErrAlreadyExists) {
			// Lost a race with a concurrent Generate; the stored pair wins.
			return r.repo.GetByDate(ctx, date)
		}
		return domain.DailyCode{}, fmt.Errorf("store daily code %s: %w", date, err)
	}
	r.logger.Info("daily codes generated", zap.String("date", date), zap.Time("valid_until", dc.ValidUntil))
	return dc, nil
}

// Today returns today's code pair. The boolean is false when none was generated yet.
func (r *Registry) Today(ctx context.Context) (domain.DailyCode, bool, error) {
	date := r.cal.DateKey(r.clk.Now())
	dc, err := r.repo.GetByDate(ctx, date)
	if err != nil {
		if errors.Is(err, dailycoderepo.ErrNotFound) {
			return domain.DailyCode{}, false, nil
		}
		return domain.DailyCode{}, false, fmt.Errorf("load daily code %s: %w", date, err)
	}
	return dc, true, nil
}
