package dailycodecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
)

const keyPrefix = "gym:daily_code:"

// Repo is a read-through Redis cache in front of another dailycoderepo.Repository.
// Entries expire at the code's ValidUntil. Redis failures fall back to the wrapped repository.
type Repo struct {
	next   dailycoderepo.Repository
	rdb    goredis.UniversalClient
	clock  clock.Clock
	logger *zap.Logger
}

func NewRepo(next dailycoderepo.Repository, rdb goredis.UniversalClient, c clock.Clock, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{next: next, rdb: rdb, clock: c, logger: logger}
}

type cached struct {
	Date       string    `json:"date"`
	EntryCode  string    `json:"entryCode"`
	ExitCode   string    `json:"exitCode"`
	ValidUntil time.Time `json:"validUntil"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (r *Repo) GetByDate(ctx context.Context, date string) (domain.DailyCode, error) {
	raw, err := r.rdb.Get(ctx, keyPrefix+date).Bytes()
	switch {
	case err == nil:
		var c cached
		if jerr := json.Unmarshal(raw, &c); jerr == nil {
			return domain.DailyCode(c), nil
		}
		r.logger.Warn("daily code cache entry undecodable", zap.String("date", date))
	case !errors.Is(err, goredis.Nil):
		r.logger.Warn("daily code cache read failed", zap.String("date", date), zap.Error(err))
	}

	dc, err := r.next.GetByDate(ctx, date)
	if err != nil {
		return domain.DailyCode{}, err
	}
	r.store(ctx, dc)
	return dc, nil
}

func (r *Repo) Create(ctx context.Context, dc domain.DailyCode) error {
	if err := r.next.Create(ctx, dc); err != nil {
		return err
	}
	r.store(ctx, dc)
	return nil
}

func (r *Repo) store(ctx context.Context, dc domain.DailyCode) {
	ttl := dc.ValidUntil.Sub(r.clock.Now())
	if ttl <= 0 {
		return
	}
	b, err := json.Marshal(cached(dc))
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, keyPrefix+dc.Date, b, ttl).Err(); err != nil {
		r.logger.Warn("daily code cache write failed", zap.String("date", dc.Date), zap.Error(err))
	}
}
