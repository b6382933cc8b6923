package dailycoderepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
)

// Repo is a Postgres implementation of dailycoderepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) GetByDate(ctx context.Context, date string) (domain.DailyCode, error) {
	if r.pool == nil {
		return domain.DailyCode{}, errors.New("nil postgres pool")
	}
	var dc domain.DailyCode
	err := r.pool.QueryRow(ctx, `
		SELECT code_date, entry_code, exit_code, valid_until, created_at
		FROM daily_codes
		WHERE code_date = $1
	`, date).Scan(&dc.Date, &dc.EntryCode, &dc.ExitCode, &dc.ValidUntil, &dc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DailyCode{}, dailycoderepo.ErrNotFound
		}
		return domain.DailyCode{}, err
	}
	dc.ValidUntil = dc.ValidUntil.UTC()
	dc.CreatedAt = dc.CreatedAt.UTC()
	return dc, nil
}

func (r *Repo) Create(ctx context.Context, dc domain.DailyCode) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO daily_codes (code_date, entry_code, exit_code, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, dc.Date, dc.EntryCode, dc.ExitCode, dc.ValidUntil.UTC(), dc.CreatedAt.UTC())
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return dailycoderepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}
