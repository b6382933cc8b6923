package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dbpkg "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
)

// DailyCodeStore is a SQLite implementation of dailycoderepo.Repository.
type DailyCodeStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDailyCodeStore(db *sql.DB, writer *dbpkg.Worker) *DailyCodeStore {
	return &DailyCodeStore{db: db, writer: writer}
}

func (s *DailyCodeStore) GetByDate(ctx context.Context, date string) (domain.DailyCode, error) {
	var (
		dc                 domain.DailyCode
		validMs, createdMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT code_date, entry_code, exit_code, valid_until_ms, created_at_ms
FROM daily_codes
WHERE code_date = ?;
`, date).Scan(&dc.Date, &dc.EntryCode, &dc.ExitCode, &validMs, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyCode{}, dailycoderepo.ErrNotFound
	}
	if err != nil {
		return domain.DailyCode{}, fmt.Errorf("GetByDate: %w", err)
	}
	dc.ValidUntil = fromMillis(validMs)
	dc.CreatedAt = fromMillis(createdMs)
	return dc, nil
}

func (s *DailyCodeStore) Create(ctx context.Context, dc domain.DailyCode) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO daily_codes(code_date, entry_code, exit_code, valid_until_ms, created_at_ms)
VALUES (?, ?, ?, ?, ?);
`, dc.Date, dc.EntryCode, dc.ExitCode, dc.ValidUntil.UTC().UnixMilli(), dc.CreatedAt.UTC().UnixMilli())
		if dbpkg.IsUniqueViolation(err, "daily_codes.code_date") {
			return dailycoderepo.ErrAlreadyExists
		}
		return err
	})
}
