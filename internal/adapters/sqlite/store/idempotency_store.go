package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
)

// IdempotencyStore is a SQLite implementation of idempotency.Store.
type IdempotencyStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewIdempotencyStore(db *sql.DB, writer *dbpkg.Worker) *IdempotencyStore {
	return &IdempotencyStore{db: db, writer: writer}
}

func (s *IdempotencyStore) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	var (
		rec       idempotency.Record
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT status_code, content_type, body, created_at_ms
FROM idempotency_keys
WHERE idempotency_key = ? AND subject = ? AND method = ? AND route = ? AND body_hash = ?;
`, string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash).
		Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return idempotency.Record{}, false, nil
	}
	if err != nil {
		return idempotency.Record{}, false, fmt.Errorf("idempotency get: %w", err)
	}
	rec.CreatedAt = fromMillis(createdMs)
	return rec, true, nil
}

func (s *IdempotencyStore) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO idempotency_keys(idempotency_key, subject, method, route, body_hash, status_code, content_type, body, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(idempotency_key, subject, method, route, body_hash) DO UPDATE SET
  status_code = excluded.status_code,
  content_type = excluded.content_type,
  body = excluded.body,
  created_at_ms = excluded.created_at_ms;
`,
			string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash,
			rec.StatusCode, rec.ContentType, body, createdAt.UTC().UnixMilli(),
		)
		return err
	})
}

func (s *IdempotencyStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE created_at_ms < ?;`, cutoff.UTC().UnixMilli())
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
