package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
)

// Rows are keyed by the full fingerprint plus the token issuer, so the same
// subject string from two issuers never shares a replay.
const selectReplay = `
	SELECT status_code, content_type, body, created_at
	FROM idempotency_keys
	WHERE idempotency_key = $1 AND subject_iss = $2 AND subject_sub = $3
	  AND method = $4 AND route = $5 AND body_hash = $6
`

const upsertReplay = `
	INSERT INTO idempotency_keys (
		idempotency_key, subject_iss, subject_sub, method, route, body_hash,
		status_code, content_type, body, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (idempotency_key, subject_iss, subject_sub, method, route, body_hash)
	DO UPDATE SET
		status_code  = EXCLUDED.status_code,
		content_type = EXCLUDED.content_type,
		body         = EXCLUDED.body,
		created_at   = EXCLUDED.created_at
`

const deleteReplaysBefore = `DELETE FROM idempotency_keys WHERE created_at < $1`

// Store keeps replayable scan responses in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	issuer string
	now    func() time.Time
}

func NewStore(pool *pgxpool.Pool, jwtIssuer string) *Store {
	return &Store{pool: pool, issuer: jwtIssuer, now: time.Now}
}

func (s *Store) keyArgs(fp idempotency.Fingerprint) []any {
	return []any{string(fp.Key), s.issuer, string(fp.Subject), fp.Method, fp.Route, fp.BodyHash}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	var rec idempotency.Record
	err := s.pool.QueryRow(ctx, selectReplay, s.keyArgs(fp)...).
		Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return idempotency.Record{}, false, nil
	case err != nil:
		return idempotency.Record{}, false, fmt.Errorf("idempotency get: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	// body is NOT NULL; pgx sends a nil slice as NULL.
	if rec.Body == nil {
		rec.Body = []byte{}
	}
	args := append(s.keyArgs(fp), rec.StatusCode, rec.ContentType, rec.Body, rec.CreatedAt.UTC())
	if _, err := s.pool.Exec(ctx, upsertReplay, args...); err != nil {
		return fmt.Errorf("idempotency put: %w", err)
	}
	return nil
}

func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteReplaysBefore, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("idempotency prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
