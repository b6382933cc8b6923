package accesslog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
)

const selectEntry = `
	SELECT
		l.external_id,
		m.external_id,
		l.action,
		l.qr_code_scanned,
		l.location,
		l.occurred_at
	FROM access_logs l
	JOIN members m ON m.id = l.member_id
`

const orderNewestFirst = ` ORDER BY l.occurred_at DESC, l.id DESC`

// Repo is a Postgres implementation of accesslog.Repository.
// Presence lives in member_presence and is updated in the same transaction as each insert.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Append(ctx context.Context, e domain.AccessLogEntry, expected domain.Presence) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(e.ID))
	if err != nil {
		return fmt.Errorf("invalid access log id: %w", err)
	}
	memberID, err := uuid.Parse(string(e.MemberID))
	if err != nil {
		return fmt.Errorf("invalid member id: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var memberPK, logPK int64
		if err := tx.QueryRow(ctx, `SELECT id FROM members WHERE external_id = $1`, memberID).Scan(&memberPK); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("member %s does not exist", e.MemberID)
			}
			return err
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO access_logs (external_id, member_id, action, qr_code_scanned, location, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`,
			id,
			memberPK,
			string(e.Action),
			e.QRCodeScanned,
			string(e.Location),
			e.Timestamp.UTC(),
		).Scan(&logPK); err != nil {
			return err
		}

		var (
			ct  pgconn.CommandTag
			err error
		)
		after := e.Action.After()
		if expected == domain.PresenceOutside {
			// No row yet means outside. Concurrent inserts serialise on the primary key,
			// and the WHERE is re-checked against the committed row.
			ct, err = tx.Exec(ctx, `
				INSERT INTO member_presence (member_id, state, last_log_id, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (member_id) DO UPDATE
				SET state = EXCLUDED.state,
				    last_log_id = EXCLUDED.last_log_id,
				    updated_at = EXCLUDED.updated_at
				WHERE member_presence.state = $5
			`, memberPK, string(after), logPK, e.Timestamp.UTC(), string(expected))
		} else {
			ct, err = tx.Exec(ctx, `
				UPDATE member_presence
				SET state = $2,
				    last_log_id = $3,
				    updated_at = $4
				WHERE member_id = $1 AND state = $5
			`, memberPK, string(after), logPK, e.Timestamp.UTC(), string(expected))
		}
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return accesslog.ErrPresenceConflict
		}
		return nil
	})
}

func (r *Repo) Latest(ctx context.Context, memberID domain.MemberID) (domain.AccessLogEntry, error) {
	if r.pool == nil {
		return domain.AccessLogEntry{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(memberID))
	if err != nil {
		return domain.AccessLogEntry{}, accesslog.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, selectEntry+`
		JOIN member_presence p ON p.last_log_id = l.id
		WHERE m.external_id = $1
	`, uid)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AccessLogEntry{}, accesslog.ErrNotFound
	}
	return e, err
}

func (r *Repo) ListInside(ctx context.Context) ([]domain.AccessLogEntry, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	return r.query(ctx, selectEntry+`
		JOIN member_presence p ON p.last_log_id = l.id
		WHERE p.state = 'inside'
	`+orderNewestFirst)
}

func (r *Repo) ListBetween(ctx context.Context, from, to time.Time) ([]domain.AccessLogEntry, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	return r.query(ctx, selectEntry+`
		WHERE l.occurred_at >= $1 AND l.occurred_at < $2
	`+orderNewestFirst, from.UTC(), to.UTC())
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]domain.AccessLogEntry, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	if limit < 0 {
		limit = 0
	}
	return r.query(ctx, selectEntry+orderNewestFirst+` LIMIT $1`, limit)
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]domain.AccessLogEntry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AccessLogEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanEntry(row pgx.Row) (domain.AccessLogEntry, error) {
	var (
		id, memberID     uuid.UUID
		action, location string
		scanned          string
		at               time.Time
	)
	if err := row.Scan(&id, &memberID, &action, &scanned, &location, &at); err != nil {
		return domain.AccessLogEntry{}, err
	}
	return domain.AccessLogEntry{
		ID:            domain.AccessLogID(id.String()),
		MemberID:      domain.MemberID(memberID.String()),
		Action:        domain.AccessAction(action),
		QRCodeScanned: scanned,
		Location:      domain.Location(location),
		Timestamp:     at.UTC(),
	}, nil
}
