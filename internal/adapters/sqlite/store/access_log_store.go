package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
)

const selectAccessLog = `
SELECT l.id, l.member_id, l.action, l.qr_code_scanned, l.location, l.occurred_at_ms
FROM access_logs l
`

const orderLogsNewestFirst = ` ORDER BY l.occurred_at_ms DESC, l.seq DESC`

// AccessLogStore is a SQLite implementation of accesslog.Repository.
// member_presence is updated in the same write transaction as each insert.
type AccessLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessLogStore(db *sql.DB, writer *dbpkg.Worker) *AccessLogStore {
	return &AccessLogStore{db: db, writer: writer}
}

func (s *AccessLogStore) Append(ctx context.Context, e domain.AccessLogEntry, expected domain.Presence) error {
	atMs := e.Timestamp.UTC().UnixMilli()
	after := string(e.Action.After())

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_logs(id, member_id, action, qr_code_scanned, location, occurred_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, string(e.ID), string(e.MemberID), string(e.Action), e.QRCodeScanned, string(e.Location), atMs)
		if err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return err
		}

		if expected == domain.PresenceOutside {
			// A member without a presence row is outside.
			res, err = tx.ExecContext(ctx, `
INSERT INTO member_presence(member_id, state, last_log_seq, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(member_id) DO UPDATE SET
  state = excluded.state,
  last_log_seq = excluded.last_log_seq,
  updated_at_ms = excluded.updated_at_ms
WHERE member_presence.state = ?;
`, string(e.MemberID), after, seq, atMs, string(expected))
		} else {
			res, err = tx.ExecContext(ctx, `
UPDATE member_presence
SET state = ?, last_log_seq = ?, updated_at_ms = ?
WHERE member_id = ? AND state = ?;
`, after, seq, atMs, string(e.MemberID), string(expected))
		}
		if err != nil {
			return fmt.Errorf("Append presence: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return accesslog.ErrPresenceConflict
		}
		return nil
	})
}

func (s *AccessLogStore) Latest(ctx context.Context, memberID domain.MemberID) (domain.AccessLogEntry, error) {
	e, err := scanAccessLog(s.db.QueryRowContext(ctx, selectAccessLog+`
JOIN member_presence p ON p.last_log_seq = l.seq
WHERE p.member_id = ?;
`, string(memberID)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AccessLogEntry{}, accesslog.ErrNotFound
	}
	return e, err
}

func (s *AccessLogStore) ListInside(ctx context.Context) ([]domain.AccessLogEntry, error) {
	return s.query(ctx, selectAccessLog+`
JOIN member_presence p ON p.last_log_seq = l.seq
WHERE p.state = 'inside'`+orderLogsNewestFirst)
}

func (s *AccessLogStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.AccessLogEntry, error) {
	return s.query(ctx, selectAccessLog+`
WHERE l.occurred_at_ms >= ? AND l.occurred_at_ms < ?`+orderLogsNewestFirst,
		from.UTC().UnixMilli(), to.UTC().UnixMilli())
}

func (s *AccessLogStore) ListRecent(ctx context.Context, limit int) ([]domain.AccessLogEntry, error) {
	if limit < 0 {
		limit = 0
	}
	return s.query(ctx, selectAccessLog+orderLogsNewestFirst+` LIMIT ?`, limit)
}

func (s *AccessLogStore) query(ctx context.Context, q string, args ...any) ([]domain.AccessLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("access_logs query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AccessLogEntry, 0)
	for rows.Next() {
		e, err := scanAccessLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scanAccessLog leaves sql.ErrNoRows unwrapped so callers can map it.
func scanAccessLog(row interface{ Scan(dest ...any) error }) (domain.AccessLogEntry, error) {
	var (
		id, memberID, action, scanned, location string
		atMs                                    int64
	)
	if err := row.Scan(&id, &memberID, &action, &scanned, &location, &atMs); err != nil {
		return domain.AccessLogEntry{}, err
	}
	return domain.AccessLogEntry{
		ID:            domain.AccessLogID(id),
		MemberID:      domain.MemberID(memberID),
		Action:        domain.AccessAction(action),
		QRCodeScanned: scanned,
		Location:      domain.Location(location),
		Timestamp:     fromMillis(atMs),
	}, nil
}
