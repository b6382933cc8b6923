package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dbpkg "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
)

const selectMembership = `
SELECT id, member_id, type, status, start_date_ms, end_date_ms, created_at_ms, updated_at_ms
FROM memberships
`

const orderMembershipsNewestFirst = ` ORDER BY end_date_ms DESC, created_at_ms DESC, id ASC`

// MembershipStore is a SQLite implementation of membershiprepo.Repository.
type MembershipStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewMembershipStore(db *sql.DB, writer *dbpkg.Worker) *MembershipStore {
	return &MembershipStore{db: db, writer: writer}
}

func (s *MembershipStore) Create(ctx context.Context, m domain.Membership) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO memberships(id, member_id, type, status, start_date_ms, end_date_ms, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			string(m.ID), string(m.MemberID), string(m.Type), string(m.Status),
			m.StartDate.UTC().UnixMilli(), m.EndDate.UTC().UnixMilli(),
			m.CreatedAt.UTC().UnixMilli(), m.UpdatedAt.UTC().UnixMilli(),
		)
		if dbpkg.IsUniqueViolation(err, "memberships.id") {
			return membershiprepo.ErrAlreadyExists
		}
		return err
	})
}

func (s *MembershipStore) Update(ctx context.Context, m domain.Membership) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE memberships
SET type = ?, status = ?, start_date_ms = ?, end_date_ms = ?, updated_at_ms = ?
WHERE id = ?;
`,
			string(m.Type), string(m.Status), m.StartDate.UTC().UnixMilli(), m.EndDate.UTC().UnixMilli(),
			m.UpdatedAt.UTC().UnixMilli(), string(m.ID),
		)
		if err != nil {
			return fmt.Errorf("update membership: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return membershiprepo.ErrNotFound
		}
		return nil
	})
}

func (s *MembershipStore) GetByID(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	return scanMembership(s.db.QueryRowContext(ctx, selectMembership+`WHERE id = ?;`, string(id)))
}

func (s *MembershipStore) ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.Membership, error) {
	return s.query(ctx, selectMembership+`WHERE member_id = ?`+orderMembershipsNewestFirst, string(memberID))
}

func (s *MembershipStore) ListByMembers(ctx context.Context, memberIDs []domain.MemberID) (map[domain.MemberID][]domain.Membership, error) {
	out := make(map[domain.MemberID][]domain.Membership)
	if len(memberIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(memberIDs))
	for i, id := range memberIDs {
		args[i] = string(id)
	}
	list, err := s.query(ctx, selectMembership+`WHERE member_id IN (`+placeholders(len(memberIDs))+`)`+orderMembershipsNewestFirst, args...)
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		out[m.MemberID] = append(out[m.MemberID], m)
	}
	return out, nil
}

func (s *MembershipStore) query(ctx context.Context, q string, args ...any) ([]domain.Membership, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("memberships query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMembership(row interface{ Scan(dest ...any) error }) (domain.Membership, error) {
	var (
		id, memberID, typ, status        string
		startMs, endMs, createdMs, updMs int64
	)
	err := row.Scan(&id, &memberID, &typ, &status, &startMs, &endMs, &createdMs, &updMs)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Membership{}, membershiprepo.ErrNotFound
	}
	if err != nil {
		return domain.Membership{}, fmt.Errorf("scan membership: %w", err)
	}
	return domain.Membership{
		ID:        domain.MembershipID(id),
		MemberID:  domain.MemberID(memberID),
		Type:      domain.MembershipType(typ),
		Status:    domain.MembershipStatus(status),
		StartDate: fromMillis(startMs),
		EndDate:   fromMillis(endMs),
		CreatedAt: fromMillis(createdMs),
		UpdatedAt: fromMillis(updMs),
	}, nil
}
