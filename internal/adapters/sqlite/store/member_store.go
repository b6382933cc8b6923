package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
)

const selectMember = `
SELECT id, subject_sub, display_name, email, phone, qr_code, role, created_at_ms, updated_at_ms
FROM members
`

// MemberStore is a SQLite implementation of memberrepo.Repository.
type MemberStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	issuer string
}

func NewMemberStore(db *sql.DB, writer *dbpkg.Worker, jwtIssuer string) *MemberStore {
	return &MemberStore{db: db, writer: writer, issuer: jwtIssuer}
}

func (s *MemberStore) Create(ctx context.Context, m memberrepo.Member) error {
	if m.ID == "" {
		return memberrepo.ErrAlreadyExists
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO members(id, subject_iss, subject_sub, display_name, email, phone, qr_code, role, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			string(m.ID), s.issuer, string(m.Subject), m.DisplayName, m.Email, nullString(m.Phone),
			m.QRCode, string(m.Role), m.CreatedAt.UTC().UnixMilli(), m.UpdatedAt.UTC().UnixMilli(),
		)
		return mapMemberUnique(err)
	})
}

func (s *MemberStore) Update(ctx context.Context, m memberrepo.Member) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := scanMember(tx.QueryRowContext(ctx, selectMember+`WHERE id = ?;`, string(m.ID)))
		if err != nil {
			return err
		}
		// Subject binding is immutable.
		if existing.Subject != m.Subject {
			return memberrepo.ErrSubjectAlreadyBound
		}

		_, err = tx.ExecContext(ctx, `
UPDATE members
SET display_name = ?, email = ?, phone = ?, qr_code = ?, role = ?, updated_at_ms = ?
WHERE id = ?;
`,
			m.DisplayName, m.Email, nullString(m.Phone), m.QRCode, string(m.Role),
			m.UpdatedAt.UTC().UnixMilli(), string(m.ID),
		)
		return mapMemberUnique(err)
	})
}

func (s *MemberStore) GetByID(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	return scanMember(s.db.QueryRowContext(ctx, selectMember+`WHERE id = ?;`, string(id)))
}

func (s *MemberStore) GetBySubject(ctx context.Context, subject domain.SubjectID) (memberrepo.Member, error) {
	return scanMember(s.db.QueryRowContext(ctx, selectMember+`WHERE subject_iss = ? AND subject_sub = ?;`, s.issuer, string(subject)))
}

func (s *MemberStore) GetByQRCode(ctx context.Context, code string) (memberrepo.Member, error) {
	return scanMember(s.db.QueryRowContext(ctx, selectMember+`WHERE qr_code = ?;`, code))
}

func (s *MemberStore) ListByIDs(ctx context.Context, ids []domain.MemberID) (map[domain.MemberID]memberrepo.Member, error) {
	out := make(map[domain.MemberID]memberrepo.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	ms, err := s.query(ctx, selectMember+`WHERE id IN (`+placeholders(len(ids))+`);`, args...)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		out[m.ID] = m
	}
	return out, nil
}

func (s *MemberStore) List(ctx context.Context) ([]memberrepo.Member, error) {
	return s.query(ctx, selectMember+`ORDER BY lower(display_name) ASC, id ASC;`)
}

func (s *MemberStore) SearchByDisplayName(ctx context.Context, query string, limit int) ([]memberrepo.Member, error) {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	if len(tokens) == 0 {
		return []memberrepo.Member{}, nil
	}

	var sb strings.Builder
	sb.WriteString(selectMember)
	sb.WriteString("WHERE 1 = 1")
	args := make([]any, 0, len(tokens)+1)
	for _, tok := range tokens {
		sb.WriteString(` AND lower(display_name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(tok)+"%")
	}
	sb.WriteString(" ORDER BY lower(display_name) ASC, id ASC")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return s.query(ctx, sb.String(), args...)
}

func (s *MemberStore) query(ctx context.Context, q string, args ...any) ([]memberrepo.Member, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("members query: %w", err)
	}
	defer rows.Close()

	out := make([]memberrepo.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func mapMemberUnique(err error) error {
	switch {
	case err == nil:
		return nil
	case dbpkg.IsUniqueViolation(err, "members.subject_"):
		return memberrepo.ErrSubjectAlreadyBound
	case dbpkg.IsUniqueViolation(err, "members.qr_code"):
		return memberrepo.ErrQRCodeTaken
	case dbpkg.IsUniqueViolation(err, "members.id"):
		return memberrepo.ErrAlreadyExists
	}
	return err
}

func scanMember(row interface{ Scan(dest ...any) error }) (memberrepo.Member, error) {
	var (
		m                    memberrepo.Member
		id, sub, role        string
		phone                sql.NullString
		createdMs, updatedMs int64
	)
	err := row.Scan(&id, &sub, &m.DisplayName, &m.Email, &phone, &m.QRCode, &role, &createdMs, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	if err != nil {
		return memberrepo.Member{}, fmt.Errorf("scan member: %w", err)
	}
	m.ID = domain.MemberID(id)
	m.Subject = domain.SubjectID(sub)
	m.Role = domain.Role(role)
	if phone.Valid {
		v := phone.String
		m.Phone = &v
	}
	m.CreatedAt = fromMillis(createdMs)
	m.UpdatedAt = fromMillis(updatedMs)
	return m, nil
}

// --- shared helpers ---

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
