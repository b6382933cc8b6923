package memberrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
)

const selectMember = `
	SELECT
		m.external_id,
		m.subject_sub,
		m.display_name,
		m.email,
		m.phone,
		m.qr_code,
		m.role,
		m.created_at,
		m.updated_at
	FROM members m
`

// Repo is a Postgres implementation of memberrepo.Repository.
type Repo struct {
	pool   *pgxpool.Pool
	issuer string
}

func NewRepo(pool *pgxpool.Pool, jwtIssuer string) *Repo {
	return &Repo{pool: pool, issuer: jwtIssuer}
}

func (r *Repo) Create(ctx context.Context, m memberrepo.Member) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return fmt.Errorf("invalid member id: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO members (
			external_id,
			subject_iss,
			subject_sub,
			display_name,
			email,
			phone,
			qr_code,
			role,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		id,
		r.issuer,
		string(m.Subject),
		m.DisplayName,
		m.Email,
		m.Phone,
		m.QRCode,
		string(m.Role),
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
	return mapUniqueViolation(err)
}

func (r *Repo) Update(ctx context.Context, m memberrepo.Member) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return memberrepo.ErrNotFound
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		existing, err := getMember(ctx, tx, `WHERE m.external_id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		// Subject binding is immutable.
		if existing.Subject != m.Subject {
			return memberrepo.ErrSubjectAlreadyBound
		}

		ct, err := tx.Exec(ctx, `
			UPDATE members
			SET display_name = $2,
			    email = $3,
			    phone = $4,
			    qr_code = $5,
			    role = $6,
			    updated_at = $7
			WHERE external_id = $1
		`,
			id,
			m.DisplayName,
			m.Email,
			m.Phone,
			m.QRCode,
			string(m.Role),
			m.UpdatedAt.UTC(),
		)
		if err != nil {
			return mapUniqueViolation(err)
		}
		if ct.RowsAffected() == 0 {
			return memberrepo.ErrNotFound
		}
		return nil
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	if r.pool == nil {
		return memberrepo.Member{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	return getMember(ctx, r.pool, `WHERE m.external_id = $1`, uid)
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (memberrepo.Member, error) {
	if r.pool == nil {
		return memberrepo.Member{}, errors.New("nil postgres pool")
	}
	return getMember(ctx, r.pool, `WHERE m.subject_iss = $1 AND m.subject_sub = $2`, r.issuer, string(subject))
}

func (r *Repo) GetByQRCode(ctx context.Context, code string) (memberrepo.Member, error) {
	if r.pool == nil {
		return memberrepo.Member{}, errors.New("nil postgres pool")
	}
	return getMember(ctx, r.pool, `WHERE m.qr_code = $1`, code)
}

func (r *Repo) ListByIDs(ctx context.Context, ids []domain.MemberID) (map[domain.MemberID]memberrepo.Member, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uids := make([]string, 0, len(ids))
	for _, id := range ids {
		if uid, err := uuid.Parse(string(id)); err == nil {
			uids = append(uids, uid.String())
		}
	}
	out := make(map[domain.MemberID]memberrepo.Member, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	ms, err := r.query(ctx, selectMember+` WHERE m.external_id = ANY($1::uuid[])`, uids)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		out[m.ID] = m
	}
	return out, nil
}

func (r *Repo) List(ctx context.Context) ([]memberrepo.Member, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	return r.query(ctx, selectMember+` ORDER BY lower(m.display_name) ASC, m.external_id ASC`)
}

func (r *Repo) SearchByDisplayName(ctx context.Context, query string, limit int) ([]memberrepo.Member, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return []memberrepo.Member{}, nil
	}

	var sb strings.Builder
	sb.WriteString(selectMember)
	sb.WriteString(" WHERE true ")
	args := make([]any, 0, len(qTokens))
	for i, tok := range qTokens {
		// Match all tokens (AND) in a case-insensitive way.
		sb.WriteString(fmt.Sprintf(" AND lower(m.display_name) LIKE $%d ", i+1))
		args = append(args, "%"+escapeLike(tok)+"%")
	}
	sb.WriteString(" ORDER BY lower(m.display_name) ASC, m.external_id ASC ")
	if limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d ", limit))
	}
	return r.query(ctx, sb.String(), args...)
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]memberrepo.Member, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// --- helpers ---

func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		switch pe.ConstraintName {
		case "members_subject_unique":
			return memberrepo.ErrSubjectAlreadyBound
		case "members_external_id_unique":
			return memberrepo.ErrAlreadyExists
		case "members_qr_code_unique":
			return memberrepo.ErrQRCodeTaken
		}
	}
	return err
}

func tokenize(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanMember(row pgx.Row) (memberrepo.Member, error) {
	var (
		externalID  uuid.UUID
		sub         string
		displayName string
		email       string
		phone       *string
		qrCode      string
		role        string
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(
		&externalID,
		&sub,
		&displayName,
		&email,
		&phone,
		&qrCode,
		&role,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return memberrepo.Member{}, memberrepo.ErrNotFound
		}
		return memberrepo.Member{}, err
	}
	return memberrepo.Member{
		ID:          domain.MemberID(externalID.String()),
		Subject:     domain.SubjectID(sub),
		DisplayName: displayName,
		Email:       email,
		Phone:       phone,
		QRCode:      qrCode,
		Role:        domain.Role(role),
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}, nil
}

func getMember(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, where string, args ...any) (memberrepo.Member, error) {
	return scanMember(q.QueryRow(ctx, selectMember+where, args...))
}
