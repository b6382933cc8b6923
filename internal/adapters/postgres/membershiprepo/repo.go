package membershiprepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
)

const selectMembership = `
	SELECT
		ms.external_id,
		m.external_id,
		ms.type,
		ms.status,
		ms.start_date,
		ms.end_date,
		ms.created_at,
		ms.updated_at
	FROM memberships ms
	JOIN members m ON m.id = ms.member_id
`

const orderNewestFirst = ` ORDER BY ms.end_date DESC, ms.created_at DESC, ms.external_id ASC`

// Repo is a Postgres implementation of membershiprepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, ms domain.Membership) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(ms.ID))
	if err != nil {
		return fmt.Errorf("invalid membership id: %w", err)
	}
	memberID, err := uuid.Parse(string(ms.MemberID))
	if err != nil {
		return fmt.Errorf("invalid member id: %w", err)
	}

	ct, err := r.pool.Exec(ctx, `
		INSERT INTO memberships (
			external_id,
			member_id,
			type,
			status,
			start_date,
			end_date,
			created_at,
			updated_at
		)
		SELECT $1, m.id, $3, $4, $5, $6, $7, $8
		FROM members m
		WHERE m.external_id = $2
	`,
		id,
		memberID,
		string(ms.Type),
		string(ms.Status),
		ms.StartDate.UTC(),
		ms.EndDate.UTC(),
		ms.CreatedAt.UTC(),
		ms.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "memberships_external_id_unique" {
			return membershiprepo.ErrAlreadyExists
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("member %s does not exist", ms.MemberID)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, ms domain.Membership) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(ms.ID))
	if err != nil {
		return membershiprepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE memberships
		SET type = $2,
		    status = $3,
		    start_date = $4,
		    end_date = $5,
		    updated_at = $6
		WHERE external_id = $1
	`,
		id,
		string(ms.Type),
		string(ms.Status),
		ms.StartDate.UTC(),
		ms.EndDate.UTC(),
		ms.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return membershiprepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	if r.pool == nil {
		return domain.Membership{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Membership{}, membershiprepo.ErrNotFound
	}
	return scanMembership(r.pool.QueryRow(ctx, selectMembership+` WHERE ms.external_id = $1`, uid))
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.Membership, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(memberID))
	if err != nil {
		return []domain.Membership{}, nil
	}
	return r.query(ctx, selectMembership+` WHERE m.external_id = $1`+orderNewestFirst, uid)
}

func (r *Repo) ListByMembers(ctx context.Context, memberIDs []domain.MemberID) (map[domain.MemberID][]domain.Membership, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	out := make(map[domain.MemberID][]domain.Membership)
	ids := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if uid, err := uuid.Parse(string(id)); err == nil {
			ids = append(ids, uid.String())
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	list, err := r.query(ctx, selectMembership+` WHERE m.external_id = ANY($1::uuid[])`+orderNewestFirst, ids)
	if err != nil {
		return nil, err
	}
	for _, ms := range list {
		out[ms.MemberID] = append(out[ms.MemberID], ms)
	}
	return out, nil
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]domain.Membership, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Membership, 0)
	for rows.Next() {
		ms, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanMembership(row pgx.Row) (domain.Membership, error) {
	var (
		id, memberID         uuid.UUID
		typ, status          string
		start, end           time.Time
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &memberID, &typ, &status, &start, &end, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Membership{}, membershiprepo.ErrNotFound
		}
		return domain.Membership{}, err
	}
	return domain.Membership{
		ID:        domain.MembershipID(id.String()),
		MemberID:  domain.MemberID(memberID.String()),
		Type:      domain.MembershipType(typ),
		Status:    domain.MembershipStatus(status),
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}, nil
}
