package membershiprepo

import (
	"context"
	"errors"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

var (
	ErrNotFound      = errors.New("membership not found")
	ErrAlreadyExists = errors.New("membership already exists")
)

// Repository provides access to persisted memberships.
//
// Ordering: per-member lists are ordered by EndDate descending, then CreatedAt descending,
// so the first active membership is the most recent one.
type Repository interface {
	Create(ctx context.Context, m domain.Membership) error
	Update(ctx context.Context, m domain.Membership) error

	GetByID(ctx context.Context, id domain.MembershipID) (domain.Membership, error)
	ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.Membership, error)

	// ListByMembers batch-loads memberships for several members. Members without
	// memberships are absent from the result.
	ListByMembers(ctx context.Context, memberIDs []domain.MemberID) (map[domain.MemberID][]domain.Membership, error)
}
