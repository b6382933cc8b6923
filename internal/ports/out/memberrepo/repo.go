package memberrepo

import (
	"context"
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

// Member is the persistence shape used by the member repository (the "profiles" entity).
// It is an internal record, not an HTTP DTO.
type Member struct {
	ID      domain.MemberID
	Subject domain.SubjectID
	// DisplayName is the member's full name as shown at the front desk.
	DisplayName string
	Email       string
	// Phone is optional; nil means unset.
	Phone *string
	// QRCode is the personal access code. Unique across members.
	QRCode string
	Role   domain.Role

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted members.
//
// Result ordering expectations:
// - List/Search methods return results ordered by DisplayName ascending (case-insensitive), then ID.
type Repository interface {
	Create(ctx context.Context, m Member) error
	Update(ctx context.Context, m Member) error

	GetByID(ctx context.Context, id domain.MemberID) (Member, error)
	GetBySubject(ctx context.Context, subject domain.SubjectID) (Member, error)
	GetByQRCode(ctx context.Context, code string) (Member, error)

	// ListByIDs returns the members that exist among ids, keyed by ID. Unknown IDs are skipped.
	ListByIDs(ctx context.Context, ids []domain.MemberID) (map[domain.MemberID]Member, error)

	List(ctx context.Context) ([]Member, error)

	// SearchByDisplayName searches members by a tokenized, case-insensitive match on DisplayName.
	// The query validation (e.g. minimum length) is enforced at the application layer.
	SearchByDisplayName(ctx context.Context, query string, limit int) ([]Member, error)
}
