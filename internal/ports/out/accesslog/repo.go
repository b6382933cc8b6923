package accesslog

import (
	"context"
	"errors"
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

var (
	// ErrNotFound indicates the member has no ledger history.
	ErrNotFound = errors.New("no access log entry")

	// ErrPresenceConflict is returned by Append when the member's presence changed
	// between the caller's read and the append.
	ErrPresenceConflict = errors.New("presence changed concurrently")
)

// Repository is the append-only access ledger together with its presence index.
//
// The presence index is maintained in the same transaction as each append, so
// ListInside never scans the full log.
type Repository interface {
	// Append records e if the member's current presence equals expected, and flips
	// the presence to e.Action.After(). Otherwise it returns ErrPresenceConflict and
	// writes nothing.
	Append(ctx context.Context, e domain.AccessLogEntry, expected domain.Presence) error

	// Latest returns the member's most recent entry or ErrNotFound.
	Latest(ctx context.Context, memberID domain.MemberID) (domain.AccessLogEntry, error)

	// ListInside returns, for each member currently inside, their latest (entry) event.
	// Ordered newest first.
	ListInside(ctx context.Context) ([]domain.AccessLogEntry, error)

	// ListBetween returns entries with from <= Timestamp < to, newest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.AccessLogEntry, error)

	// ListRecent returns at most limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.AccessLogEntry, error)
}
