package scanguard

import (
	"context"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

// Guard serialises scans per member. It is a debounce, not a correctness mechanism:
// the ledger's presence check is what keeps entry/exit alternating.
type Guard interface {
	// Acquire returns false when another scan for the member is still in flight.
	// The returned token identifies this holder and must be passed to Release.
	Acquire(ctx context.Context, memberID domain.MemberID) (token string, ok bool, err error)

	// Release drops the lock only while token still holds it. A lock that expired
	// and was taken by another scan is left alone.
	Release(ctx context.Context, memberID domain.MemberID, token string) error
}
