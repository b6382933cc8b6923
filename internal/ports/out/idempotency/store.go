package idempotency

import (
	"context"
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies a request uniquely for idempotency purposes:
// key + route + subject + request body hash.
// Route is the normalized path template (e.g. "/access/scan"); Method is kept separately.
type Fingerprint struct {
	Key      Key
	Subject  domain.SubjectID
	Method   string
	Route    string
	BodyHash string
}

// Record is the stored response we can replay for a duplicate request.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records for replaying scan responses on retries.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error

	// PruneOlderThan deletes records created before cutoff and reports how many were removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
