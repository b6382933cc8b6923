package dailycoderepo

import (
	"context"
	"errors"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

var (
	ErrNotFound = errors.New("daily code not found")
	// ErrAlreadyExists is returned by Create when a record already exists for the date.
	ErrAlreadyExists = errors.New("daily code already exists for date")
)

// Repository stores one DailyCode per calendar date. Records are immutable.
type Repository interface {
	GetByDate(ctx context.Context, date string) (domain.DailyCode, error)
	Create(ctx context.Context, dc domain.DailyCode) error
}
