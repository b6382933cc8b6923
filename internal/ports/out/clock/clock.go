package clock

import "time"

// Clock is the single source of "now" for scans, daily codes and ledger queries.
// Implementations return UTC; calendar days are derived through domain.Calendar.
type Clock interface {
	Now() time.Time
}
