package clock

import "time"

// SystemClock is the production clock. It reports UTC wall-clock time with
// millisecond precision, the resolution stored in every backend.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
