package scanguard

import (
	"testing"
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/adapters/contracttest"
	memclock "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/clock"
	scanguardport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/scanguard"
)

func TestContract_ScanGuard(t *testing.T) {
	contracttest.RunScanGuard(t, func(t *testing.T) (scanguardport.Guard, func(time.Duration)) {
		t.Helper()
		c := memclock.NewManualClock(time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC))
		g := NewGuard(c, 5*time.Second)
		return g, func(d time.Duration) { c.Advance(d) }
	})
}
