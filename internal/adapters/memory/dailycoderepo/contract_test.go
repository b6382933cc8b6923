package dailycoderepo

import (
	"testing"

	"github.com/ironhall-fitness/gym-access-api/internal/adapters/contracttest"
	dailycoderepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
)

func TestContract_DailyCodeRepo(t *testing.T) {
	contracttest.RunDailyCodeRepo(t, func(t *testing.T) (dailycoderepoport.Repository, func()) {
		t.Helper()
		return NewRepo(), nil
	})
}
