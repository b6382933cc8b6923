package contracttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	accesslogport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
)

func newEntry(member domain.MemberID, action domain.AccessAction, at time.Time) domain.AccessLogEntry {
	return domain.AccessLogEntry{
		ID:            domain.AccessLogID(uuid.NewString()),
		MemberID:      member,
		Action:        action,
		QRCodeScanned: "GYM_" + string(action),
		Location:      domain.LocationSelfService,
		Timestamp:     at,
	}
}

func RunAccessLog(t *testing.T, newRepo AccessLogFactory) {
	t.Helper()
	ctx := context.Background()

	alice := domain.MemberID(uuid.NewString())
	bob := domain.MemberID(uuid.NewString())
	carol := domain.MemberID(uuid.NewString())
	racer := domain.MemberID(uuid.NewString())
	repo, cleanup := newRepo(t, []domain.MemberID{alice, bob, carol, racer})
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if _, err := repo.Latest(ctx, alice); !errors.Is(err, accesslogport.ErrNotFound) {
		t.Fatalf("Latest(no history): err=%v, want ErrNotFound", err)
	}

	base := time.Date(2025, 6, 15, 7, 0, 0, 0, time.UTC)

	// Exit first is a conflict: member with no history is outside.
	if err := repo.Append(ctx, newEntry(alice, domain.ActionExit, base), domain.PresenceInside); !errors.Is(err, accesslogport.ErrPresenceConflict) {
		t.Fatalf("Append with wrong expectation: err=%v, want ErrPresenceConflict", err)
	}

	steps := []struct {
		member   domain.MemberID
		action   domain.AccessAction
		expected domain.Presence
		at       time.Time
	}{
		{alice, domain.ActionEntry, domain.PresenceOutside, base},
		{bob, domain.ActionEntry, domain.PresenceOutside, base.Add(10 * time.Minute)},
		{alice, domain.ActionExit, domain.PresenceInside, base.Add(time.Hour)},
		{carol, domain.ActionEntry, domain.PresenceOutside, base.Add(2 * time.Hour)},
		{alice, domain.ActionEntry, domain.PresenceOutside, base.Add(26 * time.Hour)},
	}
	for i, s := range steps {
		if err := repo.Append(ctx, newEntry(s.member, s.action, s.at), s.expected); err != nil {
			t.Fatalf("Append step %d: %v", i, err)
		}
	}

	// Stale expectation: alice is inside again.
	if err := repo.Append(ctx, newEntry(alice, domain.ActionEntry, base.Add(27*time.Hour)), domain.PresenceOutside); !errors.Is(err, accesslogport.ErrPresenceConflict) {
		t.Fatalf("duplicate entry: err=%v, want ErrPresenceConflict", err)
	}

	latest, err := repo.Latest(ctx, alice)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Action != domain.ActionEntry || !latest.Timestamp.Equal(base.Add(26*time.Hour)) || latest.Location != domain.LocationSelfService {
		t.Fatalf("unexpected latest: %#v", latest)
	}

	inside, err := repo.ListInside(ctx)
	if err != nil {
		t.Fatalf("ListInside: %v", err)
	}
	if len(inside) != 3 || inside[0].MemberID != alice || inside[1].MemberID != carol || inside[2].MemberID != bob {
		t.Fatalf("unexpected inside list: %#v", inside)
	}

	// Day window [base, base+24h): alice x2, bob, carol; newest first.
	day, err := repo.ListBetween(ctx, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListBetween: %v", err)
	}
	if len(day) != 4 || day[0].MemberID != carol || day[3].MemberID != alice || day[3].Action != domain.ActionEntry {
		t.Fatalf("unexpected day window: %#v", day)
	}
	// Lower bound inclusive, upper bound exclusive.
	edge, err := repo.ListBetween(ctx, base.Add(10*time.Minute), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListBetween edge: %v", err)
	}
	if len(edge) != 1 || edge[0].MemberID != bob {
		t.Fatalf("unexpected edge window: %#v", edge)
	}

	recent, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].MemberID != alice || recent[1].MemberID != carol {
		t.Fatalf("unexpected recent: %#v", recent)
	}
	all, err := repo.ListRecent(ctx, 100)
	if err != nil {
		t.Fatalf("ListRecent all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("ListRecent all: len=%d, want 5", len(all))
	}

	// Concurrent entries for the same member: exactly one wins.
	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Append(ctx, newEntry(racer, domain.ActionEntry, base.Add(time.Duration(i)*time.Second)), domain.PresenceOutside)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, accesslogport.ErrPresenceConflict):
				conflicts++
			default:
				t.Errorf("concurrent Append: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if ok != 1 || conflicts != attempts-1 {
		t.Fatalf("concurrent appends: ok=%d conflicts=%d, want 1 and %d", ok, conflicts, attempts-1)
	}
}
