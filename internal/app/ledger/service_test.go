package ledger

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	memaccesslog "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/accesslog"
	memclock "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/clock"
	memmemberrepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/memberrepo"
	memmembershiprepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/membershiprepo"
	"github.com/ironhall-fitness/gym-access-api/internal/app/apperr"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
)

type fixture struct {
	svc *Service
	log *memaccesslog.Repo
	clk *memclock.ManualClock
	loc *time.Location
	seq int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	// 18:00 in Paris.
	clk := memclock.NewManualClock(time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC))
	members := memmemberrepo.NewRepo()
	for _, m := range []memberrepo.Member{
		{ID: "m-alice", Subject: "sub-alice", DisplayName: "Alice", Email: "alice@example.com", QRCode: "GYM_MEMBER_000000000001", Role: domain.RoleMember},
		{ID: "m-bob", Subject: "sub-bob", DisplayName: "Bob", Email: "bob@example.com", QRCode: "GYM_MEMBER_000000000002", Role: domain.RoleMember},
		{ID: "m-carol", Subject: "sub-carol", DisplayName: "Carol", Email: "carol@example.com", QRCode: "GYM_MEMBER_000000000003", Role: domain.RoleMember},
	} {
		if err := members.Create(context.Background(), m); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	memberships := memmembershiprepo.NewRepo()
	if err := memberships.Create(context.Background(), domain.Membership{
		ID: "ms-alice", MemberID: "m-alice", Type: domain.MembershipPremium, Status: domain.MembershipActive,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, loc), EndDate: time.Date(2026, 1, 1, 0, 0, 0, 0, loc),
	}); err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	log := memaccesslog.NewRepo()
	return &fixture{
		svc: NewService(log, members, memberships, clk, domain.NewCalendar(loc)),
		log: log,
		clk: clk,
		loc: loc,
	}
}

// record appends an event at hh:mm Paris time on day d of March 2025.
func (f *fixture) record(t *testing.T, member domain.MemberID, action domain.AccessAction, d, hh, mm int) {
	t.Helper()
	f.seq++
	expected := domain.PresenceOutside
	if action == domain.ActionExit {
		expected = domain.PresenceInside
	}
	e := domain.AccessLogEntry{
		ID:            domain.AccessLogID("log-" + strconv.Itoa(f.seq)),
		MemberID:      member,
		Action:        action,
		QRCodeScanned: "code",
		Location:      domain.LocationSelfService,
		Timestamp:     time.Date(2025, 3, d, hh, mm, 0, 0, f.loc),
	}
	if err := f.log.Append(context.Background(), e, expected); err != nil {
		t.Fatalf("Append %s %s: %v", member, action, err)
	}
}

func TestService_CurrentlyInside(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.record(t, "m-alice", domain.ActionEntry, 10, 9, 0)
	f.record(t, "m-bob", domain.ActionEntry, 10, 9, 30)
	f.record(t, "m-bob", domain.ActionExit, 10, 11, 0)
	f.record(t, "m-carol", domain.ActionEntry, 10, 12, 0)

	got, err := f.svc.CurrentlyInside(context.Background())
	if err != nil {
		t.Fatalf("CurrentlyInside err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2 (%+v)", len(got), got)
	}
	if got[0].MemberID != "m-carol" || got[1].MemberID != "m-alice" {
		t.Fatalf("order = %s, %s; want newest entry first", got[0].MemberID, got[1].MemberID)
	}
	if got[1].DisplayName != "Alice" || got[1].QRCode != "GYM_MEMBER_000000000001" || got[1].Membership == nil {
		t.Fatalf("alice view = %+v", got[1])
	}
	if got[0].Membership != nil {
		t.Fatalf("carol has no membership, got %+v", got[0].Membership)
	}
	if !got[1].EnteredAt.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, f.loc)) {
		t.Fatalf("enteredAt = %v", got[1].EnteredAt)
	}
}

func TestService_TodaysLogAndLogForDate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.record(t, "m-alice", domain.ActionEntry, 9, 23, 30)
	f.record(t, "m-alice", domain.ActionExit, 10, 0, 15)
	f.record(t, "m-bob", domain.ActionEntry, 10, 8, 0)

	today, err := f.svc.TodaysLog(context.Background())
	if err != nil {
		t.Fatalf("TodaysLog err=%v", err)
	}
	if len(today) != 2 || today[0].Entry.MemberID != "m-bob" || today[1].Entry.Action != domain.ActionExit {
		t.Fatalf("today = %+v", today)
	}
	if today[0].DisplayName != "Bob" || today[0].Email != "bob@example.com" {
		t.Fatalf("profile join = %+v", today[0])
	}

	yesterday, err := f.svc.LogForDate(context.Background(), "2025-03-09")
	if err != nil {
		t.Fatalf("LogForDate err=%v", err)
	}
	if len(yesterday) != 1 || yesterday[0].Entry.Action != domain.ActionEntry {
		t.Fatalf("yesterday = %+v", yesterday)
	}

	_, err = f.svc.LogForDate(context.Background(), "10/03/2025")
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Code != "VALIDATION_ERROR" {
		t.Fatalf("err=%v, want VALIDATION_ERROR", err)
	}
}

func TestService_RecentLog(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for i := 0; i < 30; i++ {
		f.record(t, "m-alice", domain.ActionEntry, 1+i%28, 7, i)
		f.record(t, "m-alice", domain.ActionExit, 1+i%28, 8, i)
	}

	got, err := f.svc.RecentLog(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentLog err=%v", err)
	}
	if len(got) != DefaultRecentLimit {
		t.Fatalf("len=%d, want %d", len(got), DefaultRecentLimit)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Entry.Timestamp.After(got[i-1].Entry.Timestamp) {
			t.Fatalf("not newest first at %d", i)
		}
	}
	got, err = f.svc.RecentLog(context.Background(), 5)
	if err != nil || len(got) != 5 {
		t.Fatalf("RecentLog(5) len=%d err=%v", len(got), err)
	}
	for _, bad := range []int{-1, MaxRecentLimit + 1} {
		if _, err := f.svc.RecentLog(context.Background(), bad); err == nil {
			t.Fatalf("RecentLog(%d) expected error", bad)
		}
	}
}

func TestService_StatsToday(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	empty, err := f.svc.StatsToday(context.Background())
	if err != nil {
		t.Fatalf("StatsToday err=%v", err)
	}
	if empty.Date != "2025-03-10" || empty.Entries != 0 || empty.PeakHour != nil {
		t.Fatalf("empty stats = %+v", empty)
	}

	f.record(t, "m-carol", domain.ActionEntry, 9, 20, 0) // yesterday, still inside
	f.record(t, "m-alice", domain.ActionEntry, 10, 7, 10)
	f.record(t, "m-alice", domain.ActionExit, 10, 8, 0)
	f.record(t, "m-bob", domain.ActionEntry, 10, 7, 45)
	f.record(t, "m-alice", domain.ActionEntry, 10, 17, 0)
	f.record(t, "m-bob", domain.ActionExit, 10, 17, 20)
	f.record(t, "m-bob", domain.ActionEntry, 10, 17, 40)

	st, err := f.svc.StatsToday(context.Background())
	if err != nil {
		t.Fatalf("StatsToday err=%v", err)
	}
	if st.Entries != 4 || st.Exits != 2 || st.UniqueMembers != 2 || st.CurrentlyInside != 3 {
		t.Fatalf("stats = %+v", st)
	}
	// 7h and 17h both have two entries; the earlier hour wins.
	if st.PeakHour == nil || *st.PeakHour != 7 {
		t.Fatalf("peakHour = %v, want 7", st.PeakHour)
	}
}

func TestPeakHour(t *testing.T) {
	t.Parallel()

	var hours [24]int
	if peakHour(hours) != nil {
		t.Fatalf("empty buckets must have no peak")
	}
	hours[23] = 3
	hours[6] = 2
	if got := peakHour(hours); got == nil || *got != 23 {
		t.Fatalf("peak = %v, want 23", got)
	}
	hours[0] = 3
	if got := peakHour(hours); got == nil || *got != 0 {
		t.Fatalf("peak = %v, want 0", got)
	}
}

func TestService_Presence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	p, err := f.svc.Presence(context.Background(), "sub-alice")
	if err != nil {
		t.Fatalf("Presence err=%v", err)
	}
	if p.State != domain.PresenceOutside || p.Last != nil {
		t.Fatalf("presence = %+v", p)
	}

	f.record(t, "m-alice", domain.ActionEntry, 10, 9, 0)
	p, err = f.svc.Presence(context.Background(), "sub-alice")
	if err != nil {
		t.Fatalf("Presence err=%v", err)
	}
	if p.State != domain.PresenceInside || p.Last == nil || p.Last.Action != domain.ActionEntry {
		t.Fatalf("presence = %+v", p)
	}

	_, err = f.svc.Presence(context.Background(), "sub-ghost")
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Code != "MEMBER_NOT_PROVISIONED" {
		t.Fatalf("err=%v, want MEMBER_NOT_PROVISIONED", err)
	}
}
