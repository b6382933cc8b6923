package access

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	memaccesslog "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/accesslog"
	memclock "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/clock"
	memdailycoderepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/dailycoderepo"
	memmemberrepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/memberrepo"
	memmembershiprepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/membershiprepo"
	memscanguard "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/scanguard"
	"github.com/ironhall-fitness/gym-access-api/internal/app/dailycodes"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
)

var (
	alice = Identity{MemberID: "m-alice"} // active premium
	bob   = Identity{MemberID: "m-bob"}   // no membership
	carl  = Identity{MemberID: "m-carl"}  // suspended
	dave  = Identity{MemberID: "m-dave"}  // status active, ended 2025-01-01
	coach = Identity{MemberID: "m-coach"} // staff
)

type fixture struct {
	svc      *Service
	registry *dailycodes.Registry
	ledger   *memaccesslog.Repo
	guard    *memscanguard.Guard
	clk      *memclock.ManualClock
	cal      domain.Calendar
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	cal := domain.NewCalendar(loc)
	clk := memclock.NewManualClock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	now := clk.Now()

	members := memmemberrepo.NewRepo()
	for _, m := range []memberrepo.Member{
		{ID: "m-alice", Subject: "sub-alice", DisplayName: "Alice Martin", Email: "alice@example.com", QRCode: "GYM_MEMBER_A11CE0000000", Role: domain.RoleMember},
		{ID: "m-bob", Subject: "sub-bob", DisplayName: "Bob", Email: "bob@example.com", QRCode: "GYM_MEMBER_B0B000000000", Role: domain.RoleMember},
		{ID: "m-carl", Subject: "sub-carl", DisplayName: "Carl", Email: "carl@example.com", QRCode: "GYM_MEMBER_CA7100000000", Role: domain.RoleMember},
		{ID: "m-dave", Subject: "sub-dave", DisplayName: "Dave", Email: "dave@example.com", QRCode: "GYM_MEMBER_DA7E00000000", Role: domain.RoleMember},
		{ID: "m-coach", Subject: "sub-coach", DisplayName: "Coach", Email: "coach@example.com", QRCode: "GYM_MEMBER_C0AC00000000", Role: domain.RoleCoach},
	} {
		m.CreatedAt, m.UpdatedAt = now, now
		if err := members.Create(context.Background(), m); err != nil {
			t.Fatalf("seed member %s: %v", m.ID, err)
		}
	}

	day := func(y int, mo time.Month, d int) time.Time { return time.Date(y, mo, d, 0, 0, 0, 0, loc) }
	endOf := func(y int, mo time.Month, d int) time.Time { return day(y, mo, d+1).Add(-time.Millisecond) }
	memberships := memmembershiprepo.NewRepo()
	for _, ms := range []domain.Membership{
		{ID: "ms-alice", MemberID: "m-alice", Type: domain.MembershipPremium, Status: domain.MembershipActive, StartDate: day(2025, 1, 1), EndDate: endOf(2025, 12, 31)},
		{ID: "ms-carl", MemberID: "m-carl", Type: domain.MembershipBasic, Status: domain.MembershipSuspended, StartDate: day(2025, 1, 1), EndDate: endOf(2025, 12, 31)},
		{ID: "ms-dave", MemberID: "m-dave", Type: domain.MembershipPremium, Status: domain.MembershipActive, StartDate: day(2024, 1, 1), EndDate: endOf(2025, 1, 1)},
		{ID: "ms-coach", MemberID: "m-coach", Type: domain.MembershipVIP, Status: domain.MembershipActive, StartDate: day(2025, 1, 1), EndDate: endOf(2025, 12, 31)},
	} {
		ms.CreatedAt, ms.UpdatedAt = now, now
		if err := memberships.Create(context.Background(), ms); err != nil {
			t.Fatalf("seed membership %s: %v", ms.ID, err)
		}
	}

	registry := dailycodes.NewRegistry(memdailycoderepo.NewRepo(), clk, cal, nil)
	ledger := memaccesslog.NewRepo()
	guard := memscanguard.NewGuard(clk, 5*time.Second)
	deps := Deps{
		Members:     members,
		Memberships: memberships,
		Codes:       registry,
		Ledger:      ledger,
		Guard:       guard,
		Clock:       clk,
		Cal:         cal,
	}
	return &fixture{svc: NewService(deps), registry: registry, ledger: ledger, guard: guard, clk: clk, cal: cal, deps: deps}
}

func (f *fixture) codes(t *testing.T) domain.DailyCode {
	t.Helper()
	dc, err := f.registry.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate err=%v", err)
	}
	return dc
}

func (f *fixture) ledgerSize(t *testing.T) int {
	t.Helper()
	es, err := f.ledger.ListRecent(context.Background(), 1000)
	if err != nil {
		t.Fatalf("ListRecent err=%v", err)
	}
	return len(es)
}

func wantRejected(t *testing.T, res Result, kind RejectionKind) Rejected {
	t.Helper()
	rej, ok := res.(Rejected)
	if !ok {
		t.Fatalf("result = %#v, want Rejected(%s)", res, kind)
	}
	if rej.Kind != kind {
		t.Fatalf("kind = %s (%q), want %s", rej.Kind, rej.Message, kind)
	}
	return rej
}

func wantAccepted(t *testing.T, res Result, action domain.AccessAction) Accepted {
	t.Helper()
	acc, ok := res.(Accepted)
	if !ok {
		t.Fatalf("result = %#v, want Accepted(%s)", res, action)
	}
	if acc.Action != action {
		t.Fatalf("action = %s, want %s", acc.Action, action)
	}
	return acc
}

func TestScanDailyCode_NotAuthenticated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dc := f.codes(t)
	rej := wantRejected(t, f.svc.ScanDailyCode(context.Background(), Identity{}, dc.EntryCode), RejectNotAuthenticated)
	if rej.Message != "Utilisateur non connecté." {
		t.Fatalf("message = %q", rej.Message)
	}
	wantRejected(t, f.svc.ScanDailyCode(context.Background(), Identity{MemberID: "m-ghost"}, dc.EntryCode), RejectNotAuthenticated)
}

func TestScanDailyCode_InactiveMembershipRejectsRegardlessOfCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dc := f.codes(t)
	cases := []struct {
		who  Identity
		name string
	}{
		{bob, "Bob"},
		{carl, "Carl"},
	}
	for _, tc := range cases {
		for _, code := range []string{dc.EntryCode, dc.ExitCode, "garbage"} {
			rej := wantRejected(t, f.svc.ScanDailyCode(context.Background(), tc.who, code), RejectMembershipInactive)
			want := tc.name + " : abonnement expiré ou suspendu."
			if rej.Message != want || rej.MemberName != tc.name {
				t.Fatalf("got message=%q memberName=%q, want %q and %q", rej.Message, rej.MemberName, want, tc.name)
			}
		}
	}
	if n := f.ledgerSize(t); n != 0 {
		t.Fatalf("ledger size = %d, want 0", n)
	}
}

func TestScanDailyCode_ExpiredByDateEvenIfActive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dc := f.codes(t)
	rej := wantRejected(t, f.svc.ScanDailyCode(context.Background(), dave, dc.EntryCode), RejectMembershipExpired)
	if !strings.Contains(rej.Message, "expiré") || !strings.Contains(rej.Message, "01/01/2025") {
		t.Fatalf("message = %q, want expiry with 01/01/2025", rej.Message)
	}
	if rej.MemberName != "Dave" {
		t.Fatalf("memberName = %q", rej.MemberName)
	}
	if n := f.ledgerSize(t); n != 0 {
		t.Fatalf("ledger size = %d, want 0", n)
	}
}

func TestScanDailyCode_NoDailyCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, code := range []string{"GYM_ENTRY_20250310_1", "anything"} {
		rej := wantRejected(t, f.svc.ScanDailyCode(context.Background(), alice, code), RejectNoDailyCode)
		if rej.Message != "Aucun code QR généré pour aujourd'hui." {
			t.Fatalf("message = %q", rej.Message)
		}
	}
}

func TestScanDailyCode_InvalidCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.clk.Advance(-24 * time.Hour)
	yesterday := f.codes(t)
	f.clk.Advance(24 * time.Hour)
	today := f.codes(t)

	for _, code := range []string{
		"garbage",
		"",
		yesterday.EntryCode,
		yesterday.ExitCode,
		strings.ToLower(today.EntryCode),
		today.EntryCode + " ",
	} {
		rej := wantRejected(t, f.svc.ScanDailyCode(context.Background(), alice, code), RejectInvalidCode)
		if rej.Message != "Code QR invalide ou expiré." {
			t.Fatalf("message = %q", rej.Message)
		}
	}
	if n := f.ledgerSize(t); n != 0 {
		t.Fatalf("ledger size = %d, want 0", n)
	}
}

func TestScanDailyCode_EntryExitToggle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dc := f.codes(t)

	// No history counts as outside.
	rej := wantRejected(t, f.svc.ScanDailyCode(context.Background(), alice, dc.ExitCode), RejectNotInside)
	if rej.Message != "Vous n'êtes pas à l'intérieur de la salle." || rej.Action != domain.ActionExit {
		t.Fatalf("rejection = %+v", rej)
	}

	acc := wantAccepted(t, f.svc.ScanDailyCode(context.Background(), alice, dc.EntryCode), domain.ActionEntry)
	if acc.Message != "Bienvenue Alice Martin ! Entrée enregistrée." || acc.MemberName != "Alice Martin" {
		t.Fatalf("accepted = %+v", acc)
	}
	if !acc.Timestamp.Equal(f.clk.Now()) || acc.Location != domain.LocationSelfService {
		t.Fatalf("accepted = %+v", acc)
	}

	rej = wantRejected(t, f.svc.ScanDailyCode(context.Background(), alice, dc.EntryCode), RejectAlreadyInside)
	if rej.Message != "Vous êtes déjà à l'intérieur de la salle." {
		t.Fatalf("message = %q", rej.Message)
	}
	if n := f.ledgerSize(t); n != 1 {
		t.Fatalf("ledger size = %d, want 1", n)
	}

	f.clk.Advance(90 * time.Minute)
	acc = wantAccepted(t, f.svc.ScanDailyCode(context.Background(), alice, dc.ExitCode), domain.ActionExit)
	if acc.Message != "Au revoir Alice Martin ! Sortie enregistrée." {
		t.Fatalf("message = %q", acc.Message)
	}
	wantRejected(t, f.svc.ScanDailyCode(context.Background(), alice, dc.ExitCode), RejectNotInside)

	latest, err := f.ledger.Latest(context.Background(), alice.MemberID)
	if err != nil {
		t.Fatalf("Latest err=%v", err)
	}
	if latest.Action != domain.ActionExit || latest.QRCodeScanned != dc.ExitCode || latest.Location != domain.LocationSelfService {
		t.Fatalf("latest = %+v", latest)
	}
	inside, err := f.ledger.ListInside(context.Background())
	if err != nil {
		t.Fatalf("ListInside err=%v", err)
	}
	if len(inside) != 0 {
		t.Fatalf("inside = %+v, want none", inside)
	}
}

func TestStaffScan_InfersActionFromPresence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const aliceCode = "GYM_MEMBER_A11CE0000000"

	acc := wantAccepted(t, f.svc.StaffScan(context.Background(), coach, aliceCode), domain.ActionEntry)
	if acc.MemberID != alice.MemberID || acc.Location != domain.LocationFrontDesk {
		t.Fatalf("accepted = %+v", acc)
	}
	f.clk.Advance(time.Hour)
	wantAccepted(t, f.svc.StaffScan(context.Background(), coach, aliceCode), domain.ActionExit)
	f.clk.Advance(time.Hour)
	wantAccepted(t, f.svc.StaffScan(context.Background(), coach, aliceCode), domain.ActionEntry)

	latest, err := f.ledger.Latest(context.Background(), alice.MemberID)
	if err != nil {
		t.Fatalf("Latest err=%v", err)
	}
	if latest.QRCodeScanned != aliceCode || latest.Location != domain.LocationFrontDesk {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestStaffScan_DoesNotNeedDailyCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wantAccepted(t, f.svc.StaffScan(context.Background(), coach, "GYM_MEMBER_A11CE0000000"), domain.ActionEntry)
}

func TestStaffScan_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wantRejected(t, f.svc.StaffScan(context.Background(), Identity{}, "GYM_MEMBER_A11CE0000000"), RejectNotAuthenticated)
	wantRejected(t, f.svc.StaffScan(context.Background(), alice, "GYM_MEMBER_B0B000000000"), RejectForbidden)

	rej := wantRejected(t, f.svc.StaffScan(context.Background(), coach, "GYM_MEMBER_FFFFFFFFFFFF"), RejectUnknownMember)
	if rej.Message != "Code QR membre introuvable." {
		t.Fatalf("message = %q", rej.Message)
	}
	wantRejected(t, f.svc.StaffScan(context.Background(), coach, "GYM_MEMBER_B0B000000000"), RejectMembershipInactive)

	// The end date is authoritative at the front desk too.
	rej = wantRejected(t, f.svc.StaffScan(context.Background(), coach, "GYM_MEMBER_DA7E00000000"), RejectMembershipExpired)
	if !strings.Contains(rej.Message, "01/01/2025") {
		t.Fatalf("message = %q", rej.Message)
	}
	if n := f.ledgerSize(t); n != 0 {
		t.Fatalf("ledger size = %d, want 0", n)
	}
}

func TestScan_GuardHeldRejectsAsInProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dc := f.codes(t)
	_, ok, err := f.guard.Acquire(context.Background(), alice.MemberID)
	if err != nil || !ok {
		t.Fatalf("Acquire ok=%v err=%v", ok, err)
	}
	rej := wantRejected(t, f.svc.ScanDailyCode(context.Background(), alice, dc.EntryCode), RejectScanInProgress)
	if rej.Message != "Scan déjà en cours. Veuillez patienter." {
		t.Fatalf("message = %q", rej.Message)
	}

	// Once the lock lapses the scan goes through, and releases its own lock.
	f.clk.Advance(6 * time.Second)
	wantAccepted(t, f.svc.ScanDailyCode(context.Background(), alice, dc.EntryCode), domain.ActionEntry)
	wantAccepted(t, f.svc.ScanDailyCode(context.Background(), alice, dc.ExitCode), domain.ActionExit)
}

func TestScan_ConcurrentDoubleScanRecordsOnce(t *testing.T) {
	t.Parallel()

	for _, withGuard := range []bool{true, false} {
		f := newFixture(t)
		if !withGuard {
			f.deps.Guard = nil
			f.svc = NewService(f.deps)
		}
		dc := f.codes(t)

		const n = 8
		results := make([]Result, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = f.svc.ScanDailyCode(context.Background(), alice, dc.EntryCode)
			}(i)
		}
		wg.Wait()

		accepted := 0
		for _, res := range results {
			switch r := res.(type) {
			case Accepted:
				accepted++
			case Rejected:
				if r.Kind != RejectAlreadyInside && r.Kind != RejectScanInProgress {
					t.Fatalf("guard=%v: unexpected rejection %+v", withGuard, r)
				}
			}
		}
		if accepted != 1 {
			t.Fatalf("guard=%v: accepted = %d, want 1", withGuard, accepted)
		}
		if got := f.ledgerSize(t); got != 1 {
			t.Fatalf("guard=%v: ledger size = %d, want 1", withGuard, got)
		}
	}
}

type failingLedger struct {
	accesslog.Repository
	appendErr error
}

func (l failingLedger) Append(context.Context, domain.AccessLogEntry, domain.Presence) error {
	return l.appendErr
}

func TestScan_PersistenceFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dc := f.codes(t)
	f.deps.Ledger = failingLedger{Repository: f.ledger, appendErr: errors.New("connection reset")}
	svc := NewService(f.deps)

	rej := wantRejected(t, svc.ScanDailyCode(context.Background(), alice, dc.EntryCode), RejectPersistenceFailure)
	if rej.Message != "Erreur lors de l'enregistrement de l'accès." || rej.Action != domain.ActionEntry {
		t.Fatalf("rejection = %+v", rej)
	}
	if n := f.ledgerSize(t); n != 0 {
		t.Fatalf("ledger size = %d, want 0", n)
	}
}

func TestScan_PresenceConflictMapsToToggle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dc := f.codes(t)
	f.deps.Ledger = failingLedger{Repository: f.ledger, appendErr: accesslog.ErrPresenceConflict}
	svc := NewService(f.deps)

	wantRejected(t, svc.ScanDailyCode(context.Background(), alice, dc.EntryCode), RejectAlreadyInside)
}

type failingMemberships struct {
	membershiprepo.Repository
}

func (failingMemberships) ListByMember(context.Context, domain.MemberID) ([]domain.Membership, error) {
	return nil, errors.New("timeout")
}

type panickingCodes struct{}

func (panickingCodes) Today(context.Context) (domain.DailyCode, bool, error) {
	panic("unexpected nil")
}

func TestScan_TechnicalFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	deps := f.deps
	deps.Memberships = failingMemberships{}
	rej := wantRejected(t, NewService(deps).ScanDailyCode(context.Background(), alice, "x"), RejectTechnicalFailure)
	if rej.Message != "Erreur technique. Veuillez réessayer." {
		t.Fatalf("message = %q", rej.Message)
	}

	deps = f.deps
	deps.Codes = panickingCodes{}
	wantRejected(t, NewService(deps).ScanDailyCode(context.Background(), alice, "x"), RejectTechnicalFailure)
}

func TestPolicyFor(t *testing.T) {
	t.Parallel()

	self := PolicyFor(ScanSelf)
	if !self.MatchDailyCode || self.ResolvePersonalCode || self.InferAction || self.Location != domain.LocationSelfService {
		t.Fatalf("self policy = %+v", self)
	}
	staff := PolicyFor(ScanStaff)
	if staff.MatchDailyCode || !staff.ResolvePersonalCode || !staff.InferAction || !staff.RequireStaffOperator || staff.Location != domain.LocationFrontDesk {
		t.Fatalf("staff policy = %+v", staff)
	}
	if !self.RequireUnexpired || !staff.RequireUnexpired {
		t.Fatalf("expiry must be checked in both modes")
	}
	if got := PolicyFor("kiosk"); got.Mode != ScanSelf {
		t.Fatalf("unknown mode policy = %+v", got)
	}
}
