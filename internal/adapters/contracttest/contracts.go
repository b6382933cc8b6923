package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	accesslogport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
	dailycoderepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
	idempotencyport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
	memberrepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
	membershiprepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
	scanguardport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/scanguard"
)

type CleanupFunc = func()

type MemberRepoFactory func(t *testing.T) (memberrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)
type DailyCodeRepoFactory func(t *testing.T) (dailycoderepoport.Repository, CleanupFunc)

// MembershipRepoFactory and AccessLogFactory receive the member IDs the suite will
// reference; SQL-backed factories must seed those members before returning.
type MembershipRepoFactory func(t *testing.T, memberIDs []domain.MemberID) (membershiprepoport.Repository, CleanupFunc)
type AccessLogFactory func(t *testing.T, memberIDs []domain.MemberID) (accesslogport.Repository, CleanupFunc)

// ScanGuardFactory returns a guard and a function that moves the guard's notion of time forward.
type ScanGuardFactory func(t *testing.T) (scanguardport.Guard, func(time.Duration))

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      "k-1",
		Subject:  domain.SubjectID("sub-1"),
		Method:   "POST",
		Route:    "/access/scan",
		BodyHash: "",
	}
	rec := idempotencyport.Record{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"success":true}`),
		CreatedAt:   time.Unix(1000, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"success":true}` || got.ContentType != "application/json" || got.StatusCode != 200 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"success":false}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"success":false}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Different body hash is a different request.
	other := fp
	other.BodyHash = "different"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("expected miss for different fingerprint, ok=%v err=%v", ok, err)
	}

	// Responses without a body replay as empty.
	empty := fp
	empty.Key = "k-empty"
	if err := store.Put(ctx, empty, idempotencyport.Record{StatusCode: 204, ContentType: "application/json", CreatedAt: time.Unix(1000, 0).UTC()}); err != nil {
		t.Fatalf("Put without body: %v", err)
	}
	got, ok, err = store.Get(ctx, empty)
	if err != nil || !ok {
		t.Fatalf("Get without body: ok=%v err=%v", ok, err)
	}
	if got.StatusCode != 204 || len(got.Body) != 0 {
		t.Fatalf("got status=%d body=%q, want 204 and empty body", got.StatusCode, got.Body)
	}

	// Pruning.
	fresh := fp
	fresh.Key = "k-2"
	if err := store.Put(ctx, fresh, idempotencyport.Record{StatusCode: 201, ContentType: "application/json", Body: []byte("{}"), CreatedAt: time.Unix(5000, 0).UTC()}); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}
	n, err := store.PruneOlderThan(ctx, time.Unix(2000, 0).UTC())
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 2 {
		t.Fatalf("PruneOlderThan removed %d, want 2", n)
	}
	if _, ok, _ := store.Get(ctx, fp); ok {
		t.Fatalf("expected pruned record to be gone")
	}
	if _, ok, _ := store.Get(ctx, fresh); !ok {
		t.Fatalf("expected fresh record to survive pruning")
	}
}

func RunMemberRepo(t *testing.T, newRepo MemberRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	aID := domain.MemberID(uuid.NewString())
	sub := domain.SubjectID("sub-a")
	phone := "0612345678"
	if err := repo.Create(ctx, memberrepoport.Member{
		ID:          aID,
		Subject:     sub,
		DisplayName: "Alice Johnson",
		Email:       "alice@example.com",
		Phone:       &phone,
		QRCode:      "GYM_MEMBER_AAAAAAAAAAAA",
		Role:        domain.RoleMember,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	got, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Phone == nil || *got.Phone != phone || got.Role != domain.RoleMember || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected member: %#v", got)
	}
	if _, err := repo.GetBySubject(ctx, sub); err != nil {
		t.Fatalf("GetBySubject: %v", err)
	}
	if got, err := repo.GetByQRCode(ctx, "GYM_MEMBER_AAAAAAAAAAAA"); err != nil || got.ID != aID {
		t.Fatalf("GetByQRCode: id=%q err=%v", got.ID, err)
	}
	if _, err := repo.GetByQRCode(ctx, "GYM_MEMBER_NOPE"); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByQRCode unknown: err=%v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, domain.MemberID(uuid.NewString())); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("GetByID unknown: err=%v, want ErrNotFound", err)
	}

	// Subject uniqueness.
	if err := repo.Create(ctx, memberrepoport.Member{
		ID:          domain.MemberID(uuid.NewString()),
		Subject:     sub,
		DisplayName: "Alice 2",
		Email:       "alice2@example.com",
		QRCode:      "GYM_MEMBER_AAAAAAAAAAA2",
		Role:        domain.RoleMember,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); !errors.Is(err, memberrepoport.ErrSubjectAlreadyBound) {
		t.Fatalf("expected subject uniqueness error, got %v", err)
	}

	// QR code uniqueness.
	if err := repo.Create(ctx, memberrepoport.Member{
		ID:          domain.MemberID(uuid.NewString()),
		Subject:     domain.SubjectID("sub-qr"),
		DisplayName: "Copycat",
		Email:       "copy@example.com",
		QRCode:      "GYM_MEMBER_AAAAAAAAAAAA",
		Role:        domain.RoleMember,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); !errors.Is(err, memberrepoport.ErrQRCodeTaken) {
		t.Fatalf("expected qr code uniqueness error, got %v", err)
	}

	// Deterministic list ordering by displayName (case-insensitive).
	bID := domain.MemberID(uuid.NewString())
	if err := repo.Create(ctx, memberrepoport.Member{
		ID:          bID,
		Subject:     domain.SubjectID("sub-b"),
		DisplayName: "bob",
		Email:       "bob@example.com",
		QRCode:      "GYM_MEMBER_BBBBBBBBBBBB",
		Role:        domain.RoleCoach,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	cs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cs) != 2 || cs[0].DisplayName != "Alice Johnson" || cs[1].ID != bID {
		t.Fatalf("unexpected ordering: %#v", cs)
	}

	byIDs, err := repo.ListByIDs(ctx, []domain.MemberID{aID, bID, domain.MemberID(uuid.NewString())})
	if err != nil {
		t.Fatalf("ListByIDs: %v", err)
	}
	if len(byIDs) != 2 || byIDs[bID].Role != domain.RoleCoach {
		t.Fatalf("unexpected ListByIDs: %#v", byIDs)
	}

	// Update: display name, role, clearing phone.
	upd := got
	upd.DisplayName = "Alice Martin"
	upd.Role = domain.RoleAdmin
	upd.Phone = nil
	upd.UpdatedAt = now.Add(time.Hour)
	if err := repo.Update(ctx, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.DisplayName != "Alice Martin" || got.Role != domain.RoleAdmin || got.Phone != nil {
		t.Fatalf("unexpected updated member: %#v", got)
	}
	missing := upd
	missing.ID = domain.MemberID(uuid.NewString())
	missing.Subject = "sub-missing"
	if err := repo.Update(ctx, missing); !errors.Is(err, memberrepoport.ErrNotFound) {
		t.Fatalf("Update unknown: err=%v, want ErrNotFound", err)
	}

	// Search token match (AND across tokens), limit.
	res, err := repo.SearchByDisplayName(ctx, "ali ma", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].ID != aID {
		t.Fatalf("unexpected search result: %#v", res)
	}
	res, err = repo.SearchByDisplayName(ctx, "o", 1)
	if err != nil {
		t.Fatalf("Search limit: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected limit to apply, got %d results", len(res))
	}
}

func RunMembershipRepo(t *testing.T, newRepo MembershipRepoFactory) {
	t.Helper()
	ctx := context.Background()

	m1 := domain.MemberID(uuid.NewString())
	m2 := domain.MemberID(uuid.NewString())
	repo, cleanup := newRepo(t, []domain.MemberID{m1, m2})
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1_700_000_000, 0).UTC()
	older := domain.Membership{
		ID:        domain.MembershipID(uuid.NewString()),
		MemberID:  m1,
		Type:      domain.MembershipBasic,
		Status:    domain.MembershipExpired,
		StartDate: now.AddDate(-1, 0, 0),
		EndDate:   now.AddDate(0, -1, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	newer := domain.Membership{
		ID:        domain.MembershipID(uuid.NewString()),
		MemberID:  m1,
		Type:      domain.MembershipPremium,
		Status:    domain.MembershipActive,
		StartDate: now,
		EndDate:   now.AddDate(1, 0, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range []domain.Membership{older, newer} {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("Create %s: %v", m.ID, err)
		}
	}
	if err := repo.Create(ctx, older); !errors.Is(err, membershiprepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate: err=%v, want ErrAlreadyExists", err)
	}

	got, err := repo.GetByID(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Type != domain.MembershipPremium || got.Status != domain.MembershipActive || !got.EndDate.Equal(newer.EndDate) {
		t.Fatalf("unexpected membership: %#v", got)
	}
	if _, err := repo.GetByID(ctx, domain.MembershipID(uuid.NewString())); !errors.Is(err, membershiprepoport.ErrNotFound) {
		t.Fatalf("GetByID unknown: err=%v, want ErrNotFound", err)
	}

	list, err := repo.ListByMember(ctx, m1)
	if err != nil {
		t.Fatalf("ListByMember: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("expected newest end date first, got %#v", list)
	}
	if list, err := repo.ListByMember(ctx, m2); err != nil || len(list) != 0 {
		t.Fatalf("ListByMember(no memberships): len=%d err=%v", len(list), err)
	}

	// Update status and end date.
	newer.Status = domain.MembershipSuspended
	newer.EndDate = now.AddDate(0, 6, 0)
	newer.UpdatedAt = now.Add(time.Hour)
	if err := repo.Update(ctx, newer); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.GetByID(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.Status != domain.MembershipSuspended || !got.EndDate.Equal(newer.EndDate) {
		t.Fatalf("unexpected updated membership: %#v", got)
	}
	unknown := newer
	unknown.ID = domain.MembershipID(uuid.NewString())
	if err := repo.Update(ctx, unknown); !errors.Is(err, membershiprepoport.ErrNotFound) {
		t.Fatalf("Update unknown: err=%v, want ErrNotFound", err)
	}

	batch, err := repo.ListByMembers(ctx, []domain.MemberID{m1, m2})
	if err != nil {
		t.Fatalf("ListByMembers: %v", err)
	}
	if len(batch[m1]) != 2 || len(batch[m2]) != 0 {
		t.Fatalf("unexpected batch: %#v", batch)
	}
}

func RunDailyCodeRepo(t *testing.T, newRepo DailyCodeRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if _, err := repo.GetByDate(ctx, "2025-06-15"); !errors.Is(err, dailycoderepoport.ErrNotFound) {
		t.Fatalf("GetByDate empty: err=%v, want ErrNotFound", err)
	}

	created := time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC)
	dc := domain.DailyCode{
		Date:       "2025-06-15",
		EntryCode:  "GYM_ENTRY_20250615_1749967200000",
		ExitCode:   "GYM_EXIT_20250615_1749967200000",
		ValidUntil: time.Date(2025, 6, 15, 21, 59, 59, 999_000_000, time.UTC),
		CreatedAt:  created,
	}
	if err := repo.Create(ctx, dc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByDate(ctx, "2025-06-15")
	if err != nil {
		t.Fatalf("GetByDate: %v", err)
	}
	if got.EntryCode != dc.EntryCode || got.ExitCode != dc.ExitCode || !got.ValidUntil.Equal(dc.ValidUntil) || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected daily code: %#v", got)
	}

	// At most one record per date; the first one wins.
	again := dc
	again.EntryCode = "GYM_ENTRY_20250615_1749970800000"
	if err := repo.Create(ctx, again); !errors.Is(err, dailycoderepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate date: err=%v, want ErrAlreadyExists", err)
	}
	got, _ = repo.GetByDate(ctx, "2025-06-15")
	if got.EntryCode != dc.EntryCode {
		t.Fatalf("duplicate create must not overwrite, got %q", got.EntryCode)
	}
}
