package memberrepo

import (
	"context"
	"testing"
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
)

func member(id, sub, name, code string) memberrepo.Member {
	return memberrepo.Member{
		ID:          domain.MemberID(id),
		Subject:     domain.SubjectID(sub),
		DisplayName: name,
		QRCode:      code,
		Role:        domain.RoleMember,
	}
}

func TestRepo_CreateAndGet(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	now := time.Unix(100, 0).UTC()

	m := member("m1", "sub-1", "Marie Dupont", "GYM_MEMBER_A1")
	m.Email = "marie@example.com"
	m.CreatedAt, m.UpdatedAt = now, now

	if err := r.Create(context.Background(), m); err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	gotByID, err := r.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetByID() err=%v", err)
	}
	if gotByID.ID != m.ID || gotByID.Subject != m.Subject || gotByID.DisplayName != m.DisplayName {
		t.Fatalf("GetByID()=%+v, want %+v", gotByID, m)
	}

	gotBySub, err := r.GetBySubject(context.Background(), m.Subject)
	if err != nil {
		t.Fatalf("GetBySubject() err=%v", err)
	}
	if gotBySub.ID != m.ID {
		t.Fatalf("GetBySubject().ID=%q, want %q", gotBySub.ID, m.ID)
	}

	gotByCode, err := r.GetByQRCode(context.Background(), "GYM_MEMBER_A1")
	if err != nil {
		t.Fatalf("GetByQRCode() err=%v", err)
	}
	if gotByCode.ID != m.ID {
		t.Fatalf("GetByQRCode().ID=%q, want %q", gotByCode.ID, m.ID)
	}
	if _, err := r.GetByQRCode(context.Background(), "gym_member_a1"); err != memberrepo.ErrNotFound {
		t.Fatalf("GetByQRCode(lowercase) err=%v, want %v", err, memberrepo.ErrNotFound)
	}
}

func TestRepo_CreateRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	if err := r.Create(context.Background(), member("m1", "sub-1", "A", "C1")); err != nil {
		t.Fatalf("Create(m1) err=%v", err)
	}

	cases := []struct {
		name string
		m    memberrepo.Member
		want error
	}{
		{"duplicate id", member("m1", "sub-2", "B", "C2"), memberrepo.ErrAlreadyExists},
		{"duplicate subject", member("m2", "sub-1", "B", "C2"), memberrepo.ErrSubjectAlreadyBound},
		{"duplicate qr code", member("m2", "sub-2", "B", "C1"), memberrepo.ErrQRCodeTaken},
	}
	for _, tc := range cases {
		if err := r.Create(context.Background(), tc.m); err != tc.want {
			t.Fatalf("%s: Create() err=%v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestRepo_UpdateRequiresExistingAndImmutableSubject(t *testing.T) {
	t.Parallel()

	r := NewRepo()

	m := member("m1", "sub-1", "Alice", "C1")
	if err := r.Update(context.Background(), m); err != memberrepo.ErrNotFound {
		t.Fatalf("Update(nonexistent) err=%v, want %v", err, memberrepo.ErrNotFound)
	}

	if err := r.Create(context.Background(), m); err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	changedSubject := member("m1", "sub-2", "Alice", "C1")
	if err := r.Update(context.Background(), changedSubject); err != memberrepo.ErrSubjectAlreadyBound {
		t.Fatalf("Update(changed subject) err=%v, want %v", err, memberrepo.ErrSubjectAlreadyBound)
	}

	updated := member("m1", "sub-1", "Alice Z", "C1-NEW")
	updated.Role = domain.RoleCoach
	if err := r.Update(context.Background(), updated); err != nil {
		t.Fatalf("Update() err=%v", err)
	}
	got, err := r.GetByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetByID() err=%v", err)
	}
	if got.DisplayName != "Alice Z" || got.Role != domain.RoleCoach {
		t.Fatalf("GetByID() after update=%+v", got)
	}
	if _, err := r.GetByQRCode(context.Background(), "C1"); err != memberrepo.ErrNotFound {
		t.Fatalf("old code should be released, err=%v", err)
	}
	if _, err := r.GetByQRCode(context.Background(), "C1-NEW"); err != nil {
		t.Fatalf("GetByQRCode(new) err=%v", err)
	}
}

func TestRepo_ClonesPhone(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	phone := "0600000000"
	m := member("m1", "sub-1", "A", "C1")
	m.Phone = &phone
	if err := r.Create(context.Background(), m); err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	phone = "changed"

	got, _ := r.GetByID(context.Background(), "m1")
	if got.Phone == nil || *got.Phone != "0600000000" {
		t.Fatalf("stored phone mutated via caller pointer: %v", got.Phone)
	}
}

func TestRepo_ListOrdersByDisplayName(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	_ = r.Create(context.Background(), member("m2", "s2", "bob", "C2"))
	_ = r.Create(context.Background(), member("m1", "s1", "Alice", "C1"))
	_ = r.Create(context.Background(), member("m3", "s3", "Bob", "C3"))

	got, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() len=%d, want 3", len(got))
	}
	// Case-insensitive sort; tie breaks by ID.
	if got[0].DisplayName != "Alice" || got[1].ID != "m2" || got[2].ID != "m3" {
		t.Fatalf("List() order=%v", []domain.MemberID{got[0].ID, got[1].ID, got[2].ID})
	}
}

func TestRepo_ListByIDsSkipsUnknown(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	_ = r.Create(context.Background(), member("m1", "s1", "A", "C1"))
	_ = r.Create(context.Background(), member("m2", "s2", "B", "C2"))

	got, err := r.ListByIDs(context.Background(), []domain.MemberID{"m1", "missing"})
	if err != nil {
		t.Fatalf("ListByIDs() err=%v", err)
	}
	if len(got) != 1 || got["m1"].DisplayName != "A" {
		t.Fatalf("ListByIDs()=%v", got)
	}
}

func TestRepo_SearchByDisplayName_TokenizedCaseInsensitive(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	_ = r.Create(context.Background(), member("m1", "s1", "John Smith", "C1"))
	_ = r.Create(context.Background(), member("m2", "s2", "Joanna Smythe", "C2"))
	_ = r.Create(context.Background(), member("m3", "s3", "John  Q  Public", "C3"))

	got, err := r.SearchByDisplayName(context.Background(), "SMI joH", 10)
	if err != nil {
		t.Fatalf("SearchByDisplayName() err=%v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("SearchByDisplayName()=%v, want [m1]", got)
	}
}

func TestRepo_SearchByDisplayName_RespectsLimit(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	_ = r.Create(context.Background(), member("m1", "s1", "Ann A", "C1"))
	_ = r.Create(context.Background(), member("m2", "s2", "Ann B", "C2"))

	got, err := r.SearchByDisplayName(context.Background(), "ann", 1)
	if err != nil {
		t.Fatalf("SearchByDisplayName() err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len=%d, want 1", len(got))
	}
}
