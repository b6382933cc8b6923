package domain

import "time"

type MembershipType string

const (
	MembershipBasic   MembershipType = "basic"
	MembershipPremium MembershipType = "premium"
	MembershipVIP     MembershipType = "vip"
)

func (t MembershipType) Valid() bool {
	switch t {
	case MembershipBasic, MembershipPremium, MembershipVIP:
		return true
	}
	return false
}

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipSuspended MembershipStatus = "suspended"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipActive, MembershipExpired, MembershipSuspended:
		return true
	}
	return false
}

type Membership struct {
	ID       MembershipID
	MemberID MemberID

	Type   MembershipType
	Status MembershipStatus

	StartDate time.Time
	EndDate   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredAt reports whether the membership end date lies before now.
// Status is not consulted: the end date is authoritative.
func (m Membership) ExpiredAt(now time.Time) bool {
	return m.EndDate.Before(now)
}

// FirstActive returns the first membership whose status is active.
// Callers pass memberships in repository order (newest end date first).
func FirstActive(ms []Membership) (Membership, bool) {
	for _, m := range ms {
		if m.Status == MembershipActive {
			return m, true
		}
	}
	return Membership{}, false
}
