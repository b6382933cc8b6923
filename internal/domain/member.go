package domain

import "time"

type Role string

const (
	RoleMember Role = "member"
	RoleCoach  Role = "coach"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleCoach, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may operate the front desk and read the ledger.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleCoach }

// Member is the domain representation of a member profile.
type Member struct {
	ID      MemberID
	Subject SubjectID

	DisplayName string
	Email       string
	Phone       *string

	// QRCode is the member's personal access code, scanned at the front desk.
	QRCode string
	Role   Role

	CreatedAt time.Time
	UpdatedAt time.Time
}
