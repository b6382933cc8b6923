package access

import (
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

// Identity is the authenticated caller of a scan.
// An empty MemberID means the caller is not signed in.
type Identity struct {
	MemberID domain.MemberID
}

func (i Identity) Authenticated() bool { return i.MemberID != "" }

// ScanMode selects where a scan happens and therefore which checks apply.
type ScanMode string

const (
	// ScanSelf is a member scanning the daily code displayed at the entrance.
	ScanSelf ScanMode = "self"
	// ScanStaff is a coach or admin scanning the member's personal code at the front desk.
	ScanStaff ScanMode = "staff"
)

// Policy enumerates the checks run for a scan mode.
type Policy struct {
	Mode ScanMode

	// MatchDailyCode requires the scanned string to equal today's entry or exit code.
	MatchDailyCode bool
	// ResolvePersonalCode identifies the member by the scanned personal code.
	ResolvePersonalCode bool
	RequireStaffOperator bool
	RequireActiveStatus bool
	// RequireUnexpired rejects memberships whose end date has passed, whatever their status.
	RequireUnexpired bool
	// InferAction derives entry or exit from the member's presence instead of the scanned code.
	InferAction bool

	Location domain.Location
}

// PolicyFor returns the policy of mode. Unknown modes get the self-service policy.
func PolicyFor(mode ScanMode) Policy {
	if mode == ScanStaff {
		return Policy{
			Mode:                 ScanStaff,
			ResolvePersonalCode:  true,
			RequireStaffOperator: true,
			RequireActiveStatus:  true,
			RequireUnexpired:     true,
			InferAction:          true,
			Location:             domain.LocationFrontDesk,
		}
	}
	return Policy{
		Mode:                ScanSelf,
		MatchDailyCode:      true,
		RequireActiveStatus: true,
		RequireUnexpired:    true,
		Location:            domain.LocationSelfService,
	}
}

// RejectionKind classifies why a scan was refused.
type RejectionKind string

const (
	RejectNotAuthenticated   RejectionKind = "not_authenticated"
	RejectForbidden          RejectionKind = "forbidden"
	RejectUnknownMember      RejectionKind = "unknown_member"
	RejectMembershipInactive RejectionKind = "membership_inactive"
	RejectMembershipExpired  RejectionKind = "membership_expired"
	RejectNoDailyCode        RejectionKind = "no_daily_code"
	RejectInvalidCode        RejectionKind = "invalid_code"
	RejectAlreadyInside      RejectionKind = "already_inside"
	RejectNotInside          RejectionKind = "not_inside"
	RejectScanInProgress     RejectionKind = "scan_in_progress"
	RejectPersistenceFailure RejectionKind = "persistence_failure"
	RejectTechnicalFailure   RejectionKind = "technical_failure"
)

// Result is either Accepted or Rejected.
type Result interface {
	isResult()
}

// Accepted reports a recorded entry or exit.
type Accepted struct {
	Action     domain.AccessAction
	MemberID   domain.MemberID
	MemberName string
	Message    string
	Location   domain.Location
	Timestamp  time.Time
}

// Rejected reports a refused scan. Nothing was written.
// Action and MemberName are set when they were known at the point of rejection.
type Rejected struct {
	Kind       RejectionKind
	Message    string
	Action     domain.AccessAction
	MemberName string
}

func (Accepted) isResult() {}
func (Rejected) isResult() {}
