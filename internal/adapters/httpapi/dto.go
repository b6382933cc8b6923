package httpapi

import (
	"net/http"
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/ironhall-fitness/gym-access-api/internal/app/access"
	"github.com/ironhall-fitness/gym-access-api/internal/app/ledger"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

type MemberProfile struct {
	MemberId    string                    `json:"memberId"`
	DisplayName string                    `json:"displayName"`
	Email       openapi_types.Email       `json:"email"`
	Phone       nullable.Nullable[string] `json:"phone"`
	QrCode      string                    `json:"qrCode"`
	Role        string                    `json:"role"`
	CreatedAt   time.Time                 `json:"createdAt"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
}

type MemberProfileResponse struct {
	Member MemberProfile `json:"member"`
}

type MemberDirectoryEntry struct {
	MemberId    string `json:"memberId"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type MemberDirectoryResponse struct {
	Members []MemberDirectoryEntry `json:"members"`
}

type CreateMyMemberRequest struct {
	DisplayName string              `json:"displayName"`
	Email       openapi_types.Email `json:"email"`
	Phone       *string             `json:"phone,omitempty"`
}

type UpdateMyMemberProfileRequest struct {
	DisplayName nullable.Nullable[string]              `json:"displayName,omitempty"`
	Email       nullable.Nullable[openapi_types.Email] `json:"email,omitempty"`
	Phone       nullable.Nullable[string]              `json:"phone,omitempty"`
}

type SetMemberRoleRequest struct {
	Role string `json:"role"`
}

type Membership struct {
	MembershipId string             `json:"membershipId"`
	MemberId     string             `json:"memberId"`
	Type         string             `json:"type"`
	Status       string             `json:"status"`
	StartDate    openapi_types.Date `json:"startDate"`
	EndDate      openapi_types.Date `json:"endDate"`
}

type MembershipResponse struct {
	Membership Membership `json:"membership"`
}

type MembershipListResponse struct {
	Memberships []Membership `json:"memberships"`
}

type CreateMembershipRequest struct {
	Type      string             `json:"type"`
	Status    string             `json:"status"`
	StartDate openapi_types.Date `json:"startDate"`
	EndDate   openapi_types.Date `json:"endDate"`
}

type UpdateMembershipRequest struct {
	Status  nullable.Nullable[string]             `json:"status,omitempty"`
	EndDate nullable.Nullable[openapi_types.Date] `json:"endDate,omitempty"`
}

type DailyCodes struct {
	Date       openapi_types.Date `json:"date"`
	EntryCode  string             `json:"entryCode"`
	ExitCode   string             `json:"exitCode"`
	ValidUntil time.Time          `json:"validUntil"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type ScanRequest struct {
	Code string `json:"code"`
}

// ScanResponse is the body of every scan outcome, accepted or not.
type ScanResponse struct {
	Success    bool       `json:"success"`
	Code       string     `json:"code,omitempty"`
	Action     string     `json:"action,omitempty"`
	MemberName string     `json:"memberName,omitempty"`
	Message    string     `json:"message"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

type InsideMember struct {
	MemberId         string                                `json:"memberId"`
	DisplayName      string                                `json:"displayName"`
	Email            string                                `json:"email"`
	QrCode           string                                `json:"qrCode"`
	MembershipType   nullable.Nullable[string]             `json:"membershipType"`
	MembershipStatus nullable.Nullable[string]             `json:"membershipStatus"`
	MembershipEnd    nullable.Nullable[openapi_types.Date] `json:"membershipEndDate"`
	EnteredAt        time.Time                             `json:"enteredAt"`
	Inside           bool                                  `json:"inside"`
}

type InsideResponse struct {
	Count   int            `json:"count"`
	Members []InsideMember `json:"members"`
}

type LogEntry struct {
	Id            string    `json:"id"`
	MemberId      string    `json:"memberId"`
	DisplayName   string    `json:"displayName"`
	Email         string    `json:"email"`
	Action        string    `json:"action"`
	QrCodeScanned string    `json:"qrCodeScanned"`
	Location      string    `json:"location"`
	Timestamp     time.Time `json:"timestamp"`
}

type LogResponse struct {
	Entries []LogEntry `json:"entries"`
}

type StatsResponse struct {
	Date            openapi_types.Date `json:"date"`
	Entries         int                `json:"entries"`
	Exits           int                `json:"exits"`
	UniqueMembers   int                `json:"uniqueMembers"`
	CurrentlyInside int                `json:"currentlyInside"`
	PeakHour        *int               `json:"peakHour"`
}

type PresenceResponse struct {
	State     string                       `json:"state"`
	LastEvent nullable.Nullable[LastEvent] `json:"lastEvent"`
}

type LastEvent struct {
	Action    string    `json:"action"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

func memberProfileFromDomain(m domain.Member) MemberProfile {
	return MemberProfile{
		MemberId:    string(m.ID),
		DisplayName: m.DisplayName,
		Email:       openapi_types.Email(m.Email),
		Phone:       nullableString(m.Phone),
		QrCode:      m.QRCode,
		Role:        string(m.Role),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (s *Server) membershipFromDomain(m domain.Membership) Membership {
	return Membership{
		MembershipId: string(m.ID),
		MemberId:     string(m.MemberID),
		Type:         string(m.Type),
		Status:       string(m.Status),
		StartDate:    s.dateOf(m.StartDate),
		EndDate:      s.dateOf(m.EndDate),
	}
}

func (s *Server) dailyCodesFromDomain(dc domain.DailyCode) DailyCodes {
	out := DailyCodes{
		EntryCode:  dc.EntryCode,
		ExitCode:   dc.ExitCode,
		ValidUntil: dc.ValidUntil,
		CreatedAt:  dc.CreatedAt,
	}
	if d, err := time.Parse(domain.DateKeyLayout, dc.Date); err == nil {
		out.Date = openapi_types.Date{Time: d}
	}
	return out
}

func scanResponseFromResult(res access.Result) (int, ScanResponse) {
	switch r := res.(type) {
	case access.Accepted:
		ts := r.Timestamp
		return http.StatusOK, ScanResponse{
			Success:    true,
			Action:     string(r.Action),
			MemberName: r.MemberName,
			Message:    r.Message,
			Timestamp:  &ts,
		}
	case access.Rejected:
		return rejectionStatus(r.Kind), ScanResponse{
			Success:    false,
			Code:       string(r.Kind),
			Action:     string(r.Action),
			MemberName: r.MemberName,
			Message:    r.Message,
		}
	}
	return http.StatusServiceUnavailable, ScanResponse{Success: false, Code: string(access.RejectTechnicalFailure), Message: "Erreur technique. Veuillez réessayer."}
}

func rejectionStatus(k access.RejectionKind) int {
	switch k {
	case access.RejectNotAuthenticated:
		return http.StatusUnauthorized
	case access.RejectMembershipInactive, access.RejectMembershipExpired, access.RejectForbidden:
		return http.StatusForbidden
	case access.RejectUnknownMember, access.RejectNoDailyCode:
		return http.StatusNotFound
	case access.RejectInvalidCode:
		return http.StatusUnprocessableEntity
	case access.RejectAlreadyInside, access.RejectNotInside, access.RejectScanInProgress:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) insideFromLedger(v ledger.InsideView) InsideMember {
	out := InsideMember{
		MemberId:    string(v.MemberID),
		DisplayName: v.DisplayName,
		Email:       v.Email,
		QrCode:      v.QRCode,
		EnteredAt:   v.EnteredAt,
		Inside:      true,
	}
	if v.Membership != nil {
		out.MembershipType = nullable.NewNullableWithValue(string(v.Membership.Type))
		out.MembershipStatus = nullable.NewNullableWithValue(string(v.Membership.Status))
		out.MembershipEnd = nullable.NewNullableWithValue(s.dateOf(v.Membership.EndDate))
	} else {
		out.MembershipType = nullable.NewNullNullable[string]()
		out.MembershipStatus = nullable.NewNullNullable[string]()
		out.MembershipEnd = nullable.NewNullNullable[openapi_types.Date]()
	}
	return out
}

func logEntriesFromLedger(vs []ledger.LogView) []LogEntry {
	out := make([]LogEntry, 0, len(vs))
	for _, v := range vs {
		out = append(out, LogEntry{
			Id:            string(v.Entry.ID),
			MemberId:      string(v.Entry.MemberID),
			DisplayName:   v.DisplayName,
			Email:         v.Email,
			Action:        string(v.Entry.Action),
			QrCodeScanned: v.Entry.QRCodeScanned,
			Location:      string(v.Entry.Location),
			Timestamp:     v.Entry.Timestamp,
		})
	}
	return out
}

// dateOf renders the gym-local calendar day of t.
func (s *Server) dateOf(t time.Time) openapi_types.Date {
	d, _ := time.Parse(domain.DateKeyLayout, s.Cal.DateKey(t))
	return openapi_types.Date{Time: d}
}

func nullableString(p *string) nullable.Nullable[string] {
	if p == nil {
		return nullable.NewNullNullable[string]()
	}
	return nullable.NewNullableWithValue(*p)
}
