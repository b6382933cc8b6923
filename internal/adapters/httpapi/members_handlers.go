package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"

	"github.com/ironhall-fitness/gym-access-api/internal/app/apperr"
	"github.com/ironhall-fitness/gym-access-api/internal/app/members"
	"github.com/ironhall-fitness/gym-access-api/internal/app/memberships"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

func (s *Server) CreateMyMember(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	var body CreateMyMemberRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	m, err := s.Members.CreateMyMember(r.Context(), sub, members.CreateMyMemberInput{
		DisplayName: body.DisplayName,
		Email:       string(body.Email),
		Phone:       body.Phone,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MemberProfileResponse{Member: memberProfileFromDomain(m)})
}

func (s *Server) GetMyMemberProfile(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	m, err := s.Members.GetMyMemberProfile(r.Context(), sub)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberProfileResponse{Member: memberProfileFromDomain(m)})
}

func (s *Server) UpdateMyMemberProfile(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	var body UpdateMyMemberProfileRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	in := members.UpdateMyMemberProfileInput{
		DisplayName: optionalFromNullable(body.DisplayName),
		Phone:       optionalFromNullable(body.Phone),
	}
	if body.Email.IsSpecified() {
		if body.Email.IsNull() {
			in.Email = members.Null[string]()
		} else if v, err := body.Email.Get(); err == nil {
			in.Email = members.Some(string(v))
		}
	}
	m, err := s.Members.UpdateMyMemberProfile(r.Context(), sub, in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberProfileResponse{Member: memberProfileFromDomain(m)})
}

func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	ms, err := s.Members.ListMembers(r.Context(), sub)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberDirectoryResponse{Members: directoryFromDomain(ms)})
}

func (s *Server) SearchMembers(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	ms, err := s.Members.SearchMembers(r.Context(), sub, r.URL.Query().Get("q"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberDirectoryResponse{Members: directoryFromDomain(ms)})
}

func (s *Server) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	var body SetMemberRoleRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	m, err := s.Members.SetMemberRole(r.Context(), sub, members.SetRoleInput{
		MemberID: domain.MemberID(chi.URLParam(r, "memberId")),
		Role:     domain.Role(body.Role),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberProfileResponse{Member: memberProfileFromDomain(m)})
}

func (s *Server) ListMyMemberships(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	ms, err := s.Memberships.ListMyMemberships(r.Context(), sub)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := make([]Membership, 0, len(ms))
	for _, m := range ms {
		out = append(out, s.membershipFromDomain(m))
	}
	writeJSON(w, http.StatusOK, MembershipListResponse{Memberships: out})
}

func (s *Server) CreateMembership(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	var body CreateMembershipRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.StartDate.IsZero() || body.EndDate.IsZero() {
		s.writeAppError(w, r, apperr.Validation("missing dates", "startDate", "startDate and endDate are required"))
		return
	}
	m, err := s.Memberships.CreateMembership(r.Context(), sub, domain.MemberID(chi.URLParam(r, "memberId")), memberships.CreateInput{
		Type:      domain.MembershipType(body.Type),
		Status:    domain.MembershipStatus(body.Status),
		StartDate: body.StartDate.Format(domain.DateKeyLayout),
		EndDate:   body.EndDate.Format(domain.DateKeyLayout),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MembershipResponse{Membership: s.membershipFromDomain(m)})
}

func (s *Server) UpdateMembership(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	var body UpdateMembershipRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	var in memberships.UpdateInput
	if body.Status.IsSpecified() {
		if body.Status.IsNull() {
			s.writeAppError(w, r, apperr.Validation("invalid membership status", "status", "cannot be null"))
			return
		}
		v, _ := body.Status.Get()
		st := domain.MembershipStatus(v)
		in.Status = &st
	}
	if body.EndDate.IsSpecified() {
		if body.EndDate.IsNull() {
			s.writeAppError(w, r, apperr.Validation("invalid endDate", "endDate", "cannot be null"))
			return
		}
		v, _ := body.EndDate.Get()
		end := v.Format(domain.DateKeyLayout)
		in.EndDate = &end
	}
	m, err := s.Memberships.UpdateMembership(r.Context(), sub, domain.MembershipID(chi.URLParam(r, "membershipId")), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MembershipResponse{Membership: s.membershipFromDomain(m)})
}

func directoryFromDomain(ms []domain.Member) []MemberDirectoryEntry {
	out := make([]MemberDirectoryEntry, 0, len(ms))
	for _, m := range ms {
		out = append(out, MemberDirectoryEntry{
			MemberId:    string(m.ID),
			DisplayName: m.DisplayName,
			Role:        string(m.Role),
		})
	}
	return out
}

func optionalFromNullable(n nullable.Nullable[string]) members.Optional[string] {
	if !n.IsSpecified() {
		return members.Unspecified[string]()
	}
	if n.IsNull() {
		return members.Null[string]()
	}
	v, err := n.Get()
	if err != nil {
		return members.Unspecified[string]()
	}
	return members.Some(v)
}
