package members

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ironhall-fitness/gym-access-api/internal/app/apperr"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	clockport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
)

// QRCodePrefix starts every personal member code.
const QRCodePrefix = "GYM_MEMBER_"

const maxQRCodeAttempts = 3

type Service struct {
	repo memberrepo.Repository
	clk  clockport.Clock

	admins map[domain.SubjectID]bool
	strip  *bluemonday.Policy

	newMemberID func() domain.MemberID
	newQRCode   func() string

	// SearchLimit bounds search result size.
	SearchLimit int
}

// NewService builds the members service. Subjects listed in adminSubjects are
// provisioned with the admin role.
func NewService(repo memberrepo.Repository, clk clockport.Clock, adminSubjects []domain.SubjectID) *Service {
	admins := make(map[domain.SubjectID]bool, len(adminSubjects))
	for _, s := range adminSubjects {
		admins[s] = true
	}
	return &Service{
		repo:   repo,
		clk:    clk,
		admins: admins,
		strip:  bluemonday.StrictPolicy(),
		newMemberID: func() domain.MemberID {
			return domain.MemberID(uuid.NewString())
		},
		newQRCode:   NewQRCode,
		SearchLimit: 50,
	}
}

// NewQRCode returns a random personal code: GYM_MEMBER_ followed by 12 upper-case hex digits.
func NewQRCode() string {
	id := uuid.New()
	return QRCodePrefix + strings.ToUpper(fmt.Sprintf("%x", id[:6]))
}

// Caller resolves the authenticated subject into its member profile.
func (s *Service) Caller(ctx context.Context, subject domain.SubjectID) (domain.Member, error) {
	m, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.Member{}, apperr.MemberNotProvisioned()
		}
		return domain.Member{}, err
	}
	return toDomain(m), nil
}

// RequireStaff resolves the caller and fails with FORBIDDEN unless it is a coach or admin.
func (s *Service) RequireStaff(ctx context.Context, subject domain.SubjectID) (domain.Member, error) {
	me, err := s.Caller(ctx, subject)
	if err != nil {
		return domain.Member{}, err
	}
	if !me.Role.IsStaff() {
		return domain.Member{}, apperr.Forbidden("staff role required")
	}
	return me, nil
}

// RequireAdmin resolves the caller and fails with FORBIDDEN unless it is an admin.
func (s *Service) RequireAdmin(ctx context.Context, subject domain.SubjectID) (domain.Member, error) {
	me, err := s.Caller(ctx, subject)
	if err != nil {
		return domain.Member{}, err
	}
	if me.Role != domain.RoleAdmin {
		return domain.Member{}, apperr.Forbidden("admin role required")
	}
	return me, nil
}

func (s *Service) ListMembers(ctx context.Context, caller domain.SubjectID) ([]domain.Member, error) {
	if _, err := s.RequireStaff(ctx, caller); err != nil {
		return nil, err
	}
	ms, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, toDomain(m))
	}
	sortMembersByDisplayName(out)
	return out, nil
}

func (s *Service) SearchMembers(ctx context.Context, caller domain.SubjectID, query string) ([]domain.Member, error) {
	if _, err := s.RequireStaff(ctx, caller); err != nil {
		return nil, err
	}
	q := strings.TrimSpace(query)
	if len([]rune(q)) < 3 {
		return nil, apperr.Validation("invalid search query", "q", "must be at least 3 characters")
	}
	ms, err := s.repo.SearchByDisplayName(ctx, q, s.SearchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, toDomain(m))
	}
	return out, nil
}

func (s *Service) GetMyMemberProfile(ctx context.Context, subject domain.SubjectID) (domain.Member, error) {
	return s.Caller(ctx, subject)
}

func (s *Service) CreateMyMember(ctx context.Context, subject domain.SubjectID, in CreateMyMemberInput) (domain.Member, error) {
	// Ensure no existing binding.
	if _, err := s.repo.GetBySubject(ctx, subject); err == nil {
		return domain.Member{}, memberAlreadyExists()
	} else if !errors.Is(err, memberrepo.ErrNotFound) {
		return domain.Member{}, err
	}

	displayName, err := s.cleanDisplayName(in.DisplayName)
	if err != nil {
		return domain.Member{}, err
	}
	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.Member{}, apperr.Validation("invalid email", "email", err.Error())
	}
	if err := s.ensureEmailUnique(ctx, email, ""); err != nil {
		return domain.Member{}, err
	}
	phone, err := cleanPhone(in.Phone)
	if err != nil {
		return domain.Member{}, err
	}

	role := domain.RoleMember
	if s.admins[subject] {
		role = domain.RoleAdmin
	}

	now := s.clk.Now()
	m := memberrepo.Member{
		ID:          s.newMemberID(),
		Subject:     subject,
		DisplayName: displayName,
		Email:       email,
		Phone:       phone,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for attempt := 1; ; attempt++ {
		m.QRCode = s.newQRCode()
		err := s.repo.Create(ctx, m)
		if err == nil {
			return toDomain(m), nil
		}
		switch {
		case errors.Is(err, memberrepo.ErrSubjectAlreadyBound):
			return domain.Member{}, memberAlreadyExists()
		case errors.Is(err, memberrepo.ErrQRCodeTaken) && attempt < maxQRCodeAttempts:
			continue
		default:
			return domain.Member{}, fmt.Errorf("create member: %w", err)
		}
	}
}

func (s *Service) UpdateMyMemberProfile(ctx context.Context, subject domain.SubjectID, in UpdateMyMemberProfileInput) (domain.Member, error) {
	m, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.Member{}, apperr.MemberNotProvisioned()
		}
		return domain.Member{}, err
	}

	if in.DisplayName.IsSpecified() {
		if in.DisplayName.IsNull() {
			return domain.Member{}, apperr.Validation("invalid displayName", "displayName", "cannot be null")
		}
		displayName, err := s.cleanDisplayName(in.DisplayName.Value())
		if err != nil {
			return domain.Member{}, err
		}
		m.DisplayName = displayName
	}

	if in.Email.IsSpecified() {
		if in.Email.IsNull() {
			return domain.Member{}, apperr.Validation("invalid email", "email", "cannot be null")
		}
		email := domain.NormalizeEmail(in.Email.Value())
		if err := validateEmail(email); err != nil {
			return domain.Member{}, apperr.Validation("invalid email", "email", err.Error())
		}
		if err := s.ensureEmailUnique(ctx, email, m.ID); err != nil {
			return domain.Member{}, err
		}
		m.Email = email
	}

	if in.Phone.IsSpecified() {
		if in.Phone.IsNull() {
			m.Phone = nil
		} else {
			v := in.Phone.Value()
			phone, err := cleanPhone(&v)
			if err != nil {
				return domain.Member{}, err
			}
			m.Phone = phone
		}
	}

	m.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, m); err != nil {
		return domain.Member{}, err
	}
	return toDomain(m), nil
}

// SetMemberRole changes the role of another member.
func (s *Service) SetMemberRole(ctx context.Context, caller domain.SubjectID, in SetRoleInput) (domain.Member, error) {
	me, err := s.RequireAdmin(ctx, caller)
	if err != nil {
		return domain.Member{}, err
	}
	if !in.Role.Valid() {
		return domain.Member{}, apperr.Validation("invalid role", "role", "must be one of member, coach, admin")
	}
	if in.MemberID == me.ID && in.Role != domain.RoleAdmin {
		return domain.Member{}, apperr.Validation("invalid role", "role", "admins cannot demote themselves")
	}
	m, err := s.repo.GetByID(ctx, in.MemberID)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.Member{}, apperr.NotFound("MEMBER_NOT_FOUND", "member not found")
		}
		return domain.Member{}, err
	}
	if m.Role == in.Role {
		return toDomain(m), nil
	}
	m.Role = in.Role
	m.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, m); err != nil {
		return domain.Member{}, err
	}
	return toDomain(m), nil
}

func (s *Service) cleanDisplayName(raw string) (string, error) {
	// StrictPolicy escapes entities; undo that so names like O'Brien survive.
	name := domain.NormalizeHumanName(html.UnescapeString(s.strip.Sanitize(raw)))
	if name == "" {
		return "", apperr.Validation("invalid displayName", "displayName", "must be non-empty")
	}
	return name, nil
}

func cleanPhone(p *string) (*string, error) {
	if p == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil, nil
	}
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return nil, apperr.Validation("invalid phone", "phone", "may only contain digits, spaces and + - . ( )")
		}
	}
	return &v, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func (s *Service) ensureEmailUnique(ctx context.Context, email string, exclude domain.MemberID) error {
	ms, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, m := range ms {
		if exclude != "" && m.ID == exclude {
			continue
		}
		if strings.EqualFold(m.Email, email) {
			return apperr.Conflict("EMAIL_ALREADY_IN_USE", "email address is already in use")
		}
	}
	return nil
}

func memberAlreadyExists() *apperr.Error {
	return apperr.Conflict("MEMBER_ALREADY_EXISTS", "A member profile already exists for the authenticated subject.")
}

func toDomain(m memberrepo.Member) domain.Member {
	return domain.Member{
		ID:          m.ID,
		Subject:     m.Subject,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		Phone:       cloneStringPtr(m.Phone),
		QRCode:      m.QRCode,
		Role:        m.Role,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortMembersByDisplayName(ms []domain.Member) {
	sort.Slice(ms, func(i, j int) bool {
		di := strings.ToLower(ms[i].DisplayName)
		dj := strings.ToLower(ms[j].DisplayName)
		if di == dj {
			return string(ms[i].ID) < string(ms[j].ID)
		}
		return di < dj
	})
}
