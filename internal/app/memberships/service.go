package memberships

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ironhall-fitness/gym-access-api/internal/app/apperr"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	clockport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
)

// CreateInput describes a new membership. Dates are calendar days in the gym's timezone.
type CreateInput struct {
	Type      domain.MembershipType
	Status    domain.MembershipStatus
	StartDate string
	EndDate   string
}

// UpdateInput changes the mutable fields of a membership. Nil fields are left untouched.
type UpdateInput struct {
	Status  *domain.MembershipStatus
	EndDate *string
}

type Service struct {
	members     memberrepo.Repository
	memberships membershiprepo.Repository
	clk         clockport.Clock
	cal         domain.Calendar

	newMembershipID func() domain.MembershipID
}

func NewService(members memberrepo.Repository, memberships membershiprepo.Repository, clk clockport.Clock, cal domain.Calendar) *Service {
	return &Service{
		members:     members,
		memberships: memberships,
		clk:         clk,
		cal:         cal,
		newMembershipID: func() domain.MembershipID {
			return domain.MembershipID(uuid.NewString())
		},
	}
}

func (s *Service) CreateMembership(ctx context.Context, caller domain.SubjectID, memberID domain.MemberID, in CreateInput) (domain.Membership, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return domain.Membership{}, err
	}
	if _, err := s.members.GetByID(ctx, memberID); err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return domain.Membership{}, apperr.NotFound("MEMBER_NOT_FOUND", "member not found")
		}
		return domain.Membership{}, err
	}
	if !in.Type.Valid() {
		return domain.Membership{}, apperr.Validation("invalid membership type", "type", "must be one of basic, premium, vip")
	}
	if !in.Status.Valid() {
		return domain.Membership{}, apperr.Validation("invalid membership status", "status", "must be one of active, expired, suspended")
	}
	start, err := s.parseDate("startDate", in.StartDate)
	if err != nil {
		return domain.Membership{}, err
	}
	end, err := s.parseEndDate(in.EndDate)
	if err != nil {
		return domain.Membership{}, err
	}
	if !end.After(start) {
		return domain.Membership{}, apperr.Validation("invalid endDate", "endDate", "must be after startDate")
	}

	now := s.clk.Now()
	m := domain.Membership{
		ID:        s.newMembershipID(),
		MemberID:  memberID,
		Type:      in.Type,
		Status:    in.Status,
		StartDate: start,
		EndDate:   end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		return domain.Membership{}, fmt.Errorf("create membership: %w", err)
	}
	return m, nil
}

func (s *Service) UpdateMembership(ctx context.Context, caller domain.SubjectID, id domain.MembershipID, in UpdateInput) (domain.Membership, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return domain.Membership{}, err
	}
	m, err := s.memberships.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, membershiprepo.ErrNotFound) {
			return domain.Membership{}, apperr.NotFound("MEMBERSHIP_NOT_FOUND", "membership not found")
		}
		return domain.Membership{}, err
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.Membership{}, apperr.Validation("invalid membership status", "status", "must be one of active, expired, suspended")
		}
		m.Status = *in.Status
	}
	if in.EndDate != nil {
		end, err := s.parseEndDate(*in.EndDate)
		if err != nil {
			return domain.Membership{}, err
		}
		if !end.After(m.StartDate) {
			return domain.Membership{}, apperr.Validation("invalid endDate", "endDate", "must be after startDate")
		}
		m.EndDate = end
	}
	m.UpdatedAt = s.clk.Now()
	if err := s.memberships.Update(ctx, m); err != nil {
		return domain.Membership{}, fmt.Errorf("update membership: %w", err)
	}
	return m, nil
}

// ListMyMemberships returns the caller's memberships, newest end date first.
func (s *Service) ListMyMemberships(ctx context.Context, subject domain.SubjectID) ([]domain.Membership, error) {
	me, err := s.members.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return nil, apperr.MemberNotProvisioned()
		}
		return nil, err
	}
	return s.memberships.ListByMember(ctx, me.ID)
}

func (s *Service) requireAdmin(ctx context.Context, caller domain.SubjectID) error {
	me, err := s.members.GetBySubject(ctx, caller)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return apperr.MemberNotProvisioned()
		}
		return err
	}
	if me.Role != domain.RoleAdmin {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

func (s *Service) parseDate(field, v string) (time.Time, error) {
	t, err := s.cal.ParseDate(v)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid "+field, field, "must be a YYYY-MM-DD date")
	}
	return t, nil
}

// parseEndDate makes the membership valid through the whole end day.
func (s *Service) parseEndDate(v string) (time.Time, error) {
	day, err := s.parseDate("endDate", v)
	if err != nil {
		return time.Time{}, err
	}
	_, next := s.cal.DayBounds(day)
	return next.Add(-time.Millisecond), nil
}
