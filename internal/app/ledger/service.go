package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/app/apperr"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
	clockport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// InsideView describes a member currently in the gym.
type InsideView struct {
	MemberID    domain.MemberID
	DisplayName string
	Email       string
	QRCode      string
	// Membership is the member's active membership, if any.
	Membership *domain.Membership
	EnteredAt  time.Time
}

// LogView is a ledger entry joined with the member's profile.
type LogView struct {
	Entry       domain.AccessLogEntry
	DisplayName string
	Email       string
}

type Stats struct {
	Date            string
	Entries         int
	Exits           int
	UniqueMembers   int
	CurrentlyInside int
	// PeakHour is the most frequent hour of today's entries; nil when there are none.
	PeakHour *int
}

type PresenceView struct {
	State domain.Presence
	Last  *domain.AccessLogEntry
}

type Service struct {
	log         accesslog.Repository
	members     memberrepo.Repository
	memberships membershiprepo.Repository
	clk         clockport.Clock
	cal         domain.Calendar
}

func NewService(log accesslog.Repository, members memberrepo.Repository, memberships membershiprepo.Repository, clk clockport.Clock, cal domain.Calendar) *Service {
	return &Service{log: log, members: members, memberships: memberships, clk: clk, cal: cal}
}

// CurrentlyInside lists members whose latest event is an entry, newest entry first.
func (s *Service) CurrentlyInside(ctx context.Context) ([]InsideView, error) {
	inside, err := s.log.ListInside(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inside: %w", err)
	}
	ids := make([]domain.MemberID, 0, len(inside))
	for _, e := range inside {
		ids = append(ids, e.MemberID)
	}
	profiles, err := s.members.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	memberships, err := s.memberships.ListByMembers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}

	out := make([]InsideView, 0, len(inside))
	for _, e := range inside {
		p := profiles[e.MemberID]
		v := InsideView{
			MemberID:    e.MemberID,
			DisplayName: p.DisplayName,
			Email:       p.Email,
			QRCode:      p.QRCode,
			EnteredAt:   e.Timestamp,
		}
		if ms, ok := domain.FirstActive(memberships[e.MemberID]); ok {
			v.Membership = &ms
		}
		out = append(out, v)
	}
	return out, nil
}

// TodaysLog returns today's events, newest first.
func (s *Service) TodaysLog(ctx context.Context) ([]LogView, error) {
	return s.LogForDate(ctx, s.cal.DateKey(s.clk.Now()))
}

// LogForDate returns the events of a YYYY-MM-DD calendar day, newest first.
func (s *Service) LogForDate(ctx context.Context, date string) ([]LogView, error) {
	day, err := s.cal.ParseDate(date)
	if err != nil {
		return nil, apperr.Validation("invalid date", "date", "must be a YYYY-MM-DD date")
	}
	from, to := s.cal.DayBounds(day)
	es, err := s.log.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list log %s: %w", date, err)
	}
	return s.withProfiles(ctx, es)
}

// RecentLog returns the newest events across all days. A zero limit means DefaultRecentLimit.
func (s *Service) RecentLog(ctx context.Context, limit int) ([]LogView, error) {
	if limit == 0 {
		limit = DefaultRecentLimit
	}
	if limit < 0 || limit > MaxRecentLimit {
		return nil, apperr.Validation("invalid limit", "limit", fmt.Sprintf("must be between 1 and %d", MaxRecentLimit))
	}
	es, err := s.log.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent log: %w", err)
	}
	return s.withProfiles(ctx, es)
}

func (s *Service) StatsToday(ctx context.Context) (Stats, error) {
	now := s.clk.Now()
	from, to := s.cal.DayBounds(now)
	es, err := s.log.ListBetween(ctx, from, to)
	if err != nil {
		return Stats{}, fmt.Errorf("list today's log: %w", err)
	}
	inside, err := s.log.ListInside(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list inside: %w", err)
	}

	st := Stats{Date: s.cal.DateKey(now), CurrentlyInside: len(inside)}
	seen := make(map[domain.MemberID]struct{})
	var hours [24]int
	for _, e := range es {
		seen[e.MemberID] = struct{}{}
		if e.Action == domain.ActionEntry {
			st.Entries++
			hours[s.cal.Hour(e.Timestamp)]++
		} else {
			st.Exits++
		}
	}
	st.UniqueMembers = len(seen)
	st.PeakHour = peakHour(hours)
	return st, nil
}

// Presence reports the caller's derived state and most recent event.
func (s *Service) Presence(ctx context.Context, subject domain.SubjectID) (PresenceView, error) {
	me, err := s.members.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, memberrepo.ErrNotFound) {
			return PresenceView{}, apperr.MemberNotProvisioned()
		}
		return PresenceView{}, err
	}
	latest, err := s.log.Latest(ctx, me.ID)
	if err != nil {
		if errors.Is(err, accesslog.ErrNotFound) {
			return PresenceView{State: domain.PresenceOutside}, nil
		}
		return PresenceView{}, fmt.Errorf("latest event: %w", err)
	}
	return PresenceView{State: domain.PresenceOf(&latest), Last: &latest}, nil
}

func (s *Service) withProfiles(ctx context.Context, es []domain.AccessLogEntry) ([]LogView, error) {
	seen := make(map[domain.MemberID]struct{}, len(es))
	ids := make([]domain.MemberID, 0, len(es))
	for _, e := range es {
		if _, ok := seen[e.MemberID]; ok {
			continue
		}
		seen[e.MemberID] = struct{}{}
		ids = append(ids, e.MemberID)
	}
	profiles, err := s.members.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	out := make([]LogView, 0, len(es))
	for _, e := range es {
		p := profiles[e.MemberID]
		out = append(out, LogView{Entry: e, DisplayName: p.DisplayName, Email: p.Email})
	}
	return out, nil
}

// peakHour returns the fullest bucket; ties go to the earliest hour.
func peakHour(hours [24]int) *int {
	best := -1
	for h, n := range hours {
		if n == 0 {
			continue
		}
		if best < 0 || n > hours[best] {
			best = h
		}
	}
	if best < 0 {
		return nil
	}
	return &best
}
