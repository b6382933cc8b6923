package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
	clockport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/scanguard"
)

// DailyCodes supplies today's code pair. *dailycodes.Registry implements it.
type DailyCodes interface {
	Today(ctx context.Context) (domain.DailyCode, bool, error)
}

type Deps struct {
	Members     memberrepo.Repository
	Memberships membershiprepo.Repository
	Codes       DailyCodes
	Ledger      accesslog.Repository
	// Guard is optional.
	Guard  scanguard.Guard
	Clock  clockport.Clock
	Cal    domain.Calendar
	Logger *zap.Logger
}

// Service runs the scan protocol. It never returns an error: every failure is
// reported as a Rejected result.
type Service struct {
	members     memberrepo.Repository
	memberships membershiprepo.Repository
	codes       DailyCodes
	ledger      accesslog.Repository
	guard       scanguard.Guard
	clk         clockport.Clock
	cal         domain.Calendar
	logger      *zap.Logger

	newLogID func() domain.AccessLogID
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		members:     d.Members,
		memberships: d.Memberships,
		codes:       d.Codes,
		ledger:      d.Ledger,
		guard:       d.Guard,
		clk:         d.Clock,
		cal:         d.Cal,
		logger:      logger,
		newLogID: func() domain.AccessLogID {
			return domain.AccessLogID(uuid.NewString())
		},
	}
}

// ScanDailyCode records an entry or exit for a member scanning the daily code.
func (s *Service) ScanDailyCode(ctx context.Context, who Identity, scanned string) Result {
	return s.Scan(ctx, PolicyFor(ScanSelf), who, scanned)
}

// StaffScan records an entry or exit for the member owning the scanned personal code.
// operator is the coach or admin running the front desk terminal.
func (s *Service) StaffScan(ctx context.Context, operator Identity, scanned string) Result {
	return s.Scan(ctx, PolicyFor(ScanStaff), operator, scanned)
}

// Scan runs the protocol under pol. Each check below is a rejection point; the
// ledger append is the only write.
func (s *Service) Scan(ctx context.Context, pol Policy, who Identity, scanned string) (res Result) {
	log := s.logger.With(zap.String("mode", string(pol.Mode)), zap.String("caller", string(who.MemberID)))
	defer func() {
		if p := recover(); p != nil {
			res = s.technical(log, "panic", fmt.Errorf("%v", p))
		}
	}()

	if !who.Authenticated() {
		return Rejected{Kind: RejectNotAuthenticated, Message: msgNotAuthenticated}
	}

	var member memberrepo.Member
	if pol.RequireStaffOperator || pol.ResolvePersonalCode {
		operator, err := s.members.GetByID(ctx, who.MemberID)
		if err != nil {
			if errors.Is(err, memberrepo.ErrNotFound) {
				return Rejected{Kind: RejectNotAuthenticated, Message: msgNotAuthenticated}
			}
			return s.technical(log, "load operator", err)
		}
		if pol.RequireStaffOperator && !operator.Role.IsStaff() {
			return Rejected{Kind: RejectForbidden, Message: msgForbidden}
		}
		member, err = s.members.GetByQRCode(ctx, scanned)
		if err != nil {
			if errors.Is(err, memberrepo.ErrNotFound) {
				return Rejected{Kind: RejectUnknownMember, Message: msgUnknownMember}
			}
			return s.technical(log, "resolve personal code", err)
		}
	} else {
		m, err := s.members.GetByID(ctx, who.MemberID)
		if err != nil {
			if errors.Is(err, memberrepo.ErrNotFound) {
				return Rejected{Kind: RejectNotAuthenticated, Message: msgNotAuthenticated}
			}
			return s.technical(log, "load member", err)
		}
		member = m
	}
	log = log.With(zap.String("member_id", string(member.ID)))

	if pol.RequireActiveStatus || pol.RequireUnexpired {
		ms, err := s.memberships.ListByMember(ctx, member.ID)
		if err != nil {
			return s.technical(log, "load memberships", err)
		}
		active, ok := domain.FirstActive(ms)
		if pol.RequireActiveStatus && !ok {
			return Rejected{Kind: RejectMembershipInactive, Message: msgMembershipInactive(member.DisplayName), MemberName: member.DisplayName}
		}
		if ok && pol.RequireUnexpired && active.ExpiredAt(s.clk.Now()) {
			return Rejected{
				Kind:       RejectMembershipExpired,
				Message:    msgMembershipExpired(s.cal.FormatDate(active.EndDate)),
				MemberName: member.DisplayName,
			}
		}
	}

	var action domain.AccessAction
	if pol.MatchDailyCode {
		dc, ok, err := s.codes.Today(ctx)
		if err != nil {
			return s.technical(log, "load daily code", err)
		}
		if !ok {
			return Rejected{Kind: RejectNoDailyCode, Message: msgNoDailyCode, MemberName: member.DisplayName}
		}
		matched, ok := dc.Match(scanned)
		if !ok {
			return Rejected{Kind: RejectInvalidCode, Message: msgInvalidCode, MemberName: member.DisplayName}
		}
		action = matched
	}

	if s.guard != nil {
		token, acquired, err := s.guard.Acquire(ctx, member.ID)
		switch {
		case err != nil:
			log.Warn("scan guard unavailable", zap.Error(err))
		case !acquired:
			return Rejected{Kind: RejectScanInProgress, Message: msgScanInProgress, Action: action, MemberName: member.DisplayName}
		default:
			defer func() {
				// The scan is finished either way; a stale lock just expires.
				if err := s.guard.Release(context.WithoutCancel(ctx), member.ID, token); err != nil {
					log.Warn("scan guard release failed", zap.Error(err))
				}
			}()
		}
	}

	presence, err := s.presence(ctx, member.ID)
	if err != nil {
		return s.technical(log, "load presence", err)
	}
	if pol.InferAction {
		action = domain.ActionEntry
		if presence == domain.PresenceInside {
			action = domain.ActionExit
		}
	}
	if rej, bad := toggleRejection(action, presence, member.DisplayName); bad {
		return rej
	}

	entry := domain.AccessLogEntry{
		ID:            s.newLogID(),
		MemberID:      member.ID,
		Action:        action,
		QRCodeScanned: scanned,
		Location:      pol.Location,
		Timestamp:     s.clk.Now(),
	}
	if err := s.ledger.Append(ctx, entry, presence); err != nil {
		if errors.Is(err, accesslog.ErrPresenceConflict) {
			// Another scan flipped presence since we read it.
			rej, _ := toggleRejection(action, action.After(), member.DisplayName)
			return rej
		}
		log.Error("access log append failed", zap.String("action", string(action)), zap.Error(err))
		return Rejected{Kind: RejectPersistenceFailure, Message: msgPersistence, Action: action, MemberName: member.DisplayName}
	}

	log.Info("access recorded", zap.String("action", string(action)), zap.String("location", string(pol.Location)))
	msg := msgWelcome(member.DisplayName)
	if action == domain.ActionExit {
		msg = msgGoodbye(member.DisplayName)
	}
	return Accepted{
		Action:     action,
		MemberID:   member.ID,
		MemberName: member.DisplayName,
		Message:    msg,
		Location:   pol.Location,
		Timestamp:  entry.Timestamp,
	}
}

func (s *Service) presence(ctx context.Context, id domain.MemberID) (domain.Presence, error) {
	latest, err := s.ledger.Latest(ctx, id)
	if err != nil {
		if errors.Is(err, accesslog.ErrNotFound) {
			return domain.PresenceOutside, nil
		}
		return "", err
	}
	return domain.PresenceOf(&latest), nil
}

// toggleRejection reports whether action is inconsistent with presence.
func toggleRejection(action domain.AccessAction, presence domain.Presence, name string) (Rejected, bool) {
	switch {
	case action == domain.ActionEntry && presence == domain.PresenceInside:
		return Rejected{Kind: RejectAlreadyInside, Message: msgAlreadyInside, Action: action, MemberName: name}, true
	case action == domain.ActionExit && presence == domain.PresenceOutside:
		return Rejected{Kind: RejectNotInside, Message: msgNotInside, Action: action, MemberName: name}, true
	}
	return Rejected{}, false
}

func (s *Service) technical(log *zap.Logger, step string, err error) Rejected {
	log.Error("scan failed", zap.String("step", step), zap.Error(err))
	return Rejected{Kind: RejectTechnicalFailure, Message: msgTechnical}
}
