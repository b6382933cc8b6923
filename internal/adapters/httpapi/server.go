package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ironhall-fitness/gym-access-api/internal/app/access"
	"github.com/ironhall-fitness/gym-access-api/internal/app/dailycodes"
	"github.com/ironhall-fitness/gym-access-api/internal/app/ledger"
	"github.com/ironhall-fitness/gym-access-api/internal/app/members"
	"github.com/ironhall-fitness/gym-access-api/internal/app/memberships"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	clockport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
)

// Server holds the application services behind the HTTP handlers.
type Server struct {
	Members     *members.Service
	Memberships *memberships.Service
	DailyCodes  *dailycodes.Registry
	Access      *access.Service
	Ledger      *ledger.Service

	// Idem is optional; without it Idempotency-Key headers are ignored.
	Idem  idempotency.Store
	Clock clockport.Clock
	Cal   domain.Calendar

	Logger *zap.Logger
}

func (s *Server) subject(w http.ResponseWriter, r *http.Request) (domain.SubjectID, bool) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
		return "", false
	}
	return sub, true
}

// requireStaff resolves the caller and writes the error response when it is not staff.
func (s *Server) requireStaff(w http.ResponseWriter, r *http.Request) (domain.Member, bool) {
	sub, ok := s.subject(w, r)
	if !ok {
		return domain.Member{}, false
	}
	me, err := s.Members.RequireStaff(r.Context(), sub)
	if err != nil {
		s.writeAppError(w, r, err)
		return domain.Member{}, false
	}
	return me, true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (domain.Member, bool) {
	sub, ok := s.subject(w, r)
	if !ok {
		return domain.Member{}, false
	}
	me, err := s.Members.RequireAdmin(r.Context(), sub)
	if err != nil {
		s.writeAppError(w, r, err)
		return domain.Member{}, false
	}
	return me, true
}
