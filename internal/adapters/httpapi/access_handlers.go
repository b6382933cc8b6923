package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/nullable"
	"go.uber.org/zap"

	"github.com/ironhall-fitness/gym-access-api/internal/app/access"
	"github.com/ironhall-fitness/gym-access-api/internal/app/apperr"
	"github.com/ironhall-fitness/gym-access-api/internal/app/ledger"
)

func (s *Server) GenerateDailyCodes(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	dc, err := s.DailyCodes.Generate(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dailyCodesFromDomain(dc))
}

func (s *Server) GetTodaysCodes(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	dc, ok, err := s.DailyCodes.Today(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "DAILY_CODE_NOT_FOUND", "no daily codes generated for today", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.dailyCodesFromDomain(dc))
}

func (s *Server) ScanDailyCode(w http.ResponseWriter, r *http.Request) {
	s.scan(w, r, access.ScanSelf)
}

func (s *Server) StaffScan(w http.ResponseWriter, r *http.Request) {
	s.scan(w, r, access.ScanStaff)
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request, mode access.ScanMode) {
	var body ScanRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	var res access.Result
	if mode == access.ScanStaff {
		res = s.Access.StaffScan(r.Context(), who, body.Code)
	} else {
		res = s.Access.ScanDailyCode(r.Context(), who, body.Code)
	}
	status, resp := scanResponseFromResult(res)
	writeJSON(w, status, resp)
}

// identity maps the authenticated subject to the scan identity. A subject
// without a member profile scans as unauthenticated.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (access.Identity, bool) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		return access.Identity{}, true
	}
	me, err := s.Members.Caller(r.Context(), sub)
	if err != nil {
		if ae := (*apperr.Error)(nil); errors.As(err, &ae) && ae.Code == "MEMBER_NOT_PROVISIONED" {
			return access.Identity{}, true
		}
		s.Logger.Error("resolve scan identity", zap.String("subject", string(sub)), zap.Error(err))
		status, resp := scanResponseFromResult(access.Rejected{
			Kind:    access.RejectTechnicalFailure,
			Message: "Erreur technique. Veuillez réessayer.",
		})
		writeJSON(w, status, resp)
		return access.Identity{}, false
	}
	return access.Identity{MemberID: me.ID}, true
}

func (s *Server) CurrentlyInside(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	vs, err := s.Ledger.CurrentlyInside(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := make([]InsideMember, 0, len(vs))
	for _, v := range vs {
		out = append(out, s.insideFromLedger(v))
	}
	writeJSON(w, http.StatusOK, InsideResponse{Count: len(out), Members: out})
}

// AccessLogs serves today's log, or the log of ?date=YYYY-MM-DD.
func (s *Server) AccessLogs(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	date := r.URL.Query().Get("date")
	var (
		vs  []ledger.LogView
		err error
	)
	if date == "" {
		vs, err = s.Ledger.TodaysLog(r.Context())
	} else {
		vs, err = s.Ledger.LogForDate(r.Context(), date)
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LogResponse{Entries: logEntriesFromLedger(vs)})
}

func (s *Server) RecentAccessLogs(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid limit", map[string]any{"limit": "must be an integer"})
			return
		}
		limit = n
	}
	vs, err := s.Ledger.RecentLog(r.Context(), limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LogResponse{Entries: logEntriesFromLedger(vs)})
}

func (s *Server) StatsToday(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	st, err := s.Ledger.StatsToday(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp := StatsResponse{
		Entries:         st.Entries,
		Exits:           st.Exits,
		UniqueMembers:   st.UniqueMembers,
		CurrentlyInside: st.CurrentlyInside,
		PeakHour:        st.PeakHour,
	}
	if d, err := s.Cal.ParseDate(st.Date); err == nil {
		resp.Date = s.dateOf(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) MyPresence(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subject(w, r)
	if !ok {
		return
	}
	p, err := s.Ledger.Presence(r.Context(), sub)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp := PresenceResponse{State: string(p.State), LastEvent: nullable.NewNullNullable[LastEvent]()}
	if p.Last != nil {
		resp.LastEvent = nullable.NewNullableWithValue(LastEvent{
			Action:    string(p.Last.Action),
			Location:  string(p.Last.Location),
			Timestamp: p.Last.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
