package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// DefaultScanRateLimitPerMinute applies when RouterOptions leaves the limit unset.
const DefaultScanRateLimitPerMinute = 30

type RouterOptions struct {
	// AuthMiddleware authenticates every route except /healthz.
	AuthMiddleware func(http.Handler) http.Handler

	// CORSAllowedOrigins enables CORS for the listed origins; empty disables it.
	CORSAllowedOrigins []string

	// ScanRateLimitPerMinute bounds scan attempts per subject.
	ScanRateLimitPerMinute int
}

// NewRouterWithOptions builds the chi router with the middleware chain described by opts.
func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	perMinute := opts.ScanRateLimitPerMinute
	if perMinute <= 0 {
		perMinute = DefaultScanRateLimitPerMinute
	}
	limiter := newRateLimiter(perMinute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.Logger))
	r.Use(middleware.Recoverer)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Debug-Subject"},
			ExposedHeaders:   []string{ReplayHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Infra checks, never authenticated.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}

		r.Get("/members", s.ListMembers)
		r.Get("/members/search", s.SearchMembers)
		r.Post("/members", s.CreateMyMember)
		r.Get("/members/me", s.GetMyMemberProfile)
		r.Patch("/members/me", s.UpdateMyMemberProfile)
		r.Put("/members/{memberId}/role", s.SetMemberRole)
		r.Get("/members/me/memberships", s.ListMyMemberships)
		r.Get("/members/me/presence", s.MyPresence)
		r.Post("/members/{memberId}/memberships", s.CreateMembership)
		r.Patch("/memberships/{membershipId}", s.UpdateMembership)

		r.With(s.idempotent("/daily-codes")).Post("/daily-codes", s.GenerateDailyCodes)
		r.Get("/daily-codes/today", s.GetTodaysCodes)

		r.With(limiter.middleware, s.idempotent("/access/scan")).Post("/access/scan", s.ScanDailyCode)
		r.With(limiter.middleware, s.idempotent("/access/staff-scan")).Post("/access/staff-scan", s.StaffScan)
		r.Get("/access/inside", s.CurrentlyInside)
		r.Get("/access/logs", s.AccessLogs)
		r.Get("/access/logs/recent", s.RecentAccessLogs)
		r.Get("/access/stats/today", s.StatsToday)
	})

	return r
}
