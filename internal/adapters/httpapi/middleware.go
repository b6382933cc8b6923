package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
)

// ReplayHeader marks a response served from the idempotency store.
const ReplayHeader = "Idempotent-Replayed"

// accessLog logs one line per request once the response is written.
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= 500 {
				logger.Error("http request", fields...)
				return
			}
			logger.Info("http request", fields...)
		})
	}
}

type limiterEntry struct {
	limiter *rate.Limiter
	expires time.Time
}

// rateLimiter is a token bucket per subject, falling back to the client IP.
type rateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &rateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   max(perMinute/2, 1),
		idle:    5 * time.Minute,
		entries: make(map[string]*limiterEntry),
	}
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.entries {
		if now.After(e.expires) {
			delete(l.entries, k)
		}
	}
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.expires = now.Add(l.idle)
	return e.limiter.AllowN(now, 1)
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + r.RemoteAddr
		if sub, ok := SubjectFromContext(r.Context()); ok {
			key = "sub:" + string(sub)
		}
		if !l.allow(key, time.Now()) {
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many scans, slow down", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// idempotent replays the stored response when a request repeats an
// Idempotency-Key with the same body, and rejects the key when the body differs.
// route is the method-less path template, e.g. "/access/scan".
func (s *Server) idempotent(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" || s.Idem == nil {
				next.ServeHTTP(w, r)
				return
			}
			sub, _ := SubjectFromContext(r.Context())
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
			if err != nil {
				writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unreadable request body", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			bodyHash := hex.EncodeToString(sum[:])

			metaFP := idempotency.Fingerprint{
				Key:     idempotency.Key(key),
				Subject: sub,
				Method:  r.Method,
				Route:   route,
			}
			respFP := metaFP
			respFP.BodyHash = bodyHash

			meta, found, err := s.Idem.Get(ctx, metaFP)
			if err != nil {
				s.writeAppError(w, r, err)
				return
			}
			if found {
				if string(meta.Body) != bodyHash {
					writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
					return
				}
				if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
					s.writeAppError(w, r, err)
					return
				} else if ok {
					w.Header().Set("Content-Type", rec.ContentType)
					w.Header().Set(ReplayHeader, "true")
					w.WriteHeader(rec.StatusCode)
					_, _ = w.Write(rec.Body)
					return
				}
			} else if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
				Body:      []byte(bodyHash),
				CreatedAt: s.Clock.Now(),
			}); err != nil {
				s.writeAppError(w, r, err)
				return
			}

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			// Server-side failures are not stored so that a retry runs again.
			if status := ww.Status(); status > 0 && status < 500 {
				if err := s.Idem.Put(ctx, respFP, idempotency.Record{
					StatusCode:  status,
					ContentType: ww.Header().Get("Content-Type"),
					Body:        buf.Bytes(),
					CreatedAt:   s.Clock.Now(),
				}); err != nil {
					s.Logger.Warn("idempotency store put failed", zap.String("route", route), zap.Error(err))
				}
			}
		})
	}
}
