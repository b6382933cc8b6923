package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ironhall-fitness/gym-access-api/internal/adapters/httpapi"
	memaccesslog "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/accesslog"
	memclock "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/clock"
	memdailycoderepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/dailycoderepo"
	memidempotency "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/idempotency"
	memmemberrepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/memberrepo"
	memmembershiprepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/membershiprepo"
	memscanguard "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/scanguard"
	pgaccesslog "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/accesslog"
	pgdailycoderepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/dailycoderepo"
	pgidempotency "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/idempotency"
	pgmemberrepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/memberrepo"
	pgmembershiprepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/membershiprepo"
	postgres_testutil "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/testutil"
	sqlitedb "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite"
	sqlitestore "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite/store"
	"github.com/ironhall-fitness/gym-access-api/internal/app/access"
	"github.com/ironhall-fitness/gym-access-api/internal/app/dailycodes"
	"github.com/ironhall-fitness/gym-access-api/internal/app/ledger"
	"github.com/ironhall-fitness/gym-access-api/internal/app/members"
	"github.com/ironhall-fitness/gym-access-api/internal/app/memberships"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	accesslogport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
	dailycoderepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
	idempotencyport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
	memberrepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
	membershiprepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendSQLite   backend = "sqlite"
	backendPostgres backend = "postgres"
)

const adminSubject = "itest|admin"

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "sqlite":
		return []backend{backendSQLite}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendSQLite, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	clk     *memclock.ManualClock
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	const issuer = postgres_testutil.Issuer
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	cal := domain.NewCalendar(paris)
	clk := memclock.NewManualClock(time.Date(2024, 6, 15, 8, 30, 0, 0, paris))

	var (
		memberRepo     memberrepoport.Repository
		membershipRepo membershiprepoport.Repository
		codeRepo       dailycoderepoport.Repository
		logRepo        accesslogport.Repository
		idemStore      idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		memberRepo = pgmemberrepo.NewRepo(pool, issuer)
		membershipRepo = pgmembershiprepo.NewRepo(pool)
		codeRepo = pgdailycoderepo.NewRepo(pool)
		logRepo = pgaccesslog.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, issuer)
	case backendSQLite:
		db, err := sqlitedb.OpenMemory(context.Background(), "itest_"+strings.ReplaceAll(t.Name(), "/", "_"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		w := sqlitedb.NewWorker(db)
		t.Cleanup(w.Close)
		memberRepo = sqlitestore.NewMemberStore(db, w, issuer)
		membershipRepo = sqlitestore.NewMembershipStore(db, w)
		codeRepo = sqlitestore.NewDailyCodeStore(db, w)
		logRepo = sqlitestore.NewAccessLogStore(db, w)
		idemStore = sqlitestore.NewIdempotencyStore(db, w)
	case backendMemory:
		memberRepo = memmemberrepo.NewRepo()
		membershipRepo = memmembershiprepo.NewRepo()
		codeRepo = memdailycoderepo.NewRepo()
		logRepo = memaccesslog.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	registry := dailycodes.NewRegistry(codeRepo, clk, cal, nil)
	api := &httpapi.Server{
		Members:     members.NewService(memberRepo, clk, []domain.SubjectID{adminSubject}),
		Memberships: memberships.NewService(memberRepo, membershipRepo, clk, cal),
		DailyCodes:  registry,
		Access: access.NewService(access.Deps{
			Members:     memberRepo,
			Memberships: membershipRepo,
			Codes:       registry,
			Ledger:      logRepo,
			Guard:       memscanguard.NewGuard(clk, 2*time.Second),
			Clock:       clk,
			Cal:         cal,
		}),
		Ledger: ledger.NewService(logRepo, memberRepo, membershipRepo, clk, cal),
		Idem:   idemStore,
		Clock:  clk,
		Cal:    cal,
	}

	// Empty default subject: every request must carry X-Debug-Subject, which keeps
	// auth failures testable.
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{AuthMiddleware: httpapi.NewDevAuthMiddleware("")})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		clk:     clk,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, header ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestId string `json:"requestId"`
	} `json:"error"`
}

type scanResponse struct {
	Success    bool   `json:"success"`
	Code       string `json:"code"`
	Action     string `json:"action"`
	MemberName string `json:"memberName"`
	Message    string `json:"message"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireScan(t *testing.T, status int, body []byte, wantStatus int, wantCode string) scanResponse {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[scanResponse](t, body)
	if got.Code != wantCode || got.Success != (wantCode == "") {
		t.Fatalf("scan=%+v want code %q", got, wantCode)
	}
	return got
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
