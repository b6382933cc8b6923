package store_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	dbpkg "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

const testIssuer = "https://issuer.test"

// openTestDB returns a private in-memory database with the production schema.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := "test_" + strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := dbpkg.OpenMemory(context.Background(), name)
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestWriter(t *testing.T, conn *sql.DB) *dbpkg.Worker {
	t.Helper()

	w := dbpkg.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedMembers ensures member rows exist so foreign keys from memberships and
// access_logs are satisfied.
func seedMembers(t *testing.T, conn *sql.DB, ids []domain.MemberID) {
	t.Helper()
	now := time.Now().UTC().UnixMilli()
	for _, id := range ids {
		if _, err := conn.ExecContext(context.Background(), `
INSERT INTO members(id, subject_iss, subject_sub, display_name, email, qr_code, role, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, 'member', ?, ?);
`, string(id), testIssuer, "seed-"+string(id), "Seed", string(id)+"@example.com", "GYM_MEMBER_SEED_"+string(id), now, now); err != nil {
			t.Fatalf("seed member %s: %v", id, err)
		}
	}
}
