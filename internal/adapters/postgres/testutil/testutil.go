package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

// Issuer is the JWT issuer used to scope subjects in Postgres-backed tests.
const Issuer = "https://issuer.test"

// OpenMigratedPool connects to TEST_DATABASE_URL, applies migrations and empties all tables.
// The test is skipped when TEST_DATABASE_URL is unset.
//
// Packages sharing one database must not run concurrently (go test -p 1).
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres tests")
	}
	if err := postgres.Migrate(url); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, url, postgres.PoolConfig{MaxConns: 8})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `
		TRUNCATE members, memberships, daily_codes, access_logs, member_presence, idempotency_keys
		RESTART IDENTITY CASCADE
	`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

// SeedMembers inserts minimal member rows so that foreign keys from memberships and
// access logs resolve.
func SeedMembers(t *testing.T, pool *pgxpool.Pool, ids []domain.MemberID) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := pool.Exec(ctx, `
			INSERT INTO members (external_id, subject_iss, subject_sub, display_name, email, qr_code, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'member', $7, $7)
		`,
			uuid.MustParse(string(id)),
			Issuer,
			"seed-"+string(id),
			"Seed "+string(id)[:8],
			string(id)+"@example.com",
			"GYM_MEMBER_SEED_"+string(id),
			now,
		); err != nil {
			t.Fatalf("seed member %s: %v", id, err)
		}
	}
}
