package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlitestore "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite/store"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
)

func TestAccessLogStore_ConflictWritesNothing(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedMembers(t, conn, []domain.MemberID{"m1"})
	s := sqlitestore.NewAccessLogStore(conn, w)
	ctx := context.Background()

	at := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	err := s.Append(ctx, domain.AccessLogEntry{
		ID: "l1", MemberID: "m1", Action: domain.ActionExit, QRCodeScanned: "GYM_EXIT_X",
		Location: domain.LocationSelfService, Timestamp: at,
	}, domain.PresenceInside)
	if !errors.Is(err, accesslog.ErrPresenceConflict) {
		t.Fatalf("Append err=%v, want ErrPresenceConflict", err)
	}

	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_logs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("access_logs rows=%d after conflict, want 0", n)
	}
}

func TestAccessLogStore_TimestampsRoundTripAtMillisecond(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedMembers(t, conn, []domain.MemberID{"m1"})
	s := sqlitestore.NewAccessLogStore(conn, w)
	ctx := context.Background()

	at := time.Date(2025, 6, 15, 8, 0, 0, 123_000_000, time.UTC)
	if err := s.Append(ctx, domain.AccessLogEntry{
		ID: "l1", MemberID: "m1", Action: domain.ActionEntry, QRCodeScanned: "GYM_ENTRY_X",
		Location: domain.LocationFrontDesk, Timestamp: at,
	}, domain.PresenceOutside); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := s.Latest(ctx, "m1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !got.Timestamp.Equal(at) || got.Location != domain.LocationFrontDesk {
		t.Fatalf("Latest=%#v", got)
	}
}
