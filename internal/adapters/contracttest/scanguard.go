package contracttest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

func RunScanGuard(t *testing.T, newGuard ScanGuardFactory) {
	t.Helper()
	ctx := context.Background()

	g, advance := newGuard(t)
	a := domain.MemberID(uuid.NewString())
	b := domain.MemberID(uuid.NewString())

	tokA, ok, err := g.Acquire(ctx, a)
	if err != nil || !ok || tokA == "" {
		t.Fatalf("Acquire(a): token=%q ok=%v err=%v", tokA, ok, err)
	}
	if _, ok, err := g.Acquire(ctx, a); err != nil || ok {
		t.Fatalf("second Acquire(a) while held: ok=%v err=%v, want false", ok, err)
	}
	if _, ok, err := g.Acquire(ctx, b); err != nil || !ok {
		t.Fatalf("Acquire(b) is independent: ok=%v err=%v", ok, err)
	}

	if err := g.Release(ctx, a, tokA); err != nil {
		t.Fatalf("Release(a): %v", err)
	}
	if _, ok, err := g.Acquire(ctx, a); err != nil || !ok {
		t.Fatalf("Acquire(a) after release: ok=%v err=%v", ok, err)
	}

	// Held locks expire.
	advance(time.Minute)
	if _, ok, err := g.Acquire(ctx, b); err != nil || !ok {
		t.Fatalf("Acquire(b) after expiry: ok=%v err=%v", ok, err)
	}

	// Releasing an unheld lock is a no-op.
	if err := g.Release(ctx, domain.MemberID(uuid.NewString()), "no-such-token"); err != nil {
		t.Fatalf("Release(unheld): %v", err)
	}

	t.Run("slow holder cannot release a newer lock", func(t *testing.T) {
		g, advance := newGuard(t)
		m := domain.MemberID(uuid.NewString())

		slow, ok, err := g.Acquire(ctx, m)
		if err != nil || !ok {
			t.Fatalf("Acquire(slow): ok=%v err=%v", ok, err)
		}
		advance(time.Minute)
		fresh, ok, err := g.Acquire(ctx, m)
		if err != nil || !ok {
			t.Fatalf("Acquire(fresh) after expiry: ok=%v err=%v", ok, err)
		}
		if fresh == slow {
			t.Fatalf("tokens must differ per acquire, both %q", fresh)
		}

		if err := g.Release(ctx, m, slow); err != nil {
			t.Fatalf("Release(slow): %v", err)
		}
		if _, ok, err := g.Acquire(ctx, m); err != nil || ok {
			t.Fatalf("Acquire while fresh still holds: ok=%v err=%v, want false", ok, err)
		}

		if err := g.Release(ctx, m, fresh); err != nil {
			t.Fatalf("Release(fresh): %v", err)
		}
		if _, ok, err := g.Acquire(ctx, m); err != nil || !ok {
			t.Fatalf("Acquire after fresh released: ok=%v err=%v", ok, err)
		}
	})
}
