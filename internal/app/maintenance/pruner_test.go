package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	memclock "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/clock"
	memidempotency "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/idempotency"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
)

func fp(key string) idempotency.Fingerprint {
	return idempotency.Fingerprint{
		Key:     idempotency.Key(key),
		Subject: domain.SubjectID("sub-1"),
		Method:  "POST",
		Route:   "/access/scan",
	}
}

func TestPruner_DisabledWhenRetentionZero(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(100_000, 0).UTC())
	p := NewPruner(memidempotency.NewStore(), clk, PrunerConfig{RetentionHours: 0, IntervalHours: 1}, nil)
	p.Start(context.Background())
	// Stop returns immediately.
	p.Stop()
}

func TestPruner_PruneOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := memclock.NewManualClock(now)
	store := memidempotency.NewStore()
	ctx := context.Background()
	if err := store.Put(ctx, fp("old"), idempotency.Record{StatusCode: 200, CreatedAt: now.Add(-72 * time.Hour)}); err != nil {
		t.Fatalf("Put old: %v", err)
	}
	if err := store.Put(ctx, fp("fresh"), idempotency.Record{StatusCode: 200, CreatedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}

	p := NewPruner(store, clk, PrunerConfig{RetentionHours: 48}, nil)
	if got := p.PruneOnce(ctx); got != 1 {
		t.Fatalf("deleted = %d, want 1", got)
	}
	if _, ok, _ := store.Get(ctx, fp("fresh")); !ok {
		t.Fatalf("fresh record was pruned")
	}
	if _, ok, _ := store.Get(ctx, fp("old")); ok {
		t.Fatalf("old record survived")
	}
}

func TestPruner_StartRunsImmediatelyAndStopIsIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := memclock.NewManualClock(now)
	store := memidempotency.NewStore()
	ctx := context.Background()
	if err := store.Put(ctx, fp("old"), idempotency.Record{CreatedAt: now.Add(-72 * time.Hour)}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	core, logs := observer.New(zap.InfoLevel)
	p := NewPruner(store, clk, PrunerConfig{RetentionHours: 48, IntervalHours: 1}, zap.New(core))
	p.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok, _ := store.Get(ctx, fp("old")); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("startup prune did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	p.Stop()

	if logs.FilterMessage("idempotency pruner started").Len() != 1 {
		t.Fatalf("missing start log, got %v", logs.All())
	}
}

func TestPruner_StopBeforeStart(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(0, 0).UTC())
	p := NewPruner(memidempotency.NewStore(), clk, PrunerConfig{RetentionHours: 1}, nil)
	p.Stop()
	// A later Start is a no-op.
	p.Start(context.Background())
}

type failingStore struct{ idempotency.Store }

func (failingStore) PruneOlderThan(context.Context, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestPruner_ErrorIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	clk := memclock.NewManualClock(time.Unix(100_000, 0).UTC())
	p := NewPruner(failingStore{}, clk, PrunerConfig{RetentionHours: 1}, zap.New(core))
	if got := p.PruneOnce(context.Background()); got != 0 {
		t.Fatalf("deleted = %d, want 0", got)
	}
	if logs.Len() != 1 {
		t.Fatalf("logged %d entries, want 1", logs.Len())
	}
}
