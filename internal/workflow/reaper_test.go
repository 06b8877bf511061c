package workflow

import (
	"context"
	"testing"
	"time"

	"clipwatch/internal/logging"
	"clipwatch/internal/queue"
	"clipwatch/internal/testsupport"
)

func TestReapStaleFailsOldProcessingJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := NewManager(cfg, store, nil, logging.NewNop())
	mgr.staleAfter = time.Millisecond

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/stuck.mp4", queue.OriginPath)
	if claimed, err := store.Claim(ctx, job.ID); err != nil || !claimed {
		t.Fatalf("Claim = %v, %v", claimed, err)
	}
	time.Sleep(20 * time.Millisecond)

	reaped, err := mgr.ReapStale(ctx)
	if err != nil || reaped != 1 {
		t.Fatalf("ReapStale = %d, %v", reaped, err)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusFailed || fetched.ErrorMessage != queue.StaleReapMessage {
		t.Fatalf("unexpected job: %+v", fetched)
	}
}

func TestMemoryVerifyStoreExpires(t *testing.T) {
	store := NewMemoryVerifyStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put(VerifyState{ID: "a", Status: VerifyProcessing})
	if _, ok := store.Get("a"); !ok {
		t.Fatal("expected fresh entry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get("a"); ok {
		t.Fatal("expected expired entry to be hidden")
	}
	if removed := store.Sweep(now.Add(-store.TTL())); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
}

func TestFailMessageForShutdown(t *testing.T) {
	if got := failureMessage(context.Canceled); got != "Search cancelled: service shutting down" {
		t.Fatalf("failureMessage = %q", got)
	}
}
