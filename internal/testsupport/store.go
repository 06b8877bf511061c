package testsupport

import (
	"context"
	"testing"

	"clipwatch/internal/config"
	"clipwatch/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, sourcePath string, origin queue.Origin) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), sourcePath, origin)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

// CompleteJob claims a job and stores the given results.
func CompleteJob(t testing.TB, store *queue.Store, job *queue.Job, results ...queue.Result) {
	t.Helper()

	ctx := context.Background()
	claimed, err := store.Claim(ctx, job.ID)
	if err != nil || !claimed {
		t.Fatalf("store.Claim(%s) = %v, %v", job.ID, claimed, err)
	}
	if err := store.Complete(ctx, job.ID, results); err != nil {
		t.Fatalf("store.Complete: %v", err)
	}
}
