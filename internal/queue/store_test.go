package queue_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"clipwatch/internal/queue"
	"clipwatch/internal/testsupport"
)

func intPtr(v int) *int { return &v }

func TestOpenCreatesSchemaAndJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, "/data/livestream/record_1.webm", queue.OriginWatch)
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == "" || job.Status != queue.StatusPending {
		t.Fatalf("unexpected job: %#v", job)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourcePath != job.SourcePath || fetched.Origin != queue.OriginWatch {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if fetched.CreatedAt.IsZero() {
		t.Fatal("expected created_at to round-trip")
	}

	missing, err := store.GetByID(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown id, got %#v, %v", missing, err)
	}
}

func TestReopenKeepsSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.NewJob(context.Background(), "/a.mp4", queue.OriginPath); err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	first.Close()

	second := testsupport.MustOpenStore(t, cfg)
	jobs, err := second.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected persisted job, got %d", len(jobs))
	}
}

func TestNewJobRequiresPath(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.NewJob(context.Background(), "  ", queue.OriginPath); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestClaimIsExclusive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	job := testsupport.NewJob(t, store, "/clip.mp4", queue.OriginPath)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Claim(context.Background(), job.ID)
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one claim to win, got %d", winners)
	}

	fetched, _ := store.GetByID(context.Background(), job.ID)
	if fetched.Status != queue.StatusProcessing {
		t.Fatalf("expected processing, got %s", fetched.Status)
	}
}

func TestCompleteAssignsDenseRanks(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/clip.mp4", queue.OriginPath)

	testsupport.CompleteJob(t, store, job,
		queue.Result{Rank: 7, Name: "a", Similarity: 91.234, Path: "/v/a.mp4"},
		queue.Result{Rank: 7, Name: "b", Similarity: 80.5, Path: "/v/b.mp4"},
		queue.Result{Name: "c", Similarity: 70, Path: "/v/c.mp4"},
	)

	results, err := store.Results(ctx, job.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Fatalf("result %d has rank %d", i, r.Rank)
		}
	}
	if results[0].Similarity != 91.23 {
		t.Fatalf("expected similarity rounded to 2 decimals, got %v", results[0].Similarity)
	}

	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}

	if err := store.Complete(ctx, job.ID, nil); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition completing a terminal job, got %v", err)
	}
	if ok, _ := store.Claim(ctx, job.ID); ok {
		t.Fatal("terminal job must not be claimable")
	}
}

func TestFailTruncatesAndIsTerminal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/clip.mp4", queue.OriginPath)
	if _, err := store.Claim(ctx, job.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if err := store.Fail(ctx, job.ID, strings.Repeat("x", 1500)); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", fetched.Status)
	}
	if len(fetched.ErrorMessage) != queue.MaxErrorLength {
		t.Fatalf("expected truncated error of %d chars, got %d", queue.MaxErrorLength, len(fetched.ErrorMessage))
	}
	if err := store.Fail(ctx, job.ID, "again"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestDeleteResultsByPathCascadesToEmptyJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	only := testsupport.NewJob(t, store, "/q1.mp4", queue.OriginPath)
	testsupport.CompleteJob(t, store, only, queue.Result{Name: "shared", Similarity: 50, Path: "/v/shared.mp4"})

	several := testsupport.NewJob(t, store, "/q2.mp4", queue.OriginPath)
	testsupport.CompleteJob(t, store, several,
		queue.Result{Name: "shared", Similarity: 60, Path: "/v/shared.mp4"},
		queue.Result{Name: "other", Similarity: 40, Path: "/v/other.mp4"},
	)

	untouched := testsupport.NewJob(t, store, "/q3.mp4", queue.OriginPath)

	counts, err := store.DeleteResultsByPath(ctx, "/v/shared.mp4")
	if err != nil {
		t.Fatalf("DeleteResultsByPath: %v", err)
	}
	if counts.Results != 2 || counts.Jobs != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	if job, _ := store.GetByID(ctx, only.ID); job != nil {
		t.Fatal("expected job with no remaining results to be removed")
	}
	if job, _ := store.GetByID(ctx, several.ID); job == nil {
		t.Fatal("expected job with remaining results to survive")
	}
	if job, _ := store.GetByID(ctx, untouched.ID); job == nil {
		t.Fatal("expected unrelated pending job to survive")
	}

	counts, err = store.DeleteResultsByPath(ctx, "/v/missing.mp4")
	if err != nil {
		t.Fatalf("DeleteResultsByPath missing: %v", err)
	}
	if counts.Results != 0 {
		t.Fatalf("expected no deletions, got %+v", counts)
	}
}

func TestLatestAggregatesCompletedJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.NewJob(t, store, "/q1.mp4", queue.OriginPath)
	testsupport.CompleteJob(t, store, a,
		queue.Result{Name: "alpha", Similarity: 90, Path: "/v/alpha.mp4"},
		queue.Result{Name: "beta", Similarity: 50, Path: "/v/beta.mp4"},
	)
	b := testsupport.NewJob(t, store, "/q2.mp4", queue.OriginPath)
	testsupport.CompleteJob(t, store, b,
		queue.Result{Name: "alpha", Similarity: 70, Path: "/v/alpha.mp4"},
		queue.Result{Name: "gamma", Similarity: 85, Path: "/v/gamma.mp4"},
	)
	pending := testsupport.NewJob(t, store, "/q3.mp4", queue.OriginPath)
	_ = pending

	entries, err := store.Latest(ctx, queue.LatestPageSize)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 distinct paths, got %d", len(entries))
	}
	want := []struct {
		path string
		sim  float64
	}{
		{"/v/gamma.mp4", 85},
		{"/v/alpha.mp4", 80},
		{"/v/beta.mp4", 50},
	}
	for i, w := range want {
		if entries[i].Path != w.path || entries[i].Similarity != w.sim || entries[i].Rank != i+1 {
			t.Fatalf("entry %d = %+v, want %s %.2f", i, entries[i], w.path, w.sim)
		}
	}
}

func TestLatestCapsPageSize(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	job := testsupport.NewJob(t, store, "/q.mp4", queue.OriginPath)
	var results []queue.Result
	for i := 0; i < 10; i++ {
		results = append(results, queue.Result{Name: "n", Similarity: float64(100 - i), Path: "/v/" + string(rune('a'+i)) + ".mp4"})
	}
	testsupport.CompleteJob(t, store, job, results...)

	entries, err := store.Latest(context.Background(), 0)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(entries) != queue.LatestPageSize {
		t.Fatalf("expected %d entries, got %d", queue.LatestPageSize, len(entries))
	}
}

func TestSetMatch(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/q.mp4", queue.OriginPath)
	testsupport.CompleteJob(t, store, job, queue.Result{Name: "a", Similarity: 10, Path: "/v/a.mp4"})

	n, err := store.SetMatch(ctx, job.ID, "/v/a.mp4", intPtr(1))
	if err != nil || n != 1 {
		t.Fatalf("SetMatch = %d, %v", n, err)
	}
	results, _ := store.Results(ctx, job.ID)
	if results[0].Match == nil || *results[0].Match != 1 {
		t.Fatalf("expected match label 1, got %v", results[0].Match)
	}

	if n, err := store.SetMatch(ctx, job.ID, "/v/a.mp4", nil); err != nil || n != 1 {
		t.Fatalf("clear match = %d, %v", n, err)
	}
	results, _ = store.Results(ctx, job.ID)
	if results[0].Match != nil {
		t.Fatalf("expected cleared label, got %v", *results[0].Match)
	}

	if n, _ := store.SetMatch(ctx, job.ID, "/v/missing.mp4", intPtr(0)); n != 0 {
		t.Fatalf("expected no rows for unknown path, got %d", n)
	}
}

func TestSourcePathsCoverEveryStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	done := testsupport.NewJob(t, store, "/w/done.webm", queue.OriginWatch)
	testsupport.CompleteJob(t, store, done)
	failed := testsupport.NewJob(t, store, "/w/failed.webm", queue.OriginWatch)
	if err := store.Fail(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	testsupport.NewJob(t, store, "/w/pending.webm", queue.OriginWatch)

	paths, err := store.SourcePaths(ctx)
	if err != nil {
		t.Fatalf("SourcePaths: %v", err)
	}
	for _, p := range []string{"/w/done.webm", "/w/failed.webm", "/w/pending.webm"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("expected %s in source paths", p)
		}
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 source paths, got %d", len(paths))
	}
}

func TestReapStaleOnlyTouchesOldProcessingJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	stuck := testsupport.NewJob(t, store, "/stuck.mp4", queue.OriginPath)
	if _, err := store.Claim(ctx, stuck.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	pending := testsupport.NewJob(t, store, "/pending.mp4", queue.OriginPath)

	if n, err := store.ReapStale(ctx, time.Now().Add(-time.Hour)); err != nil || n != 0 {
		t.Fatalf("expected nothing reaped before cutoff, got %d, %v", n, err)
	}
	n, err := store.ReapStale(ctx, time.Now().Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("ReapStale = %d, %v", n, err)
	}
	fetched, _ := store.GetByID(ctx, stuck.ID)
	if fetched.Status != queue.StatusFailed || fetched.ErrorMessage != queue.StaleReapMessage {
		t.Fatalf("unexpected reaped job: %#v", fetched)
	}
	fetched, _ = store.GetByID(ctx, pending.ID)
	if fetched.Status != queue.StatusPending {
		t.Fatalf("pending job must not be reaped, got %s", fetched.Status)
	}
}

func TestResetAndHealth(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/q.mp4", queue.OriginPath)
	testsupport.CompleteJob(t, store, job, queue.Result{Name: "a", Similarity: 1, Path: "/v/a.mp4"})
	testsupport.NewJob(t, store, "/p.mp4", queue.OriginPath)

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Completed != 1 || health.Pending != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	counts, err := store.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if counts.Jobs != 2 || counts.Results != 1 {
		t.Fatalf("unexpected reset counts: %+v", counts)
	}
	jobs, _ := store.List(ctx, 0)
	if len(jobs) != 0 {
		t.Fatalf("expected empty store, got %d jobs", len(jobs))
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := queue.ParseStatus(" Completed "); !ok || s != queue.StatusCompleted {
		t.Fatalf("ParseStatus = %q, %v", s, ok)
	}
	if _, ok := queue.ParseStatus("encoding"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if !queue.StatusFailed.IsTerminal() || queue.StatusProcessing.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}
