package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipwatch/internal/engine"
	"clipwatch/internal/logging"
	"clipwatch/internal/queue"
	"clipwatch/internal/services"
	"clipwatch/internal/testsupport"
	"clipwatch/internal/workflow"
)

type fakeEngine struct {
	mu       sync.Mutex
	calls    int32
	matches  []engine.Match
	err      error
	block    bool
	verified float64
}

func (f *fakeEngine) Search(ctx context.Context, videoPath string) ([]engine.Match, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	block, matches, err := f.block, f.matches, f.err
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return matches, err
}

func (f *fakeEngine) Verify(ctx context.Context, videoPath string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.verified, nil
}

func newManager(t *testing.T, eng workflow.Engine) (*workflow.Manager, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, eng, logging.NewNop())
	t.Cleanup(mgr.Stop)
	return mgr, store
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func mustJob(t *testing.T, store *queue.Store, id string) *queue.Job {
	t.Helper()
	job, err := store.GetByID(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("GetByID(%s) = %v, %v", id, job, err)
	}
	return job
}

func TestCompletedJobKeepsTopResultsInRankOrder(t *testing.T) {
	matches := make([]engine.Match, 0, 25)
	for i := 0; i < 25; i++ {
		matches = append(matches, engine.Match{Similarity: float64(100 - i), Path: fmt.Sprintf("/lib/clip_%02d.mp4", i)})
	}
	eng := &fakeEngine{matches: matches}
	mgr, store := newManager(t, eng)
	startManager(t, mgr)

	job, err := mgr.Submit(context.Background(), "/query.mp4", queue.OriginPath)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	mgr.Wait()

	if got := mustJob(t, store, job.ID).Status; got != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	results, err := store.Results(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != workflow.DefaultMaxResults {
		t.Fatalf("expected %d results, got %d", workflow.DefaultMaxResults, len(results))
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Fatalf("result %d has rank %d", i, r.Rank)
		}
	}
	if results[0].Name != "Clip 00" || results[0].Similarity != 100 {
		t.Fatalf("unexpected top result: %+v", results[0])
	}
}

func TestEngineRanksOrderResults(t *testing.T) {
	eng := &fakeEngine{matches: []engine.Match{
		{Rank: 2, Name: "second", Similarity: 80, Path: "/b.mp4"},
		{Rank: 1, Name: "first", Similarity: 140, Path: "/a.mp4"},
	}}
	mgr, store := newManager(t, eng)
	startManager(t, mgr)

	job, err := mgr.Submit(context.Background(), "/query.mp4", queue.OriginPath)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	mgr.Wait()

	results, err := store.Results(context.Background(), job.ID)
	if err != nil || len(results) != 2 {
		t.Fatalf("Results = %v, %v", results, err)
	}
	if results[0].Path != "/a.mp4" || results[0].Similarity != 100 {
		t.Fatalf("expected clamped rank 1 first, got %+v", results[0])
	}
}

func TestEngineFailureFailsJobWithTruncatedMessage(t *testing.T) {
	long := strings.Repeat("x", 1500)
	eng := &fakeEngine{err: services.Wrap(services.ErrExternal, "engine", "search", long, nil)}
	mgr, store := newManager(t, eng)
	startManager(t, mgr)

	job, err := mgr.Submit(context.Background(), "/query.mp4", queue.OriginPath)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	mgr.Wait()

	failed := mustJob(t, store, job.ID)
	if failed.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}
	if n := len([]rune(failed.ErrorMessage)); n != queue.MaxErrorLength {
		t.Fatalf("error message length = %d", n)
	}
	if summary := mgr.Status(context.Background()); summary.LastError == "" {
		t.Fatal("expected last error in status")
	}
}

func TestTemporaryUploadRemovedAfterJob(t *testing.T) {
	eng := &fakeEngine{}
	mgr, _ := newManager(t, eng)
	startManager(t, mgr)

	dir := t.TempDir()
	upload := filepath.Join(dir, "upload.mp4")
	kept := filepath.Join(dir, "kept.mp4")
	testsupport.WriteFile(t, upload, 16)
	testsupport.WriteFile(t, kept, 16)

	if _, err := mgr.Submit(context.Background(), upload, queue.OriginUpload); err != nil {
		t.Fatalf("Submit upload: %v", err)
	}
	if _, err := mgr.Submit(context.Background(), kept, queue.OriginPath); err != nil {
		t.Fatalf("Submit path: %v", err)
	}
	mgr.Wait()

	if _, err := os.Stat(upload); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected upload removed, stat err = %v", err)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("expected caller path kept: %v", err)
	}
}

func TestSubmitPathDirectoryQueuesVideosOnly(t *testing.T) {
	eng := &fakeEngine{}
	mgr, _ := newManager(t, eng)
	startManager(t, mgr)

	dir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.webm", "c.mov", "notes.txt"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 8)
	}

	jobs, batch, err := mgr.SubmitPath(context.Background(), dir)
	if err != nil {
		t.Fatalf("SubmitPath: %v", err)
	}
	if !batch || len(jobs) != 3 {
		t.Fatalf("expected batch of 3, got batch=%v jobs=%d", batch, len(jobs))
	}
	mgr.Wait()
	if calls := atomic.LoadInt32(&eng.calls); calls != 3 {
		t.Fatalf("expected 3 engine calls, got %d", calls)
	}
}

func TestSubmitPathRejectsInvalidInput(t *testing.T) {
	mgr, store := newManager(t, &fakeEngine{})
	startManager(t, mgr)

	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, text, 8)
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.mp4"), text, empty} {
		if _, _, err := mgr.SubmitPath(context.Background(), path); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("SubmitPath(%s) err = %v, want validation", path, err)
		}
	}
	jobs, err := store.List(context.Background(), 0)
	if err != nil || len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d, %v", len(jobs), err)
	}
}

func TestStartResumesPendingJobs(t *testing.T) {
	eng := &fakeEngine{matches: []engine.Match{{Name: "a", Similarity: 50, Path: "/a.mp4"}}}
	mgr, store := newManager(t, eng)
	job := testsupport.NewJob(t, store, "/queued.mp4", queue.OriginWatch)

	startManager(t, mgr)
	mgr.Wait()

	if got := mustJob(t, store, job.ID).Status; got != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
}

func TestSubmitBeforeStartStaysPending(t *testing.T) {
	eng := &fakeEngine{}
	mgr, store := newManager(t, eng)

	job, err := mgr.Submit(context.Background(), "/early.mp4", queue.OriginPath)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := mustJob(t, store, job.ID).Status; got != queue.StatusPending {
		t.Fatalf("status = %s, want pending", got)
	}
	if calls := atomic.LoadInt32(&eng.calls); calls != 0 {
		t.Fatalf("engine called %d times before Start", calls)
	}
}

func TestStopCancelsInFlightSearch(t *testing.T) {
	eng := &fakeEngine{block: true}
	mgr, store := newManager(t, eng)
	startManager(t, mgr)

	job, err := mgr.Submit(context.Background(), "/slow.mp4", queue.OriginPath)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for mustJob(t, store, job.ID).Status != queue.StatusProcessing {
		if time.Now().After(deadline) {
			t.Fatal("job never reached processing")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mgr.Stop()

	stopped := mustJob(t, store, job.ID)
	if stopped.Status != queue.StatusFailed || !strings.Contains(stopped.ErrorMessage, "cancelled") {
		t.Fatalf("unexpected job after stop: %+v", stopped)
	}
}

func TestVerifyReportsSimilarity(t *testing.T) {
	eng := &fakeEngine{verified: 87.5}
	mgr, _ := newManager(t, eng)
	startManager(t, mgr)

	id := mgr.StartVerify(context.Background(), "/clip.mp4")
	if id == "" {
		t.Fatal("expected verify id")
	}
	mgr.Wait()

	state, ok := mgr.Verification(id)
	if !ok {
		t.Fatal("verification not found")
	}
	if state.Status != workflow.VerifyCompleted || state.Progress != 100 || state.Similarity != 87.5 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if _, ok := mgr.Verification("unknown"); ok {
		t.Fatal("expected unknown id to be missing")
	}
}

func TestVerifyFailureRecorded(t *testing.T) {
	eng := &fakeEngine{err: services.Wrap(services.ErrExternal, "engine", "verify", "engine down", nil)}
	mgr, _ := newManager(t, eng)
	startManager(t, mgr)

	id := mgr.StartVerify(context.Background(), "/clip.mp4")
	mgr.Wait()

	state, ok := mgr.Verification(id)
	if !ok || state.Status != workflow.VerifyFailed || !strings.Contains(state.Error, "engine down") {
		t.Fatalf("unexpected state: %+v, %v", state, ok)
	}
}
