package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipwatch/internal/api"
	"clipwatch/internal/queue"
	"clipwatch/internal/testsupport"
)

func TestSearchWaitPrintsRankedMatches(t *testing.T) {
	env := setupCLITestEnv(t)
	clip := writeVideo(t, filepath.Join(testsupport.BaseDir(env.cfg), "incoming"), "bout.mp4")

	stdout, _, err := env.run(t, "search", clip, "--wait", "--interval", "10ms")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, stdout, "completed")
	requireContains(t, stdout, "round_one")
	requireContains(t, stdout, "88.5%")
	requireContains(t, stdout, "/lib/round_two.mp4")
}

func TestSearchThenResultAndMatch(t *testing.T) {
	env := setupCLITestEnv(t)
	clip := writeVideo(t, filepath.Join(testsupport.BaseDir(env.cfg), "incoming"), "bout.mp4")

	stdout, _, err := env.run(t, "search", clip)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	id := strings.TrimSpace(stdout)
	if id == "" {
		t.Fatal("expected a request id")
	}

	waitFor(t, 5*time.Second, func() bool {
		job, err := env.store.GetByID(context.Background(), id)
		return err == nil && job != nil && job.Status == queue.StatusCompleted
	})

	stdout, _, err = env.run(t, "result", id, "--json")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	var result api.SearchResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, stdout)
	}
	if result.Status != api.StatusCompleted || len(result.Results) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	stdout, _, err = env.run(t, "match", id, "/lib/round_one.mp4", "yes")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	requireContains(t, stdout, "Result labelled: yes")

	stdout, _, err = env.run(t, "jobs", "show", id)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, stdout, "completed")
	requireContains(t, stdout, "yes")

	if _, _, err := env.run(t, "match", id, "/lib/round_one.mp4", "maybe"); err == nil {
		t.Fatal("expected invalid label to fail")
	}
}

func TestSearchUploadBatchAndLatest(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := filepath.Join(testsupport.BaseDir(env.cfg), "batch")
	writeVideo(t, dir, "a.mp4")
	writeVideo(t, dir, "b.mkv")
	writeVideo(t, dir, "notes.txt")

	stdout, _, err := env.run(t, "search", dir)
	if err != nil {
		t.Fatalf("search dir: %v", err)
	}
	requireContains(t, stdout, "Queued 2 searches")

	upload := writeVideo(t, filepath.Join(testsupport.BaseDir(env.cfg), "incoming"), "upload.mp4")
	stdout, _, err = env.run(t, "search", upload, "--upload", "--wait", "--interval", "10ms", "--json")
	if err != nil {
		t.Fatalf("search upload: %v", err)
	}
	var results map[string]api.SearchResult
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}

	waitFor(t, 5*time.Second, func() bool {
		health, err := env.store.Health(context.Background())
		return err == nil && health.Completed == 3
	})

	stdout, _, err = env.run(t, "latest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	requireContains(t, stdout, "round_one")

	stdout, _, err = env.run(t, "forget", "/lib/round_one.mp4")
	if err != nil {
		t.Fatalf("forget: %v", err)
	}
	requireContains(t, stdout, "Removed 3 results")
}

func TestSearchRejectsMissingPath(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := env.run(t, "search", filepath.Join(testsupport.BaseDir(env.cfg), "missing.mp4"))
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	requireContains(t, err.Error(), "400")
}

func TestResetRequiresConfirmation(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewJob(t, env.store, "/tmp/a.mp4", queue.OriginPath)
	writeVideo(t, env.cfg.Paths.WatchDir, "record_1.webm")

	if _, _, err := env.run(t, "reset"); err == nil {
		t.Fatal("expected reset without --yes to fail")
	}
	stdout, _, err := env.run(t, "reset", "--yes")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	requireContains(t, stdout, "Removed 1 searches")
	requireContains(t, stdout, "1 videos")
}

func TestBearerTokenFlag(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("sekrit"))

	_, _, err := env.run(t, "--token", "wrong", "reset", "--yes")
	if err == nil {
		t.Fatal("expected wrong token to be rejected")
	}
	requireContains(t, err.Error(), "401")

	if _, _, err := env.run(t, "reset", "--yes"); err != nil {
		t.Fatalf("reset with configured token: %v", err)
	}
}

func TestParseMatchLabel(t *testing.T) {
	one, zero := 1, 0
	tests := []struct {
		in      string
		want    *int
		wantErr bool
	}{
		{"yes", &one, false},
		{"1", &one, false},
		{"No", &zero, false},
		{"clear", nil, false},
		{"perhaps", nil, true},
	}
	for _, tt := range tests {
		got, err := parseMatchLabel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseMatchLabel(%q) err = %v", tt.in, err)
		}
		if formatMatch(got) != formatMatch(tt.want) {
			t.Fatalf("parseMatchLabel(%q) = %s, want %s", tt.in, formatMatch(got), formatMatch(tt.want))
		}
	}
}
