package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipwatch/internal/services"
)

func TestSearchDecodesMatchesInOrder(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body videoRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		gotPath = body.VideoPath
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"rank": 1, "video_name": "Alpha", "similarity": 0.91, "video_path": "/clips/a.mp4"},
			{"rank": "2", "video_name": "Beta", "similarity": "0.80", "video_path": "/clips/b.mp4"},
			{"video_name": "", "similarity": 0.5, "video_path": "/clips/c.mp4"}
		]`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/"})
	matches, err := client.Search(context.Background(), "/uploads/q.mp4")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotPath != "/uploads/q.mp4" {
		t.Fatalf("engine received path %q", gotPath)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Rank != 1 || matches[0].Name != "Alpha" || matches[0].Similarity != 0.91 {
		t.Fatalf("unexpected first match %+v", matches[0])
	}
	if matches[1].Rank != 2 || matches[1].Similarity != 0.80 {
		t.Fatalf("string fields not parsed: %+v", matches[1])
	}
	if matches[2].Rank != 0 || matches[2].Path != "/clips/c.mp4" {
		t.Fatalf("missing rank should decode as zero: %+v", matches[2])
	}
}

func TestSearchReportsEngineError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Video not found"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Search(context.Background(), "/missing.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external marker, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || statusErr.Message != "Video not found" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestSearchRejectsNonArrayPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if _, err := client.Search(context.Background(), "/q.mp4"); !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestSearchTimeoutIsClassified(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{BaseURL: server.URL, SearchTimeout: 50 * time.Millisecond})
	_, err := client.Search(context.Background(), "/q.mp4")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}

func TestVerifyAndExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/verify":
			_, _ = w.Write([]byte(`{"similarity": 0.7345, "video_path": "/q.mp4"}`))
		case "/extract":
			_, _ = w.Write([]byte(`{"success": true, "message": "done", "total_videos": 12}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	similarity, err := client.Verify(context.Background(), "/q.mp4")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if similarity != 0.7345 {
		t.Fatalf("unexpected similarity %v", similarity)
	}
	result, err := client.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !result.Success || result.TotalVideos != 12 {
		t.Fatalf("unexpected extract result %+v", result)
	}
}

func TestHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	healthy = false
	if err := client.Health(context.Background()); err == nil {
		t.Fatal("expected unhealthy error")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name, path, want string
	}{
		{"Explicit", "/x/y.mp4", "Explicit"},
		{"", "/clips/summer_sale-ad.mp4", "Summer Sale Ad"},
		{"  ", "", UnknownName},
	}
	for _, tc := range tests {
		if got := DisplayName(tc.name, tc.path); got != tc.want {
			t.Errorf("DisplayName(%q, %q) = %q, want %q", tc.name, tc.path, got, tc.want)
		}
	}
}
