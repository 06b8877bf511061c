package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"clipwatch/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternal, "engine", "search", "request failed", base)
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"engine", "search", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrValidation, "gateway", "search", "missing path", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrForbidden, "gateway", "video", "outside allow-list", nil), http.StatusForbidden},
		{services.Wrap(services.ErrNotFound, "jobs", "get", "unknown id", nil), http.StatusNotFound},
		{services.Wrap(services.ErrStorage, "jobs", "insert", "", errors.New("disk")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := services.HTTPStatus(tt.err); got != tt.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "", "", "Video file is required", nil)
	if got := services.Message(err); got != "Video file is required" {
		t.Fatalf("Message = %q", got)
	}
}
