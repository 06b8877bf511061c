package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipwatch/internal/config"
)

const userAgent = "clipwatch/1.0"

// Event identifies a notification template.
type Event string

const (
	EventSearchMatched Event = "search_matched"
	EventSearchFailed  Event = "search_failed"
	EventIndexRebuilt  Event = "index_rebuilt"
	EventTest          Event = "test"
)

// Payload carries the values a template interpolates.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSearchMatched:
		body := fmt.Sprintf("🎯 %s matched %s (%.1f%%)",
			payload.str("source", "clip"),
			payload.str("match", "unknown"),
			payload.number("similarity"),
		)
		if path := payload.str("matchPath", ""); path != "" {
			body += "\nLibrary: " + path
		}
		return message{
			title:    "clipwatch - Match Found",
			body:     body,
			tags:     []string{"clipwatch", "search", "match"},
			priority: "high",
		}, true
	case EventSearchFailed:
		return message{
			title:    "clipwatch - Search Failed",
			body:     fmt.Sprintf("❌ Search failed for %s: %s", payload.str("source", "clip"), payload.str("error", "unknown error")),
			tags:     []string{"clipwatch", "search", "error"},
			priority: "high",
		}, true
	case EventIndexRebuilt:
		return message{
			title: "clipwatch - Index Rebuilt",
			body:  fmt.Sprintf("📚 Library index rebuilt: %d videos", payload.count("totalVideos")),
			tags:  []string{"clipwatch", "index", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "clipwatch - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"clipwatch", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) str(key, fallback string) string {
	if v, ok := p[key]; ok {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return fallback
}

func (p Payload) number(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
