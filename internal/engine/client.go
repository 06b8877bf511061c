package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clipwatch/internal/config"
	"clipwatch/internal/services"
)

const (
	defaultSearchTimeout  = 5 * time.Minute
	defaultVerifyTimeout  = 5 * time.Minute
	defaultExtractTimeout = time.Hour
	healthTimeout         = 5 * time.Second
	maxErrorBody          = 2048
)

// Config captures the runtime settings required to talk to the similarity engine.
type Config struct {
	BaseURL        string
	SearchTimeout  time.Duration
	VerifyTimeout  time.Duration
	ExtractTimeout time.Duration
}

// ConfigFrom derives engine settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:        cfg.Engine.BaseURL,
		SearchTimeout:  time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
		VerifyTimeout:  time.Duration(cfg.Engine.VerifyTimeoutSeconds) * time.Second,
		ExtractTimeout: time.Duration(cfg.Engine.ExtractTimeoutSeconds) * time.Second,
	}
}

// Client calls the external similarity engine over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an engine client. Timeouts are applied per call through
// the request context, so the HTTP client itself carries none.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = defaultSearchTimeout
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = defaultVerifyTimeout
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = defaultExtractTimeout
	}
	client := &Client{cfg: cfg, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Match is one ranked entry returned by a search. Rank is zero when the engine omitted it.
type Match struct {
	Rank       int
	Name       string
	Similarity float64
	Path       string
}

// ExtractResult is the engine's reply to an index rebuild.
type ExtractResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	TotalVideos int    `json:"total_videos"`
}

// StatusError reports a non-2xx engine response.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine %s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("engine %s: http %d: %s", e.Op, e.StatusCode, e.Message)
}

type videoRequest struct {
	VideoPath string `json:"video_path"`
}

type rawMatch struct {
	Rank       json.RawMessage `json:"rank"`
	VideoName  string          `json:"video_name"`
	Similarity json.RawMessage `json:"similarity"`
	VideoPath  string          `json:"video_path"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Search asks the engine for clips similar to videoPath, preserving engine order.
func (c *Client) Search(ctx context.Context, videoPath string) ([]Match, error) {
	body, err := c.post(ctx, "search", "/search", c.cfg.SearchTimeout, videoRequest{VideoPath: videoPath})
	if err != nil {
		return nil, err
	}
	return decodeMatches(body)
}

// Verify asks the engine for a single similarity score for videoPath.
func (c *Client) Verify(ctx context.Context, videoPath string) (float64, error) {
	body, err := c.post(ctx, "verify", "/verify", c.cfg.VerifyTimeout, videoRequest{VideoPath: videoPath})
	if err != nil {
		return 0, err
	}
	var payload struct {
		Similarity json.RawMessage `json:"similarity"`
		Error      string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, services.Wrap(services.ErrExternal, "engine", "verify", "malformed response", err)
	}
	if payload.Error != "" {
		return 0, services.Wrap(services.ErrExternal, "engine", "verify", payload.Error, nil)
	}
	similarity, ok := parseFloat(payload.Similarity)
	if !ok {
		return 0, services.Wrap(services.ErrExternal, "engine", "verify", "response has no similarity", nil)
	}
	return similarity, nil
}

// Extract asks the engine to rebuild its feature index.
func (c *Client) Extract(ctx context.Context) (ExtractResult, error) {
	body, err := c.post(ctx, "extract", "/extract", c.cfg.ExtractTimeout, struct{}{})
	if err != nil {
		return ExtractResult{}, err
	}
	var result ExtractResult
	if err := json.Unmarshal(body, &result); err != nil {
		return ExtractResult{}, services.Wrap(services.ErrExternal, "engine", "extract", "malformed response", err)
	}
	return result, nil
}

// Health checks that the engine answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("engine health: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError("health", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Wrap(services.ErrExternal, "engine", "health", "", &StatusError{Op: "health", StatusCode: resp.StatusCode})
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, timeout time.Duration, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("engine %s: encode request: %w", op, err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("engine %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
		return nil, services.Wrap(services.ErrExternal, "engine", op, "", statusErr)
	}
	return body, nil
}

func classifyTransportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return services.Wrap(services.ErrTimeout, "engine", op, "request timed out", err)
	}
	return services.Wrap(services.ErrExternal, "engine", op, "request failed", err)
}

func errorMessage(body []byte) string {
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}

func decodeMatches(body []byte) ([]Match, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		var payload errorPayload
		if err := json.Unmarshal(trimmed, &payload); err == nil && payload.Error != "" {
			return nil, services.Wrap(services.ErrExternal, "engine", "search", payload.Error, nil)
		}
		return nil, services.Wrap(services.ErrExternal, "engine", "search", "Invalid response from similarity engine", nil)
	}

	var raw []rawMatch
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, services.Wrap(services.ErrExternal, "engine", "search", "malformed response", err)
	}
	matches := make([]Match, 0, len(raw))
	for _, r := range raw {
		rank, _ := parseInt(r.Rank)
		similarity, _ := parseFloat(r.Similarity)
		matches = append(matches, Match{
			Rank:       rank,
			Name:       r.VideoName,
			Similarity: similarity,
			Path:       r.VideoPath,
		})
	}
	return matches, nil
}

func parseFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func parseInt(raw json.RawMessage) (int, bool) {
	f, ok := parseFloat(raw)
	if !ok || f < 1 {
		return 0, false
	}
	return int(f), true
}
