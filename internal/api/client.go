package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Upload routes accepted by the gateway.
const (
	RouteSaveVideo     = "save-video"
	RouteSaveVideoAuto = "save-video-auto"
	RouteSearch        = "search"
)

// UploadField is the multipart field carrying a video.
const UploadField = "video"

// Client talks to a clipwatch gateway.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a client for baseURL (scheme and host, optional path prefix).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPError is a non-2xx gateway response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: http %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway: http %d: %s", e.StatusCode, e.Message)
}

// SearchPath submits an existing file or directory.
func (c *Client) SearchPath(ctx context.Context, path string) (SearchAccepted, error) {
	var out SearchAccepted
	err := c.doJSON(ctx, http.MethodPost, "/search", SearchPathRequest{Path: path}, &out)
	return out, err
}

// Upload sends the file at path as multipart field "video" to route.
func (c *Client) Upload(ctx context.Context, route, path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreatePart(fileHeader(filepath.Base(path)))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/"+strings.TrimPrefix(route, "/"), pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req)
}

// UploadSearch uploads a clip and starts a search on it.
func (c *Client) UploadSearch(ctx context.Context, path string) (SearchAccepted, error) {
	var out SearchAccepted
	body, err := c.Upload(ctx, RouteSearch, path)
	if err != nil {
		return out, err
	}
	return out, json.Unmarshal(body, &out)
}

// Result polls one job.
func (c *Client) Result(ctx context.Context, id string) (SearchResult, error) {
	var out SearchResult
	err := c.doJSON(ctx, http.MethodGet, "/search/result/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Latest fetches the leaderboard.
func (c *Client) Latest(ctx context.Context) (SearchResult, error) {
	var out SearchResult
	err := c.doJSON(ctx, http.MethodGet, "/search/latest", nil, &out)
	return out, err
}

// SetMatch labels a job's result.
func (c *Client) SetMatch(ctx context.Context, id, videoPath string, match *int) (MatchResponse, error) {
	var out MatchResponse
	err := c.doJSON(ctx, http.MethodPut, "/search/result/"+url.PathEscape(id)+"/match",
		MatchRequest{VideoPath: videoPath, ResultMatch: match}, &out)
	return out, err
}

// DeleteResult removes results pointing at path.
func (c *Client) DeleteResult(ctx context.Context, path string) (DeleteResultResponse, error) {
	var out DeleteResultResponse
	err := c.doJSON(ctx, http.MethodDelete, "/result", PathRequest{Path: path}, &out)
	return out, err
}

// Reset wipes all jobs and results and purges the watched folder.
func (c *Client) Reset(ctx context.Context) (ResetResponse, error) {
	var out ResetResponse
	err := c.doJSON(ctx, http.MethodDelete, "/reset", nil, &out)
	return out, err
}

// Templates lists reference clips known to the gateway.
func (c *Client) Templates(ctx context.Context) (TemplatesResponse, error) {
	var out TemplatesResponse
	err := c.doJSON(ctx, http.MethodGet, "/templates", nil, &out)
	return out, err
}

// StartVerify starts a verification of path.
func (c *Client) StartVerify(ctx context.Context, path string) (VerifyStartResponse, error) {
	var out VerifyStartResponse
	err := c.doJSON(ctx, http.MethodPost, "/verify/start", PathRequest{Path: path}, &out)
	return out, err
}

// VerifyStatus polls a verification.
func (c *Client) VerifyStatus(ctx context.Context, id string) (VerifyStatus, error) {
	var out VerifyStatus
	err := c.doJSON(ctx, http.MethodGet, "/verify/status/"+url.PathEscape(id), nil, &out)
	return out, err
}

// UpdateDB asks the engine, through the gateway, to rebuild its index.
func (c *Client) UpdateDB(ctx context.Context) (UpdateDBResponse, error) {
	var out UpdateDBResponse
	err := c.doJSON(ctx, http.MethodPost, "/update-db", nil, &out)
	return out, err
}

// Health fetches gateway health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	data, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode}
		var payload ErrorResponse
		if json.Unmarshal(data, &payload) == nil {
			httpErr.Message = payload.Error
		}
		return nil, httpErr
	}
	return data, nil
}

func fileHeader(filename string) textproto.MIMEHeader {
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, filename)},
		"Content-Type":        {contentTypeFor(filename)},
	}
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "video/webm"
	}
}
