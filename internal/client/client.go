// Package client wraps the daemon's HTTP API for the command line tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"subburn/internal/api"
)

const defaultHTTPTimeout = 30 * time.Second

// Config describes the daemon client configuration.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to a running subburnd instance.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// APIError carries the daemon's error body alongside the HTTP status.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("daemon error (%d, %s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("daemon error (%d): %s", e.Status, e.Message)
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("client: base url is required")
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}, nil
}

// Healthy reports whether the daemon answers its health probe.
func (c *Client) Healthy(ctx context.Context) bool {
	var payload map[string]string
	return c.getJSON(ctx, "/api/healthz", nil, &payload) == nil
}

// Status fetches the engine status summary.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.getJSON(ctx, "/api/status", nil, &resp)
	return resp, err
}

// Submit enqueues a render job.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	var resp api.SubmitResponse
	err := c.postJSON(ctx, "/api/jobs", req, &resp)
	return resp, err
}

// List returns every job currently tracked by the daemon.
func (c *Client) List(ctx context.Context) ([]api.JobView, error) {
	var resp api.JobListResponse
	if err := c.getJSON(ctx, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Get returns one job by id.
func (c *Client) Get(ctx context.Context, id string) (api.JobView, error) {
	var resp api.JobView
	err := c.getJSON(ctx, "/api/jobs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Cancel requests cancellation and reports the resulting state.
func (c *Client) Cancel(ctx context.Context, id string) (api.CancelResponse, error) {
	var resp api.CancelResponse
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return resp, err
	}
	err = c.doJSON(req, &resp)
	return resp, err
}

// History returns journaled lifecycle records, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]api.HistoryRecordView, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp api.HistoryResponse
	if err := c.getJSON(ctx, "/api/history", query, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// FetchResult streams the finished artifact into w and returns the suggested
// filename from the daemon.
func (c *Client) FetchResult(ctx context.Context, id string, w io.Writer) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/result", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}
	name := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if _, err := io.Copy(w, resp.Body); err != nil {
		return name, fmt.Errorf("fetch result: %w", err)
	}
	return name, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Kind = body.Kind
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func filenameFromDisposition(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "filename="); ok {
			return strings.Trim(value, `"`)
		}
	}
	return ""
}
