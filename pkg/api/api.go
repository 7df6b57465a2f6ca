// Package api is a client for the scan server HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/projectdiscovery/scanwatch/pkg/types"
	"github.com/tidwall/gjson"
)

// maxBodySize bounds responses read from the server
const maxBodySize = 1 << 20

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// Client talks to the scan server API rooted at base (for example http://host:8080/api)
type Client struct {
	base string
	http *http.Client
	now  func() time.Time
}

// New creates an API client
func New(base string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("invalid api base %q: %w", base, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base %q: scheme must be http or https", base)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid api base %q: missing host", base)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base: strings.TrimRight(parsed.String(), "/"),
		http: httpClient,
		now:  time.Now,
	}, nil
}

// Base returns the normalized api base URL
func (c *Client) Base() string {
	return c.base
}

// Status fetches GET {base}/status
func (c *Client) Status(ctx context.Context) (types.StatusSnapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return types.StatusSnapshot{}, err
	}
	snapshot, err := DecodeStatus(body)
	if err != nil {
		return types.StatusSnapshot{}, err
	}
	snapshot.ReceivedAt = c.now()
	return snapshot, nil
}

// StartScan asks the server to start a scan of target
func (c *Client) StartScan(ctx context.Context, req types.StartScanRequest) (*types.StartScanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/start_scan", payload)
	if err != nil {
		return nil, err
	}
	var resp types.StartScanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}
	return &resp, nil
}

// StopScan asks the server to stop taskID
func (c *Client) StopScan(ctx context.Context, taskID string) error {
	if taskID == "" {
		return &types.ValidationError{Field: "task_id", Message: "task_id is required"}
	}
	_, err := c.do(ctx, http.MethodPost, "/stop_scan/"+url.PathEscape(taskID), nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// DecodeStatus reads a status payload. Gauges may be plain numbers or
// objects carrying a percent field.
func DecodeStatus(body []byte) (types.StatusSnapshot, error) {
	if !gjson.ValidBytes(body) {
		return types.StatusSnapshot{}, fmt.Errorf("invalid status payload")
	}
	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		return types.StatusSnapshot{}, fmt.Errorf("invalid status payload: expected object")
	}
	return types.StatusSnapshot{
		Status:        result.Get("status").String(),
		Version:       result.Get("version").String(),
		UptimeSeconds: gauge(result, "uptime", "uptime_seconds"),
		CPUPct:        gauge(result, "cpu"),
		MemPct:        gauge(result, "memory", "memory_usage"),
		DiskPct:       gauge(result, "disk", "disk_usage"),

		MemUsedBytes:   result.Get("memory_used_bytes").Uint(),
		MemTotalBytes:  result.Get("memory_total_bytes").Uint(),
		DiskUsedBytes:  result.Get("disk_used_bytes").Uint(),
		DiskTotalBytes: result.Get("disk_total_bytes").Uint(),
	}, nil
}

func gauge(result gjson.Result, keys ...string) float64 {
	for _, key := range keys {
		value := result.Get(key)
		if !value.Exists() {
			continue
		}
		if value.IsObject() {
			return value.Get("percent").Float()
		}
		return value.Float()
	}
	return 0
}
