package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"reelvault/internal/api"
	"reelvault/internal/notifications"
)

// ErrDaemonUnavailable indicates the daemon API could not be reached.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// StatusError carries the HTTP status and message of a failed API call.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return e.Message
}

// Client talks to a running reelvault daemon over its HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client for the given bind address. A bare host:port is
// promoted to an http URL.
func New(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("client: bind address required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("client: parse bind address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		// No timeout: event streaming blocks until the caller cancels.
		http: &http.Client{},
	}, nil
}

// Status fetches the daemon runtime summary.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// ListJobs returns conversion jobs, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, statuses []string) (api.JobListResponse, error) {
	values := url.Values{}
	for _, status := range statuses {
		if strings.TrimSpace(status) != "" {
			values.Add("status", status)
		}
	}
	var out api.JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", values, nil, &out)
	return out, err
}

// JobsForVideo returns the full job history for one video.
func (c *Client) JobsForVideo(ctx context.Context, videoID int64) (api.JobListResponse, error) {
	values := url.Values{}
	values.Set("video_id", strconv.FormatInt(videoID, 10))
	var out api.JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", values, nil, &out)
	return out, err
}

// CreateJobs submits a conversion batch.
func (c *Client) CreateJobs(ctx context.Context, req api.CreateJobsRequest) (api.CreateJobsResponse, error) {
	var out api.CreateJobsResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &out)
	return out, err
}

// Job fetches one job by id.
func (c *Client) Job(ctx context.Context, id int64) (api.JobResponse, error) {
	var out api.JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+strconv.FormatInt(id, 10), nil, nil, &out)
	return out, err
}

// CancelJob withdraws a job that is still waiting in the queue.
func (c *Client) CancelJob(ctx context.Context, id int64) (api.JobResponse, error) {
	var out api.JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+strconv.FormatInt(id, 10)+"/cancel", nil, nil, &out)
	return out, err
}

// DeleteJob removes a finished job and its output artifact.
func (c *Client) DeleteJob(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// ClearPending drops every queued job.
func (c *Client) ClearPending(ctx context.Context) (api.ClearedResponse, error) {
	var out api.ClearedResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/clear-pending", nil, nil, &out)
	return out, err
}

// ClearProcessing force-fails running jobs.
func (c *Client) ClearProcessing(ctx context.Context) (api.ClearedResponse, error) {
	var out api.ClearedResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/clear-processing", nil, nil, &out)
	return out, err
}

// Batch reports aggregate progress for a batch.
func (c *Client) Batch(ctx context.Context, batchID string) (api.BatchResponse, error) {
	var out api.BatchResponse
	err := c.do(ctx, http.MethodGet, "/api/batches/"+url.PathEscape(batchID), nil, nil, &out)
	return out, err
}

// Presets lists the built-in conversion presets.
func (c *Client) Presets(ctx context.Context) ([]api.PresetInfo, error) {
	var out struct {
		Presets []api.PresetInfo `json:"presets"`
	}
	err := c.do(ctx, http.MethodGet, "/api/presets", nil, nil, &out)
	return out.Presets, err
}

// Videos lists the library contents.
func (c *Client) Videos(ctx context.Context) ([]api.VideoInfo, error) {
	var out struct {
		Videos []api.VideoInfo `json:"videos"`
	}
	err := c.do(ctx, http.MethodGet, "/api/videos", nil, nil, &out)
	return out.Videos, err
}

// DeleteVideo removes a video from the library along with its file on disk.
// Videos with active conversion jobs are refused.
func (c *Client) DeleteVideo(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/videos/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// ScanSummary counts the outcome of a library rescan.
type ScanSummary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Scan triggers a rescan of every watched directory.
func (c *Client) Scan(ctx context.Context) (ScanSummary, error) {
	var out ScanSummary
	err := c.do(ctx, http.MethodPost, "/api/scan", nil, nil, &out)
	return out, err
}

// Events streams conversion events until the context is cancelled or the
// server closes the stream. Each decoded event is handed to fn.
func (c *Client) Events(ctx context.Context, fn func(notifications.Event)) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/events"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return readStatusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event notifications.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}
		fn(event)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return &StatusError{Code: resp.StatusCode, Message: payload.Error}
}

func wrapTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		var opErr *net.OpError
		if errors.As(urlErr.Err, &opErr) {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, opErr)
		}
	}
	return err
}

// IsDaemonUnavailable reports whether the error means the daemon is not
// reachable at the configured bind address.
func IsDaemonUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonUnavailable)
}
