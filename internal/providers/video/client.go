package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"videochain/internal/domain"
	"videochain/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// TaskState is the normalized provider task state.
type TaskState string

const (
	TaskQueued     TaskState = "queued"
	TaskProcessing TaskState = "processing"
	TaskCompleted  TaskState = "completed"
	TaskFailed     TaskState = "failed"
)

// TaskStatus is the result of a single poll. RawState keeps the provider
// wording for status lines.
type TaskStatus struct {
	State         TaskState
	RawState      string
	Progress      float64
	URL           string
	FailureReason string
}

// Options configures the video generation client.
type Options struct {
	APIKey            string
	BaseURL           string
	HTTPClient        *http.Client
	Logger            *infra.Logger
	RequestTimeout    time.Duration
	DownloadTimeout   time.Duration
	RequestsPerSecond float64
}

// Client talks to an OpenAI compatible /v1/videos API.
type Client struct {
	apiKey          string
	baseURL         string
	httpClient      *http.Client
	logger          *infra.Logger
	requestTimeout  time.Duration
	downloadTimeout time.Duration
	limiter         *rate.Limiter
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Progress percent         `json:"progress"`
	URL      string          `json:"url"`
	Error    json.RawMessage `json:"error"`
	Message  string          `json:"message"`
	Reason   string          `json:"reason"`
}

type contentResponse struct {
	URL string `json:"url"`
}

// percent accepts numbers, numeric strings and null.
type percent float64

func (p *percent) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	raw = strings.TrimSuffix(raw, "%")
	if raw == "" || raw == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*p = 0
		return nil
	}
	*p = percent(f)
	return nil
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.apiyi.com"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("video: invalid base url: %w", err)
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	downloadTimeout := opts.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = 10 * time.Minute
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		baseURL:         baseURL,
		httpClient:      httpClient,
		logger:          logger,
		requestTimeout:  requestTimeout,
		downloadTimeout: downloadTimeout,
		limiter:         rate.NewLimiter(limit, 1),
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit creates a generation task and returns its id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := req.writeMultipart(mw); err != nil {
		return "", fmt.Errorf("video: build payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("video: build payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/videos", body)
	if err != nil {
		return "", fmt.Errorf("video: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Debug().Str("model", req.ModelName()).Str("family", string(req.Family())).Msg("video: submit")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrProviderUnreachable, err)
	}
	if resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("model", req.ModelName()).Msg("video: submit rejected")
		return "", fmt.Errorf("%w: API Error: %s", domain.ErrProviderRejected, strings.TrimSpace(string(raw)))
	}
	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode submit response: %v", domain.ErrProviderRejected, err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", fmt.Errorf("%w: API Error: response carried no task id", domain.ErrProviderRejected)
	}
	c.logger.Debug().Str("task_id", out.ID).Str("status", out.Status).Msg("video: submitted")
	return out.ID, nil
}

// Poll performs one status check. A completed task without a URL triggers a
// single lookup of the content endpoint.
func (c *Client) Poll(ctx context.Context, taskID string) (*TaskStatus, error) {
	var out statusResponse
	if err := c.getJSON(ctx, "/v1/videos/"+url.PathEscape(taskID), &out); err != nil {
		return nil, err
	}
	status := &TaskStatus{
		State:    normalizeState(out.Status),
		RawState: strings.TrimSpace(out.Status),
		Progress: clampPercent(float64(out.Progress)),
		URL:      strings.TrimSpace(out.URL),
	}
	if status.RawState == "" {
		status.RawState = string(status.State)
	}
	switch status.State {
	case TaskFailed:
		status.FailureReason = failureReason(out)
	case TaskCompleted:
		if status.URL == "" {
			var content contentResponse
			if err := c.getJSON(ctx, "/v1/videos/"+url.PathEscape(taskID)+"/content", &content); err != nil {
				c.logger.Warn().Err(err).Str("task_id", taskID).Msg("video: content lookup failed")
			} else {
				status.URL = strings.TrimSpace(content.URL)
			}
		}
	}
	return status, nil
}

// Download streams resultURL into dest.
func (c *Client) Download(ctx context.Context, resultURL, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %s", domain.ErrDownloadFailed, resultURL, resp.Status)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr == nil && n == 0 {
		copyErr = errors.New("empty body")
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("%w: %s: %v", domain.ErrDownloadFailed, resultURL, copyErr)
	}
	c.logger.Debug().Str("dest", dest).Int64("bytes", n).Msg("video: downloaded")
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("video: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: GET %s returned %s", domain.ErrProviderUnreachable, path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrProviderUnreachable, path, err)
	}
	return nil
}

func normalizeState(raw string) TaskState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "succeeded", "success", "done":
		return TaskCompleted
	case "failed", "failure", "error", "cancelled", "canceled":
		return TaskFailed
	case "queued", "pending", "submitted", "":
		return TaskQueued
	default:
		return TaskProcessing
	}
}

func failureReason(out statusResponse) string {
	if len(out.Error) > 0 && string(out.Error) != "null" {
		var s string
		if err := json.Unmarshal(out.Error, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(out.Error, &obj); err == nil && strings.TrimSpace(obj.Message) != "" {
			return strings.TrimSpace(obj.Message)
		}
	}
	if m := strings.TrimSpace(out.Message); m != "" {
		return m
	}
	if r := strings.TrimSpace(out.Reason); r != "" {
		return r
	}
	return "Unknown reason"
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
