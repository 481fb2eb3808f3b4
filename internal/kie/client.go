// Package kie talks to the Kie.ai job API, which runs long video and image
// generations asynchronously behind a task id.
package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/metrics"
	"thirdcoast.systems/contentdna/pkg/retry"
)

const (
	DefaultBaseURL    = "https://api.kie.ai/api/v1"
	defaultNotesLabel = "Additional notes"
	providerName      = "kie"
)

type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds control calls (submit, poll). Defaults to 30s.
	Timeout time.Duration
	// DownloadTimeout bounds Download. Defaults to 60s.
	DownloadTimeout time.Duration
	// NotesLabel prefixes additional notes appended to prompts.
	NotesLabel string
	Retry      *retry.Policy
}

type Client struct {
	baseURL    string
	apiKey     string
	notesLabel string
	http       *http.Client
	download   *http.Client
	retry      retry.Policy
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dlTimeout := opts.DownloadTimeout
	if dlTimeout <= 0 {
		dlTimeout = 60 * time.Second
	}
	label := opts.NotesLabel
	if label == "" {
		label = defaultNotesLabel
	}
	policy := retry.Default()
	if opts.Retry != nil {
		policy = *opts.Retry
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		notesLabel: label,
		http:       &http.Client{Timeout: timeout},
		download:   &http.Client{Timeout: dlTimeout},
		retry:      policy,
	}
}

// envelope is the common reply wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// CreateVideoTask submits a text-to-video job and returns its task id.
func (c *Client) CreateVideoTask(ctx context.Context, req VideoTaskRequest) (string, error) {
	payload, err := BuildVideoPayload(req, c.notesLabel)
	if err != nil {
		return "", err
	}
	return c.createTask(ctx, "create video task", payload)
}

func (c *Client) createTask(ctx context.Context, op string, payload CreateTaskPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	policy := c.retry
	policy.OnRetry = metrics.RetryHook("kie_create_task")
	return retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		start := time.Now()
		env, err := c.do(ctx, op, http.MethodPost, c.baseURL+"/jobs/createTask", body)
		metrics.ObserveProvider(providerName, "create_task", start, err)
		if err != nil {
			return "", err
		}

		var data struct {
			TaskID string `json:"taskId"`
		}
		if len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &data)
		}
		if data.TaskID == "" {
			return "", &apperr.ProviderError{Provider: providerName, Op: op, Message: "reply has no taskId"}
		}
		slog.Info("Kie task created", "task_id", data.TaskID, "model", payload.Model)
		return data.TaskID, nil
	})
}

// GetTaskStatus reads the current state of a task.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("%w: task id is required", apperr.ErrInvalidInput)
	}
	u := c.baseURL + "/jobs/recordInfo?" + url.Values{"taskId": {taskID}}.Encode()

	policy := c.retry
	policy.OnRetry = metrics.RetryHook("kie_record_info")
	return retry.Do(ctx, policy, func(ctx context.Context) (*TaskStatus, error) {
		start := time.Now()
		env, err := c.do(ctx, "get task status", http.MethodGet, u, nil)
		metrics.ObserveProvider(providerName, "record_info", start, err)
		if err != nil {
			return nil, err
		}
		return parseTaskStatus(taskID, env.Data), nil
	})
}

// Download fetches a result file with the bulk timeout.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.download.Do(req)
	if err != nil {
		metrics.ObserveProvider(providerName, "download", start, err)
		return nil, &apperr.ProviderError{Provider: providerName, Op: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &apperr.ProviderError{Provider: providerName, Op: "download", StatusCode: resp.StatusCode}
		metrics.ObserveProvider(providerName, "download", start, err)
		return nil, err
	}
	b, err := io.ReadAll(resp.Body)
	metrics.ObserveProvider(providerName, "download", start, err)
	if err != nil {
		return nil, &apperr.ProviderError{Provider: providerName, Op: "download", Err: err}
	}
	return b, nil
}

func (c *Client) do(ctx context.Context, op, method, u string, body []byte) (*envelope, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperr.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &apperr.ProviderError{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	var env envelope
	parseErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if parseErr == nil {
			msg = env.Msg
		}
		return nil, &apperr.ProviderError{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &apperr.ProviderError{Provider: providerName, Op: op, Message: "empty reply"}
	}
	if parseErr != nil {
		return nil, &apperr.ProviderError{Provider: providerName, Op: op, Message: "unreadable reply", Err: parseErr}
	}
	// Kie reports some failures with HTTP 200 and an error code in the body.
	if env.Code != 0 && env.Code != http.StatusOK {
		return nil, &apperr.ProviderError{Provider: providerName, Op: op, StatusCode: env.Code, Message: env.Msg}
	}
	return &env, nil
}
