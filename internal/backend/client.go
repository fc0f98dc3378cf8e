// Package backend submits scraping tasks to the task backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zipscope/zipscope/internal/core/metrics"
	"github.com/zipscope/zipscope/internal/types"
)

// TasksPath is the task submission endpoint.
const TasksPath = "/v1/tasks"

// APIError is a non-2xx backend reply. Message is the backend's own text,
// surfaced to the user unchanged.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend rejected task (%d): %s", e.StatusCode, e.Message)
}

// IsAPIError reports whether err carries an *APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Submitter is the task submission surface used by the API layer.
type Submitter interface {
	SubmitTask(ctx context.Context, token string, req types.TaskRequest) (types.TaskResponse, error)
}

// Client talks to the task backend over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Client{http: client}
}

// SubmitTask posts req with the caller's bearer token and returns the
// backend task id.
func (c *Client) SubmitTask(ctx context.Context, token string, req types.TaskRequest) (types.TaskResponse, error) {
	if strings.TrimSpace(token) == "" {
		return types.TaskResponse{}, types.ErrMissingToken
	}

	var out types.TaskResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(req).
		Post(TasksPath)
	if err != nil {
		metrics.TaskSubmissionsTotal.WithLabelValues("unavailable").Inc()
		slog.ErrorContext(ctx, "task_submit_error", "err", err)
		return out, fmt.Errorf("%w: %w", types.ErrBackendUnavailable, err)
	}

	if res.IsError() {
		apiErr := &APIError{StatusCode: res.StatusCode(), Message: errorMessage(res)}
		result := "rejected"
		if res.StatusCode() >= http.StatusInternalServerError {
			result = "unavailable"
		}
		metrics.TaskSubmissionsTotal.WithLabelValues(result).Inc()
		slog.WarnContext(ctx, "task_submit_rejected", "status", apiErr.StatusCode, "message", apiErr.Message)
		return out, apiErr
	}

	if err := json.Unmarshal(res.Body(), &out); err != nil {
		metrics.TaskSubmissionsTotal.WithLabelValues("bad_response").Inc()
		return out, fmt.Errorf("decode task response: %w", err)
	}
	if out.TaskID == "" {
		metrics.TaskSubmissionsTotal.WithLabelValues("bad_response").Inc()
		return out, errors.New("backend response missing taskId")
	}

	metrics.TaskSubmissionsTotal.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "task_submitted",
		"remote_task_id", out.TaskID,
		"zip_codes", req.TotalSelectedZipCodes,
		"encoding", req.LocationRules.Encoding(),
	)
	return out, nil
}

// errorMessage extracts the backend's message from {"error"} or {"message"}
// bodies, falling back to the raw body and then the HTTP status text.
func errorMessage(res *resty.Response) string {
	body := res.Body()
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if raw := strings.TrimSpace(string(body)); raw != "" {
		return raw
	}
	return res.Status()
}
