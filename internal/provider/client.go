// Package provider fetches the location dataset from the location API.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zipscope/zipscope/internal/core/metrics"
	"github.com/zipscope/zipscope/internal/types"
)

// NestedStatesPath is the provider endpoint serving the full hierarchy.
const NestedStatesPath = "/states/nested"

// Source yields the raw location hierarchy.
type Source interface {
	Fetch(ctx context.Context) (types.LocationData, error)
}

// envelope is the provider response wrapper.
type envelope struct {
	Success bool               `json:"success"`
	Data    types.LocationData `json:"data"`
	Error   string             `json:"error,omitempty"`
}

// Client talks to the location API over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the location API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Client{http: client}
}

// Fetch retrieves the nested state hierarchy. Every failure mode, including
// success=false, is reported as types.ErrDatasetUnavailable wrapping the cause.
func (c *Client) Fetch(ctx context.Context) (types.LocationData, error) {
	t0 := time.Now()
	data, err := c.fetch(ctx)
	metrics.DatasetFetchDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		metrics.DatasetFetchTotal.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "dataset_fetch_error", "url", c.http.BaseURL+NestedStatesPath, "err", err)
		return nil, fmt.Errorf("%w: %w", types.ErrDatasetUnavailable, err)
	}
	metrics.DatasetFetchTotal.WithLabelValues("ok").Inc()
	slog.DebugContext(ctx, "dataset_fetched", "states", len(data), "duration_ms", time.Since(t0).Milliseconds())
	return data, nil
}

func (c *Client) fetch(ctx context.Context) (types.LocationData, error) {
	res, err := c.http.R().SetContext(ctx).Get(NestedStatesPath)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("provider returned %s", res.Status())
	}
	return decodeEnvelope(res.Body())
}

func decodeEnvelope(body []byte) (types.LocationData, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Error != "" {
			return nil, fmt.Errorf("provider reported failure: %s", env.Error)
		}
		return nil, fmt.Errorf("provider reported failure")
	}
	if env.Data == nil {
		env.Data = types.LocationData{}
	}
	return env.Data, nil
}

// FileSource reads a dataset from a JSON file holding either the provider
// envelope or the bare state mapping.
type FileSource struct {
	Path string
}

// Fetch reads and decodes the file.
func (s FileSource) Fetch(ctx context.Context) (types.LocationData, error) {
	body, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDatasetUnavailable, err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", types.ErrDatasetUnavailable, s.Path, err)
	}
	if _, ok := probe["success"]; ok {
		data, err := decodeEnvelope(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrDatasetUnavailable, err)
		}
		return data, nil
	}

	var data types.LocationData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", types.ErrDatasetUnavailable, s.Path, err)
	}
	return data, nil
}
