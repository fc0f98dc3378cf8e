// Package task assembles scraping task requests from a selection, submits
// them to the backend and keeps a local history of submissions.
package task

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/zipscope/zipscope/internal/backend"
	"github.com/zipscope/zipscope/internal/core/metrics"
	"github.com/zipscope/zipscope/internal/location"
	"github.com/zipscope/zipscope/internal/types"
)

// DefaultCountry is the base rule name used by exclusion encodings.
const DefaultCountry = "US"

// Config is the user-entered part of a task.
type Config struct {
	SearchQuery     string                `json:"search_query"`
	DataFields      []string              `json:"data_fields"`
	RatingFilter    string                `json:"rating_filter"`
	AdvancedOptions types.AdvancedOptions `json:"advanced_options"`
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SearchQuery) == "" {
		errs = append(errs, types.ErrEmptySearchQuery)
	}
	if len(c.DataFields) == 0 {
		errs = append(errs, types.ErrNoDataFields)
	}
	if c.AdvancedOptions.MaxReviews < 0 {
		errs = append(errs, types.ErrInvalidMaxReviews)
	}
	return errors.Join(errs...)
}

// BuildRequest validates cfg and assembles the request body for the selected
// paths. The location rules come from location.Generate; the ZIP total is the
// per-path estimate over the normalized selection.
func BuildRequest(cfg Config, ds *location.Dataset, selected []types.Path, country string) (types.TaskRequest, location.Result, error) {
	if err := cfg.Validate(); err != nil {
		return types.TaskRequest{}, location.Result{}, err
	}
	if country == "" {
		country = DefaultCountry
	}

	res := location.Generate(selected, ds, country)
	metrics.RulesGeneratedTotal.WithLabelValues(string(res.Rules.Encoding())).Inc()

	req := types.TaskRequest{
		SearchQuery:           strings.TrimSpace(cfg.SearchQuery),
		LocationRules:         res.Rules,
		DataFields:            cfg.DataFields,
		RatingFilter:          cfg.RatingFilter,
		AdvancedOptions:       cfg.AdvancedOptions,
		TotalSelectedZipCodes: location.CountZipsForPaths(res.Normalized, ds),
	}
	return req, res, nil
}

// Service submits tasks and records them. A nil store skips history.
type Service struct {
	backend backend.Submitter
	store   *Store
	country string
	now     func() time.Time
}

// NewService creates a task service.
func NewService(submitter backend.Submitter, store *Store, country string) *Service {
	return &Service{
		backend: submitter,
		store:   store,
		country: country,
		now:     time.Now,
	}
}

// Store returns the history store, which may be nil.
func (s *Service) Store() *Store {
	return s.store
}

// Submit builds the request for selected, posts it with token and records
// the accepted task.
func (s *Service) Submit(ctx context.Context, token string, cfg Config, ds *location.Dataset, selected []types.Path) (types.TaskRecord, error) {
	req, _, err := BuildRequest(cfg, ds, selected, s.country)
	if err != nil {
		return types.TaskRecord{}, err
	}

	res, err := s.backend.SubmitTask(ctx, token, req)
	if err != nil {
		return types.TaskRecord{}, err
	}

	now := s.now().UTC()
	rec := types.TaskRecord{
		TaskID:        types.NewTaskID(),
		RemoteTaskID:  res.TaskID,
		SearchQuery:   req.SearchQuery,
		LocationRules: req.LocationRules,
		Encoding:      req.LocationRules.Encoding(),
		DataFields:    req.DataFields,
		RatingFilter:  req.RatingFilter,
		TotalZipCodes: req.TotalSelectedZipCodes,
		Status:        types.TaskStatusSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if s.store == nil {
		return rec, nil
	}
	if err := s.store.Create(ctx, rec); err != nil {
		// The backend accepted the task; losing the history row must not hide that.
		slog.ErrorContext(ctx, "task_history_write_error", "remote_task_id", rec.RemoteTaskID, "err", err)
	}
	return rec, nil
}
