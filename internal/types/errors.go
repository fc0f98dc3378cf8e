package types

import "errors"

// Sentinel errors for zipscope operations.
var (
	// ErrDatasetUnavailable indicates the location dataset failed to load or the
	// provider answered success=false. Selection controls must be disabled.
	ErrDatasetUnavailable = errors.New("location dataset unavailable")

	// ErrMalformedPath indicates a path outside 1-4 segments or an unparsable id.
	ErrMalformedPath = errors.New("malformed location path")

	// ErrInvalidSegment indicates a dataset name containing PathSeparator.
	ErrInvalidSegment = errors.New("location name contains reserved separator")

	// ErrNodeNotFound indicates a path that does not resolve in the dataset.
	ErrNodeNotFound = errors.New("location node not found")

	// ErrSessionNotFound indicates an unknown or expired selection session.
	ErrSessionNotFound = errors.New("selection session not found")

	// ErrBulkCancelled indicates a bulk selection abandoned before commit.
	ErrBulkCancelled = errors.New("bulk selection cancelled")

	// ErrInvalidLevel indicates a bulk level outside 0-3.
	ErrInvalidLevel = errors.New("invalid location level")

	// ErrEmptySearchQuery indicates a task without a business category query.
	ErrEmptySearchQuery = errors.New("search query is required")

	// ErrNoDataFields indicates a task requesting no data fields.
	ErrNoDataFields = errors.New("at least one data field is required")

	// ErrInvalidMaxReviews indicates a negative max_reviews option.
	ErrInvalidMaxReviews = errors.New("max_reviews must not be negative")

	// ErrInvalidTaskStatus indicates a status outside the known task lifecycle.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrTaskNotFound indicates an unknown task id in local history.
	ErrTaskNotFound = errors.New("task not found")

	// ErrBackendUnavailable indicates the task backend could not be reached.
	ErrBackendUnavailable = errors.New("task backend unavailable")

	// ErrMissingToken indicates no bearer token is available for submission.
	ErrMissingToken = errors.New("bearer token required for task submission")
)
