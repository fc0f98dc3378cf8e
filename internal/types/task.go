package types

import "time"

// AdvancedOptions are optional extraction settings for a task.
type AdvancedOptions struct {
	ExtractSingleImage bool `json:"extract_single_image"`
	MaxReviews         int  `json:"max_reviews"`
}

// TaskRequest is the body of POST /v1/tasks.
type TaskRequest struct {
	SearchQuery           string          `json:"search_query"`
	LocationRules         LocationRules   `json:"location_rules"`
	DataFields            []string        `json:"data_fields"`
	RatingFilter          string          `json:"rating_filter"`
	AdvancedOptions       AdvancedOptions `json:"advanced_options"`
	TotalSelectedZipCodes int             `json:"total_selected_zip_codes"`
}

// TaskResponse is the backend reply to a successful submission.
type TaskResponse struct {
	TaskID string `json:"taskId"`
}

// TaskStatus tracks a submitted task on the dashboard.
type TaskStatus string

const (
	TaskStatusSubmitted TaskStatus = "submitted"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusSubmitted, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// TaskRecord is a submitted task as kept in local history.
type TaskRecord struct {
	TaskID        TaskID        `json:"task_id"`
	RemoteTaskID  string        `json:"remote_task_id"`
	SearchQuery   string        `json:"search_query"`
	LocationRules LocationRules `json:"location_rules"`
	Encoding      Encoding      `json:"encoding"`
	DataFields    []string      `json:"data_fields"`
	RatingFilter  string        `json:"rating_filter"`
	TotalZipCodes int           `json:"total_zip_codes"`
	Status        TaskStatus    `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
