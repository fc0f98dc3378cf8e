package api

import (
	"github.com/zipscope/zipscope/internal/task"
	"github.com/zipscope/zipscope/internal/types"
)

// Empty is the request or response of calls without a payload.
type Empty struct{}

// CreateSessionRequest opens a selection session.
type CreateSessionRequest struct{}

// CreateSessionResponse describes a new session. When DatasetAvailable is
// false, Warning explains why and every count is zero.
type CreateSessionResponse struct {
	SessionID        string     `json:"session_id"`
	DatasetAvailable bool       `json:"dataset_available"`
	Warning          string     `json:"warning,omitempty"`
	TotalZipCodes    int        `json:"total_zip_codes"`
	Roots            []NodeView `json:"roots"`
}

// SessionRequest addresses a session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// NodeRequest addresses one node of a session's tree by its path id.
type NodeRequest struct {
	SessionID string `json:"session_id"`
	NodeID    string `json:"node_id"`
}

// NodeView is a tree node together with its derived selection state.
type NodeView struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Level         int                  `json:"level"`
	HasChildren   bool                 `json:"has_children"`
	IsLoaded      bool                 `json:"is_loaded"`
	TotalZipCodes int                  `json:"total_zip_codes"`
	State         types.SelectionState `json:"state"`
	Pruned        bool                 `json:"pruned,omitempty"`
	Children      []NodeView           `json:"children,omitempty"`
}

// NodesResponse lists tree nodes.
type NodesResponse struct {
	Nodes []NodeView `json:"nodes"`
}

// ToggleResponse reports the node state after a toggle.
type ToggleResponse struct {
	NodeID        string               `json:"node_id"`
	State         types.SelectionState `json:"state"`
	SelectedCount int                  `json:"selected_count"`
}

// SelectionResponse reports the size of the selection set.
type SelectionResponse struct {
	SelectedCount int `json:"selected_count"`
}

// BulkSelectRequest selects every node at Level (0=states .. 3=ZIPs).
type BulkSelectRequest struct {
	SessionID string `json:"session_id"`
	Level     int    `json:"level"`
}

// BulkSelectProgress is streamed while a bulk selection runs. The last
// message has Completed set.
type BulkSelectProgress struct {
	Done          int  `json:"done"`
	Total         int  `json:"total"`
	Percent       int  `json:"percent"`
	Completed     bool `json:"completed"`
	SelectedCount int  `json:"selected_count"`
}

// SearchRequest filters the session tree by name. Full searches the whole
// dataset instead of the materialized nodes only.
type SearchRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Full      bool   `json:"full"`
}

// SearchResponse holds the pruned tree and the ids to expand so every match
// is visible.
type SearchResponse struct {
	Nodes      []NodeView `json:"nodes"`
	AutoExpand []string   `json:"auto_expand"`
}

// GenerateRulesResponse is the serialized selection.
type GenerateRulesResponse struct {
	Rules         types.LocationRules `json:"location_rules"`
	Encoding      types.Encoding      `json:"encoding"`
	Included      int                 `json:"total_included"`
	Excluded      int                 `json:"would_be_excluded"`
	Normalized    []string            `json:"normalized_ids"`
	TotalZipCodes int                 `json:"total_zip_codes"`
}

// EstimateZipsResponse summarizes the selection size.
type EstimateZipsResponse struct {
	SelectedCount   int `json:"selected_count"`
	TotalZipCodes   int `json:"total_zip_codes"`
	DatasetZipCodes int `json:"dataset_zip_codes"`
}

// SubmitTaskRequest submits the session's selection with Config.
type SubmitTaskRequest struct {
	SessionID string      `json:"session_id"`
	Config    task.Config `json:"config"`
}

// TaskResponse carries one history record.
type TaskResponse struct {
	Task types.TaskRecord `json:"task"`
}

// GetTaskRequest addresses a history record.
type GetTaskRequest struct {
	TaskID string `json:"task_id"`
}

// ListTasksRequest pages task history, newest first.
type ListTasksRequest struct {
	Limit int `json:"limit"`
}

// ListTasksResponse lists history records.
type ListTasksResponse struct {
	Tasks []types.TaskRecord `json:"tasks"`
}

// UpdateTaskStatusRequest moves a task to Status.
type UpdateTaskStatusRequest struct {
	TaskID string           `json:"task_id"`
	Status types.TaskStatus `json:"status"`
}
