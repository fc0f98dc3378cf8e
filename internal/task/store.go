// internal/task/store.go
package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zipscope/zipscope/internal/core/db"
	"github.com/zipscope/zipscope/internal/types"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// Store persists submitted tasks through the named queries in
// internal/core/db/queries/tasks.sql.
type Store struct {
	q *db.Queries
}

// NewStore wraps loaded queries.
func NewStore(q *db.Queries) *Store {
	return &Store{q: q}
}

// taskRow is the column layout of the tasks table. Rules and data fields are
// stored as JSON text; timestamps as unix milliseconds.
type taskRow struct {
	TaskID        string `db:"task_id"`
	RemoteTaskID  string `db:"remote_task_id"`
	SearchQuery   string `db:"search_query"`
	LocationRules string `db:"location_rules"`
	Encoding      string `db:"encoding"`
	DataFields    string `db:"data_fields"`
	RatingFilter  string `db:"rating_filter"`
	TotalZipCodes int    `db:"total_zip_codes"`
	Status        string `db:"status"`
	CreatedAtMs   int64  `db:"created_at_ms"`
	UpdatedAtMs   int64  `db:"updated_at_ms"`
}

func (r taskRow) record() (types.TaskRecord, error) {
	rec := types.TaskRecord{
		TaskID:        types.TaskID(r.TaskID),
		RemoteTaskID:  r.RemoteTaskID,
		SearchQuery:   r.SearchQuery,
		Encoding:      types.Encoding(r.Encoding),
		RatingFilter:  r.RatingFilter,
		TotalZipCodes: r.TotalZipCodes,
		Status:        types.TaskStatus(r.Status),
		CreatedAt:     time.UnixMilli(r.CreatedAtMs).UTC(),
		UpdatedAt:     time.UnixMilli(r.UpdatedAtMs).UTC(),
	}
	if err := json.Unmarshal([]byte(r.LocationRules), &rec.LocationRules); err != nil {
		return rec, fmt.Errorf("decode location_rules of %s: %w", r.TaskID, err)
	}
	if err := json.Unmarshal([]byte(r.DataFields), &rec.DataFields); err != nil {
		return rec, fmt.Errorf("decode data_fields of %s: %w", r.TaskID, err)
	}
	return rec, nil
}

// Create inserts rec.
func (s *Store) Create(ctx context.Context, rec types.TaskRecord) error {
	rules, err := json.Marshal(rec.LocationRules)
	if err != nil {
		return fmt.Errorf("encode location_rules: %w", err)
	}
	fields := rec.DataFields
	if fields == nil {
		fields = []string{}
	}
	dataFields, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode data_fields: %w", err)
	}

	_, err = s.q.Exec(ctx, "create-task",
		string(rec.TaskID), rec.RemoteTaskID, rec.SearchQuery, string(rules), string(rec.Encoding),
		string(dataFields), rec.RatingFilter, rec.TotalZipCodes, string(rec.Status),
		rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", rec.TaskID, err)
	}
	return nil
}

// Get returns the task with id or types.ErrTaskNotFound.
func (s *Store) Get(ctx context.Context, id types.TaskID) (types.TaskRecord, error) {
	var row taskRow
	if err := s.q.Get(ctx, "get-task", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.TaskRecord{}, fmt.Errorf("%w: %s", types.ErrTaskNotFound, id)
		}
		return types.TaskRecord{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return row.record()
}

// List returns up to limit tasks, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]types.TaskRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var rows []taskRow
	if err := s.q.Select(ctx, "list-tasks", &rows, limit); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]types.TaskRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpdateStatus moves the task to status.
func (s *Store) UpdateStatus(ctx context.Context, id types.TaskID, status types.TaskStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidTaskStatus, status)
	}
	res, err := s.q.Exec(ctx, "update-task-status", string(status), at.UnixMilli(), string(id))
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrTaskNotFound, id)
	}
	return nil
}
