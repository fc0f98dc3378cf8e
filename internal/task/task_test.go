package task

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/zipscope/zipscope/internal/core/db"
	"github.com/zipscope/zipscope/internal/location"
	"github.com/zipscope/zipscope/internal/types"
)

func testDataset(t *testing.T) *location.Dataset {
	t.Helper()
	ds, err := location.NewDataset(types.LocationData{
		"CA": {Counties: map[string]types.CountyData{
			"LA": {Cities: map[string][]string{
				"LosAngeles": {"90001", "90002"},
				"Pasadena":   {"91101"},
			}},
		}},
		"NV": {Counties: map[string]types.CountyData{
			"Clark": {Cities: map[string][]string{"LasVegas": {"89101", "89102", "89103", "89104"}}},
		}},
	})
	require.NoError(t, err)
	return ds
}

func validConfig() Config {
	return Config{
		SearchQuery:  "  plumbers ",
		DataFields:   []string{"name", "phone"},
		RatingFilter: "4+",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []error
	}{
		{"valid", validConfig(), nil},
		{"empty query", Config{SearchQuery: " ", DataFields: []string{"name"}}, []error{types.ErrEmptySearchQuery}},
		{"no fields", Config{SearchQuery: "x"}, []error{types.ErrNoDataFields}},
		{"negative reviews", Config{
			SearchQuery:     "x",
			DataFields:      []string{"name"},
			AdvancedOptions: types.AdvancedOptions{MaxReviews: -1},
		}, []error{types.ErrInvalidMaxReviews}},
		{"everything wrong", Config{AdvancedOptions: types.AdvancedOptions{MaxReviews: -5}},
			[]error{types.ErrEmptySearchQuery, types.ErrNoDataFields, types.ErrInvalidMaxReviews}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("Validate() error = %v, want %v", err, want)
				}
			}
		})
	}
}

func TestBuildRequest(t *testing.T) {
	ds := testDataset(t)

	req, res, err := BuildRequest(validConfig(), ds, []types.Path{{"CA"}, {"CA", "LA"}}, "")
	require.NoError(t, err)

	require.Equal(t, "plumbers", req.SearchQuery)
	require.Equal(t, 3, req.TotalSelectedZipCodes)
	require.Equal(t, 3, res.Included)
	require.Equal(t, 4, res.Excluded)

	want := types.LocationRules{
		Base:    []types.LocationRule{},
		Include: []types.LocationRule{{Type: types.RuleTypeState, Name: "CA"}},
	}
	if diff := cmp.Diff(want, req.LocationRules); diff != "" {
		t.Errorf("LocationRules mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRequest_ExclusionUsesCountry(t *testing.T) {
	ds := testDataset(t)

	req, _, err := BuildRequest(validConfig(), ds, []types.Path{{"NV"}, {"CA", "LA", "Pasadena"}}, "US")
	require.NoError(t, err)
	require.Equal(t, types.EncodingExclude, req.LocationRules.Encoding())
	require.Equal(t, []types.LocationRule{{Type: types.RuleTypeCountry, Name: "US"}}, req.LocationRules.Base)
	require.Len(t, req.LocationRules.Exclude, 2)
	require.Equal(t, 5, req.TotalSelectedZipCodes)
}

func TestBuildRequest_InvalidConfig(t *testing.T) {
	_, _, err := BuildRequest(Config{}, testDataset(t), nil, "US")
	require.ErrorIs(t, err, types.ErrEmptySearchQuery)
}

type fakeSubmitter struct {
	gotToken string
	gotReq   types.TaskRequest
	err      error
}

func (f *fakeSubmitter) SubmitTask(ctx context.Context, token string, req types.TaskRequest) (types.TaskResponse, error) {
	f.gotToken = token
	f.gotReq = req
	if f.err != nil {
		return types.TaskResponse{}, f.err
	}
	return types.TaskResponse{TaskID: "remote-1"}, nil
}

func openStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.MigrateUp(ctx, conn))
	q, err := db.LoadQueries(conn)
	require.NoError(t, err)
	return NewStore(q)
}

func TestService_Submit(t *testing.T) {
	sub := &fakeSubmitter{}
	store := openStore(t)
	svc := NewService(sub, store, "US")

	rec, err := svc.Submit(context.Background(), "tok", validConfig(), testDataset(t), []types.Path{{"CA", "LA", "Pasadena"}})
	require.NoError(t, err)
	require.Equal(t, "tok", sub.gotToken)
	require.Equal(t, "remote-1", rec.RemoteTaskID)
	require.Equal(t, types.TaskStatusSubmitted, rec.Status)
	require.Equal(t, 1, rec.TotalZipCodes)

	stored, err := store.Get(context.Background(), rec.TaskID)
	require.NoError(t, err)
	require.Equal(t, rec.RemoteTaskID, stored.RemoteTaskID)
	require.Equal(t, rec.LocationRules, stored.LocationRules)
}

func TestService_SubmitBackendError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("Insufficient credits")}
	store := openStore(t)
	svc := NewService(sub, store, "US")

	_, err := svc.Submit(context.Background(), "tok", validConfig(), testDataset(t), []types.Path{{"CA"}})
	require.EqualError(t, err, "Insufficient credits")

	tasks, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestService_SubmitWithoutStore(t *testing.T) {
	svc := NewService(&fakeSubmitter{}, nil, "US")
	rec, err := svc.Submit(context.Background(), "tok", validConfig(), testDataset(t), nil)
	require.NoError(t, err)
	require.Equal(t, types.EncodingEmpty, rec.Encoding)
	require.Nil(t, svc.Store())
}

func TestService_SubmitInvalidConfigSkipsBackend(t *testing.T) {
	sub := &fakeSubmitter{}
	svc := NewService(sub, nil, "US")
	_, err := svc.Submit(context.Background(), "tok", Config{}, testDataset(t), nil)
	require.Error(t, err)
	require.Empty(t, sub.gotToken)
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var ids []types.TaskID
	for i := 0; i < 3; i++ {
		rec := types.TaskRecord{
			TaskID:        types.NewTaskID(),
			RemoteTaskID:  "remote-" + string(rune('a'+i)),
			SearchQuery:   "dentists",
			LocationRules: types.LocationRules{Base: []types.LocationRule{}},
			Encoding:      types.EncodingEmpty,
			Status:        types.TaskStatusSubmitted,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Create(ctx, rec))
		ids = append(ids, rec.TaskID)
	}

	list, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, ids[2], list[0].TaskID)
	require.Equal(t, ids[1], list[1].TaskID)
	require.Equal(t, []string{}, list[0].DataFields)

	later := base.Add(time.Hour)
	require.NoError(t, store.UpdateStatus(ctx, ids[0], types.TaskStatusCompleted, later))
	got, err := store.Get(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, types.TaskStatusCompleted, got.Status)
	require.True(t, got.UpdatedAt.Equal(later))
	require.True(t, got.CreatedAt.Equal(base))

	require.ErrorIs(t, store.UpdateStatus(ctx, ids[0], "exploded", later), types.ErrInvalidTaskStatus)
	require.ErrorIs(t, store.UpdateStatus(ctx, types.NewTaskID(), types.TaskStatusFailed, later), types.ErrTaskNotFound)

	_, err = store.Get(ctx, types.NewTaskID())
	require.ErrorIs(t, err, types.ErrTaskNotFound)
}
