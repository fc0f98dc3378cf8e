package api

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/zipscope/zipscope/internal/backend"
	"github.com/zipscope/zipscope/internal/core/auth"
	"github.com/zipscope/zipscope/internal/core/config"
	"github.com/zipscope/zipscope/internal/core/db"
	"github.com/zipscope/zipscope/internal/task"
	"github.com/zipscope/zipscope/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type staticSource struct {
	data types.LocationData
	err  error
}

func (s staticSource) Fetch(ctx context.Context) (types.LocationData, error) {
	return s.data, s.err
}

type recordingSubmitter struct {
	token string
	req   types.TaskRequest
	err   error
}

func (r *recordingSubmitter) SubmitTask(ctx context.Context, token string, req types.TaskRequest) (types.TaskResponse, error) {
	r.token = token
	r.req = req
	if r.err != nil {
		return types.TaskResponse{}, r.err
	}
	return types.TaskResponse{TaskID: "remote-42"}, nil
}

func testData() types.LocationData {
	return types.LocationData{
		"CA": {Counties: map[string]types.CountyData{
			"LA": {Cities: map[string][]string{
				"LosAngeles": {"90001", "90002"},
				"Pasadena":   {"91101"},
			}},
			"Orange": {Cities: map[string][]string{
				"Irvine": {"92602", "92603"},
			}},
		}},
		"NV": {Counties: map[string]types.CountyData{
			"Clark": {Cities: map[string][]string{"LasVegas": {"89101"}}},
		}},
	}
}

type harness struct {
	client    *Client
	svc       *SelectionService
	submitter *recordingSubmitter
}

func newHarness(t *testing.T, source staticSource, withTasks bool) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{submitter: &recordingSubmitter{}}
	var tasks *task.Service
	if withTasks {
		conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.NoError(t, db.MigrateUp(ctx, conn))
		q, err := db.LoadQueries(conn)
		require.NoError(t, err)
		tasks = task.NewService(h.submitter, task.NewStore(q), "US")
	}

	svc, err := NewSelectionService(config.DefaultServerConfig(), source, tasks)
	require.NoError(t, err)
	h.svc = svc

	resolver := auth.NewResolver(nil)
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(resolver.UnaryInterceptor()),
		grpc.ChainStreamInterceptor(resolver.StreamInterceptor()),
	)
	RegisterSelectionServiceServer(srv, svc)
	go srv.Serve(lis)
	t.Cleanup(func() {
		srv.Stop()
		svc.Close()
	})

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })
	h.client = NewClient(cc)
	return h
}

func (h *harness) open(t *testing.T) string {
	t.Helper()
	res, err := h.client.CreateSession(context.Background(), &CreateSessionRequest{})
	require.NoError(t, err)
	return res.SessionID
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, status.Code(err), "error: %v", err)
}

func nodeNames(nodes []NodeView) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, false)

	res, err := h.client.CreateSession(context.Background(), &CreateSessionRequest{})
	require.NoError(t, err)
	require.True(t, res.DatasetAvailable)
	require.Empty(t, res.Warning)
	require.Equal(t, 6, res.TotalZipCodes)
	require.Equal(t, []string{"CA", "NV"}, nodeNames(res.Roots))
	require.Equal(t, 5, res.Roots[0].TotalZipCodes)
	require.Equal(t, types.StateUnselected, res.Roots[0].State)
	require.False(t, res.Roots[0].IsLoaded)
}

func TestCreateSession_DatasetUnavailable(t *testing.T) {
	h := newHarness(t, staticSource{err: types.ErrDatasetUnavailable}, false)
	ctx := context.Background()

	res, err := h.client.CreateSession(ctx, &CreateSessionRequest{})
	require.NoError(t, err)
	require.False(t, res.DatasetAvailable)
	require.Equal(t, warnDatasetUnavailable, res.Warning)
	require.Zero(t, res.TotalZipCodes)
	require.Empty(t, res.Roots)

	_, err = h.client.Toggle(ctx, &NodeRequest{SessionID: res.SessionID, NodeID: "CA"})
	requireCode(t, err, codes.Unavailable)

	est, err := h.client.EstimateZips(ctx, &SessionRequest{SessionID: res.SessionID})
	require.NoError(t, err)
	require.Equal(t, EstimateZipsResponse{}, *est)

	rules, err := h.client.GenerateRules(ctx, &SessionRequest{SessionID: res.SessionID})
	require.NoError(t, err)
	require.Equal(t, types.EncodingEmpty, rules.Encoding)
}

func TestLoadChildrenAndToggle(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, false)
	ctx := context.Background()
	id := h.open(t)

	// Loading a city materializes its ancestors as well.
	zips, err := h.client.LoadChildren(ctx, &NodeRequest{SessionID: id, NodeID: "CA/LA/LosAngeles"})
	require.NoError(t, err)
	require.Equal(t, []string{"90001", "90002"}, nodeNames(zips.Nodes))
	require.True(t, zips.Nodes[0].IsLoaded)

	toggled, err := h.client.Toggle(ctx, &NodeRequest{SessionID: id, NodeID: "CA/LA/Pasadena"})
	require.NoError(t, err)
	require.Equal(t, types.StateSelected, toggled.State)
	require.Equal(t, 1, toggled.SelectedCount)

	roots, err := h.client.ListRoots(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	ca := roots.Nodes[0]
	require.Equal(t, types.StatePartial, ca.State)
	require.True(t, ca.IsLoaded)
	require.Equal(t, []string{"LA", "Orange"}, nodeNames(ca.Children))
	require.Equal(t, types.StatePartial, ca.Children[0].State)
	require.Equal(t, types.StateUnselected, roots.Nodes[1].State)

	rules, err := h.client.GenerateRules(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	require.Equal(t, types.EncodingInclude, rules.Encoding)
	require.Equal(t, 1, rules.Included)
	require.Equal(t, 5, rules.Excluded)
	// Toggle-on expands to ZIP leaves.
	require.Equal(t, []string{"CA/LA/Pasadena/91101"}, rules.Normalized)
	want := []types.LocationRule{{Type: types.RuleTypeZip, ZipCode: "91101"}}
	if diff := cmp.Diff(want, rules.Rules.Include); diff != "" {
		t.Errorf("include rules mismatch (-want +got):\n%s", diff)
	}

	est, err := h.client.EstimateZips(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	require.Equal(t, EstimateZipsResponse{SelectedCount: 1, TotalZipCodes: 1, DatasetZipCodes: 6}, *est)

	cleared, err := h.client.ClearAll(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	require.Zero(t, cleared.SelectedCount)
}

func TestNodeErrors(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, false)
	ctx := context.Background()
	id := h.open(t)

	tests := []struct {
		name string
		req  *NodeRequest
		want codes.Code
	}{
		{"unknown session", &NodeRequest{SessionID: string(types.NewSessionID()), NodeID: "CA"}, codes.NotFound},
		{"garbage session", &NodeRequest{SessionID: "nope", NodeID: "CA"}, codes.NotFound},
		{"empty node id", &NodeRequest{SessionID: id, NodeID: ""}, codes.InvalidArgument},
		{"too deep", &NodeRequest{SessionID: id, NodeID: "CA/LA/Pasadena/91101/x"}, codes.InvalidArgument},
		{"unknown node", &NodeRequest{SessionID: id, NodeID: "CA/Nowhere"}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.client.Toggle(ctx, tt.req)
			requireCode(t, err, tt.want)
			_, err = h.client.LoadChildren(ctx, tt.req)
			requireCode(t, err, tt.want)
		})
	}
}

func TestBulkSelect(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, false)
	ctx := context.Background()
	id := h.open(t)

	stream, err := h.client.BulkSelect(ctx, &BulkSelectRequest{SessionID: id, Level: types.LevelState})
	require.NoError(t, err)
	var msgs []*BulkSelectProgress
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.True(t, last.Completed)
	require.Equal(t, 100, last.Percent)
	require.Equal(t, 2, last.SelectedCount)

	roots, err := h.client.ListRoots(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	for _, n := range roots.Nodes {
		require.Equal(t, types.StateSelected, n.State, n.Name)
	}

	rules, err := h.client.GenerateRules(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	require.Equal(t, 6, rules.Included)
	require.Zero(t, rules.Excluded)
	require.Equal(t, 6, rules.TotalZipCodes)
}

func TestBulkSelect_InvalidLevel(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, false)
	id := h.open(t)

	stream, err := h.client.BulkSelect(context.Background(), &BulkSelectRequest{SessionID: id, Level: 7})
	require.NoError(t, err)
	_, err = stream.Recv()
	requireCode(t, err, codes.InvalidArgument)
}

func TestSearch(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, false)
	ctx := context.Background()
	id := h.open(t)

	// Only roots are materialized; a shallow search finds nothing below them.
	shallow, err := h.client.Search(ctx, &SearchRequest{SessionID: id, Query: "pasa"})
	require.NoError(t, err)
	require.Empty(t, shallow.Nodes)

	full, err := h.client.Search(ctx, &SearchRequest{SessionID: id, Query: "PASA", Full: true})
	require.NoError(t, err)
	require.Equal(t, []string{"CA"}, nodeNames(full.Nodes))
	require.Equal(t, []string{"LA"}, nodeNames(full.Nodes[0].Children))
	require.Equal(t, []string{"Pasadena"}, nodeNames(full.Nodes[0].Children[0].Children))
	require.Equal(t, []string{"CA", "CA/LA"}, full.AutoExpand)
	require.True(t, full.Nodes[0].Pruned)
	// The matching city is loaded but its ZIP was filtered away.
	pasadena := full.Nodes[0].Children[0].Children[0]
	require.True(t, pasadena.IsLoaded)
	require.True(t, pasadena.Pruned)
	require.Empty(t, pasadena.Children)

	all, err := h.client.Search(ctx, &SearchRequest{SessionID: id, Query: "  "})
	require.NoError(t, err)
	require.Equal(t, []string{"CA", "NV"}, nodeNames(all.Nodes))
	require.Empty(t, all.AutoExpand)
	require.False(t, all.Nodes[0].Pruned)
}

func TestCloseSession(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, false)
	ctx := context.Background()
	id := h.open(t)

	_, err := h.client.CloseSession(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	_, err = h.client.ListRoots(ctx, &SessionRequest{SessionID: id})
	requireCode(t, err, codes.NotFound)
}

func validTaskConfig() task.Config {
	return task.Config{
		SearchQuery: "dentists",
		DataFields:  []string{"name", "phone"},
	}
}

func TestSubmitTaskAndHistory(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, true)
	ctx := context.Background()
	id := h.open(t)

	_, err := h.client.Toggle(ctx, &NodeRequest{SessionID: id, NodeID: "NV"})
	require.NoError(t, err)

	authed := metadata.AppendToOutgoingContext(ctx, auth.AuthorizationKey, "Bearer secret-token")
	res, err := h.client.SubmitTask(authed, &SubmitTaskRequest{SessionID: id, Config: validTaskConfig()})
	require.NoError(t, err)
	require.Equal(t, "secret-token", h.submitter.token)
	require.Equal(t, "remote-42", res.Task.RemoteTaskID)
	require.Equal(t, types.TaskStatusSubmitted, res.Task.Status)
	require.Equal(t, 1, h.submitter.req.TotalSelectedZipCodes)
	require.Equal(t, "dentists", h.submitter.req.SearchQuery)

	got, err := h.client.GetTask(ctx, &GetTaskRequest{TaskID: string(res.Task.TaskID)})
	require.NoError(t, err)
	require.Equal(t, res.Task.RemoteTaskID, got.Task.RemoteTaskID)
	require.Equal(t, types.EncodingInclude, got.Task.Encoding)

	list, err := h.client.ListTasks(ctx, &ListTasksRequest{})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)

	updated, err := h.client.UpdateTaskStatus(ctx, &UpdateTaskStatusRequest{
		TaskID: string(res.Task.TaskID),
		Status: types.TaskStatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, types.TaskStatusCompleted, updated.Task.Status)

	_, err = h.client.UpdateTaskStatus(ctx, &UpdateTaskStatusRequest{TaskID: string(res.Task.TaskID), Status: "paused"})
	requireCode(t, err, codes.InvalidArgument)
	_, err = h.client.GetTask(ctx, &GetTaskRequest{TaskID: string(types.NewTaskID())})
	requireCode(t, err, codes.NotFound)
	_, err = h.client.GetTask(ctx, &GetTaskRequest{TaskID: "not-a-uuid"})
	requireCode(t, err, codes.InvalidArgument)
}

func TestSubmitTaskErrors(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, true)
	ctx := context.Background()
	id := h.open(t)
	authed := metadata.AppendToOutgoingContext(ctx, auth.AuthorizationKey, "Bearer tok")

	_, err := h.client.SubmitTask(ctx, &SubmitTaskRequest{SessionID: id, Config: validTaskConfig()})
	requireCode(t, err, codes.Unauthenticated)

	bad := metadata.AppendToOutgoingContext(ctx, auth.AuthorizationKey, "Basic abc")
	_, err = h.client.SubmitTask(bad, &SubmitTaskRequest{SessionID: id, Config: validTaskConfig()})
	requireCode(t, err, codes.Unauthenticated)

	_, err = h.client.SubmitTask(authed, &SubmitTaskRequest{SessionID: id, Config: task.Config{}})
	requireCode(t, err, codes.InvalidArgument)

	h.submitter.err = &backend.APIError{StatusCode: 402, Message: "Insufficient credits"}
	_, err = h.client.SubmitTask(authed, &SubmitTaskRequest{SessionID: id, Config: validTaskConfig()})
	requireCode(t, err, codes.FailedPrecondition)
	require.Equal(t, "Insufficient credits", status.Convert(err).Message())

	h.submitter.err = types.ErrBackendUnavailable
	_, err = h.client.SubmitTask(authed, &SubmitTaskRequest{SessionID: id, Config: validTaskConfig()})
	requireCode(t, err, codes.Unavailable)
}

func TestHistoryNotConfigured(t *testing.T) {
	h := newHarness(t, staticSource{data: testData()}, false)
	ctx := context.Background()
	id := h.open(t)

	_, err := h.client.SubmitTask(ctx, &SubmitTaskRequest{SessionID: id, Config: validTaskConfig()})
	requireCode(t, err, codes.FailedPrecondition)
	_, err = h.client.ListTasks(ctx, &ListTasksRequest{})
	requireCode(t, err, codes.FailedPrecondition)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{types.ErrSessionNotFound, codes.NotFound},
		{types.ErrMalformedPath, codes.InvalidArgument},
		{errors.Join(types.ErrEmptySearchQuery, types.ErrNoDataFields), codes.InvalidArgument},
		{types.ErrMissingToken, codes.Unauthenticated},
		{types.ErrDatasetUnavailable, codes.Unavailable},
		{types.ErrBulkCancelled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{status.Error(codes.Aborted, "kept"), codes.Aborted},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, status.Code(toStatus(tt.err)))
		})
	}
	require.NoError(t, toStatus(nil))
}
