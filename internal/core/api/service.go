// Package api implements the zipscope SelectionService over gRPC.
//
// A session corresponds to one mounted selection form: it owns a Dataset
// snapshot, a selection Engine and the materialized navigation Tree. Sessions
// live in an expiring LRU; eviction cancels any bulk selection still running.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zipscope/zipscope/internal/core/auth"
	"github.com/zipscope/zipscope/internal/core/config"
	"github.com/zipscope/zipscope/internal/core/metrics"
	"github.com/zipscope/zipscope/internal/location"
	"github.com/zipscope/zipscope/internal/provider"
	"github.com/zipscope/zipscope/internal/task"
	"github.com/zipscope/zipscope/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	warnDatasetUnavailable = "Location data is unavailable. Selection is disabled."
	warnDatasetEmpty       = "Location data is empty. Selection is disabled."
)

// SelectionService implements SelectionServiceServer.
type SelectionService struct {
	source   provider.Source
	tasks    *task.Service
	cfg      *config.ServerConfig
	sessions *expirable.LRU[types.SessionID, *session]
}

var _ SelectionServiceServer = (*SelectionService)(nil)

// NewSelectionService creates the service. tasks may be nil, which disables
// submission and history calls.
func NewSelectionService(cfg *config.ServerConfig, source provider.Source, tasks *task.Service) (*SelectionService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	s := &SelectionService{
		source: source,
		tasks:  tasks,
		cfg:    cfg,
	}
	s.sessions = expirable.NewLRU[types.SessionID, *session](cfg.Server.MaxSessions, s.onEvict, cfg.Server.SessionTTL)
	return s, nil
}

func (s *SelectionService) onEvict(id types.SessionID, sess *session) {
	sess.cancelBulk()
	metrics.ActiveSessions.Dec()
	slog.Debug("session_closed", "session_id", id)
}

// Close drops every session.
func (s *SelectionService) Close() {
	s.sessions.Purge()
}

type session struct {
	id     types.SessionID
	ds     *location.Dataset // nil when the dataset is unavailable
	engine *location.Engine

	mu      sync.Mutex
	tree    *location.Tree
	bulkSeq uint64
	bulk    context.CancelFunc
}

// beginBulk cancels any running bulk selection and records cancel as current.
func (sess *session) beginBulk(cancel context.CancelFunc) uint64 {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.bulk != nil {
		sess.bulk()
	}
	sess.bulkSeq++
	sess.bulk = cancel
	return sess.bulkSeq
}

func (sess *session) endBulk(seq uint64) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.bulkSeq == seq {
		sess.bulk = nil
	}
}

func (sess *session) cancelBulk() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.bulk != nil {
		sess.bulk()
		sess.bulk = nil
	}
}

func (sess *session) requireDataset() error {
	if sess.ds == nil {
		return types.ErrDatasetUnavailable
	}
	return nil
}

func (s *SelectionService) session(id string) (*session, error) {
	sid, err := types.ParseSessionID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", types.ErrSessionNotFound, id)
	}
	sess, ok := s.sessions.Get(sid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, sid)
	}
	return sess, nil
}

// loadDataset fetches and indexes the dataset. Failures are reported as a
// warning, never as an error: the session still opens with zero counts.
func (s *SelectionService) loadDataset(ctx context.Context) (*location.Dataset, string) {
	if s.cfg.Location.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Location.FetchTimeout)
		defer cancel()
	}
	data, err := s.source.Fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "session_dataset_unavailable", "err", err)
		return nil, warnDatasetUnavailable
	}
	ds, err := location.NewDataset(data)
	if err != nil {
		slog.WarnContext(ctx, "session_dataset_invalid", "err", err)
		return nil, warnDatasetUnavailable
	}
	if len(ds.States()) == 0 {
		return nil, warnDatasetEmpty
	}
	return ds, ""
}

func (s *SelectionService) newSession(ds *location.Dataset) *session {
	opts := []location.EngineOption{
		location.WithChunking(s.cfg.Selection.BulkChunkSize, s.cfg.Selection.BulkChunkThreshold),
	}
	return &session{
		id:     types.NewSessionID(),
		ds:     ds,
		engine: location.NewEngine(ds, opts...),
		tree: location.NewTree(ds, location.WithLoader(location.DatasetLoader{
			Dataset: ds,
			Delay:   s.cfg.Location.LoadDelay,
		})),
	}
}

func (sess *session) view(n *location.Node) NodeView {
	v := NodeView{
		ID:            n.ID,
		Name:          n.Name,
		Level:         n.Level,
		HasChildren:   n.HasChildren,
		IsLoaded:      n.IsLoaded,
		TotalZipCodes: n.TotalZipCodes,
		State:         sess.engine.State(n),
		Pruned:        n.Pruned,
	}
	if len(n.Children) > 0 {
		v.Children = sess.views(n.Children)
	}
	return v
}

func (sess *session) views(nodes []*location.Node) []NodeView {
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, sess.view(n))
	}
	return out
}

func (s *SelectionService) CreateSession(ctx context.Context, _ *CreateSessionRequest) (*CreateSessionResponse, error) {
	ds, warning := s.loadDataset(ctx)
	sess := s.newSession(ds)
	s.sessions.Add(sess.id, sess)
	metrics.ActiveSessions.Inc()
	slog.DebugContext(ctx, "session_created", "session_id", sess.id, "dataset_available", ds != nil)

	return &CreateSessionResponse{
		SessionID:        string(sess.id),
		DatasetAvailable: ds != nil,
		Warning:          warning,
		TotalZipCodes:    ds.TotalZips(),
		Roots:            sess.views(sess.tree.Roots()),
	}, nil
}

func (s *SelectionService) CloseSession(ctx context.Context, req *SessionRequest) (*Empty, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	s.sessions.Remove(sess.id)
	return &Empty{}, nil
}

func (s *SelectionService) ListRoots(ctx context.Context, req *SessionRequest) (*NodesResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	sess.mu.Lock()
	tree := sess.tree
	sess.mu.Unlock()
	return &NodesResponse{Nodes: sess.views(tree.Roots())}, nil
}

// LoadChildren materializes the node and its ancestors and returns its children.
func (s *SelectionService) LoadChildren(ctx context.Context, req *NodeRequest) (*NodesResponse, error) {
	sess, p, err := s.sessionNode(req)
	if err != nil {
		return nil, toStatus(err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	tree, err := sess.tree.ExpandPath(ctx, p)
	if err != nil {
		return nil, toStatus(err)
	}
	sess.tree = tree

	node := tree.Find(p)
	if node == nil {
		return nil, toStatus(fmt.Errorf("%w: %s", types.ErrNodeNotFound, req.NodeID))
	}
	return &NodesResponse{Nodes: sess.views(node.Children)}, nil
}

// sessionNode resolves the session and a node path that exists in its dataset.
func (s *SelectionService) sessionNode(req *NodeRequest) (*session, types.Path, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if err := sess.requireDataset(); err != nil {
		return nil, nil, err
	}
	p, err := types.ParsePathID(req.NodeID)
	if err != nil {
		return nil, nil, err
	}
	if !sess.ds.Contains(p) {
		return nil, nil, fmt.Errorf("%w: %s", types.ErrNodeNotFound, req.NodeID)
	}
	return sess, p, nil
}

func (s *SelectionService) Toggle(ctx context.Context, req *NodeRequest) (*ToggleResponse, error) {
	sess, p, err := s.sessionNode(req)
	if err != nil {
		return nil, toStatus(err)
	}
	state := sess.engine.TogglePath(p)
	return &ToggleResponse{
		NodeID:        req.NodeID,
		State:         state,
		SelectedCount: sess.engine.Count(),
	}, nil
}

// BulkSelect replaces the selection with every node at the requested level,
// streaming progress. A newer bulk selection on the same session cancels an
// older one; the cancelled call leaves the selection untouched.
func (s *SelectionService) BulkSelect(req *BulkSelectRequest, stream SelectionService_BulkSelectServer) error {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return toStatus(err)
	}
	if err := sess.requireDataset(); err != nil {
		return toStatus(err)
	}

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	seq := sess.beginBulk(cancel)
	defer sess.endBulk(seq)

	var sendErr error
	progress := func(p location.Progress) {
		if sendErr != nil {
			return
		}
		sendErr = stream.Send(&BulkSelectProgress{
			Done:    p.Done,
			Total:   p.Total,
			Percent: p.Percent,
		})
		if sendErr != nil {
			cancel()
		}
	}

	start := time.Now()
	level := strconv.Itoa(req.Level)
	err = sess.engine.BulkSelect(ctx, req.Level, progress)
	switch {
	case err == nil:
		metrics.BulkSelectTotal.WithLabelValues(level, "ok").Inc()
	case errors.Is(err, types.ErrBulkCancelled):
		metrics.BulkSelectTotal.WithLabelValues(level, "cancelled").Inc()
	default:
		metrics.BulkSelectTotal.WithLabelValues(level, "error").Inc()
	}
	if err != nil {
		slog.DebugContext(ctx, "bulk_select_failed", "session_id", sess.id, "level", req.Level, "err", err)
		return toStatus(err)
	}
	if sendErr != nil {
		return sendErr
	}

	count := sess.engine.Count()
	slog.DebugContext(ctx, "bulk_select_done", "session_id", sess.id, "level", req.Level,
		"selected", count, "duration_ms", time.Since(start).Milliseconds())
	return stream.Send(&BulkSelectProgress{
		Done:          count,
		Total:         count,
		Percent:       100,
		Completed:     true,
		SelectedCount: count,
	})
}

func (s *SelectionService) ClearAll(ctx context.Context, req *SessionRequest) (*SelectionResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	sess.cancelBulk()
	sess.engine.ClearAll()
	return &SelectionResponse{SelectedCount: 0}, nil
}

// Search filters the session tree by name. With Full set, the whole dataset
// is materialized first and kept for later calls.
func (s *SelectionService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}

	sess.mu.Lock()
	tree := sess.tree
	if req.Full && strings.TrimSpace(req.Query) != "" {
		loaded, err := tree.LoadAll(ctx)
		if err != nil {
			sess.mu.Unlock()
			return nil, toStatus(err)
		}
		sess.tree = loaded
		tree = loaded
	}
	sess.mu.Unlock()

	matches := location.Filter(tree.Roots(), req.Query)
	expand := location.AutoExpand(tree.Roots(), req.Query)
	ids := make([]string, 0, len(expand))
	for id := range expand {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &SearchResponse{
		Nodes:      sess.views(matches),
		AutoExpand: ids,
	}, nil
}

func (s *SelectionService) GenerateRules(ctx context.Context, req *SessionRequest) (*GenerateRulesResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}

	res := location.Generate(sess.engine.SelectedPaths(), sess.ds, s.country())
	encoding := res.Rules.Encoding()
	metrics.RulesGeneratedTotal.WithLabelValues(string(encoding)).Inc()

	ids := make([]string, len(res.Normalized))
	for i, p := range res.Normalized {
		ids[i] = p.ID()
	}
	return &GenerateRulesResponse{
		Rules:         res.Rules,
		Encoding:      encoding,
		Included:      res.Included,
		Excluded:      res.Excluded,
		Normalized:    ids,
		TotalZipCodes: location.CountZipsForPaths(res.Normalized, sess.ds),
	}, nil
}

func (s *SelectionService) EstimateZips(ctx context.Context, req *SessionRequest) (*EstimateZipsResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	selected := sess.engine.SelectedPaths()
	return &EstimateZipsResponse{
		SelectedCount:   len(selected),
		TotalZipCodes:   location.CountZipsForPaths(location.Normalize(selected), sess.ds),
		DatasetZipCodes: sess.ds.TotalZips(),
	}, nil
}

func (s *SelectionService) country() string {
	if s.cfg.Location.Country == "" {
		return task.DefaultCountry
	}
	return s.cfg.Location.Country
}

// SubmitTask posts the session's selection to the backend with the caller's
// bearer token.
func (s *SelectionService) SubmitTask(ctx context.Context, req *SubmitTaskRequest) (*TaskResponse, error) {
	if s.tasks == nil {
		return nil, status.Error(codes.FailedPrecondition, "task submission is not configured")
	}
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := sess.requireDataset(); err != nil {
		return nil, toStatus(err)
	}
	token := auth.TokenFromContext(ctx)
	if token == "" {
		return nil, toStatus(types.ErrMissingToken)
	}

	rec, err := s.tasks.Submit(ctx, token, req.Config, sess.ds, sess.engine.SelectedPaths())
	if err != nil {
		slog.WarnContext(ctx, "task_submit_failed", "session_id", sess.id, "token", auth.Fingerprint(token), "err", err)
		return nil, toStatus(err)
	}
	return &TaskResponse{Task: rec}, nil
}

func (s *SelectionService) store() (*task.Store, error) {
	if s.tasks == nil || s.tasks.Store() == nil {
		return nil, status.Error(codes.FailedPrecondition, "task history is not configured")
	}
	return s.tasks.Store(), nil
}

func parseTaskID(id string) (types.TaskID, error) {
	tid, err := types.ParseTaskID(id)
	if err != nil {
		return "", status.Errorf(codes.InvalidArgument, "invalid task id %q", id)
	}
	return tid, nil
}

func (s *SelectionService) GetTask(ctx context.Context, req *GetTaskRequest) (*TaskResponse, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	id, err := parseTaskID(req.TaskID)
	if err != nil {
		return nil, err
	}
	rec, err := store.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TaskResponse{Task: rec}, nil
}

func (s *SelectionService) ListTasks(ctx context.Context, req *ListTasksRequest) (*ListTasksResponse, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}
	recs, err := store.List(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListTasksResponse{Tasks: recs}, nil
}

func (s *SelectionService) UpdateTaskStatus(ctx context.Context, req *UpdateTaskStatusRequest) (*TaskResponse, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	id, err := parseTaskID(req.TaskID)
	if err != nil {
		return nil, err
	}
	if err := store.UpdateStatus(ctx, id, req.Status, time.Now()); err != nil {
		return nil, toStatus(err)
	}
	rec, err := store.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TaskResponse{Task: rec}, nil
}
