// internal/location/selection.go
package location

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zipscope/zipscope/internal/types"
)

/*
 * Selection engine: owns the SelectionSet and every mutation of it.
 *
 * Representation: a set of path keys (types.Path.Key) held in a Go map for O(1)
 * membership. Paths of any depth may be members; a member covers every path
 * below it. Non-leaf selection state is never stored, it is derived:
 *   - selected:   the path or an ancestor is a member, or every ZIP leaf below
 *                 it is covered
 *   - partial:    not selected, but some member lies below the path
 *   - unselected: otherwise
 * Each committed Snapshot tallies members and covered ZIPs per path prefix, so
 * derivation is a few map lookups and does not depend on which tree nodes are
 * materialized.
 *
 * Toggle-on always expands to ZIP leaves to keep the set leaf-uniform.
 * Toggle-off removes the node, its descendants, and splits any member ancestor
 * into the leaves outside the node, so the post-toggle state is exact.
 *
 * Copy-on-write: every mutation builds a new set and swaps it in atomically.
 * A published Snapshot is never modified afterwards, so observers always see a
 * fully consistent selection.
 *
 * Bulk select over many ZIPs runs in chunks with a cooperative yield between
 * chunks. Cancellation discards the in-progress set; the last committed set
 * stands.
 */

const (
	// DefaultChunkSize is the number of paths added between yields.
	DefaultChunkSize = 5000

	// DefaultChunkThreshold is the path count above which bulk select chunks.
	DefaultChunkThreshold = 10000
)

// Progress reports how far a bulk selection has advanced.
type Progress struct {
	Done    int `json:"done"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

func newProgress(done, total int) Progress {
	pct := 100
	if total > 0 {
		pct = done * 100 / total
	}
	return Progress{Done: done, Total: total, Percent: pct}
}

// Snapshot is an immutable view of the selection at one point in time.
type Snapshot struct {
	keys  map[string]struct{}
	below map[string]tally
}

// tally counts the members strictly below a prefix and the ZIPs they cover.
type tally struct {
	members int
	zips    int
}

// newSnapshot indexes keys by every proper prefix of each member so partial
// and selected states resolve with map lookups. Members covered by a member
// ancestor add no ZIPs.
func newSnapshot(ds *Dataset, keys map[string]struct{}) Snapshot {
	below := make(map[string]tally)
	for k := range keys {
		m := types.PathFromKey(k)
		zips := ds.ZipCount(m)
		for i := 1; i < len(m); i++ {
			if _, ok := keys[m[:i].Key()]; ok {
				zips = 0
				break
			}
		}
		for i := 1; i < len(m); i++ {
			pk := m[:i].Key()
			t := below[pk]
			t.members++
			t.zips += zips
			below[pk] = t
		}
	}
	return Snapshot{keys: keys, below: below}
}

// Len returns the number of member paths.
func (s Snapshot) Len() int {
	return len(s.keys)
}

// Has reports whether p itself is a member.
func (s Snapshot) Has(p types.Path) bool {
	_, ok := s.keys[p.Key()]
	return ok
}

// Covers reports whether p or one of its ancestors is a member.
func (s Snapshot) Covers(p types.Path) bool {
	for i := 1; i <= len(p); i++ {
		if _, ok := s.keys[p[:i].Key()]; ok {
			return true
		}
	}
	return false
}

// Paths returns the member paths sorted by key.
func (s Snapshot) Paths() []types.Path {
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.Path, len(keys))
	for i, k := range keys {
		out[i] = types.PathFromKey(k)
	}
	return out
}

// Engine maintains the selection for one session.
type Engine struct {
	ds *Dataset

	mu        sync.Mutex // serializes writers
	current   atomic.Pointer[Snapshot]
	observers []func(Snapshot)

	chunkSize      int
	chunkThreshold int
	chunkPause     time.Duration
}

// EngineOption configures NewEngine.
type EngineOption func(*Engine)

// WithChunking sets the bulk chunk size and the threshold above which bulk
// selections are chunked. Non-positive values keep the defaults.
func WithChunking(size, threshold int) EngineOption {
	return func(e *Engine) {
		if size > 0 {
			e.chunkSize = size
		}
		if threshold > 0 {
			e.chunkThreshold = threshold
		}
	}
}

// WithChunkPause adds a pause after each chunk of a bulk selection.
func WithChunkPause(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.chunkPause = d
	}
}

// NewEngine creates an engine with an empty selection. A nil dataset is valid
// and yields zero counts everywhere.
func NewEngine(ds *Dataset, opts ...EngineOption) *Engine {
	e := &Engine{
		ds:             ds,
		chunkSize:      DefaultChunkSize,
		chunkThreshold: DefaultChunkThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	empty := newSnapshot(ds, make(map[string]struct{}))
	e.current.Store(&empty)
	return e
}

// Dataset returns the dataset the engine selects over.
func (e *Engine) Dataset() *Dataset {
	return e.ds
}

// Subscribe registers fn to receive a snapshot after every committed change.
// fn runs while the writer lock is held and must not mutate the engine.
func (e *Engine) Subscribe(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Snapshot returns the current selection.
func (e *Engine) Snapshot() Snapshot {
	return *e.current.Load()
}

// SelectedPaths returns the current member paths sorted by key.
func (e *Engine) SelectedPaths() []types.Path {
	return e.Snapshot().Paths()
}

// Count returns the number of member paths.
func (e *Engine) Count() int {
	return e.Snapshot().Len()
}

// commit swaps next in and notifies observers. Caller holds e.mu.
func (e *Engine) commit(next map[string]struct{}) Snapshot {
	snap := newSnapshot(e.ds, next)
	e.current.Store(&snap)
	for _, fn := range e.observers {
		fn(snap)
	}
	return snap
}

func (e *Engine) cloneCurrent() map[string]struct{} {
	cur := e.current.Load().keys
	next := make(map[string]struct{}, len(cur))
	for k := range cur {
		next[k] = struct{}{}
	}
	return next
}

// State returns the derived selection state of node.
func (e *Engine) State(node *Node) types.SelectionState {
	if node == nil {
		return types.StateUnselected
	}
	return e.StateOf(node.Path)
}

// StateOf returns the derived selection state of the node at p.
func (e *Engine) StateOf(p types.Path) types.SelectionState {
	return stateOf(e.ds, e.Snapshot(), p)
}

func stateOf(ds *Dataset, snap Snapshot, p types.Path) types.SelectionState {
	if !p.Valid() {
		return types.StateUnselected
	}
	if snap.Covers(p) {
		return types.StateSelected
	}
	// Leaves and childless nodes have no partial state.
	if p.Depth() == types.LevelZip || !ds.HasChildren(p) {
		return types.StateUnselected
	}

	t := snap.below[p.Key()]
	switch {
	case t.zips > 0 && t.zips == ds.ZipCount(p):
		return types.StateSelected
	case t.members > 0:
		return types.StatePartial
	default:
		return types.StateUnselected
	}
}

// Toggle flips the selection of node and returns its new state.
func (e *Engine) Toggle(node *Node) types.SelectionState {
	if node == nil {
		return types.StateUnselected
	}
	return e.TogglePath(node.Path)
}

// TogglePath flips the selection of the node at p and returns its new state.
// Malformed paths and paths missing from the dataset are a no-op.
func (e *Engine) TogglePath(p types.Path) types.SelectionState {
	if !p.Valid() || !e.ds.Contains(p) {
		return types.StateUnselected
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.Snapshot()
	state := stateOf(e.ds, snap, p)
	next := e.cloneCurrent()

	switch {
	case state == types.StateSelected:
		e.deselect(next, snap, p)
	case p.Depth() == types.LevelZip || e.ds.ZipCount(p) == 0:
		// Nothing to expand to; the node's own key is its representative.
		next[p.Key()] = struct{}{}
	default:
		e.selectLeaves(next, p)
	}

	return stateOf(e.ds, e.commit(next), p)
}

// selectLeaves adds every ZIP under p and drops intermediate members below p,
// which the leaves now subsume.
func (e *Engine) selectLeaves(set map[string]struct{}, p types.Path) {
	_ = e.ds.Walk(p, func(q types.Path) error {
		if q.Depth() == types.LevelZip {
			set[q.Key()] = struct{}{}
		} else {
			delete(set, q.Key())
		}
		return nil
	})
}

// deselect removes p, every member below p, and splits member ancestors of p
// into their leaves outside p.
func (e *Engine) deselect(set map[string]struct{}, snap Snapshot, p types.Path) {
	delete(set, p.Key())
	_ = e.ds.Walk(p, func(q types.Path) error {
		delete(set, q.Key())
		return nil
	})

	for i := 1; i < len(p); i++ {
		ancestor := p[:i]
		if !snap.Has(ancestor) {
			continue
		}
		delete(set, ancestor.Key())
		_ = e.ds.WalkZips(ancestor, func(z types.Path) error {
			if !z.HasPrefix(p) {
				set[z.Key()] = struct{}{}
			}
			return nil
		})
	}
}

// ClearAll empties the selection.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commit(make(map[string]struct{}))
}

// BulkSelect replaces the selection with every path at level (0=states,
// 1=counties, 2=cities, 3=ZIPs). Selections above the chunk threshold are
// built in chunks with a yield between chunks; progress, when non-nil, is
// called after every chunk and once on completion.
//
// If ctx is cancelled before the new set is committed, the previous selection
// is left untouched and an error wrapping types.ErrBulkCancelled is returned.
func (e *Engine) BulkSelect(ctx context.Context, level int, progress func(Progress)) error {
	if level < types.LevelState || level > types.LevelZip {
		return fmt.Errorf("%w: %d", types.ErrInvalidLevel, level)
	}

	total := e.ds.CountAtLevel(level)
	chunked := total > e.chunkThreshold
	next := make(map[string]struct{}, total)
	done := 0

	err := e.ds.WalkLevel(level, func(p types.Path) error {
		next[p.Key()] = struct{}{}
		done++
		if !chunked || done%e.chunkSize != 0 {
			return nil
		}
		if progress != nil {
			progress(newProgress(done, total))
		}
		return e.yield(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrBulkCancelled, err)
	}

	e.mu.Lock()
	// A cancel that lands while waiting for the lock still discards the set.
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %w", types.ErrBulkCancelled, err)
	}
	e.commit(next)
	e.mu.Unlock()

	if progress != nil {
		progress(newProgress(done, total))
	}
	return nil
}

// yield gives other goroutines a chance to run between chunks and reports
// cancellation.
func (e *Engine) yield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.chunkPause <= 0 {
		runtime.Gosched()
		return nil
	}
	timer := time.NewTimer(e.chunkPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
