// internal/location/tree.go
package location

import (
	"context"
	"time"

	"github.com/zipscope/zipscope/internal/types"
	"golang.org/x/sync/errgroup"
)

/*
 * Lazily materialized navigation tree over a Dataset.
 *
 * BuildRoot produces state nodes only; LoadChildren produces the next level.
 * TotalZipCodes is filled from the Dataset index at node construction, so
 * counts are shown before a node is expanded.
 *
 * Trees are immutable. Expand returns a new Tree that shares every node off the
 * root-to-target path with the previous one; only that path is cloned. Callers
 * holding an older Tree keep a consistent view.
 *
 * Expanding an already loaded node returns the receiver unchanged, which makes
 * loads idempotent: children are never duplicated.
 */

// expandConcurrency bounds concurrent sibling loads in ExpandAll.
const expandConcurrency = 8

// Node is one materialized tree entry.
type Node struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Path          types.Path `json:"path"`
	Level         int        `json:"level"`
	HasChildren   bool       `json:"has_children"`
	IsLoaded      bool       `json:"is_loaded"`
	Children      []*Node    `json:"children,omitempty"`
	TotalZipCodes int        `json:"total_zip_codes"`
	// Pruned is set on search results whose loaded children were partly or
	// wholly filtered out.
	Pruned bool `json:"pruned,omitempty"`
}

// IsLeaf reports whether n is a ZIP node.
func (n *Node) IsLeaf() bool {
	return n.Level == types.LevelZip
}

func newNode(ds *Dataset, p types.Path) *Node {
	n := &Node{
		ID:            p.ID(),
		Name:          p[len(p)-1],
		Path:          p,
		Level:         p.Depth(),
		TotalZipCodes: ds.ZipCount(p),
	}
	if n.Level == types.LevelZip {
		// Leaves need no further loading.
		n.IsLoaded = true
		return n
	}
	n.HasChildren = ds.HasChildren(p)
	return n
}

// BuildRoot returns one unloaded node per state.
func BuildRoot(ds *Dataset) []*Node {
	names := ds.States()
	roots := make([]*Node, 0, len(names))
	for _, name := range names {
		roots = append(roots, newNode(ds, types.Path{name}))
	}
	return roots
}

// ChildLoader produces the immediate children of a node. Implementations may
// be remote; loads of different nodes are independent.
type ChildLoader interface {
	LoadChildren(ctx context.Context, node *Node) ([]*Node, error)
}

// DatasetLoader loads children from an in-memory Dataset. Delay adds an
// artificial pause before each load.
type DatasetLoader struct {
	Dataset *Dataset
	Delay   time.Duration
}

// LoadChildren returns node's children at Level+1, each unloaded except ZIP leaves.
func (l DatasetLoader) LoadChildren(ctx context.Context, node *Node) ([]*Node, error) {
	if node == nil || node.Level >= types.LevelZip {
		return nil, nil
	}
	if l.Delay > 0 {
		timer := time.NewTimer(l.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	names := l.Dataset.ChildNames(node.Path)
	children := make([]*Node, 0, len(names))
	for _, name := range names {
		children = append(children, newNode(l.Dataset, node.Path.Child(name)))
	}
	return children, nil
}

// LoadChildren loads node's children directly from ds.
func LoadChildren(ctx context.Context, ds *Dataset, node *Node) ([]*Node, error) {
	return DatasetLoader{Dataset: ds}.LoadChildren(ctx, node)
}

// Tree is an immutable snapshot of the materialized navigation tree.
type Tree struct {
	roots  []*Node
	loader ChildLoader
}

// TreeOption configures NewTree.
type TreeOption func(*Tree)

// WithLoader replaces the default DatasetLoader.
func WithLoader(l ChildLoader) TreeOption {
	return func(t *Tree) {
		t.loader = l
	}
}

// NewTree builds the root level of ds.
func NewTree(ds *Dataset, opts ...TreeOption) *Tree {
	t := &Tree{
		roots:  BuildRoot(ds),
		loader: DatasetLoader{Dataset: ds},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Roots returns the state nodes. Callers must not mutate them.
func (t *Tree) Roots() []*Node {
	return t.roots
}

// Find returns the materialized node at p, or nil.
func (t *Tree) Find(p types.Path) *Node {
	nodes := t.roots
	var cur *Node
	for _, name := range p {
		cur = findChild(nodes, name)
		if cur == nil {
			return nil
		}
		nodes = cur.Children
	}
	return cur
}

func findChild(nodes []*Node, name string) *Node {
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Expand loads the children of the node at p. Returns the receiver when the
// node is already loaded.
func (t *Tree) Expand(ctx context.Context, p types.Path) (*Tree, error) {
	node := t.Find(p)
	if node == nil {
		return t, types.ErrNodeNotFound
	}
	if node.IsLoaded {
		return t, nil
	}
	children, err := t.loader.LoadChildren(ctx, node)
	if err != nil {
		return t, err
	}
	return t.withLoaded(p, children), nil
}

// ExpandPath materializes every ancestor of p and then p itself.
func (t *Tree) ExpandPath(ctx context.Context, p types.Path) (*Tree, error) {
	if !p.Valid() {
		return t, types.ErrMalformedPath
	}
	next := t
	for i := 1; i <= len(p); i++ {
		var err error
		next, err = next.Expand(ctx, p[:i])
		if err != nil {
			return t, err
		}
	}
	return next, nil
}

// ExpandAll loads several nodes concurrently and applies the results in input
// order. Either every load is applied or, on the first error, none is.
func (t *Tree) ExpandAll(ctx context.Context, paths []types.Path) (*Tree, error) {
	var targets []*Node
	for _, p := range paths {
		node := t.Find(p)
		if node == nil {
			return t, types.ErrNodeNotFound
		}
		if !node.IsLoaded {
			targets = append(targets, node)
		}
	}
	if len(targets) == 0 {
		return t, nil
	}

	results := make([][]*Node, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(expandConcurrency)
	for i, node := range targets {
		g.Go(func() error {
			children, err := t.loader.LoadChildren(gctx, node)
			if err != nil {
				return err
			}
			results[i] = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return t, err
	}

	next := t
	for i, node := range targets {
		if loaded := next.Find(node.Path); loaded != nil && loaded.IsLoaded {
			// Duplicate path in input.
			continue
		}
		next = next.withLoaded(node.Path, results[i])
	}
	return next, nil
}

// LoadAll materializes every level of the tree.
func (t *Tree) LoadAll(ctx context.Context) (*Tree, error) {
	next := t
	frontier := unloaded(t.roots)
	for len(frontier) > 0 {
		var err error
		next, err = next.ExpandAll(ctx, frontier)
		if err != nil {
			return t, err
		}
		var deeper []types.Path
		for _, p := range frontier {
			if node := next.Find(p); node != nil {
				deeper = append(deeper, unloaded(node.Children)...)
			}
		}
		frontier = deeper
	}
	return next, nil
}

func unloaded(nodes []*Node) []types.Path {
	var out []types.Path
	for _, n := range nodes {
		if !n.IsLoaded {
			out = append(out, n.Path)
		}
	}
	return out
}

// withLoaded clones the root-to-p path and attaches children to the node at p.
func (t *Tree) withLoaded(p types.Path, children []*Node) *Tree {
	roots := replaceAt(t.roots, p, 0, func(n *Node) *Node {
		clone := *n
		clone.Children = children
		clone.IsLoaded = true
		return &clone
	})
	return &Tree{roots: roots, loader: t.loader}
}

func replaceAt(nodes []*Node, p types.Path, depth int, fn func(*Node) *Node) []*Node {
	out := make([]*Node, len(nodes))
	copy(out, nodes)
	for i, n := range nodes {
		if n.Name != p[depth] {
			continue
		}
		if depth == len(p)-1 {
			out[i] = fn(n)
		} else {
			clone := *n
			clone.Children = replaceAt(n.Children, p, depth+1, fn)
			out[i] = &clone
		}
		break
	}
	return out
}
