// internal/location/search.go
package location

import "strings"

/*
 * Text search over materialized tree nodes.
 *
 * A node is retained when its name contains the query (case-insensitive) or
 * when any descendant is retained. Retained nodes are shallow clones carrying
 * only their retained children, with Pruned set when any loaded child was
 * dropped; the input tree is never modified. A matching node keeps IsLoaded
 * and HasChildren, so an empty Children list with Pruned set means "filtered",
 * not "empty".
 *
 * Only materialized nodes are searched. Callers wanting matches across the
 * whole dataset search a Tree after LoadAll.
 */

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func nameMatches(n *Node, q string) bool {
	return strings.Contains(strings.ToLower(n.Name), q)
}

// Filter returns the pruned tree of nodes matching query. An empty query
// returns nodes unchanged.
func Filter(nodes []*Node, query string) []*Node {
	q := normalizeQuery(query)
	if q == "" {
		return nodes
	}
	return filterNodes(nodes, q)
}

func filterNodes(nodes []*Node, q string) []*Node {
	var out []*Node
	for _, n := range nodes {
		children := filterNodes(n.Children, q)
		if len(children) == 0 && !nameMatches(n, q) {
			continue
		}
		clone := *n
		clone.Children = children
		clone.Pruned = len(children) < len(n.Children)
		out = append(out, &clone)
	}
	return out
}

// AutoExpand returns the ids of every ancestor of a matching node, i.e. the
// nodes that must be expanded for all matches to be visible. An empty query
// returns an empty set.
func AutoExpand(nodes []*Node, query string) map[string]struct{} {
	expand := make(map[string]struct{})
	q := normalizeQuery(query)
	if q == "" {
		return expand
	}
	var ancestors []string
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if nameMatches(n, q) {
				for _, id := range ancestors {
					expand[id] = struct{}{}
				}
			}
			if len(n.Children) > 0 {
				ancestors = append(ancestors, n.ID)
				walk(n.Children)
				ancestors = ancestors[:len(ancestors)-1]
			}
		}
	}
	walk(nodes)
	return expand
}
