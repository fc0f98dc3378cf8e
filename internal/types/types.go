// Package types provides domain models shared across zipscope components.
//
// Zero-dependency design: types.go, rules.go, task.go and errors.go use only the
// standard library so the location engine can be embedded without pulling in
// transport or storage deps. ID utilities in ids.go import uuid but are isolated.
//
// Wire types here are the JSON shapes exchanged with the location-data provider
// and the task backend; conversion to transport messages happens at the API layer.
package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Path depths. Depth determines granularity: a state path denotes every ZIP
// under that state, not the state record itself.
const (
	LevelState  = 0
	LevelCounty = 1
	LevelCity   = 2
	LevelZip    = 3
)

const (
	// MaxPathLength is the number of segments in a ZIP leaf path.
	MaxPathLength = LevelZip + 1

	// PathSeparator joins segments into set keys. Dataset names containing it
	// are rejected at load time so keys stay injective.
	PathSeparator = "\x1f"
)

// Path identifies a node by its 1-4 name segments: [state], [state, county],
// [state, county, city] or [state, county, city, zip].
type Path []string

// Depth returns the level of the node the path addresses (0-3).
// Returns -1 for an empty path.
func (p Path) Depth() int {
	return len(p) - 1
}

// Valid reports whether the path has between 1 and 4 segments.
func (p Path) Valid() bool {
	return len(p) >= 1 && len(p) <= MaxPathLength
}

// Key joins segments with PathSeparator for set membership and prefix tests.
func (p Path) Key() string {
	return strings.Join(p, PathSeparator)
}

// PathFromKey splits a key produced by Key.
func PathFromKey(key string) Path {
	if key == "" {
		return nil
	}
	return Path(strings.Split(key, PathSeparator))
}

// ID returns the public identifier: escaped segments joined by "/".
func (p Path) ID() string {
	escaped := make([]string, len(p))
	for i, seg := range p {
		escaped[i] = url.PathEscape(seg)
	}
	return strings.Join(escaped, "/")
}

// ParsePathID inverts ID. Rejects empty ids and ids deeper than a ZIP leaf.
func ParsePathID(id string) (Path, error) {
	if id == "" {
		return nil, ErrMalformedPath
	}
	parts := strings.Split(id, "/")
	if len(parts) > MaxPathLength {
		return nil, fmt.Errorf("%w: %d segments", ErrMalformedPath, len(parts))
	}
	path := make(Path, len(parts))
	for i, part := range parts {
		seg, err := url.PathUnescape(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPath, err)
		}
		if seg == "" {
			return nil, fmt.Errorf("%w: empty segment", ErrMalformedPath)
		}
		path[i] = seg
	}
	return path, nil
}

// HasPrefix reports whether q is p itself or an ancestor of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether q is a strict ancestor of p.
func (p Path) IsDescendantOf(q Path) bool {
	return len(q) < len(p) && p.HasPrefix(q)
}

// Child returns a new path extending p by name. Never aliases p's backing array.
func (p Path) Child(name string) Path {
	child := make(Path, len(p)+1)
	copy(child, p)
	child[len(p)] = name
	return child
}

// Equal reports segment-wise equality.
func (p Path) Equal(q Path) bool {
	return len(p) == len(q) && p.HasPrefix(q)
}

func (p Path) String() string {
	return strings.Join(p, " > ")
}

// LocationData is the raw hierarchical reference data served by the location
// provider: state -> counties -> cities -> ZIP codes.
// ZIP codes are unique leaves; county and city names are unique only within
// their parent.
type LocationData map[string]StateData

// StateData holds the counties of one state.
type StateData struct {
	Counties map[string]CountyData `json:"counties"`
}

// CountyData holds the cities of one county, each mapped to its ZIP codes.
type CountyData struct {
	Cities map[string][]string `json:"cities"`
}

// SelectionState is the derived tri-state of a node.
type SelectionState string

const (
	StateUnselected SelectionState = "unselected"
	StatePartial    SelectionState = "partial"
	StateSelected   SelectionState = "selected"
)
