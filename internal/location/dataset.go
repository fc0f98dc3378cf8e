// internal/location/dataset.go
package location

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zipscope/zipscope/internal/types"
)

/*
 * Indexed, immutable view over the raw location hierarchy.
 *
 * NewDataset walks the raw State -> County -> City -> [ZIP] mapping once and
 * records sorted child names and per-node ZIP counts, so counts are available
 * before any tree node is expanded and enumeration order is deterministic.
 *
 * Names containing types.PathSeparator are rejected: set keys are built by
 * joining segments with that separator and must stay injective.
 *
 * Every method is nil-receiver safe. A nil *Dataset stands for "dataset
 * unavailable" and behaves as an empty hierarchy with zero counts.
 */

// SkipSubtree is returned by a WalkFunc to skip the descendants of the
// current path.
var SkipSubtree = errors.New("skip subtree")

// SkipAll is returned by a WalkFunc to stop the walk.
var SkipAll = errors.New("skip all")

// WalkFunc is called for each descendant visited by Walk.
type WalkFunc func(p types.Path) error

type cityEntry struct {
	zips []string
}

type countyEntry struct {
	cities    map[string]*cityEntry
	cityNames []string
	zipCount  int
}

type stateEntry struct {
	counties    map[string]*countyEntry
	countyNames []string
	zipCount    int
}

// Dataset is the read-only LocationDataset, loaded once per session.
type Dataset struct {
	states      map[string]*stateEntry
	stateNames  []string
	levelCounts [types.MaxPathLength]int
}

// NewDataset indexes raw location data. Duplicate ZIP codes within one city
// are collapsed.
func NewDataset(raw types.LocationData) (*Dataset, error) {
	d := &Dataset{states: make(map[string]*stateEntry, len(raw))}

	for stateName, state := range raw {
		if err := checkSegment(stateName); err != nil {
			return nil, err
		}
		se := &stateEntry{counties: make(map[string]*countyEntry, len(state.Counties))}

		for countyName, county := range state.Counties {
			if err := checkSegment(countyName); err != nil {
				return nil, err
			}
			ce := &countyEntry{cities: make(map[string]*cityEntry, len(county.Cities))}

			for cityName, zips := range county.Cities {
				if err := checkSegment(cityName); err != nil {
					return nil, err
				}
				unique, err := uniqueSorted(zips)
				if err != nil {
					return nil, err
				}
				ce.cities[cityName] = &cityEntry{zips: unique}
				ce.cityNames = append(ce.cityNames, cityName)
				ce.zipCount += len(unique)
			}
			sort.Strings(ce.cityNames)

			se.counties[countyName] = ce
			se.countyNames = append(se.countyNames, countyName)
			se.zipCount += ce.zipCount
			d.levelCounts[types.LevelCity] += len(ce.cityNames)
		}
		sort.Strings(se.countyNames)

		d.states[stateName] = se
		d.stateNames = append(d.stateNames, stateName)
		d.levelCounts[types.LevelCounty] += len(se.countyNames)
		d.levelCounts[types.LevelZip] += se.zipCount
	}
	sort.Strings(d.stateNames)
	d.levelCounts[types.LevelState] = len(d.stateNames)

	return d, nil
}

func checkSegment(name string) error {
	if strings.Contains(name, types.PathSeparator) {
		return fmt.Errorf("%w: %q", types.ErrInvalidSegment, name)
	}
	return nil
}

func uniqueSorted(zips []string) ([]string, error) {
	seen := make(map[string]struct{}, len(zips))
	out := make([]string, 0, len(zips))
	for _, z := range zips {
		if err := checkSegment(z); err != nil {
			return nil, err
		}
		if _, ok := seen[z]; ok {
			continue
		}
		seen[z] = struct{}{}
		out = append(out, z)
	}
	sort.Strings(out)
	return out, nil
}

// TotalZips returns the number of ZIP leaves in the dataset.
func (d *Dataset) TotalZips() int {
	if d == nil {
		return 0
	}
	return d.levelCounts[types.LevelZip]
}

// CountAtLevel returns the number of nodes at the given depth (0-3).
func (d *Dataset) CountAtLevel(level int) int {
	if d == nil || level < types.LevelState || level > types.LevelZip {
		return 0
	}
	return d.levelCounts[level]
}

// States returns state names in sorted order.
func (d *Dataset) States() []string {
	if d == nil {
		return nil
	}
	return d.stateNames
}

// Contains reports whether p resolves to a node.
func (d *Dataset) Contains(p types.Path) bool {
	if d == nil || !p.Valid() {
		return false
	}
	_, _, _, ok := d.resolve(p)
	return ok
}

// resolve returns the entries along p. Entries deeper than p are nil.
func (d *Dataset) resolve(p types.Path) (*stateEntry, *countyEntry, *cityEntry, bool) {
	se, ok := d.states[p[0]]
	if !ok {
		return nil, nil, nil, false
	}
	if len(p) == 1 {
		return se, nil, nil, true
	}
	ce, ok := se.counties[p[1]]
	if !ok {
		return nil, nil, nil, false
	}
	if len(p) == 2 {
		return se, ce, nil, true
	}
	ci, ok := ce.cities[p[2]]
	if !ok {
		return nil, nil, nil, false
	}
	if len(p) == 3 {
		return se, ce, ci, true
	}
	i := sort.SearchStrings(ci.zips, p[3])
	if i == len(ci.zips) || ci.zips[i] != p[3] {
		return nil, nil, nil, false
	}
	return se, ce, ci, true
}

// ChildNames returns the sorted names of p's immediate children. A nil path
// returns the states. Leaves and unresolved paths return nil.
func (d *Dataset) ChildNames(p types.Path) []string {
	if d == nil {
		return nil
	}
	if len(p) == 0 {
		return d.stateNames
	}
	if !p.Valid() {
		return nil
	}
	se, ce, ci, ok := d.resolve(p)
	if !ok {
		return nil
	}
	switch len(p) {
	case 1:
		return se.countyNames
	case 2:
		return ce.cityNames
	case 3:
		return ci.zips
	default:
		return nil
	}
}

// HasChildren reports whether p resolves and has at least one child.
func (d *Dataset) HasChildren(p types.Path) bool {
	return len(d.ChildNames(p)) > 0
}

// ZipCount returns the number of ZIP leaves under p, 1 for a ZIP leaf and 0
// for malformed or unresolved paths.
func (d *Dataset) ZipCount(p types.Path) int {
	if d == nil || !p.Valid() {
		return 0
	}
	se, ce, ci, ok := d.resolve(p)
	if !ok {
		return 0
	}
	switch len(p) {
	case 1:
		return se.zipCount
	case 2:
		return ce.zipCount
	case 3:
		return len(ci.zips)
	default:
		return 1
	}
}

// Walk visits every descendant of p in sorted pre-order, excluding p itself.
// A nil path walks the whole dataset. Returning SkipSubtree from fn skips the
// descendants of the visited path; SkipAll stops the walk. Any other error
// stops the walk and is returned.
func (d *Dataset) Walk(p types.Path, fn WalkFunc) error {
	if d == nil || len(p) > types.MaxPathLength {
		return nil
	}
	if len(p) > 0 && !d.Contains(p) {
		return nil
	}
	err := d.walk(p, fn)
	if err == SkipAll || err == SkipSubtree {
		return nil
	}
	return err
}

func (d *Dataset) walk(p types.Path, fn WalkFunc) error {
	for _, name := range d.ChildNames(p) {
		child := p.Child(name)
		err := fn(child)
		if err == SkipSubtree {
			continue
		}
		if err != nil {
			return err
		}
		if len(child) < types.MaxPathLength {
			if err := d.walk(child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// WalkZips visits every ZIP leaf under p (or p itself when p is a leaf).
func (d *Dataset) WalkZips(p types.Path, fn func(zip types.Path) error) error {
	if d == nil {
		return nil
	}
	if len(p) == types.MaxPathLength {
		if !d.Contains(p) {
			return nil
		}
		err := fn(p)
		if err == SkipAll || err == SkipSubtree {
			return nil
		}
		return err
	}
	return d.Walk(p, func(q types.Path) error {
		if len(q) < types.MaxPathLength {
			return nil
		}
		return fn(q)
	})
}

// WalkLevel visits every path at the given depth across the dataset.
func (d *Dataset) WalkLevel(level int, fn func(p types.Path) error) error {
	if level < types.LevelState || level > types.LevelZip {
		return fmt.Errorf("%w: %d", types.ErrInvalidLevel, level)
	}
	return d.Walk(nil, func(q types.Path) error {
		if q.Depth() < level {
			return nil
		}
		if err := fn(q); err != nil {
			return err
		}
		return SkipSubtree
	})
}

// Zips returns every ZIP leaf path under p in sorted order.
func (d *Dataset) Zips(p types.Path) []types.Path {
	out := make([]types.Path, 0, d.ZipCount(p))
	_ = d.WalkZips(p, func(z types.Path) error {
		out = append(out, z)
		return nil
	})
	return out
}
