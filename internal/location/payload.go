// internal/location/payload.go
package location

import (
	"fmt"

	"github.com/zipscope/zipscope/internal/types"
)

/*
 * Selection serialization.
 *
 * Generate workflow:
 *   1. Normalize: drop malformed paths, duplicates, and any path below another
 *      selected path
 *   2. Expand the normalized paths to the de-duplicated set of ZIP leaves
 *   3. Compute the ZIPs that would be excluded (dataset minus included)
 *   4. Pick the encoding by size (see cost.go)
 *
 * Paths that are well formed but no longer resolve in the dataset expand to
 * nothing. They are still emitted in an include list, leaving the backend to
 * resolve names; they never contribute to counts.
 */

// Result is the outcome of Generate together with the counts that decided it.
type Result struct {
	Rules      types.LocationRules `json:"location_rules"`
	Normalized []types.Path        `json:"normalized_paths"`
	Included   int                 `json:"total_included"`
	Excluded   int                 `json:"would_be_excluded"`
}

// Normalize removes malformed paths, duplicates, and every path that has a
// strict ancestor in the input. Input order is preserved.
func Normalize(paths []types.Path) []types.Path {
	members := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p.Valid() {
			members[p.Key()] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(members))
	out := make([]types.Path, 0, len(members))
	for _, p := range paths {
		if !p.Valid() {
			continue
		}
		key := p.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		if hasMemberAncestor(members, p) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func hasMemberAncestor(members map[string]struct{}, p types.Path) bool {
	for i := 1; i < len(p); i++ {
		if _, ok := members[p[:i].Key()]; ok {
			return true
		}
	}
	return false
}

// ExpandToZips returns every ZIP leaf under paths, de-duplicated, in
// first-seen order.
func ExpandToZips(paths []types.Path, ds *Dataset) []types.Path {
	seen := make(map[string]struct{})
	var out []types.Path
	for _, p := range paths {
		_ = ds.WalkZips(p, func(z types.Path) error {
			key := z.Key()
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				out = append(out, z)
			}
			return nil
		})
	}
	return out
}

// ToRule flattens a path into a LocationRule.
func ToRule(p types.Path) (types.LocationRule, error) {
	switch len(p) {
	case 1:
		return types.LocationRule{Type: types.RuleTypeState, Name: p[0]}, nil
	case 2:
		return types.LocationRule{Type: types.RuleTypeCounty, State: p[0], Name: p[1]}, nil
	case 3:
		return types.LocationRule{Type: types.RuleTypeCity, State: p[0], County: p[1], Name: p[2]}, nil
	case 4:
		return types.LocationRule{Type: types.RuleTypeZip, ZipCode: p[3]}, nil
	default:
		return types.LocationRule{}, fmt.Errorf("%w: %d segments", types.ErrMalformedPath, len(p))
	}
}

func toRules(paths []types.Path) []types.LocationRule {
	rules := make([]types.LocationRule, 0, len(paths))
	for _, p := range paths {
		r, err := ToRule(p)
		if err != nil {
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

// GenerateRules converts selected paths into the smaller of the include and
// exclude encodings.
func GenerateRules(selected []types.Path, ds *Dataset, country string) types.LocationRules {
	return Generate(selected, ds, country).Rules
}

// Generate is GenerateRules returning the intermediate counts as well.
func Generate(selected []types.Path, ds *Dataset, country string) Result {
	if len(selected) == 0 {
		return Result{Rules: types.LocationRules{Base: []types.LocationRule{}}}
	}

	normalized := Normalize(selected)
	included := ExpandToZips(normalized, ds)
	includedKeys := make(map[string]struct{}, len(included))
	for _, z := range included {
		includedKeys[z.Key()] = struct{}{}
	}

	var excluded []types.Path
	_ = ds.WalkZips(nil, func(z types.Path) error {
		if _, ok := includedKeys[z.Key()]; !ok {
			excluded = append(excluded, z)
		}
		return nil
	})

	res := Result{
		Normalized: normalized,
		Included:   len(included),
		Excluded:   len(excluded),
	}

	if chooseEncoding(len(included), len(excluded)) == types.EncodingExclude {
		res.Rules = types.LocationRules{
			Base:    []types.LocationRule{{Type: types.RuleTypeCountry, Name: country}},
			Exclude: toRules(excluded),
		}
		return res
	}

	res.Rules = types.LocationRules{
		Base:    []types.LocationRule{},
		Include: toRules(normalized),
	}
	return res
}
