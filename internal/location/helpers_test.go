// internal/location/helpers_test.go
package location

import (
	"context"
	"fmt"
	"testing"

	"github.com/zipscope/zipscope/internal/types"
)

// sampleData:
//
//	CA (5): LA (3): LosAngeles [90001 90002], Pasadena [91101]
//	        Orange (2): Irvine [92602 92603]
//	NV (1): Clark (1): LasVegas [89101]
//	        Empty (0)
//	WY (0)
func sampleData() types.LocationData {
	return types.LocationData{
		"CA": {Counties: map[string]types.CountyData{
			"LA": {Cities: map[string][]string{
				"LosAngeles": {"90002", "90001"},
				"Pasadena":   {"91101"},
			}},
			"Orange": {Cities: map[string][]string{
				"Irvine": {"92602", "92603"},
			}},
		}},
		"NV": {Counties: map[string]types.CountyData{
			"Clark": {Cities: map[string][]string{
				"LasVegas": {"89101"},
			}},
			"Empty": {},
		}},
		"WY": {},
	}
}

// hundredZipData has exactly 100 ZIPs: TX -> 4 counties -> 5 cities -> 5 ZIPs.
func hundredZipData() types.LocationData {
	counties := make(map[string]types.CountyData)
	zip := 75000
	for c := 0; c < 4; c++ {
		cities := make(map[string][]string)
		for ci := 0; ci < 5; ci++ {
			var zips []string
			for z := 0; z < 5; z++ {
				zips = append(zips, fmt.Sprintf("%05d", zip))
				zip++
			}
			cities[fmt.Sprintf("City%d-%d", c, ci)] = zips
		}
		counties[fmt.Sprintf("County%d", c)] = types.CountyData{Cities: cities}
	}
	return types.LocationData{"TX": {Counties: counties}}
}

func mustDataset(t *testing.T, raw types.LocationData) *Dataset {
	t.Helper()
	ds, err := NewDataset(raw)
	if err != nil {
		t.Fatalf("NewDataset() error = %v, want nil", err)
	}
	return ds
}

func fullTree(t *testing.T, ds *Dataset) *Tree {
	t.Helper()
	tree, err := NewTree(ds).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error = %v, want nil", err)
	}
	return tree
}

// allPaths lists every node path in ds.
func allPaths(ds *Dataset) []types.Path {
	var out []types.Path
	_ = ds.Walk(nil, func(p types.Path) error {
		out = append(out, p)
		return nil
	})
	return out
}

func p(segments ...string) types.Path {
	return types.Path(segments)
}
