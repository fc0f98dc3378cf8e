// internal/location/cost.go
package location

import "github.com/zipscope/zipscope/internal/types"

/*
 * Size model for location rule encodings.
 *
 * A selection can be sent as an include list (the normalized selected paths)
 * or as an exclude list (every ZIP in the dataset that is not selected, on top
 * of a country base rule). The encoding is chosen by comparing ZIP counts:
 *
 *   exclude  iff  0 < |excluded| <= |included|
 *   include  otherwise
 *
 * The lower bound means selecting every ZIP produces an include list rather
 * than a bare {base: [{country}]}. That matches the behaviour the backend has
 * always received and is kept deliberately.
 *
 * CountZipsForPaths is the cheap estimate used for cost displays: it sums per
 * path counts from the Dataset index without expansion, so overlapping paths
 * are counted twice.
 */

// chooseEncoding applies the include/exclude decision rule.
func chooseEncoding(included, excluded int) types.Encoding {
	if excluded > 0 && excluded <= included {
		return types.EncodingExclude
	}
	return types.EncodingInclude
}

// CountZipsForPaths sums the ZIP counts of paths. Malformed or unresolved
// paths count as zero.
func CountZipsForPaths(paths []types.Path, ds *Dataset) int {
	total := 0
	for _, p := range paths {
		total += ds.ZipCount(p)
	}
	return total
}
