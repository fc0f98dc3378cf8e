// internal/location/dataset_test.go
package location

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zipscope/zipscope/internal/types"
)

func TestNewDataset_Counts(t *testing.T) {
	ds := mustDataset(t, sampleData())

	if got := ds.TotalZips(); got != 6 {
		t.Errorf("TotalZips() = %v, want 6", got)
	}

	levels := []struct {
		level int
		want  int
	}{
		{types.LevelState, 3},
		{types.LevelCounty, 4},
		{types.LevelCity, 4},
		{types.LevelZip, 6},
		{-1, 0},
		{4, 0},
	}
	for _, tt := range levels {
		if got := ds.CountAtLevel(tt.level); got != tt.want {
			t.Errorf("CountAtLevel(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestDataset_ZipCount(t *testing.T) {
	ds := mustDataset(t, sampleData())

	tests := []struct {
		name string
		path types.Path
		want int
	}{
		{"state", p("CA"), 5},
		{"county", p("CA", "LA"), 3},
		{"city", p("CA", "LA", "LosAngeles"), 2},
		{"zip", p("CA", "LA", "LosAngeles", "90001"), 1},
		{"empty county", p("NV", "Empty"), 0},
		{"empty state", p("WY"), 0},
		{"unknown state", p("TX"), 0},
		{"unknown zip", p("CA", "LA", "LosAngeles", "99999"), 0},
		{"empty path", nil, 0},
		{"too deep", p("CA", "LA", "LosAngeles", "90001", "x"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ds.ZipCount(tt.path); got != tt.want {
				t.Errorf("ZipCount(%v) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDataset_NilIsEmpty(t *testing.T) {
	var ds *Dataset

	if got := ds.TotalZips(); got != 0 {
		t.Errorf("TotalZips() = %v, want 0", got)
	}
	if got := ds.ZipCount(p("CA")); got != 0 {
		t.Errorf("ZipCount() = %v, want 0", got)
	}
	if got := ds.States(); len(got) != 0 {
		t.Errorf("States() = %v, want empty", got)
	}
	if ds.Contains(p("CA")) {
		t.Error("Contains() = true, want false")
	}
	if got := ds.Zips(nil); len(got) != 0 {
		t.Errorf("Zips() = %v, want empty", got)
	}
}

func TestNewDataset_RejectsSeparatorInNames(t *testing.T) {
	raw := types.LocationData{
		"C" + types.PathSeparator + "A": {},
	}
	_, err := NewDataset(raw)
	if !errors.Is(err, types.ErrInvalidSegment) {
		t.Fatalf("NewDataset() error = %v, want ErrInvalidSegment", err)
	}

	raw = types.LocationData{
		"CA": {Counties: map[string]types.CountyData{
			"LA": {Cities: map[string][]string{"LosAngeles": {"900" + types.PathSeparator + "01"}}},
		}},
	}
	_, err = NewDataset(raw)
	if !errors.Is(err, types.ErrInvalidSegment) {
		t.Fatalf("NewDataset() error = %v, want ErrInvalidSegment for ZIP", err)
	}
}

func TestNewDataset_CollapsesDuplicateZips(t *testing.T) {
	ds := mustDataset(t, types.LocationData{
		"CA": {Counties: map[string]types.CountyData{
			"LA": {Cities: map[string][]string{"LosAngeles": {"90001", "90001", "90002"}}},
		}},
	})
	if got := ds.ZipCount(p("CA")); got != 2 {
		t.Errorf("ZipCount(CA) = %v, want 2", got)
	}
}

func TestDataset_WalkOrderAndSkip(t *testing.T) {
	ds := mustDataset(t, sampleData())

	var visited []string
	err := ds.Walk(p("CA"), func(q types.Path) error {
		visited = append(visited, q.ID())
		if q.Equal(p("CA", "LA")) {
			return SkipSubtree
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v, want nil", err)
	}

	want := []string{
		"CA/LA",
		"CA/Orange",
		"CA/Orange/Irvine",
		"CA/Orange/Irvine/92602",
		"CA/Orange/Irvine/92603",
	}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("Walk() visit order mismatch (-want +got):\n%s", diff)
	}
}

func TestDataset_WalkSkipAll(t *testing.T) {
	ds := mustDataset(t, sampleData())

	count := 0
	err := ds.Walk(nil, func(q types.Path) error {
		count++
		return SkipAll
	})
	if err != nil {
		t.Fatalf("Walk() error = %v, want nil", err)
	}
	if count != 1 {
		t.Errorf("visited %d paths, want 1", count)
	}
}

func TestDataset_WalkLevel(t *testing.T) {
	ds := mustDataset(t, sampleData())

	var cities []string
	if err := ds.WalkLevel(types.LevelCity, func(q types.Path) error {
		cities = append(cities, q[2])
		return nil
	}); err != nil {
		t.Fatalf("WalkLevel() error = %v, want nil", err)
	}
	want := []string{"LosAngeles", "Pasadena", "Irvine", "LasVegas"}
	if diff := cmp.Diff(want, cities); diff != "" {
		t.Errorf("WalkLevel(city) mismatch (-want +got):\n%s", diff)
	}

	if err := ds.WalkLevel(7, func(types.Path) error { return nil }); !errors.Is(err, types.ErrInvalidLevel) {
		t.Errorf("WalkLevel(7) error = %v, want ErrInvalidLevel", err)
	}
}

func TestDataset_ZipsOfLeaf(t *testing.T) {
	ds := mustDataset(t, sampleData())

	leaf := p("CA", "LA", "LosAngeles", "90001")
	got := ds.Zips(leaf)
	if len(got) != 1 || !got[0].Equal(leaf) {
		t.Errorf("Zips(leaf) = %v, want [%v]", got, leaf)
	}
	if got := ds.Zips(p("CA", "LA", "LosAngeles", "00000")); len(got) != 0 {
		t.Errorf("Zips(unknown leaf) = %v, want empty", got)
	}
}
