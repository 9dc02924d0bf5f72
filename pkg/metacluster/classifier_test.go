package metacluster

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/parser"
)

func edge(id1, id2 uint32, d float64) models.NormalizedPair {
	return models.NormalizedPair{ID1: id1, ID2: id2, Distance: d}
}

// twoGroups has a star around 10 and a star around 20, joined by one long
// edge.
func twoGroups() SliceSource {
	return SliceSource{
		edge(10, 11, 0.1),
		edge(10, 12, 0.1),
		edge(10, 13, 0.1),
		edge(11, 12, 0.5),
		edge(20, 21, 0.2),
		edge(20, 22, 0.2),
		edge(13, 21, 0.95),
	}
}

func TestRunTwoGroups(t *testing.T) {
	result, err := Run(context.Background(), twoGroups(), DefaultParams(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	g := result.Graph

	wantDensity := map[uint32]uint32{10: 4, 11: 3, 12: 3, 13: 2, 20: 3, 21: 2, 22: 2}
	wantLabel := map[uint32]int32{10: 0, 11: 0, 12: 0, 13: 0, 20: 1, 21: 1, 22: 1}
	for id, want := range wantDensity {
		n, ok := g.Node(id)
		if !ok {
			t.Fatalf("Node %d missing", id)
		}
		if g.Density[n] != want {
			t.Errorf("Node %d: expected density %d, got %d", id, want, g.Density[n])
		}
		if g.Labels[n] != wantLabel[id] {
			t.Errorf("Node %d: expected label %d, got %d", id, wantLabel[id], g.Labels[n])
		}
	}

	n10, _ := g.Node(10)
	n20, _ := g.Node(20)
	n11, _ := g.Node(11)
	if g.MinDistance[n10] != 20 {
		t.Errorf("Expected densest node min distance 20, got %g", g.MinDistance[n10])
	}
	if g.MinDistance[n20] != 1 {
		t.Errorf("Expected untouched min distance 1, got %g", g.MinDistance[n20])
	}
	if g.MinDistance[n11] != 0.1 {
		t.Errorf("Expected min distance 0.1, got %g", g.MinDistance[n11])
	}

	if len(result.Peaks) != 2 || result.Peaks[0] != 10 || result.Peaks[1] != 20 {
		t.Errorf("Expected peaks [10 20], got %v", result.Peaks)
	}
	if result.Statistics.Metaclusters != 2 || result.Statistics.Merges != 0 {
		t.Errorf("Unexpected statistics %+v", result.Statistics)
	}
}

func TestRunNoPeaks(t *testing.T) {
	tests := []struct {
		name string
		src  SliceSource
	}{
		{"no close edge", SliceSource{edge(1, 2, 0.95)}},
		{"no edges", SliceSource{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.src, DefaultParams(), nil, zerolog.Nop())
			if !errors.Is(err, ErrNoPeaks) {
				t.Errorf("Expected ErrNoPeaks, got %v", err)
			}
		})
	}
}

func TestAssignLabelsTieGoesToDenserPeak(t *testing.T) {
	orders := map[string]SliceSource{
		"weaker first":   {edge(1, 9, 0.3), edge(2, 9, 0.3)},
		"stronger first": {edge(2, 9, 0.3), edge(1, 9, 0.3)},
	}
	for name, src := range orders {
		t.Run(name, func(t *testing.T) {
			g, err := NewGraph(src)
			if err != nil {
				t.Fatal(err)
			}
			n1, _ := g.Node(1)
			n2, _ := g.Node(2)
			n9, _ := g.Node(9)
			g.Density[n1] = 3
			g.Density[n2] = 5

			if err := AssignLabels(g, src, []int{n1, n2}, 0.9); err != nil {
				t.Fatal(err)
			}
			if g.Labels[n9] != 1 {
				t.Errorf("Expected label of the denser peak (1), got %d", g.Labels[n9])
			}
			if g.DistToPeak[n9] != 0.3 {
				t.Errorf("Expected distance to peak 0.3, got %g", g.DistToPeak[n9])
			}
		})
	}
}

func TestMergeJoinsCloseMetaclusters(t *testing.T) {
	src := SliceSource{
		edge(1, 3, 0), edge(1, 4, 0),
		edge(2, 3, 0), edge(2, 4, 0),
		edge(5, 6, 0.5),
	}
	g, err := NewGraph(src)
	if err != nil {
		t.Fatal(err)
	}
	// labels by node order: 1,2 -> 0; 3,4 -> 1; 5 -> 2; 6 unassigned
	labels := []int32{0, 0, 1, 1, 2, models.LabelNone}
	copy(g.Labels, labels)
	n1, _ := g.Node(1)
	n3, _ := g.Node(3)
	n5, _ := g.Node(5)

	logPath := filepath.Join(t.TempDir(), "merges.jsonl")
	tracker, err := NewMergeTracker(logPath)
	if err != nil {
		t.Fatal(err)
	}
	merges, err := Merge(g, src, []int{n1, n3, n5}, 0.9, tracker)
	if err != nil {
		t.Fatal(err)
	}
	tracker.Close()

	if merges != 1 {
		t.Errorf("Expected 1 merge, got %d", merges)
	}
	want := []int32{0, 0, 0, 0, 2, models.LabelNone}
	for i := range want {
		if g.Labels[i] != want[i] {
			t.Errorf("Expected labels %v, got %v", want, g.Labels)
			break
		}
	}

	file, err := os.Open(logPath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	lines := 0
	for s := bufio.NewScanner(file); s.Scan(); {
		lines++
	}
	if lines != 1 {
		t.Errorf("Expected 1 logged merge, got %d", lines)
	}
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(3, 4)
	uf.union(1, 4)

	root := uf.find(0)
	for _, x := range []int{1, 3, 4} {
		if uf.find(x) != root {
			t.Errorf("Expected %d in the set of 0", x)
		}
	}
	if uf.find(2) != 2 {
		t.Errorf("Expected 2 to stay alone")
	}
	if root != 0 {
		t.Errorf("Expected the first root to win, got %d", root)
	}
}

func TestFileSourceAndWriteResult(t *testing.T) {
	dir := t.TempDir()
	edges := twoGroups()
	paths := []string{filepath.Join(dir, "d1.bin"), filepath.Join(dir, "d2.bin")}
	for i, part := range [][]models.NormalizedPair{edges[:3], edges[3:]} {
		pw, err := parser.CreatePairWriter(paths[i])
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range part {
			pw.Write(p)
		}
		if err := pw.Close(); err != nil {
			t.Fatal(err)
		}
	}

	result, err := Run(context.Background(), FileSource{Paths: paths}, DefaultParams(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run over files failed: %v", err)
	}

	labelPath := filepath.Join(dir, "labels.txt")
	if err := WriteResult(labelPath, result); err != nil {
		t.Fatal(err)
	}
	labels, err := parser.ReadLabelMap(labelPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 7 || labels[13] != 0 || labels[22] != 1 {
		t.Errorf("Unexpected labels %v", labels)
	}

	peaks, err := os.ReadFile(filepath.Join(dir, PeaksFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(peaks) != "10\n20\n" {
		t.Errorf("Unexpected peaks file %q", peaks)
	}
}

func TestMergeTrackerReportsWriteError(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	tracker, err := NewMergeTracker("/dev/full")
	if err != nil {
		t.Fatal(err)
	}
	tracker.LogMerge(0, 1, 10, 20, 0.5)
	tracker.LogMerge(0, 2, 10, 30, 0.6)

	if tracker.Count() != 2 {
		t.Errorf("Expected 2 merges counted, got %d", tracker.Count())
	}
	if err := tracker.Close(); err == nil {
		t.Error("Expected write error from Close")
	}
	if err := tracker.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
}
