// Package metacluster groups primary clusters into metaclusters with a
// second density-peak pass over the sparse distance graph, followed by a
// union-find merge of metaclusters that are close on average.
//
// Every step is a full pass over an EdgeSource, so the graph never needs to
// be held in memory.
package metacluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

// ErrNoPeaks is returned when no node qualifies as a peak.
var ErrNoPeaks = errors.New("no peaks found")

const (
	// topMinDistance is given to the densest node so it always qualifies.
	topMinDistance = 20.0
	// unreachedDistance exceeds any edge distance.
	unreachedDistance = 10000.0
)

// Params holds the classifier thresholds.
type Params struct {
	DensityCutoff   float64
	PeakMinDistance float64
	AssignCutoff    float64
	MergeThreshold  float64
}

// DefaultParams returns the standard classifier thresholds.
func DefaultParams() Params {
	return Params{
		DensityCutoff:   0.9,
		PeakMinDistance: 0.99,
		AssignCutoff:    0.9,
		MergeThreshold:  0.9,
	}
}

// ComputeDensity adds one to both endpoints of every edge shorter than
// cutoff. Densities start at 1.
func ComputeDensity(g *Graph, src EdgeSource, cutoff float64) error {
	return src.Each(func(p models.NormalizedPair) {
		if p.Distance < cutoff {
			n1, n2 := g.nodes(p)
			g.Density[n1]++
			g.Density[n2]++
		}
	})
}

// DensityOrder returns node indices sorted by descending density, keeping
// index order among equal densities.
func DensityOrder(g *Graph) []int {
	order := make([]int, g.NumNodes)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return g.Density[order[i]] > g.Density[order[j]]
	})
	return order
}

// ComputeMinDistance sets, for every node, the shortest edge to a node of
// higher density. Nodes without such an edge keep 1; the densest node gets
// 20.
func ComputeMinDistance(g *Graph, src EdgeSource) error {
	if g.NumNodes > 0 {
		g.MinDistance[DensityOrder(g)[0]] = topMinDistance
	}
	return src.Each(func(p models.NormalizedPair) {
		n1, n2 := g.nodes(p)
		if g.Density[n1] == g.Density[n2] {
			return
		}
		low := n1
		if g.Density[n2] < g.Density[n1] {
			low = n2
		}
		if p.Distance < g.MinDistance[low] {
			g.MinDistance[low] = p.Distance
		}
	})
}

// FindPeaks returns, in ascending node order, the nodes with density above
// 1 and no higher-density neighbor closer than minDistance.
func FindPeaks(g *Graph, minDistance float64) ([]int, error) {
	var peaks []int
	for i := 0; i < g.NumNodes; i++ {
		if g.Density[i] > 1 && g.MinDistance[i] >= minDistance {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) == 0 {
		return nil, ErrNoPeaks
	}
	return peaks, nil
}

// AssignLabels labels peak k with k, then lets every node adjacent to
// exactly one peak through an edge no longer than cutoff take the label of
// its closest such peak. Equal distances go to the denser peak.
func AssignLabels(g *Graph, src EdgeSource, peaks []int, cutoff float64) error {
	peakLabel := make([]int32, g.NumNodes)
	for i := range peakLabel {
		peakLabel[i] = -1
	}
	for k, node := range peaks {
		peakLabel[node] = int32(k)
		g.Labels[node] = int32(k)
	}

	return src.Each(func(p models.NormalizedPair) {
		if p.Distance > cutoff {
			return
		}
		n1, n2 := g.nodes(p)
		peak, other := n1, n2
		switch {
		case peakLabel[n1] >= 0 && peakLabel[n2] < 0:
		case peakLabel[n2] >= 0 && peakLabel[n1] < 0:
			peak, other = n2, n1
		default:
			return
		}

		if p.Distance < g.DistToPeak[other] {
			g.DistToPeak[other] = p.Distance
			g.Labels[other] = peakLabel[peak]
		} else if p.Distance == g.DistToPeak[other] {
			current := peaks[g.Labels[other]]
			if g.Density[current] < g.Density[peak] {
				g.Labels[other] = peakLabel[peak]
			}
		}
	})
}

// Populations counts nodes per label over the numPeaks metaclusters.
func Populations(g *Graph, numPeaks int) []int {
	counts := make([]int, numPeaks)
	for _, l := range g.Labels {
		if l >= 0 {
			counts[l]++
		}
	}
	return counts
}

// Merge accumulates 1-distance over every edge joining two different
// metaclusters, averages it over the product of their populations, and
// unions every pair whose averaged distance falls below threshold. Node
// labels are then repainted with their set root. It returns the number of
// unions performed.
func Merge(g *Graph, src EdgeSource, peaks []int, threshold float64, tracker *MergeTracker) (int, error) {
	k := len(peaks)
	counts := Populations(g, k)

	acc := mat.NewSymDense(k, nil)
	err := src.Each(func(p models.NormalizedPair) {
		n1, n2 := g.nodes(p)
		l1, l2 := int(g.Labels[n1]), int(g.Labels[n2])
		if l1 < 0 || l2 < 0 || l1 == l2 {
			return
		}
		acc.SetSym(l1, l2, acc.At(l1, l2)+(1-p.Distance))
	})
	if err != nil {
		return 0, err
	}

	uf := newUnionFind(k)
	merges := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			d := 1 - acc.At(i, j)/float64(counts[i]*counts[j])
			if d >= threshold {
				continue
			}
			into, from := uf.find(i), uf.find(j)
			if into == from {
				continue
			}
			uf.union(i, j)
			merges++
			tracker.LogMerge(into, from, g.IDs[peaks[into]], g.IDs[peaks[from]], d)
		}
	}

	for i, l := range g.Labels {
		if l >= 0 {
			g.Labels[i] = int32(uf.find(int(l)))
		}
	}
	return merges, nil
}

// Statistics summarizes one classification.
type Statistics struct {
	Nodes          int     `json:"nodes"`
	Edges          int     `json:"edges"`
	Peaks          int     `json:"peaks"`
	Merges         int     `json:"merges"`
	Metaclusters   int     `json:"metaclusters"`
	Unassigned     int     `json:"unassigned"`
	MeanPopulation float64 `json:"mean_population"`
	StdPopulation  float64 `json:"std_population"`
	RuntimeMS      int64   `json:"runtime_ms"`
}

// Result is the output of Run.
type Result struct {
	Graph      *Graph     `json:"graph"`
	Peaks      []uint32   `json:"peaks"` // original ids of the peaks
	Statistics Statistics `json:"statistics"`
}

// Run classifies every node of the graph described by src. tracker may be
// nil.
func Run(ctx context.Context, src EdgeSource, p Params, tracker *MergeTracker, logger zerolog.Logger) (*Result, error) {
	startTime := time.Now()

	g, err := NewGraph(src)
	if err != nil {
		return nil, fmt.Errorf("failed to build node dictionary: %w", err)
	}
	if g.NumNodes == 0 {
		return nil, fmt.Errorf("empty distance graph: %w", ErrNoPeaks)
	}

	edges := g.NumEdges
	logger.Info().
		Int("nodes", g.NumNodes).
		Int("edges", edges).
		Msg("Starting metacluster classification")

	if err := ComputeDensity(g, src, p.DensityCutoff); err != nil {
		return nil, fmt.Errorf("density pass failed: %w", err)
	}
	if err := ComputeMinDistance(g, src); err != nil {
		return nil, fmt.Errorf("min distance pass failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	peaks, err := FindPeaks(g, p.PeakMinDistance)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("peaks", len(peaks)).Msg("Found peaks")

	if err := AssignLabels(g, src, peaks, p.AssignCutoff); err != nil {
		return nil, fmt.Errorf("label pass failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merges, err := Merge(g, src, peaks, p.MergeThreshold, tracker)
	if err != nil {
		return nil, fmt.Errorf("merge pass failed: %w", err)
	}

	result := &Result{
		Graph: g,
		Peaks: make([]uint32, len(peaks)),
		Statistics: Statistics{
			Nodes:  g.NumNodes,
			Edges:  edges,
			Peaks:  len(peaks),
			Merges: merges,
		},
	}
	for i, node := range peaks {
		result.Peaks[i] = g.IDs[node]
	}

	populations := make(map[int32]float64)
	for _, l := range g.Labels {
		if l < 0 {
			result.Statistics.Unassigned++
			continue
		}
		populations[l]++
	}
	sizes := make([]float64, 0, len(populations))
	for _, n := range populations {
		sizes = append(sizes, n)
	}
	result.Statistics.Metaclusters = len(sizes)
	switch {
	case len(sizes) > 1:
		result.Statistics.MeanPopulation, result.Statistics.StdPopulation = stat.MeanStdDev(sizes, nil)
	case len(sizes) == 1:
		result.Statistics.MeanPopulation = sizes[0]
	}
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Info().
		Int("metaclusters", result.Statistics.Metaclusters).
		Int("merges", merges).
		Int("unassigned", result.Statistics.Unassigned).
		Float64("mean_population", result.Statistics.MeanPopulation).
		Float64("std_population", result.Statistics.StdPopulation).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Metacluster classification completed")

	return result, nil
}
