// Package primary implements density-peak clustering of the alignments of
// one query, and its parallel application over a whole alignment table.
package primary

import (
	"errors"
	"math"
	"sort"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/interval"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

// ErrEmptyQuery is returned when there is nothing to cluster.
var ErrEmptyQuery = errors.New("no alignments for query")

// initialDelta is the delta of a member with no higher-density competitor.
const initialDelta = 1000.0

// Params holds the density-peak thresholds for one query.
type Params struct {
	Dpar                float64
	RedundancyThreshold float64
	RhoThreshold        float64
	DeltaThreshold      float64
	MaxPeaks            int
}

// DefaultParams returns the standard primary clustering thresholds.
func DefaultParams() Params {
	return Params{
		Dpar:                0.2,
		RedundancyThreshold: 0.2,
		RhoThreshold:        10.0,
		DeltaThreshold:      0.4,
		MaxPeaks:            10,
	}
}

func queryDistance(a, b *models.Alignment) float64 {
	return interval.DistanceInclusive(int(a.QueryStart), int(a.QueryEnd), int(b.QueryStart), int(b.QueryEnd))
}

// NonRedundant returns the indices of alns that survive the redundancy
// filter, ordered by search id. Within a run of equal search id a later
// alignment is dropped when it lies closer than threshold to an earlier one
// that was kept.
func NonRedundant(alns []models.Alignment, threshold float64) []int {
	order := make([]int, len(alns))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return alns[order[i]].SearchID < alns[order[j]].SearchID
	})

	valid := make([]bool, len(alns))
	for i := range valid {
		valid[i] = true
	}
	for i := 0; i < len(order); i++ {
		if !valid[order[i]] {
			continue
		}
		a := &alns[order[i]]
		for j := i + 1; j < len(order); j++ {
			b := &alns[order[j]]
			if a.SearchID != b.SearchID {
				break
			}
			if queryDistance(a, b) < threshold {
				valid[order[j]] = false
			}
		}
	}

	kept := make([]int, 0, len(order))
	for _, idx := range order {
		if valid[idx] {
			kept = append(kept, idx)
		}
	}
	return kept
}

// Density computes rho for alns[valid[i]]: a base of 1 plus a deterministic
// tie-breaking offset, plus one for every other member closer than dpar.
func Density(alns []models.Alignment, valid []int, dpar float64) []float64 {
	rho := make([]float64, len(valid))
	for i, idx := range valid {
		rho[i] = 1.0 + densityNoise(&alns[idx])
	}

	for i := 0; i < len(valid); i++ {
		a := &alns[valid[i]]
		for j := i + 1; j < len(valid); j++ {
			if queryDistance(a, &alns[valid[j]]) < dpar {
				rho[i]++
				rho[j]++
			}
		}
	}
	return rho
}

// Delta computes, for every member, the distance to the nearest member of
// higher density. The densest member keeps the initial delta of 1000.
func Delta(alns []models.Alignment, valid []int, rho []float64) []float64 {
	delta := make([]float64, len(valid))
	for i := range delta {
		delta[i] = initialDelta
	}

	order := make([]int, len(valid))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return rho[order[i]] > rho[order[j]]
	})

	for i := 1; i < len(order); i++ {
		a := &alns[valid[order[i]]]
		for j := 0; j < i; j++ {
			b := &alns[valid[order[j]]]
			d := queryDistance(a, b) + deltaNoise(a, b)
			if d < delta[order[i]] {
				delta[order[i]] = d
			}
		}
	}
	return delta
}

// PickPeaks returns the positions with rho > rhoThreshold and delta >
// deltaThreshold. When more than maxPeaks qualify, the maxPeaks with the
// largest rho*delta are kept; equal products keep their positional order.
func PickPeaks(rho, delta []float64, rhoThreshold, deltaThreshold float64, maxPeaks int) []int {
	var peaks []int
	for i := range rho {
		if rho[i] > rhoThreshold && delta[i] > deltaThreshold {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) <= maxPeaks {
		return peaks
	}

	sort.SliceStable(peaks, func(i, j int) bool {
		return rho[peaks[i]]*delta[peaks[i]] > rho[peaks[j]]*delta[peaks[j]]
	})
	return peaks[:maxPeaks]
}

// AssignLabels gives peak k the label k and every other member the label of
// its nearest peak closer than dpar, or LabelUnassigned.
func AssignLabels(alns []models.Alignment, valid []int, peaks []int, dpar float64) []int {
	labels := make([]int, len(valid))
	for i := range labels {
		labels[i] = int(models.LabelUnassigned)
	}
	for k, p := range peaks {
		labels[p] = k
	}

	for i := range valid {
		if labels[i] != int(models.LabelUnassigned) {
			continue
		}
		a := &alns[valid[i]]
		best := math.MaxFloat64
		for k, p := range peaks {
			d := queryDistance(a, &alns[valid[p]])
			if d >= dpar {
				continue
			}
			if d < best {
				best = d
				labels[i] = k
			}
		}
	}
	return labels
}

// ClusterQuery runs the full density-peak pass over the alignments of one
// query. The returned slice is parallel to alns; filtered and unassigned
// alignments carry LabelUnassigned.
func ClusterQuery(alns []models.Alignment, p Params) ([]int, error) {
	if len(alns) == 0 {
		return nil, ErrEmptyQuery
	}

	valid := NonRedundant(alns, p.RedundancyThreshold)
	rho := Density(alns, valid, p.Dpar)
	delta := Delta(alns, valid, rho)
	peaks := PickPeaks(rho, delta, p.RhoThreshold, p.DeltaThreshold, p.MaxPeaks)
	local := AssignLabels(alns, valid, peaks, p.Dpar)

	labels := make([]int, len(alns))
	for i := range labels {
		labels[i] = int(models.LabelUnassigned)
	}
	for i, idx := range valid {
		labels[idx] = local[i]
	}
	return labels, nil
}
