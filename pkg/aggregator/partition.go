package aggregator

import (
	"math"
	"sort"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

// ShardCuts returns consumers-1 increasing qID cut points. Shard i receives
// pairs with cuts[i-1] <= ID1 < cuts[i]; the last shard takes the rest.
// Pair density is assumed to grow quadratically towards low ids, so the
// shards get roughly equal expected work rather than equal id ranges.
func ShardCuts(maxQID uint32, consumers int) []uint32 {
	cuts := make([]uint32, consumers-1)
	if maxQID == 0 {
		return cuts
	}
	m := float64(maxQID)
	c := float64(consumers)
	for i := 1; i < consumers; i++ {
		cuts[i-1] = uint32(m * (1 - math.Sqrt(1-float64(i)*(m-1)/(m*c))))
	}
	return cuts
}

// ShardFor returns the shard owning qID1.
func ShardFor(cuts []uint32, qID1 uint32) int {
	for i, cut := range cuts {
		if qID1 < cut {
			return i
		}
	}
	return len(cuts)
}

// MaxQID returns the largest composite id over the given datasets.
func MaxQID(sets ...[]models.ClusterMember) uint32 {
	var maxQID uint32
	for _, set := range sets {
		for i := range set {
			if set[i].QID > maxQID {
				maxQID = set[i].QID
			}
		}
	}
	return maxQID
}

// Span is a half-open index range.
type Span struct {
	Lo, Hi int
}

// Len returns the number of indices in s.
func (s Span) Len() int { return s.Hi - s.Lo }

// WorkRange is the slice of both datasets owned by one producer.
type WorkRange struct {
	A, B Span
}

func lowerBoundSID(set []models.ClusterMember, sid uint32) int {
	return sort.Search(len(set), func(i int) bool { return set[i].SID >= sid })
}

// ProducerRanges splits a and b, both sorted by SID, into producers
// contiguous ranges. Ranges start near-equal in size on a, with the
// remainder spread over the first ranges, then every boundary moves back to
// the first record of its sID in both datasets. No sID group is split
// across two producers.
func ProducerRanges(a, b []models.ClusterMember, producers int) []WorkRange {
	bounds := make([][2]int, producers+1)
	size, rem := len(a)/producers, len(a)%producers

	uniform := 0
	for i := 1; i < producers; i++ {
		uniform += size
		if i <= rem {
			uniform++
		}
		if uniform >= len(a) {
			bounds[i] = [2]int{len(a), len(b)}
			continue
		}
		sid := a[uniform].SID
		bounds[i] = [2]int{lowerBoundSID(a, sid), lowerBoundSID(b, sid)}
	}
	bounds[producers] = [2]int{len(a), len(b)}

	ranges := make([]WorkRange, producers)
	for i := range ranges {
		ranges[i] = WorkRange{
			A: Span{Lo: bounds[i][0], Hi: bounds[i+1][0]},
			B: Span{Lo: bounds[i][1], Hi: bounds[i+1][1]},
		}
	}
	return ranges
}
