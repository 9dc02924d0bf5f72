// Package interval implements the overlap distance between integer ranges
// used by every clustering stage.
//
// Two variants exist and are not interchangeable. DistanceInclusive treats
// both ends as part of the range (length = end - start + 1) and is used on
// query-axis alignment coordinates. DistanceExclusive uses length =
// end - start and is used on search-axis cluster member coordinates.
package interval

// DistanceInclusive returns (union - intersection) / union for the closed
// ranges [s1,e1] and [s2,e2].
func DistanceInclusive(s1, e1, s2, e2 int) float64 {
	inter := min(e1, e2) - max(s1, s2) + 1
	if inter < 0 {
		inter = 0
	}
	union := max(e1, e2) - min(s1, s2) + 1

	return float64(union-inter) / float64(union)
}

// DistanceExclusive returns (union - intersection) / union where lengths are
// measured as end - start. Two identical empty ranges are at distance 0.
func DistanceExclusive(s1, e1, s2, e2 int) float64 {
	inter := 0
	if hi, lo := min(e1, e2), max(s1, s2); hi > lo {
		inter = hi - lo
	}
	union := max(e1, e2) - min(s1, s2)
	if union == 0 {
		return 0
	}

	return float64(union-inter) / float64(union)
}
