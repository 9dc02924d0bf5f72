package interval

import (
	"math"
	"testing"
)

func TestDistanceInclusive(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 int
		want           float64
	}{
		{"identical", 50, 100, 50, 100, 0},
		{"disjoint", 1, 10, 21, 30, 1},
		{"adjacent", 1, 10, 11, 20, 1},
		{"nested", 1, 100, 26, 75, 0.5},
		{"shifted", 50, 100, 55, 105, 10.0 / 56.0},
		{"single shared residue", 1, 10, 10, 19, 18.0 / 19.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceInclusive(tt.s1, tt.e1, tt.s2, tt.e2)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
			if rev := DistanceInclusive(tt.s2, tt.e2, tt.s1, tt.e1); rev != got {
				t.Errorf("Not symmetric: %f vs %f", got, rev)
			}
		})
	}
}

func TestDistanceExclusive(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 int
		want           float64
	}{
		{"identical", 10, 20, 10, 20, 0},
		{"identical empty", 5, 5, 5, 5, 0},
		{"adjacent", 1, 10, 10, 20, 1},
		{"nested", 0, 100, 25, 75, 0.5},
		{"shifted", 50, 100, 55, 105, 10.0 / 55.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceExclusive(tt.s1, tt.e1, tt.s2, tt.e2)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
			if rev := DistanceExclusive(tt.s2, tt.e2, tt.s1, tt.e1); rev != got {
				t.Errorf("Not symmetric: %f vs %f", got, rev)
			}
		})
	}
}

func TestDistanceRange(t *testing.T) {
	for s1 := 1; s1 < 30; s1 += 3 {
		for e1 := s1; e1 < 40; e1 += 4 {
			for s2 := 1; s2 < 30; s2 += 5 {
				for e2 := s2; e2 < 40; e2 += 2 {
					for _, d := range []float64{
						DistanceInclusive(s1, e1, s2, e2),
						DistanceExclusive(s1, e1, s2, e2),
					} {
						if d < 0 || d > 1 || math.IsNaN(d) {
							t.Fatalf("distance out of range for [%d,%d] [%d,%d]: %f", s1, e1, s2, e2, d)
						}
					}
				}
			}
		}
	}
}
