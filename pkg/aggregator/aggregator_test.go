package aggregator

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/interval"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/radix"
)

func selfParams(producers, consumers, batch int) Params {
	p := DefaultParams()
	p.Producers = producers
	p.Consumers = consumers
	p.BatchSize = batch
	p.DupFactor = 2
	return p
}

func TestRunSingleMemberIsEmpty(t *testing.T) {
	set := []models.ClusterMember{{QID: 1, QSize: 1, SID: 5, SStart: 10, SEnd: 20}}

	result, err := Run(context.Background(), set, set, selfParams(1, 2, 16), zerolog.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Pairs) != 0 {
		t.Errorf("Expected no pairs, got %v", result.Pairs)
	}
}

func TestRunSelfComparison(t *testing.T) {
	set := []models.ClusterMember{
		{QID: 100, QSize: 1, SID: 5, SStart: 10, SEnd: 20},
		{QID: 200, QSize: 1, SID: 5, SStart: 10, SEnd: 20},
		{QID: 300, QSize: 1, SID: 5, SStart: 90, SEnd: 120},
	}

	result, err := Run(context.Background(), set, set, selfParams(2, 2, 4), zerolog.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("Expected one pair, got %v", result.Pairs)
	}
	want := models.NormalizedPair{ID1: 100, ID2: 200, Distance: 0}
	if result.Pairs[0] != want {
		t.Errorf("Expected %+v, got %+v", want, result.Pairs[0])
	}
	if result.Statistics.MatchedPairs != 2 {
		t.Errorf("Expected 2 matched pairs, got %d", result.Statistics.MatchedPairs)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	sorted := []models.ClusterMember{{QID: 1, QSize: 1, SID: 1}, {QID: 2, QSize: 1, SID: 2}}
	unsorted := []models.ClusterMember{{QID: 1, QSize: 1, SID: 2}, {QID: 2, QSize: 1, SID: 1}}

	tests := []struct {
		name string
		a    []models.ClusterMember
		p    Params
		want error
	}{
		{"one consumer", sorted, selfParams(1, 1, 8), ErrTooFewConsumers},
		{"no producers", sorted, selfParams(0, 2, 8), ErrBadParams},
		{"empty batch", sorted, selfParams(1, 2, 0), ErrBadParams},
		{"unsorted", unsorted, selfParams(1, 2, 8), radix.ErrNotSorted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.a, sorted, tt.p, zerolog.Nop())
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEnsureSortedBySID(t *testing.T) {
	members := []models.ClusterMember{{QID: 1, SID: 9}, {QID: 2, SID: 3}, {QID: 3, SID: 3}}
	sorted, err := EnsureSortedBySID(members)
	if err != nil {
		t.Fatal(err)
	}
	if !sorted {
		t.Error("Expected a sort to be reported")
	}
	if members[0].QID != 2 || members[1].QID != 3 || members[2].QID != 1 {
		t.Errorf("Unexpected order %v", members)
	}

	again, _ := EnsureSortedBySID(members)
	if again {
		t.Error("Expected no sort on sorted input")
	}
}

func randomMembers(rng *rand.Rand, n int) []models.ClusterMember {
	members := make([]models.ClusterMember, n)
	for i := range members {
		start := uint16(rng.Intn(100))
		qid := uint32(100 + rng.Intn(40))
		members[i] = models.ClusterMember{
			QID:    qid,
			QSize:  1 + qid%5, // size is a property of the cluster
			SID:    uint32(rng.Intn(30)),
			SStart: start,
			SEnd:   start + uint16(20+rng.Intn(5)),
		}
	}
	radix.SortBy(members, 4, memberSID)
	return members
}

// reference aggregates every cross pair with a single map, no workers.
func reference(a, b []models.ClusterMember, p Params) map[[2]uint32]float64 {
	ratios := map[[2]uint32]models.Ratio{}
	for i := range a {
		for j := range b {
			x, y := &a[i], &b[j]
			if x.SID != y.SID || x.QID == y.QID {
				continue
			}
			if interval.DistanceExclusive(int(x.SStart), int(x.SEnd), int(y.SStart), int(y.SEnd)) > p.MatchThreshold {
				continue
			}
			key := [2]uint32{min(x.QID, y.QID), max(x.QID, y.QID)}
			if r, ok := ratios[key]; ok {
				r.Num++
				ratios[key] = r
			} else {
				ratios[key] = models.Ratio{Num: 1, Denom: p.DupFactor * min(x.QSize, y.QSize)}
			}
		}
	}
	out := map[[2]uint32]float64{}
	for k, r := range ratios {
		out[k] = 1 - r.Float()
	}
	return out
}

func TestRunMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randomMembers(rng, 400)
	b := randomMembers(rng, 300)

	tests := []struct {
		name string
		p    Params
	}{
		{"serial", Params{Producers: 1, Consumers: 2, BatchSize: 10000, MatchThreshold: 0.2, DupFactor: 1}},
		{"parallel", Params{Producers: 7, Consumers: 4, BatchSize: 5, MatchThreshold: 0.2, DupFactor: 1}},
		{"more producers than groups", Params{Producers: 64, Consumers: 3, BatchSize: 1, MatchThreshold: 0.2, DupFactor: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := reference(a, b, tt.p)
			result, err := Run(context.Background(), a, b, tt.p, zerolog.Nop())
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if len(result.Pairs) != len(want) {
				t.Fatalf("Expected %d pairs, got %d", len(want), len(result.Pairs))
			}
			for i, pair := range result.Pairs {
				if i > 0 {
					prev := result.Pairs[i-1]
					if prev.ID1 > pair.ID1 || (prev.ID1 == pair.ID1 && prev.ID2 >= pair.ID2) {
						t.Fatalf("Pairs not ordered at %d: %+v then %+v", i, prev, pair)
					}
				}
				d, ok := want[[2]uint32{pair.ID1, pair.ID2}]
				if !ok {
					t.Errorf("Unexpected pair %+v", pair)
					continue
				}
				if d != pair.Distance {
					t.Errorf("Pair %d-%d: expected distance %g, got %g", pair.ID1, pair.ID2, d, pair.Distance)
				}
			}
		})
	}
}
