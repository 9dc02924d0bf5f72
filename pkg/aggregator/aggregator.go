// Package aggregator builds the sparse distance graph between primary
// clusters of two sID-sorted member datasets.
//
// Producers own disjoint sID ranges of both datasets and emit matched pairs;
// each pair is routed by its smaller id to one of the consumer shards, whose
// aggregation maps are never shared. Producers hand pairs over in fixed-size
// batches through unbounded queues and signal completion through a shared
// counter that consumers read before every drain.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/radix"
)

var (
	// ErrTooFewConsumers is returned when fewer than two shards are requested.
	ErrTooFewConsumers = errors.New("at least 2 consumers are required")

	// ErrBadParams is returned for non-positive producer or batch counts.
	ErrBadParams = errors.New("invalid aggregator parameters")
)

// Params configures one block comparison.
type Params struct {
	Producers      int
	Consumers      int
	BatchSize      int
	MatchThreshold float64
	// DupFactor multiplies every normalization weight. Use 2 when both
	// datasets are the same, so each pair is seen from both sides.
	DupFactor uint32
}

// DefaultParams returns the standard block comparison settings for a
// comparison of two distinct datasets.
func DefaultParams() Params {
	return Params{
		Producers:      4,
		Consumers:      2,
		BatchSize:      10000,
		MatchThreshold: 0.2,
		DupFactor:      1,
	}
}

// Validate rejects parameters that must not reach the worker pools.
func (p Params) Validate() error {
	if p.Consumers < 2 {
		return fmt.Errorf("got %d: %w", p.Consumers, ErrTooFewConsumers)
	}
	if p.Producers < 1 || p.BatchSize < 1 || p.DupFactor < 1 {
		return fmt.Errorf("producers=%d batch_size=%d dup_factor=%d: %w",
			p.Producers, p.BatchSize, p.DupFactor, ErrBadParams)
	}
	return nil
}

// Statistics summarizes one block comparison.
type Statistics struct {
	MembersA     int   `json:"members_a"`
	MembersB     int   `json:"members_b"`
	MatchedPairs int64 `json:"matched_pairs"`
	Batches      int   `json:"batches"`
	Edges        int   `json:"edges"`
	RuntimeMS    int64 `json:"runtime_ms"`
}

// Result is the output of Run.
type Result struct {
	Pairs      []models.NormalizedPair `json:"pairs"`
	Cuts       []uint32                `json:"cuts"`
	Statistics Statistics              `json:"statistics"`
}

func memberSID(m *models.ClusterMember) uint64 { return uint64(m.SID) }

// EnsureSortedBySID sorts members by SID in place if they are not already,
// and reports whether a sort was needed.
func EnsureSortedBySID(members []models.ClusterMember) (bool, error) {
	if radix.IsSortedBy(members, memberSID) {
		return false, nil
	}
	radix.SortBy(members, 4, memberSID)
	if !radix.IsSortedBy(members, memberSID) {
		return true, fmt.Errorf("members by sID: %w", radix.ErrNotSorted)
	}
	return true, nil
}

// Run compares a and b, both sorted by SID, and returns one normalized pair
// per distinct (ID1, ID2) with ID1 < ID2, ordered by ID1 then ID2.
func Run(ctx context.Context, a, b []models.ClusterMember, p Params, logger zerolog.Logger) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !radix.IsSortedBy(a, memberSID) || !radix.IsSortedBy(b, memberSID) {
		return nil, fmt.Errorf("input datasets: %w", radix.ErrNotSorted)
	}

	startTime := time.Now()
	logger.Info().
		Int("members_a", len(a)).
		Int("members_b", len(b)).
		Int("producers", p.Producers).
		Int("consumers", p.Consumers).
		Uint32("dup_factor", p.DupFactor).
		Msg("Starting distance aggregation")

	r := &run{
		a:         a,
		b:         b,
		ranges:    ProducerRanges(a, b, p.Producers),
		cuts:      ShardCuts(MaxQID(a, b), p.Consumers),
		queues:    make([]*batchQueue, p.Consumers),
		params:    p,
		producers: int32(p.Producers),
	}
	for i := range r.queues {
		r.queues[i] = &batchQueue{}
	}

	logger.Debug().
		Interface("cuts", r.cuts).
		Interface("ranges", r.ranges).
		Msg("Partitioned work")

	results := make(chan shardResult, p.Consumers)
	for i := 0; i < p.Consumers; i++ {
		go r.consume(results)
	}
	for i := 0; i < p.Producers; i++ {
		go r.produce()
	}

	shards := make([]shardMap, p.Consumers)
	stats := Statistics{MembersA: len(a), MembersB: len(b)}
	for i := 0; i < p.Consumers; i++ {
		res := <-results
		shards[res.rank] = res.ratios
		stats.Batches += res.batches
	}
	stats.MatchedPairs = r.matched.Load()

	pairs := emit(shards)
	stats.Edges = len(pairs)
	stats.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Info().
		Int64("matched_pairs", stats.MatchedPairs).
		Int("edges", stats.Edges).
		Int("batches", stats.Batches).
		Int64("runtime_ms", stats.RuntimeMS).
		Msg("Distance aggregation completed")

	return &Result{Pairs: pairs, Cuts: r.cuts, Statistics: stats}, nil
}

// emit flattens the shard maps into normalized pairs. Id 0 is reserved for
// padding and never emitted.
func emit(shards []shardMap) []models.NormalizedPair {
	var pairs []models.NormalizedPair
	for _, ratios := range shards {
		ids1 := make([]uint32, 0, len(ratios))
		for id1 := range ratios {
			if id1 == 0 {
				continue
			}
			ids1 = append(ids1, id1)
		}
		sort.Slice(ids1, func(i, j int) bool { return ids1[i] < ids1[j] })

		for _, id1 := range ids1 {
			inner := ratios[id1]
			ids2 := make([]uint32, 0, len(inner))
			for id2 := range inner {
				ids2 = append(ids2, id2)
			}
			sort.Slice(ids2, func(i, j int) bool { return ids2[i] < ids2[j] })

			for _, id2 := range ids2 {
				pairs = append(pairs, models.NormalizedPair{
					ID1:      id1,
					ID2:      id2,
					Distance: 1 - inner[id2].Float(),
				})
			}
		}
	}
	return pairs
}
