package aggregator

import (
	"runtime"
	"sync/atomic"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/interval"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

// shardMap is the aggregation state owned by one consumer: ID1 -> ID2 -> Ratio.
type shardMap map[uint32]map[uint32]models.Ratio

type shardResult struct {
	rank    int
	ratios  shardMap
	batches int
}

// run is the state shared by the producers and consumers of one block.
type run struct {
	a, b      []models.ClusterMember
	ranges    []WorkRange
	cuts      []uint32
	queues    []*batchQueue
	params    Params
	done      atomic.Int32
	prodRank  atomic.Int32
	consRank  atomic.Int32
	matched   atomic.Int64
	producers int32
}

func matchDistance(x, y *models.ClusterMember) float64 {
	return interval.DistanceExclusive(int(x.SStart), int(x.SEnd), int(y.SStart), int(y.SEnd))
}

// produce merge-joins the producer's ranges of a and b on sID and emits a
// pair for every close cross-cluster match within a shared sID group.
func (r *run) produce() {
	rank := int(r.prodRank.Add(1) - 1)
	wr := r.ranges[rank]
	a := r.a[wr.A.Lo:wr.A.Hi]
	b := r.b[wr.B.Lo:wr.B.Hi]

	batchSize := r.params.BatchSize
	local := make([][]models.MatchedPair, len(r.queues))
	for i := range local {
		local[i] = make([]models.MatchedPair, 0, batchSize)
	}

	var matched int64
	posA, posB := 0, 0
	for posA < len(a) && posB < len(b) {
		for posB < len(b) && b[posB].SID < a[posA].SID {
			posB++
		}
		for posB < len(b) && posA < len(a) && b[posB].SID > a[posA].SID {
			posA++
		}
		if posA >= len(a) || posB >= len(b) || a[posA].SID != b[posB].SID {
			continue
		}

		sid := a[posA].SID
		startA, startB := posA, posB
		for posA < len(a) && a[posA].SID == sid {
			posA++
		}
		for posB < len(b) && b[posB].SID == sid {
			posB++
		}

		for i := startA; i < posA; i++ {
			x := &a[i]
			for j := startB; j < posB; j++ {
				y := &b[j]
				if matchDistance(x, y) > r.params.MatchThreshold {
					continue
				}
				if x.QID == y.QID {
					continue
				}
				pair := models.MatchedPair{
					ID1:        min(x.QID, y.QID),
					ID2:        max(x.QID, y.QID),
					NormFactor: r.params.DupFactor * min(x.QSize, y.QSize),
				}
				shard := ShardFor(r.cuts, pair.ID1)
				local[shard] = append(local[shard], pair)
				matched++
				if len(local[shard]) == batchSize {
					r.queues[shard].Enqueue(local[shard])
					local[shard] = make([]models.MatchedPair, 0, batchSize)
				}
			}
		}
	}

	// pad the tail batches with null pairs so every batch has batchSize entries
	for shard, batch := range local {
		for len(batch) < batchSize {
			batch = append(batch, models.MatchedPair{})
		}
		r.queues[shard].Enqueue(batch)
	}

	r.matched.Add(matched)
	r.done.Add(1)
}

// consume drains one shard's queue into its private map until every
// producer has finished and a full drain found nothing.
func (r *run) consume(results chan<- shardResult) {
	rank := int(r.consRank.Add(1) - 1)
	queue := r.queues[rank]
	ratios := make(shardMap)
	batches := 0

	for {
		finished := r.done.Load() == r.producers
		drained := false
		for {
			batch, ok := queue.TryDequeue()
			if !ok {
				break
			}
			drained = true
			batches++
			for _, p := range batch {
				if p.IsNull() {
					continue
				}
				inner, ok := ratios[p.ID1]
				if !ok {
					inner = make(map[uint32]models.Ratio)
					ratios[p.ID1] = inner
				}
				if ratio, ok := inner[p.ID2]; ok {
					ratio.Num++
					inner[p.ID2] = ratio
				} else {
					inner[p.ID2] = models.Ratio{Num: 1, Denom: p.NormFactor}
				}
			}
		}
		if finished && !drained {
			break
		}
		if !drained {
			runtime.Gosched()
		}
	}

	results <- shardResult{rank: rank, ratios: ratios, batches: batches}
}
