package aggregator

import (
	"sync"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

// batchQueue is an unbounded, mutex-guarded multi-producer queue of
// fixed-size batches. Enqueue never blocks on capacity.
type batchQueue struct {
	mu      sync.Mutex
	batches [][]models.MatchedPair
}

func (q *batchQueue) Enqueue(batch []models.MatchedPair) {
	q.mu.Lock()
	q.batches = append(q.batches, batch)
	q.mu.Unlock()
}

// TryDequeue pops the oldest batch, if any.
func (q *batchQueue) TryDequeue() ([]models.MatchedPair, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 {
		return nil, false
	}
	batch := q.batches[0]
	q.batches[0] = nil
	q.batches = q.batches[1:]
	return batch, true
}
