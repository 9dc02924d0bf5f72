package primary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/radix"
)

// Chunk is the half-open index range of one query's alignments.
type Chunk struct {
	Start int
	End   int
}

// QueryChunks splits alns into runs of equal QueryID.
func QueryChunks(alns []models.Alignment) []Chunk {
	var chunks []Chunk
	start := 0
	for i := 1; i <= len(alns); i++ {
		if i == len(alns) || alns[i].QueryID != alns[start].QueryID {
			chunks = append(chunks, Chunk{Start: start, End: i})
			start = i
		}
	}
	return chunks
}

// Options controls how a table is processed.
type Options struct {
	NumWorkers int
	// OnChunkDone, if set, is called once per finished query from worker
	// goroutines.
	OnChunkDone func()
}

// ProcessByQuery clusters every query run of alns concurrently and returns
// one label per alignment.
func ProcessByQuery(ctx context.Context, alns []models.Alignment, p Params, opts Options) ([]int, error) {
	if len(alns) == 0 {
		return nil, fmt.Errorf("alignment table is empty: %w", ErrEmptyQuery)
	}
	numWorkers := opts.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	chunks := QueryChunks(alns)
	labels := make([]int, len(alns))

	chunkChannel := make(chan Chunk)
	errChannel := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunkChannel {
				out, err := ClusterQuery(alns[c.Start:c.End], p)
				if err != nil {
					errChannel <- fmt.Errorf("query %d: %w", alns[c.Start].QueryID, err)
					return
				}
				// chunks are disjoint, so workers never write the same cell
				copy(labels[c.Start:c.End], out)
				if opts.OnChunkDone != nil {
					opts.OnChunkDone()
				}
			}
		}()
	}

	var ctxErr error
feed:
	for _, c := range chunks {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case chunkChannel <- c:
		case err := <-errChannel:
			ctxErr = err
			break feed
		}
	}
	close(chunkChannel)
	wg.Wait()
	close(errChannel)

	if ctxErr != nil {
		return nil, ctxErr
	}
	if err, ok := <-errChannel; ok {
		return nil, err
	}
	return labels, nil
}

// BuildMembers turns labelled alignments into compact cluster members,
// skipping unassigned ones. QSize is left zero.
func BuildMembers(alns []models.Alignment, labels []int) ([]models.ClusterMember, error) {
	members := make([]models.ClusterMember, 0, len(alns))
	for i := range alns {
		if labels[i] < 0 {
			continue
		}
		m, err := models.NewClusterMember(alns[i], labels[i])
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func memberQID(m *models.ClusterMember) uint64 { return uint64(m.QID) }
func memberSID(m *models.ClusterMember) uint64 { return uint64(m.SID) }

// ComputeClusterSize sets QSize of every member to the length of its run of
// equal QID. members must be sorted by QID.
func ComputeClusterSize(members []models.ClusterMember) {
	for lo := 0; lo < len(members); {
		hi := lo + 1
		for hi < len(members) && members[hi].QID == members[lo].QID {
			hi++
		}
		for i := lo; i < hi; i++ {
			members[i].QSize = uint32(hi - lo)
		}
		lo = hi
	}
}

// FinalizeMembers groups members by QID to fill QSize, then reorders them
// stably by SID, the order every later stage expects.
func FinalizeMembers(members []models.ClusterMember) error {
	radix.SortBy(members, 4, memberQID)
	if !radix.IsSortedBy(members, memberQID) {
		return fmt.Errorf("members by qID: %w", radix.ErrNotSorted)
	}
	ComputeClusterSize(members)

	radix.SortBy(members, 4, memberSID)
	if !radix.IsSortedBy(members, memberSID) {
		return fmt.Errorf("members by sID: %w", radix.ErrNotSorted)
	}
	return nil
}

// Statistics summarizes one primary clustering run.
type Statistics struct {
	Queries    int   `json:"queries"`
	Alignments int   `json:"alignments"`
	Members    int   `json:"members"`
	Clusters   int   `json:"clusters"`
	RuntimeMS  int64 `json:"runtime_ms"`
}

// Result is the output of Run.
type Result struct {
	Members    []models.ClusterMember `json:"members"`
	Statistics Statistics             `json:"statistics"`
}

// Run clusters a whole alignment table and returns its compact members
// sorted by SID with QSize filled.
func Run(ctx context.Context, alns []models.Alignment, p Params, opts Options, logger zerolog.Logger) (*Result, error) {
	startTime := time.Now()
	chunks := QueryChunks(alns)

	logger.Info().
		Int("alignments", len(alns)).
		Int("queries", len(chunks)).
		Int("workers", opts.NumWorkers).
		Msg("Starting primary clustering")

	labels, err := ProcessByQuery(ctx, alns, p, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster queries: %w", err)
	}

	members, err := BuildMembers(alns, labels)
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster members: %w", err)
	}
	if err := FinalizeMembers(members); err != nil {
		return nil, err
	}

	clusters := make(map[uint32]struct{})
	for i := range members {
		clusters[members[i].QID] = struct{}{}
	}

	result := &Result{
		Members: members,
		Statistics: Statistics{
			Queries:    len(chunks),
			Alignments: len(alns),
			Members:    len(members),
			Clusters:   len(clusters),
			RuntimeMS:  time.Since(startTime).Milliseconds(),
		},
	}

	logger.Info().
		Int("members", result.Statistics.Members).
		Int("clusters", result.Statistics.Clusters).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Primary clustering completed")

	return result, nil
}
