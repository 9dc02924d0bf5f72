package pipeline

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/aggregator"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/config"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/metacluster"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/parser"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/primary"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/traceback"
)

// PrimaryParams reads the primary clustering parameters from cfg.
func PrimaryParams(cfg *config.Config) primary.Params {
	return primary.Params{
		Dpar:                cfg.Dpar(),
		RedundancyThreshold: cfg.RedundancyThreshold(),
		RhoThreshold:        cfg.RhoThreshold(),
		DeltaThreshold:      cfg.DeltaThreshold(),
		MaxPeaks:            cfg.MaxPeaks(),
	}
}

// AggregatorParams reads the block comparison parameters from cfg.
func AggregatorParams(cfg *config.Config, dupFactor uint32) aggregator.Params {
	return aggregator.Params{
		Producers:      cfg.Producers(),
		Consumers:      cfg.Consumers(),
		BatchSize:      cfg.BatchSize(),
		MatchThreshold: cfg.MatchThreshold(),
		DupFactor:      dupFactor,
	}
}

// DupFactor resolves the duplication factor of a comparison of the member
// files a and b. A configured value of 0 means 2 when both sides name the
// same files and 1 otherwise.
func DupFactor(configured int, a, b []string) uint32 {
	if configured > 0 {
		return uint32(configured)
	}
	if len(b) == 0 || slices.Equal(a, b) {
		return 2
	}
	return 1
}

// ClassifyParams reads the metacluster classifier thresholds from cfg.
func ClassifyParams(cfg *config.Config) metacluster.Params {
	return metacluster.Params{
		DensityCutoff:   cfg.DensityCutoff(),
		PeakMinDistance: cfg.PeakMinDistance(),
		AssignCutoff:    cfg.AssignCutoff(),
		MergeThreshold:  cfg.MergeThreshold(),
	}
}

// Primary clusters the alignment table in input and writes the sorted
// cluster members to output.
func (p *Pipeline) Primary(ctx context.Context, input, output string) (*primary.Result, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("failed to open alignments: %w", err)
	}
	p.Logger.Info().
		Str("input", input).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Msg("Reading alignment table")

	alns, stats, err := parser.ReadAlignmentFile(input, p.Config.SkipRows())
	if err != nil {
		return nil, err
	}
	if stats.Skipped > 0 {
		p.Logger.Warn().
			Int("rows", stats.Rows).
			Int("skipped", stats.Skipped).
			Msg("Skipped malformed alignment rows")
	}

	opts := primary.Options{NumWorkers: p.Config.NumWorkers()}
	if p.Progress != nil {
		opts.OnChunkDone = p.Progress(len(primary.QueryChunks(alns)))
	}

	result, err := primary.Run(ctx, alns, PrimaryParams(p.Config), opts, p.Logger)
	if err != nil {
		return nil, err
	}
	if err := parser.WriteMembers(output, result.Members); err != nil {
		return nil, fmt.Errorf("failed to write cluster members: %w", err)
	}
	p.Logger.Info().
		Str("output", output).
		Str("size", humanize.Bytes(uint64(len(result.Members)*models.ClusterMemberSize))).
		Msg("Wrote primary clusters")
	return result, nil
}

// Distance compares the member files in a with those in b and writes the
// normalized pairs to output.
func (p *Pipeline) Distance(ctx context.Context, a, b []string, dupFactor uint32, output string) (*aggregator.Result, error) {
	setA, err := p.loadSorted("A", a)
	if err != nil {
		return nil, err
	}
	setB, err := p.loadSorted("B", b)
	if err != nil {
		return nil, err
	}

	result, err := aggregator.Run(ctx, setA, setB, AggregatorParams(p.Config, dupFactor), p.Logger)
	if err != nil {
		return nil, err
	}
	if err := writePairs(output, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) loadSorted(name string, files []string) ([]models.ClusterMember, error) {
	members, err := parser.LoadMembers(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}
	sorted, err := aggregator.EnsureSortedBySID(members)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	if sorted {
		p.Logger.Warn().Str("dataset", name).Msg("Members were not sorted by sID, sorted them")
	}
	return members, nil
}

func writePairs(output string, result *aggregator.Result) error {
	pw, err := parser.CreatePairWriter(output)
	if err != nil {
		return err
	}
	for _, pair := range result.Pairs {
		if err := pw.Write(pair); err != nil {
			pw.Close()
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
	}
	return pw.Close()
}

// Classify runs the metacluster classifier over the pair files in inputs
// and writes the label file to output, with the peaks file beside it.
func (p *Pipeline) Classify(ctx context.Context, inputs []string, output string) (*metacluster.Result, error) {
	var tracker *metacluster.MergeTracker
	if path := p.Config.MergeLog(); path != "" {
		var err error
		if tracker, err = metacluster.NewMergeTracker(path); err != nil {
			return nil, err
		}
		defer tracker.Close()
	}

	result, err := metacluster.Run(ctx, metacluster.FileSource{Paths: inputs}, ClassifyParams(p.Config), tracker, p.Logger)
	if err != nil {
		return nil, err
	}
	if err := tracker.Close(); err != nil {
		return nil, err
	}
	if err := metacluster.WriteResult(output, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Traceback projects the labels in labelFile onto the member files in
// inputs and writes the sequence label files into outDir.
func (p *Pipeline) Traceback(ctx context.Context, inputs []string, labelFile, outDir string) (*traceback.Result, error) {
	return traceback.Run(ctx, inputs, labelFile, outDir, p.Config.NumOutputFiles(), p.Logger)
}
