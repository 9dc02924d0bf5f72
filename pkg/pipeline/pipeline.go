// Package pipeline wires the clustering stages together: primary clustering
// per query, self comparison of the primary clusters, metacluster
// classification and label traceback.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/aggregator"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/config"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/metacluster"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/primary"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/traceback"
)

// Output file names inside the run directory.
const (
	MembersFile   = "primary_clusters.bin"
	DistancesFile = "distances.bin"
	LabelsFile    = "metacluster_labels.txt"
	SummaryFile   = "summary.txt"
)

// Pipeline runs single stages or the whole chain with one configuration.
type Pipeline struct {
	Config *config.Config
	Logger zerolog.Logger

	// Progress, if set, is called with the number of queries before primary
	// clustering starts and returns the per-query callback.
	Progress func(total int) func()
}

// PipelineResult collects the statistics of every stage of one run.
type PipelineResult struct {
	RunID     string                 `json:"run_id"`
	OutputDir string                 `json:"output_dir"`
	Primary   primary.Statistics     `json:"primary"`
	Distance  aggregator.Statistics  `json:"distance"`
	Classify  metacluster.Statistics `json:"classify"`
	Traceback traceback.Statistics   `json:"traceback"`
	Files     []string               `json:"files"`

	TotalRuntimeMS int64 `json:"total_runtime_ms"`
}

// NewPipeline creates a pipeline over cfg.
func NewPipeline(cfg *config.Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{Config: cfg, Logger: logger}
}

// Run executes every stage on the alignment table in input, writing all
// intermediate and final files into outDir. The primary clusters are
// compared with themselves, so the duplication factor is 2.
func (p *Pipeline) Run(ctx context.Context, input, outDir string) (*PipelineResult, error) {
	startTime := time.Now()

	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.New().String()
	stages := *p
	stages.Logger = p.Logger.With().Str("run_id", runID).Logger()
	logger := stages.Logger

	logger.Info().
		Str("input", input).
		Str("output", outDir).
		Msg("Starting pipeline")

	membersPath := filepath.Join(outDir, MembersFile)
	primaryResult, err := stages.Primary(ctx, input, membersPath)
	if err != nil {
		return nil, fmt.Errorf("primary clustering failed: %w", err)
	}

	distancesPath := filepath.Join(outDir, DistancesFile)
	distanceResult, err := stages.Distance(ctx, []string{membersPath}, []string{membersPath}, 2, distancesPath)
	if err != nil {
		return nil, fmt.Errorf("distance aggregation failed: %w", err)
	}

	labelsPath := filepath.Join(outDir, LabelsFile)
	classifyResult, err := stages.Classify(ctx, []string{distancesPath}, labelsPath)
	if err != nil {
		return nil, fmt.Errorf("metacluster classification failed: %w", err)
	}

	tracebackResult, err := stages.Traceback(ctx, []string{membersPath}, labelsPath, outDir)
	if err != nil {
		return nil, fmt.Errorf("traceback failed: %w", err)
	}

	result := &PipelineResult{
		RunID:          runID,
		OutputDir:      outDir,
		Primary:        primaryResult.Statistics,
		Distance:       distanceResult.Statistics,
		Classify:       classifyResult.Statistics,
		Traceback:      tracebackResult.Statistics,
		Files:          tracebackResult.Files,
		TotalRuntimeMS: time.Since(startTime).Milliseconds(),
	}

	if err := writePipelineSummary(result, filepath.Join(outDir, SummaryFile)); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}
	metrics := newRunMetrics(runID)
	metrics.observe(result)
	if err := metrics.write(filepath.Join(outDir, MetricsFile)); err != nil {
		return nil, fmt.Errorf("failed to write metrics: %w", err)
	}

	logger.Info().
		Int("metaclusters", result.Classify.Metaclusters).
		Int("files", len(result.Files)).
		Int64("runtime_ms", result.TotalRuntimeMS).
		Msg("Pipeline completed")

	return result, nil
}

// writePipelineSummary creates a summary file with the statistics of every
// stage.
func writePipelineSummary(result *PipelineResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	// bufio.Writer keeps the first write error and reports it on Flush
	w := bufio.NewWriter(file)

	fmt.Fprintf(w, "=== DPCstruct Pipeline Summary ===\n\n")
	fmt.Fprintf(w, "Run ID: %s\n", result.RunID)
	fmt.Fprintf(w, "Total runtime: %d ms\n", result.TotalRuntimeMS)

	fmt.Fprintf(w, "\nPrimary Clustering:\n")
	fmt.Fprintf(w, "  Queries: %d\n", result.Primary.Queries)
	fmt.Fprintf(w, "  Alignments: %d\n", result.Primary.Alignments)
	fmt.Fprintf(w, "  Members: %d\n", result.Primary.Members)
	fmt.Fprintf(w, "  Primary clusters: %d\n", result.Primary.Clusters)

	fmt.Fprintf(w, "\nDistance Aggregation:\n")
	fmt.Fprintf(w, "  Matched pairs: %d\n", result.Distance.MatchedPairs)
	fmt.Fprintf(w, "  Edges: %d\n", result.Distance.Edges)

	fmt.Fprintf(w, "\nMetacluster Classification:\n")
	fmt.Fprintf(w, "  Peaks: %d\n", result.Classify.Peaks)
	fmt.Fprintf(w, "  Merges: %d\n", result.Classify.Merges)
	fmt.Fprintf(w, "  Metaclusters: %d\n", result.Classify.Metaclusters)
	fmt.Fprintf(w, "  Unassigned: %d\n", result.Classify.Unassigned)
	fmt.Fprintf(w, "  Population mean/std: %.2f / %.2f\n", result.Classify.MeanPopulation, result.Classify.StdPopulation)

	fmt.Fprintf(w, "\nTraceback:\n")
	fmt.Fprintf(w, "  Labeled ranges: %d\n", result.Traceback.Labeled)
	for _, f := range result.Files {
		fmt.Fprintf(w, "  %s\n", filepath.Base(f))
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
