package main

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/config"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/pipeline"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/traceback"
)

// bindFlags binds each flag to its config key so flags override the config
// file and the defaults.
func bindFlags(cfg *config.Config, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := cfg.Viper().BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func primaryCommand(a *app) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "primary",
		Short: "Cluster the alignments of every query into primary clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.setup("primary")
			if err != nil {
				return err
			}
			prog := a.withProgress(p)
			_, err = p.Primary(cmd.Context(), input, output)
			prog.wait()
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Alignment table, grouped by query (plain or .zst)")
	cmd.Flags().StringVarP(&output, "output", "o", "primary_clusters.bin", "Output cluster member file")
	cmd.Flags().Float64("dpar", 0.2, "Neighborhood distance for the density")
	cmd.Flags().Float64("redundancy", 0.2, "Distance under which alignments to the same target are redundant")
	cmd.Flags().Float64("rho", 10, "Minimum density of a peak")
	cmd.Flags().Float64("delta", 0.4, "Minimum distance of a peak to a denser alignment")
	cmd.Flags().Int("max-peaks", 10, "Maximum number of peaks per query")
	cmd.Flags().Int("skip-rows", 0, "Header lines to skip")
	cmd.MarkFlagRequired("input")
	bindFlags(a.cfg, cmd.Flags(), map[string]string{
		"primary.dpar":                 "dpar",
		"primary.redundancy_threshold": "redundancy",
		"primary.rho_threshold":        "rho",
		"primary.delta_threshold":      "delta",
		"primary.max_peaks":            "max-peaks",
		"primary.skip_rows":            "skip-rows",
	})
	return cmd
}

func distanceCommand(a *app) *cobra.Command {
	var (
		setA, setB []string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "distance",
		Short: "Build the sparse distance graph between two sets of primary clusters",
		Long: `distance compares every primary cluster member of set A with every member
of set B on the same search sequence and writes one normalized pair per pair
of primary clusters. When set B is omitted or names the same files as set A
the comparison is a self comparison and the duplication factor defaults to 2.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.setup("distance")
			if err != nil {
				return err
			}
			dup := pipeline.DupFactor(a.cfg.DupFactor(), setA, setB)
			if len(setB) == 0 {
				setB = setA
			}
			_, err = p.Distance(cmd.Context(), setA, setB, dup, output)
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&setA, "input-a", "a", nil, "Member files of set A, comma separated")
	cmd.Flags().StringSliceVarP(&setB, "input-b", "b", nil, "Member files of set B (default: set A)")
	cmd.Flags().StringVarP(&output, "output", "o", "distances.bin", "Output normalized pair file")
	cmd.Flags().Int("dup-factor", 0, "Normalization multiplier (default: 2 for a self comparison, else 1)")
	cmd.Flags().Int("producers", runtime.NumCPU(), "Producer goroutines")
	cmd.Flags().Int("consumers", 2, "Consumer shards (at least 2)")
	cmd.Flags().Int("batch-size", 10000, "Matched pairs per batch")
	cmd.Flags().Float64("match-threshold", 0.2, "Maximum search range distance of a match")
	cmd.MarkFlagRequired("input-a")
	bindFlags(a.cfg, cmd.Flags(), map[string]string{
		"distance.producers":       "producers",
		"distance.consumers":       "consumers",
		"distance.batch_size":      "batch-size",
		"distance.match_threshold": "match-threshold",
		"distance.dup_factor":      "dup-factor",
	})
	return cmd
}

func classifyCommand(a *app) *cobra.Command {
	var (
		inputs []string
		output string
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Group primary clusters into metaclusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.setup("classify")
			if err != nil {
				return err
			}
			_, err = p.Classify(cmd.Context(), inputs, output)
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&inputs, "input", "i", nil, "Normalized pair files, comma separated")
	cmd.Flags().StringVarP(&output, "output", "o", "metacluster_labels.txt", "Output label file")
	cmd.Flags().String("merge-log", "", "Write every metacluster merge to this JSON lines file")
	cmd.Flags().Float64("density-cutoff", 0.9, "Edges shorter than this add density")
	cmd.Flags().Float64("peak-min-distance", 0.99, "Minimum distance of a peak to a denser node")
	cmd.Flags().Float64("assign-cutoff", 0.9, "Longest edge used to label a node")
	cmd.Flags().Float64("merge-threshold", 0.9, "Average distance under which metaclusters merge")
	cmd.MarkFlagRequired("input")
	bindFlags(a.cfg, cmd.Flags(), map[string]string{
		"classify.merge_log":         "merge-log",
		"classify.density_cutoff":    "density-cutoff",
		"classify.peak_min_distance": "peak-min-distance",
		"classify.assign_cutoff":     "assign-cutoff",
		"classify.merge_threshold":   "merge-threshold",
	})
	return cmd
}

func tracebackCommand(a *app) *cobra.Command {
	var (
		inputs            []string
		labels, outputDir string
	)
	cmd := &cobra.Command{
		Use:   "traceback",
		Short: "Assign a metacluster label to every primary cluster member",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.setup("traceback")
			if err != nil {
				return err
			}
			_, err = p.Traceback(cmd.Context(), inputs, labels, outputDir)
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&inputs, "input", "i", nil, "Member files, comma separated")
	cmd.Flags().StringVarP(&labels, "labels", "l", "", "Label file written by classify")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Existing output directory")
	cmd.Flags().IntP("num-output", "n", 1, "Number of output files")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("labels")
	bindFlags(a.cfg, cmd.Flags(), map[string]string{
		"traceback.num_output_files": "num-output",
	})
	return cmd
}

func postfilterCommand(a *app) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "postfilter",
		Short: "Keep one representative range per search sequence and metacluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.setup("postfilter")
			if err != nil {
				return err
			}
			if output == "" {
				output = traceback.FilteredName(input)
			}
			_, err = traceback.PostFilter(input, output, p.Logger)
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Sequence label file written by traceback")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output text file (default: <input>_filtered.txt)")
	cmd.MarkFlagRequired("input")
	return cmd
}

func runCommand(a *app) *cobra.Command {
	var input, outputDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage on one alignment table",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.setup("run")
			if err != nil {
				return err
			}
			prog := a.withProgress(p)
			result, err := p.Run(cmd.Context(), input, outputDir)
			prog.wait()
			if err != nil {
				return err
			}
			fmt.Printf("Run %s completed in %d ms\n", result.RunID, result.TotalRuntimeMS)
			fmt.Printf("Metaclusters: %d\n", result.Classify.Metaclusters)
			for _, f := range result.Files {
				fmt.Printf("  %s\n", filepath.Base(f))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Alignment table, grouped by query (plain or .zst)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "dpcstruct_output", "Output directory")
	cmd.MarkFlagRequired("input")
	return cmd
}
