package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/config"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/pipeline"
)

const version = "1.0.0"

// app carries the state shared by every subcommand.
type app struct {
	cfg        *config.Config
	configFile string
}

// setup loads the config file, validates the merged tree and returns a
// pipeline with a logger named after the subcommand.
func (a *app) setup(name string) (*pipeline.Pipeline, error) {
	if a.configFile != "" {
		if err := a.cfg.LoadFromFile(a.configFile); err != nil {
			return nil, err
		}
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	logger := a.cfg.CreateLogger("dpcstruct-" + name)
	return pipeline.NewPipeline(a.cfg, logger), nil
}

// withProgress attaches a progress bar to the primary clustering stage of p.
// The caller must wait on the returned container.
func (a *app) withProgress(p *pipeline.Pipeline) *progress {
	prog := newProgress(a.cfg.EnableProgress())
	if prog != nil {
		p.Progress = prog.bar
	}
	return prog
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dpcstruct version %s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dpcstruct",
		Short: "Density-peak clustering of structural alignments",
		Long: `dpcstruct clusters protein structure alignments in three stages:

  primary    density-peak clustering of the alignments of each query
  distance   sparse distance graph between primary clusters
  classify   density-peak clustering of the graph into metaclusters
  traceback  metacluster labels projected onto the search ranges`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Configuration file (yaml, json or toml)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.IntP("threads", "t", runtime.NumCPU(), "Number of worker goroutines")
	flags.Bool("progress", true, "Show a progress bar during primary clustering")
	bindFlags(a.cfg, flags, map[string]string{
		"logging.level":           "log-level",
		"performance.num_workers": "threads",
		"logging.enable_progress": "progress",
	})

	rootCmd.AddCommand(primaryCommand(a))
	rootCmd.AddCommand(distanceCommand(a))
	rootCmd.AddCommand(classifyCommand(a))
	rootCmd.AddCommand(tracebackCommand(a))
	rootCmd.AddCommand(postfilterCommand(a))
	rootCmd.AddCommand(runCommand(a))
	rootCmd.AddCommand(versionCommand())
	return rootCmd
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: config.NewConfig()}
	return newRootCommand(a).ExecuteContext(ctx)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	// DPCSTRUCT_* variables may come from a .env file in the working directory
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	if err := execute(); err != nil {
		log.Fatal().Err(err).Msg("dpcstruct failed")
	}
}
