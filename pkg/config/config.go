package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every configuration error reported by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config manages pipeline configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Primary clustering parameters
	v.SetDefault("primary.dpar", 0.2)
	v.SetDefault("primary.redundancy_threshold", 0.2)
	v.SetDefault("primary.rho_threshold", 10.0)
	v.SetDefault("primary.delta_threshold", 0.4)
	v.SetDefault("primary.max_peaks", 10)
	v.SetDefault("primary.skip_rows", 0)

	// Distance aggregation parameters
	v.SetDefault("distance.producers", runtime.NumCPU())
	v.SetDefault("distance.consumers", 2)
	v.SetDefault("distance.batch_size", 10000)
	v.SetDefault("distance.match_threshold", 0.2)
	v.SetDefault("distance.dup_factor", 0) // 0: 2 for a self comparison, else 1

	// Metacluster classification parameters
	v.SetDefault("classify.density_cutoff", 0.9)
	v.SetDefault("classify.peak_min_distance", 0.99)
	v.SetDefault("classify.assign_cutoff", 0.9)
	v.SetDefault("classify.merge_threshold", 0.9)
	v.SetDefault("classify.merge_log", "")

	v.SetDefault("traceback.num_output_files", 1)

	// Performance parameters
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)

	// DPCSTRUCT_DISTANCE_CONSUMERS overrides distance.consumers
	v.SetEnvPrefix("DPCSTRUCT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// Viper exposes the underlying tree so CLI flags can be bound into it.
func (c *Config) Viper() *viper.Viper { return c.v }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Getters for primary clustering parameters
func (c *Config) Dpar() float64                { return c.v.GetFloat64("primary.dpar") }
func (c *Config) RedundancyThreshold() float64 { return c.v.GetFloat64("primary.redundancy_threshold") }
func (c *Config) RhoThreshold() float64        { return c.v.GetFloat64("primary.rho_threshold") }
func (c *Config) DeltaThreshold() float64      { return c.v.GetFloat64("primary.delta_threshold") }
func (c *Config) MaxPeaks() int                { return c.v.GetInt("primary.max_peaks") }
func (c *Config) SkipRows() int                { return c.v.GetInt("primary.skip_rows") }

func (c *Config) Producers() int          { return c.v.GetInt("distance.producers") }
func (c *Config) Consumers() int          { return c.v.GetInt("distance.consumers") }
func (c *Config) BatchSize() int          { return c.v.GetInt("distance.batch_size") }
func (c *Config) MatchThreshold() float64 { return c.v.GetFloat64("distance.match_threshold") }
func (c *Config) DupFactor() int          { return c.v.GetInt("distance.dup_factor") }

func (c *Config) DensityCutoff() float64   { return c.v.GetFloat64("classify.density_cutoff") }
func (c *Config) PeakMinDistance() float64 { return c.v.GetFloat64("classify.peak_min_distance") }
func (c *Config) AssignCutoff() float64    { return c.v.GetFloat64("classify.assign_cutoff") }
func (c *Config) MergeThreshold() float64  { return c.v.GetFloat64("classify.merge_threshold") }
func (c *Config) MergeLog() string         { return c.v.GetString("classify.merge_log") }

func (c *Config) NumOutputFiles() int { return c.v.GetInt("traceback.num_output_files") }

func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }

func (c *Config) LogLevel() string     { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

// Validate rejects configurations that must not reach a running stage.
func (c *Config) Validate() error {
	var errs []error

	if c.Consumers() < 2 {
		errs = append(errs, fmt.Errorf("distance.consumers must be at least 2, got %d", c.Consumers()))
	}
	if c.Producers() < 1 {
		errs = append(errs, fmt.Errorf("distance.producers must be positive, got %d", c.Producers()))
	}
	if c.BatchSize() < 1 {
		errs = append(errs, fmt.Errorf("distance.batch_size must be positive, got %d", c.BatchSize()))
	}
	if c.DupFactor() < 0 {
		errs = append(errs, fmt.Errorf("distance.dup_factor must not be negative, got %d", c.DupFactor()))
	}
	if c.MaxPeaks() < 1 || c.MaxPeaks() > 100 {
		errs = append(errs, fmt.Errorf("primary.max_peaks must be in [1,100], got %d", c.MaxPeaks()))
	}
	if c.NumWorkers() < 1 {
		errs = append(errs, fmt.Errorf("performance.num_workers must be positive, got %d", c.NumWorkers()))
	}
	if c.SkipRows() < 0 {
		errs = append(errs, fmt.Errorf("primary.skip_rows must not be negative, got %d", c.SkipRows()))
	}
	if c.NumOutputFiles() < 1 {
		errs = append(errs, fmt.Errorf("traceback.num_output_files must be positive, got %d", c.NumOutputFiles()))
	}

	// distances and cutoffs compared against IntervalDistance live in [0,1]
	for _, p := range []struct {
		key string
		val float64
	}{
		{"primary.dpar", c.Dpar()},
		{"primary.redundancy_threshold", c.RedundancyThreshold()},
		{"distance.match_threshold", c.MatchThreshold()},
		{"classify.density_cutoff", c.DensityCutoff()},
		{"classify.assign_cutoff", c.AssignCutoff()},
		{"classify.merge_threshold", c.MergeThreshold()},
	} {
		if p.val < 0 || p.val > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %g", p.key, p.val))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger(service string) zerolog.Logger {
	return c.createLogger(os.Stderr, service)
}

func (c *Config) createLogger(out io.Writer, service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", service).Logger()
}
