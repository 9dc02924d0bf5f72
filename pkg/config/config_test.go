package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	c := NewConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got: %v", err)
	}

	if c.Dpar() != 0.2 {
		t.Errorf("Expected dpar 0.2, got %f", c.Dpar())
	}
	if c.MaxPeaks() != 10 {
		t.Errorf("Expected max_peaks 10, got %d", c.MaxPeaks())
	}
	if c.BatchSize() != 10000 {
		t.Errorf("Expected batch_size 10000, got %d", c.BatchSize())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		field string
	}{
		{"one consumer", "distance.consumers", 1, "distance.consumers"},
		{"no producers", "distance.producers", 0, "distance.producers"},
		{"empty batch", "distance.batch_size", 0, "distance.batch_size"},
		{"too many peaks", "primary.max_peaks", 101, "primary.max_peaks"},
		{"dpar above one", "primary.dpar", 1.5, "primary.dpar"},
		{"no output files", "traceback.num_output_files", 0, "traceback.num_output_files"},
		{"negative dup factor", "distance.dup_factor", -1, "distance.dup_factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			c.Set(tt.key, tt.value)

			err := c.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Expected error to mention %s, got %v", tt.field, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dpcstruct.yaml")
	content := "primary:\n  max_peaks: 5\ndistance:\n  consumers: 4\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewConfig()
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if c.MaxPeaks() != 5 {
		t.Errorf("Expected max_peaks 5, got %d", c.MaxPeaks())
	}
	if c.Consumers() != 4 {
		t.Errorf("Expected consumers 4, got %d", c.Consumers())
	}
	if c.Dpar() != 0.2 {
		t.Errorf("Expected untouched default dpar, got %f", c.Dpar())
	}
}

func TestCreateLoggerLevel(t *testing.T) {
	c := NewConfig()
	c.Set("logging.level", "warn")

	var buf bytes.Buffer
	logger := c.createLogger(&buf, "test")
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("Warn message missing: %q", out)
	}
}
