// Package config holds the settings of an extraction run: built-in
// defaults, optionally overlaid by a YAML file, then by command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eunmann/ste-extract/pkg/format"
	"github.com/eunmann/ste-extract/pkg/logging"
	"github.com/eunmann/ste-extract/pkg/nodeagg"
	"github.com/eunmann/ste-extract/pkg/report"
)

// Config is the full set of run settings.
type Config struct {
	// LogLevel is one of error, warn, info, debug.
	LogLevel string `yaml:"log_level"`
	// Pretty selects console log output instead of JSON.
	Pretty bool `yaml:"pretty"`

	// ElementsSuffix and NodesSuffix are appended to the input name to
	// derive output paths when none are given.
	ElementsSuffix string `yaml:"elements_suffix"`
	NodesSuffix    string `yaml:"nodes_suffix"`
	// ParquetDir, when set, also receives Parquet copies of both tables.
	ParquetDir string `yaml:"parquet_dir"`

	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`

	// Workers is the number of node accumulation shards.
	Workers int `yaml:"workers"`
	// Mmap maps local uncompressed inputs into memory.
	Mmap bool `yaml:"mmap"`
	// MaxNodeID bounds accepted node ids.
	MaxNodeID        int64         `yaml:"max_node_id"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	// MemoryBudget caps node accumulation memory in bytes; 0 uses half of
	// physical memory.
	MemoryBudget int64 `yaml:"memory_budget"`
}

// Default output suffixes.
const (
	DefaultElementsSuffix = ".elements"
	DefaultNodesSuffix    = ".nodes"
)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:         logging.DefaultLevel.String(),
		ElementsSuffix:   DefaultElementsSuffix,
		NodesSuffix:      DefaultNodesSuffix,
		ReadBufferSize:   format.DefaultBufferSize,
		WriteBufferSize:  report.DefaultBufferSize,
		Workers:          1,
		MaxNodeID:        nodeagg.DefaultMaxNodeID,
		ProgressInterval: logging.DefaultProgressInterval,
	}
}

// Load reads a YAML file over the defaults. Keys the file does not set
// keep their default; unknown keys are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	var extra interface{}
	if err := dec.Decode(&extra); err == nil {
		return Config{}, errors.New("multiple YAML documents are not supported")
	}
	return cfg, nil
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	var errs []error
	if c.ElementsSuffix == "" || c.NodesSuffix == "" {
		errs = append(errs, errors.New("output suffixes must not be empty"))
	} else if c.ElementsSuffix == c.NodesSuffix {
		errs = append(errs, fmt.Errorf("elements and nodes suffixes are both %q", c.ElementsSuffix))
	}
	if c.ReadBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("read_buffer_size must be > 0, got %d", c.ReadBufferSize))
	}
	if c.WriteBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("write_buffer_size must be > 0, got %d", c.WriteBufferSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.MaxNodeID < 1 {
		errs = append(errs, fmt.Errorf("max_node_id must be >= 1, got %d", c.MaxNodeID))
	}
	if c.ProgressInterval <= 0 {
		errs = append(errs, fmt.Errorf("progress_interval must be > 0, got %s", c.ProgressInterval))
	}
	if c.MemoryBudget < 0 {
		errs = append(errs, fmt.Errorf("memory_budget must be >= 0, got %d", c.MemoryBudget))
	}
	return errors.Join(errs...)
}
