// Package cli implements the command-line interface for ste-extract.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eunmann/ste-extract/internal/logctx"
	"github.com/eunmann/ste-extract/pkg/config"
	"github.com/eunmann/ste-extract/pkg/extract"
	"github.com/eunmann/ste-extract/pkg/logging"
	"github.com/eunmann/ste-extract/pkg/source"
)

// ErrArgs reports a wrong number of positional arguments.
var ErrArgs = errors.New("invalid arguments")

// flags holds the raw command-line values before they are merged into
// the configuration.
type flags struct {
	configPath string
	logLevel   string
	pretty     bool
	mmap       bool
	workers    int
	bufferSize int
	elements   string
	nodes      string
	parquetDir string
}

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewCommand returns the root command.
func NewCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "ste-extract [flags] STE_FILE",
		Short: "Extract element and node stresses from an STE result file",
		Long: `ste-extract decodes the element records of a binary STE stress file and
writes two fixed-width tables next to it:

  STE_FILE.elements  one row per element record, in file order
  STE_FILE.nodes     one row per node, the average of every element
                     contribution to that node, in ascending node id

Stresses are written in MPa. STE_FILE may be a local path, an s3:// URI,
or either of those compressed with gzip (.gz), zstd (.zst) or lz4 (.lz4).`,
		Args:          exactlyOneInput,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args[0])
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVarP(&f.logLevel, "log", "l", logging.DefaultLevel.String(), "log level: error, warn, info or debug")
	fs.BoolVar(&f.pretty, "pretty", false, "human-friendly console logs instead of JSON")
	fs.BoolVar(&f.mmap, "mmap", false, "memory-map local uncompressed inputs")
	fs.IntVar(&f.workers, "workers", 1, "node accumulation shards")
	fs.IntVar(&f.bufferSize, "buffer-size", config.Default().ReadBufferSize, "read and write buffer size in bytes")
	fs.StringVar(&f.elements, "elements", "", "elements table path (default STE_FILE"+config.DefaultElementsSuffix+")")
	fs.StringVar(&f.nodes, "nodes", "", "nodes table path (default STE_FILE"+config.DefaultNodesSuffix+")")
	fs.StringVar(&f.parquetDir, "parquet-dir", "", "also write elements.parquet and nodes.parquet to this directory")
	return cmd
}

func exactlyOneInput(_ *cobra.Command, args []string) error {
	if len(args) == 1 {
		return nil
	}
	return fmt.Errorf("%w: the only arg expected is a STE file name but %d were found: %s",
		ErrArgs, len(args), strings.Join(args, ", "))
}

// loadConfig merges defaults, the optional config file, and the flags the
// user set explicitly, in that order.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return config.Config{}, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("log") {
		cfg.LogLevel = f.logLevel
	}
	if changed("pretty") {
		cfg.Pretty = f.pretty
	}
	if changed("mmap") {
		cfg.Mmap = f.mmap
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("buffer-size") {
		cfg.ReadBufferSize = f.bufferSize
		cfg.WriteBufferSize = f.bufferSize
	}
	if changed("parquet-dir") {
		cfg.ParquetDir = f.parquetDir
	}
	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, f flags, input string) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	level, ok := logging.ParseLevel(cfg.LogLevel)
	logging.Init(level, cfg.Pretty)
	if !ok {
		logging.L().Warn().
			Str("level", cfg.LogLevel).
			Msg("can not set log level (is not: error, warn, info or debug), falling back to info")
	}

	elements, nodes := source.DefaultOutputPaths(input, cfg.ElementsSuffix, cfg.NodesSuffix)
	if f.elements != "" {
		elements = f.elements
	}
	if f.nodes != "" {
		nodes = f.nodes
	}

	ctx := logctx.WithLogger(cmd.Context(), logging.L().With().Str("input", input).Logger())
	ctx = logctx.WithInt(ctx, "pid", os.Getpid())
	ctx, _ = logctx.WithRunID(ctx)

	res, err := extract.ExtractFile(ctx, input, extract.FileOptions{
		Options: extract.Options{
			BufferSize:       cfg.ReadBufferSize,
			Workers:          cfg.Workers,
			MaxNodeID:        cfg.MaxNodeID,
			ProgressInterval: cfg.ProgressInterval,
			MemoryBudget:     cfg.MemoryBudget,
		},
		Source:          source.Options{Mmap: cfg.Mmap},
		ElementsPath:    elements,
		NodesPath:       nodes,
		ParquetDir:      cfg.ParquetDir,
		WriteBufferSize: cfg.WriteBufferSize,
	})
	if err != nil {
		return err
	}

	logging.PhaseComplete(logctx.FromContext(ctx), "total", res.Duration).
		Count("elements", int64(res.Result.Elements)).
		Count("nodes", int64(res.Result.Nodes)).
		Log("extraction complete")
	return nil
}
