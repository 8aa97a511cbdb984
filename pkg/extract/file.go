package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/eunmann/ste-extract/internal/logctx"
	"github.com/eunmann/ste-extract/pkg/fileutil"
	"github.com/eunmann/ste-extract/pkg/logging"
	"github.com/eunmann/ste-extract/pkg/report"
	"github.com/eunmann/ste-extract/pkg/source"
)

// Parquet export file names inside FileOptions.ParquetDir.
const (
	ElementsParquetName = "elements.parquet"
	NodesParquetName    = "nodes.parquet"
)

// FileOptions configures ExtractFile.
type FileOptions struct {
	Options

	// Source controls how the input is opened.
	Source source.Options

	// ElementsPath and NodesPath are the text table destinations.
	ElementsPath string
	NodesPath    string

	// ParquetDir, when set, also receives a Parquet copy of both tables.
	ParquetDir string

	// WriteBufferSize is the text table buffer size.
	// Default: 64KB
	WriteBufferSize int
}

// Output describes one published file.
type Output struct {
	Path string
	Rows int64
	// Bytes and Sum64 (xxhash64 of the content) are only set for text tables.
	Bytes int64
	Sum64 uint64
}

// FileResult is the outcome of ExtractFile.
type FileResult struct {
	*Result
	Elements Output
	Nodes    Output
	// Parquet lists the Parquet exports, elements first.
	Parquet []Output
}

// ExtractFile extracts input into the tables named by opts. Outputs are
// written to temporary files and published only when the whole run
// succeeds; a failed run leaves no output behind.
func ExtractFile(ctx context.Context, input string, opts FileOptions) (*FileResult, error) {
	if opts.ElementsPath == "" || opts.NodesPath == "" {
		return nil, errors.New("output paths are required")
	}
	if opts.ElementsPath == opts.NodesPath {
		return nil, fmt.Errorf("elements and nodes outputs are the same file: %s", opts.ElementsPath)
	}
	log := logctx.FromContext(ctx)
	start := time.Now()

	log.Info().
		Str("input", input).
		Str("elements", opts.ElementsPath).
		Str("nodes", opts.NodesPath).
		Msg("opening files")

	for _, p := range []string{opts.ElementsPath, opts.NodesPath} {
		if fileutil.Exists(p) {
			log.Info().Str("path", p).Msg("replacing existing output")
		}
	}

	in, err := source.Open(ctx, input, opts.Source)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	log.Debug().
		Str("compression", string(in.Compression())).
		Bool("mmap", in.Mapped()).
		Int64("size", in.Size()).
		Msg("input opened")

	var group fileutil.Group
	published := false
	defer func() {
		if published {
			return
		}
		if err := group.Abort(); err != nil {
			log.Warn().Err(err).Msg("failed to remove partial outputs")
		}
	}()

	elements, err := createTable(&group, opts.ElementsPath, report.ElementLabel, opts.WriteBufferSize)
	if err != nil {
		return nil, err
	}
	nodes, err := createTable(&group, opts.NodesPath, report.NodeLabel, opts.WriteBufferSize)
	if err != nil {
		return nil, err
	}
	sinks := Sinks{Elements: elements, Nodes: nodes}

	var parquetTables []*report.ParquetTable
	var parquetPaths []string
	if opts.ParquetDir != "" {
		for _, name := range []string{ElementsParquetName, NodesParquetName} {
			path := filepath.Join(opts.ParquetDir, name)
			f, err := group.Create(path)
			if err != nil {
				return nil, fmt.Errorf("create %s: %w", path, err)
			}
			parquetTables = append(parquetTables, report.NewParquetTable(f))
			parquetPaths = append(parquetPaths, path)
		}
		sinks.Elements = report.Tee(elements, parquetTables[0])
		sinks.Nodes = report.Tee(nodes, parquetTables[1])
	}

	res, err := Run(ctx, in, sinks, opts.Options)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("closing files")
	if err := group.Commit(); err != nil {
		return nil, fmt.Errorf("publish outputs: %w", err)
	}
	published = true

	out := &FileResult{
		Result:   res,
		Elements: tableOutput(opts.ElementsPath, elements),
		Nodes:    tableOutput(opts.NodesPath, nodes),
	}
	for i, p := range parquetTables {
		out.Parquet = append(out.Parquet, Output{Path: parquetPaths[i], Rows: p.Rows()})
	}

	elapsed := time.Since(start)
	for _, o := range []Output{out.Elements, out.Nodes} {
		logging.FileCreated(log, "extract", elapsed).
			Str("path", o.Path).
			Count("rows", o.Rows).
			Bytes("bytes", o.Bytes).
			Hex("xxhash", o.Sum64).
			Log("table written")
	}
	for _, o := range out.Parquet {
		logging.FileCreated(log, "extract", elapsed).
			Str("path", o.Path).
			Count("rows", o.Rows).
			Log("parquet export written")
	}
	return out, nil
}

func createTable(group *fileutil.Group, path, label string, bufferSize int) (*report.Table, error) {
	f, err := group.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	t, err := report.NewTable(f, label, bufferSize)
	if err != nil {
		return nil, fmt.Errorf("write %s header: %w", path, err)
	}
	return t, nil
}

func tableOutput(path string, t *report.Table) Output {
	return Output{Path: path, Rows: t.Rows(), Bytes: t.Bytes(), Sum64: t.Sum64()}
}
