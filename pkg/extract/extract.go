// Package extract runs the STE stress extraction: it decodes element
// records, streams element rows to one sink, averages node contributions
// and writes the node rows to a second sink once the scan is complete.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/eunmann/ste-extract/internal/logctx"
	"github.com/eunmann/ste-extract/pkg/format"
	"github.com/eunmann/ste-extract/pkg/logging"
	"github.com/eunmann/ste-extract/pkg/nodeagg"
	"github.com/eunmann/ste-extract/pkg/report"
)

// Sinks are the destinations of the two tables.
type Sinks struct {
	Elements report.RowWriter
	Nodes    report.RowWriter
}

// Result holds the outcome of one extraction.
type Result struct {
	Header format.FileHeader
	Layout format.RecordLayout
	// Elements is the number of element rows written.
	Elements int
	// Nodes is the number of node rows written.
	Nodes int
	// MaxNodeID is the largest node id observed.
	MaxNodeID     int64
	Contributions int64
	// NodeStoreBytes is the memory reserved by the combined node store.
	NodeStoreBytes int64
	BytesScanned   int64
	Duration       time.Duration
}

// ctxCheckInterval is how many records are decoded between context checks.
const ctxCheckInterval = 4096

// Run decodes the STE stream r and writes both tables. Element rows are
// written in decode order as records arrive; node rows are written in
// ascending id after the last record. Both sinks are closed (flushed) on
// success. On error the sinks may hold partial tables and the caller
// must discard them.
func Run(ctx context.Context, r io.Reader, sinks Sinks, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	opts = opts.withDefaults()
	start := time.Now()
	log := logctx.FromContext(ctx)

	log.Info().Msg("reading header")
	dec, err := format.NewDecoder(r, format.DecoderOptions{BufferSize: opts.BufferSize})
	if err != nil {
		return nil, fmt.Errorf("open decoder: %w", err)
	}
	header, layout := dec.Header(), dec.Layout()
	log.Debug().
		Uint32("declared_elements", header.ElementCountDeclared).
		Uint32("declared_nodes", header.NodeCount).
		Uint32("payload_words", header.PayloadWordCount).
		Uint32("record_area_offset", header.RecordAreaOffset).
		Uint32("record_size_words", layout.RecordSizeWords).
		Uint32("nodes_per_element", layout.NodesPerElement).
		Int("effective_elements", dec.Total()).
		Msg("header decoded")

	hint := nodeSizeHint(header, layout, opts.MaxNodeID)
	if workers := fitWorkers(opts, hint); workers < opts.Workers {
		log.Warn().
			Int("requested", opts.Workers).
			Int("workers", workers).
			Int64("memory_budget", opts.MemoryBudget).
			Msg("reducing workers to fit the memory budget")
		opts.Workers = workers
	}
	if planned := nodeagg.EstimateMemory(hint) * int64(opts.Workers); planned > opts.MemoryBudget {
		log.Warn().
			Int64("planned_bytes", planned).
			Int64("memory_budget", opts.MemoryBudget).
			Msg("node store exceeds the memory budget, growing it on demand")
		hint = 0
	}

	acc := newAccumulator(ctx, opts, int(hint))
	finished := false
	defer func() {
		if !finished {
			_, _ = acc.finish()
		}
	}()

	log.Info().
		Int("elements", dec.Total()).
		Int("workers", opts.Workers).
		Msg("extracting stress values: elements are saved, nodes are accumulated")
	progress := logging.NewProgressTracker("extract", int64(dec.Total()), opts.ProgressInterval, log)

	res := &Result{Header: header, Layout: layout}
	for {
		if res.Elements%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			progress.MaybeLog()
		}

		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := sinks.Elements.WriteRow(rec.ElementID, rec.Stress); err != nil {
			return nil, fmt.Errorf("write element %d: %w", rec.Index, err)
		}
		if err := acc.add(rec); err != nil {
			return nil, err
		}
		res.Elements++
		progress.Add(1, int64(layout.RecordSize()))
	}

	finished = true
	agg, err := acc.finish()
	if err != nil {
		return nil, err
	}
	if err := sinks.Elements.Close(); err != nil {
		return nil, fmt.Errorf("flush elements: %w", err)
	}
	res.BytesScanned = dec.BytesScanned()
	res.MaxNodeID = agg.MaxNodeID()
	res.Contributions = agg.Contributions()
	logging.PhaseComplete(log, "elements", time.Since(start)).
		Count("elements", int64(res.Elements)).
		Count("contributions", res.Contributions).
		Throughput(res.BytesScanned).
		Log("element scan complete")

	res.NodeStoreBytes = agg.EstimatedMemoryUsage()

	log.Info().Msg("saving stress values for nodes")
	logging.PhaseComplete(log, "nodes", time.Since(start)).
		Count("nodes", int64(agg.NodeCount())).
		Int64("max_node_id", res.MaxNodeID).
		Bytes("node_store", res.NodeStoreBytes).
		LogDebug("node range observed")
	err = agg.Each(func(id int64, avg format.Tensor) error {
		res.Nodes++
		return sinks.Nodes.WriteRow(id, avg)
	})
	if err != nil {
		return nil, fmt.Errorf("write nodes: %w", err)
	}
	if err := sinks.Nodes.Close(); err != nil {
		return nil, fmt.Errorf("flush nodes: %w", err)
	}

	res.Duration = time.Since(start)
	log.Debug().Dur("duration", res.Duration).Msg("time of extraction")
	return res, nil
}

// recordError attributes a node aggregation failure to a record.
func recordError(index int, err error) error {
	return &format.FormatError{Stage: format.StageRecord, Index: index, Err: err}
}
