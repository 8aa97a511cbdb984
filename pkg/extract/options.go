package extract

import (
	"fmt"
	"runtime"
	"time"

	"github.com/eunmann/ste-extract/pkg/format"
	"github.com/eunmann/ste-extract/pkg/logging"
	"github.com/eunmann/ste-extract/pkg/nodeagg"
	"github.com/eunmann/ste-extract/pkg/sysmem"
)

// Options controls the extraction pipeline.
type Options struct {
	// BufferSize is the decoder's read buffer size.
	// Default: 64KB
	BufferSize int

	// Workers is the number of node accumulation shards. 1 runs the whole
	// scan on the calling goroutine.
	// Default: 1
	Workers int

	// MaxNodeID bounds node ids accepted from the input.
	// Default: nodeagg.DefaultMaxNodeID
	MaxNodeID int64

	// ProgressInterval is the minimum time between progress log events.
	// Default: 5s
	ProgressInterval time.Duration

	// MemoryBudget caps the planned size of the node accumulators in
	// bytes. Workers is lowered when the shards would not fit.
	// Default: half of physical memory
	MemoryBudget int64
}

// DefaultOptions returns the sequential configuration.
func DefaultOptions() Options {
	return Options{
		BufferSize:       format.DefaultBufferSize,
		Workers:          1,
		MaxNodeID:        nodeagg.DefaultMaxNodeID,
		ProgressInterval: logging.DefaultProgressInterval,
	}
}

// maxWorkers caps Workers; more shards than cores only adds merge work.
var maxWorkers = runtime.NumCPU() * 4

// Validate checks the options for consistency.
func (o Options) Validate() error {
	if o.BufferSize < 0 {
		return fmt.Errorf("BufferSize must be >= 0, got %d", o.BufferSize)
	}
	if o.Workers < 0 || o.Workers > maxWorkers {
		return fmt.Errorf("Workers must be between 0 and %d, got %d", maxWorkers, o.Workers)
	}
	if o.MaxNodeID < 0 {
		return fmt.Errorf("MaxNodeID must be >= 0, got %d", o.MaxNodeID)
	}
	if o.MemoryBudget < 0 {
		return fmt.Errorf("MemoryBudget must be >= 0, got %d", o.MemoryBudget)
	}
	return nil
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BufferSize == 0 {
		o.BufferSize = d.BufferSize
	}
	if o.Workers == 0 {
		o.Workers = d.Workers
	}
	if o.MaxNodeID == 0 {
		o.MaxNodeID = d.MaxNodeID
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = d.ProgressInterval
	}
	if o.MemoryBudget == 0 {
		o.MemoryBudget = int64(sysmem.Budget())
	}
	return o
}
