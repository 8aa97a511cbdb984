package extract

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/ste-extract/pkg/format"
	"github.com/eunmann/ste-extract/pkg/nodeagg"
)

// accumulator receives every decoded record's node contributions and
// yields the combined aggregator once the scan is over.
type accumulator interface {
	add(rec format.Record) error
	// finish stops any background work and returns the aggregate. It must
	// be called exactly once, also on error paths.
	finish() (*nodeagg.Aggregator, error)
}

func newAccumulator(ctx context.Context, opts Options, sizeHint int) accumulator {
	if opts.Workers <= 1 {
		return &sequential{agg: nodeagg.New(sizeHint, opts.MaxNodeID)}
	}
	return newSharded(ctx, opts.Workers, sizeHint, opts.MaxNodeID)
}

// nodeSizeHint is the number of node ids to reserve room for before the
// scan. The declared node count is bounded by the node slots the payload
// can hold and by the id limit; ids past the hint grow the store on demand.
func nodeSizeHint(h format.FileHeader, l format.RecordLayout, maxNodeID int64) int64 {
	slots := int64(h.EffectiveElementCount()) * int64(l.NodesPerElement)
	return max(min(int64(h.NodeCount), slots, maxNodeID), 0)
}

// fitWorkers returns the largest shard count, at most opts.Workers, whose
// dense stores sized for hint node ids fit opts.MemoryBudget.
func fitWorkers(opts Options, hint int64) int {
	perShard := nodeagg.EstimateMemory(hint)
	if perShard == 0 || opts.Workers <= 1 {
		return opts.Workers
	}
	return int(max(1, min(int64(opts.Workers), opts.MemoryBudget/perShard)))
}

// sequential accumulates on the calling goroutine.
type sequential struct {
	agg *nodeagg.Aggregator
}

func (s *sequential) add(rec format.Record) error {
	for _, n := range rec.Nodes {
		if err := s.agg.Add(n.NodeID, n.Stress); err != nil {
			return recordError(rec.Index, err)
		}
	}
	return nil
}

func (s *sequential) finish() (*nodeagg.Aggregator, error) {
	return s.agg, nil
}

// contribution is a node slot tagged with the record it came from, so a
// shard can report which record held a bad node id.
type contribution struct {
	record int
	format.NodeContribution
}

// batchSize is the number of contributions handed to a shard at once.
const batchSize = 8192

// sharded spreads node contributions over a fixed set of goroutines, each
// owning one aggregator. Batch i always goes to shard i%n and shards are
// merged in index order, so results only depend on the shard count.
type sharded struct {
	parent context.Context
	ctx    context.Context
	g      *errgroup.Group
	shards []*nodeagg.Aggregator
	queues []chan []contribution
	pool   sync.Pool
	batch  []contribution
	next   int
	closed bool
}

func newSharded(ctx context.Context, workers, sizeHint int, maxNodeID int64) *sharded {
	g, gctx := errgroup.WithContext(ctx)
	s := &sharded{
		parent: ctx,
		ctx:    gctx,
		g:      g,
		shards: make([]*nodeagg.Aggregator, workers),
		queues: make([]chan []contribution, workers),
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]contribution, 0, batchSize)
				return &b
			},
		},
	}
	s.batch = s.getBatch()

	for i := range s.shards {
		agg := nodeagg.New(sizeHint, maxNodeID)
		queue := make(chan []contribution, 2)
		s.shards[i] = agg
		s.queues[i] = queue
		g.Go(func() error {
			return s.work(agg, queue)
		})
	}
	return s
}

func (s *sharded) getBatch() []contribution {
	b, ok := s.pool.Get().(*[]contribution)
	if !ok {
		panic("batch pool contained unexpected type")
	}
	return (*b)[:0]
}

func (s *sharded) putBatch(b []contribution) {
	b = b[:0]
	s.pool.Put(&b)
}

func (s *sharded) work(agg *nodeagg.Aggregator, queue <-chan []contribution) error {
	for batch := range queue {
		for _, c := range batch {
			if err := agg.Add(c.NodeID, c.Stress); err != nil {
				// Returning cancels the group context, which unblocks send.
				return recordError(c.record, err)
			}
		}
		s.putBatch(batch)
	}
	return nil
}

func (s *sharded) add(rec format.Record) error {
	for _, n := range rec.Nodes {
		s.batch = append(s.batch, contribution{record: rec.Index, NodeContribution: n})
	}
	if len(s.batch) >= batchSize {
		return s.send()
	}
	return nil
}

func (s *sharded) send() error {
	if len(s.batch) == 0 {
		return nil
	}
	queue := s.queues[s.next%len(s.queues)]
	select {
	case queue <- s.batch:
	case <-s.ctx.Done():
		// A shard failed or the caller gave up.
		return s.stop()
	}
	s.next++
	s.batch = s.getBatch()
	return nil
}

// stop closes the queues and waits for the shards. The group context is
// canceled once Wait returns, so cancellation is read from the parent.
func (s *sharded) stop() error {
	if !s.closed {
		s.closed = true
		for _, q := range s.queues {
			close(q)
		}
	}
	if err := s.g.Wait(); err != nil {
		return err
	}
	return s.parent.Err()
}

func (s *sharded) finish() (*nodeagg.Aggregator, error) {
	if !s.closed {
		if err := s.send(); err != nil {
			return nil, err
		}
	}
	if err := s.stop(); err != nil {
		return nil, err
	}

	merged := s.shards[0]
	for _, shard := range s.shards[1:] {
		merged.Merge(shard)
	}
	return merged, nil
}
