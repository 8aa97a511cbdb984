// Package nodeagg averages per-node stress contributions across the
// elements that share each node.
package nodeagg

import (
	"errors"
	"fmt"

	"github.com/eunmann/ste-extract/pkg/format"
)

var (
	// ErrInvalidNodeID indicates a node id below 1.
	ErrInvalidNodeID = errors.New("invalid node id")
	// ErrNodeIDOutOfRange indicates a node id above the aggregator's limit.
	ErrNodeIDOutOfRange = errors.New("node id out of range")
)

// DefaultMaxNodeID bounds the dense accumulator when no limit is given.
const DefaultMaxNodeID = 1 << 26

// Stats is the running state of one node.
type Stats struct {
	Count uint32
	Sum   format.Tensor
}

// Average returns Sum divided component-wise by Count.
func (s Stats) Average() format.Tensor {
	var avg format.Tensor
	if s.Count == 0 {
		return avg
	}
	n := float64(s.Count)
	for i, v := range s.Sum {
		avg[i] = v / n
	}
	return avg
}

// Aggregator accumulates node contributions keyed by node id.
// Storage is a dense slice indexed by id-1, grown on demand to the largest
// id observed; the header's declared node count is only a capacity hint.
//
// The aggregator is NOT safe for concurrent use. For concurrent access,
// use one aggregator per goroutine and Merge them.
type Aggregator struct {
	nodes         []Stats
	maxNodeID     int64
	contributions int64
}

// New creates an aggregator. sizeHint preallocates room for that many
// node ids; maxNodeID <= 0 selects DefaultMaxNodeID.
func New(sizeHint int, maxNodeID int64) *Aggregator {
	if maxNodeID <= 0 {
		maxNodeID = DefaultMaxNodeID
	}
	sizeHint = int(min(int64(max(sizeHint, 0)), maxNodeID))
	return &Aggregator{
		nodes:     make([]Stats, 0, sizeHint),
		maxNodeID: maxNodeID,
	}
}

// Add records one element's contribution to node id.
func (a *Aggregator) Add(id int64, stress format.Tensor) error {
	if id < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidNodeID, id)
	}
	if id > a.maxNodeID {
		return fmt.Errorf("%w: %d > %d", ErrNodeIDOutOfRange, id, a.maxNodeID)
	}
	a.grow(id)

	s := &a.nodes[id-1]
	s.Count++
	for i, v := range stress {
		s.Sum[i] += v
	}
	a.contributions++
	return nil
}

// AddRecord adds every node slot of rec. A node repeated within the
// record contributes once per slot.
func (a *Aggregator) AddRecord(rec format.Record) error {
	for _, n := range rec.Nodes {
		if err := a.Add(n.NodeID, n.Stress); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) grow(id int64) {
	if int64(len(a.nodes)) >= id {
		return
	}
	if int64(cap(a.nodes)) >= id {
		a.nodes = a.nodes[:id]
		return
	}
	// Double like append, but never past the limit.
	newCap := min(max(id, int64(2*cap(a.nodes))), a.maxNodeID)
	grown := make([]Stats, id, newCap)
	copy(grown, a.nodes)
	a.nodes = grown
}

// Merge adds the counts and sums of other into a.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil || len(other.nodes) == 0 {
		return
	}
	a.grow(int64(len(other.nodes)))
	for i := range other.nodes {
		src := &other.nodes[i]
		if src.Count == 0 {
			continue
		}
		dst := &a.nodes[i]
		dst.Count += src.Count
		for c, v := range src.Sum {
			dst.Sum[c] += v
		}
	}
	a.contributions += other.contributions
}

// Get returns the running state of node id.
func (a *Aggregator) Get(id int64) Stats {
	if id < 1 || id > int64(len(a.nodes)) {
		return Stats{}
	}
	return a.nodes[id-1]
}

// Each calls fn with the averaged tensor of every node that received at
// least one contribution, in ascending id order. It stops at the first
// error fn returns.
func (a *Aggregator) Each(fn func(id int64, avg format.Tensor) error) error {
	for i := range a.nodes {
		s := &a.nodes[i]
		if s.Count == 0 {
			continue
		}
		if err := fn(int64(i+1), s.Average()); err != nil {
			return err
		}
	}
	return nil
}

// MaxNodeID returns the largest node id observed.
func (a *Aggregator) MaxNodeID() int64 {
	return int64(len(a.nodes))
}

// NodeCount returns the number of nodes with at least one contribution.
func (a *Aggregator) NodeCount() int {
	var n int
	for i := range a.nodes {
		if a.nodes[i].Count > 0 {
			n++
		}
	}
	return n
}

// Contributions returns the total number of contributions added.
func (a *Aggregator) Contributions() int64 {
	return a.contributions
}

// BytesPerNode is the size of one Stats entry: a 4-byte count padded to 8
// plus six float64 sums.
const BytesPerNode = 8 + format.Components*8

// EstimateMemory returns the bytes a dense store needs for node ids up to
// maxNodeID.
func EstimateMemory(maxNodeID int64) int64 {
	return max(maxNodeID, 0) * BytesPerNode
}

// EstimatedMemoryUsage returns the bytes held by the dense store.
func (a *Aggregator) EstimatedMemoryUsage() int64 {
	return EstimateMemory(int64(cap(a.nodes)))
}
