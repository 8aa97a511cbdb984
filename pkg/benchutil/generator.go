// Package benchutil provides synthetic STE data for benchmarks and tests.
package benchutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// BenchmarkSeed is the default seed for reproducible generation.
const BenchmarkSeed = 42

// BenchmarkSizes are element counts for quick benchmark runs.
var BenchmarkSizes = []int{1000, 10000, 100000}

// GeneratorConfig configures synthetic mesh generation.
type GeneratorConfig struct {
	// NumElements is the number of element records.
	NumElements int
	// NumNodes is the size of the node id space (ids 1..NumNodes).
	NumNodes int
	// NodesPerElement is the slot count of every record (4 for a linear tetrahedron).
	NodesPerElement int
	// PaddingWords adds unused words to the end of every record.
	PaddingWords int
	// MaxStress bounds the absolute value of generated stresses, in pascals.
	MaxStress float64
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig returns a tetrahedral mesh with roughly one node per
// element, the ratio of a typical solid mesh.
func DefaultConfig(numElements int) GeneratorConfig {
	return GeneratorConfig{
		NumElements:     numElements,
		NumNodes:        max(numElements, 4),
		NodesPerElement: 4,
		PaddingWords:    8,
		MaxStress:       250e6,
		Seed:            BenchmarkSeed,
	}
}

// Generator produces synthetic STE files.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a new data generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Generate returns a synthetic file description.
func (g *Generator) Generate() File {
	elements := make([]Element, g.cfg.NumElements)
	for i := range elements {
		e := Element{
			ID:     float32(i + 1),
			Stress: g.tensor(),
			Nodes:  make([]Node, g.cfg.NodesPerElement),
		}
		for k := range e.Nodes {
			e.Nodes[k] = Node{
				ID:     float32(1 + g.rng.Intn(g.cfg.NumNodes)),
				Stress: g.tensor(),
			}
		}
		elements[i] = e
	}

	npe := uint32(g.cfg.NodesPerElement)
	return File{
		NodeCount:       uint32(g.cfg.NumNodes),
		NodesPerElement: npe,
		RecordSizeWords: uint32(offFirstSlot/4) + 8*npe + uint32(g.cfg.PaddingWords),
		Elements:        elements,
	}
}

func (g *Generator) tensor() [6]float32 {
	var t [6]float32
	for i := range t {
		t[i] = float32((g.rng.Float64()*2 - 1) * g.cfg.MaxStress)
	}
	return t
}

// WriteFile writes data to name inside a test temp dir and returns its path.
func WriteFile(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// SkipIfNoLongBench skips the benchmark if STE_LONG_BENCH is not set.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("STE_LONG_BENCH") == "" {
		b.Skip("set STE_LONG_BENCH=1 to run scaling benchmark")
	}
}
