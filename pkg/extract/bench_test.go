package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/eunmann/ste-extract/pkg/benchutil"
	"github.com/eunmann/ste-extract/pkg/report"
)

func benchmarkRun(b *testing.B, numElements, workers int) {
	b.Helper()
	data := benchutil.NewGenerator(benchutil.DefaultConfig(numElements)).Generate().Bytes()
	opts := DefaultOptions()
	opts.Workers = workers

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		et, err := report.NewTable(io.Discard, report.ElementLabel, 0)
		if err != nil {
			b.Fatal(err)
		}
		nt, err := report.NewTable(io.Discard, report.NodeLabel, 0)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := Run(context.Background(), bytes.NewReader(data), Sinks{Elements: et, Nodes: nt}, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRun(b *testing.B) {
	for _, n := range benchutil.BenchmarkSizes {
		for _, workers := range []int{1, 4} {
			b.Run(fmt.Sprintf("elements=%d/workers=%d", n, workers), func(b *testing.B) {
				benchmarkRun(b, n, workers)
			})
		}
	}
}

// BenchmarkRunScaling covers mesh sizes of production runs.
func BenchmarkRunScaling(b *testing.B) {
	benchutil.SkipIfNoLongBench(b)
	for _, n := range []int{1_000_000, 4_000_000} {
		for _, workers := range []int{1, 2, 4, 8} {
			b.Run(fmt.Sprintf("elements=%d/workers=%d", n, workers), func(b *testing.B) {
				benchmarkRun(b, n, workers)
			})
		}
	}
}
