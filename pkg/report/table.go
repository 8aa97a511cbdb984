// Package report writes decoded element and averaged node stresses as
// fixed-width text tables and, optionally, as Parquet files.
package report

import (
	"bufio"
	"io"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/eunmann/ste-extract/pkg/format"
)

// Table labels for the id column.
const (
	ElementLabel = "Element"
	NodeLabel    = "Node"
)

// Column widths of the text tables.
const (
	IDWidth     = 8
	StressWidth = 16
	// StressPrecision is the number of digits after the decimal point.
	StressPrecision = 6
)

// DefaultBufferSize is the write buffer used when none is given.
const DefaultBufferSize = 64 * 1024

// RowWriter receives one row per entity. Close flushes buffered rows; it
// does not close the underlying writer.
type RowWriter interface {
	WriteRow(id int64, stress format.Tensor) error
	Close() error
}

// Table writes a fixed-width text table: a header row, then one row per
// entity with the id in an 8-wide column and each stress component in a
// 16-wide column in scientific notation. Columns are separated by a
// single space.
type Table struct {
	w      *bufio.Writer
	digest *xxhash.Digest
	line   []byte
	rows   int64
	bytes  int64
	err    error
}

// NewTable creates a table on w and writes its header row.
func NewTable(w io.Writer, label string, bufferSize int) (*Table, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	t := &Table{
		w:      bufio.NewWriterSize(w, bufferSize),
		digest: xxhash.New(),
		line:   make([]byte, 0, IDWidth+format.Components*(StressWidth+1)+1),
	}

	line := appendPadded(t.line[:0], []byte(label), IDWidth)
	for _, name := range format.ComponentNames {
		line = append(line, ' ')
		line = appendPadded(line, []byte(name), StressWidth)
	}
	line = append(line, '\n')
	if err := t.emit(line); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteRow writes one data row.
func (t *Table) WriteRow(id int64, stress format.Tensor) error {
	if t.err != nil {
		return t.err
	}
	var num [32]byte
	line := appendPadded(t.line[:0], strconv.AppendInt(num[:0], id, 10), IDWidth)
	for _, v := range stress {
		line = append(line, ' ')
		line = appendPadded(line, appendStress(num[:0], v), StressWidth)
	}
	line = append(line, '\n')
	if err := t.emit(line); err != nil {
		return err
	}
	t.rows++
	return nil
}

func (t *Table) emit(line []byte) error {
	t.line = line
	if _, err := t.w.Write(line); err != nil {
		t.err = err
		return err
	}
	_, _ = t.digest.Write(line)
	t.bytes += int64(len(line))
	return nil
}

// Close flushes buffered rows.
func (t *Table) Close() error {
	if t.err != nil {
		return t.err
	}
	if err := t.w.Flush(); err != nil {
		t.err = err
		return err
	}
	return nil
}

// Rows returns the number of data rows written.
func (t *Table) Rows() int64 {
	return t.rows
}

// Bytes returns the number of bytes written, header included.
func (t *Table) Bytes() int64 {
	return t.bytes
}

// Sum64 returns the xxhash64 digest of everything written.
func (t *Table) Sum64() uint64 {
	return t.digest.Sum64()
}

// appendStress formats v like C's %.6e, spelling non-finite values the
// way C does.
func appendStress(dst []byte, v float64) []byte {
	switch {
	case math.IsNaN(v):
		return append(dst, "nan"...)
	case math.IsInf(v, 1):
		return append(dst, "inf"...)
	case math.IsInf(v, -1):
		return append(dst, "-inf"...)
	}
	return strconv.AppendFloat(dst, v, 'e', StressPrecision, 64)
}

// appendPadded right-justifies s in a field of the given width. Values
// wider than the field are written in full.
func appendPadded(dst, s []byte, width int) []byte {
	for i := len(s); i < width; i++ {
		dst = append(dst, ' ')
	}
	return append(dst, s...)
}

// Tee fans every row out to all writers.
func Tee(writers ...RowWriter) RowWriter {
	return tee(writers)
}

type tee []RowWriter

func (t tee) WriteRow(id int64, stress format.Tensor) error {
	for _, w := range t {
		if err := w.WriteRow(id, stress); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Close() error {
	var first error
	for _, w := range t {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
