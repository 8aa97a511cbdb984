package report

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/ste-extract/pkg/format"
)

// Row is the Parquet schema shared by the element and node exports.
type Row struct {
	ID  int64   `parquet:"id"`
	SX  float64 `parquet:"sx"`
	SY  float64 `parquet:"sy"`
	SZ  float64 `parquet:"sz"`
	TXY float64 `parquet:"txy"`
	TXZ float64 `parquet:"txz"`
	TYZ float64 `parquet:"tyz"`
}

// NewRow builds a Row from an id and tensor.
func NewRow(id int64, t format.Tensor) Row {
	return Row{ID: id, SX: t[0], SY: t[1], SZ: t[2], TXY: t[3], TXZ: t[4], TYZ: t[5]}
}

// Tensor returns the stress components of r.
func (r Row) Tensor() format.Tensor {
	return format.Tensor{r.SX, r.SY, r.SZ, r.TXY, r.TXZ, r.TYZ}
}

// defaultParquetBatch is the number of rows buffered per Write call.
const defaultParquetBatch = 4096

// ParquetTable writes rows to a Parquet file. Close writes the footer.
type ParquetTable struct {
	w     *parquet.GenericWriter[Row]
	batch []Row
	rows  int64
}

// NewParquetTable creates a Parquet table on w.
func NewParquetTable(w io.Writer) *ParquetTable {
	return &ParquetTable{
		w:     parquet.NewGenericWriter[Row](w),
		batch: make([]Row, 0, defaultParquetBatch),
	}
}

// WriteRow buffers one row, writing a batch when full.
func (p *ParquetTable) WriteRow(id int64, stress format.Tensor) error {
	p.batch = append(p.batch, NewRow(id, stress))
	p.rows++
	if len(p.batch) == cap(p.batch) {
		return p.flush()
	}
	return nil
}

func (p *ParquetTable) flush() error {
	if len(p.batch) == 0 {
		return nil
	}
	if _, err := p.w.Write(p.batch); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	p.batch = p.batch[:0]
	return nil
}

// Close flushes pending rows and finalizes the file.
func (p *ParquetTable) Close() error {
	if err := p.flush(); err != nil {
		return err
	}
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// Rows returns the number of rows written.
func (p *ParquetTable) Rows() int64 {
	return p.rows
}
