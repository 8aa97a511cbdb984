package format

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultBufferSize is the read buffer used when DecoderOptions leaves it unset.
const DefaultBufferSize = 64 * 1024

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// BufferSize is the size of the read buffer (default 64KB).
	BufferSize int
}

// NodeContribution is one node slot of an element record.
type NodeContribution struct {
	NodeID int64
	Stress Tensor
}

// Record is one decoded element record. Stresses are in megapascals.
type Record struct {
	// Index is the position of the record in the record area.
	Index     int
	ElementID int64
	Stress    Tensor
	Nodes     []NodeContribution
}

// ReadHeader reads the preamble and record layout from r. The returned
// reader is positioned at the first record. The layout bytes are peeked,
// not consumed, because the first record starts at the same offset.
// The layout is not validated.
func ReadHeader(r io.Reader, bufferSize int) (FileHeader, RecordLayout, *bufio.Reader, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return FileHeader{}, RecordLayout{}, nil, readError(StageHeader, -1, err)
	}
	header, err := DecodeHeader(buf)
	if err != nil {
		return FileHeader{}, RecordLayout{}, nil, err
	}

	var rest io.Reader
	offset := int64(header.RecordAreaOffset)
	if offset < HeaderSize {
		// The record area overlaps the preamble: replay the bytes already read.
		rest = io.MultiReader(bytes.NewReader(buf[offset:]), r)
	} else {
		if _, err := io.CopyN(io.Discard, r, offset-HeaderSize); err != nil {
			return FileHeader{}, RecordLayout{}, nil, readError(StageLayout, -1, err)
		}
		rest = r
	}

	br := bufio.NewReaderSize(rest, bufferSize)
	peek, err := br.Peek(LayoutSize)
	if err != nil {
		return FileHeader{}, RecordLayout{}, nil, readError(StageLayout, -1, err)
	}
	layout, err := DecodeLayout(peek)
	if err != nil {
		return FileHeader{}, RecordLayout{}, nil, err
	}
	return header, layout, br, nil
}

// Decoder yields the element records of an STE stream in file order.
// It is not restartable and not safe for concurrent use.
type Decoder struct {
	r       *bufio.Reader
	header  FileHeader
	layout  RecordLayout
	total   int
	next    int
	buf     []byte
	skip    int64
	rec     Record
	scanned int64
}

// NewDecoder reads the header of r and returns a decoder positioned at the
// first record. The layout must fit its records unless the payload holds
// none.
func NewDecoder(r io.Reader, opts DecoderOptions) (*Decoder, error) {
	header, layout, br, err := ReadHeader(r, opts.BufferSize)
	if err != nil {
		return nil, err
	}
	total := header.EffectiveElementCount()
	if total == 0 {
		// Nothing will be read with this layout, so any shape is accepted.
		return &Decoder{r: br, header: header, layout: layout}, nil
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	decoded := layout.DecodedSize()
	return &Decoder{
		r:      br,
		header: header,
		layout: layout,
		total:  total,
		buf:    make([]byte, decoded),
		skip:   int64(layout.RecordSize() - decoded),
		rec: Record{
			Nodes: make([]NodeContribution, layout.NodesPerElement),
		},
	}, nil
}

// Header returns the decoded preamble.
func (d *Decoder) Header() FileHeader {
	return d.header
}

// Layout returns the record layout.
func (d *Decoder) Layout() RecordLayout {
	return d.layout
}

// Total returns the number of records the decoder will yield.
func (d *Decoder) Total() int {
	return d.total
}

// Remaining returns the number of records not yet decoded.
func (d *Decoder) Remaining() int {
	return d.total - d.next
}

// BytesScanned returns the number of record-area bytes consumed so far.
func (d *Decoder) BytesScanned() int64 {
	return d.scanned
}

// Next decodes the next record. It returns io.EOF after the last record.
// The returned record, including its Nodes slice, is only valid until the
// next call to Next.
func (d *Decoder) Next() (Record, error) {
	if d.next >= d.total {
		return Record{}, io.EOF
	}
	idx := d.next

	if _, err := io.ReadFull(d.r, d.buf); err != nil {
		return Record{}, readError(StageRecord, idx, err)
	}
	if d.skip > 0 {
		if _, err := io.CopyN(io.Discard, d.r, d.skip); err != nil {
			return Record{}, readError(StageRecord, idx, err)
		}
	}
	d.scanned += int64(len(d.buf)) + d.skip
	d.next++

	d.rec.Index = idx
	d.rec.ElementID = RecordElementID.Truncated(d.buf)
	d.rec.Stress = decodeTensor(d.buf, RecordStress)
	for k := range d.rec.Nodes {
		slot := d.buf[RecordFirstNodeSlot+k*SlotSize:]
		d.rec.Nodes[k] = NodeContribution{
			NodeID: SlotNodeID.Truncated(slot),
			Stress: decodeTensor(slot, SlotStress),
		}
	}
	return d.rec, nil
}

// readError classifies a read failure: a short input is a FormatError,
// anything else is passed through as an I/O error.
func readError(stage Stage, idx int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FormatError{Stage: stage, Index: idx, Err: ErrTruncated}
	}
	if idx >= 0 {
		return fmt.Errorf("read %s %d: %w", stage, idx, err)
	}
	return fmt.Errorf("read %s: %w", stage, err)
}
