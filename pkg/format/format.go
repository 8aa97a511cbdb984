// Package format describes the binary layout of STE stress files and
// decodes their header and element records.
//
// Every multi-byte value in an STE file is 4 bytes, little-endian. The file
// starts with a fixed preamble (see the Header* fields) whose last field
// points at the record area. The record area begins with a 16-byte prefix
// carrying the per-record size and the number of nodes attached to each
// element, and is followed by fixed-size element records.
package format

import (
	"encoding/binary"
	"math"
)

// Kind is the on-disk encoding of a field.
type Kind uint8

const (
	// KindInt32 is a little-endian 32-bit integer.
	KindInt32 Kind = iota
	// KindFloat32 is a little-endian IEEE-754 single.
	KindFloat32
)

// FieldSize is the width of every scalar field in the format.
const FieldSize = 4

// Field names one scalar value at a fixed byte offset relative to the
// start of the structure that contains it.
type Field struct {
	Name   string
	Offset int
	Kind   Kind
}

// Uint32 decodes the field from buf as an unsigned integer.
func (f Field) Uint32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[f.Offset : f.Offset+FieldSize])
}

// Float32 decodes the field from buf as a float.
func (f Field) Float32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[f.Offset : f.Offset+FieldSize]))
}

// Truncated decodes a float field and truncates it toward zero.
func (f Field) Truncated(buf []byte) int64 {
	return int64(f.Float32(buf))
}

// Preamble fields, relative to the start of the file.
var (
	HeaderElementCount     = Field{Name: "element_count", Offset: 12, Kind: KindInt32}
	HeaderPayloadWordCount = Field{Name: "payload_word_count", Offset: 28, Kind: KindInt32}
	HeaderNodeCount        = Field{Name: "node_count", Offset: 36, Kind: KindInt32}
	HeaderRecordAreaOffset = Field{Name: "record_area_offset", Offset: 80, Kind: KindInt32}
)

// Record area prefix fields, relative to the record area offset.
var (
	LayoutRecordSizeWords = Field{Name: "record_size_words", Offset: 4, Kind: KindFloat32}
	LayoutNodesPerElement = Field{Name: "nodes_per_element", Offset: 12, Kind: KindFloat32}
)

// Element record fields, relative to the start of a record.
var (
	RecordElementID = Field{Name: "element_id", Offset: 0, Kind: KindFloat32}
	// RecordStress is the first of six consecutive stress components.
	RecordStress = Field{Name: "element_stress", Offset: 56, Kind: KindFloat32}
)

// RecordFirstNodeSlot is the record offset of node slot 0.
const RecordFirstNodeSlot = 116

// Node slot fields, relative to the start of a slot.
var (
	SlotNodeID = Field{Name: "node_id", Offset: 0, Kind: KindFloat32}
	SlotStress = Field{Name: "node_stress", Offset: 4, Kind: KindFloat32}
)

const (
	// HeaderSize is the number of bytes needed to decode the preamble.
	HeaderSize = 84

	// LayoutSize is the number of bytes at the record area offset needed
	// to decode the record layout.
	LayoutSize = 16

	// SlotSize is the stride between node slots (8 fields).
	SlotSize = 8 * FieldSize

	// WordsPerElement is the payload word count attributed to one element.
	// The effective element count is PayloadWordCount / WordsPerElement,
	// independent of the number of nodes per element.
	WordsPerElement = 189

	// PascalsPerMegapascal scales decoded stresses to megapascals.
	PascalsPerMegapascal = 1_000_000
)

// Components is the number of independent stress-tensor components.
const Components = 6

// ComponentNames lists the tensor components in on-disk order.
var ComponentNames = [Components]string{"SX", "SY", "SZ", "TXY", "TXZ", "TYZ"}

// Tensor is a symmetric stress tensor in the order of ComponentNames.
type Tensor [Components]float64

// decodeTensor reads six consecutive floats starting at first and scales
// them from pascals to megapascals.
func decodeTensor(buf []byte, first Field) Tensor {
	var t Tensor
	for i := range t {
		f := Field{Offset: first.Offset + i*FieldSize, Kind: KindFloat32}
		t[i] = float64(f.Float32(buf)) / PascalsPerMegapascal
	}
	return t
}

// FileHeader is the decoded preamble.
type FileHeader struct {
	// ElementCountDeclared is informational; EffectiveElementCount governs decoding.
	ElementCountDeclared uint32
	// NodeCount is informational; node ids are observed, not trusted.
	NodeCount        uint32
	PayloadWordCount uint32
	RecordAreaOffset uint32
}

// EffectiveElementCount returns the number of records to decode.
func (h FileHeader) EffectiveElementCount() int {
	return int(h.PayloadWordCount / WordsPerElement)
}

// DecodeHeader decodes the preamble from the first HeaderSize bytes.
func DecodeHeader(buf []byte) (FileHeader, error) {
	if len(buf) < HeaderSize {
		return FileHeader{}, &FormatError{Stage: StageHeader, Index: -1, Err: ErrTruncated}
	}
	return FileHeader{
		ElementCountDeclared: HeaderElementCount.Uint32(buf),
		NodeCount:            HeaderNodeCount.Uint32(buf),
		PayloadWordCount:     HeaderPayloadWordCount.Uint32(buf),
		RecordAreaOffset:     HeaderRecordAreaOffset.Uint32(buf),
	}, nil
}

// RecordLayout describes the fixed shape of every record in a file.
type RecordLayout struct {
	RecordSizeWords uint32
	NodesPerElement uint32
}

// RecordSize returns the record size in bytes.
func (l RecordLayout) RecordSize() int {
	return int(l.RecordSizeWords) * FieldSize
}

// DecodedSize is the length of the record prefix holding every field the
// decoder reads. The remainder of each record is skipped.
func (l RecordLayout) DecodedSize() int {
	size := RecordStress.Offset + Components*FieldSize
	if l.NodesPerElement > 0 {
		size = RecordFirstNodeSlot + int(l.NodesPerElement)*SlotSize
	}
	return size
}

// Validate reports whether records of this layout can be decoded.
func (l RecordLayout) Validate() error {
	if l.RecordSize() < l.DecodedSize() {
		return &FormatError{Stage: StageLayout, Index: -1, Err: ErrInvalidLayout}
	}
	return nil
}

// DecodeLayout decodes the record layout from the LayoutSize bytes at the
// record area offset. Negative float values truncate to zero.
func DecodeLayout(buf []byte) (RecordLayout, error) {
	if len(buf) < LayoutSize {
		return RecordLayout{}, &FormatError{Stage: StageLayout, Index: -1, Err: ErrTruncated}
	}
	return RecordLayout{
		RecordSizeWords: clampWords(LayoutRecordSizeWords.Truncated(buf)),
		NodesPerElement: clampWords(LayoutNodesPerElement.Truncated(buf)),
	}, nil
}

func clampWords(v int64) uint32 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}
