package benchutil

import (
	"encoding/binary"
	"math"
)

// Offsets of the synthetic STE layout. They mirror the format package's
// field table but are spelled out here so tests exercise the decoder
// against an independent encoding.
const (
	offElementCount  = 12
	offPayloadWords  = 28
	offNodeCount     = 36
	offRecordArea    = 80
	headerSize       = 84
	offRecordWords   = 4
	offNodesPerElem  = 12
	offElementStress = 56
	offFirstSlot     = 116
	slotSize         = 32
	wordsPerElement  = 189
)

// Node is one synthetic node slot. Stresses are in pascals.
type Node struct {
	ID     float32
	Stress [6]float32
}

// Element is one synthetic element record. Stresses are in pascals.
type Element struct {
	ID     float32
	Stress [6]float32
	Nodes  []Node
}

// File describes a synthetic STE file. Zero values select defaults.
type File struct {
	// ElementCountDeclared defaults to len(Elements).
	ElementCountDeclared uint32
	// NodeCount defaults to the largest node id.
	NodeCount uint32
	// PayloadWordCount defaults to len(Elements)*189.
	PayloadWordCount uint32
	// RecordAreaOffset defaults to the end of the preamble (84).
	RecordAreaOffset uint32
	// NodesPerElement defaults to the node count of the first element.
	NodesPerElement uint32
	// RecordSizeWords defaults to the smallest size that fits every slot.
	RecordSizeWords uint32
	Elements        []Element
}

func (f File) nodesPerElement() uint32 {
	if f.NodesPerElement > 0 || len(f.Elements) == 0 {
		return f.NodesPerElement
	}
	return uint32(len(f.Elements[0].Nodes))
}

func (f File) recordSizeWords() uint32 {
	if f.RecordSizeWords > 0 {
		return f.RecordSizeWords
	}
	return uint32(offFirstSlot+int(f.nodesPerElement())*slotSize) / 4
}

func (f File) recordAreaOffset() uint32 {
	if f.RecordAreaOffset > 0 {
		return f.RecordAreaOffset
	}
	return headerSize
}

// Bytes encodes the file. Only the fields the extractor reads are written;
// every other byte is zero. Each record repeats the layout words at
// offsets 4 and 12, so the first record doubles as the layout prefix.
func (f File) Bytes() []byte {
	npe := f.nodesPerElement()
	words := f.recordSizeWords()
	area := int(f.recordAreaOffset())
	recSize := int(words) * 4

	size := area + len(f.Elements)*recSize
	if len(f.Elements) == 0 {
		size = area + offNodesPerElem + 4
	}
	size = max(size, headerSize)
	buf := make([]byte, size)

	declared := f.ElementCountDeclared
	if declared == 0 {
		declared = uint32(len(f.Elements))
	}
	payload := f.PayloadWordCount
	if payload == 0 {
		payload = uint32(len(f.Elements)) * wordsPerElement
	}
	nodeCount := f.NodeCount
	if nodeCount == 0 {
		nodeCount = uint32(f.MaxNodeID())
	}

	putFloat(buf[area+offRecordWords:], float32(words))
	putFloat(buf[area+offNodesPerElem:], float32(npe))

	for i, e := range f.Elements {
		rec := buf[area+i*recSize:]
		putFloat(rec[0:], e.ID)
		putFloat(rec[offRecordWords:], float32(words))
		putFloat(rec[offNodesPerElem:], float32(npe))
		for c, v := range e.Stress {
			putFloat(rec[offElementStress+4*c:], v)
		}
		for k, n := range e.Nodes {
			if k >= int(npe) {
				break
			}
			slot := rec[offFirstSlot+k*slotSize:]
			putFloat(slot[0:], n.ID)
			for c, v := range n.Stress {
				putFloat(slot[4+4*c:], v)
			}
		}
	}

	// Header fields go in last so an overlapping record area cannot clobber them.
	binary.LittleEndian.PutUint32(buf[offElementCount:], declared)
	binary.LittleEndian.PutUint32(buf[offPayloadWords:], payload)
	binary.LittleEndian.PutUint32(buf[offNodeCount:], nodeCount)
	binary.LittleEndian.PutUint32(buf[offRecordArea:], uint32(area))
	return buf
}

// MaxNodeID returns the largest node id referenced by any element.
func (f File) MaxNodeID() int64 {
	var maxID int64
	for _, e := range f.Elements {
		for _, n := range e.Nodes {
			maxID = max(maxID, int64(n.ID))
		}
	}
	return maxID
}

func putFloat(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
