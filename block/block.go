package block

import (
	"encoding/binary"
	"fmt"

	"mit.edu/dsg/planopt/common"
)

// Block is an immutable column of encoded values. Positions are addressed
// from 0 to PositionCount()-1. A Block never interprets its bytes; the scalar
// type that owns the column does (see package types).
type Block interface {
	// PositionCount returns the number of entries in the block.
	PositionCount() int

	// IsNull reports whether the entry at pos is NULL.
	IsNull(pos int) bool

	// GetLong reads 8 bytes at the given byte offset of the entry at pos.
	GetLong(pos int, offset int) int64

	// GetSliceLength returns the encoded length of the entry at pos.
	GetSliceLength(pos int) int

	// GetSlice returns the encoded bytes of the entry at pos. The returned
	// slice aliases the block and must not be modified.
	GetSlice(pos int) []byte

	// MayHaveNull reports whether any entry is NULL.
	MayHaveNull() bool
}

// FixedWidthBlock stores entries of a constant encoded size back to back.
type FixedWidthBlock struct {
	entrySize int
	count     int
	data      []byte
	nulls     Bitmap
}

func (b *FixedWidthBlock) PositionCount() int {
	return b.count
}

func (b *FixedWidthBlock) IsNull(pos int) bool {
	b.checkPosition(pos)
	return b.nulls.LoadBit(pos)
}

func (b *FixedWidthBlock) GetLong(pos int, offset int) int64 {
	b.checkPosition(pos)
	common.Assert(offset >= 0 && offset+8 <= b.entrySize, "offset %d out of entry of size %d", offset, b.entrySize)
	start := pos*b.entrySize + offset
	return int64(binary.LittleEndian.Uint64(b.data[start : start+8]))
}

func (b *FixedWidthBlock) GetSliceLength(pos int) int {
	b.checkPosition(pos)
	return b.entrySize
}

func (b *FixedWidthBlock) GetSlice(pos int) []byte {
	b.checkPosition(pos)
	start := pos * b.entrySize
	return b.data[start : start+b.entrySize]
}

func (b *FixedWidthBlock) MayHaveNull() bool {
	return b.nulls.FindFirstSet(0) != -1
}

// EntrySize returns the fixed encoded width of every entry.
func (b *FixedWidthBlock) EntrySize() int {
	return b.entrySize
}

func (b *FixedWidthBlock) String() string {
	return fmt.Sprintf("FixedWidthBlock{entrySize=%d, positions=%d}", b.entrySize, b.count)
}

func (b *FixedWidthBlock) checkPosition(pos int) {
	common.Assert(pos >= 0 && pos < b.count, "position %d out of block of %d entries", pos, b.count)
}

// VariableWidthBlock stores entries of arbitrary encoded length. Entry i spans
// data[offsets[i]:offsets[i+1]].
type VariableWidthBlock struct {
	offsets []int
	data    []byte
	nulls   Bitmap
}

func (b *VariableWidthBlock) PositionCount() int {
	return len(b.offsets) - 1
}

func (b *VariableWidthBlock) IsNull(pos int) bool {
	b.checkPosition(pos)
	return b.nulls.LoadBit(pos)
}

func (b *VariableWidthBlock) GetLong(pos int, offset int) int64 {
	slice := b.GetSlice(pos)
	common.Assert(offset >= 0 && offset+8 <= len(slice), "offset %d out of entry of size %d", offset, len(slice))
	return int64(binary.LittleEndian.Uint64(slice[offset : offset+8]))
}

func (b *VariableWidthBlock) GetSliceLength(pos int) int {
	b.checkPosition(pos)
	return b.offsets[pos+1] - b.offsets[pos]
}

func (b *VariableWidthBlock) GetSlice(pos int) []byte {
	b.checkPosition(pos)
	return b.data[b.offsets[pos]:b.offsets[pos+1]]
}

func (b *VariableWidthBlock) MayHaveNull() bool {
	return b.nulls.FindFirstSet(0) != -1
}

func (b *VariableWidthBlock) String() string {
	return fmt.Sprintf("VariableWidthBlock{positions=%d, size=%d}", b.PositionCount(), len(b.data))
}

func (b *VariableWidthBlock) checkPosition(pos int) {
	common.Assert(pos >= 0 && pos < b.PositionCount(), "position %d out of block of %d entries", pos, b.PositionCount())
}

// Page is a set of equally sized blocks, one per column.
type Page struct {
	blocks []Block
	count  int
}

// NewPage groups blocks into a page. All blocks must have the same position
// count.
func NewPage(count int, blocks ...Block) Page {
	for i, b := range blocks {
		common.Assert(b.PositionCount() == count, "block %d has %d positions, page has %d", i, b.PositionCount(), count)
	}
	return Page{blocks: blocks, count: count}
}

func (p Page) PositionCount() int {
	return p.count
}

func (p Page) ChannelCount() int {
	return len(p.blocks)
}

func (p Page) Block(channel int) Block {
	return p.blocks[channel]
}
