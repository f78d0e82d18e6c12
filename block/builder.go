package block

import (
	"encoding/binary"

	"mit.edu/dsg/planopt/common"
)

// Builder accumulates entries for a new Block. An entry is opened implicitly by
// the first write and must be closed with CloseEntry before the next entry (or
// a NULL) is appended; Build requires that no entry is open. Keeping entries
// explicitly closed is what keeps the layout of the resulting block
// self-consistent.
type Builder interface {
	// AppendNull appends a NULL entry.
	AppendNull() Builder

	// WriteLong writes 8 bytes to the open entry.
	WriteLong(v int64) Builder

	// WriteBytes writes raw encoded bytes to the open entry.
	WriteBytes(b []byte) Builder

	// CloseEntry finishes the open entry.
	CloseEntry() Builder

	// PositionCount returns the number of closed entries.
	PositionCount() int

	// Build returns the block. The builder must not be used afterwards.
	Build() Block
}

// FixedWidthBuilder builds a FixedWidthBlock.
type FixedWidthBuilder struct {
	entrySize int
	data      []byte
	nulls     Bitmap
	count     int
	open      int // bytes written to the open entry
}

// NewFixedWidthBuilder returns a builder for entries of entrySize bytes.
func NewFixedWidthBuilder(entrySize int, expectedEntries int) *FixedWidthBuilder {
	common.Assert(entrySize > 0, "fixed width entries must have a positive size")
	return &FixedWidthBuilder{
		entrySize: entrySize,
		data:      make([]byte, 0, entrySize*expectedEntries),
		nulls:     NewBitmap(0),
	}
}

func (b *FixedWidthBuilder) AppendNull() Builder {
	common.Assert(b.open == 0, "cannot append NULL while an entry is open")
	b.data = append(b.data, make([]byte, b.entrySize)...)
	b.nulls.Append(true)
	b.count++
	return b
}

func (b *FixedWidthBuilder) WriteLong(v int64) Builder {
	common.Assert(b.open+8 <= b.entrySize, "write overflows entry of size %d", b.entrySize)
	b.data = binary.LittleEndian.AppendUint64(b.data, uint64(v))
	b.open += 8
	return b
}

func (b *FixedWidthBuilder) WriteBytes(p []byte) Builder {
	common.Assert(b.open+len(p) <= b.entrySize, "write overflows entry of size %d", b.entrySize)
	b.data = append(b.data, p...)
	b.open += len(p)
	return b
}

func (b *FixedWidthBuilder) CloseEntry() Builder {
	common.Assert(b.open == b.entrySize, "entry closed with %d of %d bytes written", b.open, b.entrySize)
	b.nulls.Append(false)
	b.count++
	b.open = 0
	return b
}

func (b *FixedWidthBuilder) PositionCount() int {
	return b.count
}

func (b *FixedWidthBuilder) Build() Block {
	common.Assert(b.open == 0, "cannot build a block with an open entry")
	return &FixedWidthBlock{
		entrySize: b.entrySize,
		count:     b.count,
		data:      b.data,
		nulls:     b.nulls,
	}
}

// VariableWidthBuilder builds a VariableWidthBlock.
type VariableWidthBuilder struct {
	offsets []int
	data    []byte
	nulls   Bitmap
	open    bool
}

// NewVariableWidthBuilder returns a builder for entries of any length.
func NewVariableWidthBuilder(expectedEntries int) *VariableWidthBuilder {
	offsets := make([]int, 1, expectedEntries+1)
	return &VariableWidthBuilder{
		offsets: offsets,
		nulls:   NewBitmap(0),
	}
}

func (b *VariableWidthBuilder) AppendNull() Builder {
	common.Assert(!b.open, "cannot append NULL while an entry is open")
	b.offsets = append(b.offsets, len(b.data))
	b.nulls.Append(true)
	return b
}

func (b *VariableWidthBuilder) WriteLong(v int64) Builder {
	b.data = binary.LittleEndian.AppendUint64(b.data, uint64(v))
	b.open = true
	return b
}

func (b *VariableWidthBuilder) WriteBytes(p []byte) Builder {
	b.data = append(b.data, p...)
	b.open = true
	return b
}

func (b *VariableWidthBuilder) CloseEntry() Builder {
	b.offsets = append(b.offsets, len(b.data))
	b.nulls.Append(false)
	b.open = false
	return b
}

func (b *VariableWidthBuilder) PositionCount() int {
	return len(b.offsets) - 1
}

func (b *VariableWidthBuilder) Build() Block {
	common.Assert(!b.open, "cannot build a block with an open entry")
	return &VariableWidthBlock{
		offsets: b.offsets,
		data:    b.data,
		nulls:   b.nulls,
	}
}
