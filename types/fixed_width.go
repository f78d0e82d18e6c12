package types

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"mit.edu/dsg/planopt/block"
	"mit.edu/dsg/planopt/common"
)

// fixedWidthType carries the parts shared by every fixed width type.
type fixedWidthType struct {
	name string
	size int
}

func (t fixedWidthType) Name() string {
	return t.name
}

func (t fixedWidthType) String() string {
	return t.name
}

func (t fixedWidthType) FixedSize() (int, bool) {
	return t.size, true
}

func (t fixedWidthType) CreateBuilder(expectedEntries int) block.Builder {
	return block.NewFixedWidthBuilder(t.size, expectedEntries)
}

// longType is a fixed width type whose entries are a single int64.
type longType struct {
	fixedWidthType
	hash func(v int64) uint64
}

func (t longType) Comparable() bool {
	return true
}

func (t longType) Encoding() common.Type {
	return common.IntType
}

func (t longType) Equal(left block.Block, leftPos int, right block.Block, rightPos int) bool {
	return left.GetLong(leftPos, 0) == right.GetLong(rightPos, 0)
}

func (t longType) Hash(b block.Block, pos int) uint64 {
	return t.hash(b.GetLong(pos, 0))
}

func (t longType) AppendTo(b block.Block, pos int, builder block.Builder) {
	if b.IsNull(pos) {
		builder.AppendNull()
		return
	}
	builder.WriteLong(b.GetLong(pos, 0)).CloseEntry()
}

func (t longType) ObjectValue(b block.Block, pos int) common.Value {
	if b.IsNull(pos) {
		return common.NewNullInt()
	}
	return common.NewIntValue(b.GetLong(pos, 0))
}

func (t longType) WriteValue(builder block.Builder, v common.Value) {
	common.Assert(v.Type() == common.IntType, "%s cannot encode a %s value", t.name, v.Type())
	if v.IsNull() {
		builder.AppendNull()
		return
	}
	builder.WriteLong(v.IntValue()).CloseEntry()
}

func xxhashLong(v int64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return xxhash.Sum64(buf[:])
}

// BIGINT is the 64-bit signed integer type.
var BIGINT Type = &longType{
	fixedWidthType: fixedWidthType{name: "bigint", size: 8},
	hash:           xxhashLong,
}

// ID is an opaque 64-bit identifier type. Its hash is the identifier itself,
// which is already uniformly distributed by whoever minted it.
var ID Type = &longType{
	fixedWidthType: fixedWidthType{name: "id", size: 8},
	hash:           func(v int64) uint64 { return uint64(v) },
}

// booleanType encodes booleans in a single byte.
type booleanType struct {
	fixedWidthType
}

// BOOLEAN is the SQL boolean type. Decoded booleans are integers 0 and 1.
var BOOLEAN Type = booleanType{fixedWidthType{name: "boolean", size: 1}}

func (t booleanType) Comparable() bool {
	return true
}

func (t booleanType) Encoding() common.Type {
	return common.IntType
}

func (t booleanType) Equal(left block.Block, leftPos int, right block.Block, rightPos int) bool {
	return left.GetSlice(leftPos)[0] == right.GetSlice(rightPos)[0]
}

func (t booleanType) Hash(b block.Block, pos int) uint64 {
	if b.GetSlice(pos)[0] != 0 {
		return 1231
	}
	return 1237
}

func (t booleanType) AppendTo(b block.Block, pos int, builder block.Builder) {
	if b.IsNull(pos) {
		builder.AppendNull()
		return
	}
	builder.WriteBytes(b.GetSlice(pos)).CloseEntry()
}

func (t booleanType) ObjectValue(b block.Block, pos int) common.Value {
	if b.IsNull(pos) {
		return common.NewNullInt()
	}
	return common.NewBoolValue(b.GetSlice(pos)[0] != 0)
}

func (t booleanType) WriteValue(builder block.Builder, v common.Value) {
	common.Assert(v.Type() == common.IntType, "boolean cannot encode a %s value", v.Type())
	if v.IsNull() {
		builder.AppendNull()
		return
	}
	var encoded byte
	if v.IntValue() != 0 {
		encoded = 1
	}
	builder.WriteBytes([]byte{encoded}).CloseEntry()
}
