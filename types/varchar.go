package types

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"mit.edu/dsg/planopt/block"
	"mit.edu/dsg/planopt/common"
)

type varcharType struct{}

// VARCHAR is the unbounded variable width string type.
var VARCHAR Type = varcharType{}

func (varcharType) Name() string {
	return "varchar"
}

func (varcharType) String() string {
	return "varchar"
}

func (varcharType) FixedSize() (int, bool) {
	return 0, false
}

func (varcharType) Comparable() bool {
	return true
}

func (varcharType) Encoding() common.Type {
	return common.StringType
}

func (varcharType) CreateBuilder(expectedEntries int) block.Builder {
	return block.NewVariableWidthBuilder(expectedEntries)
}

func (varcharType) Equal(left block.Block, leftPos int, right block.Block, rightPos int) bool {
	if left.GetSliceLength(leftPos) != right.GetSliceLength(rightPos) {
		return false
	}
	return bytes.Equal(left.GetSlice(leftPos), right.GetSlice(rightPos))
}

func (varcharType) Hash(b block.Block, pos int) uint64 {
	return xxhash.Sum64(b.GetSlice(pos))
}

func (varcharType) AppendTo(b block.Block, pos int, builder block.Builder) {
	if b.IsNull(pos) {
		builder.AppendNull()
		return
	}
	builder.WriteBytes(b.GetSlice(pos)).CloseEntry()
}

func (varcharType) ObjectValue(b block.Block, pos int) common.Value {
	if b.IsNull(pos) {
		return common.NewNullString()
	}
	return common.NewStringValue(string(b.GetSlice(pos)))
}

func (varcharType) WriteValue(builder block.Builder, v common.Value) {
	common.Assert(v.Type() == common.StringType, "varchar cannot encode a %s value", v.Type())
	if v.IsNull() {
		builder.AppendNull()
		return
	}
	builder.WriteBytes([]byte(v.StringValue())).CloseEntry()
}
