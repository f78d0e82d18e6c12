package types

import (
	"fmt"

	"mit.edu/dsg/planopt/block"
	"mit.edu/dsg/planopt/common"
)

// Type is a SQL scalar type together with its block encoding. Plan nodes
// reference types through their output symbols; any code that needs to
// compare, hash or relocate values held in blocks goes through these methods
// instead of reinterpreting the encoded bytes itself.
//
// Equal, Hash and AppendTo's copy path are defined on non-NULL entries;
// callers check Block.IsNull first.
type Type interface {
	fmt.Stringer

	// Name is the SQL name of the type, e.g. "bigint".
	Name() string

	// FixedSize returns the encoded width of every entry and true, or false
	// for variable width types.
	FixedSize() (int, bool)

	// Comparable reports whether Equal and Hash are meaningful.
	Comparable() bool

	// Encoding returns the representation class of decoded values.
	Encoding() common.Type

	// CreateBuilder returns an empty builder for a column of this type.
	CreateBuilder(expectedEntries int) block.Builder

	// Equal compares two entries bit-exactly over their encoded form.
	Equal(left block.Block, leftPos int, right block.Block, rightPos int) bool

	// Hash returns a 64-bit hash consistent with Equal.
	Hash(b block.Block, pos int) uint64

	// AppendTo copies the entry at pos into builder, appending NULL for a NULL
	// entry. The destination entry is always closed.
	AppendTo(b block.Block, pos int, builder block.Builder)

	// ObjectValue decodes the entry at pos.
	ObjectValue(b block.Block, pos int) common.Value

	// WriteValue encodes v as a new, closed entry of builder.
	WriteValue(builder block.Builder, v common.Value)
}

var registry = map[string]Type{
	BIGINT.Name():  BIGINT,
	BOOLEAN.Name(): BOOLEAN,
	VARCHAR.Name(): VARCHAR,
	ID.Name():      ID,
}

// Lookup resolves a type by its SQL name.
func Lookup(name string) (Type, error) {
	if t, ok := registry[name]; ok {
		return t, nil
	}
	return nil, common.NewError(common.NoSuchObjectError, "unknown type '%s'", name)
}

// Same reports whether two types are the same SQL type.
func Same(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name() == b.Name()
}

// BuildBlock encodes values into a new block of type t.
func BuildBlock(t Type, values ...common.Value) block.Block {
	builder := t.CreateBuilder(len(values))
	for _, v := range values {
		t.WriteValue(builder, v)
	}
	return builder.Build()
}
