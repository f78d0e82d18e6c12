package common

import (
	"fmt"
	"strconv"
)

// Type is the decoded representation class of a Value. SQL types (see package
// types) map onto one of these.
type Type int8

const (
	// For uninitialized Values
	DefaultType Type = iota
	IntType
	StringType
)

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// ObjectID is a unique identifier for a table in the catalog.
type ObjectID uint32

const InvalidObjectID ObjectID = 0

// Value represents a decoded data item: a constant in an expression, a cell
// read out of a block, or a row stored by the memory connector. Booleans are
// carried as integers (0 or 1), as in the expression evaluator.
type Value struct {
	t                Type
	null             bool
	underlyingInt    int64
	underlyingString string
}

// IsNil returns true if the Value is nil and uninitialized. This is NOT to be confused with NULL values.
func (v Value) IsNil() bool {
	return v.t == DefaultType
}

// NewIntValue creates a new integer Value.
func NewIntValue(v int64) Value {
	return Value{
		t:             IntType,
		underlyingInt: v,
	}
}

// NewBoolValue creates the integer encoding of a boolean.
func NewBoolValue(b bool) Value {
	if b {
		return NewIntValue(1)
	}
	return NewIntValue(0)
}

// NewStringValue creates a new string Value.
func NewStringValue(v string) Value {
	return Value{
		t:                StringType,
		underlyingString: v,
	}
}

// NewNullInt creates a NULL integer Value.
func NewNullInt() Value {
	return Value{
		t:    IntType,
		null: true,
	}
}

// NewNullString creates a NULL string Value.
func NewNullString() Value {
	return Value{
		t:    StringType,
		null: true,
	}
}

// Type returns the type of the Value.
func (v Value) Type() Type {
	return v.t
}

// IsNull returns true if the Value is NULL.
func (v Value) IsNull() bool {
	return v.null
}

// IntValue returns the underlying (non-NULL) integer.
func (v Value) IntValue() int64 {
	Assert(v.t == IntType, "type mismatch in IntValue")
	Assert(!v.null, "accessing value of NULL int")
	return v.underlyingInt
}

// StringValue returns the underlying (non-NULL) string.
func (v Value) StringValue() string {
	Assert(v.t == StringType, "type mismatch in StringValue")
	Assert(!v.null, "accessing value of NULL string")
	return v.underlyingString
}

func (v Value) String() string {
	if v.null {
		return "NULL"
	}
	switch v.t {
	case IntType:
		return strconv.FormatInt(v.underlyingInt, 10)
	case StringType:
		return fmt.Sprintf("'%s'", v.underlyingString)
	}
	return "<nil>"
}

// Compare compares two Values.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
// NULL is considered less than non-NULL values.
func (v Value) Compare(other Value) int {
	Assert(v.t == other.t, "type mismatch in comparison")

	if v.null && other.null {
		return 0
	}
	if v.null {
		return -1
	}
	if other.null {
		return 1
	}

	switch v.t {
	case IntType:
		if v.underlyingInt < other.underlyingInt {
			return -1
		}
		if v.underlyingInt > other.underlyingInt {
			return 1
		}
		return 0
	case StringType:
		if v.underlyingString < other.underlyingString {
			return -1
		}
		if v.underlyingString > other.underlyingString {
			return 1
		}
		return 0
	}
	panic("unreachable")
}
