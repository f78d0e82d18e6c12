package execution

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
	"mit.edu/dsg/planopt/common"
)

type hashEntry[T any] struct {
	key   []common.Value
	value T
}

// ExecutionHashTable maps composite keys of decoded values to T. Keys are
// hashed with xxhash and compared value by value within a bucket. It is
// meant for single-threaded operators such as hash joins.
type ExecutionHashTable[T any] struct {
	buckets map[uint64][]hashEntry[T]
	digest  *xxhash.Digest
	scratch [8]byte
}

func NewExecutionHashTable[T any]() *ExecutionHashTable[T] {
	return &ExecutionHashTable[T]{
		buckets: make(map[uint64][]hashEntry[T]),
		digest:  xxhash.New(),
	}
}

func (ht *ExecutionHashTable[T]) hash(key []common.Value) uint64 {
	ht.digest.Reset()
	for _, v := range key {
		switch {
		case v.IsNull():
			_, _ = ht.digest.Write([]byte{0})
		case v.Type() == common.StringType:
			_, _ = ht.digest.Write([]byte{1})
			_, _ = ht.digest.WriteString(v.StringValue())
		default:
			binary.LittleEndian.PutUint64(ht.scratch[:], uint64(v.IntValue()))
			_, _ = ht.digest.Write([]byte{2})
			_, _ = ht.digest.Write(ht.scratch[:])
		}
	}
	return ht.digest.Sum64()
}

func keysEqual(a, b []common.Value) bool {
	return slices.EqualFunc(a, b, func(x, y common.Value) bool {
		return x.Type() == y.Type() && x.Compare(y) == 0
	})
}

// Insert sets the value of key. The table keeps its own copy of key.
func (ht *ExecutionHashTable[T]) Insert(key []common.Value, value T) {
	h := ht.hash(key)
	bucket := ht.buckets[h]
	for i := range bucket {
		if keysEqual(bucket[i].key, key) {
			bucket[i].value = value
			return
		}
	}
	ht.buckets[h] = append(bucket, hashEntry[T]{key: slices.Clone(key), value: value})
}

// Get returns the value of key.
func (ht *ExecutionHashTable[T]) Get(key []common.Value) (value T, exists bool) {
	for _, e := range ht.buckets[ht.hash(key)] {
		if keysEqual(e.key, key) {
			return e.value, true
		}
	}
	return value, false
}

// Iterate loops over all key-value pairs in the hash table and calls the provided callback function for each.
func (ht *ExecutionHashTable[T]) Iterate(iter func(key []common.Value, value T)) {
	for _, bucket := range ht.buckets {
		for _, e := range bucket {
			iter(e.key, e.value)
		}
	}
}
