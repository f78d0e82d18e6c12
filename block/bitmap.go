package block

import (
	"math/bits"

	"mit.edu/dsg/planopt/common"
)

// Bitmap is a growable bit set used to record NULL positions of a block.
// Scans operate on whole uint64 words so that long runs of non-null values
// are skipped cheaply.
type Bitmap struct {
	words   []uint64
	numBits int
}

// NewBitmap returns a bitmap of numBits cleared bits.
func NewBitmap(numBits int) Bitmap {
	return Bitmap{
		words:   make([]uint64, (numBits+63)/64),
		numBits: numBits,
	}
}

// Len returns the number of addressable bits.
func (b *Bitmap) Len() int {
	return b.numBits
}

// Append adds one bit at the end of the bitmap.
func (b *Bitmap) Append(on bool) {
	if b.numBits == len(b.words)*64 {
		b.words = append(b.words, 0)
	}
	b.numBits++
	b.SetBit(b.numBits-1, on)
}

// SetBit sets the bit at index i to the given value.
// Returns the previous value of the bit.
func (b *Bitmap) SetBit(i int, on bool) (originalValue bool) {
	common.Assert(i >= 0 && i < b.numBits, "bitmap index %d out of bounds [0, %d)", i, b.numBits)
	wordIdx := i / 64
	mask := uint64(1) << uint(i%64)

	ptr := &b.words[wordIdx]
	originalValue = (*ptr & mask) != 0
	if on {
		*ptr |= mask
	} else {
		*ptr &^= mask
	}
	return originalValue
}

// LoadBit returns the value of the bit at index i.
func (b *Bitmap) LoadBit(i int) bool {
	common.Assert(i >= 0 && i < b.numBits, "bitmap index %d out of bounds [0, %d)", i, b.numBits)
	return (b.words[i/64] & (1 << uint(i%64))) != 0
}

// FindFirstSet returns the index of the first set bit at or after start, or -1
// if there is none.
func (b *Bitmap) FindFirstSet(start int) int {
	common.Assert(start >= 0 && start <= b.numBits, "invalid bitmap start %d", start)
	if start == b.numBits {
		return -1
	}
	for i := start / 64; i < len(b.words); i++ {
		word := b.words[i]
		if i == start/64 {
			word &= ^uint64(0) << uint(start%64)
		}
		// All clear, skip the entire word
		if word == 0 {
			continue
		}
		idx := i*64 + bits.TrailingZeros64(word)
		if idx >= b.numBits {
			return -1
		}
		return idx
	}
	return -1
}

// Clone returns an independent copy of the bitmap.
func (b *Bitmap) Clone() Bitmap {
	words := make([]uint64, len(b.words))
	copy(words, b.words)
	return Bitmap{words: words, numBits: b.numBits}
}
