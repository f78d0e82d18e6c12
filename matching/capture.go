package matching

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var captureSeq atomic.Int64

// Capture is a typed key under which a pattern records the value it matched.
// Every call to NewCapture returns a distinct key, even for the same T; keys
// carry no state besides their identity and are meant to be declared once as
// package-level variables next to the rule that uses them.
type Capture[T any] struct {
	seq int64
}

// NewCapture declares a new capture key.
func NewCapture[T any]() *Capture[T] {
	return &Capture[T]{seq: captureSeq.Add(1)}
}

func (c *Capture[T]) String() string {
	return fmt.Sprintf("@%d", c.seq)
}

// Captures maps capture keys to the values bound during one successful match.
// It is an immutable persistent list: binding a key returns a new Captures
// sharing its tail with the receiver. The zero value is empty.
type Captures struct {
	head *binding
	size int
}

type binding struct {
	key   any
	value any
	next  *binding
}

// Len returns the number of bindings.
func (c Captures) Len() int {
	return c.size
}

func (c Captures) with(key any, value any) Captures {
	return Captures{
		head: &binding{key: key, value: value, next: c.head},
		size: c.size + 1,
	}
}

func (c Captures) lookup(key any) (any, bool) {
	for b := c.head; b != nil; b = b.next {
		if b.key == key {
			return b.value, true
		}
	}
	return nil, false
}

// Find returns the value bound to capture, if any.
func Find[T any](c Captures, capture *Capture[T]) (T, bool) {
	v, ok := c.lookup(capture)
	if !ok {
		var zero T
		return zero, false
	}
	// Only a Pattern[T] can bind a Capture[T], so the assertion cannot fail.
	return v.(T), true
}

// Get returns the value bound to capture. A rule may call Get for every
// capture its own pattern declares; asking for anything else is a programming
// error and panics with an assertion failure.
func Get[T any](c Captures, capture *Capture[T]) T {
	v, ok := Find(c, capture)
	if !ok {
		panic(errors.AssertionFailedf("capture %s is not bound in %s", capture, c))
	}
	return v
}

func (c Captures) String() string {
	var sb strings.Builder
	sb.WriteString("Captures{")
	for b := c.head; b != nil; b = b.next {
		fmt.Fprintf(&sb, "%v=%v", b.key, b.value)
		if b.next != nil {
			sb.WriteString(", ")
		}
	}
	sb.WriteString("}")
	return sb.String()
}
