package matching

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// Resolver replaces indirections (such as memo group references) with the
// value they stand for. It is applied to every value before its type is
// checked, so patterns never see an indirection.
type Resolver interface {
	Resolve(v any) any
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(v any) any

func (f ResolverFunc) Resolve(v any) any {
	return f(v)
}

// NoResolve leaves values as they are.
var NoResolve Resolver = ResolverFunc(func(v any) any { return v })

// Matcher is a Pattern with its type parameter erased. It is what nested
// patterns are stored as, since a property of type P usually leads to a
// pattern over a narrower type than P.
type Matcher interface {
	fmt.Stringer

	// RootType returns the type the pattern's root filter requires.
	RootType() reflect.Type

	match(v any, captures Captures, r Resolver) (Captures, bool)
}

type step[T any] struct {
	desc  string
	match func(node T, captures Captures, r Resolver) (Captures, bool)
}

// Pattern describes a required shape rooted at a value of type T: a root type
// filter, zero or more property patterns and predicates evaluated in
// declaration order, and optional captures of the matched value.
//
// Patterns are immutable. With, Matching and CapturedAs return new patterns,
// so a pattern can be shared by any number of concurrent matches.
type Pattern[T any] struct {
	steps    []step[T]
	captures []*Capture[T]
}

// TypeOf returns a pattern matching any value assignable to T.
func TypeOf[T any]() *Pattern[T] {
	return &Pattern[T]{}
}

// With adds a property pattern. The property must be defined on a type T is
// assignable to.
func (p *Pattern[T]) With(property PropertyPattern) *Pattern[T] {
	if root := p.RootType(); !root.AssignableTo(property.from) {
		panic(errors.AssertionFailedf("%s is not defined on %s", property, root))
	}
	return p.withStep(step[T]{
		desc: property.String(),
		match: func(node T, captures Captures, r Resolver) (Captures, bool) {
			return property.match(node, captures, r)
		},
	})
}

// Matching adds a predicate over the matched value itself.
func (p *Pattern[T]) Matching(predicate func(T) bool) *Pattern[T] {
	return p.withStep(step[T]{
		desc: "matching(<predicate>)",
		match: func(node T, captures Captures, _ Resolver) (Captures, bool) {
			return captures, predicate(node)
		},
	})
}

// CapturedAs binds the matched value to capture once every other step of the
// pattern has succeeded.
func (p *Pattern[T]) CapturedAs(capture *Capture[T]) *Pattern[T] {
	return &Pattern[T]{
		steps:    p.steps,
		captures: append(slices.Clone(p.captures), capture),
	}
}

func (p *Pattern[T]) withStep(s step[T]) *Pattern[T] {
	return &Pattern[T]{
		steps:    append(slices.Clone(p.steps), s),
		captures: p.captures,
	}
}

// RootType returns the static type of T. For interface types any value
// implementing the interface passes the root filter.
func (p *Pattern[T]) RootType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Match evaluates the pattern against v. The returned Captures are only
// meaningful when the second result is true.
func (p *Pattern[T]) Match(v any, r Resolver) (Captures, bool) {
	_, captures, ok := p.MatchNode(v, r)
	return captures, ok
}

// MatchNode is Match returning the matched value already narrowed to T.
func (p *Pattern[T]) MatchNode(v any, r Resolver) (T, Captures, bool) {
	if r == nil {
		r = NoResolve
	}
	node, ok := r.Resolve(v).(T)
	if !ok {
		var zero T
		return zero, Captures{}, false
	}
	captures, ok := p.matchSteps(node, Captures{}, r)
	if !ok {
		var zero T
		return zero, Captures{}, false
	}
	return node, captures, true
}

func (p *Pattern[T]) match(v any, captures Captures, r Resolver) (Captures, bool) {
	node, ok := r.Resolve(v).(T)
	if !ok {
		return Captures{}, false
	}
	return p.matchSteps(node, captures, r)
}

func (p *Pattern[T]) matchSteps(node T, captures Captures, r Resolver) (Captures, bool) {
	for _, s := range p.steps {
		var ok bool
		if captures, ok = s.match(node, captures, r); !ok {
			return Captures{}, false
		}
	}
	for _, c := range p.captures {
		captures = captures.with(c, node)
	}
	return captures, true
}

func (p *Pattern[T]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "typeOf(%s)", p.RootType())
	for _, s := range p.steps {
		sb.WriteString(".")
		sb.WriteString(s.desc)
	}
	for _, c := range p.captures {
		fmt.Fprintf(&sb, ".capturedAs(%s)", c)
	}
	return sb.String()
}
