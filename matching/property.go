package matching

import (
	"fmt"
	"reflect"
)

// Property is a named structural relation from a value of type F to a value of
// type P, such as "the single source of a plan node". Resolving a property can
// fail, in which case any pattern built on it does not match.
type Property[F, P any] struct {
	name string
	get  func(F) (P, bool)
}

// NewProperty declares a property.
func NewProperty[F, P any](name string, get func(F) (P, bool)) Property[F, P] {
	return Property[F, P]{name: name, get: get}
}

// Name returns the property name.
func (p Property[F, P]) Name() string {
	return p.name
}

// Get resolves the property on v.
func (p Property[F, P]) Get(v F) (P, bool) {
	return p.get(v)
}

// Matching returns a property pattern requiring the property value to match
// the nested pattern. The nested pattern usually narrows P, for example a
// plan node property matched against a pattern over one operator kind.
func (p Property[F, P]) Matching(m Matcher) PropertyPattern {
	return p.pattern(fmt.Sprintf("%s.matching(%s)", p.name, m), func(value P, captures Captures, r Resolver) (Captures, bool) {
		return m.match(value, captures, r)
	})
}

// MatchingFunc returns a property pattern requiring the property value to
// satisfy predicate.
func (p Property[F, P]) MatchingFunc(predicate func(P) bool) PropertyPattern {
	return p.pattern(p.name+".matching(<predicate>)", func(value P, captures Captures, _ Resolver) (Captures, bool) {
		return captures, predicate(value)
	})
}

// Equals returns a property pattern requiring the property value to equal
// expected.
func Equals[F any, P comparable](p Property[F, P], expected P) PropertyPattern {
	return p.pattern(fmt.Sprintf("%s.equals(%v)", p.name, expected), func(value P, captures Captures, _ Resolver) (Captures, bool) {
		return captures, value == expected
	})
}

func (p Property[F, P]) pattern(desc string, then func(P, Captures, Resolver) (Captures, bool)) PropertyPattern {
	return PropertyPattern{
		desc: desc,
		from: reflect.TypeOf((*F)(nil)).Elem(),
		match: func(node any, captures Captures, r Resolver) (Captures, bool) {
			value, ok := p.get(node.(F))
			if !ok {
				return Captures{}, false
			}
			return then(value, captures, r)
		},
	}
}

// PropertyPattern is a property combined with the condition its value must
// meet. Pattern.With accepts it for any pattern whose root type is assignable
// to the property's source type, so a property declared on an interface
// serves patterns over each implementation.
type PropertyPattern struct {
	desc  string
	from  reflect.Type
	match func(node any, captures Captures, r Resolver) (Captures, bool)
}

func (p PropertyPattern) String() string {
	return "with(" + p.desc + ")"
}
