package iterative

import (
	"reflect"

	"mit.edu/dsg/planopt/matching"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/session"
)

// Rule is a transformation anchored on plan nodes of type T.
//
// Apply is only called with a node and captures produced by a successful match
// of Pattern on that node, so a rule may Get any capture its pattern declares.
// Sources of the node are group references; a rule that needs a source's
// content captures it in its pattern or resolves it through the Context.
//
// Apply returns Unchanged when it cannot improve the plan, including when a
// connector does not offer a capability; that is never an error. An error
// aborts the compilation and is reserved for external failures and broken
// invariants.
type Rule[T planner.PlanNode] interface {
	Name() string
	Pattern() *matching.Pattern[T]
	Apply(node T, captures matching.Captures, ctx *Context) (Result, error)
}

// SessionGated is implemented by rules that can be switched off per session.
type SessionGated interface {
	IsEnabled(s *session.Session) bool
}

// AnyRule is a Rule with its node type erased, as held by a RuleSet.
type AnyRule interface {
	Name() string
	// RootType is the node type the rule's pattern is anchored on.
	RootType() reflect.Type
	Pattern() matching.Matcher
	// Enabled reports whether the rule may run under s.
	Enabled(s *session.Session) bool
	// Apply matches the pattern against node and applies the rule on a
	// match. matched is false when the pattern did not match.
	Apply(node planner.PlanNode, ctx *Context) (result Result, matched bool, err error)
}

// Adapt erases the node type of r.
func Adapt[T planner.PlanNode](r Rule[T]) AnyRule {
	return adapted[T]{rule: r, pattern: r.Pattern()}
}

type adapted[T planner.PlanNode] struct {
	rule    Rule[T]
	pattern *matching.Pattern[T]
}

func (a adapted[T]) Name() string {
	return a.rule.Name()
}

func (a adapted[T]) RootType() reflect.Type {
	return a.pattern.RootType()
}

func (a adapted[T]) Pattern() matching.Matcher {
	return a.pattern
}

func (a adapted[T]) Enabled(s *session.Session) bool {
	if !s.BoolProperty(session.RuleEnabledProperty(a.rule.Name()), true) {
		return false
	}
	if gated, ok := a.rule.(SessionGated); ok {
		return gated.IsEnabled(s)
	}
	return true
}

func (a adapted[T]) Apply(node planner.PlanNode, ctx *Context) (Result, bool, error) {
	matched, captures, ok := a.pattern.MatchNode(node, ctx.memo)
	if !ok {
		return Unchanged(), false, nil
	}
	result, err := a.rule.Apply(matched, captures, ctx)
	return result, true, err
}
