package iterative

import (
	"reflect"
	"slices"

	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

type indexedRule struct {
	index int
	rule  AnyRule
}

// RuleSet indexes rules by the node type their pattern is anchored on, so a
// node is only tried against rules that can match it. Rules anchored on an
// interface type (e.g. any plan node) are tried against every node. Rules are
// tried in registration order.
type RuleSet struct {
	rules     []AnyRule
	byType    map[reflect.Type][]indexedRule
	wildcards []indexedRule
	cache     map[reflect.Type][]indexedRule
}

func NewRuleSet(rules ...AnyRule) (*RuleSet, error) {
	rs := &RuleSet{
		byType: make(map[reflect.Type][]indexedRule),
		cache:  make(map[reflect.Type][]indexedRule),
	}
	names := make(map[string]bool, len(rules))
	for i, r := range rules {
		if names[r.Name()] {
			return nil, common.NewError(common.DuplicateObjectError, "rule '%s' registered twice", r.Name())
		}
		names[r.Name()] = true
		rs.rules = append(rs.rules, r)
		ir := indexedRule{index: i, rule: r}
		if root := r.RootType(); root.Kind() == reflect.Interface {
			rs.wildcards = append(rs.wildcards, ir)
		} else {
			rs.byType[root] = append(rs.byType[root], ir)
		}
	}
	for typ := range rs.byType {
		rs.cache[typ] = rs.merge(typ)
	}
	return rs, nil
}

// Rules returns the rules in registration order.
func (rs *RuleSet) Rules() []AnyRule {
	return slices.Clone(rs.rules)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

func (rs *RuleSet) candidates(node planner.PlanNode) []indexedRule {
	typ := reflect.TypeOf(node)
	if c, ok := rs.cache[typ]; ok {
		return c
	}
	var out []indexedRule
	for _, w := range rs.wildcards {
		if typ.Implements(w.rule.RootType()) {
			out = append(out, w)
		}
	}
	return out
}

// Candidates returns the rules that can match node, in registration order.
func (rs *RuleSet) Candidates(node planner.PlanNode) []AnyRule {
	c := rs.candidates(node)
	out := make([]AnyRule, len(c))
	for i, ir := range c {
		out[i] = ir.rule
	}
	return out
}

func (rs *RuleSet) merge(typ reflect.Type) []indexedRule {
	var out []indexedRule
	out = append(out, rs.byType[typ]...)
	for _, w := range rs.wildcards {
		if typ.Implements(w.rule.RootType()) {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b indexedRule) int { return a.index - b.index })
	return out
}
