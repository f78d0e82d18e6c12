package iterative

import (
	"mit.edu/dsg/planopt/planner"
)

// Result is the outcome of applying a rule: either the node stands, or it is
// replaced by a new subtree. There is no other outcome.
type Result struct {
	node planner.PlanNode
}

// Unchanged leaves the matched node as it is.
func Unchanged() Result {
	return Result{}
}

// Replaced substitutes node for the matched node. node must produce the same
// output symbols as the node it replaces.
func Replaced(node planner.PlanNode) Result {
	return Result{node: node}
}

func (r Result) IsUnchanged() bool {
	return r.node == nil
}

// Node returns the replacement, or nil for an unchanged result.
func (r Result) Node() planner.PlanNode {
	return r.node
}
