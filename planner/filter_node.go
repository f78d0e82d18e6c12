package planner

import (
	"fmt"
)

// FilterNode filters rows from its source based on a predicate.
type FilterNode struct {
	planNode
	Source    PlanNode
	Predicate Expr
}

func NewFilterNode(id PlanNodeID, source PlanNode, predicate Expr) *FilterNode {
	return &FilterNode{
		planNode:  planNode{id: id, outputs: source.Outputs()},
		Source:    source,
		Predicate: predicate,
	}
}

func (n *FilterNode) Kind() Kind {
	return KindFilter
}

func (n *FilterNode) Sources() []PlanNode {
	return []PlanNode{n.Source}
}

func (n *FilterNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 1)
	if children[0] == n.Source {
		return n
	}
	c := *n
	c.Source = children[0]
	return &c
}

func (n *FilterNode) String() string {
	return fmt.Sprintf("Filter[%d]: %s", n.id, n.Predicate.String())
}
