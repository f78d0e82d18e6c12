package planner

import (
	"fmt"
	"slices"
)

// TopNNode represents a combined Sort + Limit operation (often using a heap).
type TopNNode struct {
	planNode
	Source  PlanNode
	Count   int64
	OrderBy []OrderByClause
}

func NewTopNNode(id PlanNodeID, source PlanNode, count int64, orderBy []OrderByClause) *TopNNode {
	return &TopNNode{
		planNode: planNode{id: id, outputs: source.Outputs()},
		Source:   source,
		Count:    count,
		OrderBy:  slices.Clone(orderBy),
	}
}

func (n *TopNNode) Kind() Kind {
	return KindTopN
}

func (n *TopNNode) Sources() []PlanNode {
	return []PlanNode{n.Source}
}

func (n *TopNNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 1)
	if children[0] == n.Source {
		return n
	}
	c := *n
	c.Source = children[0]
	return &c
}

func (n *TopNNode) String() string {
	return fmt.Sprintf("TopN[%d]: Limit %d by %s", n.id, n.Count, formatOrderBy(n.OrderBy))
}
