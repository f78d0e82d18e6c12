package planner

import (
	"fmt"

	"mit.edu/dsg/planopt/common"
)

// LimitNode limits the number of output rows.
type LimitNode struct {
	planNode
	Source PlanNode
	Count  int64
}

func NewLimitNode(id PlanNodeID, source PlanNode, count int64) *LimitNode {
	common.Assert(count >= 0, "negative limit %d", count)
	return &LimitNode{
		planNode: planNode{id: id, outputs: source.Outputs()},
		Source:   source,
		Count:    count,
	}
}

func (n *LimitNode) Kind() Kind {
	return KindLimit
}

func (n *LimitNode) Sources() []PlanNode {
	return []PlanNode{n.Source}
}

func (n *LimitNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 1)
	if children[0] == n.Source {
		return n
	}
	c := *n
	c.Source = children[0]
	return &c
}

func (n *LimitNode) String() string {
	return fmt.Sprintf("Limit[%d]: %d", n.id, n.Count)
}
