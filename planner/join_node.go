package planner

import (
	"fmt"
	"slices"
	"strings"
)

// EquiJoinClause requires Left = Right.
type EquiJoinClause struct {
	Left  Symbol
	Right Symbol
}

// JoinNode is an inner equi-join of two sources. Its outputs are the outputs
// of Left followed by those of Right.
type JoinNode struct {
	planNode
	Left     PlanNode
	Right    PlanNode
	Criteria []EquiJoinClause
}

func NewJoinNode(id PlanNodeID, left, right PlanNode, criteria []EquiJoinClause) *JoinNode {
	return &JoinNode{
		planNode: planNode{id: id, outputs: append(cloneSymbols(left.Outputs()), right.Outputs()...)},
		Left:     left,
		Right:    right,
		Criteria: slices.Clone(criteria),
	}
}

func (n *JoinNode) Kind() Kind {
	return KindJoin
}

func (n *JoinNode) Sources() []PlanNode {
	return []PlanNode{n.Left, n.Right}
}

func (n *JoinNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 2)
	if children[0] == n.Left && children[1] == n.Right {
		return n
	}
	c := *n
	c.Left, c.Right = children[0], children[1]
	return &c
}

func (n *JoinNode) String() string {
	parts := make([]string, len(n.Criteria))
	for i, c := range n.Criteria {
		parts[i] = fmt.Sprintf("%s = %s", c.Left.Name, c.Right.Name)
	}
	return fmt.Sprintf("Join[%d]: %s", n.id, strings.Join(parts, " AND "))
}
