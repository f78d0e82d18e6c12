package planner

import (
	"fmt"
)

// GroupReference stands in for a child held elsewhere, in a memo group. It is
// only seen by code that walks a memo; patterns see through it because the
// optimizer resolves references before matching.
type GroupReference struct {
	planNode
	Group int
}

func NewGroupReference(id PlanNodeID, group int, outputs []Symbol) *GroupReference {
	return &GroupReference{
		planNode: planNode{id: id, outputs: outputs},
		Group:    group,
	}
}

func (n *GroupReference) Kind() Kind {
	return KindGroupReference
}

func (n *GroupReference) Sources() []PlanNode {
	return nil
}

func (n *GroupReference) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 0)
	return n
}

func (n *GroupReference) String() string {
	return fmt.Sprintf("GroupReference[%d]: group %d", n.id, n.Group)
}
