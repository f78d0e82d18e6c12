package planner

import (
	"fmt"
	"slices"
	"strings"

	"mit.edu/dsg/planopt/common"
)

// ProjectNode computes Assignments[i] into Outputs()[i] for every row of its
// source.
type ProjectNode struct {
	planNode
	Source      PlanNode
	Assignments []Expr
}

func NewProjectNode(id PlanNodeID, source PlanNode, outputs []Symbol, assignments []Expr) *ProjectNode {
	common.Assert(len(outputs) == len(assignments), "projection has %d outputs but %d assignments", len(outputs), len(assignments))
	return &ProjectNode{
		planNode:    planNode{id: id, outputs: cloneSymbols(outputs)},
		Source:      source,
		Assignments: slices.Clone(assignments),
	}
}

func (n *ProjectNode) Kind() Kind {
	return KindProject
}

func (n *ProjectNode) Sources() []PlanNode {
	return []PlanNode{n.Source}
}

func (n *ProjectNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 1)
	if children[0] == n.Source {
		return n
	}
	c := *n
	c.Source = children[0]
	return &c
}

func (n *ProjectNode) String() string {
	parts := make([]string, len(n.Assignments))
	for i, e := range n.Assignments {
		parts[i] = fmt.Sprintf("%s := %s", n.outputs[i].Name, e)
	}
	return fmt.Sprintf("Project[%d]: %s", n.id, strings.Join(parts, ", "))
}
