package planner

import (
	"fmt"
	"slices"
	"strings"
)

type SortDirection int

const (
	SortOrderAscending SortDirection = iota
	SortOrderDescending
)

func (d SortDirection) String() string {
	if d == SortOrderDescending {
		return "DESC"
	}
	return "ASC"
}

type OrderByClause struct {
	Expr      Expr
	Direction SortDirection
}

func (c OrderByClause) String() string {
	return fmt.Sprintf("%s %s", c.Expr, c.Direction)
}

func formatOrderBy(orderBy []OrderByClause) string {
	parts := make([]string, len(orderBy))
	for i, c := range orderBy {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// SortNode sorts the input rows.
type SortNode struct {
	planNode
	Source  PlanNode
	OrderBy []OrderByClause
}

func NewSortNode(id PlanNodeID, source PlanNode, orderBy []OrderByClause) *SortNode {
	return &SortNode{
		planNode: planNode{id: id, outputs: source.Outputs()},
		Source:   source,
		OrderBy:  slices.Clone(orderBy),
	}
}

func (n *SortNode) Kind() Kind {
	return KindSort
}

func (n *SortNode) Sources() []PlanNode {
	return []PlanNode{n.Source}
}

func (n *SortNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 1)
	if children[0] == n.Source {
		return n
	}
	c := *n
	c.Source = children[0]
	return &c
}

func (n *SortNode) String() string {
	return fmt.Sprintf("Sort[%d]: %s", n.id, formatOrderBy(n.OrderBy))
}
