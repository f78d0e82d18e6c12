package planner

import (
	"fmt"
	"slices"

	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/types"
)

// PlanNodeID identifies a plan node within one compilation.
type PlanNodeID int64

// PlanNodeIDAllocator mints node ids for one compilation. It is owned by that
// compilation and is not safe for concurrent use.
type PlanNodeIDAllocator struct {
	next PlanNodeID
}

func NewPlanNodeIDAllocator() *PlanNodeIDAllocator {
	return &PlanNodeIDAllocator{}
}

// NextID returns an id never returned before by this allocator.
func (a *PlanNodeIDAllocator) NextID() PlanNodeID {
	a.next++
	return a.next
}

// Symbol is a named, typed column produced by a plan node.
type Symbol struct {
	Name string
	Type types.Type
}

func NewSymbol(name string, t types.Type) Symbol {
	return Symbol{Name: name, Type: t}
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s:%s", s.Name, s.Type)
}

// Kind is the operator of a plan node.
type Kind int

const (
	KindTableScan Kind = iota
	KindValues
	KindFilter
	KindProject
	KindLimit
	KindSort
	KindTopN
	KindJoin
	KindDelete
	KindTableFinish
	KindMetadataDelete
	KindGroupReference
)

func (k Kind) String() string {
	switch k {
	case KindTableScan:
		return "TableScan"
	case KindValues:
		return "Values"
	case KindFilter:
		return "Filter"
	case KindProject:
		return "Project"
	case KindLimit:
		return "Limit"
	case KindSort:
		return "Sort"
	case KindTopN:
		return "TopN"
	case KindJoin:
		return "Join"
	case KindDelete:
		return "Delete"
	case KindTableFinish:
		return "TableFinish"
	case KindMetadataDelete:
		return "MetadataDelete"
	case KindGroupReference:
		return "GroupReference"
	}
	return "Unknown"
}

// PlanNode represents the static structure of a query plan. Nodes are
// immutable: outputs and children are fixed at construction, and "changing" a
// node means building a new one. The set of implementations is closed; every
// operator lives in this package.
type PlanNode interface {
	// ID returns the node id, unique within a compilation.
	ID() PlanNodeID

	// Kind returns the operator of the node.
	Kind() Kind

	// Outputs returns the symbols produced by this node. The slice must not
	// be modified.
	Outputs() []Symbol

	// Sources returns the child plan nodes.
	Sources() []PlanNode

	// ReplaceChildren returns a node of the same operator, id and outputs
	// over the given children. It returns the receiver when the children are
	// the ones it already has.
	ReplaceChildren(children []PlanNode) PlanNode

	// String returns a one line description of the node.
	String() string

	sealed()
}

type planNode struct {
	id      PlanNodeID
	outputs []Symbol
}

func (n *planNode) ID() PlanNodeID {
	return n.id
}

func (n *planNode) Outputs() []Symbol {
	return n.outputs
}

func (*planNode) sealed() {}

// SameNode reports whether a and b are the same node. Identity is by id: two
// structurally equal subtrees built independently are different nodes.
func SameNode(a, b PlanNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID()
}

// SameChildren reports whether two child lists hold the same node values.
func SameChildren(a, b []PlanNode) bool {
	return slices.EqualFunc(a, b, func(x, y PlanNode) bool { return x == y })
}

// Walk visits root and all nodes below it in pre-order.
func Walk(root PlanNode, visit func(PlanNode)) {
	visit(root)
	for _, s := range root.Sources() {
		Walk(s, visit)
	}
}

// OutputNames returns the names of symbols.
func OutputNames(symbols []Symbol) []string {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Name
	}
	return names
}

func checkChildren(n PlanNode, children []PlanNode, expected int) {
	common.Assert(len(children) == expected, "%s expects %d children, got %d", n.Kind(), expected, len(children))
}

func cloneSymbols(symbols []Symbol) []Symbol {
	return slices.Clone(symbols)
}
