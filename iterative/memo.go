package iterative

import (
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// Memo holds a plan being rewritten as a set of groups, one per plan position.
// Each group holds one node whose sources are GroupReferences to other groups,
// so replacing the node of a group never requires rebuilding its ancestors.
// References are plan nodes with ids of their own, minted from the
// compilation's allocator.
type Memo struct {
	ids    *planner.PlanNodeIDAllocator
	groups []planner.PlanNode
	root   int
}

// NewMemo loads plan into a new memo.
func NewMemo(ids *planner.PlanNodeIDAllocator, plan planner.PlanNode) *Memo {
	m := &Memo{ids: ids}
	m.root = m.insert(plan)
	return m
}

// Root returns the group holding the root of the plan.
func (m *Memo) Root() int {
	return m.root
}

// Node returns the node of group.
func (m *Memo) Node(group int) planner.PlanNode {
	common.Assert(group >= 0 && group < len(m.groups), "memo has no group %d", group)
	return m.groups[group]
}

// Resolve implements matching.Resolver: a group reference resolves to the
// node of its group, anything else to itself.
func (m *Memo) Resolve(v any) any {
	if ref, ok := v.(*planner.GroupReference); ok {
		return m.Node(ref.Group)
	}
	return v
}

// Replace installs node as the new content of group. Sources of node that are
// not group references are inserted as new groups. A replacement that is itself
// a group reference takes over the content of the group it refers to.
func (m *Memo) Replace(group int, node planner.PlanNode) {
	if ref, ok := node.(*planner.GroupReference); ok {
		node = m.Node(ref.Group)
	}
	m.groups[group] = m.insertChildren(node)
}

// Extract rebuilds a plan tree from the memo. Every node keeps its id; nodes
// whose sources were references are rebuilt around the extracted sources.
func (m *Memo) Extract() planner.PlanNode {
	return m.extract(m.root)
}

// Groups returns the groups reachable from the root in post-order: every group
// comes after the groups its node refers to.
func (m *Memo) Groups() []int {
	var order []int
	seen := make(map[int]bool)
	var visit func(int)
	visit = func(g int) {
		if seen[g] {
			return
		}
		seen[g] = true
		for _, s := range m.Node(g).Sources() {
			visit(s.(*planner.GroupReference).Group)
		}
		order = append(order, g)
	}
	visit(m.root)
	return order
}

func (m *Memo) insert(node planner.PlanNode) int {
	if ref, ok := node.(*planner.GroupReference); ok {
		return ref.Group
	}
	node = m.insertChildren(node)
	m.groups = append(m.groups, node)
	return len(m.groups) - 1
}

func (m *Memo) insertChildren(node planner.PlanNode) planner.PlanNode {
	sources := node.Sources()
	if len(sources) == 0 {
		return node
	}
	refs := make([]planner.PlanNode, len(sources))
	for i, s := range sources {
		if ref, ok := s.(*planner.GroupReference); ok {
			refs[i] = ref
			continue
		}
		refs[i] = planner.NewGroupReference(m.ids.NextID(), m.insert(s), s.Outputs())
	}
	return node.ReplaceChildren(refs)
}

func (m *Memo) extract(group int) planner.PlanNode {
	node := m.Node(group)
	sources := node.Sources()
	if len(sources) == 0 {
		return node
	}
	children := make([]planner.PlanNode, len(sources))
	for i, s := range sources {
		children[i] = m.extract(s.(*planner.GroupReference).Group)
	}
	return node.ReplaceChildren(children)
}
