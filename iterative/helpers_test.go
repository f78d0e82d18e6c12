package iterative_test

import (
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/matching"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/types"
)

var ordersHandle = connector.TableHandle{Catalog: "memory", Table: "orders", Oid: 1}

// funcRule is a rule built from a pattern and a function.
type funcRule[T planner.PlanNode] struct {
	name    string
	pattern *matching.Pattern[T]
	apply   func(node T, captures matching.Captures, ctx *iterative.Context) (iterative.Result, error)
}

func (r funcRule[T]) Name() string { return r.name }
func (r funcRule[T]) Pattern() *matching.Pattern[T] { return r.pattern }
func (r funcRule[T]) Apply(node T, captures matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
	return r.apply(node, captures, ctx)
}

// deletePlan builds TableFinish <- Delete <- TableScan over orders.
func deletePlan(ids *planner.PlanNodeIDAllocator, finishOutputs ...planner.Symbol) *planner.TableFinishNode {
	rowID := planner.NewSymbol("$row_id", types.ID)
	scan := planner.NewTableScanNode(ids.NextID(), ordersHandle, []planner.Symbol{rowID}, []string{"$row_id"})
	del := planner.NewDeleteNode(ids.NextID(), scan, ordersHandle, rowID, planner.NewSymbol("partial_rows", types.BIGINT))
	if len(finishOutputs) == 0 {
		finishOutputs = []planner.Symbol{planner.NewSymbol("rows", types.BIGINT)}
	}
	return planner.NewTableFinishNode(ids.NextID(), del, ordersHandle, finishOutputs...)
}

func scanPlan(ids *planner.PlanNodeIDAllocator) *planner.TableScanNode {
	outputs := []planner.Symbol{planner.NewSymbol("id", types.BIGINT), planner.NewSymbol("name", types.VARCHAR)}
	return planner.NewTableScanNode(ids.NextID(), ordersHandle, outputs, []string{"id", "name"})
}

// nodes lists a plan in pre-order.
func nodes(root planner.PlanNode) []planner.PlanNode {
	var out []planner.PlanNode
	planner.Walk(root, func(n planner.PlanNode) { out = append(out, n) })
	return out
}

func ids(root planner.PlanNode) []planner.PlanNodeID {
	var out []planner.PlanNodeID
	for _, n := range nodes(root) {
		out = append(out, n.ID())
	}
	return out
}

func kinds(root planner.PlanNode) []planner.Kind {
	var out []planner.Kind
	for _, n := range nodes(root) {
		out = append(out, n.Kind())
	}
	return out
}
