package rule

import (
	"mit.edu/dsg/planopt/block"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/matching"
	"mit.edu/dsg/planopt/planner"
)

var (
	trivialFilterPattern = planner.Filter().
				With(planner.FilterPredicate().MatchingFunc(func(e planner.Expr) bool { return len(e.Symbols()) == 0 }))

	filterValues        = matching.NewCapture[*planner.ValuesNode]()
	filterValuesPattern = planner.Filter().
				With(planner.Source().Matching(planner.Values().CapturedAs(filterValues)))
)

// RemoveTrivialFilters removes filters whose predicate does not depend on the
// row: an always true filter is dropped, a filter that is never true (FALSE or
// NULL) produces no rows.
type RemoveTrivialFilters struct{}

func (RemoveTrivialFilters) Name() string {
	return "remove_trivial_filters"
}

func (RemoveTrivialFilters) Pattern() *matching.Pattern[*planner.FilterNode] {
	return trivialFilterPattern
}

func (RemoveTrivialFilters) Apply(node *planner.FilterNode, _ matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
	v, _ := planner.EvalConstant(node.Predicate)
	if planner.ExprIsTrue(v) {
		return iterative.Replaced(node.Source), nil
	}
	return iterative.Replaced(planner.NewEmptyValuesNode(ctx.IDAllocator().NextID(), node.Outputs())), nil
}

// EvaluateFilterOverValues filters the rows of a values node at planning time.
// Qualifying rows are copied into new blocks through their column types.
type EvaluateFilterOverValues struct{}

func (EvaluateFilterOverValues) Name() string {
	return "evaluate_filter_over_values"
}

func (EvaluateFilterOverValues) Pattern() *matching.Pattern[*planner.FilterNode] {
	return filterValuesPattern
}

func (EvaluateFilterOverValues) Apply(node *planner.FilterNode, captures matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
	values := matching.Get(captures, filterValues)

	var keep []int
	for row := 0; row < values.RowCount(); row++ {
		if planner.ExprIsTrue(node.Predicate.Eval(values.Row(row))) {
			keep = append(keep, row)
		}
	}
	if len(keep) == values.RowCount() {
		return iterative.Replaced(node.Source), nil
	}

	outputs := values.Outputs()
	columns := make([]block.Block, len(outputs))
	for i, s := range outputs {
		builder := s.Type.CreateBuilder(len(keep))
		for _, row := range keep {
			s.Type.AppendTo(values.Column(i), row, builder)
		}
		columns[i] = builder.Build()
	}
	return iterative.Replaced(planner.NewValuesNode(ctx.IDAllocator().NextID(), outputs, len(keep), columns...)), nil
}
