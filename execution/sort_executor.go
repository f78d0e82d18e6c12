package execution

import (
	"slices"

	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// SortExecutor sorts the input rows based on the provided ordering expressions.
// It is a blocking operator but uses lazy evaluation (sorts on first Next).
type SortExecutor struct {
	plan  *planner.SortNode
	child Executor

	// Runtime state
	sorted       [][]common.Value
	currentIndex int
	err          error
}

func NewSortExecutor(plan *planner.SortNode, child Executor) *SortExecutor {
	return &SortExecutor{
		plan:  plan,
		child: child,
	}
}

func (e *SortExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *SortExecutor) Init(ctx *ExecutorContext) error {
	e.sorted = nil
	e.currentIndex = -1
	e.err = nil
	return e.child.Init(ctx)
}

func (e *SortExecutor) Next() bool {
	if e.err != nil {
		return false
	}
	if e.sorted == nil {
		e.sorted, e.err = sortRows(e.child, e.plan.Source, e.plan.OrderBy)
		if e.err != nil {
			return false
		}
	}
	if e.currentIndex+1 >= len(e.sorted) {
		return false
	}
	e.currentIndex++
	return true
}

func (e *SortExecutor) Current() []common.Value {
	return e.sorted[e.currentIndex]
}

func (e *SortExecutor) Error() error {
	return e.err
}

func (e *SortExecutor) Close() error {
	e.sorted = nil
	return e.child.Close()
}

// sortRows drains child and returns its rows ordered by orderBy. The sort is
// stable, so rows with equal keys keep their input order.
func sortRows(child Executor, source planner.PlanNode, orderBy []planner.OrderByClause) ([][]common.Value, error) {
	rows := make([][]common.Value, 0)
	for child.Next() {
		rows = append(rows, slices.Clone(child.Current()))
	}
	if err := child.Error(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(rows, func(r1, r2 []common.Value) int {
		t1, t2 := rowOf(source, r1), rowOf(source, r2)
		for _, order := range orderBy {
			cmp := order.Expr.Eval(t1).Compare(order.Expr.Eval(t2))
			if cmp == 0 {
				continue
			}
			if order.Direction == planner.SortOrderAscending {
				return cmp
			}
			return -cmp
		}
		return 0
	})
	return rows, nil
}
