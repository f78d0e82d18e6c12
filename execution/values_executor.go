package execution

import (
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// ValuesExecutor decodes the rows of a values node.
type ValuesExecutor struct {
	plan    *planner.ValuesNode
	row     int
	current []common.Value
}

func NewValuesExecutor(plan *planner.ValuesNode) *ValuesExecutor {
	return &ValuesExecutor{plan: plan}
}

func (e *ValuesExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *ValuesExecutor) Init(*ExecutorContext) error {
	e.row = -1
	e.current = make([]common.Value, len(e.plan.Outputs()))
	return nil
}

func (e *ValuesExecutor) Next() bool {
	if e.row+1 >= e.plan.RowCount() {
		return false
	}
	e.row++
	for ch := range e.current {
		e.current[ch] = e.plan.Value(e.row, ch)
	}
	return true
}

func (e *ValuesExecutor) Current() []common.Value {
	return e.current
}

func (e *ValuesExecutor) Error() error {
	return nil
}

func (e *ValuesExecutor) Close() error {
	return nil
}
