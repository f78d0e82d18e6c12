package execution

import (
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// FilterExecutor filters rows from its child executor based on a predicate.
type FilterExecutor struct {
	plan  *planner.FilterNode
	child Executor
}

// NewFilter creates a new FilterExecutor executor.
func NewFilter(plan *planner.FilterNode, child Executor) *FilterExecutor {
	return &FilterExecutor{
		plan:  plan,
		child: child,
	}
}

func (e *FilterExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

// Init initializes the child.
func (e *FilterExecutor) Init(context *ExecutorContext) error {
	return e.child.Init(context)
}

func (e *FilterExecutor) Next() bool {
	for e.child.Next() {
		res := e.plan.Predicate.Eval(rowOf(e.plan.Source, e.child.Current()))

		if planner.ExprIsTrue(res) {
			return true
		}
	}
	return false
}

func (e *FilterExecutor) Current() []common.Value {
	return e.child.Current()
}

func (e *FilterExecutor) Error() error {
	return e.child.Error()
}

func (e *FilterExecutor) Close() error {
	return e.child.Close()
}
