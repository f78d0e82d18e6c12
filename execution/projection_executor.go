package execution

import (
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// ProjectionExecutor evaluates the assignments of a projection over every
// child row.
type ProjectionExecutor struct {
	plan  *planner.ProjectNode
	child Executor

	current []common.Value
}

func NewProjectionExecutor(plan *planner.ProjectNode, child Executor) *ProjectionExecutor {
	return &ProjectionExecutor{plan: plan, child: child}
}

func (e *ProjectionExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *ProjectionExecutor) Init(ctx *ExecutorContext) error {
	e.current = make([]common.Value, len(e.plan.Assignments))
	return e.child.Init(ctx)
}

func (e *ProjectionExecutor) Next() bool {
	if !e.child.Next() {
		return false
	}
	row := rowOf(e.plan.Source, e.child.Current())
	for i, expr := range e.plan.Assignments {
		e.current[i] = expr.Eval(row)
	}
	return true
}

func (e *ProjectionExecutor) Current() []common.Value {
	return e.current
}

func (e *ProjectionExecutor) Error() error {
	return e.child.Error()
}

func (e *ProjectionExecutor) Close() error {
	return e.child.Close()
}
