package execution

import (
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// TopNExecutor returns the first Count rows of its input in sort order.
type TopNExecutor struct {
	plan  *planner.TopNNode
	child Executor

	rows         [][]common.Value
	currentIndex int
	err          error
}

func NewTopNExecutor(plan *planner.TopNNode, child Executor) *TopNExecutor {
	return &TopNExecutor{plan: plan, child: child}
}

func (e *TopNExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *TopNExecutor) Init(ctx *ExecutorContext) error {
	e.rows = nil
	e.currentIndex = -1
	e.err = nil
	return e.child.Init(ctx)
}

func (e *TopNExecutor) Next() bool {
	if e.err != nil {
		return false
	}
	if e.rows == nil {
		e.rows, e.err = sortRows(e.child, e.plan.Source, e.plan.OrderBy)
		if e.err != nil {
			return false
		}
		if int64(len(e.rows)) > e.plan.Count {
			e.rows = e.rows[:e.plan.Count]
		}
	}
	if e.currentIndex+1 >= len(e.rows) {
		return false
	}
	e.currentIndex++
	return true
}

func (e *TopNExecutor) Current() []common.Value {
	return e.rows[e.currentIndex]
}

func (e *TopNExecutor) Error() error {
	return e.err
}

func (e *TopNExecutor) Close() error {
	e.rows = nil
	return e.child.Close()
}
