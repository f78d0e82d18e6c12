package execution

import (
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// SeqScanExecutor reads every row the table handle selects. The handle may
// carry a layout negotiated by the optimizer, e.g. a limit.
type SeqScanExecutor struct {
	plan *planner.TableScanNode

	rows    [][]common.Value
	current int
	err     error
}

func NewSeqScanExecutor(plan *planner.TableScanNode) *SeqScanExecutor {
	return &SeqScanExecutor{plan: plan}
}

func (e *SeqScanExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *SeqScanExecutor) Init(ctx *ExecutorContext) error {
	e.rows, e.current, e.err = nil, -1, nil
	source, err := ctx.Source(e.plan.Table)
	if err != nil {
		return err
	}
	e.rows, err = source.Scan(ctx.Context(), e.plan.Table, e.plan.Columns)
	return err
}

func (e *SeqScanExecutor) Next() bool {
	if e.current+1 >= len(e.rows) {
		return false
	}
	e.current++
	return true
}

func (e *SeqScanExecutor) Current() []common.Value {
	return e.rows[e.current]
}

func (e *SeqScanExecutor) Error() error {
	return e.err
}

func (e *SeqScanExecutor) Close() error {
	e.rows = nil
	return nil
}
