package execution

import (
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// Executor is the interface that all execution nodes must implement. Rows are
// produced as decoded values, one per output symbol of the plan node.
type Executor interface {
	PlanNode() planner.PlanNode

	// Init initializes the executor with a specific execution context.
	Init(ctx *ExecutorContext) error

	// Next advances to the next row.
	Next() bool

	// Current returns the row most recently read by Next(). The slice is only
	// valid until the following call to Next.
	Current() []common.Value

	// Error returns the last error encountered by the executor, if any.
	Error() error

	// Close cleans up any resources held by the executor.
	Close() error
}

// rowOf binds the values of a row of n to n's output symbols for expression
// evaluation.
func rowOf(n planner.PlanNode, values []common.Value) planner.Row {
	return planner.NewRow(n.Outputs(), values)
}

// Collect initializes e, drains it, and closes it.
func Collect(ctx *ExecutorContext, e Executor) (rows [][]common.Value, err error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := e.Close(); err == nil {
			err = cerr
		}
	}()
	for e.Next() {
		rows = append(rows, append([]common.Value(nil), e.Current()...))
	}
	return rows, e.Error()
}
