package execution

import (
	"slices"

	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// deleteBatchSize bounds the row ids handed to a data source at once.
const deleteBatchSize = 1024

// DeleteExecutor deletes the rows whose ids its child produces, row by row
// through the data source, and emits a single row holding the count.
type DeleteExecutor struct {
	plan  *planner.DeleteNode
	child Executor

	// Runtime state
	ctx      *ExecutorContext
	source   DataSource
	rowID    int
	executed bool
	cnt      int64
	err      error
}

func NewDeleteExecutor(plan *planner.DeleteNode, child Executor) *DeleteExecutor {
	return &DeleteExecutor{
		plan:  plan,
		child: child,
	}
}

func (e *DeleteExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *DeleteExecutor) Init(ctx *ExecutorContext) error {
	e.ctx = ctx
	e.executed = false
	e.cnt = 0
	e.err = nil
	e.rowID = slices.IndexFunc(e.plan.Source.Outputs(), func(s planner.Symbol) bool { return s.Name == e.plan.RowID.Name })
	common.Assert(e.rowID >= 0, "delete %d: row id %s is not produced by its source", e.plan.ID(), e.plan.RowID.Name)
	source, err := ctx.Source(e.plan.Target)
	if err != nil {
		return err
	}
	e.source = source
	return e.child.Init(ctx)
}

func (e *DeleteExecutor) flush(batch []int64) error {
	if len(batch) == 0 {
		return nil
	}
	n, err := e.source.DeleteRows(e.ctx.Context(), e.plan.Target, batch)
	e.cnt += n
	return err
}

func (e *DeleteExecutor) Next() bool {
	if e.executed || e.err != nil {
		return false
	}
	batch := make([]int64, 0, deleteBatchSize)
	for e.child.Next() {
		id := e.child.Current()[e.rowID]
		common.Assert(!id.IsNull(), "row id to delete should not be NULL")
		batch = append(batch, id.IntValue())
		if len(batch) == deleteBatchSize {
			if e.err = e.flush(batch); e.err != nil {
				return false
			}
			batch = batch[:0]
		}
	}
	if e.err = e.child.Error(); e.err != nil {
		return false
	}
	if e.err = e.flush(batch); e.err != nil {
		return false
	}
	e.executed = true
	return true
}

func (e *DeleteExecutor) Current() []common.Value {
	return []common.Value{common.NewIntValue(e.cnt)}
}

func (e *DeleteExecutor) Close() error {
	return e.child.Close()
}

func (e *DeleteExecutor) Error() error {
	return e.err
}

// TableFinishExecutor sums the row counts its child reports and emits the
// total once, in its first output. Any further outputs are zero.
type TableFinishExecutor struct {
	plan  *planner.TableFinishNode
	child Executor

	done    bool
	current []common.Value
	err     error
}

func NewTableFinishExecutor(plan *planner.TableFinishNode, child Executor) *TableFinishExecutor {
	return &TableFinishExecutor{plan: plan, child: child}
}

func (e *TableFinishExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *TableFinishExecutor) Init(ctx *ExecutorContext) error {
	e.done = false
	e.err = nil
	e.current = make([]common.Value, len(e.plan.Outputs()))
	return e.child.Init(ctx)
}

func (e *TableFinishExecutor) Next() bool {
	if e.done {
		return false
	}
	var total int64
	for e.child.Next() {
		total += e.child.Current()[0].IntValue()
	}
	if e.err = e.child.Error(); e.err != nil {
		return false
	}
	for i := range e.current {
		e.current[i] = common.NewIntValue(0)
	}
	e.current[0] = common.NewIntValue(total)
	e.done = true
	return true
}

func (e *TableFinishExecutor) Current() []common.Value {
	return e.current
}

func (e *TableFinishExecutor) Error() error {
	return e.err
}

func (e *TableFinishExecutor) Close() error {
	return e.child.Close()
}

// MetadataDeleteExecutor runs a delete the connector negotiated to perform
// itself and emits the number of rows it removed.
type MetadataDeleteExecutor struct {
	plan *planner.MetadataDeleteNode

	ctx  *ExecutorContext
	done bool
	cnt  int64
	err  error
}

func NewMetadataDeleteExecutor(plan *planner.MetadataDeleteNode) *MetadataDeleteExecutor {
	return &MetadataDeleteExecutor{plan: plan}
}

func (e *MetadataDeleteExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *MetadataDeleteExecutor) Init(ctx *ExecutorContext) error {
	e.ctx = ctx
	e.done = false
	e.cnt = 0
	e.err = nil
	return nil
}

func (e *MetadataDeleteExecutor) Next() bool {
	if e.done || e.err != nil {
		return false
	}
	source, err := e.ctx.Source(e.plan.Target)
	if err != nil {
		e.err = err
		return false
	}
	if e.cnt, e.err = source.ExecuteMetadataDelete(e.ctx.Context(), e.plan.Target); e.err != nil {
		return false
	}
	e.done = true
	return true
}

func (e *MetadataDeleteExecutor) Current() []common.Value {
	return []common.Value{common.NewIntValue(e.cnt)}
}

func (e *MetadataDeleteExecutor) Error() error {
	return e.err
}

func (e *MetadataDeleteExecutor) Close() error {
	return nil
}
