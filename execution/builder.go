package execution

import (
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// Build turns a plan tree into an executor tree. Plans still holding group
// references, i.e. not extracted from the optimizer's memo, are rejected.
func Build(plan planner.PlanNode) (Executor, error) {
	children := make([]Executor, len(plan.Sources()))
	for i, s := range plan.Sources() {
		child, err := Build(s)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}

	switch n := plan.(type) {
	case *planner.TableScanNode:
		return NewSeqScanExecutor(n), nil
	case *planner.ValuesNode:
		return NewValuesExecutor(n), nil
	case *planner.FilterNode:
		return NewFilter(n, children[0]), nil
	case *planner.ProjectNode:
		return NewProjectionExecutor(n, children[0]), nil
	case *planner.LimitNode:
		return NewLimitExecutor(n, children[0]), nil
	case *planner.SortNode:
		return NewSortExecutor(n, children[0]), nil
	case *planner.TopNNode:
		return NewTopNExecutor(n, children[0]), nil
	case *planner.JoinNode:
		return NewHashJoinExecutor(n, children[0], children[1]), nil
	case *planner.DeleteNode:
		return NewDeleteExecutor(n, children[0]), nil
	case *planner.TableFinishNode:
		return NewTableFinishExecutor(n, children[0]), nil
	case *planner.MetadataDeleteNode:
		return NewMetadataDeleteExecutor(n), nil
	}
	return nil, common.NewError(common.InvalidPlanError, "cannot execute %s node %d", plan.Kind(), plan.ID())
}
