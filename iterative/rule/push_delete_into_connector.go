package rule

import (
	"github.com/cockroachdb/errors"
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/matching"
	"mit.edu/dsg/planopt/planner"
)

var (
	pushDeleteTableScan = matching.NewCapture[*planner.TableScanNode]()
	pushDeletePattern   = planner.TableFinish().
				With(planner.Source().Matching(planner.Delete().
					With(planner.Source().Matching(planner.TableScan().CapturedAs(pushDeleteTableScan)))))
)

// PushDeleteIntoConnector replaces a delete of every row of a table scan with
// a metadata delete, when the table's connector can perform the delete
// itself:
//
//	TableFinish            MetadataDelete
//	└── Delete        =>
//	    └── TableScan
//
// If the connector declines, the row by row delete stays in the plan.
type PushDeleteIntoConnector struct {
	metadata *connector.Metadata
}

func NewPushDeleteIntoConnector(metadata *connector.Metadata) *PushDeleteIntoConnector {
	return &PushDeleteIntoConnector{metadata: metadata}
}

func (r *PushDeleteIntoConnector) Name() string {
	return "push_delete_into_connector"
}

func (r *PushDeleteIntoConnector) Pattern() *matching.Pattern[*planner.TableFinishNode] {
	return pushDeletePattern
}

func (r *PushDeleteIntoConnector) Apply(node *planner.TableFinishNode, captures matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
	scan := matching.Get(captures, pushDeleteTableScan)

	handle, ok, err := r.metadata.ApplyDelete(ctx.Context(), ctx.Session(), scan.Table)
	if err != nil {
		return iterative.Unchanged(), err
	}
	if !ok {
		return iterative.Unchanged(), nil
	}

	outputs := node.Outputs()
	if len(outputs) != 1 {
		return iterative.Unchanged(), errors.AssertionFailedf(
			"table finish %d must have exactly one output, has %v", node.ID(), planner.OutputNames(outputs))
	}
	return iterative.Replaced(planner.NewMetadataDeleteNode(ctx.IDAllocator().NextID(), handle, outputs[0])), nil
}
