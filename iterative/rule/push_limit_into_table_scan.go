package rule

import (
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/matching"
	"mit.edu/dsg/planopt/planner"
)

var (
	pushLimitTableScan = matching.NewCapture[*planner.TableScanNode]()
	pushLimitPattern   = planner.Limit().
				With(planner.Source().Matching(planner.TableScan().CapturedAs(pushLimitTableScan)))
)

// PushLimitIntoTableScan asks the scanned table's connector to stop after the
// limit. A guaranteed limit removes the limit node; a best effort one keeps it
// above the new scan.
type PushLimitIntoTableScan struct {
	metadata *connector.Metadata
}

func NewPushLimitIntoTableScan(metadata *connector.Metadata) *PushLimitIntoTableScan {
	return &PushLimitIntoTableScan{metadata: metadata}
}

func (r *PushLimitIntoTableScan) Name() string {
	return "push_limit_into_table_scan"
}

func (r *PushLimitIntoTableScan) Pattern() *matching.Pattern[*planner.LimitNode] {
	return pushLimitPattern
}

func (r *PushLimitIntoTableScan) Apply(node *planner.LimitNode, captures matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
	scan := matching.Get(captures, pushLimitTableScan)

	n, ok, err := r.metadata.ApplyLimit(ctx.Context(), ctx.Session(), scan.Table, node.Count)
	if err != nil || !ok {
		return iterative.Unchanged(), err
	}

	ids := ctx.IDAllocator()
	newScan := scan.WithTable(ids.NextID(), n.Handle)
	if n.Guaranteed {
		return iterative.Replaced(newScan), nil
	}
	return iterative.Replaced(planner.NewLimitNode(ids.NextID(), newScan, node.Count)), nil
}
