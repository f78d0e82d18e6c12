// Package rule holds the plan rewriting rules of the optimizer.
package rule

import (
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/planner"
)

// Default returns the production rule list, in the order rules are tried.
// Local simplifications come before connector pushdowns so that connectors
// are asked about the simplest plan.
func Default(metadata *connector.Metadata) []iterative.AnyRule {
	return []iterative.AnyRule{
		iterative.Adapt[*planner.LimitNode](EvaluateZeroLimit{}),
		iterative.Adapt[*planner.LimitNode](MergeLimits{}),
		iterative.Adapt[*planner.LimitNode](MergeLimitWithSort{}),
		iterative.Adapt[*planner.FilterNode](RemoveTrivialFilters{}),
		iterative.Adapt[*planner.FilterNode](EvaluateFilterOverValues{}),
		iterative.Adapt[*planner.LimitNode](NewPushLimitIntoTableScan(metadata)),
		iterative.Adapt[*planner.TableFinishNode](NewPushDeleteIntoConnector(metadata)),
	}
}
