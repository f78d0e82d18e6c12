package rule

import (
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/matching"
	"mit.edu/dsg/planopt/planner"
)

var (
	mergeLimitsChild   = matching.NewCapture[*planner.LimitNode]()
	mergeLimitsPattern = planner.Limit().
				With(planner.Source().Matching(planner.Limit().CapturedAs(mergeLimitsChild)))

	limitSortChild   = matching.NewCapture[*planner.SortNode]()
	limitSortPattern = planner.Limit().
				With(planner.Source().Matching(planner.Sort().CapturedAs(limitSortChild)))

	zeroLimitPattern = planner.Limit().With(matching.Equals(planner.LimitCount(), int64(0)))
)

// MergeLimits folds a limit over a limit into one limit of the smaller count.
type MergeLimits struct{}

func (MergeLimits) Name() string {
	return "merge_limits"
}

func (MergeLimits) Pattern() *matching.Pattern[*planner.LimitNode] {
	return mergeLimitsPattern
}

func (MergeLimits) Apply(node *planner.LimitNode, captures matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
	child := matching.Get(captures, mergeLimitsChild)
	return iterative.Replaced(planner.NewLimitNode(ctx.IDAllocator().NextID(), child.Source, min(node.Count, child.Count))), nil
}

// MergeLimitWithSort turns a limit over a sort into a TopN.
type MergeLimitWithSort struct{}

func (MergeLimitWithSort) Name() string {
	return "merge_limit_with_sort"
}

func (MergeLimitWithSort) Pattern() *matching.Pattern[*planner.LimitNode] {
	return limitSortPattern
}

func (MergeLimitWithSort) Apply(node *planner.LimitNode, captures matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
	sort := matching.Get(captures, limitSortChild)
	return iterative.Replaced(planner.NewTopNNode(ctx.IDAllocator().NextID(), sort.Source, node.Count, sort.OrderBy)), nil
}

// EvaluateZeroLimit replaces LIMIT 0 and everything below it with an empty
// values node.
type EvaluateZeroLimit struct{}

func (EvaluateZeroLimit) Name() string {
	return "evaluate_zero_limit"
}

func (EvaluateZeroLimit) Pattern() *matching.Pattern[*planner.LimitNode] {
	return zeroLimitPattern
}

func (EvaluateZeroLimit) Apply(node *planner.LimitNode, _ matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
	return iterative.Replaced(planner.NewEmptyValuesNode(ctx.IDAllocator().NextID(), node.Outputs())), nil
}
