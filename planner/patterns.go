package planner

import (
	"mit.edu/dsg/planopt/matching"
)

var (
	sourceProperty = matching.NewProperty("source", func(n PlanNode) (PlanNode, bool) {
		sources := n.Sources()
		if len(sources) != 1 {
			return nil, false
		}
		return sources[0], true
	})
	sourcesProperty = matching.NewProperty("sources", func(n PlanNode) ([]PlanNode, bool) {
		return n.Sources(), true
	})
	limitCountProperty = matching.NewProperty("count", func(n *LimitNode) (int64, bool) {
		return n.Count, true
	})
	filterPredicateProperty = matching.NewProperty("predicate", func(n *FilterNode) (Expr, bool) {
		return n.Predicate, true
	})
	outputCountProperty = matching.NewProperty("outputCount", func(n PlanNode) (int, bool) {
		return len(n.Outputs()), true
	})
)

func AnyNode() *matching.Pattern[PlanNode] {
	return matching.TypeOf[PlanNode]()
}

func TableScan() *matching.Pattern[*TableScanNode] {
	return matching.TypeOf[*TableScanNode]()
}

func Values() *matching.Pattern[*ValuesNode] {
	return matching.TypeOf[*ValuesNode]()
}

func Filter() *matching.Pattern[*FilterNode] {
	return matching.TypeOf[*FilterNode]()
}

func Project() *matching.Pattern[*ProjectNode] {
	return matching.TypeOf[*ProjectNode]()
}

func Limit() *matching.Pattern[*LimitNode] {
	return matching.TypeOf[*LimitNode]()
}

func Sort() *matching.Pattern[*SortNode] {
	return matching.TypeOf[*SortNode]()
}

func TopN() *matching.Pattern[*TopNNode] {
	return matching.TypeOf[*TopNNode]()
}

func Join() *matching.Pattern[*JoinNode] {
	return matching.TypeOf[*JoinNode]()
}

func Delete() *matching.Pattern[*DeleteNode] {
	return matching.TypeOf[*DeleteNode]()
}

func TableFinish() *matching.Pattern[*TableFinishNode] {
	return matching.TypeOf[*TableFinishNode]()
}

func MetadataDelete() *matching.Pattern[*MetadataDeleteNode] {
	return matching.TypeOf[*MetadataDeleteNode]()
}

// Source is the only source of a node. Nodes with zero or several sources do
// not have one, so patterns using Source do not match them.
func Source() matching.Property[PlanNode, PlanNode] {
	return sourceProperty
}

// Sources are all sources of a node, in order.
func Sources() matching.Property[PlanNode, []PlanNode] {
	return sourcesProperty
}

// OutputCount is the number of output symbols of a node.
func OutputCount() matching.Property[PlanNode, int] {
	return outputCountProperty
}

func LimitCount() matching.Property[*LimitNode, int64] {
	return limitCountProperty
}

func FilterPredicate() matching.Property[*FilterNode, Expr] {
	return filterPredicateProperty
}
