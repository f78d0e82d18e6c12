package iterative_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/connector/connectortest"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/iterative/rule"
	"mit.edu/dsg/planopt/matching"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/session"
	"mit.edu/dsg/planopt/types"
)

type fixture struct {
	stub      *connectortest.Connector
	metadata  *connector.Metadata
	optimizer *iterative.Optimizer
	metrics   *iterative.Metrics
	session   *session.Session
	ids       *planner.PlanNodeIDAllocator
}

func newFixture(t *testing.T, config iterative.Config, rules ...iterative.AnyRule) *fixture {
	t.Helper()
	f := &fixture{
		stub:    connectortest.New("memory"),
		metrics: iterative.NewMetrics(),
		session: session.New("test", "memory", "default"),
		ids:     planner.NewPlanNodeIDAllocator(),
	}
	var err error
	f.metadata, err = connector.NewMetadata(f.stub)
	require.NoError(t, err)
	if len(rules) == 0 {
		rules = []iterative.AnyRule{iterative.Adapt[*planner.TableFinishNode](rule.NewPushDeleteIntoConnector(f.metadata))}
	}
	ruleSet, err := iterative.NewRuleSet(rules...)
	require.NoError(t, err)
	f.optimizer = iterative.NewOptimizer(ruleSet, config, zaptest.NewLogger(t), f.metrics)
	return f
}

func (f *fixture) optimize(plan planner.PlanNode) (planner.PlanNode, error) {
	return f.optimizer.Optimize(context.Background(), plan, f.session, f.ids)
}

func TestCapabilityAbsenceIsNoOp(t *testing.T) {
	f := newFixture(t, iterative.NewConfig())
	plan := deletePlan(f.ids)

	result, err := f.optimize(plan)
	require.NoError(t, err)
	assert.Equal(t, ids(plan), ids(result))
	assert.Equal(t, kinds(plan), kinds(result))
	assert.Len(t, f.stub.Calls(), 1, "negotiation is attempted once per match")
}

func TestCapabilityPresenceProducesExactReplacement(t *testing.T) {
	f := newFixture(t, iterative.NewConfig())
	f.stub.Support(connector.CapabilityDelete, true, connectortest.WithPayload("h2"))
	plan := deletePlan(f.ids)

	result, err := f.optimize(plan)
	require.NoError(t, err)

	md, ok := result.(*planner.MetadataDeleteNode)
	require.True(t, ok, "expected a metadata delete, got\n%s", planner.Format(result))
	assert.NotContains(t, ids(plan), md.ID(), "the replacement gets a fresh id")
	assert.Equal(t, "h2", md.Target.Payload)
	assert.Equal(t, plan.Outputs(), md.Outputs())
	assert.Empty(t, md.Sources())

	require.Len(t, f.stub.Calls(), 1)
	assert.Equal(t, ordersHandle, f.stub.Calls()[0].Handle)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RuleApplications.WithLabelValues("push_delete_into_connector")))
}

func TestPushdownIsIdempotent(t *testing.T) {
	f := newFixture(t, iterative.NewConfig())
	f.stub.Support(connector.CapabilityDelete, true, connectortest.WithPayload("h2"))

	once, err := f.optimize(deletePlan(f.ids))
	require.NoError(t, err)
	_, ok := rule.NewPushDeleteIntoConnector(f.metadata).Pattern().Match(once, matching.NoResolve)
	assert.False(t, ok, "the rewritten plan no longer has the scan/delete/finish shape")

	twice, err := f.optimize(once)
	require.NoError(t, err)
	assert.Equal(t, ids(once), ids(twice))
	assert.Len(t, f.stub.Calls(), 1, "no further negotiation on the rewritten plan")
}

// TestApplyOnlyAfterMatch checks that every node handed to Apply is one the
// rule's own pattern matches.
func TestApplyOnlyAfterMatch(t *testing.T) {
	pattern := planner.Limit().With(planner.Source().Matching(planner.TableScan()))
	var applied, violations int
	checker := funcRule[*planner.LimitNode]{
		name:    "check_match",
		pattern: pattern,
		apply: func(node *planner.LimitNode, _ matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
			applied++
			resolver := matching.ResolverFunc(func(v any) any { return ctx.Resolve(v.(planner.PlanNode)) })
			if _, ok := pattern.Match(node, resolver); !ok {
				violations++
			}
			return iterative.Unchanged(), nil
		},
	}
	f := newFixture(t, iterative.NewConfig(), iterative.Adapt[*planner.LimitNode](checker))

	scan := scanPlan(f.ids)
	inner := planner.NewLimitNode(f.ids.NextID(), scan, 10)
	filtered := planner.NewFilterNode(f.ids.NextID(), inner, planner.NewBooleanConstant(true))
	outer := planner.NewLimitNode(f.ids.NextID(), filtered, 5)

	_, err := f.optimize(outer)
	require.NoError(t, err)
	assert.Equal(t, 1, applied, "only the limit directly over the scan matches")
	assert.Zero(t, violations)
}

var pushedProject = matching.NewCapture[*planner.ProjectNode]()

// pushLimitThroughProject moves a limit below the project under it. The new
// limit is a new group, so it moves at most one level per pass.
var pushLimitThroughProject = funcRule[*planner.LimitNode]{
	name:    "push_limit_through_project",
	pattern: planner.Limit().With(planner.Source().Matching(planner.Project().CapturedAs(pushedProject))),
	apply: func(node *planner.LimitNode, captures matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
		project := matching.Get(captures, pushedProject)
		limit := planner.NewLimitNode(ctx.IDAllocator().NextID(), project.Source, node.Count)
		return iterative.Replaced(planner.NewProjectNode(ctx.IDAllocator().NextID(), limit, project.Outputs(), project.Assignments)), nil
	},
}

// countingPasses returns a rule that never fires on the scan, which is visited
// exactly once per pass, and the number of times it was asked.
func countingPasses() (iterative.AnyRule, *int) {
	visits := new(int)
	counter := funcRule[*planner.TableScanNode]{
		name:    "count_passes",
		pattern: planner.TableScan(),
		apply: func(*planner.TableScanNode, matching.Captures, *iterative.Context) (iterative.Result, error) {
			*visits++
			return iterative.Unchanged(), nil
		},
	}
	return iterative.Adapt[*planner.TableScanNode](counter), visits
}

// limitOverProjects builds a limit over depth identity projects over a scan.
func limitOverProjects(ids *planner.PlanNodeIDAllocator, depth int) (*planner.LimitNode, *planner.TableScanNode) {
	scan := scanPlan(ids)
	var plan planner.PlanNode = scan
	for i := 0; i < depth; i++ {
		assignments := make([]planner.Expr, 0, len(scan.Outputs()))
		for _, symbol := range scan.Outputs() {
			assignments = append(assignments, planner.NewSymbolReference(symbol))
		}
		plan = planner.NewProjectNode(ids.NextID(), plan, scan.Outputs(), assignments)
	}
	return planner.NewLimitNode(ids.NextID(), plan, 10), scan
}

// TestFixpointTermination pushes a limit through a stack of projects. The
// number of projects below the limit is a potential that drops by exactly one
// per pass, so the driver must stop after potential+1 passes.
func TestFixpointTermination(t *testing.T) {
	const depth = 6

	t.Run("pass bound", func(t *testing.T) {
		counter, passes := countingPasses()
		config := iterative.NewConfig()
		config.MaxPasses = depth
		f := newFixture(t, config, iterative.Adapt[*planner.LimitNode](pushLimitThroughProject), counter)

		plan, scan := limitOverProjects(f.ids, depth)
		result, err := f.optimize(plan)
		require.NoError(t, err, "a cap equal to the number of rewriting passes suffices")
		assert.LessOrEqual(t, *passes, depth+1)
		assert.Equal(t, depth+1, *passes, "one pass per project plus the confirming pass")
		assert.Equal(t, float64(depth), testutil.ToFloat64(f.metrics.RuleApplications.WithLabelValues("push_limit_through_project")))

		expected := []planner.Kind{}
		for i := 0; i < depth; i++ {
			expected = append(expected, planner.KindProject)
		}
		expected = append(expected, planner.KindLimit, planner.KindTableScan)
		assert.Equal(t, expected, kinds(result))
		assert.Equal(t, scan.ID(), ids(result)[depth+1])
	})

	t.Run("cap below the rewriting passes", func(t *testing.T) {
		config := iterative.NewConfig()
		config.MaxPasses = depth - 1
		f := newFixture(t, config, iterative.Adapt[*planner.LimitNode](pushLimitThroughProject))

		plan, _ := limitOverProjects(f.ids, depth)
		result, err := f.optimize(plan)
		assert.Nil(t, result)
		assert.Equal(t, common.OptimizerLimitExceededError, common.Classify(err))
		assert.Contains(t, err.Error(), "push_limit_through_project (index 0)")
	})

	t.Run("single rewriting pass under a cap of one", func(t *testing.T) {
		counter, passes := countingPasses()
		config := iterative.NewConfig()
		config.MaxPasses = 1
		f := newFixture(t, config, iterative.Adapt[*planner.LimitNode](pushLimitThroughProject), counter)

		plan, _ := limitOverProjects(f.ids, 1)
		result, err := f.optimize(plan)
		require.NoError(t, err)
		assert.Equal(t, 2, *passes)
		assert.Equal(t, []planner.Kind{planner.KindProject, planner.KindLimit, planner.KindTableScan}, kinds(result))
	})
}

// TestIDUniqueness runs rules that construct nodes and checks that every id in
// the result belongs to exactly one node, and that nodes created by rules got
// ids never used by the input plan.
func TestIDUniqueness(t *testing.T) {
	f := newFixture(t, iterative.NewConfig(), rule.Default(nil)[:3]...)

	scan := scanPlan(f.ids)
	sort := planner.NewSortNode(f.ids.NextID(), scan, []planner.OrderByClause{{Expr: planner.NewSymbolReference(scan.Outputs()[0])}})
	l1 := planner.NewLimitNode(f.ids.NextID(), sort, 20)
	l2 := planner.NewLimitNode(f.ids.NextID(), l1, 10)
	join := planner.NewJoinNode(f.ids.NextID(), l2, planner.NewLimitNode(f.ids.NextID(), scanPlan(f.ids), 0), nil)
	original := ids(join)

	result, err := f.optimize(join)
	require.NoError(t, err)
	t.Log("\n" + planner.Format(result))

	seen := make(map[planner.PlanNodeID]planner.PlanNode)
	for _, n := range nodes(result) {
		if prev, ok := seen[n.ID()]; ok {
			t.Fatalf("nodes %s and %s share id %d", prev, n, n.ID())
		}
		seen[n.ID()] = n
	}
	maxOriginal := original[0]
	for _, id := range original {
		maxOriginal = max(maxOriginal, id)
	}
	for _, n := range nodes(result) {
		switch n.Kind() {
		case planner.KindTopN, planner.KindValues:
			assert.Greater(t, n.ID(), maxOriginal, "%s was created by a rule", n)
		}
	}
	// The inner limit becomes a TopN before the outer limit is visited; no
	// rule in this set merges a limit into a TopN.
	assert.Equal(t, []planner.Kind{planner.KindJoin, planner.KindLimit, planner.KindTopN, planner.KindTableScan, planner.KindValues}, kinds(result))
}

func TestIterationCapIsFatal(t *testing.T) {
	grow := funcRule[*planner.LimitNode]{
		name:    "always_fires",
		pattern: planner.Limit(),
		apply: func(node *planner.LimitNode, _ matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
			return iterative.Replaced(planner.NewLimitNode(ctx.IDAllocator().NextID(), node.Source, node.Count)), nil
		},
	}
	config := iterative.NewConfig()
	config.MaxPasses = 5
	f := newFixture(t, config, iterative.Adapt[*planner.LimitNode](grow))

	result, err := f.optimize(planner.NewLimitNode(f.ids.NextID(), scanPlan(f.ids), 3))
	require.Error(t, err)
	assert.Nil(t, result, "no partial plan is returned")
	assert.Equal(t, common.OptimizerLimitExceededError, common.Classify(err))
	assert.Contains(t, err.Error(), "always_fires (index 0)")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues("OptimizerLimitExceededError")))
}

func TestCancellation(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		f := newFixture(t, iterative.NewConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.optimizer.Optimize(ctx, deletePlan(f.ids), f.session, f.ids)
		assert.Equal(t, common.CancelledError, common.Classify(err))
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Empty(t, f.stub.Calls())
	})

	t.Run("during a pass", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cancelling := funcRule[*planner.LimitNode]{
			name:    "cancel",
			pattern: planner.Limit(),
			apply: func(*planner.LimitNode, matching.Captures, *iterative.Context) (iterative.Result, error) {
				cancel()
				return iterative.Unchanged(), nil
			},
		}
		f := newFixture(t, iterative.NewConfig(), iterative.Adapt[*planner.LimitNode](cancelling))
		plan := planner.NewLimitNode(f.ids.NextID(), planner.NewLimitNode(f.ids.NextID(), scanPlan(f.ids), 1), 2)
		result, err := f.optimizer.Optimize(ctx, plan, f.session, f.ids)
		assert.Nil(t, result)
		assert.Equal(t, common.CancelledError, common.Classify(err))
	})

	t.Run("during negotiation", func(t *testing.T) {
		config := iterative.NewConfig()
		config.Timeout = 20 * time.Millisecond
		f := newFixture(t, config)
		f.stub.Answer(connector.CapabilityDelete, func(connector.TableHandle, connector.Request) connectortest.Answer {
			time.Sleep(50 * time.Millisecond)
			return connectortest.Answer{Err: context.DeadlineExceeded}
		})

		result, err := f.optimize(deletePlan(f.ids))
		assert.Nil(t, result)
		assert.Equal(t, common.CancelledError, common.Classify(err))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues("CancelledError")))
		assert.Zero(t, testutil.ToFloat64(f.metrics.Failures.WithLabelValues("NegotiationFailedError")))
	})
}

func TestNegotiationFailureAbortsCompilation(t *testing.T) {
	f := newFixture(t, iterative.NewConfig())
	cause := errors.New("connection refused")
	f.stub.Fail(connector.CapabilityDelete, cause)

	result, err := f.optimize(deletePlan(f.ids))
	assert.Nil(t, result)
	assert.Equal(t, common.NegotiationFailedError, common.Classify(err))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "push_delete_into_connector")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues("NegotiationFailedError")))
}

func TestFinishWithSeveralOutputsIsAnInvariantViolation(t *testing.T) {
	f := newFixture(t, iterative.NewConfig())
	f.stub.Support(connector.CapabilityDelete, true, connectortest.WithPayload("h2"))
	plan := deletePlan(f.ids, planner.NewSymbol("rows", types.BIGINT), planner.NewSymbol("fragments", types.BIGINT))

	_, err := f.optimize(plan)
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))
	assert.Equal(t, common.InternalError, common.Classify(err))
}

func TestRulesCanBeDisabled(t *testing.T) {
	t.Run("session property", func(t *testing.T) {
		f := newFixture(t, iterative.NewConfig())
		f.stub.Support(connector.CapabilityDelete, true, connectortest.WithPayload("h2"))
		f.session.SetProperty(session.RuleEnabledProperty("push_delete_into_connector"), "false")

		plan := deletePlan(f.ids)
		result, err := f.optimize(plan)
		require.NoError(t, err)
		assert.Equal(t, ids(plan), ids(result))
		assert.Empty(t, f.stub.Calls())
	})

	t.Run("config", func(t *testing.T) {
		config := iterative.NewConfig()
		config.DisabledRules = []string{"push_delete_into_connector"}
		f := newFixture(t, config)
		f.stub.Support(connector.CapabilityDelete, true, connectortest.WithPayload("h2"))

		plan := deletePlan(f.ids)
		result, err := f.optimize(plan)
		require.NoError(t, err)
		assert.Equal(t, ids(plan), ids(result))
	})
}

func TestPanicsBecomeErrors(t *testing.T) {
	broken := funcRule[*planner.LimitNode]{
		name:    "broken",
		pattern: planner.Limit(),
		apply: func(node *planner.LimitNode, _ matching.Captures, _ *iterative.Context) (iterative.Result, error) {
			common.Assert(node.Count > 100, "limit %d too small", node.Count)
			return iterative.Unchanged(), nil
		},
	}
	f := newFixture(t, iterative.NewConfig(), iterative.Adapt[*planner.LimitNode](broken))

	_, err := f.optimize(planner.NewLimitNode(f.ids.NextID(), scanPlan(f.ids), 1))
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))
	assert.True(t, strings.Contains(err.Error(), "limit 1 too small"))
}

func TestReplacementMustKeepOutputs(t *testing.T) {
	narrowing := funcRule[*planner.LimitNode]{
		name:    "narrowing",
		pattern: planner.Limit(),
		apply: func(node *planner.LimitNode, _ matching.Captures, ctx *iterative.Context) (iterative.Result, error) {
			return iterative.Replaced(planner.NewEmptyValuesNode(ctx.IDAllocator().NextID(), node.Outputs()[:1])), nil
		},
	}
	f := newFixture(t, iterative.NewConfig(), iterative.Adapt[*planner.LimitNode](narrowing))

	_, err := f.optimize(planner.NewLimitNode(f.ids.NextID(), scanPlan(f.ids), 1))
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))
}

func TestInputPlanIsNotModified(t *testing.T) {
	f := newFixture(t, iterative.NewConfig())
	f.stub.Support(connector.CapabilityDelete, true, connectortest.WithPayload("h2"))
	plan := deletePlan(f.ids)
	before := planner.Format(plan)

	_, err := f.optimize(plan)
	require.NoError(t, err)
	assert.Equal(t, before, planner.Format(plan))
}
