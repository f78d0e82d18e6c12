package iterative

import (
	"context"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/session"
)

const DefaultMaxPasses = 100

// Config bounds a single Optimize call.
type Config struct {
	// MaxPasses is the number of passes that may change the plan. The pass
	// that confirms the fixpoint is not counted, so a rule set needing n
	// rewriting passes runs n+1 passes and needs MaxPasses >= n.
	MaxPasses int
	// Timeout cancels an optimization running longer, if positive.
	Timeout time.Duration
	// DisabledRules are rule names never applied.
	DisabledRules []string
}

func NewConfig() Config {
	return Config{MaxPasses: DefaultMaxPasses}
}

// Optimizer applies a rule set to plans until no rule fires. One Optimizer can
// serve any number of concurrent compilations; each Optimize call keeps its
// state to itself.
type Optimizer struct {
	rules   *RuleSet
	config  Config
	logger  *zap.Logger
	metrics *Metrics
}

// NewOptimizer returns an optimizer for rules. logger and metrics may be nil.
func NewOptimizer(rules *RuleSet, config Config, logger *zap.Logger, metrics *Metrics) *Optimizer {
	if config.MaxPasses <= 0 {
		config.MaxPasses = DefaultMaxPasses
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		rules:   rules,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Optimize rewrites plan to a fixpoint of the rule set. It either returns the
// fully rewritten plan or an error; a partially rewritten plan is never
// returned. The input plan is not modified.
func (o *Optimizer) Optimize(ctx context.Context, plan planner.PlanNode, s *session.Session, ids *planner.PlanNodeIDAllocator) (result planner.PlanNode, err error) {
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	run := &optimization{
		optimizer: o,
		memo:      NewMemo(ids, plan),
		enabled:   o.enabledRules(s),
		logger:    o.logger.With(zap.Stringer("query_id", s.QueryID)),
		lastIndex: -1,
	}
	run.ctx = &Context{ctx: ctx, session: s, ids: ids, memo: run.memo, logger: run.logger}

	defer func() {
		if r := recover(); r != nil {
			if ok, e := shouldCatch(r); ok {
				err = e
			} else {
				panic(r)
			}
		}
		if err != nil {
			result = nil
			o.recordFailure(run, err)
		}
	}()

	start := time.Now()
	if err := run.fixpoint(); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.Passes.Observe(float64(run.passes))
	}
	run.logger.Info("Optimized plan",
		zap.Int("passes", run.passes),
		zap.Int("applications", run.applications),
		zap.Duration("elapsed", time.Since(start)))
	return run.memo.Extract(), nil
}

func (o *Optimizer) enabledRules(s *session.Session) map[string]bool {
	enabled := make(map[string]bool, o.rules.Len())
	for _, r := range o.rules.Rules() {
		enabled[r.Name()] = r.Enabled(s) && !slices.Contains(o.config.DisabledRules, r.Name())
	}
	return enabled
}

func (o *Optimizer) recordFailure(run *optimization, err error) {
	code := common.Classify(err)
	if o.metrics != nil {
		o.metrics.Failures.WithLabelValues(code.String()).Inc()
	}
	run.logger.Warn("Optimization failed",
		zap.Stringer("code", code),
		zap.Int("passes", run.passes),
		zap.Error(err))
}

// optimization is the state of one Optimize call.
type optimization struct {
	optimizer *Optimizer
	memo      *Memo
	ctx       *Context
	enabled   map[string]bool
	logger    *zap.Logger

	passes       int
	applications int
	lastRule     string
	lastIndex    int
}

func (run *optimization) fixpoint() error {
	for {
		if err := run.checkCancelled(); err != nil {
			return err
		}
		run.passes++
		changes, err := run.pass()
		if err != nil {
			return err
		}
		if changes == 0 {
			return nil
		}
		if run.passes > run.optimizer.config.MaxPasses {
			return run.limitExceeded()
		}
	}
}

// pass visits every group once, children before parents, and returns the
// number of replacements made.
func (run *optimization) pass() (int, error) {
	changes := 0
	for _, group := range run.memo.Groups() {
		if err := run.checkCancelled(); err != nil {
			return 0, err
		}
		n, err := run.exploreGroup(group)
		if err != nil {
			return 0, err
		}
		changes += n
	}
	return changes, nil
}

// exploreGroup applies rules to the node of group until none fires. After a
// replacement, matching restarts from the first rule on the new node.
func (run *optimization) exploreGroup(group int) (int, error) {
	changes := 0
	for {
		replaced, err := run.applyFirst(group)
		if err != nil || !replaced {
			return changes, err
		}
		changes++
		if changes > run.optimizer.config.MaxPasses {
			return changes, run.limitExceeded()
		}
	}
}

// applyFirst applies the first rule, in registration order, that replaces the
// node of group.
func (run *optimization) applyFirst(group int) (bool, error) {
	node := run.memo.Node(group)
	for _, candidate := range run.optimizer.rules.candidates(node) {
		rule := candidate.rule
		if !run.enabled[rule.Name()] {
			continue
		}
		result, matched, err := rule.Apply(node, run.ctx)
		if err != nil {
			return false, errors.Wrapf(err, "applying rule %s to node %d", rule.Name(), node.ID())
		}
		if !matched || result.IsUnchanged() {
			continue
		}
		replacement := result.Node()
		if err := checkOutputs(rule, node, replacement); err != nil {
			return false, err
		}
		run.memo.Replace(group, replacement)
		run.applications++
		run.lastRule, run.lastIndex = rule.Name(), candidate.index
		if m := run.optimizer.metrics; m != nil {
			m.RuleApplications.WithLabelValues(rule.Name()).Inc()
		}
		run.logger.Debug("Rule applied",
			zap.String("rule", rule.Name()),
			zap.Int("pass", run.passes),
			zap.Int64("node", int64(node.ID())),
			zap.Int64("replacement", int64(replacement.ID())))
		return true, nil
	}
	return false, nil
}

func (run *optimization) checkCancelled() error {
	if err := run.ctx.ctx.Err(); err != nil {
		return common.WrapError(err, common.CancelledError, "optimization cancelled after %d passes", run.passes)
	}
	return nil
}

func (run *optimization) limitExceeded() error {
	return common.NewError(common.OptimizerLimitExceededError,
		"no fixpoint after %d passes; last rule applied: %s (index %d)",
		run.passes, run.lastRule, run.lastIndex)
}

// checkOutputs verifies that a replacement produces the symbols its ancestors
// depend on.
func checkOutputs(rule AnyRule, node, replacement planner.PlanNode) error {
	want, got := node.Outputs(), replacement.Outputs()
	if !slices.Equal(planner.OutputNames(want), planner.OutputNames(got)) {
		return errors.AssertionFailedf("rule %s replaced node %d producing %v with node %d producing %v",
			rule.Name(), node.ID(), planner.OutputNames(want), replacement.ID(), planner.OutputNames(got))
	}
	return nil
}
