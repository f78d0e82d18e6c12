package iterative

import (
	"context"

	"go.uber.org/zap"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/session"
)

// Context is what a rule sees of the compilation it runs in. It belongs to one
// Optimize call.
type Context struct {
	ctx     context.Context
	session *session.Session
	ids     *planner.PlanNodeIDAllocator
	memo    *Memo
	logger  *zap.Logger
}

// Context returns the cancellation context of the compilation. Rules pass it
// to anything that may block, i.e. capability negotiation.
func (c *Context) Context() context.Context {
	return c.ctx
}

func (c *Context) Session() *session.Session {
	return c.session
}

// IDAllocator mints ids for the nodes a rule constructs.
func (c *Context) IDAllocator() *planner.PlanNodeIDAllocator {
	return c.ids
}

// Resolve returns the node a group reference stands for, or node itself when
// it is not a reference. Sources of nodes handed to rules are references.
func (c *Context) Resolve(node planner.PlanNode) planner.PlanNode {
	return c.memo.Resolve(node).(planner.PlanNode)
}

func (c *Context) Logger() *zap.Logger {
	return c.logger
}
