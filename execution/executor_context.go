package execution

import (
	"context"

	"go.uber.org/zap"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
)

// DataSource is the execution-side half of a connector: it reads rows and
// performs the deletes the optimizer planned.
type DataSource interface {
	Scan(ctx context.Context, handle connector.TableHandle, columns []string) ([][]common.Value, error)
	DeleteRows(ctx context.Context, handle connector.TableHandle, rowIDs []int64) (int64, error)
	ExecuteMetadataDelete(ctx context.Context, handle connector.TableHandle) (int64, error)
}

// ExecutorContext holds all the state and resources required for query execution.
// It is passed to every Executor during initialization.
type ExecutorContext struct {
	ctx     context.Context
	sources map[string]DataSource
	logger  *zap.Logger
}

// NewExecutorContext returns a context reading from sources, keyed by catalog
// name.
func NewExecutorContext(ctx context.Context, sources map[string]DataSource, logger *zap.Logger) *ExecutorContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutorContext{ctx: ctx, sources: sources, logger: logger}
}

func (ctx *ExecutorContext) Context() context.Context {
	return ctx.ctx
}

func (ctx *ExecutorContext) Logger() *zap.Logger {
	return ctx.logger
}

// Source returns the data source serving handle.
func (ctx *ExecutorContext) Source(handle connector.TableHandle) (DataSource, error) {
	s, ok := ctx.sources[handle.Catalog]
	if !ok {
		return nil, common.NewError(common.NoSuchObjectError, "no data source for catalog '%s'", handle.Catalog)
	}
	return s, nil
}
