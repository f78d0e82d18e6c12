package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"mit.edu/dsg/planopt/catalog"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/config"
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/connector/memory"
	"mit.edu/dsg/planopt/execution"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/iterative/rule"
	"mit.edu/dsg/planopt/logger"
	"mit.edu/dsg/planopt/planfile"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/session"
)

// engine wires one process worth of components: the catalog, the memory
// connector serving it, and an optimizer running the default rules.
type engine struct {
	config   *config.Config
	logger   *zap.Logger
	catalog  *catalog.Catalog
	provider catalog.PersistenceProvider
	memory   *memory.Connector
	rules    *iterative.RuleSet
	opt      *iterative.Optimizer
	registry *prometheus.Registry
}

func newEngine(cfg *config.Config, logOut io.Writer) (*engine, error) {
	log, err := logger.New(logOut, cfg.Logging)
	if err != nil {
		return nil, err
	}

	var provider catalog.PersistenceProvider = catalog.NullPersistence{}
	if cfg.Catalog.Dir != "" {
		if err := os.MkdirAll(cfg.Catalog.Dir, 0755); err != nil {
			return nil, errors.Wrap(err, "creating catalog directory")
		}
		provider = catalog.NewDiskCatalogManager(cfg.Catalog.Dir)
	}
	cat, err := catalog.NewCatalog(provider)
	if err != nil {
		return nil, errors.Wrap(err, "loading catalog")
	}

	conn := memory.New(cfg.Catalog.Connector, cat, log.With(zap.String("connector", cfg.Catalog.Connector)))
	metadata, err := connector.NewMetadata(conn)
	if err != nil {
		return nil, err
	}
	rules, err := iterative.NewRuleSet(rule.Default(metadata)...)
	if err != nil {
		return nil, err
	}

	metrics := iterative.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.PrometheusCollectors()...)

	return &engine{
		config:   cfg,
		logger:   log,
		catalog:  cat,
		provider: provider,
		memory:   conn,
		rules:    rules,
		opt:      iterative.NewOptimizer(rules, cfg.IterativeConfig(), log.With(zap.String("service", "optimizer")), metrics),
		registry: registry,
	}, nil
}

// loadData registers and fills the tables of the dataset in file.
func (e *engine) loadData(ctx context.Context, file string) error {
	d, err := planfile.LoadDataset(file)
	if err != nil {
		return err
	}
	n, err := d.Apply(ctx, e.catalog, e.provider, e.config.Catalog.Connector, e.memory)
	if err != nil {
		return err
	}
	e.logger.Info("Loaded dataset", zap.String("file", file), zap.Int("rows", n))
	return nil
}

// newSession returns a session on the engine's catalog with properties given
// as name=value pairs.
func (e *engine) newSession(properties []string) (*session.Session, error) {
	s := session.New(os.Getenv("USER"), e.config.Catalog.Connector, "default")
	for _, p := range properties {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, errors.Newf("session property %q is not name=value", p)
		}
		s.SetProperty(name, value)
	}
	return s, nil
}

// optimize builds the plan described in file and rewrites it.
func (e *engine) optimize(ctx context.Context, file string, s *session.Session) (planner.PlanNode, error) {
	ids := planner.NewPlanNodeIDAllocator()
	plan, err := planfile.Load(file, e.catalog, ids)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Loaded plan", zap.String("file", file), zap.Stringer("query_id", s.QueryID))
	return e.opt.Optimize(logger.NewContextWithLogger(ctx, e.logger), plan, s, ids)
}

// execute runs an optimized plan against the memory connector.
func (e *engine) execute(ctx context.Context, plan planner.PlanNode) ([][]common.Value, error) {
	exec, err := execution.Build(plan)
	if err != nil {
		return nil, err
	}
	sources := map[string]execution.DataSource{e.config.Catalog.Connector: e.memory}
	return execution.Collect(execution.NewExecutorContext(ctx, sources, e.logger), exec)
}
