// Command planopt optimizes and runs logical plans described in YAML against
// an in-memory connector.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"mit.edu/dsg/planopt/config"
	"mit.edu/dsg/planopt/iterative"
	"mit.edu/dsg/planopt/planner"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath    string
	catalogDir    string
	dataPath      string
	maxPasses     int
	timeout       time.Duration
	disabledRules []string
	properties    []string
	logLevel      string
	logFormat     string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	v := newViper()
	var o options

	cmd := &cobra.Command{
		Use:           "planopt",
		Short:         "Rule-based optimizer for logical query plans",
		SilenceUsage:  true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	bindOptions(v, cmd, []opt{
		newOpt(&o.configPath, "config", "", "path to a TOML configuration file"),
		newOpt(&o.catalogDir, "catalog-dir", "", "directory holding catalog.json; empty keeps the catalog in memory"),
		newOpt(&o.dataPath, "data", "", "YAML dataset of tables and rows to load first"),
		newOpt(&o.maxPasses, "max-passes", iterative.DefaultMaxPasses, "passes after which optimization fails"),
		newOpt(&o.timeout, "timeout", time.Duration(0), "optimization timeout; zero disables it"),
		newOpt(&o.disabledRules, "disable-rule", nil, "rule names never applied"),
		newOpt(&o.properties, "set", nil, "session properties as name=value"),
		newOpt(&o.logLevel, "log-level", "", "log level: debug, info, warn or error"),
		newOpt(&o.logFormat, "log-format", "", "log format: auto, console or json"),
	})

	cmd.AddCommand(
		newOptimizeCommand(v, stdout, stderr),
		newExecuteCommand(v, stdout, stderr),
		newRulesCommand(v, stdout, stderr),
	)
	return cmd
}

// loadConfig reads the configuration file, if any, and applies the options
// set by flag or environment on top of it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.NewConfig()
	if path := v.GetString("config"); path != "" {
		var err error
		if cfg, err = config.ParseConfigFile(path); err != nil {
			return nil, err
		}
	}
	if v.IsSet("catalog-dir") {
		cfg.Catalog.Dir = v.GetString("catalog-dir")
	}
	if v.IsSet("max-passes") {
		cfg.Optimizer.MaxPasses = v.GetInt("max-passes")
	}
	if v.IsSet("timeout") {
		cfg.Optimizer.Timeout = config.Duration(v.GetDuration("timeout"))
	}
	if v.IsSet("disable-rule") {
		cfg.Optimizer.DisabledRules = append(cfg.Optimizer.DisabledRules, v.GetStringSlice("disable-rule")...)
	}
	if v.IsSet("log-level") {
		level, err := zapcore.ParseLevel(v.GetString("log-level"))
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = level
	}
	if v.IsSet("log-format") {
		cfg.Logging.Format = v.GetString("log-format")
	}
	return cfg, cfg.Validate()
}

// setup builds the engine and loads the dataset, if one was given.
func setup(ctx context.Context, v *viper.Viper, stderr io.Writer) (*engine, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(cfg, stderr)
	if err != nil {
		return nil, err
	}
	if data := v.GetString("data"); data != "" {
		if err := e.loadData(ctx, data); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func newOptimizeCommand(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	var showMetrics bool
	cmd := &cobra.Command{
		Use:   "optimize PLAN",
		Short: "Optimize the plan described in a YAML file and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), v, stderr)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			s, err := e.newSession(v.GetStringSlice("set"))
			if err != nil {
				return err
			}
			plan, err := e.optimize(cmd.Context(), args[0], s)
			if err != nil {
				return err
			}
			fmt.Fprint(stdout, planner.Format(plan))
			if showMetrics {
				return writeMetrics(stdout, e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print optimizer metrics after the plan")
	return cmd
}

func newExecuteCommand(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "execute PLAN",
		Short: "Optimize the plan described in a YAML file and run it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), v, stderr)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			s, err := e.newSession(v.GetStringSlice("set"))
			if err != nil {
				return err
			}
			plan, err := e.optimize(cmd.Context(), args[0], s)
			if err != nil {
				return err
			}
			rows, err := e.execute(cmd.Context(), plan)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			names := make([]string, len(plan.Outputs()))
			for i, symbol := range plan.Outputs() {
				names[i] = symbol.Name
			}
			fmt.Fprintln(tw, strings.Join(names, "\t"))
			for _, row := range rows {
				cells := make([]string, len(row))
				for i, value := range row {
					cells[i] = value.String()
				}
				fmt.Fprintln(tw, strings.Join(cells, "\t"))
			}
			return tw.Flush()
		},
	}
}

func newRulesCommand(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the optimizer rules in the order they are tried",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			e, err := newEngine(cfg, stderr)
			if err != nil {
				return err
			}
			disabled := make(map[string]bool, len(cfg.Optimizer.DisabledRules))
			for _, name := range cfg.Optimizer.DisabledRules {
				disabled[name] = true
			}

			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			for i, r := range e.rules.Rules() {
				state := "enabled"
				if disabled[r.Name()] {
					state = "disabled"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, r.Name(), r.RootType(), state)
			}
			return tw.Flush()
		},
	}
}

// writeMetrics prints the counters and histograms the optimizer recorded.
func writeMetrics(w io.Writer, e *engine) error {
	families, err := e.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				fmt.Fprintf(w, "%s_count %d\n", name, m.GetHistogram().GetSampleCount())
				fmt.Fprintf(w, "%s_sum %g\n", name, m.GetHistogram().GetSampleSum())
			}
		}
	}
	return nil
}
