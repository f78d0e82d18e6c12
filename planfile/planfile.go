// Package planfile reads logical plans described in YAML and builds them into
// plan trees, resolving tables and column types through the catalog. It
// stands in for an analyzer in tools and tests:
//
//	kind: table_finish
//	table: orders
//	source:
//	  kind: delete
//	  table: orders
//	  source:
//	    kind: table_scan
//	    table: orders
//	    columns: [$row_id]
package planfile

import (
	"bytes"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
	"mit.edu/dsg/planopt/catalog"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/types"
)

// Node describes one plan node. Which fields apply depends on Kind.
type Node struct {
	Kind string `yaml:"kind"`

	// table_scan, delete, table_finish
	Table string `yaml:"table,omitempty"`
	// table_scan: the columns read; values: "name:type" pairs
	Columns []string `yaml:"columns,omitempty"`
	// table_scan: symbol names for Columns, when they differ
	Symbols []string `yaml:"symbols,omitempty"`
	// values
	Rows [][]any `yaml:"rows,omitempty"`
	// limit, top_n
	Count int64 `yaml:"count,omitempty"`
	// filter
	Predicate *Expr `yaml:"predicate,omitempty"`
	// project
	Assignments []Assignment `yaml:"assignments,omitempty"`
	// sort, top_n
	OrderBy []OrderBy `yaml:"order_by,omitempty"`
	// delete: the single output; table_finish: the outputs. All bigint.
	Outputs []string `yaml:"outputs,omitempty"`
	// join
	Left     *Node        `yaml:"left,omitempty"`
	Right    *Node        `yaml:"right,omitempty"`
	Criteria []JoinClause `yaml:"criteria,omitempty"`

	Source *Node `yaml:"source,omitempty"`
}

// Assignment is one projected column.
type Assignment struct {
	Name string `yaml:"name"`
	Expr Expr   `yaml:"expr"`
}

// OrderBy is one sort key; Direction is "asc" (default) or "desc".
type OrderBy struct {
	Column    string `yaml:"column"`
	Direction string `yaml:"direction,omitempty"`
}

// JoinClause equates a column of the left source with one of the right.
type JoinClause struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// Expr describes a scalar expression: a column reference, a constant, or an
// operator applied to Left and Right (only Left for "not", "is null" and "is
// not null").
type Expr struct {
	Column string `yaml:"column,omitempty"`

	Int    *int64  `yaml:"int,omitempty"`
	String *string `yaml:"string,omitempty"`
	Bool   *bool   `yaml:"bool,omitempty"`
	// Null is the type name of a NULL constant.
	Null string `yaml:"null,omitempty"`

	Op    string `yaml:"op,omitempty"`
	Left  *Expr  `yaml:"left,omitempty"`
	Right *Expr  `yaml:"right,omitempty"`
}

// Parse decodes a plan description. Unknown fields are rejected.
func Parse(content []byte) (*Node, error) {
	var root Node
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&root); err != nil {
		return nil, common.WrapError(err, common.InvalidPlanError, "decoding plan description")
	}
	return &root, nil
}

// Load reads and builds the plan description in file.
func Load(file string, cat *catalog.Catalog, ids *planner.PlanNodeIDAllocator) (planner.PlanNode, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	plan, err := Build(content, cat, ids)
	return plan, errors.Wrap(err, file)
}

// Build parses content and builds the plan it describes. Node ids are minted
// from ids, children before parents.
func Build(content []byte, cat *catalog.Catalog, ids *planner.PlanNodeIDAllocator) (planner.PlanNode, error) {
	root, err := Parse(content)
	if err != nil {
		return nil, err
	}
	b := &builder{catalog: cat, ids: ids}
	return b.node(root, "$")
}

type builder struct {
	catalog *catalog.Catalog
	ids     *planner.PlanNodeIDAllocator
}

func invalid(path string, format string, args ...any) error {
	return common.NewError(common.InvalidPlanError, path+": "+format, args...)
}

func (b *builder) node(n *Node, path string) (planner.PlanNode, error) {
	if n == nil {
		return nil, invalid(path, "missing node")
	}
	switch n.Kind {
	case "table_scan":
		return b.tableScan(n, path)
	case "values":
		return b.values(n, path)
	case "join":
		left, err := b.node(n.Left, path+".left")
		if err != nil {
			return nil, err
		}
		right, err := b.node(n.Right, path+".right")
		if err != nil {
			return nil, err
		}
		criteria := make([]planner.EquiJoinClause, len(n.Criteria))
		for i, c := range n.Criteria {
			l, err := lookup(left.Outputs(), c.Left, path)
			if err != nil {
				return nil, err
			}
			r, err := lookup(right.Outputs(), c.Right, path)
			if err != nil {
				return nil, err
			}
			criteria[i] = planner.EquiJoinClause{Left: l, Right: r}
		}
		return planner.NewJoinNode(b.ids.NextID(), left, right, criteria), nil
	}

	if !unaryKinds[n.Kind] {
		return nil, invalid(path, "unknown node kind '%s'", n.Kind)
	}
	source, err := b.node(n.Source, path+".source")
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case "filter":
		if n.Predicate == nil {
			return nil, invalid(path, "filter without predicate")
		}
		predicate, err := b.expr(n.Predicate, source.Outputs(), path+".predicate")
		if err != nil {
			return nil, err
		}
		return planner.NewFilterNode(b.ids.NextID(), source, predicate), nil
	case "project":
		outputs := make([]planner.Symbol, len(n.Assignments))
		assignments := make([]planner.Expr, len(n.Assignments))
		for i, a := range n.Assignments {
			e, err := b.expr(&a.Expr, source.Outputs(), path+".assignments."+a.Name)
			if err != nil {
				return nil, err
			}
			outputs[i] = planner.NewSymbol(a.Name, e.OutputType())
			assignments[i] = e
		}
		return planner.NewProjectNode(b.ids.NextID(), source, outputs, assignments), nil
	case "limit":
		if n.Count < 0 {
			return nil, invalid(path, "negative limit %d", n.Count)
		}
		return planner.NewLimitNode(b.ids.NextID(), source, n.Count), nil
	case "sort", "top_n":
		orderBy, err := b.orderBy(n.OrderBy, source.Outputs(), path)
		if err != nil {
			return nil, err
		}
		if n.Kind == "sort" {
			return planner.NewSortNode(b.ids.NextID(), source, orderBy), nil
		}
		return planner.NewTopNNode(b.ids.NextID(), source, n.Count, orderBy), nil
	case "delete":
		table, err := b.table(n.Table, path)
		if err != nil {
			return nil, err
		}
		rowID, err := lookup(source.Outputs(), catalog.RowIDColumn, path)
		if err != nil {
			return nil, err
		}
		outputs := b.bigints(n.Outputs, "partial_rows")
		if len(outputs) != 1 {
			return nil, invalid(path, "delete has exactly one output, got %d", len(outputs))
		}
		return planner.NewDeleteNode(b.ids.NextID(), source, table.Handle(), rowID, outputs[0]), nil
	case "table_finish":
		table, err := b.table(n.Table, path)
		if err != nil {
			return nil, err
		}
		return planner.NewTableFinishNode(b.ids.NextID(), source, table.Handle(), b.bigints(n.Outputs, "rows")...), nil
	}
	return nil, errors.AssertionFailedf("unhandled node kind %s", n.Kind)
}

var unaryKinds = map[string]bool{
	"filter":       true,
	"project":      true,
	"limit":        true,
	"sort":         true,
	"top_n":        true,
	"delete":       true,
	"table_finish": true,
}

func (b *builder) table(name string, path string) (*catalog.Table, error) {
	t, err := b.catalog.GetTableMetadata(name)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return t, nil
}

func (b *builder) tableScan(n *Node, path string) (planner.PlanNode, error) {
	table, err := b.table(n.Table, path)
	if err != nil {
		return nil, err
	}
	if len(n.Symbols) != 0 && len(n.Symbols) != len(n.Columns) {
		return nil, invalid(path, "%d symbols for %d columns", len(n.Symbols), len(n.Columns))
	}
	outputs := make([]planner.Symbol, len(n.Columns))
	for i, name := range n.Columns {
		typ := types.ID
		if name != catalog.RowIDColumn {
			col, _, ok := table.Column(name)
			if !ok {
				return nil, common.NewError(common.NoSuchObjectError, "%s: column '%s' does not exist in table '%s'", path, name, table.Name)
			}
			typ = col.Type
		}
		symbol := name
		if len(n.Symbols) != 0 {
			symbol = n.Symbols[i]
		}
		outputs[i] = planner.NewSymbol(symbol, typ)
	}
	return planner.NewTableScanNode(b.ids.NextID(), table.Handle(), outputs, n.Columns), nil
}

func (b *builder) values(n *Node, path string) (planner.PlanNode, error) {
	outputs := make([]planner.Symbol, len(n.Columns))
	for i, c := range n.Columns {
		name, typeName, ok := strings.Cut(c, ":")
		if !ok {
			return nil, invalid(path, "values column '%s' is not name:type", c)
		}
		typ, err := types.Lookup(typeName)
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		outputs[i] = planner.NewSymbol(name, typ)
	}
	rows := make([][]common.Value, len(n.Rows))
	for r, raw := range n.Rows {
		if len(raw) != len(outputs) {
			return nil, invalid(path, "row %d has %d values for %d columns", r, len(raw), len(outputs))
		}
		rows[r] = make([]common.Value, len(raw))
		for i, v := range raw {
			value, err := literal(v, outputs[i].Type)
			if err != nil {
				return nil, invalid(path, "row %d column %s: %v", r, outputs[i].Name, err)
			}
			rows[r][i] = value
		}
	}
	return planner.NewValuesNodeFromRows(b.ids.NextID(), outputs, rows), nil
}

func literal(v any, typ types.Type) (common.Value, error) {
	if typ.Encoding() == common.StringType {
		switch v := v.(type) {
		case nil:
			return common.NewNullString(), nil
		case string:
			return common.NewStringValue(v), nil
		}
		return common.Value{}, errors.Newf("%v is not a %s", v, typ)
	}
	switch v := v.(type) {
	case nil:
		return common.NewNullInt(), nil
	case int:
		return common.NewIntValue(int64(v)), nil
	case bool:
		return common.NewBoolValue(v), nil
	}
	return common.Value{}, errors.Newf("%v is not a %s", v, typ)
}

func (b *builder) bigints(names []string, def string) []planner.Symbol {
	if len(names) == 0 {
		names = []string{def}
	}
	out := make([]planner.Symbol, len(names))
	for i, name := range names {
		out[i] = planner.NewSymbol(name, types.BIGINT)
	}
	return out
}

func (b *builder) orderBy(keys []OrderBy, scope []planner.Symbol, path string) ([]planner.OrderByClause, error) {
	out := make([]planner.OrderByClause, len(keys))
	for i, k := range keys {
		s, err := lookup(scope, k.Column, path)
		if err != nil {
			return nil, err
		}
		direction := planner.SortOrderAscending
		switch k.Direction {
		case "", "asc":
		case "desc":
			direction = planner.SortOrderDescending
		default:
			return nil, invalid(path, "unknown sort direction '%s'", k.Direction)
		}
		out[i] = planner.OrderByClause{Expr: planner.NewSymbolReference(s), Direction: direction}
	}
	return out, nil
}

func lookup(scope []planner.Symbol, name string, path string) (planner.Symbol, error) {
	for _, s := range scope {
		if s.Name == name {
			return s, nil
		}
	}
	return planner.Symbol{}, invalid(path, "symbol '%s' is not produced by the source (have %v)", name, planner.OutputNames(scope))
}

var comparisons = map[string]planner.ComparisonType{
	"=":  planner.Equal,
	"!=": planner.NotEqual,
	">":  planner.GreaterThan,
	"<":  planner.LessThan,
	">=": planner.GreaterThanOrEqual,
	"<=": planner.LessThanOrEqual,
}

var arithmetic = map[string]planner.ArithmeticType{
	"+": planner.Add,
	"-": planner.Sub,
	"*": planner.Mult,
	"/": planner.Div,
	"%": planner.Mod,
}

func (b *builder) expr(e *Expr, scope []planner.Symbol, path string) (planner.Expr, error) {
	switch {
	case e == nil:
		return nil, invalid(path, "missing expression")
	case e.Column != "":
		s, err := lookup(scope, e.Column, path)
		if err != nil {
			return nil, err
		}
		return planner.NewSymbolReference(s), nil
	case e.Int != nil:
		return planner.NewConstantValueExpression(types.BIGINT, common.NewIntValue(*e.Int)), nil
	case e.String != nil:
		return planner.NewConstantValueExpression(types.VARCHAR, common.NewStringValue(*e.String)), nil
	case e.Bool != nil:
		return planner.NewBooleanConstant(*e.Bool), nil
	case e.Null != "":
		typ, err := types.Lookup(e.Null)
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		null := common.NewNullInt()
		if typ.Encoding() == common.StringType {
			null = common.NewNullString()
		}
		return planner.NewConstantValueExpression(typ, null), nil
	}

	op := strings.ToLower(e.Op)
	left, err := b.expr(e.Left, scope, path+".left")
	if err != nil {
		return nil, err
	}
	switch op {
	case "not":
		return planner.NewNegationExpression(left), nil
	case "is null":
		return planner.NewNullCheckExpression(left, planner.IsNull), nil
	case "is not null":
		return planner.NewNullCheckExpression(left, planner.IsNotNull), nil
	}
	right, err := b.expr(e.Right, scope, path+".right")
	if err != nil {
		return nil, err
	}
	if op != "like" && left.OutputType().Encoding() != right.OutputType().Encoding() {
		return nil, invalid(path, "operator '%s' applied to %s and %s", e.Op, left.OutputType(), right.OutputType())
	}
	if c, ok := comparisons[op]; ok {
		return planner.NewComparisonExpression(left, right, c), nil
	}
	if a, ok := arithmetic[op]; ok {
		return planner.NewArithmeticExpression(left, right, a), nil
	}
	switch op {
	case "and":
		return planner.NewBinaryLogicExpression(left, right, planner.And), nil
	case "or":
		return planner.NewBinaryLogicExpression(left, right, planner.Or), nil
	case "||":
		return planner.NewStringConcatenation(left, right), nil
	case "like":
		return planner.NewLikeExpression(left, right), nil
	}
	return nil, invalid(path, "unknown operator '%s'", e.Op)
}
