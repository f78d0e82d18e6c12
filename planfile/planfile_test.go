package planfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/planopt/catalog"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/types"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.NewCatalog(catalog.NullPersistence{})
	require.NoError(t, err)
	_, err = cat.AddTable("orders", "memory", []catalog.Column{
		{Name: "id", Type: types.BIGINT},
		{Name: "customer", Type: types.VARCHAR},
	}, nil, catalog.NullPersistence{})
	require.NoError(t, err)
	_, err = cat.AddTable("lineitem", "memory", []catalog.Column{
		{Name: "order_id", Type: types.BIGINT},
		{Name: "quantity", Type: types.BIGINT},
	}, nil, catalog.NullPersistence{})
	require.NoError(t, err)
	return cat
}

func TestBuildDeletePlan(t *testing.T) {
	ids := planner.NewPlanNodeIDAllocator()
	plan, err := Build([]byte(`
kind: table_finish
table: orders
source:
  kind: delete
  table: orders
  source:
    kind: table_scan
    table: orders
    columns: [$row_id]
`), testCatalog(t), ids)
	require.NoError(t, err)

	assert.Equal(t, "TableFinish[3]: memory.orders [rows]\n"+
		"└── Delete[2]: memory.orders rowId=$row_id\n"+
		"    └── TableScan[1]: memory.orders [$row_id]\n", planner.Format(plan))

	finish := plan.(*planner.TableFinishNode)
	assert.Equal(t, []string{"rows"}, planner.OutputNames(finish.Outputs()))
	del := finish.Source.(*planner.DeleteNode)
	assert.True(t, types.Same(types.ID, del.RowID.Type))
	assert.Equal(t, common.ObjectID(1), del.Target.Oid)
}

func TestBuildQueryPlan(t *testing.T) {
	plan, err := Build([]byte(`
kind: limit
count: 10
source:
  kind: sort
  order_by: [{column: quantity, direction: desc}]
  source:
    kind: join
    criteria: [{left: id, right: order_id}]
    left:
      kind: filter
      predicate:
        op: and
        left: {op: ">", left: {column: id}, right: {int: 5}}
        right: {op: is not null, left: {column: customer}}
      source: {kind: table_scan, table: orders, columns: [id, customer]}
    right:
      kind: project
      assignments:
        - {name: order_id, expr: {column: order_id}}
        - {name: quantity, expr: {op: "*", left: {column: quantity}, right: {int: 2}}}
      source: {kind: table_scan, table: lineitem, columns: [order_id, quantity]}
`), testCatalog(t), planner.NewPlanNodeIDAllocator())
	require.NoError(t, err)

	var kinds []planner.Kind
	planner.Walk(plan, func(n planner.PlanNode) { kinds = append(kinds, n.Kind()) })
	assert.Equal(t, []planner.Kind{
		planner.KindLimit, planner.KindSort, planner.KindJoin,
		planner.KindFilter, planner.KindTableScan,
		planner.KindProject, planner.KindTableScan,
	}, kinds)
	assert.Equal(t, []string{"id", "customer", "order_id", "quantity"}, planner.OutputNames(plan.Outputs()))

	sort := plan.Sources()[0].(*planner.SortNode)
	assert.Equal(t, planner.SortOrderDescending, sort.OrderBy[0].Direction)
}

func TestBuildValues(t *testing.T) {
	plan, err := Build([]byte(`
kind: values
columns: ["a:bigint", "b:varchar", "c:boolean"]
rows:
  - [1, x, true]
  - [null, null, false]
`), testCatalog(t), planner.NewPlanNodeIDAllocator())
	require.NoError(t, err)

	values := plan.(*planner.ValuesNode)
	require.Equal(t, 2, values.RowCount())
	assert.Equal(t, int64(1), values.Value(0, 0).IntValue())
	assert.Equal(t, "x", values.Value(0, 1).StringValue())
	assert.Equal(t, int64(1), values.Value(0, 2).IntValue())
	assert.True(t, values.Value(1, 0).IsNull())
	assert.True(t, values.Value(1, 1).IsNull())
}

func TestBuildErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		code common.ErrorCode
	}{
		{"unknown kind", "kind: aggregate", common.InvalidPlanError},
		{"unknown field", "kind: limit\nfetch: 3", common.InvalidPlanError},
		{"missing source", "kind: limit\ncount: 1", common.InvalidPlanError},
		{"unknown table", "kind: table_scan\ntable: nope", common.NoSuchObjectError},
		{"unknown column", "kind: table_scan\ntable: orders\ncolumns: [nope]", common.NoSuchObjectError},
		{"unknown symbol", "kind: filter\npredicate: {column: nope}\nsource: {kind: table_scan, table: orders, columns: [id]}", common.InvalidPlanError},
		{"mismatched operands", "kind: filter\npredicate: {op: '=', left: {column: id}, right: {string: x}}\nsource: {kind: table_scan, table: orders, columns: [id]}", common.InvalidPlanError},
		{"delete without row id", "kind: delete\ntable: orders\nsource: {kind: table_scan, table: orders, columns: [id]}", common.InvalidPlanError},
		{"bad literal", "kind: values\ncolumns: ['a:bigint']\nrows: [[x]]", common.InvalidPlanError},
		{"unknown type", "kind: values\ncolumns: ['a:decimal']", common.NoSuchObjectError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build([]byte(tc.yaml), testCatalog(t), planner.NewPlanNodeIDAllocator())
			require.Error(t, err)
			assert.Equal(t, tc.code, common.Classify(err), err.Error())
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kind: table_scan\ntable: orders\ncolumns: [id]\n"), 0644))

	plan, err := Load(path, testCatalog(t), planner.NewPlanNodeIDAllocator())
	require.NoError(t, err)
	assert.Equal(t, planner.KindTableScan, plan.Kind())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), testCatalog(t), planner.NewPlanNodeIDAllocator())
	assert.Error(t, err)
}
