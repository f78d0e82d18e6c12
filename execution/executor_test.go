package execution

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"mit.edu/dsg/planopt/catalog"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/connector/memory"
	"mit.edu/dsg/planopt/planner"
	"mit.edu/dsg/planopt/types"
)

type testDB struct {
	catalog *catalog.Catalog
	memory  *memory.Connector
	orders  *catalog.Table
	items   *catalog.Table
}

// setupTestDB creates orders(id bigint, name varchar) holding n rows and
// items(order_id bigint, qty bigint) holding two rows per even order.
func setupTestDB(t *testing.T, n int, ordersProperties map[string]string) *testDB {
	t.Helper()
	cat, err := catalog.NewCatalog(catalog.NullPersistence{})
	require.NoError(t, err)
	orders, err := cat.AddTable("orders", "memory", []catalog.Column{
		{Name: "id", Type: types.BIGINT},
		{Name: "name", Type: types.VARCHAR},
	}, ordersProperties, catalog.NullPersistence{})
	require.NoError(t, err)
	items, err := cat.AddTable("items", "memory", []catalog.Column{
		{Name: "order_id", Type: types.BIGINT},
		{Name: "qty", Type: types.BIGINT},
	}, nil, catalog.NullPersistence{})
	require.NoError(t, err)

	db := &testDB{catalog: cat, memory: memory.New("memory", cat, zaptest.NewLogger(t)), orders: orders, items: items}
	db.fill(t, n)
	var itemRows [][]common.Value
	for i := 0; i < n; i += 2 {
		itemRows = append(itemRows,
			[]common.Value{common.NewIntValue(int64(i)), common.NewIntValue(1)},
			[]common.Value{common.NewIntValue(int64(i)), common.NewIntValue(2)})
	}
	_, err = db.memory.Insert(context.Background(), items.Handle(), itemRows)
	require.NoError(t, err)
	return db
}

func (db *testDB) fill(t *testing.T, n int) {
	rows := make([][]common.Value, n)
	for i := range rows {
		rows[i] = []common.Value{common.NewIntValue(int64(i)), common.NewStringValue(fmt.Sprintf("row-%d", i))}
	}
	_, err := db.memory.Insert(context.Background(), db.orders.Handle(), rows)
	require.NoError(t, err)
}

func (db *testDB) context(t *testing.T) *ExecutorContext {
	return NewExecutorContext(context.Background(), map[string]DataSource{"memory": db.memory}, zaptest.NewLogger(t))
}

func (db *testDB) run(t *testing.T, plan planner.PlanNode) [][]common.Value {
	t.Helper()
	exec, err := Build(plan)
	require.NoError(t, err)
	rows, err := Collect(db.context(t), exec)
	require.NoError(t, err)
	return rows
}

var (
	idSymbol   = planner.NewSymbol("id", types.BIGINT)
	nameSymbol = planner.NewSymbol("name", types.VARCHAR)
)

func ordersScan(db *testDB, ids *planner.PlanNodeIDAllocator) *planner.TableScanNode {
	return planner.NewTableScanNode(ids.NextID(), db.orders.Handle(), []planner.Symbol{idSymbol, nameSymbol}, []string{"id", "name"})
}

func bigint(v int64) planner.Expr {
	return planner.NewConstantValueExpression(types.BIGINT, common.NewIntValue(v))
}

func TestBasicExecutor_SeqScan(t *testing.T) {
	db := setupTestDB(t, 10, nil)
	ids := planner.NewPlanNodeIDAllocator()
	scan := NewSeqScanExecutor(ordersScan(db, ids))
	ctx := db.context(t)

	for pass := 0; pass < 2; pass++ {
		require.NoError(t, scan.Init(ctx))
		count := 0
		for scan.Next() {
			row := scan.Current()
			assert.Equal(t, int64(count), row[0].IntValue(), "pass %d: id mismatch at row %d", pass, count)
			assert.Equal(t, fmt.Sprintf("row-%d", count), row[1].StringValue())
			count++
		}
		require.NoError(t, scan.Error())
		assert.Equal(t, 10, count, "calling Init again rescans the table")
	}
	require.NoError(t, scan.Close())
}

func TestBasicExecutor_FilterProjectLimit(t *testing.T) {
	db := setupTestDB(t, 10, nil)
	ids := planner.NewPlanNodeIDAllocator()
	filter := planner.NewFilterNode(ids.NextID(), ordersScan(db, ids),
		planner.NewComparisonExpression(planner.NewSymbolReference(idSymbol), bigint(3), planner.GreaterThanOrEqual))
	doubled := planner.NewSymbol("doubled", types.BIGINT)
	project := planner.NewProjectNode(ids.NextID(), filter, []planner.Symbol{doubled},
		[]planner.Expr{planner.NewArithmeticExpression(planner.NewSymbolReference(idSymbol), bigint(2), planner.Mult)})
	limit := planner.NewLimitNode(ids.NextID(), project, 3)

	rows := db.run(t, limit)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, int64(2*(i+3)), row[0].IntValue())
	}
}

func TestBasicExecutor_SortAndTopN(t *testing.T) {
	db := setupTestDB(t, 6, nil)
	ids := planner.NewPlanNodeIDAllocator()
	orderBy := []planner.OrderByClause{{Expr: planner.NewSymbolReference(idSymbol), Direction: planner.SortOrderDescending}}

	sorted := db.run(t, planner.NewSortNode(ids.NextID(), ordersScan(db, ids), orderBy))
	require.Len(t, sorted, 6)
	assert.Equal(t, int64(5), sorted[0][0].IntValue())
	assert.Equal(t, int64(0), sorted[5][0].IntValue())

	top := db.run(t, planner.NewTopNNode(ids.NextID(), ordersScan(db, ids), 2, orderBy))
	require.Len(t, top, 2)
	assert.Equal(t, int64(5), top[0][0].IntValue())
	assert.Equal(t, int64(4), top[1][0].IntValue())
}

func TestBasicExecutor_HashJoin(t *testing.T) {
	db := setupTestDB(t, 4, nil)
	ids := planner.NewPlanNodeIDAllocator()
	orderID := planner.NewSymbol("order_id", types.BIGINT)
	qty := planner.NewSymbol("qty", types.BIGINT)
	items := planner.NewTableScanNode(ids.NextID(), db.items.Handle(), []planner.Symbol{orderID, qty}, []string{"order_id", "qty"})
	join := planner.NewJoinNode(ids.NextID(), ordersScan(db, ids), items, []planner.EquiJoinClause{{Left: idSymbol, Right: orderID}})

	rows := db.run(t, join)
	require.Len(t, rows, 4, "orders 0 and 2 have two items each")
	for _, row := range rows {
		require.Len(t, row, 4)
		assert.Equal(t, row[0].IntValue(), row[2].IntValue())
		assert.Zero(t, row[0].IntValue()%2)
	}
}

func TestBasicExecutor_Values(t *testing.T) {
	db := setupTestDB(t, 0, nil)
	ids := planner.NewPlanNodeIDAllocator()
	values := planner.NewValuesNodeFromRows(ids.NextID(), []planner.Symbol{idSymbol}, [][]common.Value{
		{common.NewIntValue(7)}, {common.NewNullInt()},
	})
	rows := db.run(t, values)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(7), rows[0][0].IntValue())
	assert.True(t, rows[1][0].IsNull())
}

func TestBuildRejectsGroupReferences(t *testing.T) {
	ids := planner.NewPlanNodeIDAllocator()
	ref := planner.NewGroupReference(ids.NextID(), 0, []planner.Symbol{idSymbol})
	_, err := Build(planner.NewLimitNode(ids.NextID(), ref, 1))
	assert.Equal(t, common.InvalidPlanError, common.Classify(err))
}

func TestUnknownDataSource(t *testing.T) {
	db := setupTestDB(t, 1, nil)
	ids := planner.NewPlanNodeIDAllocator()
	scan := planner.NewTableScanNode(ids.NextID(), connector.TableHandle{Catalog: "elsewhere", Table: "t"}, []planner.Symbol{idSymbol}, []string{"id"})
	exec, err := Build(scan)
	require.NoError(t, err)
	_, err = Collect(db.context(t), exec)
	assert.Equal(t, common.NoSuchObjectError, common.Classify(err))
}
