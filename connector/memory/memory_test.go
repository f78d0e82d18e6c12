package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"mit.edu/dsg/planopt/catalog"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/session"
	"mit.edu/dsg/planopt/types"
)

func newTestConnector(t *testing.T, properties map[string]string) (*Connector, connector.TableHandle) {
	t.Helper()
	cat, err := catalog.NewCatalog(catalog.NullPersistence{})
	require.NoError(t, err)
	table, err := cat.AddTable("orders", "memory", []catalog.Column{
		{Name: "id", Type: types.BIGINT},
		{Name: "customer", Type: types.VARCHAR},
	}, properties, catalog.NullPersistence{})
	require.NoError(t, err)
	return New("memory", cat, zaptest.NewLogger(t)), table.Handle()
}

func insertOrders(t *testing.T, c *Connector, h connector.TableHandle, n int) []int64 {
	t.Helper()
	rows := make([][]common.Value, n)
	for i := range rows {
		rows[i] = []common.Value{common.NewIntValue(int64(i)), common.NewStringValue("c")}
	}
	ids, err := c.Insert(context.Background(), h, rows)
	require.NoError(t, err)
	return ids
}

func negotiate(t *testing.T, c *Connector, h connector.TableHandle, req connector.Request) (connector.Negotiation, bool) {
	t.Helper()
	n, ok, err := c.Negotiate(context.Background(), session.New("test", "memory", "default"), h, req)
	require.NoError(t, err)
	return n, ok
}

func TestNegotiateDelete(t *testing.T) {
	c, h := newTestConnector(t, nil)

	n, ok := negotiate(t, c, h, connector.Request{Capability: connector.CapabilityDelete})
	require.True(t, ok)
	assert.True(t, n.Guaranteed)
	assert.Equal(t, Layout{Delete: true}, n.Handle.Payload)
	assert.Equal(t, h.Oid, n.Handle.Oid)
	assert.Nil(t, h.Payload, "negotiation does not modify the handle it was given")

	_, ok = negotiate(t, c, n.Handle, connector.Request{Capability: connector.CapabilityDelete})
	assert.False(t, ok, "a delete handle is not negotiated twice")

	limited, ok := negotiate(t, c, h, connector.Request{Capability: connector.CapabilityLimit, Limit: 3})
	require.True(t, ok)
	_, ok = negotiate(t, c, limited.Handle, connector.Request{Capability: connector.CapabilityDelete})
	assert.False(t, ok, "deleting every row of a limited scan is not a whole-table delete")
}

func TestNegotiateDeleteRespectsTableProperty(t *testing.T) {
	c, h := newTestConnector(t, map[string]string{MetadataDeleteProperty: "false"})
	_, ok := negotiate(t, c, h, connector.Request{Capability: connector.CapabilityDelete})
	assert.False(t, ok)
}

func TestNegotiateLimit(t *testing.T) {
	c, h := newTestConnector(t, nil)

	n, ok := negotiate(t, c, h, connector.Request{Capability: connector.CapabilityLimit, Limit: 10})
	require.True(t, ok)
	assert.True(t, n.Guaranteed)
	assert.Equal(t, Layout{Limit: 10, HasLimit: true}, n.Handle.Payload)

	_, ok = negotiate(t, c, n.Handle, connector.Request{Capability: connector.CapabilityLimit, Limit: 10})
	assert.False(t, ok, "an equal limit is no improvement")
	smaller, ok := negotiate(t, c, n.Handle, connector.Request{Capability: connector.CapabilityLimit, Limit: 2})
	require.True(t, ok)
	assert.Equal(t, Layout{Limit: 2, HasLimit: true}, smaller.Handle.Payload)
}

func TestNegotiateErrors(t *testing.T) {
	c, h := newTestConnector(t, nil)
	s := session.New("test", "memory", "default")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Negotiate(ctx, s, h, connector.Request{Capability: connector.CapabilityDelete})
	assert.ErrorIs(t, err, context.Canceled)

	missing := h
	missing.Oid = 99
	_, _, err = c.Negotiate(context.Background(), s, missing, connector.Request{Capability: connector.CapabilityDelete})
	assert.Equal(t, common.NoSuchObjectError, common.Classify(err))

	foreign := h
	foreign.Payload = "not a layout"
	_, _, err = c.Negotiate(context.Background(), s, foreign, connector.Request{Capability: connector.CapabilityDelete})
	assert.Equal(t, common.InvalidPlanError, common.Classify(err))
}

func TestScanAndDeleteRows(t *testing.T) {
	c, h := newTestConnector(t, nil)
	ids := insertOrders(t, c, h, 5)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)

	rows, err := c.Scan(context.Background(), h, []string{RowIDColumn, "id"})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, int64(1), rows[0][0].IntValue())
	assert.Equal(t, int64(0), rows[0][1].IntValue())

	deleted, err := c.DeleteRows(context.Background(), h, []int64{2, 4, 42})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	count, err := c.RowCount(h)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = c.Scan(context.Background(), h, []string{"missing"})
	assert.Equal(t, common.NoSuchObjectError, common.Classify(err))
}

func TestScanHonoursLimitLayout(t *testing.T) {
	c, h := newTestConnector(t, nil)
	insertOrders(t, c, h, 5)

	n, ok := negotiate(t, c, h, connector.Request{Capability: connector.CapabilityLimit, Limit: 2})
	require.True(t, ok)
	rows, err := c.Scan(context.Background(), n.Handle, []string{"id"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExecuteMetadataDelete(t *testing.T) {
	c, h := newTestConnector(t, nil)
	insertOrders(t, c, h, 4)

	_, err := c.ExecuteMetadataDelete(context.Background(), h)
	assert.Equal(t, common.InvalidPlanError, common.Classify(err), "only negotiated handles can be executed")

	n, ok := negotiate(t, c, h, connector.Request{Capability: connector.CapabilityDelete})
	require.True(t, ok)
	deleted, err := c.ExecuteMetadataDelete(context.Background(), n.Handle)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	count, err := c.RowCount(h)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInsertValidatesRows(t *testing.T) {
	c, h := newTestConnector(t, nil)

	_, err := c.Insert(context.Background(), h, [][]common.Value{{common.NewIntValue(1)}})
	assert.Equal(t, common.InvalidPlanError, common.Classify(err))
	_, err = c.Insert(context.Background(), h, [][]common.Value{{common.NewStringValue("x"), common.NewStringValue("y")}})
	assert.Equal(t, common.InvalidPlanError, common.Classify(err))
	_, err = c.Insert(context.Background(), h, [][]common.Value{{common.NewNullInt(), common.NewNullString()}})
	assert.NoError(t, err)

	typ, err := c.ColumnType(h, RowIDColumn)
	require.NoError(t, err)
	assert.True(t, types.Same(types.ID, typ))
}

func TestConcurrentSessions(t *testing.T) {
	c, h := newTestConnector(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := session.New("test", "memory", "default")
			for j := 0; j < 50; j++ {
				_, ok, err := c.Negotiate(context.Background(), s, h, connector.Request{Capability: connector.CapabilityDelete})
				assert.NoError(t, err)
				assert.True(t, ok)
				_, err = c.Insert(context.Background(), h, [][]common.Value{{common.NewIntValue(int64(j)), common.NewStringValue("c")}})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	count, err := c.RowCount(h)
	require.NoError(t, err)
	assert.Equal(t, 400, count)
}
