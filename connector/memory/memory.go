// Package memory is a connector storing tables in process memory. Row data
// lives in one B-tree per table, keyed by row id; table metadata comes from
// the catalog.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/btree"
	"go.uber.org/zap"
	"mit.edu/dsg/planopt/catalog"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/session"
	"mit.edu/dsg/planopt/types"
)

// RowIDColumn is the hidden column holding a row's id. Scans produce it when
// asked for it by name; it has type types.ID.
const RowIDColumn = catalog.RowIDColumn

// MetadataDeleteProperty is the table property that, when "false", prevents
// deletes from being pushed into the connector.
const MetadataDeleteProperty = "metadata_delete"

// Layout is the payload of the table handles this connector negotiates. The
// zero value scans every row.
type Layout struct {
	// Limit caps the rows a scan produces when HasLimit is set.
	Limit    int64
	HasLimit bool
	// Delete marks a handle negotiated for a connector-side delete of every row.
	Delete bool
}

func (l Layout) String() string {
	switch {
	case l.Delete:
		return "delete"
	case l.HasLimit:
		return fmt.Sprintf("limit=%d", l.Limit)
	}
	return "all"
}

type row struct {
	id     int64
	values []common.Value
}

type table struct {
	mu        sync.RWMutex
	meta      *catalog.Table
	rows      *btree.BTreeG[row]
	nextRowID int64
}

// Connector serves the catalog's tables registered under its name.
type Connector struct {
	name    string
	catalog *catalog.Catalog
	tables  *xsync.MapOf[common.ObjectID, *table]
	logger  *zap.Logger
}

// New returns a connector serving the tables of c whose connector is name.
func New(name string, c *catalog.Catalog, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		name:    name,
		catalog: c,
		tables:  xsync.NewMapOf[common.ObjectID, *table](),
		logger:  logger.With(zap.String("connector", name)),
	}
}

func (c *Connector) Name() string {
	return c.name
}

func (c *Connector) table(handle connector.TableHandle) (*table, error) {
	if handle.Catalog != c.name {
		return nil, common.NewError(common.NoSuchObjectError, "handle %s does not belong to connector '%s'", handle, c.name)
	}
	if t, ok := c.tables.Load(handle.Oid); ok {
		return t, nil
	}
	meta, err := c.catalog.GetTableByOid(handle.Oid)
	if err != nil {
		return nil, err
	}
	if meta.Connector != c.name {
		return nil, common.NewError(common.NoSuchObjectError, "table '%s' is served by '%s', not '%s'", meta.Name, meta.Connector, c.name)
	}
	t, _ := c.tables.LoadOrCompute(handle.Oid, func() *table {
		return &table{
			meta: meta,
			rows: btree.NewBTreeG(func(a, b row) bool { return a.id < b.id }),
		}
	})
	return t, nil
}

func layoutOf(handle connector.TableHandle) (Layout, error) {
	switch p := handle.Payload.(type) {
	case nil:
		return Layout{}, nil
	case Layout:
		return p, nil
	default:
		return Layout{}, common.NewError(common.InvalidPlanError, "handle %s carries a foreign payload %T", handle, p)
	}
}

// Negotiate accepts a delete of every row unless the handle already limits
// the scan or the table opts out through MetadataDeleteProperty, and a limit
// when it is strictly smaller than the handle's current one. Both are
// guaranteed.
func (c *Connector) Negotiate(ctx context.Context, _ *session.Session, handle connector.TableHandle, req connector.Request) (connector.Negotiation, bool, error) {
	if err := ctx.Err(); err != nil {
		return connector.Negotiation{}, false, err
	}
	t, err := c.table(handle)
	if err != nil {
		return connector.Negotiation{}, false, err
	}
	layout, err := layoutOf(handle)
	if err != nil {
		return connector.Negotiation{}, false, err
	}

	var next Layout
	switch req.Capability {
	case connector.CapabilityDelete:
		if layout.HasLimit || layout.Delete || t.meta.Property(MetadataDeleteProperty, "true") == "false" {
			return c.decline(handle, req)
		}
		next = Layout{Delete: true}
	case connector.CapabilityLimit:
		if layout.Delete || req.Limit < 0 || (layout.HasLimit && req.Limit >= layout.Limit) {
			return c.decline(handle, req)
		}
		next = Layout{Limit: req.Limit, HasLimit: true}
	default:
		return c.decline(handle, req)
	}

	accepted := handle
	accepted.Payload = next
	c.logger.Debug("Negotiation accepted",
		zap.Stringer("handle", handle),
		zap.Stringer("request", req),
		zap.Stringer("layout", next))
	return connector.Negotiation{Handle: accepted, Guaranteed: true}, true, nil
}

func (c *Connector) decline(handle connector.TableHandle, req connector.Request) (connector.Negotiation, bool, error) {
	c.logger.Debug("Negotiation declined", zap.Stringer("handle", handle), zap.Stringer("request", req))
	return connector.Negotiation{}, false, nil
}

// Insert appends rows to the table behind handle and returns their ids. Every
// row must hold one value per table column, NULL or of the column's type.
func (c *Connector) Insert(ctx context.Context, handle connector.TableHandle, rows [][]common.Value) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := c.table(handle)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if err := checkRow(t.meta, r); err != nil {
			return nil, common.WrapError(err, common.InvalidPlanError, "row %d", i)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int64, len(rows))
	for i, r := range rows {
		t.nextRowID++
		ids[i] = t.nextRowID
		t.rows.Set(row{id: t.nextRowID, values: append([]common.Value(nil), r...)})
	}
	return ids, nil
}

func checkRow(meta *catalog.Table, values []common.Value) error {
	if len(values) != len(meta.Columns) {
		return common.NewError(common.InvalidPlanError, "table '%s' has %d columns, got %d values", meta.Name, len(meta.Columns), len(values))
	}
	for i, v := range values {
		col := meta.Columns[i]
		if v.Type() != col.Type.Encoding() {
			return common.NewError(common.InvalidPlanError, "column '%s' of type %s cannot hold %s", col.Name, col.Type, v)
		}
	}
	return nil
}

// Scan returns the rows of the table behind handle, projected onto columns,
// in row id order. RowIDColumn may be requested like any other column. A
// handle negotiated with a limit produces at most that many rows.
func (c *Connector) Scan(ctx context.Context, handle connector.TableHandle, columns []string) ([][]common.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := c.table(handle)
	if err != nil {
		return nil, err
	}
	layout, err := layoutOf(handle)
	if err != nil {
		return nil, err
	}
	positions := make([]int, len(columns))
	for i, name := range columns {
		if name == RowIDColumn {
			positions[i] = -1
			continue
		}
		_, pos, ok := t.meta.Column(name)
		if !ok {
			return nil, common.NewError(common.NoSuchObjectError, "column '%s' does not exist in table '%s'", name, t.meta.Name)
		}
		positions[i] = pos
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	var out [][]common.Value
	t.rows.Scan(func(r row) bool {
		if layout.HasLimit && int64(len(out)) >= layout.Limit {
			return false
		}
		projected := make([]common.Value, len(positions))
		for i, pos := range positions {
			if pos < 0 {
				projected[i] = common.NewIntValue(r.id)
			} else {
				projected[i] = r.values[pos]
			}
		}
		out = append(out, projected)
		return true
	})
	return out, nil
}

// DeleteRows removes the rows with the given ids and returns how many existed.
func (c *Connector) DeleteRows(ctx context.Context, handle connector.TableHandle, rowIDs []int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, err := c.table(handle)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var deleted int64
	for _, id := range rowIDs {
		if _, ok := t.rows.Delete(row{id: id}); ok {
			deleted++
		}
	}
	return deleted, nil
}

// ExecuteMetadataDelete performs the delete a handle was negotiated for and
// returns the number of rows removed.
func (c *Connector) ExecuteMetadataDelete(ctx context.Context, handle connector.TableHandle) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	layout, err := layoutOf(handle)
	if err != nil {
		return 0, err
	}
	if !layout.Delete {
		return 0, common.NewError(common.InvalidPlanError, "handle %s was not negotiated for a delete", handle)
	}
	t, err := c.table(handle)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	deleted := int64(t.rows.Len())
	t.rows.Clear()
	c.logger.Debug("Metadata delete", zap.Stringer("handle", handle), zap.Int64("rows", deleted))
	return deleted, nil
}

// RowCount returns the number of rows stored for the table behind handle,
// ignoring any layout.
func (c *Connector) RowCount(handle connector.TableHandle) (int, error) {
	t, err := c.table(handle)
	if err != nil {
		return 0, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows.Len(), nil
}

// ColumnType returns the type of a column of the table behind handle,
// including RowIDColumn.
func (c *Connector) ColumnType(handle connector.TableHandle, name string) (types.Type, error) {
	if name == RowIDColumn {
		return types.ID, nil
	}
	t, err := c.table(handle)
	if err != nil {
		return nil, err
	}
	col, _, ok := t.meta.Column(name)
	if !ok {
		return nil, common.NewError(common.NoSuchObjectError, "column '%s' does not exist in table '%s'", name, t.meta.Name)
	}
	return col.Type, nil
}
