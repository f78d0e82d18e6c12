package connector

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/session"
)

// Metadata routes negotiation requests to the connector that owns a handle.
// It is shared by every compilation running in the process.
type Metadata struct {
	connectors *xsync.MapOf[string, Connector]
}

// NewMetadata returns a registry holding the given connectors.
func NewMetadata(connectors ...Connector) (*Metadata, error) {
	m := &Metadata{connectors: xsync.NewMapOf[string, Connector]()}
	for _, c := range connectors {
		if err := m.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register adds a connector under its catalog name.
func (m *Metadata) Register(c Connector) error {
	if _, loaded := m.connectors.LoadOrStore(c.Name(), c); loaded {
		return common.NewError(common.DuplicateObjectError, "catalog '%s' already registered", c.Name())
	}
	return nil
}

// Connector returns the connector registered for catalog.
func (m *Metadata) Connector(catalog string) (Connector, error) {
	c, ok := m.connectors.Load(catalog)
	if !ok {
		return nil, common.NewError(common.NoSuchObjectError, "catalog '%s' does not exist", catalog)
	}
	return c, nil
}

// Catalogs returns the registered catalog names.
func (m *Metadata) Catalogs() []string {
	names := make([]string, 0, m.connectors.Size())
	m.connectors.Range(func(name string, _ Connector) bool {
		names = append(names, name)
		return true
	})
	return names
}

// Negotiate asks the connector owning handle about req. A connector failure is
// returned as a NegotiationFailedError and aborts the compilation, unless ctx
// was cancelled or timed out, which is a CancelledError. An absent capability
// is returned as ok == false.
func (m *Metadata) Negotiate(ctx context.Context, s *session.Session, handle TableHandle, req Request) (Negotiation, bool, error) {
	c, err := m.Connector(handle.Catalog)
	if err != nil {
		return Negotiation{}, false, err
	}
	n, ok, err := c.Negotiate(ctx, s, handle, req)
	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return Negotiation{}, false, common.WrapError(err, common.CancelledError,
			"negotiating %s on %s with connector '%s'", req, handle, c.Name())
	}
	if err != nil {
		return Negotiation{}, false, common.WrapError(err, common.NegotiationFailedError,
			"negotiating %s on %s with connector '%s'", req, handle, c.Name())
	}
	if ok && n.Handle.Catalog != handle.Catalog {
		return Negotiation{}, false, common.NewError(common.NegotiationFailedError,
			"connector '%s' returned a handle for catalog '%s'", c.Name(), n.Handle.Catalog)
	}
	return n, ok, nil
}

// ApplyDelete negotiates a connector-side delete and returns the handle that
// represents it.
func (m *Metadata) ApplyDelete(ctx context.Context, s *session.Session, handle TableHandle) (TableHandle, bool, error) {
	n, ok, err := m.Negotiate(ctx, s, handle, Request{Capability: CapabilityDelete})
	if err != nil || !ok {
		return TableHandle{}, false, err
	}
	return n.Handle, true, nil
}

// ApplyLimit negotiates a connector-side limit.
func (m *Metadata) ApplyLimit(ctx context.Context, s *session.Session, handle TableHandle, limit int64) (Negotiation, bool, error) {
	return m.Negotiate(ctx, s, handle, Request{Capability: CapabilityLimit, Limit: limit})
}
