package connector

import (
	"context"
	"fmt"

	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/session"
)

// TableHandle identifies a table inside the connector that owns it. Catalog
// selects the connector; everything in Payload is private to that connector
// and opaque to the optimizer, which only ever passes handles back to the
// connector they came from.
type TableHandle struct {
	Catalog string
	Table   string
	Oid     common.ObjectID
	Payload any
}

func (h TableHandle) String() string {
	if h.Payload == nil {
		return fmt.Sprintf("%s.%s", h.Catalog, h.Table)
	}
	return fmt.Sprintf("%s.%s[%v]", h.Catalog, h.Table, h.Payload)
}

// Capability names a pushdown the optimizer can ask a connector about.
type Capability int

const (
	// CapabilityDelete asks whether the connector can delete every row of the
	// handle's table (as restricted by the handle) itself, without the engine
	// producing row ids.
	CapabilityDelete Capability = iota
	// CapabilityLimit asks whether the connector can stop producing rows
	// after Request.Limit of them.
	CapabilityLimit
)

func (c Capability) String() string {
	switch c {
	case CapabilityDelete:
		return "delete"
	case CapabilityLimit:
		return "limit"
	}
	return "unknown"
}

// Request is what a rule asks a connector for.
type Request struct {
	Capability Capability
	Limit      int64
}

func (r Request) String() string {
	if r.Capability == CapabilityLimit {
		return fmt.Sprintf("limit(%d)", r.Limit)
	}
	return r.Capability.String()
}

// Negotiation is a connector's acceptance of a Request. Handle represents the
// intent to perform the operation later, during execution; negotiating never
// performs it. Guaranteed reports whether the connector fully implements the
// requested semantics, or only a best effort the engine still has to enforce.
type Negotiation struct {
	Handle     TableHandle
	Guaranteed bool
}

// Connector is the optimizer-facing half of a storage backend.
type Connector interface {
	// Name returns the catalog name the connector is registered under.
	Name() string

	// Negotiate reports whether the connector supports req on the table behind
	// handle. A false result with a nil error means "not supported here",
	// which is never an error. Negotiate must be idempotent and must not
	// perform the operation. It may block on the connector's metadata service.
	Negotiate(ctx context.Context, s *session.Session, handle TableHandle, req Request) (Negotiation, bool, error)
}
