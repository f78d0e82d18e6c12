// Package connectortest provides a scriptable connector for optimizer tests.
package connectortest

import (
	"context"
	"sync"

	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/session"
)

// Call records one Negotiate invocation.
type Call struct {
	Handle  connector.TableHandle
	Request connector.Request
}

// Answer is the scripted response to a request.
type Answer struct {
	Negotiation connector.Negotiation
	Supported   bool
	Err         error
}

// Connector answers negotiation requests from a script keyed by capability.
// Capabilities without a scripted answer are reported as unsupported.
type Connector struct {
	name string

	mu      sync.Mutex
	answers map[connector.Capability]func(connector.TableHandle, connector.Request) Answer
	calls   []Call
}

// New returns a connector named name that supports nothing.
func New(name string) *Connector {
	return &Connector{
		name:    name,
		answers: make(map[connector.Capability]func(connector.TableHandle, connector.Request) Answer),
	}
}

func (c *Connector) Name() string {
	return c.name
}

// Support scripts c to accept every request for capability, answering with
// the handle produced by next.
func (c *Connector) Support(capability connector.Capability, guaranteed bool, next func(connector.TableHandle) connector.TableHandle) *Connector {
	return c.Answer(capability, func(h connector.TableHandle, _ connector.Request) Answer {
		return Answer{
			Negotiation: connector.Negotiation{Handle: next(h), Guaranteed: guaranteed},
			Supported:   true,
		}
	})
}

// Fail scripts c to fail every request for capability with err.
func (c *Connector) Fail(capability connector.Capability, err error) *Connector {
	return c.Answer(capability, func(connector.TableHandle, connector.Request) Answer {
		return Answer{Err: err}
	})
}

// Answer scripts an arbitrary response function for capability.
func (c *Connector) Answer(capability connector.Capability, fn func(connector.TableHandle, connector.Request) Answer) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[capability] = fn
	return c
}

func (c *Connector) Negotiate(ctx context.Context, _ *session.Session, handle connector.TableHandle, req connector.Request) (connector.Negotiation, bool, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Handle: handle, Request: req})
	fn := c.answers[req.Capability]
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return connector.Negotiation{}, false, err
	}
	if fn == nil {
		return connector.Negotiation{}, false, nil
	}
	a := fn(handle, req)
	return a.Negotiation, a.Supported, a.Err
}

// Calls returns the recorded Negotiate invocations in order.
func (c *Connector) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// WithPayload returns a function that rewrites a handle's payload, for use
// with Support.
func WithPayload(payload any) func(connector.TableHandle) connector.TableHandle {
	return func(h connector.TableHandle) connector.TableHandle {
		h.Payload = payload
		return h
	}
}
