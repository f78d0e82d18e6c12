package session

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Session is the per-query state a compilation runs under: who is asking, the
// default catalog and schema, and the session properties that tune the
// optimizer. A Session belongs to one query and is read by the rules and the
// connectors that query talks to.
type Session struct {
	QueryID uuid.UUID
	User    string
	Catalog string
	Schema  string

	mu         sync.RWMutex
	properties map[string]string
}

// New returns a session with a freshly minted query id.
func New(user, catalog, schema string) *Session {
	return &Session{
		QueryID:    uuid.New(),
		User:       user,
		Catalog:    catalog,
		Schema:     schema,
		properties: make(map[string]string),
	}
}

// SetProperty sets a session property. Names are case-insensitive.
func (s *Session) SetProperty(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[strings.ToLower(name)] = value
}

// Property returns the raw value of a session property.
func (s *Session) Property(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.properties[strings.ToLower(name)]
	return v, ok
}

// BoolProperty returns a boolean property, or def if it is unset or does not
// parse.
func (s *Session) BoolProperty(name string, def bool) bool {
	v, ok := s.Property(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Properties returns a copy of every property set on the session.
func (s *Session) Properties() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.properties))
	for k, v := range s.properties {
		out[k] = v
	}
	return out
}

// RuleEnabledProperty is the session property that switches an optimizer rule
// on or off.
func RuleEnabledProperty(rule string) string {
	return "optimizer." + rule
}
