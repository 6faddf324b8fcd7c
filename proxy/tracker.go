// Package proxy implements the Proxy Orchestrator: it accepts client
// connections, dials an upstream Postgres server per connection, and
// forwards traffic in both directions, applying a simple-query interceptor
// policy to Parse/Query commands.
package proxy

import "sync"

// StatementTracker records Parse names and Bind portal-to-statement
// associations so the proxy can label extended-query traffic (Bind,
// Describe, Execute) by the SQL text it ultimately resolves to. It never
// changes what is forwarded — onQuery's contract governs that exclusively;
// this is bookkeeping for logging and metrics only. Statement/portal
// entries are tracked as plain name-to-text associations; type and column
// metadata belong to whatever execution engine sits behind the proxy, not
// to this bookkeeping layer.
type StatementTracker struct {
	mu         sync.RWMutex
	statements map[string]string // statement name -> SQL text
	portals    map[string]string // portal name -> statement name
}

// NewStatementTracker constructs an empty tracker.
func NewStatementTracker() *StatementTracker {
	return &StatementTracker{
		statements: map[string]string{},
		portals:    map[string]string{},
	}
}

// RecordParse associates name with query, overwriting any prior association
// (Parse may legally redefine a name once Close has retired it).
func (t *StatementTracker) RecordParse(name, query string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statements[name] = query
}

// RecordBind associates portal with the statement name it was bound from.
func (t *StatementTracker) RecordBind(portal, statement string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.portals[portal] = statement
}

// RecordClose forgets a statement or portal name, mirroring the effect of a
// Close command on the tracked namespace.
func (t *StatementTracker) RecordClose(isStatement bool, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if isStatement {
		delete(t.statements, name)
		return
	}
	delete(t.portals, name)
}

// QueryFor resolves a portal name to the SQL text it will execute, or ""
// if unknown.
func (t *StatementTracker) QueryFor(portal string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	statement, ok := t.portals[portal]
	if !ok {
		return ""
	}
	return t.statements[statement]
}
