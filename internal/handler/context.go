package handler

import (
	"sync"
	"sync/atomic"

	"github.com/gridbase-io/gridbase/internal/dataservice"
)

// ConnContext is the browsing state of one connection: current namespace,
// selected table, cached schema, and the active page window. It is owned
// exclusively by the connection's goroutine and is never shared across
// connections, even connections bound to the same session token. Only the
// bulk-operation registry inside it is safe for cross-goroutine use.
type ConnContext struct {
	Namespace string
	Table     string
	Schema    *dataservice.Schema

	PageSize int
	Offset   int
	Filters  []dataservice.Filter
	Sorts    []dataservice.Sort

	ops opRegistry
}

// NewConnContext creates a fresh browsing context for one connection.
func NewConnContext(namespace string) *ConnContext {
	return &ConnContext{
		Namespace: namespace,
		PageSize:  defaultPageSize,
		ops:       opRegistry{ops: make(map[string]*operation)},
	}
}

// selectTable records the freshly selected table and resets the page window.
func (cc *ConnContext) selectTable(namespace, table string, schema *dataservice.Schema, pageSize int) {
	cc.Namespace = namespace
	cc.Table = table
	cc.Schema = schema
	cc.Offset = 0
	cc.Filters = nil
	cc.Sorts = nil
	if pageSize > 0 {
		cc.PageSize = pageSize
	}
}

// operation is one running bulk export/import. Cancellation is a cooperative
// flag checked at batch boundaries; the runner reports how many rows it
// completed before observing the flag.
type operation struct {
	id        string
	cancelled atomic.Bool
}

func (o *operation) cancel()           { o.cancelled.Store(true) }
func (o *operation) isCancelled() bool { return o.cancelled.Load() }

// opRegistry tracks the bulk operations of one connection. It is the only
// part of ConnContext touched from more than one goroutine (the read loop
// registers/cancels, the bulk goroutine polls and deregisters).
type opRegistry struct {
	mu  sync.Mutex
	ops map[string]*operation
}

// register adds a new operation; a duplicate id is refused.
func (r *opRegistry) register(id string) (*operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[id]; exists {
		return nil, false
	}
	op := &operation{id: id}
	r.ops[id] = op
	return op, true
}

func (r *opRegistry) cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[id]
	if !ok {
		return false
	}
	op.cancel()
	return true
}

func (r *opRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ops, id)
}
