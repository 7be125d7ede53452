// Package bridge defines the host-agnostic contract the grid UI talks to,
// plus the three host adapters: in-process (extension panel), pipe (desktop
// shell), and socket (browser). A UI written against Bridge behaves
// identically regardless of which adapter is injected; transport details,
// serialization, and reconnection live entirely in the adapters.
package bridge

import (
	"encoding/json"
	"sync"
)

// EventHandler receives the raw payload of one event.
type EventHandler func(payload json.RawMessage)

// Subscription identifies one registered handler so it can be removed.
type Subscription struct {
	name string
	id   int
	fn   EventHandler
}

// Bridge is the contract every host adapter implements.
type Bridge interface {
	// SendCommand is fire-and-forget from the UI's perspective; whether
	// delivery is synchronous or a serialized frame is the adapter's business.
	SendCommand(name string, payload any) error

	// OnEvent subscribes a handler. Handlers for one event are invoked in
	// registration order.
	OnEvent(name string, handler EventHandler) *Subscription

	// OffEvent removes a previously registered handler.
	OffEvent(sub *Subscription)

	// GetState and SetState persist small host-local UI state (never session
	// data) across reloads of the hosting surface.
	GetState() ([]byte, error)
	SetState(state []byte) error
}

// eventRegistry is the shared subscription table. Adapters keep it for the
// lifetime of the bridge, not the lifetime of any underlying transport, which
// is what makes reconnect-and-resubscribe invisible to the UI.
type eventRegistry struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string][]*Subscription
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{handlers: make(map[string][]*Subscription)}
}

func (r *eventRegistry) add(name string, fn EventHandler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub := &Subscription{name: name, id: r.nextID, fn: fn}
	r.handlers[name] = append(r.handlers[name], sub)
	return sub
}

func (r *eventRegistry) remove(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.handlers[sub.name]
	for i, s := range subs {
		if s.id == sub.id {
			r.handlers[sub.name] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// dispatch invokes the handlers registered for an event, in registration
// order, outside the registry lock.
func (r *eventRegistry) dispatch(name string, payload json.RawMessage) {
	r.mu.Lock()
	subs := make([]*Subscription, len(r.handlers[name]))
	copy(subs, r.handlers[name])
	r.mu.Unlock()

	for _, sub := range subs {
		sub.fn(payload)
	}
}

// dispatchLocal fires a connection-lifecycle pseudo-event. These never come
// off the wire and carry no payload.
func (r *eventRegistry) dispatchLocal(name string) {
	r.dispatch(name, nil)
}

// memState is the default in-memory state store shared by all adapters.
type memState struct {
	mu    sync.Mutex
	state []byte
}

func (s *memState) get() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	out := make([]byte, len(s.state))
	copy(out, s.state)
	return out, nil
}

func (s *memState) set(state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make([]byte, len(state))
	copy(s.state, state)
	return nil
}
