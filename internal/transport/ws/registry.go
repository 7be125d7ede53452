package ws

import (
	"sync"

	"github.com/gridbase-io/gridbase/internal/protocol"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
)

// Registry is the session→connections index. It is owned by the Server and
// passed into the session store's destroy callback explicitly; nothing in the
// process reaches it as ambient state.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[*Conn]struct{}

	logger logger.Interface
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log logger.Interface) *Registry {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Registry{
		conns:  make(map[string]map[*Conn]struct{}),
		logger: log.Named("ws-registry"),
	}
}

func (r *Registry) add(c *Conn) {
	r.mu.Lock()
	set, ok := r.conns[c.token]
	if !ok {
		set = make(map[*Conn]struct{})
		r.conns[c.token] = set
	}
	set[c] = struct{}{}
	count := len(set)
	r.mu.Unlock()

	r.logger.Debugw("connection registered", "session_connections", count)
}

// remove drops one connection. An emptied set stays in the index; the
// session may still be valid for a future reconnect, and only session
// destruction removes session-level state.
func (r *Registry) remove(c *Conn) {
	r.mu.Lock()
	if set, ok := r.conns[c.token]; ok {
		delete(set, c)
	}
	r.mu.Unlock()
}

// CloseSession sends exactly one sessionExpired event to every connection
// bound to the token, closes each with code 4002, and drops the token's
// entry. Connections bound to other tokens are untouched.
func (r *Registry) CloseSession(token string) {
	r.mu.Lock()
	set := r.conns[token]
	delete(r.conns, token)
	r.mu.Unlock()

	if len(set) == 0 {
		return
	}

	expired, err := protocol.NewEnvelope(protocol.EvtSessionExpired, protocol.SessionExpiredPayload{Reason: "session expired"})
	if err != nil {
		r.logger.Errorw("failed to encode sessionExpired event", "error", err)
		return
	}

	for c := range set {
		c.enqueue(expired)
		c.beginClose(protocol.CloseSessionExpired, "Session Expired")
	}
	r.logger.Infow("session connections expired", "count", len(set))
}

// ConnectionCount reports the number of live connections for a token.
func (r *Registry) ConnectionCount(token string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[token])
}

// Len reports the number of live connections across all tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}
