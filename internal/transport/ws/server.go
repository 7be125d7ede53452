// Package ws is the network-facing transport: it authenticates the websocket
// handshake against the session store, indexes live connections by session
// token, frames commands and events as JSON text, pushes expiry
// notifications, and cleans up on disconnect.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/handler"
	"github.com/gridbase-io/gridbase/internal/protocol"
	"github.com/gridbase-io/gridbase/internal/session"
	"github.com/gridbase-io/gridbase/internal/shared/goroutine"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
	"github.com/gridbase-io/gridbase/internal/shared/utils"
)

// Options configures a Server.
type Options struct {
	Sessions       *session.Store
	Handler        *handler.Handler
	Factory        dataservice.Factory
	AllowedOrigins []string
	Logger         logger.Interface
}

// Server accepts websocket connections and drives the command handler for
// each. One Server serves all sessions.
type Server struct {
	sessions *session.Store
	registry *Registry
	handler  *handler.Handler
	factory  dataservice.Factory
	upgrader websocket.Upgrader
	logger   logger.Interface
}

// New wires a Server to the session store. The store's destroy notification
// is pointed at this server's registry, so destroying a session immediately
// expires its live connections.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger()
	}
	log := opts.Logger.Named("ws")

	s := &Server{
		sessions: opts.Sessions,
		registry: NewRegistry(log),
		handler:  opts.Handler,
		factory:  opts.Factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		logger: log,
	}
	s.sessions.SetOnDestroy(s.registry.CloseSession)
	return s
}

// Registry exposes the connection index, mainly for tests and stats.
func (s *Server) Registry() *Registry {
	return s.registry
}

// HandleWS is the handshake endpoint.
// GET /ws/grid
func (s *Server) HandleWS(c *gin.Context) {
	token := utils.SessionTokenFrom(c)

	var sess *session.Session
	if token != "" {
		sess = s.sessions.Validate(token)
	}

	wsConn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err, "ip", c.ClientIP())
		return
	}

	if sess == nil {
		// Rejected before ever entering Open: close 4001 and drop without
		// registering, so the connection never appears in any session's set.
		s.rejectUnauthorized(wsConn, c.ClientIP())
		return
	}

	s.serve(wsConn, sess)
}

func (s *Server) rejectUnauthorized(wsConn *websocket.Conn, ip string) {
	deadline := time.Now().Add(writeWait)
	wsConn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(protocol.CloseUnauthorized, "Unauthorized"), deadline)
	wsConn.Close()
	s.logger.Warnw("handshake rejected", "ip", ip)
}

// serve runs one authenticated connection until it closes. It executes on
// the request's goroutine; the accept loop is never blocked by it.
func (s *Server) serve(wsConn *websocket.Conn, sess *session.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Opening the data service may block on the remote database, which is
	// fine here but must never happen before the upgrade completes.
	svc, err := s.factory.Open(ctx, sess.Creds)
	if err != nil {
		s.logger.Errorw("failed to open data service", "error", err)
		deadline := time.Now().Add(writeWait)
		wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "data service unavailable"), deadline)
		wsConn.Close()
		return
	}
	defer svc.Close()

	cc := handler.NewConnContext(sess.Creds.Namespace)
	conn := newConn(sess.Token, wsConn, svc, cc, s.logger)

	s.registry.add(conn)
	defer s.registry.remove(conn)

	s.logger.Infow("connection open", "namespace", sess.Creds.Namespace)

	goroutine.SafeGo(s.logger, "ws-write-pump", conn.writePump)

	// Every inbound frame counts as activity for the sliding expiry window.
	touch := func() { s.sessions.Validate(conn.token) }
	conn.readPump(ctx, s.handler, touch)

	conn.shutdown()
	s.logger.Infow("connection closed")
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
