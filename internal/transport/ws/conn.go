package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/handler"
	"github.com/gridbase-io/gridbase/internal/protocol"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	maxFrameSize  = 1 << 20
	sendQueueSize = 256
)

// outbound is one unit on the write queue: either an event envelope or a
// close instruction. Routing both through the queue keeps every write on the
// write pump and guarantees event-before-close ordering.
type outbound struct {
	env       *protocol.Envelope
	closeCode int
	closeText string
}

// Conn is one live socket bound to a session token, with its own browsing
// context. All reads happen on the connection's goroutine; all writes happen
// on the write pump.
type Conn struct {
	token string
	ws    *websocket.Conn
	svc   dataservice.Interface
	cc    *handler.ConnContext

	send chan outbound
	done chan struct{}

	logger logger.Interface
}

func newConn(token string, wsConn *websocket.Conn, svc dataservice.Interface, cc *handler.ConnContext, log logger.Interface) *Conn {
	return &Conn{
		token:  token,
		ws:     wsConn,
		svc:    svc,
		cc:     cc,
		send:   make(chan outbound, sendQueueSize),
		done:   make(chan struct{}),
		logger: log,
	}
}

// enqueue queues an event for delivery. A full queue drops the event rather
// than blocking the caller; the connection is about to die anyway if the
// peer stopped draining a queue this deep.
func (c *Conn) enqueue(env protocol.Envelope) {
	e := env
	select {
	case c.send <- outbound{env: &e}:
	case <-c.done:
	default:
		c.logger.Warnw("send queue full, dropping event", "event", env.Name)
	}
}

// beginClose queues a close frame with the given code. The write pump sends
// it after everything queued ahead of it and then tears the socket down.
func (c *Conn) beginClose(code int, text string) {
	select {
	case c.send <- outbound{closeCode: code, closeText: text}:
	case <-c.done:
	default:
		// Queue jammed; shut down without the courtesy close frame.
		c.shutdown()
	}
}

func (c *Conn) shutdown() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.ws.Close()
}

// readPump processes inbound frames in receipt order. A malformed frame
// produces one error event and leaves the connection open; routing errors
// come back as error events from the handler. The pump returns when the
// socket dies or the server forces a close.
func (c *Conn) readPump(ctx context.Context, h *handler.Handler, onFrame func()) {
	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warnw("websocket read error", "error", err)
			}
			return
		}

		if onFrame != nil {
			onFrame()
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Name == "" {
			c.enqueueError("malformed frame: expected {name, payload}")
			continue
		}

		// Synchronous within the read loop: events triggered by this command
		// are queued before the next frame is even read, which is what gives
		// the per-connection FIFO guarantee.
		for _, evt := range h.Handle(ctx, c.svc, c.cc, env, c.enqueue) {
			c.enqueue(evt)
		}
	}
}

func (c *Conn) enqueueError(message string) {
	evt, err := protocol.NewEnvelope(protocol.EvtError, protocol.ErrorPayload{
		Kind:    "VALIDATION_ERROR",
		Message: message,
	})
	if err != nil {
		return
	}
	c.enqueue(evt)
}

// writePump owns every write to the socket: queued events, pings, and the
// final close frame.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return

		case out := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if out.closeCode != 0 {
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(out.closeCode, out.closeText))
				return
			}
			if err := c.ws.WriteJSON(out.env); err != nil {
				c.logger.Warnw("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
