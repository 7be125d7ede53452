package bridge

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/handler"
	"github.com/gridbase-io/gridbase/internal/protocol"
	"github.com/gridbase-io/gridbase/internal/shared/goroutine"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
)

// PipeBridge serves hosts connected over an inter-process byte stream, such
// as a desktop shell talking to a sidecar process. Envelopes are
// newline-delimited JSON in both directions.
type PipeBridge struct {
	writeMu sync.Mutex
	enc     *json.Encoder

	events *eventRegistry
	state  memState
	logger logger.Interface
}

// NewPipeBridge creates a pipe bridge and starts reading events from rw.
// The read loop runs until rw's read side fails.
func NewPipeBridge(rw io.ReadWriter, log logger.Interface) *PipeBridge {
	if log == nil {
		log = logger.NewLogger()
	}
	b := &PipeBridge{
		enc:    json.NewEncoder(rw),
		events: newEventRegistry(),
		logger: log.Named("bridge-pipe"),
	}

	dec := json.NewDecoder(rw)
	goroutine.SafeGo(b.logger, "pipe-bridge-read", func() {
		for {
			var env protocol.Envelope
			if err := dec.Decode(&env); err != nil {
				if err != io.EOF {
					b.logger.Warnw("pipe read failed", "error", err)
				}
				b.events.dispatchLocal(protocol.EvtDisconnected)
				return
			}
			b.events.dispatch(env.Name, env.Payload)
		}
	})
	return b
}

func (b *PipeBridge) SendCommand(name string, payload any) error {
	env, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.enc.Encode(env)
}

func (b *PipeBridge) OnEvent(name string, handlerFn EventHandler) *Subscription {
	return b.events.add(name, handlerFn)
}

func (b *PipeBridge) OffEvent(sub *Subscription) {
	b.events.remove(sub)
}

func (b *PipeBridge) GetState() ([]byte, error) {
	return b.state.get()
}

func (b *PipeBridge) SetState(state []byte) error {
	return b.state.set(state)
}

// ServePipe runs the server end of a pipe bridge: it reads command envelopes
// from rw, routes them through the handler with a dedicated browsing
// context, and writes events back. It returns when rw fails or ctx is done.
func ServePipe(ctx context.Context, rw io.ReadWriter, h *handler.Handler, svc dataservice.Interface, namespace string, log logger.Interface) error {
	if log == nil {
		log = logger.NewLogger()
	}
	log = log.Named("pipe-server")

	cc := handler.NewConnContext(namespace)
	dec := json.NewDecoder(rw)
	enc := json.NewEncoder(rw)

	var writeMu sync.Mutex
	emit := func(evt protocol.Envelope) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := enc.Encode(evt); err != nil {
			log.Warnw("pipe write failed", "error", err)
		}
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var env protocol.Envelope
		if err := dec.Decode(&env); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		for _, evt := range h.Handle(ctx, svc, cc, env, emit) {
			emit(evt)
		}
	}
}
