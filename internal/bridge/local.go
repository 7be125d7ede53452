package bridge

import (
	"context"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/handler"
	"github.com/gridbase-io/gridbase/internal/protocol"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
)

// LocalBridge serves hosts that run in the same process as the command
// handler, such as an extension panel embedded next to the backend. Commands
// dispatch straight into the handler with no serialization boundary beyond
// the envelope itself.
type LocalBridge struct {
	ctx     context.Context
	handler *handler.Handler
	svc     dataservice.Interface
	cc      *handler.ConnContext
	events  *eventRegistry
	state   memState
	logger  logger.Interface
}

// NewLocalBridge creates an in-process bridge with its own browsing context.
func NewLocalBridge(ctx context.Context, h *handler.Handler, svc dataservice.Interface, namespace string, log logger.Interface) *LocalBridge {
	if log == nil {
		log = logger.NewLogger()
	}
	return &LocalBridge{
		ctx:     ctx,
		handler: h,
		svc:     svc,
		cc:      handler.NewConnContext(namespace),
		events:  newEventRegistry(),
		logger:  log.Named("bridge-local"),
	}
}

func (b *LocalBridge) SendCommand(name string, payload any) error {
	env, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		return err
	}
	emit := func(evt protocol.Envelope) {
		b.events.dispatch(evt.Name, evt.Payload)
	}
	for _, evt := range b.handler.Handle(b.ctx, b.svc, b.cc, env, emit) {
		b.events.dispatch(evt.Name, evt.Payload)
	}
	return nil
}

func (b *LocalBridge) OnEvent(name string, handlerFn EventHandler) *Subscription {
	return b.events.add(name, handlerFn)
}

func (b *LocalBridge) OffEvent(sub *Subscription) {
	b.events.remove(sub)
}

func (b *LocalBridge) GetState() ([]byte, error) {
	return b.state.get()
}

func (b *LocalBridge) SetState(state []byte) error {
	return b.state.set(state)
}
