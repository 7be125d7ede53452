package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/gridbase-io/gridbase/internal/protocol"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
	"github.com/gridbase-io/gridbase/internal/shared/utils"
)

// Terminal results of the reconnection loop.
var (
	// ErrSessionExpired means the server closed with code 4002. Retrying is
	// pointless; the user has to re-authenticate.
	ErrSessionExpired = errors.New("session expired")
	// ErrRetriesExhausted means the give-up threshold was hit. The user can
	// trigger a manual refresh to start over.
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// ConnState is the observable state of the socket bridge.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateRetrying
	// StateExpired is terminal: close code 4002 was observed.
	StateExpired
	// StateGaveUp is terminal: the retry budget ran out.
	StateGaveUp
)

// Dialer opens websocket connections. Satisfied by *websocket.Dialer;
// injectable for tests.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// SocketOptions configures a SocketBridge.
type SocketOptions struct {
	// URL is the handshake endpoint, e.g. wss://host/ws/grid.
	URL   string
	Token string

	Dialer      Dialer
	MaxAttempts int

	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64

	Logger logger.Interface
}

// SocketBridge is the browser-host adapter: it owns the raw socket, the
// exponential-backoff retry loop, and the expired-versus-dropped distinction.
// Subscriptions live on the bridge, not the socket, so a reconnect replays
// them with no UI involvement.
type SocketBridge struct {
	opts   SocketOptions
	events *eventRegistry
	state  memState

	connState atomic.Int32

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	// sleep is the retry scheduler; tests swap it to observe (or deny)
	// scheduling.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSocketBridge creates a socket bridge. Run must be called to connect.
func NewSocketBridge(opts SocketOptions) *SocketBridge {
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2
	}
	if opts.RandomizationFactor <= 0 {
		opts.RandomizationFactor = 0.2
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger()
	}
	b := &SocketBridge{
		opts:   opts,
		events: newEventRegistry(),
		sleep:  sleepCtx,
	}
	b.opts.Logger = opts.Logger.Named("bridge-socket")
	return b
}

// State reports the current connection state.
func (b *SocketBridge) State() ConnState {
	return ConnState(b.connState.Load())
}

// Run drives the connection until ctx is cancelled or a terminal state is
// reached. It blocks; callers run it on its own goroutine.
func (b *SocketBridge) Run(ctx context.Context) error {
	bo := newBackOff(b.opts)
	attempt := 0
	everConnected := false

	for {
		established, closeCode, err := b.runOnce(ctx, everConnected)
		if ctx.Err() != nil {
			b.setState(StateDisconnected)
			return ctx.Err()
		}

		if closeCode == protocol.CloseSessionExpired {
			// Terminal: skip the retry loop entirely. Reconnecting against a
			// destroyed session would loop on 4001/4002 forever.
			b.setState(StateExpired)
			b.opts.Logger.Infow("session expired, not reconnecting")
			return ErrSessionExpired
		}

		// Only a connection that delivered at least one frame resets the
		// retry budget. A dial that is accepted and then closed straight away
		// (a 4001 rejection, most commonly) still burns an attempt, so a
		// server that keeps refusing the token exhausts the budget instead of
		// being hammered forever.
		if established {
			everConnected = true
			attempt = 0
			bo.Reset()
			b.events.dispatchLocal(protocol.EvtDisconnected)
		}

		attempt++
		if attempt > b.opts.MaxAttempts {
			b.setState(StateGaveUp)
			b.opts.Logger.Warnw("giving up after repeated reconnect failures",
				"attempts", b.opts.MaxAttempts, "error", err)
			return ErrRetriesExhausted
		}

		delay := bo.NextBackOff()
		b.setState(StateRetrying)
		b.events.dispatchLocal(protocol.EvtReconnecting)
		b.opts.Logger.Infow("reconnecting", "attempt", attempt, "delay", delay, "error", err)

		if err := b.sleep(ctx, delay); err != nil {
			b.setState(StateDisconnected)
			return err
		}
	}
}

// runOnce performs one dial-and-read lifecycle. It reports whether the
// connection delivered at least one frame and, if the server closed it, the
// close code.
func (b *SocketBridge) runOnce(ctx context.Context, isReconnect bool) (bool, int, error) {
	b.setState(StateConnecting)

	conn, resp, err := b.opts.Dialer.DialContext(ctx, b.handshakeURL(), nil)
	if err != nil {
		if resp != nil {
			return false, 0, errors.Join(err, errors.New(resp.Status))
		}
		return false, 0, err
	}

	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()
	b.setState(StateConnected)

	// Close the socket when ctx ends so the read loop unblocks.
	readDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	closeCode := 0
	established := false
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				closeCode = closeErr.Code
			}
			close(readDone)
			b.connMu.Lock()
			b.conn = nil
			b.connMu.Unlock()
			conn.Close()
			b.setState(StateDisconnected)
			return established, closeCode, err
		}
		if !established {
			established = true
			if isReconnect {
				// Server-side per-connection state did not survive; the UI
				// refreshes its data on this signal. Subscriptions are
				// already in place.
				b.events.dispatchLocal(protocol.EvtReconnected)
			}
		}
		b.events.dispatch(env.Name, env.Payload)
	}
}

// SendCommand serializes one command frame. It fails fast when no connection
// is live; the UI decides whether to queue or drop.
func (b *SocketBridge) SendCommand(name string, payload any) error {
	env, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		return err
	}

	b.connMu.Lock()
	conn := b.conn
	b.connMu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(env)
}

func (b *SocketBridge) OnEvent(name string, handlerFn EventHandler) *Subscription {
	return b.events.add(name, handlerFn)
}

func (b *SocketBridge) OffEvent(sub *Subscription) {
	b.events.remove(sub)
}

func (b *SocketBridge) GetState() ([]byte, error) {
	return b.state.get()
}

func (b *SocketBridge) SetState(state []byte) error {
	return b.state.set(state)
}

func (b *SocketBridge) setState(s ConnState) {
	b.connState.Store(int32(s))
}

func (b *SocketBridge) handshakeURL() string {
	u, err := url.Parse(b.opts.URL)
	if err != nil {
		return b.opts.URL
	}
	q := u.Query()
	q.Set(utils.SessionTokenQueryParam, b.opts.Token)
	u.RawQuery = q.Encode()
	return u.String()
}

// newBackOff builds the retry schedule: delay = min(initial * multiplier^n,
// max), then ±randomizationFactor uniform jitter.
func newBackOff(opts SocketOptions) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.InitialInterval
	bo.MaxInterval = opts.MaxInterval
	bo.Multiplier = opts.Multiplier
	bo.RandomizationFactor = opts.RandomizationFactor
	bo.Reset()
	return bo
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
