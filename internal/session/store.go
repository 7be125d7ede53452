// Package session owns the session lifecycle: creation after a successful
// credential probe, token validation with sliding expiry, explicit and
// idle-sweep destruction. It has no knowledge of any transport; the socket
// layer injects a destroy callback to learn about expiry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/shared/goroutine"
	"github.com/gridbase-io/gridbase/internal/shared/id"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
)

// Prober checks credentials against the remote database. Implemented by
// infrastructure/database.Probe in production.
type Prober func(ctx context.Context, creds dataservice.Credentials, timeout time.Duration) error

// Session binds a token to one set of remote-database credentials. The
// credential payload lives in memory only and is never serialized.
type Session struct {
	Token     string
	Creds     dataservice.Credentials
	CreatedAt time.Time

	lastActivity time.Time // guarded by the owning store's mutex
}

// Options configures a Store.
type Options struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	ProbeTimeout  time.Duration
	TokenLength   int
	Prober        Prober
	Logger        logger.Interface
}

// Store is the session registry. All mutation goes through its mutex; the
// destroy-notification callback runs outside the lock so the transport layer
// can take its own locks safely.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idleTimeout   time.Duration
	sweepInterval time.Duration
	probeTimeout  time.Duration
	tokenLength   int
	prober        Prober
	onDestroy     func(token string)
	logger        logger.Interface

	now       func() time.Time
	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewStore creates a session store. The sweeper is not started until
// StartSweeper is called.
func NewStore(opts Options) *Store {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.TokenLength <= 0 {
		opts.TokenLength = id.SessionTokenLength
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger()
	}
	return &Store{
		sessions:      make(map[string]*Session),
		idleTimeout:   opts.IdleTimeout,
		sweepInterval: opts.SweepInterval,
		probeTimeout:  opts.ProbeTimeout,
		tokenLength:   opts.TokenLength,
		prober:        opts.Prober,
		logger:        opts.Logger.Named("session"),
		now:           time.Now,
		sweepStop:     make(chan struct{}),
	}
}

// SetOnDestroy installs the destroy-notification callback. The socket
// transport uses it to push sessionExpired to bound connections. Must be set
// before the store is shared across goroutines.
func (s *Store) SetOnDestroy(fn func(token string)) {
	s.onDestroy = fn
}

// Create probes the remote database with the supplied credentials and, on
// success, mints a token and stores the session. On probe failure no session
// is created and the classified probe error is returned.
func (s *Store) Create(ctx context.Context, creds dataservice.Credentials) (string, error) {
	if s.prober != nil {
		if err := s.prober(ctx, creds, s.probeTimeout); err != nil {
			return "", err
		}
	}

	token, err := id.Generate(s.tokenLength)
	if err != nil {
		return "", err
	}

	now := s.now()
	sess := &Session{
		Token:        token,
		Creds:        creds,
		CreatedAt:    now,
		lastActivity: now,
	}

	s.mu.Lock()
	s.sessions[token] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.Infow("session created",
		"host", creds.Host,
		"username", creds.Username,
		"active_sessions", count,
	)
	return token, nil
}

// Validate looks up a session by token. Unknown or expired tokens return nil.
// A successful lookup refreshes the last-activity timestamp, giving sessions
// a sliding expiry window.
func (s *Store) Validate(token string) *Session {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	now := s.now()
	if now.Sub(sess.lastActivity) > s.idleTimeout {
		delete(s.sessions, token)
		s.mu.Unlock()
		// Expired-on-read goes through the same notification path as any
		// other destruction.
		s.notifyDestroyed(token)
		return nil
	}

	sess.lastActivity = now
	s.mu.Unlock()
	return sess
}

// Destroy removes a session and synchronously notifies bound connections.
// Destroying an unknown token is a no-op.
func (s *Store) Destroy(token string) {
	s.mu.Lock()
	_, ok := s.sessions[token]
	if ok {
		delete(s.sessions, token)
	}
	s.mu.Unlock()

	if ok {
		s.notifyDestroyed(token)
		s.logger.Infow("session destroyed", "token_prefix", tokenPrefix(token))
	}
}

// StartSweeper launches the periodic idle sweep. Safe to call once.
func (s *Store) StartSweeper() {
	goroutine.SafeGo(s.logger, "session-sweeper", func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.sweepStop:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	})
}

// Close stops the sweeper and destroys every remaining session through the
// normal destroy path, so live connections get their expiry notification on
// shutdown too.
func (s *Store) Close() {
	s.sweepOnce.Do(func() { close(s.sweepStop) })

	s.mu.Lock()
	tokens := make([]string, 0, len(s.sessions))
	for token := range s.sessions {
		tokens = append(tokens, token)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, token := range tokens {
		s.notifyDestroyed(token)
	}
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) sweep() {
	now := s.now()

	s.mu.Lock()
	expired := make([]string, 0)
	for token, sess := range s.sessions {
		if now.Sub(sess.lastActivity) > s.idleTimeout {
			delete(s.sessions, token)
			expired = append(expired, token)
		}
	}
	s.mu.Unlock()

	for _, token := range expired {
		s.notifyDestroyed(token)
	}
	if len(expired) > 0 {
		s.logger.Infow("idle sessions swept", "count", len(expired))
	}
}

func (s *Store) notifyDestroyed(token string) {
	if s.onDestroy != nil {
		s.onDestroy(token)
	}
}

// tokenPrefix returns a short, log-safe fragment of a token.
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
