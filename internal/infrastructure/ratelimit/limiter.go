// Package ratelimit throttles login attempts. Credential probes against the
// backing database are expensive and a natural brute-force target, so the
// session endpoint counts attempts per client before probing.
package ratelimit

import "context"

// Limits bounds attempts over sliding windows. A zero value disables that
// window.
type Limits struct {
	PerMinute int
	PerHour   int
}

// Limiter decides whether one more attempt from key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string, limits Limits) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Noop allows everything. Used when no Redis is configured, e.g. single-user
// desktop deployments.
type Noop struct{}

func (Noop) Allow(context.Context, string, Limits) (bool, error) { return true, nil }
func (Noop) Reset(context.Context, string) error                 { return nil }
