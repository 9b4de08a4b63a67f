package llm

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

// transientMarkers identify rate-limit and quota failures in an error message.
var transientMarkers = []string{"429", "ratelimit", "rate limit", "quota"}

// IsTransient reports whether err looks like a rate-limit or quota failure
// that is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RetryPolicy bounds the retries of a single model call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
}

// DefaultRetryPolicy yields delays of about 1s, 2s, 4s across 4 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// Backoff returns the wait after the given 1-indexed failed attempt:
// min(MaxDelay, BaseDelay*2^(attempt-1)) + jitter.
func (p RetryPolicy) Backoff(attempt int, jitter time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay + jitter
}

// withDefaults turns the zero policy into DefaultRetryPolicy. Otherwise only
// MaxAttempts and MaxDelay are filled in; a zero BaseDelay or MaxJitter is
// kept so callers can retry without waiting.
func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p == (RetryPolicy{}) {
		return def
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	return p
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// JitterFunc returns the random part of one backoff step.
type JitterFunc func() time.Duration

// Invoker runs a model call under a RetryPolicy.
type Invoker struct {
	policy RetryPolicy
	sleep  SleepFunc
	jitter JitterFunc
	logger *zap.Logger
}

// InvokerOption customises an Invoker.
type InvokerOption func(*Invoker)

// WithSleep replaces the real sleep, mostly for tests.
func WithSleep(sleep SleepFunc) InvokerOption {
	return func(i *Invoker) {
		if sleep != nil {
			i.sleep = sleep
		}
	}
}

// WithJitter replaces the uniform random jitter.
func WithJitter(jitter JitterFunc) InvokerOption {
	return func(i *Invoker) {
		if jitter != nil {
			i.jitter = jitter
		}
	}
}

// NewInvoker builds an Invoker. The zero policy means DefaultRetryPolicy; in
// any other policy a non-positive MaxAttempts or MaxDelay takes the default
// and BaseDelay and MaxJitter are used as given.
func NewInvoker(policy RetryPolicy, logger *zap.Logger, opts ...InvokerOption) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy = policy.withDefaults()
	inv := &Invoker{
		policy: policy,
		sleep:  contextSleep,
		logger: logger,
	}
	inv.jitter = func() time.Duration {
		if inv.policy.MaxJitter <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(inv.policy.MaxJitter)))
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Policy returns the effective policy.
func (i *Invoker) Policy() RetryPolicy {
	return i.policy
}

// Invoke calls call until it succeeds, fails with a non-transient error, or
// the attempts run out. The error of the last attempt is returned unchanged.
func (i *Invoker) Invoke(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	for attempt := 1; ; attempt++ {
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		if !IsTransient(err) {
			i.logger.Debug("model call failed, not retrying", zap.Int("attempt", attempt), zap.Error(err))
			return "", err
		}
		if attempt >= i.policy.MaxAttempts {
			i.logger.Warn("model rate limited, attempts exhausted",
				zap.Int("attempts", attempt), zap.Error(err))
			return "", err
		}

		delay := i.policy.Backoff(attempt, i.jitter())
		i.logger.Warn("model rate limited, backing off",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", i.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := i.sleep(ctx, delay); serr != nil {
			return "", serr
		}
	}
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
