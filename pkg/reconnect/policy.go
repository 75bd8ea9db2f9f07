package reconnect

import (
	"context"
	"time"

	"github.com/wcfb/reactor/pkg/transport"
)

// Policy decides whether and how to retry after a connection attempt
// fails or an established connection drops. It receives the endpoint of
// the last attempt and the 1-based attempt number, and returns the
// endpoint for the next attempt and the delay to wait before it. A
// return of ok=false means give up; the session then terminates.
//
// Policies must be safe for concurrent use and must not block
// indefinitely; the session waits on the policy before scheduling the
// retry timer.
type Policy func(last transport.Endpoint, attempt int) (next transport.Endpoint, delay time.Duration, ok bool)

// Never returns a policy that gives up on the first decision. A session
// using it behaves like a single connection attempt with no retries.
func Never() Policy {
	return func(transport.Endpoint, int) (transport.Endpoint, time.Duration, bool) {
		return transport.Endpoint{}, 0, false
	}
}

// FixedDelay retries the same endpoint forever with a constant delay.
func FixedDelay(delay time.Duration) Policy {
	return func(last transport.Endpoint, _ int) (transport.Endpoint, time.Duration, bool) {
		return last, delay, true
	}
}

// WithBackoff retries the same endpoint forever, deriving the delay
// from the attempt number with capped exponential backoff and jitter.
func WithBackoff(cfg BackoffConfig) Policy {
	b := NewBackoffWithConfig(cfg)
	return func(last transport.Endpoint, attempt int) (transport.Endpoint, time.Duration, bool) {
		return last, b.Delay(attempt), true
	}
}

// Default returns the standard policy: exponential backoff from 1s to
// 60s with 25% jitter, retrying forever.
func Default() Policy {
	return WithBackoff(BackoffConfig{Jitter: JitterFactor})
}

// Limit wraps a policy and gives up once the attempt number exceeds
// max. Attempt numbers are cumulative for the session, so a session
// that reconnects several times spends its budget across all of them.
func Limit(max int, inner Policy) Policy {
	return func(last transport.Endpoint, attempt int) (transport.Endpoint, time.Duration, bool) {
		if attempt > max {
			return transport.Endpoint{}, 0, false
		}
		return inner(last, attempt)
	}
}

// MaxRetries retries the same endpoint with a constant delay, giving up
// after max attempts.
func MaxRetries(max int, delay time.Duration) Policy {
	return Limit(max, FixedDelay(delay))
}

// A Resolver maps the endpoint of a failed attempt to a fresh endpoint,
// for example by re-querying service discovery.
type Resolver interface {
	Resolve(ctx context.Context, last transport.Endpoint) (transport.Endpoint, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, last transport.Endpoint) (transport.Endpoint, error)

func (f ResolverFunc) Resolve(ctx context.Context, last transport.Endpoint) (transport.Endpoint, error) {
	return f(ctx, last)
}

// DefaultResolveTimeout bounds a single resolver query made on behalf
// of a Resolving policy.
const DefaultResolveTimeout = 5 * time.Second

// Resolving wraps a policy so that each retry targets a freshly
// resolved endpoint. The inner policy supplies the delay and the
// give-up decision; if resolution fails, the retry reuses the endpoint
// the inner policy chose.
func Resolving(resolver Resolver, inner Policy) Policy {
	return ResolvingWithTimeout(resolver, inner, DefaultResolveTimeout)
}

// ResolvingWithTimeout is Resolving with an explicit per-query timeout.
func ResolvingWithTimeout(resolver Resolver, inner Policy, timeout time.Duration) Policy {
	return func(last transport.Endpoint, attempt int) (transport.Endpoint, time.Duration, bool) {
		next, delay, ok := inner(last, attempt)
		if !ok {
			return transport.Endpoint{}, 0, false
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resolved, err := resolver.Resolve(ctx, next)
		if err != nil {
			return next, delay, true
		}
		return resolved, delay, true
	}
}
