// Package reconnect provides retry policies for durable connections.
//
// A Policy is a pure decision function: given the endpoint of the last
// attempt and the attempt number, it returns the next endpoint and the
// delay before retrying, or declines so the session terminates. The
// session manager owns all bookkeeping (attempt counting, current
// endpoint); a policy sees only its arguments and must be callable from
// any goroutine.
//
// The attempt number passed to a policy is strictly monotonic for the
// lifetime of a session: it is NOT reset when a connection succeeds.
// A session that connects, drops and reconnects many times keeps
// counting upward. Policies implementing capped exponential backoff
// should use the Backoff calculator, which derives the delay from the
// attempt number and therefore also never "starts over" mid-session.
//
// # Backoff
//
// Exponential backoff doubles the delay each attempt up to a maximum:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//
// Jitter is added to prevent thundering herd:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package reconnect
