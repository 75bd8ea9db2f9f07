package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wcfb/reactor/pkg/log"
	"github.com/wcfb/reactor/pkg/reconnect"
	"github.com/wcfb/reactor/pkg/transport"
)

// SessionState represents the session lifecycle state.
type SessionState uint8

const (
	// SessionIdle indicates the session has not started connecting.
	SessionIdle SessionState = iota

	// SessionConnecting indicates a connection attempt is in flight.
	SessionConnecting

	// SessionConnected indicates an active channel.
	SessionConnected

	// SessionReconnecting indicates the session is waiting out a retry
	// delay.
	SessionReconnecting

	// SessionTerminated indicates the session has ended.
	SessionTerminated
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "IDLE"
	case SessionConnecting:
		return "CONNECTING"
	case SessionConnected:
		return "CONNECTED"
	case SessionReconnecting:
		return "RECONNECTING"
	case SessionTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Session keeps a logical connection alive across drops. Every
// successful (re)connect yields a fresh *Channel on Channels; the
// reconnect.Policy decides whether, where and when to retry.
//
// All mutable session state lives on the run goroutine: the current
// endpoint, the attempt counter, policy consults and channel emission
// are strictly serialized. The attempt counter is monotonic for the
// session's whole lifetime and is never reset by a successful connect.
type Session struct {
	id     string
	client *Client
	policy reconnect.Policy
	logger log.Logger

	state atomic.Uint32

	channels chan *Channel
	done     chan struct{}
	err      error

	closeOnce sync.Once
	closeCh   chan struct{}

	mu      sync.Mutex
	current *Channel
}

func newSession(c *Client, policy reconnect.Policy) *Session {
	s := &Session{
		id:       uuid.New().String(),
		client:   c,
		policy:   policy,
		logger:   c.logger,
		channels: make(chan *Channel),
		done:     make(chan struct{}),
		closeCh:  make(chan struct{}),
	}
	s.state.Store(uint32(SessionIdle))
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Channels is the stream of established connections. It is closed when
// the session terminates; Err then reports why.
func (s *Session) Channels() <-chan *Channel {
	return s.channels
}

// Done is closed when the session has terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session ended. It is meaningful only after Done
// is signalled: nil for an explicit Close or a policy give-up after an
// established connection dropped, a *TerminalError when the policy
// gave up on a failed connection attempt.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close ends the session. Any pending retry timer is cancelled and the
// current channel, if any, is closed. An in-flight connection attempt
// is not interrupted; a channel it produces is closed immediately
// instead of being emitted. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current != nil {
		current.Close()
	}
}

func (s *Session) closing() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

// run is the session actor. It is the only goroutine that touches the
// endpoint and the attempt counter.
func (s *Session) run(endpoint transport.Endpoint) {
	var (
		attempt  int
		terminal error
	)
	defer func() {
		s.setState(SessionTerminated, reasonString(terminal))
		s.err = terminal
		close(s.channels)
		close(s.done)
		s.client.sessionEnded(s)
	}()

	for {
		if s.closing() {
			return
		}

		s.setState(SessionConnecting, "")
		ch, err := s.client.dial(context.Background(), endpoint, s.id)

		if s.closing() {
			if err == nil {
				ch.Close()
			}
			return
		}

		if err != nil {
			// Failed attempt: ask the policy for the next one. A
			// give-up here is a terminal failure.
			attempt++
			next, delay, ok := s.policy(endpoint, attempt)
			s.logAttempt(attempt, next, delay, !ok)
			if !ok {
				terminal = &TerminalError{Endpoint: endpoint, Attempt: attempt, Err: err}
				return
			}
			endpoint = next
			if !s.sleep(delay) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.current = ch
		s.mu.Unlock()

		// Emit before marking connected so consumers never see a
		// connected session whose channel they cannot get.
		select {
		case s.channels <- ch:
		case <-s.closeCh:
			ch.Close()
			return
		}
		s.setState(SessionConnected, "")

		select {
		case <-ch.Done():
		case <-s.closeCh:
			ch.Close()
			<-ch.Done()
			return
		}

		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()

		if s.closing() {
			return
		}

		// Established connection dropped: ask the policy whether to
		// resume. A give-up here ends the session gracefully.
		attempt++
		next, delay, ok := s.policy(endpoint, attempt)
		s.logAttempt(attempt, next, delay, !ok)
		if !ok {
			return
		}
		endpoint = next
		s.setState(SessionReconnecting, reasonString(ch.CloseReason()))
		if !s.sleep(delay) {
			return
		}
	}
}

// sleep waits out a retry delay. It returns false if the session was
// closed first.
func (s *Session) sleep(delay time.Duration) bool {
	if delay <= 0 {
		return !s.closing()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.closeCh:
		return false
	}
}

func (s *Session) setState(newState SessionState, reason string) {
	oldState := SessionState(s.state.Swap(uint32(newState)))
	if oldState == newState {
		return
	}
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

func (s *Session) logAttempt(attempt int, endpoint transport.Endpoint, delay time.Duration, giveUp bool) {
	event := log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Layer:     log.LayerSession,
		Category:  log.CategoryAttempt,
		Attempt: &log.AttemptEvent{
			Attempt: attempt,
			Delay:   delay,
			GiveUp:  giveUp,
		},
	}
	if !giveUp {
		event.Attempt.Endpoint = endpoint.String()
	}
	s.logger.Log(event)
}

func reasonString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
