package client

import (
	"errors"
	"fmt"

	"github.com/wcfb/reactor/pkg/transport"
)

// Client errors.
var (
	// ErrClientClosing rejects new connects once Close has begun.
	ErrClientClosing = errors.New("client closing")

	// ErrChannelClosed is returned when sending on a closed channel.
	ErrChannelClosed = errors.New("channel closed")

	// ErrKeepAliveTimeout is the close reason when the peer stopped
	// answering pings.
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")
)

// TerminalError reports that a session's policy declined to retry after
// a failed connection attempt. It wraps the error of that last attempt.
type TerminalError struct {
	// Endpoint is the endpoint of the failed attempt.
	Endpoint transport.Endpoint

	// Attempt is the session's attempt number when the policy gave up.
	Attempt int

	// Err is the connection error of the last attempt.
	Err error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("session terminated: gave up on %s after attempt %d: %v", e.Endpoint, e.Attempt, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}
