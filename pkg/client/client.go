package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/wcfb/reactor/pkg/dispatch"
	"github.com/wcfb/reactor/pkg/log"
	"github.com/wcfb/reactor/pkg/reconnect"
	"github.com/wcfb/reactor/pkg/transport"
	"github.com/wcfb/reactor/pkg/wire"
)

// ClientConfig configures a Client. Endpoint is the only required
// field; everything else has working defaults.
type ClientConfig struct {
	// Endpoint is the default connect target.
	Endpoint transport.Endpoint

	// Dialer establishes connections. Default: plaintext NetDialer
	// with default socket options.
	Dialer transport.Dialer

	// Codec translates application messages. Default: CBOR.
	Codec wire.Codec

	// MaxMessageSize caps frame payloads. Default: 64 KB.
	MaxMessageSize uint32

	// KeepAlive configures per-channel liveness pings. Disabled by
	// default.
	KeepAlive KeepAliveConfig

	// Dispatcher delivers lifecycle callbacks. When nil, the client
	// creates its own dispatcher and shuts it down in Close. A
	// dispatcher supplied here is treated as shared: Close leaves it
	// running.
	Dispatcher *dispatch.Dispatcher

	// Logger receives lifecycle events. Default: discard.
	Logger log.Logger

	// OnChannelOpened is invoked on the dispatcher for every
	// established channel.
	OnChannelOpened func(*Channel)

	// OnChannelClosed is invoked on the dispatcher exactly once per
	// established channel, before any subsequent channel's
	// OnChannelOpened.
	OnChannelClosed func(*Channel, error)
}

// Client opens connections to a fixed endpoint, either one-shot via
// Open or durable via OpenSession.
type Client struct {
	endpoint       transport.Endpoint
	dialer         transport.Dialer
	codec          wire.Codec
	maxMessageSize uint32
	keepAlive      KeepAliveConfig
	logger         log.Logger

	dispatcher     *dispatch.Dispatcher
	ownsDispatcher bool

	onOpened func(*Channel)
	onClosed func(*Channel, error)

	mu       sync.Mutex
	closing  bool
	sessions map[*Session]struct{}
	channels map[*Channel]struct{}
}

// New creates a client from the given configuration.
func New(cfg ClientConfig) *Client {
	c := &Client{
		endpoint:       cfg.Endpoint,
		dialer:         cfg.Dialer,
		codec:          cfg.Codec,
		maxMessageSize: cfg.MaxMessageSize,
		keepAlive:      cfg.KeepAlive,
		logger:         cfg.Logger,
		dispatcher:     cfg.Dispatcher,
		onOpened:       cfg.OnChannelOpened,
		onClosed:       cfg.OnChannelClosed,
		sessions:       make(map[*Session]struct{}),
		channels:       make(map[*Channel]struct{}),
	}
	if c.dialer == nil {
		c.dialer = transport.NewNetDialer(transport.DefaultSocketOptions())
	}
	if c.codec == nil {
		c.codec = wire.CBORCodec{}
	}
	if c.logger == nil {
		c.logger = log.NoopLogger{}
	}
	if c.dispatcher == nil {
		c.dispatcher = dispatch.New()
		c.ownsDispatcher = true
	}
	return c
}

// Endpoint returns the client's configured endpoint.
func (c *Client) Endpoint() transport.Endpoint {
	return c.endpoint
}

// Open performs a single connection attempt to the configured
// endpoint. There is no retry: the first failure is returned. Once
// Close has begun, Open fails with ErrClientClosing.
func (c *Client) Open(ctx context.Context) (*Channel, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, ErrClientClosing
	}
	c.mu.Unlock()

	ch, err := c.dial(ctx, c.endpoint, "")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		ch.Close()
		return nil, ErrClientClosing
	}
	c.channels[ch] = struct{}{}
	c.mu.Unlock()

	return ch, nil
}

// OpenSession starts a durable session against the configured
// endpoint. The session dials immediately; consume Channels for the
// resulting connections. Once Close has begun, the returned session is
// already terminated with ErrClientClosing.
func (c *Client) OpenSession(policy reconnect.Policy) *Session {
	if policy == nil {
		policy = reconnect.Default()
	}
	s := newSession(c, policy)

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		s.err = ErrClientClosing
		s.state.Store(uint32(SessionTerminated))
		close(s.channels)
		close(s.done)
		return s
	}
	c.sessions[s] = struct{}{}
	c.mu.Unlock()

	go s.run(c.endpoint)
	return s
}

// Close shuts the client down: new connects are rejected, sessions are
// terminated (pending retry timers cancelled) and open channels
// closed. The dispatcher is drained and stopped only if the client
// owns it; a shared dispatcher keeps running. Close waits for sessions
// to finish up to the context deadline.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	sessions := make([]*Session, 0, len(c.sessions))
	for s := range c.sessions {
		sessions = append(sessions, s)
	}
	channels := make([]*Channel, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	for _, ch := range channels {
		ch.Close()
	}

	var waitErr error
	for _, s := range sessions {
		if waitErr != nil {
			break
		}
		select {
		case <-s.Done():
		case <-ctx.Done():
			waitErr = ctx.Err()
		}
	}

	// The owned dispatcher is stopped even when the context expired:
	// Shutdown closes its queue immediately and the worker exits once
	// the queued callbacks have drained.
	if c.ownsDispatcher {
		if err := c.dispatcher.Shutdown(ctx); err != nil && waitErr == nil {
			waitErr = err
		}
	}
	return waitErr
}

// dial performs one connection attempt and wraps the result in a
// started Channel.
func (c *Client) dial(ctx context.Context, endpoint transport.Endpoint, sessionID string) (*Channel, error) {
	conn, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}

	ch := newChannel(conn, endpoint, channelConfig{
		sessionID:      sessionID,
		codec:          c.codec,
		logger:         c.logger,
		maxMessageSize: c.maxMessageSize,
		keepAlive:      c.keepAlive,
		onClosed:       c.channelClosed,
	})
	ch.start()

	if c.onOpened != nil {
		opened := c.onOpened
		c.dispatcher.Dispatch(func() { opened(ch) })
	}

	return ch, nil
}

// channelClosed runs inside the channel's exactly-once teardown.
func (c *Client) channelClosed(ch *Channel, reason error) {
	c.mu.Lock()
	delete(c.channels, ch)
	c.mu.Unlock()

	if c.onClosed != nil {
		closed := c.onClosed
		c.dispatcher.Dispatch(func() { closed(ch, reason) })
	}
}

func (c *Client) sessionEnded(s *Session) {
	c.mu.Lock()
	delete(c.sessions, s)
	c.mu.Unlock()
}
