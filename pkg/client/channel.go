package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wcfb/reactor/pkg/log"
	"github.com/wcfb/reactor/pkg/transport"
	"github.com/wcfb/reactor/pkg/wire"
)

// DefaultInboxSize is the receive buffer capacity of a Channel.
const DefaultInboxSize = 32

// closeWriteTimeout bounds the best-effort close control frame so a
// stuck peer cannot block Close.
const closeWriteTimeout = 1 * time.Second

// Channel is an established connection. It owns the socket: a read
// loop decodes incoming frames onto Receive, control messages are
// answered below the application codec, and teardown is signalled
// exactly once via Done regardless of who initiated it.
type Channel struct {
	id        string
	sessionID string

	conn     net.Conn
	framer   *transport.Framer
	codec    wire.Codec
	logger   log.Logger
	endpoint transport.Endpoint

	inbox chan any
	ka    *keepAlive

	closeOnce sync.Once
	done      chan struct{}
	reason    error

	// onClosed fires exactly once, inside the close, before Done is
	// signalled. The client uses it to deliver the dispatcher callback.
	onClosed func(*Channel, error)
}

type channelConfig struct {
	sessionID      string
	codec          wire.Codec
	logger         log.Logger
	maxMessageSize uint32
	keepAlive      KeepAliveConfig
	onClosed       func(*Channel, error)
}

// newChannel wraps an established conn. start must be called before
// the channel is handed to the caller.
func newChannel(conn net.Conn, endpoint transport.Endpoint, cfg channelConfig) *Channel {
	if cfg.codec == nil {
		cfg.codec = wire.CBORCodec{}
	}
	if cfg.logger == nil {
		cfg.logger = log.NoopLogger{}
	}
	if cfg.maxMessageSize == 0 {
		cfg.maxMessageSize = transport.DefaultMaxMessageSize
	}

	ch := &Channel{
		id:        uuid.New().String(),
		sessionID: cfg.sessionID,
		conn:      conn,
		framer:    transport.NewFramerWithMaxSize(conn, cfg.maxMessageSize),
		codec:     cfg.codec,
		logger:    cfg.logger,
		endpoint:  endpoint,
		inbox:     make(chan any, DefaultInboxSize),
		done:      make(chan struct{}),
		onClosed:  cfg.onClosed,
	}
	ch.framer.SetLogger(cfg.logger, ch.id)

	if cfg.keepAlive.Enabled {
		ch.ka = newKeepAlive(cfg.keepAlive,
			func(seq uint32) error {
				data, err := wire.EncodePing(seq)
				if err != nil {
					return err
				}
				return ch.sendRaw(data)
			},
			func() {
				ch.shutdown(ErrKeepAliveTimeout)
			},
		)
	}

	return ch
}

// start launches the read loop and keep-alive monitoring.
func (ch *Channel) start() {
	ch.logState("", "OPEN", "")
	go ch.readLoop()
	if ch.ka != nil {
		ch.ka.start()
	}
}

// ID returns the channel's connection ID.
func (ch *Channel) ID() string {
	return ch.id
}

// Endpoint returns the endpoint this channel was dialed to.
func (ch *Channel) Endpoint() transport.Endpoint {
	return ch.endpoint
}

// LocalAddr returns the local network address.
func (ch *Channel) LocalAddr() net.Addr {
	return ch.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (ch *Channel) RemoteAddr() net.Addr {
	return ch.conn.RemoteAddr()
}

// Send encodes a message with the channel's codec and writes it as one
// frame. Safe for concurrent use.
func (ch *Channel) Send(v any) error {
	select {
	case <-ch.done:
		return ErrChannelClosed
	default:
	}

	data, err := ch.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return ch.sendRaw(data)
}

// sendRaw writes pre-encoded bytes as one frame.
func (ch *Channel) sendRaw(data []byte) error {
	if err := ch.framer.WriteFrame(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Receive returns the inbox of decoded application messages. The
// channel is closed after the read loop exits.
func (ch *Channel) Receive() <-chan any {
	return ch.inbox
}

// Done is closed exactly once when the channel is torn down, whether
// by the peer, an error, keep-alive timeout, or a local Close.
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}

// CloseReason reports why the channel closed. It is meaningful only
// after Done is signalled: nil for a clean close (local or remote),
// the causing error otherwise.
func (ch *Channel) CloseReason() error {
	select {
	case <-ch.done:
		return ch.reason
	default:
		return nil
	}
}

// Close tears the channel down, sending a best-effort close control
// frame first. Idempotent; the close notification still fires exactly
// once.
func (ch *Channel) Close() error {
	select {
	case <-ch.done:
		return nil
	default:
	}

	ch.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
	if data, err := wire.EncodeClose(); err == nil {
		ch.sendRaw(data)
	}
	ch.shutdown(nil)
	return nil
}

// shutdown performs the one and only teardown.
func (ch *Channel) shutdown(reason error) {
	ch.closeOnce.Do(func() {
		ch.reason = reason
		if ch.ka != nil {
			ch.ka.stop()
		}
		ch.conn.Close()

		detail := ""
		if reason != nil {
			detail = reason.Error()
		}
		ch.logState("OPEN", "CLOSED", detail)

		if ch.onClosed != nil {
			ch.onClosed(ch, reason)
		}
		close(ch.done)
	})
}

func (ch *Channel) readLoop() {
	defer close(ch.inbox)

	for {
		data, err := ch.framer.ReadFrame()
		if err != nil {
			ch.shutdown(ch.normalizeReadError(err))
			return
		}

		if ctrl, err := wire.DecodeControlMessage(data); err == nil {
			if !ch.handleControl(ctrl) {
				return
			}
			continue
		}

		msg, err := ch.codec.Decode(data)
		if err != nil {
			ch.logError(err, "decode frame")
			continue
		}

		select {
		case ch.inbox <- msg:
		case <-ch.done:
			return
		}
	}
}

// handleControl processes a control message. It returns false when the
// read loop should exit.
func (ch *Channel) handleControl(msg *wire.ControlMessage) bool {
	switch msg.Type {
	case wire.ControlPing:
		if data, err := wire.EncodePong(msg.Sequence); err == nil {
			ch.sendRaw(data)
		}
	case wire.ControlPong:
		if ch.ka != nil {
			ch.ka.pongReceived(msg.Sequence)
		}
	case wire.ControlClose:
		// Peer-initiated close: acknowledge, then tear down cleanly.
		if data, err := wire.EncodeClose(); err == nil {
			ch.sendRaw(data)
		}
		ch.shutdown(nil)
		return false
	}
	return true
}

// normalizeReadError maps read loop failures to a close reason. A
// clean remote close and errors caused by our own teardown are not
// failures.
func (ch *Channel) normalizeReadError(err error) error {
	select {
	case <-ch.done:
		return nil
	default:
	}
	if err == io.EOF {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return fmt.Errorf("read frame: %w", err)
}

func (ch *Channel) logState(oldState, newState, reason string) {
	ch.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: ch.id,
		SessionID:    ch.sessionID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   ch.endpoint.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (ch *Channel) logError(err error, context string) {
	ch.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: ch.id,
		SessionID:    ch.sessionID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   ch.endpoint.String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}
