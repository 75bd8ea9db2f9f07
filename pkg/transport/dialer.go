package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// Dialer is the substrate boundary: one call produces one established
// connection or one error. Implementations must not retry internally;
// retry policy belongs to the session layer.
type Dialer interface {
	// Dial establishes a single connection to the endpoint. The context
	// bounds the whole attempt, including any TLS handshake.
	Dial(ctx context.Context, endpoint Endpoint) (net.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, endpoint Endpoint) (net.Conn, error)

// Dial calls the function.
func (f DialerFunc) Dial(ctx context.Context, endpoint Endpoint) (net.Conn, error) {
	return f(ctx, endpoint)
}

// NetDialer is the production Dialer: TCP with socket options, and an
// optional TLS 1.3 handshake when TLS material is configured.
type NetDialer struct {
	// Options configure the socket for every attempt.
	Options SocketOptions

	// TLS enables a TLS handshake after the TCP connect. Nil dials
	// plaintext TCP.
	TLS *tls.Config
}

// NewNetDialer creates a dialer with the given socket options and no TLS.
func NewNetDialer(options SocketOptions) *NetDialer {
	return &NetDialer{Options: options}
}

// NewTLSDialer creates a dialer that negotiates TLS on every connection.
func NewTLSDialer(options SocketOptions, cfg *TLSConfig) (*NetDialer, error) {
	tlsConf, err := NewClientTLSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}
	return &NetDialer{Options: options, TLS: tlsConf}, nil
}

// Dial establishes one connection to the endpoint.
func (d *NetDialer) Dial(ctx context.Context, endpoint Endpoint) (net.Conn, error) {
	// Apply timeout from options if context doesn't have one
	timeout := d.Options.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Dial TCP connection
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	// Apply socket options
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := d.Options.Apply(tcpConn); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if d.TLS == nil {
		return conn, nil
	}

	// TLS handshake
	tlsConn := tls.Client(conn, d.TLS)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}

	// Verify TLS version and ALPN
	if err := VerifyConnection(tlsConn.ConnectionState()); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("connection verification failed: %w", err)
	}

	return tlsConn, nil
}

// Compile-time interface satisfaction checks.
var (
	_ Dialer = (*NetDialer)(nil)
	_ Dialer = DialerFunc(nil)
)
