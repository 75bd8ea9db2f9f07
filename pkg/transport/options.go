package transport

import (
	"fmt"
	"net"
	"time"
)

// DefaultConnectTimeout is applied when SocketOptions.ConnectTimeout is zero.
const DefaultConnectTimeout = 30 * time.Second

// SocketOptions configure the TCP socket for every connection attempt.
// The zero value is usable; DefaultSocketOptions fills in common settings.
// Options are fixed for the client's lifetime and applied identically to
// each attempt, including reconnects.
type SocketOptions struct {
	// ReceiveBuffer sets SO_RCVBUF in bytes. Zero leaves the OS default.
	ReceiveBuffer int `yaml:"receive_buffer"`

	// SendBuffer sets SO_SNDBUF in bytes. Zero leaves the OS default.
	SendBuffer int `yaml:"send_buffer"`

	// KeepAlive enables TCP keep-alive probes.
	KeepAlive bool `yaml:"keep_alive"`

	// KeepAlivePeriod sets the probe interval when KeepAlive is on.
	// Zero leaves the OS default.
	KeepAlivePeriod time.Duration `yaml:"keep_alive_period"`

	// Linger sets SO_LINGER in seconds. Negative leaves the OS default.
	Linger int `yaml:"linger"`

	// NoDelay disables Nagle's algorithm (TCP_NODELAY).
	NoDelay bool `yaml:"no_delay"`

	// ConnectTimeout bounds each dial, including the TLS handshake.
	// Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultSocketOptions returns socket options suitable for most clients:
// TCP_NODELAY on, OS defaults for buffers and linger.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		NoDelay:        true,
		Linger:         -1,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Apply configures a freshly dialed TCP connection with these options.
func (o SocketOptions) Apply(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(o.NoDelay); err != nil {
		return fmt.Errorf("set TCP_NODELAY: %w", err)
	}
	if o.ReceiveBuffer > 0 {
		if err := conn.SetReadBuffer(o.ReceiveBuffer); err != nil {
			return fmt.Errorf("set SO_RCVBUF: %w", err)
		}
	}
	if o.SendBuffer > 0 {
		if err := conn.SetWriteBuffer(o.SendBuffer); err != nil {
			return fmt.Errorf("set SO_SNDBUF: %w", err)
		}
	}
	if err := conn.SetKeepAlive(o.KeepAlive); err != nil {
		return fmt.Errorf("set SO_KEEPALIVE: %w", err)
	}
	if o.KeepAlive && o.KeepAlivePeriod > 0 {
		if err := conn.SetKeepAlivePeriod(o.KeepAlivePeriod); err != nil {
			return fmt.Errorf("set keep-alive period: %w", err)
		}
	}
	if o.Linger >= 0 {
		if err := conn.SetLinger(o.Linger); err != nil {
			return fmt.Errorf("set SO_LINGER: %w", err)
		}
	}
	return nil
}
