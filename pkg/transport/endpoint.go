package transport

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint is the (host, port) target for a connection attempt.
// Endpoints are immutable values; the session manager replaces the
// current endpoint when a reconnect policy returns a new one.
type Endpoint struct {
	Host string
	Port uint16
}

// NewEndpoint creates an endpoint from a host and port.
func NewEndpoint(host string, port uint16) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// ParseEndpoint parses a "host:port" string into an Endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid port in endpoint %q: %w", s, err)
	}
	return Endpoint{Host: host, Port: uint16(port)}, nil
}

// String returns the endpoint in "host:port" form, suitable for dialing.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// IsZero reports whether the endpoint is unset.
func (e Endpoint) IsZero() bool {
	return e.Host == "" && e.Port == 0
}
