// Package resolve discovers connection endpoints via mDNS.
//
// An MDNSResolver browses a DNS-SD service type and turns the first
// matching announcement into a transport.Endpoint. It implements
// reconnect.Resolver, so a reconnecting session can re-discover a peer
// whose address changed while it was away.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/wcfb/reactor/pkg/reconnect"
	"github.com/wcfb/reactor/pkg/transport"
)

// Default DNS-SD parameters.
const (
	// ServiceType is the DNS-SD service type announced by peers.
	ServiceType = "_reactor._tcp"

	// Domain is the DNS-SD domain.
	Domain = "local."
)

// ErrNotFound indicates no matching service was announced before the
// context expired.
var ErrNotFound = errors.New("resolve: service not found")

// Service is a discovered peer announcement.
type Service struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string
}

// Endpoint returns the endpoint to dial for this announcement. It
// prefers a concrete address over the advertised hostname.
func (s *Service) Endpoint() transport.Endpoint {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return transport.NewEndpoint(host, s.Port)
}

// browseFunc matches zeroconf.Browse and is swapped out in tests.
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry, removed chan<- *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

// Config configures an MDNSResolver.
type Config struct {
	// Service is the DNS-SD service type. Default: ServiceType.
	Service string

	// Domain is the DNS-SD domain. Default: Domain.
	Domain string

	// Instance restricts resolution to a specific instance name.
	// Empty matches any announcement of the service type.
	Instance string

	// Interface selects a network interface by name. Empty means all
	// interfaces.
	Interface string
}

// MDNSResolver resolves endpoints by browsing mDNS announcements.
type MDNSResolver struct {
	config Config
	browse browseFunc

	mu   sync.Mutex
	last *Service
}

// NewMDNSResolver creates a resolver for the given configuration.
func NewMDNSResolver(config Config) *MDNSResolver {
	if config.Service == "" {
		config.Service = ServiceType
	}
	if config.Domain == "" {
		config.Domain = Domain
	}
	return &MDNSResolver{
		config: config,
		browse: zeroconf.Browse,
	}
}

// Resolve browses for the configured service and returns the endpoint
// of the first matching announcement. The last argument is unused; the
// resolver matches on instance name, not address. It blocks until a
// match arrives or the context expires.
func (r *MDNSResolver) Resolve(ctx context.Context, _ transport.Endpoint) (transport.Endpoint, error) {
	svc, err := r.lookup(ctx)
	if err != nil {
		return transport.Endpoint{}, err
	}

	r.mu.Lock()
	r.last = svc
	r.mu.Unlock()

	return svc.Endpoint(), nil
}

// LastService returns the most recent announcement Resolve matched, or
// nil if Resolve has not succeeded yet.
func (r *MDNSResolver) LastService() *Service {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *MDNSResolver) lookup(ctx context.Context) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	browseErr := make(chan error, 1)
	go func() {
		browseErr <- r.browse(ctx, r.config.Service, r.config.Domain, entries, removed, r.browserOptions()...)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			svc := entryToService(entry)
			if r.config.Instance != "" && svc.Instance != r.config.Instance {
				continue
			}
			return svc, nil

		case <-removed:
			// Departures are irrelevant to a one-shot lookup.

		case err := <-browseErr:
			if err != nil {
				return nil, fmt.Errorf("mdns browse: %w", err)
			}
			return nil, ErrNotFound

		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNotFound, ctx.Err())
		}
	}
}

func (r *MDNSResolver) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if r.config.Interface != "" {
		if iface, err := net.InterfaceByName(r.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// Ensure MDNSResolver satisfies the policy-facing interface.
var _ reconnect.Resolver = (*MDNSResolver)(nil)

func entryToService(entry *zeroconf.ServiceEntry) *Service {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &Service{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Port:      uint16(entry.Port),
		Addresses: addrs,
	}
}
