package mcping

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// DefaultPort is the port Java edition servers listen on.
const DefaultPort = 25565

// Address is the target of a query.
type Address struct {
	Host string
	Port uint16
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// ParseAddress parses "host", "host:port", "[v6]" or "[v6]:port".
// A missing port defaults to DefaultPort.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// no port given
		host = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		if strings.Contains(host, ":") {
			if _, perr := netip.ParseAddr(host); perr != nil {
				return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
			}
		}
		return Address{Host: host, Port: DefaultPort}, nil
	}

	if host == "" {
		return Address{}, fmt.Errorf("invalid address %q: empty host", s)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return Address{}, fmt.Errorf("invalid port %q", portStr)
	}

	return Address{Host: host, Port: uint16(port)}, nil
}

// Resolver maps a host and port to the socket endpoints to try, in order.
type Resolver interface {
	Resolve(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error)
}

// Dialer opens the transport. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// PassThrough accepts IP literals only and performs no lookups.
type PassThrough struct{}

// Resolve implements Resolver.
func (PassThrough) Resolve(_ context.Context, host string, port uint16) ([]netip.AddrPort, error) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an IP address, use a lookup resolver for host names", ErrResolutionFailed, host)
	}

	return []netip.AddrPort{netip.AddrPortFrom(addr.Unmap(), port)}, nil
}

// Lookup resolves host names through DNS.
type Lookup struct {
	// Resolver is used for lookups; net.DefaultResolver when nil.
	Resolver *net.Resolver

	// SRV enables the _minecraft._tcp SRV lookup before A/AAAA records.
	SRV bool
}

// Resolve implements Resolver. IP literals are returned without a lookup.
// When SRV is set and a record exists, its targets and ports come first.
func (l Lookup) Resolve(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.AddrPort{netip.AddrPortFrom(addr.Unmap(), port)}, nil
	}

	r := l.Resolver
	if r == nil {
		r = net.DefaultResolver
	}

	var out []netip.AddrPort

	if l.SRV {
		if _, records, err := r.LookupSRV(ctx, "minecraft", "tcp", host); err == nil {
			for _, rec := range records {
				addrs, err := r.LookupNetIP(ctx, "ip", strings.TrimSuffix(rec.Target, "."))
				if err != nil {
					continue
				}
				for _, a := range addrs {
					out = append(out, netip.AddrPortFrom(a.Unmap(), rec.Port))
				}
			}
		}
	}

	addrs, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}
	for _, a := range addrs {
		out = append(out, netip.AddrPortFrom(a.Unmap(), port))
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no addresses for %q", ErrResolutionFailed, host)
	}

	return out, nil
}
