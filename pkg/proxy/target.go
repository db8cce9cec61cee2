package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// DefaultPort is used when the target URL has no port or an empty one.
const DefaultPort = 80

// Target is an absolute-form request target split into its parts, plus the
// endpoints it resolved to.
type Target struct {
	Host string
	Port int

	// Path starts with '/' and keeps any query suffix untouched.
	Path string

	// Addrs are "host:port" endpoints in resolver order.
	Addrs []string
}

// Authority returns host:port.
func (t *Target) Authority() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

var (
	errNoScheme       = errors.New("target has no scheme separator")
	errEmptyAuthority = errors.New("target has an empty authority")
	errNoPath         = errors.New("target has no path")
	errEmptyHost      = errors.New("target has an empty host")
)

// ParseTarget splits scheme://host[:port]/path.
//
// The scheme label ends at the first '/', which must be followed by another
// '/'. The authority runs up to the next '/', and everything from that '/'
// on is the path. The authority is split on its first ':'.
func ParseTarget(target string) (*Target, error) {
	slash := strings.IndexByte(target, '/')
	if slash < 0 || slash+1 >= len(target) || target[slash+1] != '/' {
		return nil, NewMalformedError(errNoScheme)
	}

	rest := target[slash+2:]
	pathStart := strings.IndexByte(rest, '/')
	if pathStart < 0 {
		return nil, NewMalformedError(errNoPath)
	}
	authority := rest[:pathStart]
	if authority == "" {
		return nil, NewMalformedError(errEmptyAuthority)
	}

	host, portStr, _ := strings.Cut(authority, ":")
	if host == "" {
		return nil, NewMalformedError(errEmptyHost)
	}

	port := DefaultPort
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p < 1 || p > 65535 {
			return nil, NewMalformedError(fmt.Errorf("invalid port %q", portStr))
		}
		port = p
	}

	return &Target{
		Host: host,
		Port: port,
		Path: rest[pathStart:],
	}, nil
}

// Resolver maps a host and port to connectable endpoints.
type Resolver interface {
	Resolve(ctx context.Context, host string, port int) ([]string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, host string, port int) ([]string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, host string, port int) ([]string, error) {
	return f(ctx, host, port)
}

// SystemResolver resolves through the operating system resolver.
type SystemResolver struct {
	// Resolver defaults to net.DefaultResolver.
	Resolver *net.Resolver
}

// Resolve looks up host and returns one endpoint per address. IP literals
// are returned as-is without a lookup.
func (r *SystemResolver) Resolve(ctx context.Context, host string, port int) ([]string, error) {
	p := strconv.Itoa(port)
	if addr, err := netip.ParseAddr(host); err == nil {
		return []string{net.JoinHostPort(addr.String(), p)}, nil
	}

	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	ips, err := res.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.JoinHostPort(ip.String(), p))
	}
	return addrs, nil
}

// ResolveTarget parses target and resolves its host. Syntax errors are
// KindMalformedRequest; lookup failures are KindUpstreamUnavailable.
func ResolveTarget(ctx context.Context, r Resolver, target string) (*Target, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	addrs, err := r.Resolve(ctx, t.Host, t.Port)
	if err != nil {
		return nil, NewUpstreamError(MsgResolveFailed, err)
	}
	if len(addrs) == 0 {
		return nil, NewUpstreamError(MsgResolveFailed, fmt.Errorf("no addresses for %s", t.Host))
	}
	t.Addrs = addrs
	return t, nil
}
