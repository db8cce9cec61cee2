// Package dns resolves proxy targets by querying configured DNS servers
// directly instead of going through the operating system resolver.
//
// Queries for A and AAAA records are sent over UDP to each server in turn
// until one answers. Successful answers are cached in a size-bounded LRU
// with a fixed TTL. The Resolver satisfies proxy.Resolver.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/miekg/dns"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultCacheTTL  = 60 * time.Second
	DefaultCacheSize = 1024
)

// DefaultServers are queried when no servers are configured.
var DefaultServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// Lookup results reported to a Recorder.
const (
	ResultCacheHit = "cache_hit"
	ResultResolved = "resolved"
	ResultFailed   = "failed"
)

// Recorder observes lookups. The metrics collector implements it.
type Recorder interface {
	RecordDNSLookup(result string, duration time.Duration)
}

// Config configures a Resolver.
type Config struct {
	// Servers are "host:port" DNS server addresses, tried in order.
	Servers []string

	// Timeout bounds each query.
	Timeout time.Duration

	// CacheTTL is how long an answer is reused. Zero disables caching.
	CacheTTL time.Duration

	// CacheSize bounds the number of cached hosts.
	CacheSize int

	// PreferIPv4 orders A records before AAAA records.
	PreferIPv4 bool

	// Net is the query transport, "udp" or "tcp". Default: "udp".
	Net string

	Recorder Recorder
}

// Resolver queries DNS servers with failover and caches the answers.
type Resolver struct {
	servers    []string
	preferIPv4 bool
	client     *dns.Client
	cache      *expirable.LRU[string, []netip.Addr]
	recorder   Recorder
}

// ErrNoRecords is returned when no server has an address for the host.
var ErrNoRecords = errors.New("no address records")

// New creates a Resolver from cfg, filling in defaults.
func New(cfg Config) *Resolver {
	if len(cfg.Servers) == 0 {
		cfg.Servers = DefaultServers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Net == "" {
		cfg.Net = "udp"
	}

	r := &Resolver{
		servers:    cfg.Servers,
		preferIPv4: cfg.PreferIPv4,
		client:     &dns.Client{Net: cfg.Net, Timeout: cfg.Timeout},
		recorder:   cfg.Recorder,
	}
	if cfg.CacheTTL > 0 {
		r.cache = expirable.NewLRU[string, []netip.Addr](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return r
}

// Resolve returns "ip:port" endpoints for host. IP literals are returned
// without a query.
func (r *Resolver) Resolve(ctx context.Context, host string, port int) ([]string, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return endpoints([]netip.Addr{addr}, port), nil
	}

	start := time.Now()
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		r.record(ResultFailed, start)
		return nil, err
	}
	return endpoints(addrs, port), nil
}

// LookupHost returns the addresses of host, from the cache when possible.
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	start := time.Now()
	if r.cache != nil {
		if addrs, ok := r.cache.Get(host); ok {
			r.record(ResultCacheHit, start)
			return addrs, nil
		}
	}

	addrs, err := r.query(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if r.cache != nil {
		r.cache.Add(host, addrs)
	}
	r.record(ResultResolved, start)
	return addrs, nil
}

// Flush empties the cache.
func (r *Resolver) Flush() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// CacheLen returns the number of cached hosts.
func (r *Resolver) CacheLen() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

// query tries every server until one returns at least one address.
func (r *Resolver) query(ctx context.Context, host string) ([]netip.Addr, error) {
	first, second := dns.TypeAAAA, dns.TypeA
	if r.preferIPv4 {
		first, second = dns.TypeA, dns.TypeAAAA
	}

	var errs []error
	for _, server := range r.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var addrs []netip.Addr
		var serverErr error
		for _, qtype := range []uint16{first, second} {
			got, err := r.exchange(ctx, server, host, qtype)
			if err != nil {
				serverErr = err
				continue
			}
			addrs = append(addrs, got...)
		}
		if len(addrs) > 0 {
			return addrs, nil
		}
		if serverErr == nil {
			serverErr = ErrNoRecords
		}
		errs = append(errs, fmt.Errorf("%s: %w", server, serverErr))
	}
	return nil, errors.Join(errs...)
}

func (r *Resolver) exchange(ctx context.Context, server, host string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		var ip net.IP
		switch rec := rr.(type) {
		case *dns.A:
			ip = rec.A
		case *dns.AAAA:
			ip = rec.AAAA
		default:
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	return addrs, nil
}

func (r *Resolver) record(result string, start time.Time) {
	if r.recorder != nil {
		r.recorder.RecordDNSLookup(result, time.Since(start))
	}
}

func endpoints(addrs []netip.Addr, port int) []string {
	p := strconv.Itoa(port)
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, net.JoinHostPort(a.String(), p))
	}
	return out
}
