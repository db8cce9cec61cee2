package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultConnectTimeout bounds each connect attempt.
const DefaultConnectTimeout = 10 * time.Second

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Connector opens the upstream connection for a resolved target.
type Connector struct {
	// Dialer defaults to a *net.Dialer.
	Dialer Dialer

	// Timeout bounds each attempt. Zero means no per-attempt bound.
	Timeout time.Duration
}

// NewConnector creates a Connector with a TCP dialer.
func NewConnector(timeout time.Duration) *Connector {
	return &Connector{
		Dialer:  &net.Dialer{},
		Timeout: timeout,
	}
}

var errNoAddresses = errors.New("no addresses to connect to")

// Connect tries addrs in order and returns the first connection that
// succeeds. If every attempt fails the result is a KindUpstreamUnavailable
// error wrapping all attempt errors.
func (c *Connector) Connect(ctx context.Context, addrs []string) (net.Conn, error) {
	if len(addrs) == 0 {
		return nil, NewUpstreamError(MsgConnectFailed, errNoAddresses)
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	var errs []error
	for _, addr := range addrs {
		conn, err := c.dial(ctx, dialer, addr)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, NewUpstreamError(MsgConnectFailed, errors.Join(errs...))
}

func (c *Connector) dial(ctx context.Context, dialer Dialer, addr string) (net.Conn, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return dialer.DialContext(ctx, "tcp", addr)
}
