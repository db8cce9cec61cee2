package proxy

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"

	"mercator-hq/courier/pkg/telemetry/logging"
	"mercator-hq/courier/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// State is a step of the per-connection state machine.
type State string

const (
	StateAwaitRequest  State = "await_request"
	StateParse         State = "parse"
	StateResolve       State = "resolve"
	StateConnect       State = "connect"
	StateSendRequest   State = "send_request"
	StateRelayResponse State = "relay_response"
	StateErrorResponse State = "error_response"
	StateClosed        State = "closed"
)

// Result summarizes how a connection ended.
type Result string

const (
	// ResultForwarded means the request was sent and the relay ran to completion.
	ResultForwarded Result = "forwarded"

	// ResultRejected means an error response was written to the client.
	ResultRejected Result = "rejected"

	// ResultAborted means the connection closed without a response, or the
	// send or relay phase was cut short.
	ResultAborted Result = "aborted"
)

// Options configures a Handler. Zero values take the package defaults.
type Options struct {
	// Resolver defaults to a SystemResolver.
	Resolver Resolver

	// Connector defaults to NewConnector(DefaultConnectTimeout).
	Connector *Connector

	// MaxRequestBytes is the inbound buffer capacity.
	MaxRequestBytes int

	// ClientIdleTimeout bounds each client read while awaiting the request.
	ClientIdleTimeout time.Duration

	// UpstreamReadTimeout bounds each upstream read during the relay.
	// Zero disables it.
	UpstreamReadTimeout time.Duration

	// UpstreamWriteTimeout bounds sending the request upstream. Zero disables it.
	UpstreamWriteTimeout time.Duration

	// RelayBufferBytes is the relay chunk size.
	RelayBufferBytes int

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Outcome describes one handled connection.
type Outcome struct {
	Result Result

	// State is the last state entered before the connection closed.
	State State

	// Err is the failure, if any. For rejected connections it is the
	// *ProxyError that was reported.
	Err error

	// Status is the error status written to the client, 0 if none.
	Status int

	Method  string
	Target  string
	Version string
	Host    string
	Port    int
	Path    string

	// Upstream is the endpoint that accepted the connection.
	Upstream string

	// TraceID identifies the connection span, empty when not sampled.
	TraceID string

	// ForwardedHeaders counts header lines kept by the filter.
	ForwardedHeaders int
	DroppedHeaders   int

	RequestBytes  int
	ResponseBytes int64

	Started         time.Time
	Duration        time.Duration
	ResolveDuration time.Duration
	ConnectDuration time.Duration
}

// Handler runs the proxy state machine for one client connection at a time.
// It holds no per-connection state, so a single Handler may serve many
// connections concurrently.
type Handler struct {
	opts Options
}

// NewHandler creates a Handler, filling in defaults.
func NewHandler(opts Options) *Handler {
	if opts.Resolver == nil {
		opts.Resolver = &SystemResolver{}
	}
	if opts.Connector == nil {
		opts.Connector = NewConnector(DefaultConnectTimeout)
	}
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if opts.ClientIdleTimeout <= 0 {
		opts.ClientIdleTimeout = DefaultClientIdleTimeout
	}
	if opts.RelayBufferBytes <= 0 {
		opts.RelayBufferBytes = DefaultRelayBufferBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("courier/proxy")
	}
	return &Handler{opts: opts}
}

// ServeConn handles one request on client and closes it before returning.
func (h *Handler) ServeConn(ctx context.Context, client net.Conn) *Outcome {
	out := &Outcome{Started: time.Now(), State: StateAwaitRequest}
	defer client.Close()

	ctx, span := h.opts.Tracer.Start(ctx, "proxy.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String(tracing.AttrClientAddress, remoteAddr(client))),
	)
	if sc := span.SpanContext(); sc.IsValid() {
		out.TraceID = sc.TraceID().String()
		ctx = logging.WithTraceID(ctx, out.TraceID)
	}
	defer func() {
		out.Duration = time.Since(out.Started)
		tracing.SetOutcomeAttributes(span, string(out.Result), string(out.State),
			out.Status, out.RequestBytes, out.ResponseBytes)
		switch {
		case out.Result == ResultForwarded:
			tracing.SetStatus(span, nil)
		case out.Err != nil:
			kind := "io"
			if pe, ok := AsProxyError(out.Err); ok {
				kind = string(pe.Kind)
			}
			tracing.SetErrorAttributes(span, out.Err, kind)
			tracing.SetStatus(span, out.Err)
		}
		span.End()
	}()

	log := h.opts.Logger

	buf := make([]byte, h.opts.MaxRequestBytes)
	data, err := ReadRequest(client, buf, h.opts.ClientIdleTimeout)
	if err != nil {
		h.fail(client, out, span, err)
		return out
	}
	out.RequestBytes = len(data)

	h.enter(out, span, StateParse)
	req, err := ParseRequest(data)
	if err != nil {
		h.fail(client, out, span, err)
		return out
	}
	out.Method, out.Target, out.Version = req.Method, req.Target, req.Version
	tracing.SetRequestAttributes(span, req.Method, req.Target)

	h.enter(out, span, StateResolve)
	resolveStart := time.Now()
	target, err := ResolveTarget(ctx, h.opts.Resolver, req.Target)
	out.ResolveDuration = time.Since(resolveStart)
	if target != nil {
		out.Host, out.Port, out.Path = target.Host, target.Port, target.Path
	} else if t, perr := ParseTarget(req.Target); perr == nil {
		out.Host, out.Port, out.Path = t.Host, t.Port, t.Path
	}
	if out.Host != "" {
		ctx = logging.WithTargetHost(ctx, out.Host)
	}
	if err != nil {
		h.fail(client, out, span, err)
		return out
	}
	tracing.SetTargetAttributes(span, target.Host, target.Port)

	headers := FilterHeaders(req.HeaderLines)
	out.ForwardedHeaders = len(headers)
	out.DroppedHeaders = len(req.HeaderLines) - len(headers)
	outbound := BuildRequest(target.Path, headers)

	h.enter(out, span, StateConnect)
	connectStart := time.Now()
	upstream, err := h.opts.Connector.Connect(ctx, target.Addrs)
	out.ConnectDuration = time.Since(connectStart)
	if err != nil {
		h.fail(client, out, span, err)
		return out
	}
	defer upstream.Close()
	// Cancelling ctx aborts a relay blocked on the origin.
	stop := context.AfterFunc(ctx, func() { upstream.Close() })
	defer stop()
	out.Upstream = remoteAddr(upstream)
	tracing.SetUpstreamAttributes(span, out.Upstream, out.ForwardedHeaders, out.DroppedHeaders)

	log.DebugContext(ctx, "connected upstream",
		"port", target.Port,
		"upstream", out.Upstream,
		"forwarded_headers", out.ForwardedHeaders,
		"dropped_headers", out.DroppedHeaders,
	)

	h.enter(out, span, StateSendRequest)
	if h.opts.UpstreamWriteTimeout > 0 {
		_ = upstream.SetWriteDeadline(time.Now().Add(h.opts.UpstreamWriteTimeout))
	}
	if _, err := io.WriteString(upstream, outbound); err != nil {
		out.Result, out.Err = ResultAborted, err
		return out
	}
	if h.opts.UpstreamWriteTimeout > 0 {
		_ = upstream.SetWriteDeadline(time.Time{})
	}

	h.enter(out, span, StateRelayResponse)
	var src io.Reader = upstream
	if h.opts.UpstreamReadTimeout > 0 {
		src = &idleReader{conn: upstream, timeout: h.opts.UpstreamReadTimeout}
	}
	// The client read deadline from ReadRequest must not cut the relay short.
	_ = client.SetReadDeadline(time.Time{})
	n, err := Relay(client, src, make([]byte, h.opts.RelayBufferBytes))
	out.ResponseBytes = n
	if err == ErrClientGone {
		out.Result, out.Err = ResultAborted, err
		return out
	}
	if err != nil {
		// Origin read errors end the relay like EOF does.
		log.DebugContext(ctx, "upstream read ended relay", "error", err, "bytes", n)
	}
	out.Result = ResultForwarded
	return out
}

func (h *Handler) enter(out *Outcome, span trace.Span, s State) {
	out.State = s
	span.AddEvent(string(s))
}

// fail records err on out and, unless the error is silent, writes the error
// response to the client.
func (h *Handler) fail(client net.Conn, out *Outcome, span trace.Span, err error) {
	out.Err = err
	pe, ok := AsProxyError(err)
	if !ok || pe.Silent() {
		out.Result = ResultAborted
		return
	}

	h.enter(out, span, StateErrorResponse)
	out.Result = ResultRejected
	out.Status = pe.Status()
	if werr := WriteError(client, pe); werr != nil {
		h.opts.Logger.Debug("failed to write error response", "error", werr, "status", out.Status)
	}
}

func remoteAddr(c net.Conn) string {
	if a := c.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
