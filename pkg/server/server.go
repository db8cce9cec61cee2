// Package server runs the Courier TCP listener and the admin HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/proxy"
	"mercator-hq/courier/pkg/telemetry/logging"
)

// ConnHandler serves one client connection. *proxy.Handler implements it.
type ConnHandler interface {
	ServeConn(ctx context.Context, client net.Conn) *proxy.Outcome
}

// Metrics receives connection lifecycle events. *metrics.Collector
// implements it.
type Metrics interface {
	ConnectionAccepted()
	ConnectionClosed()
	ConnectionRejected(reason string)
	RecordOutcome(result string, status int, duration time.Duration, requestBytes int, responseBytes int64)
	RecordStage(stage string, duration time.Duration)
}

// Recorder receives one access log record per connection.
// *recorder.Recorder implements it.
type Recorder interface {
	Record(record *accesslog.Record) bool
}

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// Server accepts client connections and hands each one to a ConnHandler
// in its own goroutine.
type Server struct {
	config        config.ServerConfig
	listenAddress string
	handler       ConnHandler
	metrics       Metrics
	recorder      Recorder
	logger        *slog.Logger

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu        sync.Mutex
	listener  net.Listener
	conns     map[net.Conn]struct{}
	isRunning bool
	closing   bool

	// cancelConns cancels the context shared by all connections.
	cancelConns context.CancelFunc

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// Options wires the optional collaborators of a Server.
type Options struct {
	Metrics  Metrics
	Recorder Recorder
	Logger   *slog.Logger
}

// NewServer creates a server for listenAddress. The handler is shared by
// all connections.
func NewServer(cfg config.ServerConfig, listenAddress string, handler ConnHandler, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:        cfg,
		listenAddress: listenAddress,
		handler:       handler,
		metrics:       opts.Metrics,
		recorder:      opts.Recorder,
		logger:        logger.With("component", "server"),
		conns:         make(map[net.Conn]struct{}),
	}

	if cfg.MaxConnections > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConnections))
	}
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst <= 0 {
			burst = max(1, int(cfg.AcceptRate))
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}

	return s
}

// Listen binds the listening socket. It is called by Serve when needed
// and may be called earlier to learn the bound address.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	lc := listenConfig(s.config.ReuseAddress)
	ln, err := lc.Listen(ctx, "tcp", s.listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddress, err)
	}
	s.listener = ln

	s.logger.Info("proxy listener bound",
		"address", ln.Addr().String(),
		"reuse_address", s.config.ReuseAddress,
		"max_connections", s.config.MaxConnections,
		"accept_rate", s.config.AcceptRate,
	)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout. It returns nil after
// a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	if s.closing {
		s.mu.Unlock()
		return ErrServerClosed
	}
	// Connections outlive ctx so in-flight relays can finish during
	// shutdown; forceClose cancels them when the timeout expires.
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	s.isRunning = true
	s.cancelConns = cancelConns
	ln := s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.closeListener()
	})
	defer stop()

	acceptErr := s.acceptLoop(ctx, connCtx, ln)

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := s.Shutdown(shutdownCtx)
	if acceptErr != nil {
		return acceptErr
	}
	return shutdownErr
}

func (s *Server) acceptLoop(ctx, connCtx context.Context, ln net.Listener) error {
	var tempDelay time.Duration

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		s.logger.Debug("waiting for connection")
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// Back off like net/http on transient accept failures.
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay = min(2*tempDelay, time.Second)
				}
				s.logger.Warn("accept error, retrying", "error", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		if s.sem != nil && !s.sem.TryAcquire(1) {
			s.reject(conn)
			continue
		}

		if !s.trackConn(conn, true) {
			// Shutdown raced the accept.
			conn.Close()
			if s.sem != nil {
				s.sem.Release(1)
			}
			return nil
		}

		s.wg.Add(1)
		go s.serveConn(connCtx, conn)
	}
}

// serveConn runs the handler for one connection and reports its outcome.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	if s.sem != nil {
		defer s.sem.Release(1)
	}
	defer s.trackConn(conn, false)

	id := accesslog.NewID()
	clientAddr := conn.RemoteAddr().String()
	ctx = logging.WithConnID(ctx, id)
	ctx = logging.WithClientAddr(ctx, clientAddr)

	if s.metrics != nil {
		s.metrics.ConnectionAccepted()
	}
	s.logger.DebugContext(ctx, "connected")

	out := s.handler.ServeConn(ctx, conn)
	conn.Close()

	s.finish(ctx, id, clientAddr, out)
}

// reject answers a connection over the limit with 503 and closes it.
func (s *Server) reject(conn net.Conn) {
	start := time.Now()
	clientAddr := conn.RemoteAddr().String()

	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	err := proxy.WriteError(conn, proxy.ErrOverloaded)
	conn.Close()

	if s.metrics != nil {
		s.metrics.ConnectionRejected("max_connections")
	}
	s.logger.Warn("connection rejected, too many connections",
		"client_addr", clientAddr,
		"max_connections", s.config.MaxConnections,
		"write_error", err,
	)

	if s.recorder != nil {
		s.recorder.Record(accesslog.FromOutcome(accesslog.NewID(), clientAddr, &proxy.Outcome{
			Result:   proxy.ResultRejected,
			State:    proxy.StateErrorResponse,
			Err:      proxy.ErrOverloaded,
			Status:   proxy.ErrOverloaded.Status(),
			Started:  start,
			Duration: time.Since(start),
		}))
	}
}

func (s *Server) finish(ctx context.Context, id, clientAddr string, out *proxy.Outcome) {
	if s.metrics != nil {
		s.metrics.ConnectionClosed()
		s.metrics.RecordOutcome(string(out.Result), out.Status, out.Duration, out.RequestBytes, out.ResponseBytes)
		if out.ResolveDuration > 0 {
			s.metrics.RecordStage(string(proxy.StateResolve), out.ResolveDuration)
		}
		if out.ConnectDuration > 0 {
			s.metrics.RecordStage(string(proxy.StateConnect), out.ConnectDuration)
		}
	}

	if s.recorder != nil {
		s.recorder.Record(accesslog.FromOutcome(id, clientAddr, out))
	}

	s.logger.DebugContext(ctx, "connection closed",
		"result", out.Result,
		"state", out.State,
		"status", out.Status,
		"target_host", out.Host,
		"response_bytes", out.ResponseBytes,
		"duration_ms", out.Duration.Milliseconds(),
	)
}

// trackConn adds or removes conn from the active set. Adding fails once
// shutdown has begun.
func (s *Server) trackConn(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.closing {
			return false
		}
		s.conns[conn] = struct{}{}
		return true
	}
	delete(s.conns, conn)
	return true
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
}

// Shutdown stops accepting and waits for in-flight connections until ctx
// expires, then closes whatever is still open. It returns an error naming
// the number of connections that had to be force-closed.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.closeListener()
		s.logger.Info("initiating graceful shutdown", "active_connections", s.ActiveConnections())

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			n := s.forceClose()
			s.logger.Warn("shutdown timeout, closing remaining connections", "count", n)
			<-done
			shutdownErr = fmt.Errorf("forced close of %d connections: %w", n, ctx.Err())
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

func (s *Server) forceClose() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelConns != nil {
		s.cancelConns()
	}
	for conn := range s.conns {
		conn.Close()
	}
	return len(s.conns)
}

// ListenerCheck reports whether the proxy listener is accepting. It is
// registered as the "listener" readiness check.
func (s *Server) ListenerCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return errors.New("listener not bound")
	}
	if s.closing {
		return errors.New("listener closed")
	}
	return nil
}
