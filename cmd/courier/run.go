package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/accesslog/recorder"
	"mercator-hq/courier/pkg/accesslog/retention"
	"mercator-hq/courier/pkg/accesslog/storage"
	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/dns"
	"mercator-hq/courier/pkg/proxy"
	"mercator-hq/courier/pkg/server"
	"mercator-hq/courier/pkg/telemetry/health"
	"mercator-hq/courier/pkg/telemetry/logging"
	"mercator-hq/courier/pkg/telemetry/metrics"
	"mercator-hq/courier/pkg/telemetry/tracing"
)

// dnsCacheInterval is how often the resolver cache size gauge is refreshed.
const dnsCacheInterval = 15 * time.Second

var runFlags struct {
	listenAddress string
	adminAddress  string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run [port]",
	Short: "Start the Courier proxy server",
	Long: `Start the Courier proxy server with the specified configuration.

The proxy listens on the configured address and serves each client
connection concurrently. Metrics, health probes and recent access log
records are served on the separate admin address.

An optional port argument replaces the port of the listen address.

Examples:
  # Start with defaults (127.0.0.1:8080)
  courier run

  # Listen on port 3128
  courier run 3128

  # Start with custom config
  courier run --config /etc/courier/config.yaml

  # Override listen address
  courier run --listen 0.0.0.0:8080

  # Validate config without starting server
  courier run --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override proxy listen address")
	runCmd.Flags().StringVar(&runFlags.adminAddress, "admin", "", "override admin listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(args)
	if err != nil {
		return err
	}
	config.SetConfig(cfg)

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.WrapConfigError(configLabel(), err)
	}
	slog.SetDefault(logger.Slog())

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	printBanner(out, cfg)

	ctx, cancel := cli.SetupSignalHandler(commandContext(cmd))
	defer cancel()

	return serve(ctx, cfg, logger, runOverrides(args))
}

// loadRunConfig loads the configuration and applies the command line
// overrides. The result is validated again after the overrides.
func loadRunConfig(args []string) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.WrapConfigError(configLabel(), err)
	}

	if err := runOverrides(args)(cfg); err != nil {
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		return nil, cli.WrapConfigError(configLabel(), err)
	}
	return cfg, nil
}

// runOverrides captures --listen, the optional port argument, --admin and
// --log-level. The config watcher applies the same override to every
// reloaded file.
func runOverrides(args []string) config.Override {
	listen, admin, level := runFlags.listenAddress, runFlags.adminAddress, runFlags.logLevel
	var port string
	if len(args) == 1 {
		port = args[0]
	}

	return func(cfg *config.Config) error {
		if listen != "" {
			cfg.Proxy.ListenAddress = listen
		}
		if port != "" {
			addr, err := withPort(cfg.Proxy.ListenAddress, port)
			if err != nil {
				return cli.NewConfigError("port", err.Error())
			}
			cfg.Proxy.ListenAddress = addr
		}
		if admin != "" {
			cfg.Admin.ListenAddress = admin
		}
		if level != "" {
			cfg.Telemetry.Logging.Level = level
		}
		return nil
	}
}

// withPort replaces the port of addr.
func withPort(addr, port string) (string, error) {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("invalid port %q (must be 1-65535)", port)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return net.JoinHostPort(host, strconv.Itoa(n)), nil
}

// serve wires the proxy, access log, telemetry and admin server, and blocks
// until ctx is cancelled or a component fails. overrides, if not nil, is
// reapplied to the configuration on every reload.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger, overrides config.Override) error {
	log := logger.Slog()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, registry)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.OTLP.Timeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	resolver, dnsResolver := newResolver(cfg.Resolver, collector)
	handler := proxy.NewHandler(proxy.Options{
		Resolver:             resolver,
		Connector:            proxy.NewConnector(cfg.Upstream.ConnectTimeout),
		MaxRequestBytes:      cfg.Proxy.MaxRequestBytes,
		ClientIdleTimeout:    cfg.Proxy.ClientIdleTimeout,
		UpstreamReadTimeout:  cfg.Upstream.ReadTimeout,
		UpstreamWriteTimeout: cfg.Upstream.WriteTimeout,
		RelayBufferBytes:     cfg.Proxy.RelayBufferBytes,
		Logger:               log,
		Tracer:               tracer.Tracer(),
	})

	opts := server.Options{Metrics: collector, Logger: log}

	var store accesslog.Storage
	if cfg.AccessLog.Enabled {
		store, err = storage.New(cfg.AccessLog, log)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer store.Close()

		// Closed before the store so queued records are flushed.
		rec := recorder.NewRecorder(store, recorder.FromConfig(cfg.AccessLog.Recorder), collector, log)
		defer rec.Close()
		opts.Recorder = rec

		pruner := retention.NewPruner(store, retention.FromConfig(cfg.AccessLog.Retention), collector, log)
		if err := pruner.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer pruner.Stop()
	}

	srv := server.NewServer(cfg.Server, cfg.Proxy.ListenAddress, handler, opts)
	if err := srv.Listen(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("listener", srv.ListenerCheck)
	if store != nil {
		checker.RegisterCheck("accesslog", health.PingCheck(store))
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Admin.Enabled {
		deps := server.AdminDeps{
			Build:     server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
			AccessLog: store,
			Tracer:    tracer,
			Logger:    log,
		}
		if cfg.Telemetry.Metrics.Enabled {
			deps.Metrics = collector.Handler()
			deps.MetricsPath = cfg.Telemetry.Metrics.Path
		}
		if cfg.Telemetry.Health.Enabled {
			deps.Health = checker
			deps.HealthConfig = cfg.Telemetry.Health
		}

		admin := server.NewAdminServer(cfg.Admin, server.NewAdminHandler(deps), log)
		if err := admin.Listen(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		g.Go(func() error {
			return admin.Serve(gctx, cfg.Server.ShutdownTimeout)
		})
	}

	if cfg.Watch && cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, log)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		watcher.SetOverrides(overrides)
		g.Go(func() error {
			return watcher.Watch(gctx, func(next *config.Config) {
				applyReload(logger, next)
			})
		})
	}

	if dnsResolver != nil {
		g.Go(func() error {
			reportCacheSize(gctx, dnsResolver, collector)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		checker.SetDraining(true)
		return nil
	})

	g.Go(func() error {
		return srv.Serve(gctx)
	})

	log.Info("courier started",
		"version", Version,
		"listen_address", srv.Addr().String(),
		"admin_enabled", cfg.Admin.Enabled,
		"resolver", cfg.Resolver.Mode,
		"access_log", cfg.AccessLog.Enabled,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, server.ErrServerClosed) {
		return cli.NewCommandError("run", err)
	}

	log.Info("courier stopped")
	return nil
}

// newResolver returns the resolver selected by cfg. The second result is
// the external resolver, or nil in system mode.
func newResolver(cfg config.ResolverConfig, observer dns.Recorder) (proxy.Resolver, *dns.Resolver) {
	if cfg.Mode != config.ResolverModeExternal {
		return &proxy.SystemResolver{}, nil
	}

	r := dns.New(dns.Config{
		Servers:    cfg.Servers,
		Timeout:    cfg.Timeout,
		CacheTTL:   cfg.CacheTTL,
		CacheSize:  cfg.CacheSize,
		PreferIPv4: cfg.PreferIPv4,
		Recorder:   observer,
	})
	return r, r
}

// applyReload applies the settings that can change at runtime. Only the log
// level is live; everything else is logged as needing a restart.
func applyReload(logger *logging.Logger, next *config.Config) {
	level := next.Telemetry.Logging.Level
	if err := logger.SetLevel(level); err != nil {
		logger.Warn("ignoring reloaded log level", "level", level, "error", err)
		return
	}
	logger.Info("log level applied", "level", level)
}

func reportCacheSize(ctx context.Context, r *dns.Resolver, collector *metrics.Collector) {
	ticker := time.NewTicker(dnsCacheInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collector.UpdateDNSCacheSize(r.CacheLen())
		}
	}
}

func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Mercator Courier v%s\n", Version)
	fmt.Fprintf(w, "Loading configuration from: %s\n", configLabel())
	fmt.Fprintln(w, "✓ Configuration loaded")

	slog.Debug("proxy configured",
		"listen_address", cfg.Proxy.ListenAddress,
		"max_connections", cfg.Server.MaxConnections,
	)
	if cfg.AccessLog.Enabled {
		slog.Debug("access log enabled", "backend", cfg.AccessLog.Backend)
	}
}
