package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/accesslog/retention"
	"mercator-hq/courier/pkg/accesslog/storage"
	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/telemetry/logging"
)

// adminRequestTimeout bounds a query against a running proxy.
const adminRequestTimeout = 10 * time.Second

var errMemoryPrune = errors.New("the memory backend lives inside the running proxy and is bounded by memory_capacity; prune applies to the sqlite backend")

var accesslogFlags struct {
	host   string
	status int
	result string
	since  time.Duration
	limit  int
	offset int
	format string
	output string
	admin  string
}

var pruneFlags struct {
	days       int
	maxRecords int64
}

var accesslogCmd = &cobra.Command{
	Use:   "accesslog",
	Short: "Query and prune the access log",
	Long: `Query and prune the per-connection access log.

Every client connection produces one record with the request target, the
upstream endpoint, the result (forwarded, rejected or aborted), the error
status sent to the client and the relayed byte counts.

Subcommands:
  query   - List records with filters
  prune   - Apply the retention policy once`,
}

var accesslogQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query access log records",
	Long: `Query access log records with filters, newest first.

With the sqlite backend the database is read directly. With the memory
backend the records only exist inside the running proxy, so they are
fetched from its admin endpoint (admin.listen_address, or --admin).

Examples:
  # Last 100 records
  courier accesslog query

  # Rejected connections in the last hour
  courier accesslog query --since 1h --result rejected

  # 503 replies for one host, as CSV
  courier accesslog query --host example.com --status 503 --format csv

  # Export to JSON
  courier accesslog query --format json --output accesslog.json`,
	Args: cobra.NoArgs,
	RunE: queryAccessLog,
}

var accesslogPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy once",
	Long: `Delete records older than the retention period and, when max_records
is set, the oldest records over the limit.

Examples:
  # Use access_log.retention from the config
  courier accesslog prune --config config.yaml

  # Keep one week
  courier accesslog prune --days 7`,
	Args: cobra.NoArgs,
	RunE: pruneAccessLog,
}

func init() {
	rootCmd.AddCommand(accesslogCmd)
	accesslogCmd.AddCommand(accesslogQueryCmd, accesslogPruneCmd)

	f := accesslogQueryCmd.Flags()
	f.StringVar(&accesslogFlags.host, "host", "", "filter by target host")
	f.IntVar(&accesslogFlags.status, "status", 0, "filter by error status sent to the client")
	f.StringVar(&accesslogFlags.result, "result", "", "filter by result (forwarded, rejected, aborted)")
	f.DurationVar(&accesslogFlags.since, "since", 0, "only records started within this duration (e.g. 15m, 24h)")
	f.IntVar(&accesslogFlags.limit, "limit", accesslog.DefaultLimit, "max results")
	f.IntVar(&accesslogFlags.offset, "offset", 0, "pagination offset")
	f.StringVar(&accesslogFlags.format, "format", "text", "output format: text, json, csv")
	f.StringVarP(&accesslogFlags.output, "output", "o", "", "output file (default: stdout)")
	f.StringVar(&accesslogFlags.admin, "admin", "", "admin address of a running proxy (memory backend)")

	accesslogPruneCmd.Flags().IntVar(&pruneFlags.days, "days", -1, "retention days (default: from config)")
	accesslogPruneCmd.Flags().Int64Var(&pruneFlags.maxRecords, "max-records", -1, "max records to keep (default: from config)")
}

func queryAccessLog(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(accesslogFlags.format)
	if err != nil {
		return cli.NewCommandError("accesslog query", err)
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.WrapConfigError(configLabel(), err)
	}

	query := &accesslog.Query{
		Host:   accesslogFlags.host,
		Status: accesslogFlags.status,
		Result: accesslogFlags.result,
		Limit:  accesslogFlags.limit,
		Offset: accesslogFlags.offset,
	}
	if accesslogFlags.since > 0 {
		start := time.Now().Add(-accesslogFlags.since)
		query.StartTime = &start
	}
	if err := query.Validate(); err != nil {
		return cli.NewCommandError("accesslog query", err)
	}
	query.ApplyDefaults()

	ctx := commandContext(cmd)

	var records []*accesslog.Record
	if cfg.AccessLog.Backend == config.AccessLogBackendMemory {
		addr := accesslogFlags.admin
		if addr == "" {
			addr = cfg.Admin.ListenAddress
		}
		records, err = fetchAccessLog(ctx, addr, accesslogFlags.since, query)
	} else {
		records, err = queryStore(ctx, cfg.AccessLog, query)
	}
	if err != nil {
		return cli.NewCommandError("accesslog query", err)
	}

	w := cmd.OutOrStdout()
	if accesslogFlags.output != "" {
		file, err := os.Create(accesslogFlags.output)
		if err != nil {
			return cli.NewCommandError("accesslog query", fmt.Errorf("failed to create output file: %w", err))
		}
		defer file.Close()
		w = file
	}

	if len(records) == 0 && format == cli.FormatText {
		fmt.Fprintln(w, "No access log records found.")
		return nil
	}

	return cli.NewFormatter(format).FormatTo(w, recordTable(records))
}

func queryStore(ctx context.Context, cfg config.AccessLogConfig, query *accesslog.Query) ([]*accesslog.Record, error) {
	store, err := storage.New(cfg, commandLogger())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Query(ctx, query)
}

// fetchAccessLog queries the /accesslog endpoint of a running proxy.
func fetchAccessLog(ctx context.Context, adminAddress string, since time.Duration, query *accesslog.Query) ([]*accesslog.Record, error) {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(query.Limit))
	if query.Offset > 0 {
		v.Set("offset", strconv.Itoa(query.Offset))
	}
	if query.Host != "" {
		v.Set("host", query.Host)
	}
	if query.Status != 0 {
		v.Set("status", strconv.Itoa(query.Status))
	}
	if query.Result != "" {
		v.Set("result", query.Result)
	}
	if since > 0 {
		v.Set("since", since.String())
	}

	u := url.URL{Scheme: "http", Host: adminAddress, Path: "/accesslog", RawQuery: v.Encode()}

	ctx, cancel := context.WithTimeout(ctx, adminRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach admin server at %s: %w", adminAddress, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("admin server returned %s: %s", resp.Status, body)
	}

	var payload struct {
		Records []*accesslog.Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode access log response: %w", err)
	}
	return payload.Records, nil
}

// recordTable lays records out for text and CSV output. JSON output
// renders the full records.
func recordTable(records []*accesslog.Record) *cli.Table {
	t := &cli.Table{
		Headers: []string{"START", "CLIENT", "METHOD", "TARGET", "RESULT", "STATUS", "BYTES", "DURATION"},
		Rows:    make([][]string, 0, len(records)),
		Data:    records,
	}
	for _, r := range records {
		status := "-"
		if r.Status != 0 {
			status = strconv.Itoa(r.Status)
		}
		target := r.Target
		if target == "" {
			target = "-"
		}
		t.Rows = append(t.Rows, []string{
			r.StartTime.UTC().Format(time.RFC3339),
			r.ClientAddr,
			orDash(r.Method),
			target,
			r.Result,
			status,
			strconv.FormatInt(r.ResponseBytes, 10),
			strconv.FormatFloat(r.DurationMs, 'f', 1, 64) + "ms",
		})
	}
	return t
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func pruneAccessLog(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.WrapConfigError(configLabel(), err)
	}
	if cfg.AccessLog.Backend == config.AccessLogBackendMemory {
		return cli.NewCommandError("accesslog prune", errMemoryPrune)
	}

	rc := retention.FromConfig(cfg.AccessLog.Retention)
	if pruneFlags.days >= 0 {
		rc.RetentionDays = pruneFlags.days
	}
	if pruneFlags.maxRecords >= 0 {
		rc.MaxRecords = pruneFlags.maxRecords
	}

	logger := commandLogger()
	store, err := storage.New(cfg.AccessLog, logger)
	if err != nil {
		return cli.NewCommandError("accesslog prune", err)
	}
	defer store.Close()

	deleted, err := retention.NewPruner(store, rc, nil, logger).Prune(commandContext(cmd))
	if err != nil {
		return cli.NewCommandError("accesslog prune", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d access log records (retention_days=%d, max_records=%d)\n",
		deleted, rc.RetentionDays, rc.MaxRecords)
	return nil
}

// commandLogger logs to stderr so command output stays machine readable.
func commandLogger() *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: "text", Writer: os.Stderr})
	if err != nil {
		return slog.Default()
	}
	return logger.Slog()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
