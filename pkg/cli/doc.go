/*
Package cli provides command-line interface utilities for Mercator Courier.

The cli package includes output formatters, typed command errors, and the
signal handling used by the courier command.

Output Formatting:

Commands that list records build a Table and render it in the format chosen
with --format (text, json or csv):

	format, err := cli.ParseOutputFormat(flagFormat)
	if err != nil {
		return err
	}
	table := &cli.Table{Headers: headers, Rows: rows, Data: records}
	return cli.NewFormatter(format).FormatTo(os.Stdout, table)

Text output aligns columns with text/tabwriter. JSON output encodes Data
when set, so scripts see the full records rather than display strings.

Errors:

Commands return ConfigError for configuration problems and CommandError for
runtime failures. ExitCode maps them to the process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
