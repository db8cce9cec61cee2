package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// OutputFormat is the value of a --format flag.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// ParseOutputFormat validates a --format flag value. Case is ignored and
// an empty value selects text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be text, json or csv)", s)
	}
}

// Table is tabular command output. Text and CSV render Headers and Rows.
// JSON renders Data when it is set, so scripts get typed fields instead of
// display strings.
type Table struct {
	Headers []string
	Rows    [][]string
	Data    any
}

// Formatter writes command output in one format.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// NewFormatter returns the formatter for format. Unknown formats fall back
// to text.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

// Render formats data into memory.
func Render(f Formatter, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FormatTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TextFormatter aligns tables in space-padded columns and prints any other
// value with %v.
type TextFormatter struct{}

func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(*Table)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSONFormatter encodes data, or a table's Data, as one JSON document.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	if t, ok := data.(*Table); ok && t.Data != nil {
		data = t.Data
	}
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

// CSVFormatter writes a table as RFC 4180 CSV. Other values are rejected.
type CSVFormatter struct{}

func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(*Table)
	if !ok {
		return fmt.Errorf("csv output requires tabular data, got %T", data)
	}

	cw := csv.NewWriter(w)
	if len(t.Headers) > 0 {
		if err := cw.Write(t.Headers); err != nil {
			return err
		}
	}
	return cw.WriteAll(t.Rows)
}
