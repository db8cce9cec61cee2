package cli

import (
	"encoding/json"
	"testing"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   Formatter
	}{
		{FormatText, &TextFormatter{}},
		{FormatJSON, &JSONFormatter{Indent: true}},
		{FormatCSV, &CSVFormatter{}},
		{"yaml", &TextFormatter{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got := NewFormatter(tt.format)
			switch want := tt.want.(type) {
			case *TextFormatter:
				if _, ok := got.(*TextFormatter); !ok {
					t.Errorf("NewFormatter() = %T, want %T", got, want)
				}
			case *CSVFormatter:
				if _, ok := got.(*CSVFormatter); !ok {
					t.Errorf("NewFormatter() = %T, want %T", got, want)
				}
			case *JSONFormatter:
				j, ok := got.(*JSONFormatter)
				if !ok || j.Indent != want.Indent {
					t.Errorf("NewFormatter() = %#v, want %#v", got, want)
				}
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{
			name: "plain value",
			data: "listening on 127.0.0.1:8080",
			want: "listening on 127.0.0.1:8080\n",
		},
		{
			name: "table",
			data: &Table{
				Headers: []string{"HOST", "STATUS"},
				Rows:    [][]string{{"a.example", "200"}, {"long.host.example", "503"}},
			},
			want: "HOST               STATUS\n" +
				"a.example          200\n" +
				"long.host.example  503\n",
		},
		{
			name: "headers only",
			data: &Table{Headers: []string{"HOST"}},
			want: "HOST\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(&TextFormatter{}, tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("Render() =\n%q\nwant\n%q", out, tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		indent bool
		want   string
	}{
		{
			name: "compact map",
			data: map[string]int{"records": 2},
			want: "{\"records\":2}\n",
		},
		{
			name:   "indented map",
			data:   map[string]int{"records": 2},
			indent: true,
			want:   "{\n  \"records\": 2\n}\n",
		},
		{
			name: "table renders data",
			data: &Table{
				Headers: []string{"id"},
				Rows:    [][]string{{"1"}},
				Data:    []map[string]int{{"id": 1}},
			},
			want: "[{\"id\":1}]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(&JSONFormatter{Indent: tt.indent}, tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("Render() = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestJSONFormatter_TableWithoutData(t *testing.T) {
	out, err := Render(&JSONFormatter{}, &Table{Headers: []string{"a"}, Rows: [][]string{{"x"}}})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid JSON %s: %v", out, err)
	}
	if _, ok := decoded["Rows"]; !ok {
		t.Errorf("table without Data should encode the table itself, got %s", out)
	}
}

func TestCSVFormatter(t *testing.T) {
	out, err := Render(&CSVFormatter{}, &Table{
		Headers: []string{"host", "status"},
		Rows:    [][]string{{"a.example", "200"}, {"b,example", "503"}},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "host,status\na.example,200\n\"b,example\",503\n"
	if string(out) != want {
		t.Errorf("Render() = %q, want %q", out, want)
	}

	if _, err := Render(&CSVFormatter{}, "not a table"); err == nil {
		t.Error("expected error for non-table data")
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "junit", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}
