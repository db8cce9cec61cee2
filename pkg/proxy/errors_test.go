package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		code    int
		message string
		want    string
	}{
		{400, MsgInvalidRequest, "HTTP/1.0 400 BAD REQUEST\r\n\r\nInvalid request!\r\n"},
		{501, MsgNotGet, "HTTP/1.0 501 NOT IMPLEMENTED\r\n\r\nNot a GET request\r\n"},
		{503, MsgResolveFailed, "HTTP/1.0 503 SERVICE UNAVAILABLE\r\n\r\nCould not resolve host!\r\n"},
		{500, "oops", "HTTP/1.0 500 BROKEN\r\n\r\noops\r\n"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			if got := FormatError(tt.code, tt.message); got != tt.want {
				t.Errorf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProxyErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *ProxyError
		status int
		silent bool
	}{
		{"malformed", NewMalformedError(nil), 400, false},
		{"too large", ErrRequestTooLarge, 400, false},
		{"method", ErrUnsupportedMethod, 501, false},
		{"upstream", NewUpstreamError(MsgConnectFailed, nil), 503, false},
		{"overloaded", ErrOverloaded, 503, false},
		{"client closed", ErrClientClosed, 0, true},
		{"client io", &ProxyError{Kind: KindClientIO}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Status(); got != tt.status {
				t.Errorf("Status() = %d, want %d", got, tt.status)
			}
			if got := tt.err.Silent(); got != tt.silent {
				t.Errorf("Silent() = %v, want %v", got, tt.silent)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes reply", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteError(&buf, ErrUnsupportedMethod); err != nil {
			t.Fatalf("WriteError() error = %v", err)
		}
		want := "HTTP/1.0 501 NOT IMPLEMENTED\r\n\r\nNot a GET request\r\n"
		if buf.String() != want {
			t.Errorf("wrote %q, want %q", buf.String(), want)
		}
	})

	t.Run("silent writes nothing", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteError(&buf, ErrClientClosed); err != nil {
			t.Fatalf("WriteError() error = %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("wrote %q for silent error", buf.String())
		}
	})
}

func TestAsProxyError(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("outer: %w", NewUpstreamError(MsgResolveFailed, cause))

	pe, ok := AsProxyError(wrapped)
	if !ok {
		t.Fatal("AsProxyError() did not find the ProxyError")
	}
	if pe.Kind != KindUpstreamUnavailable {
		t.Errorf("Kind = %s, want %s", pe.Kind, KindUpstreamUnavailable)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}

	if _, ok := AsProxyError(cause); ok {
		t.Error("AsProxyError() matched a plain error")
	}
}
