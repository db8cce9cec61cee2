package proxy

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

const (
	// DefaultMaxRequestBytes is the inbound buffer capacity.
	DefaultMaxRequestBytes = 64 * 1024

	// DefaultClientIdleTimeout bounds how long a silent client is waited for.
	DefaultClientIdleTimeout = 5 * time.Second
)

var (
	crlfcrlf = []byte("\r\n\r\n")
	lflf     = []byte("\n\n")
)

// DeadlineReader is the subset of net.Conn used by ReadRequest.
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// ReadRequest reads from conn into buf until the header block terminator
// ("\r\n\r\n" or "\n\n") has been received and returns buf[:n].
//
// The write offset is tracked across reads, so partial reads are appended.
// Each terminator search covers the newly received chunk plus the last three
// bytes of earlier data, which catches a terminator split across reads.
//
// If idleTimeout is positive, a read deadline is set before every read.
// A read that yields no data (EOF, idle timeout) returns ErrClientClosed, any
// other read failure a KindClientIO error; neither gets a client response.
// If buf fills up first, ErrRequestTooLarge is returned.
func ReadRequest(conn DeadlineReader, buf []byte, idleTimeout time.Duration) ([]byte, error) {
	if len(buf) == 0 {
		return nil, ErrRequestTooLarge
	}

	off := 0
	for off < len(buf) {
		if idleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
				return nil, &ProxyError{Kind: KindClientIO, Message: "set read deadline", Err: err}
			}
		}

		n, err := conn.Read(buf[off:])
		if n > 0 {
			start := off - (len(crlfcrlf) - 1)
			if start < 0 {
				start = 0
			}
			off += n
			if hasTerminator(buf[start:off]) {
				return buf[:off], nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || isTimeout(err) {
				return nil, ErrClientClosed
			}
			return nil, &ProxyError{Kind: KindClientIO, Message: "read request", Err: err}
		}
		if n == 0 {
			return nil, ErrClientClosed
		}
	}

	return nil, ErrRequestTooLarge
}

func hasTerminator(b []byte) bool {
	return bytes.Contains(b, crlfcrlf) || bytes.Contains(b, lflf)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
