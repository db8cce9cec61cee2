package proxy

import (
	"errors"
	"fmt"
	"io"
)

// ErrorKind classifies a per-connection failure.
type ErrorKind string

const (
	// KindMalformedRequest is a client syntax error (bad request line or target).
	KindMalformedRequest ErrorKind = "malformed_request"

	// KindRequestTooLarge means the header block did not fit in the inbound buffer.
	KindRequestTooLarge ErrorKind = "request_too_large"

	// KindUnsupportedMethod is any method other than GET.
	KindUnsupportedMethod ErrorKind = "unsupported_method"

	// KindUpstreamUnavailable covers resolution, socket and connect failures.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"

	// KindClientClosed means the client sent nothing or went away before a full request.
	KindClientClosed ErrorKind = "client_closed"

	// KindClientIO is a read failure on the client socket.
	KindClientIO ErrorKind = "client_io"

	// KindOverloaded means the server refused the connection because the
	// connection limit was reached.
	KindOverloaded ErrorKind = "overloaded"
)

// Client-facing messages written after the status line.
const (
	MsgInvalidRequest     = "Invalid request!"
	MsgRequestTooLarge    = "Request too large!"
	MsgNotGet             = "Not a GET request"
	MsgResolveFailed      = "Could not resolve host!"
	MsgConnectFailed      = "Could not connect to host!"
	MsgTooManyConnections = "Too many connections"
)

// ProxyError is the result value for a failed connection. It replaces any
// shared error state: every connection carries its own.
type ProxyError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ProxyError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code reported to the client.
// Silent kinds return 0: no response is written for them.
func (e *ProxyError) Status() int {
	switch e.Kind {
	case KindMalformedRequest, KindRequestTooLarge:
		return 400
	case KindUnsupportedMethod:
		return 501
	case KindUpstreamUnavailable, KindOverloaded:
		return 503
	default:
		return 0
	}
}

// Silent reports whether the connection should be closed without a response.
func (e *ProxyError) Silent() bool {
	return e.Status() == 0
}

// NewMalformedError creates a 400 error with the standard message.
func NewMalformedError(cause error) *ProxyError {
	return &ProxyError{Kind: KindMalformedRequest, Message: MsgInvalidRequest, Err: cause}
}

// NewUpstreamError creates a 503 error.
func NewUpstreamError(message string, cause error) *ProxyError {
	return &ProxyError{Kind: KindUpstreamUnavailable, Message: message, Err: cause}
}

var (
	// ErrOverloaded is written to connections refused over the connection limit.
	ErrOverloaded = &ProxyError{Kind: KindOverloaded, Message: MsgTooManyConnections}

	// ErrClientClosed is returned by ReadRequest when a read yields no data.
	ErrClientClosed = &ProxyError{Kind: KindClientClosed, Message: "client closed connection"}

	// ErrRequestTooLarge is returned when the inbound buffer fills without a terminator.
	ErrRequestTooLarge = &ProxyError{Kind: KindRequestTooLarge, Message: MsgRequestTooLarge}

	// ErrUnsupportedMethod is returned for any method other than GET.
	ErrUnsupportedMethod = &ProxyError{Kind: KindUnsupportedMethod, Message: MsgNotGet}

	// ErrClientGone is returned by Relay when writing to the client fails.
	ErrClientGone = errors.New("client connection lost during relay")
)

// AsProxyError extracts a *ProxyError from err.
func AsProxyError(err error) (*ProxyError, bool) {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ReasonPhrase returns the reason phrase used in error status lines.
func ReasonPhrase(code int) string {
	switch code {
	case 400:
		return "BAD REQUEST"
	case 501:
		return "NOT IMPLEMENTED"
	case 503:
		return "SERVICE UNAVAILABLE"
	default:
		return "BROKEN"
	}
}

// FormatError renders an error reply:
//
//	HTTP/1.0 <code> <reason>\r\n\r\n<message>\r\n
func FormatError(code int, message string) string {
	return fmt.Sprintf("HTTP/1.0 %d %s\r\n\r\n%s\r\n", code, ReasonPhrase(code), message)
}

// WriteError sends the error reply for e to w. Silent errors write nothing.
func WriteError(w io.Writer, e *ProxyError) error {
	if e == nil || e.Silent() {
		return nil
	}
	_, err := io.WriteString(w, FormatError(e.Status(), e.Message))
	return err
}
