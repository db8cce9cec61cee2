package proxy

import (
	"bytes"
	"errors"
	"strings"
)

// MethodGet is the only method the proxy forwards.
const MethodGet = "GET"

// Request is a parsed client request head.
type Request struct {
	// Method is the first request-line token.
	Method string

	// Target is the second request-line token, expected in absolute form.
	Target string

	// Version is the optional third token. It is recorded, never validated.
	Version string

	// HeaderLines are the lines between the request line and the blank
	// line, without their line terminators.
	HeaderLines []string
}

var (
	errNoLineTerminator = errors.New("request line has no terminator")
	errNoMethod         = errors.New("request line is empty")
	errNoTarget         = errors.New("request line has no target")
)

// ParseRequest extracts the request line and candidate header lines from the
// bytes returned by ReadRequest.
//
// A method other than GET fails with ErrUnsupportedMethod before the target
// is looked at. A missing line terminator or a missing target is a
// KindMalformedRequest error.
func ParseRequest(data []byte) (*Request, error) {
	end := bytes.IndexAny(data, "\r\n")
	if end < 0 {
		return nil, NewMalformedError(errNoLineTerminator)
	}

	fields := strings.Fields(string(data[:end]))
	if len(fields) == 0 {
		return nil, NewMalformedError(errNoMethod)
	}

	req := &Request{Method: fields[0]}
	if req.Method != MethodGet {
		return nil, ErrUnsupportedMethod
	}
	if len(fields) < 2 {
		return nil, NewMalformedError(errNoTarget)
	}
	req.Target = fields[1]
	if len(fields) > 2 {
		req.Version = fields[2]
	}

	req.HeaderLines = headerLines(data[skipEOL(data, end):])
	return req, nil
}

// skipEOL returns the index just past the line terminator starting at i.
func skipEOL(data []byte, i int) int {
	if i < len(data) && data[i] == '\r' {
		i++
	}
	if i < len(data) && data[i] == '\n' {
		i++
	}
	return i
}

// headerLines splits the header block into lines, stopping at the first
// blank line. Content of the lines is not inspected.
func headerLines(block []byte) []string {
	var lines []string
	for len(block) > 0 {
		end := bytes.IndexByte(block, '\n')
		var line []byte
		if end < 0 {
			line, block = block, nil
		} else {
			line, block = block[:end], block[end+1:]
		}
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			break
		}
		lines = append(lines, string(line))
	}
	return lines
}
