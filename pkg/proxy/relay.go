package proxy

import (
	"errors"
	"io"
	"net"
	"time"
)

// DefaultRelayBufferBytes is the size of the relay chunk buffer.
const DefaultRelayBufferBytes = 32 * 1024

// Relay copies src to dst chunk by chunk without looking at the bytes. It
// returns the number of bytes written to dst.
//
// EOF and read errors end the relay normally; the read error, if any, is
// returned for the caller's records. A failed or short write to dst aborts at
// once with ErrClientGone.
func Relay(dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultRelayBufferBytes)
	}

	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil || w != n {
				return written, ErrClientGone
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			return written, rerr
		}
		if n == 0 {
			return written, nil
		}
	}
}

// idleReader refreshes a read deadline on conn before every read.
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}
