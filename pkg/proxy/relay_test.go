package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("broken pipe")
	}
	w.after--
	return len(p), nil
}

func TestRelay(t *testing.T) {
	t.Run("copies until EOF", func(t *testing.T) {
		payload := strings.Repeat("0123456789", 1000)
		var dst bytes.Buffer
		n, err := Relay(&dst, strings.NewReader(payload), make([]byte, 7))
		if err != nil {
			t.Fatalf("Relay() error = %v", err)
		}
		if n != int64(len(payload)) || dst.String() != payload {
			t.Errorf("Relay() copied %d bytes, content match %v", n, dst.String() == payload)
		}
	})

	t.Run("binary bytes unchanged", func(t *testing.T) {
		payload := []byte{0, 1, 2, '\r', '\n', 255, 0}
		var dst bytes.Buffer
		if _, err := Relay(&dst, bytes.NewReader(payload), nil); err != nil {
			t.Fatalf("Relay() error = %v", err)
		}
		if !bytes.Equal(dst.Bytes(), payload) {
			t.Errorf("Relay() = %v, want %v", dst.Bytes(), payload)
		}
	})

	t.Run("write failure aborts", func(t *testing.T) {
		src := strings.NewReader(strings.Repeat("x", 100))
		n, err := Relay(&failingWriter{after: 1}, src, make([]byte, 10))
		if !errors.Is(err, ErrClientGone) {
			t.Fatalf("Relay() error = %v, want ErrClientGone", err)
		}
		if n != 10 {
			t.Errorf("Relay() wrote %d bytes before failing, want 10", n)
		}
	})

	t.Run("read error is returned", func(t *testing.T) {
		boom := errors.New("reset")
		src := io.MultiReader(strings.NewReader("abc"), iotestErrReader{boom})
		var dst bytes.Buffer
		n, err := Relay(&dst, src, nil)
		if !errors.Is(err, boom) {
			t.Errorf("Relay() error = %v, want %v", err, boom)
		}
		if n != 3 {
			t.Errorf("Relay() = %d bytes, want 3", n)
		}
	})
}

type iotestErrReader struct{ err error }

func (r iotestErrReader) Read([]byte) (int, error) { return 0, r.err }

func TestIdleReaderTimesOut(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	r := &idleReader{conn: a, timeout: 30 * time.Millisecond}
	_, err := r.Read(make([]byte, 8))
	if !isTimeout(err) {
		t.Errorf("Read() error = %v, want timeout", err)
	}
}

func TestConnector(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	// A listener that was closed gives a refused address.
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadAddr := dead.Addr().String()
	dead.Close()

	c := NewConnector(time.Second)

	t.Run("falls through to next address", func(t *testing.T) {
		conn, err := c.Connect(context.Background(), []string{deadAddr, ln.Addr().String()})
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		conn.Close()
	})

	t.Run("all addresses fail", func(t *testing.T) {
		_, err := c.Connect(context.Background(), []string{deadAddr})
		pe, ok := AsProxyError(err)
		if !ok || pe.Status() != 503 || pe.Message != MsgConnectFailed {
			t.Errorf("Connect() error = %v, want 503 %q", err, MsgConnectFailed)
		}
	})

	t.Run("no addresses", func(t *testing.T) {
		_, err := c.Connect(context.Background(), nil)
		if pe, ok := AsProxyError(err); !ok || pe.Message != MsgConnectFailed {
			t.Errorf("Connect() error = %v", err)
		}
	})
}
