//go:build unix

package server

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenConfig returns a ListenConfig that sets SO_REUSEADDR when asked,
// so a restarted proxy can rebind while old sockets sit in TIME_WAIT.
func listenConfig(reuseAddress bool) *net.ListenConfig {
	if !reuseAddress {
		return &net.ListenConfig{}
	}

	return &net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}
