//go:build !unix

package server

import "net"

// listenConfig ignores reuseAddress on platforms without unix sockets.
func listenConfig(reuseAddress bool) *net.ListenConfig {
	return &net.ListenConfig{}
}
