//go:build !linux
// +build !linux

// File: transport/rawconn_stub.go
// Author: momentics <momentics@gmail.com>
//
// Non-Linux platforms have no SCM_RIGHTS/epoll backend in this
// module, matching internal/transport/dpdk_transport_stub.go's
// pattern of a build-tag stub that reports ErrNotSupported rather
// than silently degrading. D-Bus's canonical transports (unix
// sockets, SCM_RIGHTS, kdbus) are Linux/BSD-socket concepts the
// upstream implementation never ported elsewhere either.
package transport

import "github.com/momentics/go-sd-bus/dbusaddr"

func dialUnix(addr dbusaddr.Address) (rawConn, error) {
	return nil, ErrNotSupported
}

func dialTCP(addr dbusaddr.Address) (rawConn, error) {
	return nil, ErrNotSupported
}

func dialUnixExec(addr dbusaddr.Address) (rawConn, error) {
	return nil, ErrNotSupported
}
