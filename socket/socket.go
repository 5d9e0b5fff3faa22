// Package socket defines the socket capability abstraction (C3): the
// minimal surface the network manager needs from any
// connected or listening endpoint, independent of whether it is backed by
// a real TCP connection or a test double.
package socket

import (
	"time"

	"github.com/iosb-ics/opcua-gonm/statuscode"
)

// ID uniquely identifies a socket for the lifetime of its registration.
// Real sockets use their underlying file descriptor; this ties identity
// directly to what select(2) operates on.
type ID int

// Socket is the capability surface the network manager drives. Close is
// idempotent; Process calls it when Activity fails, and DeleteMembers calls
// it during teardown. Free releases any resources and is the last call the
// manager makes on a socket.
type Socket interface {
	// ID returns the socket's stable identity for the registration's
	// lifetime.
	ID() ID

	// IsListener reports whether this socket accepts new connections
	// rather than carrying payload itself.
	IsListener() bool

	// DiscoveryURL returns the endpoint URL a listener socket advertises.
	// Undefined on non-listener sockets.
	DiscoveryURL() string

	// Activity services pending I/O (reading and dispatching a message)
	// without blocking past what is already available. Called by the
	// network manager after select(2) reports this socket's fd as ready;
	// for a listener the manager calls Listener.Accept instead.
	Activity() statuscode.Code

	// MayDelete reports whether the manager may now Free this socket and
	// drop its registration. Must be monotonic: once true, it stays true.
	MayDelete() bool

	// Close releases the socket's I/O resources. Idempotent.
	Close() statuscode.Code

	// Free releases any remaining resources after Close. Called exactly
	// once, strictly after Close.
	Free()

	// AcquireSendBuffer obtains a buffer of at least the given capacity
	// for outbound data.
	AcquireSendBuffer(capacity int) ([]byte, statuscode.Code)

	// ReleaseSendBuffer returns a buffer obtained from AcquireSendBuffer
	// without sending it.
	ReleaseSendBuffer(buf []byte)

	// Send transmits buf, previously obtained via AcquireSendBuffer.
	Send(buf []byte) statuscode.Code
}

// Listener is the subset of Socket behavior specific to listener sockets:
// accepting a new connection and handing back the Socket that wraps it.
type Listener interface {
	Socket
	Accept() (Socket, statuscode.Code)
}

// Registrar is the subset of network-manager behavior a socket factory
// needs in order to register sockets it creates (e.g. a listener
// registering each accepted connection).
type Registrar interface {
	RegisterSocket(s Socket) statuscode.Code
}

// Factory creates a Socket bound to the given network address, to be
// registered with a Registrar. cmd/server does not use it; it builds its
// listener with ListenTCP.
type Factory func(address string, deadline time.Duration) (Socket, statuscode.Code)
