// Package sockettest provides a settable mock Socket for exercising the
// network manager without real file descriptors, grounded on
// testing_socket.c's createDummySocket: every behavior is a swappable
// function field defaulting to an innocuous implementation, and a test
// scripts exactly the sequence of results it wants by assigning
// testkit.ResultQueue-backed funcs.
package sockettest

import (
	"github.com/iosb-ics/opcua-gonm/socket"
	"github.com/iosb-ics/opcua-gonm/statuscode"
)

// Socket is a fully mutable mock implementing socket.Socket. Every method
// defers to the corresponding func field; nil fields fall back to a
// harmless default so a test only needs to override what it cares about.
type Socket struct {
	IDFunc                ID
	IsListenerFunc        IsListener
	DiscoveryURLFunc      DiscoveryURL
	ActivityFunc          Activity
	MayDeleteFunc         MayDelete
	CloseFunc             Close
	FreeFunc              Free
	AcquireSendBufferFunc AcquireSendBuffer
	ReleaseSendBufferFunc ReleaseSendBuffer
	SendFunc              Send

	closeCalls int
	freeCalls  int
}

type ID func() socket.ID
type IsListener func() bool
type DiscoveryURL func() string
type Activity func() statuscode.Code
type MayDelete func() bool
type Close func() statuscode.Code
type Free func()
type AcquireSendBuffer func(capacity int) ([]byte, statuscode.Code)
type ReleaseSendBuffer func(buf []byte)
type Send func(buf []byte) statuscode.Code

// New creates a Socket with id as its identity and all other behavior
// defaulted: not a listener, never has activity to service, never
// deletable, Close/Send/Acquire all succeed trivially.
func New(id socket.ID) *Socket {
	return &Socket{
		IDFunc: func() socket.ID { return id },
	}
}

func (s *Socket) ID() socket.ID {
	if s.IDFunc != nil {
		return s.IDFunc()
	}
	return 0
}

func (s *Socket) IsListener() bool {
	if s.IsListenerFunc != nil {
		return s.IsListenerFunc()
	}
	return false
}

func (s *Socket) DiscoveryURL() string {
	if s.DiscoveryURLFunc != nil {
		return s.DiscoveryURLFunc()
	}
	return ""
}

func (s *Socket) Activity() statuscode.Code {
	if s.ActivityFunc != nil {
		return s.ActivityFunc()
	}
	return statuscode.Good
}

func (s *Socket) MayDelete() bool {
	if s.MayDeleteFunc != nil {
		return s.MayDeleteFunc()
	}
	return false
}

func (s *Socket) Close() statuscode.Code {
	s.closeCalls++
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return statuscode.Good
}

func (s *Socket) Free() {
	s.freeCalls++
	if s.FreeFunc != nil {
		s.FreeFunc()
	}
}

func (s *Socket) AcquireSendBuffer(capacity int) ([]byte, statuscode.Code) {
	if s.AcquireSendBufferFunc != nil {
		return s.AcquireSendBufferFunc(capacity)
	}
	return make([]byte, capacity), statuscode.Good
}

func (s *Socket) ReleaseSendBuffer(buf []byte) {
	if s.ReleaseSendBufferFunc != nil {
		s.ReleaseSendBufferFunc(buf)
	}
}

func (s *Socket) Send(buf []byte) statuscode.Code {
	if s.SendFunc != nil {
		return s.SendFunc(buf)
	}
	return statuscode.Good
}

// CloseCalls reports how many times Close was invoked, for asserting
// idempotency (exactly one real close followed by any number of no-ops).
func (s *Socket) CloseCalls() int { return s.closeCalls }

// FreeCalls reports how many times Free was invoked. A well-behaved
// network manager calls this exactly once per socket.
func (s *Socket) FreeCalls() int { return s.freeCalls }
