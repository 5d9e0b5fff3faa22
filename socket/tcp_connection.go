package socket

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iosb-ics/opcua-gonm/statuscode"
)

// frameHeaderSize is the length of the length-prefix header preceding
// every message on the wire: an int32 byte count, consistent with the
// length-prefix convention the binary codec uses for strings and arrays.
const frameHeaderSize = 4

// Replier is the subset of Socket a message handler needs in order to
// send a response: acquiring an outbound buffer and sending it. Handlers
// depend on this instead of the concrete TCPConnectionSocket so they stay
// testable against a plain mock.
type Replier interface {
	AcquireSendBuffer(capacity int) ([]byte, statuscode.Code)
	Send(buf []byte) statuscode.Code
}

// MessageHandler is invoked once per fully assembled message. Returning a
// non-Good status makes Activity close the connection at once and return
// that status.
type MessageHandler func(conn Replier, payload []byte) statuscode.Code

// TCPConnectionSocket wraps one accepted net.TCPConn as a Socket. Activity
// performs one bounded read and dispatches every complete length-prefixed
// message buffered so far; MayDelete flips true once the
// peer closes or a handler call fails.
type TCPConnectionSocket struct {
	conn      *net.TCPConn
	reader    *bufio.Reader
	writer    *bufio.Writer
	logger    *zap.Logger
	id        ID
	sessionID uuid.UUID

	onMessage MessageHandler

	pending        []byte
	closed         bool
	deletable      atomic.Bool
	recvBufferSize int
}

func newTCPConnectionSocket(conn *net.TCPConn, fd, recvBufferSize, sendBufferSize int, logger *zap.Logger) *TCPConnectionSocket {
	sessionID := uuid.New()
	logger.Info("socket: session opened", zap.Int("fd", fd), zap.String("session_id", sessionID.String()))
	return &TCPConnectionSocket{
		conn:           conn,
		reader:         bufio.NewReaderSize(conn, recvBufferSize),
		writer:         bufio.NewWriterSize(conn, sendBufferSize),
		logger:         logger,
		id:             ID(fd),
		sessionID:      sessionID,
		recvBufferSize: recvBufferSize,
	}
}

// SessionID returns the identifier generated for this connection at
// accept time, used to correlate log lines across a connection's
// lifetime the way the original's per-session id did.
func (c *TCPConnectionSocket) SessionID() uuid.UUID { return c.sessionID }

// SetMessageHandler installs the callback invoked for each assembled
// message. Must be called before the socket is registered with a network
// manager.
func (c *TCPConnectionSocket) SetMessageHandler(h MessageHandler) {
	c.onMessage = h
}

func (c *TCPConnectionSocket) ID() ID               { return c.id }
func (c *TCPConnectionSocket) IsListener() bool     { return false }
func (c *TCPConnectionSocket) DiscoveryURL() string { return "" }

// Activity reads whatever is currently available on the connection in one
// bounded call, appends it to any previously buffered partial frame, and
// dispatches every complete frame found. It never blocks past what
// select(2) already reported ready: a single Read call returns as soon as
// at least one byte (or EOF) is available.
func (c *TCPConnectionSocket) Activity() statuscode.Code {
	buf := make([]byte, c.recvBufferSize)
	n, err := c.reader.Read(buf)
	if n > 0 {
		c.pending = append(c.pending, buf[:n]...)
	}
	readFailed := err != nil
	if readFailed && err != io.EOF {
		c.logger.Warn("socket: read error", zap.Int("fd", int(c.id)), zap.Error(err))
	}

	for {
		msg, rest, ok := splitFrame(c.pending)
		if !ok {
			break
		}
		c.pending = rest
		if c.onMessage == nil {
			continue
		}
		if st := c.onMessage(c, msg); st.IsBad() {
			c.logger.Warn("socket: message handler failed", zap.Int("fd", int(c.id)), zap.Stringer("status", st))
			c.Close()
			return st
		}
	}
	if readFailed {
		// The peer is gone; closing now makes MayDelete true, so the
		// manager reaps the socket right after this Activity call.
		c.Close()
	}
	return statuscode.Good
}

// splitFrame extracts one length-prefixed frame from buf if a complete one
// is present, returning the remaining bytes and whether a frame was found.
func splitFrame(buf []byte) (msg []byte, rest []byte, ok bool) {
	if len(buf) < frameHeaderSize {
		return nil, buf, false
	}
	n := binary.LittleEndian.Uint32(buf[:frameHeaderSize])
	total := frameHeaderSize + int(n)
	if len(buf) < total {
		return nil, buf, false
	}
	return buf[frameHeaderSize:total], buf[total:], true
}

// MayDelete is monotonic: once the peer closes or a handler call fails it
// never reverts to false.
func (c *TCPConnectionSocket) MayDelete() bool {
	return c.deletable.Load()
}

func (c *TCPConnectionSocket) Close() statuscode.Code {
	if c.closed {
		return statuscode.Good
	}
	c.closed = true
	c.deletable.Store(true)
	if c.writer.Buffered() > 0 {
		if err := c.writer.Flush(); err != nil {
			c.logger.Warn("socket: flush on close failed", zap.Error(err))
		}
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("socket: close failed", zap.Error(err))
		return statuscode.BadCommunicationError
	}
	return statuscode.Good
}

func (c *TCPConnectionSocket) Free() {}

// AcquireSendBuffer allocates a fresh slice; real deployments with a
// pooled allocator would hand out a pooled buffer here instead.
func (c *TCPConnectionSocket) AcquireSendBuffer(capacity int) ([]byte, statuscode.Code) {
	return make([]byte, capacity), statuscode.Good
}

func (c *TCPConnectionSocket) ReleaseSendBuffer(buf []byte) {}

// Send writes buf as one length-prefixed frame and flushes it immediately.
func (c *TCPConnectionSocket) Send(buf []byte) statuscode.Code {
	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(buf)))
	if _, err := c.writer.Write(header[:]); err != nil {
		return statuscode.BadCommunicationError
	}
	if _, err := c.writer.Write(buf); err != nil {
		return statuscode.BadCommunicationError
	}
	if err := c.writer.Flush(); err != nil {
		return statuscode.BadCommunicationError
	}
	return statuscode.Good
}
