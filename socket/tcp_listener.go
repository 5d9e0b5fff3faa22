package socket

import (
	"net"
	"syscall"

	"go.uber.org/zap"

	"github.com/iosb-ics/opcua-gonm/statuscode"
)

// TCPListenerSocket wraps a bound net.TCPListener as a Listener. Its ID is
// the listening fd itself, obtained once at construction time so it stays
// stable even though net.Conn never exposes an fd directly.
type TCPListenerSocket struct {
	ln             *net.TCPListener
	discoveryURL   string
	logger         *zap.Logger
	id             ID
	closed         bool
	onMessage      MessageHandler
	recvBufferSize int
	sendBufferSize int
}

// SetMessageHandler installs the handler every subsequently accepted
// connection is wired with. Call this once, before the listener is
// registered with a network manager.
func (l *TCPListenerSocket) SetMessageHandler(h MessageHandler) {
	l.onMessage = h
}

// ListenTCP binds address and wraps the result as a TCPListenerSocket. The
// discovery URL advertised is "opc.tcp://" + address, matching the
// endpoint-URL convention described for listener sockets. recvBufferSize and
// sendBufferSize size the bufio reader/writer wrapping every connection this
// listener accepts.
func ListenTCP(address string, recvBufferSize, sendBufferSize int, logger *zap.Logger) (*TCPListenerSocket, statuscode.Code) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		logger.Error("socket: error resolving tcp address", zap.Error(err))
		return nil, statuscode.BadCommunicationError
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		logger.Error("socket: error binding listener", zap.Error(err))
		return nil, statuscode.BadCommunicationError
	}
	fd, code := extractFD(ln)
	if code.IsBad() {
		ln.Close()
		return nil, code
	}
	return &TCPListenerSocket{
		ln:             ln,
		discoveryURL:   "opc.tcp://" + address,
		logger:         logger,
		id:             ID(fd),
		recvBufferSize: recvBufferSize,
		sendBufferSize: sendBufferSize,
	}, statuscode.Good
}

func (l *TCPListenerSocket) ID() ID               { return l.id }
func (l *TCPListenerSocket) IsListener() bool     { return true }
func (l *TCPListenerSocket) DiscoveryURL() string { return l.discoveryURL }

// Activity on a listener is a no-op: new connections are serviced through
// Accept, invoked by the network manager once select(2) reports the
// listening fd readable.
func (l *TCPListenerSocket) Activity() statuscode.Code { return statuscode.Good }

// MayDelete is false for as long as the listener is open; it never decides
// on its own to stop accepting connections.
func (l *TCPListenerSocket) MayDelete() bool { return l.closed }

func (l *TCPListenerSocket) Close() statuscode.Code {
	if l.closed {
		return statuscode.Good
	}
	l.closed = true
	if err := l.ln.Close(); err != nil {
		l.logger.Warn("socket: error closing listener", zap.Error(err))
		return statuscode.BadCommunicationError
	}
	return statuscode.Good
}

func (l *TCPListenerSocket) Free() {}

func (l *TCPListenerSocket) AcquireSendBuffer(capacity int) ([]byte, statuscode.Code) {
	return nil, statuscode.BadInternalError
}
func (l *TCPListenerSocket) ReleaseSendBuffer(buf []byte) {}
func (l *TCPListenerSocket) Send(buf []byte) statuscode.Code {
	return statuscode.BadInternalError
}

// Accept accepts one pending connection and wraps it as a
// TCPConnectionSocket. Returns BadCommunicationError if the listener has
// been closed concurrently.
func (l *TCPListenerSocket) Accept() (Socket, statuscode.Code) {
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		l.logger.Warn("socket: error accepting connection", zap.Error(err))
		return nil, statuscode.BadCommunicationError
	}
	fd, code := extractFD(conn)
	if code.IsBad() {
		conn.Close()
		return nil, code
	}
	l.logger.Info("socket: accepted connection", zap.String("remote", conn.RemoteAddr().String()))
	connSocket := newTCPConnectionSocket(conn, fd, l.recvBufferSize, l.sendBufferSize, l.logger)
	if l.onMessage != nil {
		connSocket.SetMessageHandler(l.onMessage)
	}
	return connSocket, statuscode.Good
}

// fdSource is satisfied by both *net.TCPListener and *net.TCPConn.
type fdSource interface {
	SyscallConn() (syscall.RawConn, error)
}

// extractFD pulls the raw file descriptor out of a net.Conn-like value.
// Socket identity and the network manager's select(2) loop both key off
// this number, so it is resolved once and cached rather than recomputed.
func extractFD(src fdSource) (int, statuscode.Code) {
	raw, err := src.SyscallConn()
	if err != nil {
		return 0, statuscode.BadInternalError
	}
	var fd int
	if err := raw.Control(func(descriptor uintptr) {
		fd = int(descriptor)
	}); err != nil {
		return 0, statuscode.BadInternalError
	}
	return fd, statuscode.Good
}
