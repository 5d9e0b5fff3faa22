// Package session wires the codec, type table and socket abstraction into
// the smallest useful end-to-end behavior: an echo service that decodes
// an incoming Variant, logs it, and re-encodes the same value back to the
// caller chunk by chunk. It plays the role the original's session layer
// played for RTMP streams — the concrete consumer sitting on top of the
// networking primitives — rescoped to this protocol's data model.
package session

import (
	"go.uber.org/zap"

	"github.com/iosb-ics/opcua-gonm/codec"
	"github.com/iosb-ics/opcua-gonm/socket"
	"github.com/iosb-ics/opcua-gonm/statuscode"
	"github.com/iosb-ics/opcua-gonm/types"
)

// defaultSendChunkSize is used when a ConnectionHandler is built with a
// non-positive chunk size.
const defaultSendChunkSize = 4096

// ExchangeObserver receives the number of exchange callback invocations
// a single encoded reply needed, for metrics wiring. A nil ExchangeObserver
// on ConnectionHandler skips this notification entirely.
type ExchangeObserver interface {
	ExchangeObserved(count int)
}

// Service applies application logic to a decoded message and produces the
// value to send back, if any.
type Service interface {
	// Handle processes one decoded Variant and returns the reply value to
	// send back, or nil to send nothing.
	Handle(v *types.Variant) (*types.Variant, error)
}

// EchoService is the simplest Service: it returns exactly what it
// received.
type EchoService struct {
	Logger *zap.Logger
}

// Handle implements Service by returning v unchanged.
func (e *EchoService) Handle(v *types.Variant) (*types.Variant, error) {
	if e.Logger != nil {
		e.Logger.Debug("session: echoing variant", zap.Uint8("type_id", v.TypeID), zap.Bool("array", v.IsArray))
	}
	return v, nil
}

// ConnectionHandler decodes each message a TCPConnectionSocket assembles
// as a Variant, runs it through a Service, and encodes any reply back out
// through the same socket.
type ConnectionHandler struct {
	table         *types.Table
	service       Service
	logger        *zap.Logger
	sendChunkSize int
	exchanges     ExchangeObserver
}

// NewConnectionHandler builds a ConnectionHandler bound to table and
// service; NewMessageHandler adapts it for
// socket.TCPConnectionSocket.SetMessageHandler.
// sendChunkSize bounds each AcquireSendBuffer request issued while encoding
// a reply; a non-positive value falls back to defaultSendChunkSize.
func NewConnectionHandler(table *types.Table, service Service, sendChunkSize int, logger *zap.Logger) *ConnectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sendChunkSize <= 0 {
		sendChunkSize = defaultSendChunkSize
	}
	return &ConnectionHandler{table: table, service: service, sendChunkSize: sendChunkSize, logger: logger}
}

// SetExchangeObserver installs a callback notified with the exchange count
// of every reply this handler encodes. Optional; nil disables it.
func (h *ConnectionHandler) SetExchangeObserver(o ExchangeObserver) {
	h.exchanges = o
}

// HandleMessage implements socket.MessageHandler.
func (h *ConnectionHandler) HandleMessage(conn socket.Replier, payload []byte) statuscode.Code {
	var pos int
	decoded, st := codec.DecodeBinary(h.table, payload, &pos, types.VariantDescriptor)
	if st.IsBad() {
		h.logger.Warn("session: failed to decode incoming variant", zap.Stringer("status", st))
		return st
	}
	variant, ok := decoded.(*types.Variant)
	if !ok {
		h.logger.Error("session: decoded value was not a variant")
		return statuscode.BadInternalError
	}

	reply, err := h.service.Handle(variant)
	if err != nil {
		h.logger.Warn("session: service handler failed", zap.Error(err))
		return statuscode.BadInternalError
	}
	if reply == nil {
		return statuscode.Good
	}

	return h.sendReply(conn, reply)
}

func (h *ConnectionHandler) sendReply(conn socket.Replier, reply *types.Variant) statuscode.Code {
	size, err := codec.CalcSizeBinary(h.table, reply, types.VariantDescriptor)
	if err != nil {
		h.logger.Error("session: failed to size reply", zap.Error(err))
		return statuscode.BadEncodingError
	}

	buf, st := conn.AcquireSendBuffer(minInt(size, h.sendChunkSize))
	if st.IsBad() {
		return st
	}
	state := &codec.EncodeState{Chunk: buf, Pos: 0}

	var chunks [][]byte
	exchangeCount := 0
	exchange := func(info codec.ChunkInfo, state *codec.EncodeState) statuscode.Code {
		exchangeCount++
		chunks = append(chunks, append([]byte(nil), state.Chunk[:state.Pos]...))
		next, st := conn.AcquireSendBuffer(h.sendChunkSize)
		if st.IsBad() {
			return st
		}
		state.Chunk = next
		state.Pos = 0
		return statuscode.Good
	}

	if st := codec.EncodeBinary(h.table, reply, types.VariantDescriptor, state, exchange, nil); st.IsBad() {
		h.logger.Warn("session: failed to encode reply", zap.Stringer("status", st))
		return st
	}
	chunks = append(chunks, state.Chunk[:state.Pos])
	if h.exchanges != nil {
		h.exchanges.ExchangeObserved(exchangeCount)
	}

	full := make([]byte, 0, size)
	for _, c := range chunks {
		full = append(full, c...)
	}
	return conn.Send(full)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// NewMessageHandler adapts a ConnectionHandler to socket.MessageHandler's
// function signature.
func NewMessageHandler(h *ConnectionHandler) socket.MessageHandler {
	return func(conn socket.Replier, payload []byte) statuscode.Code {
		return h.HandleMessage(conn, payload)
	}
}
