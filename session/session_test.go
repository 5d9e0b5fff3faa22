package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iosb-ics/opcua-gonm/codec"
	"github.com/iosb-ics/opcua-gonm/statuscode"
	"github.com/iosb-ics/opcua-gonm/types"
)

// mockReplier is the smallest possible socket.Replier for driving
// ConnectionHandler without a real connection.
type mockReplier struct {
	sent [][]byte
}

func (m *mockReplier) AcquireSendBuffer(capacity int) ([]byte, statuscode.Code) {
	return make([]byte, capacity), statuscode.Good
}

func (m *mockReplier) Send(buf []byte) statuscode.Code {
	m.sent = append(m.sent, append([]byte(nil), buf...))
	return statuscode.Good
}

func TestEchoServiceReturnsInputUnchanged(t *testing.T) {
	svc := &EchoService{}
	v := &types.Variant{TypeID: uint8(types.TypeInt32), Value: int32(42)}

	reply, err := svc.Handle(v)
	require.NoError(t, err)
	assert.Same(t, v, reply)
}

// TestEncodedVariantDecodesBackToEquivalentValue exercises the same
// encode/decode path ConnectionHandler drives, without needing a real
// socket: build the wire bytes for a variant, then decode them back.
func TestEncodedVariantDecodesBackToEquivalentValue(t *testing.T) {
	table := types.NewBuiltinTable()
	v := &types.Variant{TypeID: uint8(types.TypeString), Value: "hello opc"}

	state := &codec.EncodeState{Chunk: make([]byte, 256), Pos: 0}
	noExchange := func(info codec.ChunkInfo, s *codec.EncodeState) statuscode.Code {
		t.Fatal("should not need to exchange for a small payload in a 256-byte buffer")
		return statuscode.BadInternalError
	}

	st := codec.EncodeBinary(table, v, types.VariantDescriptor, state, noExchange, nil)
	require.True(t, st.IsGood())

	var pos int
	decoded, st := codec.DecodeBinary(table, state.Chunk[:state.Pos], &pos, types.VariantDescriptor)
	require.True(t, st.IsGood())

	got, ok := decoded.(*types.Variant)
	require.True(t, ok)
	assert.Equal(t, v.TypeID, got.TypeID)
	assert.Equal(t, v.Value, got.Value)
}

func TestConnectionHandlerEchoesDecodedMessage(t *testing.T) {
	table := types.NewBuiltinTable()
	h := NewConnectionHandler(table, &EchoService{}, 0, nil)

	v := &types.Variant{TypeID: uint8(types.TypeInt32), Value: int32(99)}
	size, err := codec.CalcSizeBinary(table, v, types.VariantDescriptor)
	require.NoError(t, err)
	state := &codec.EncodeState{Chunk: make([]byte, size), Pos: 0}
	st := codec.EncodeBinary(table, v, types.VariantDescriptor, state, func(codec.ChunkInfo, *codec.EncodeState) statuscode.Code {
		t.Fatal("payload fits in one exactly-sized buffer")
		return statuscode.BadInternalError
	}, nil)
	require.True(t, st.IsGood())

	replier := &mockReplier{}
	st = h.HandleMessage(replier, state.Chunk)
	require.True(t, st.IsGood())
	require.Len(t, replier.sent, 1)

	var pos int
	decoded, st := codec.DecodeBinary(table, replier.sent[0], &pos, types.VariantDescriptor)
	require.True(t, st.IsGood())
	got, ok := decoded.(*types.Variant)
	require.True(t, ok)
	assert.Equal(t, v.Value, got.Value)
}

func TestConnectionHandlerRejectsMalformedPayload(t *testing.T) {
	table := types.NewBuiltinTable()
	h := NewConnectionHandler(table, &EchoService{}, 0, nil)

	st := h.HandleMessage(&mockReplier{}, []byte{0xFF})
	assert.True(t, st.IsBad())
}
