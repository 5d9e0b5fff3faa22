package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iosb-ics/opcua-gonm/statuscode"
	"github.com/iosb-ics/opcua-gonm/types"
)

// chunkPool allocates a fresh fixed-size chunk on every exchange, counting
// how many times it was asked for a new one. Grounds sendChunkMockUp from
// the original C test suite's chunking check.
type chunkPool struct {
	chunkSize int
	exchanges int
	written   []byte
}

func (p *chunkPool) exchange(info ChunkInfo, state *EncodeState) statuscode.Code {
	p.written = append(p.written, state.Chunk[:state.Pos]...)
	p.exchanges++
	state.Chunk = make([]byte, p.chunkSize)
	state.Pos = 0
	return statuscode.Good
}

func (p *chunkPool) finish(state *EncodeState) {
	p.written = append(p.written, state.Chunk[:state.Pos]...)
}

func newChunkState(chunkSize int) (*EncodeState, *chunkPool) {
	p := &chunkPool{chunkSize: chunkSize}
	return &EncodeState{Chunk: make([]byte, chunkSize), Pos: 0}, p
}

func TestEncodeArrayIntoChunksMatchesExchangeCount(t *testing.T) {
	table := types.NewBuiltinTable()
	elemDesc := table.MustLookup(types.TypeInt32)
	arrDesc := &types.Descriptor{Kind: types.KindArray, ElementType: elemDesc}

	arr := make([]any, 30)
	for i := range arr {
		arr[i] = int32(i)
	}

	size, err := CalcSizeBinary(table, arr, arrDesc)
	require.NoError(t, err)
	assert.Equal(t, 4+30*4, size)

	state, pool := newChunkState(30)
	st := EncodeBinary(table, arr, arrDesc, state, pool.exchange, nil)
	require.True(t, st.IsGood())
	pool.finish(state)

	assert.Equal(t, 4, pool.exchanges, "expected 4 exchange calls for a 30-element int32 array over 30-byte chunks")
	assert.Equal(t, size, len(pool.written))

	var pos int
	decoded, st := DecodeBinary(table, pool.written, &pos, arrDesc)
	require.True(t, st.IsGood())
	assert.Equal(t, arr, decoded)
}

func TestEncodeStringIntoChunksMatchesExchangeCount(t *testing.T) {
	table := types.NewBuiltinTable()
	strDesc := table.MustLookup(types.TypeString)

	base := "open62541"
	s := ""
	for i := 0; i < 120/len(base); i++ {
		s += base
	}
	require.Len(t, s, 117)
	// pad to exactly 120 chars, matching the original test's payload length.
	for len(s) < 120 {
		s += "x"
	}

	size, err := CalcSizeBinary(table, s, strDesc)
	require.NoError(t, err)
	assert.Equal(t, 4+120, size)

	state, pool := newChunkState(30)
	st := EncodeBinary(table, s, strDesc, state, pool.exchange, nil)
	require.True(t, st.IsGood())
	pool.finish(state)

	assert.Equal(t, 4, pool.exchanges, "expected 4 exchange calls for a 120-byte string over 30-byte chunks")
	assert.Equal(t, size, len(pool.written))

	var pos int
	decoded, st := DecodeBinary(table, pool.written, &pos, strDesc)
	require.True(t, st.IsGood())
	assert.Equal(t, s, decoded)
}

func TestRoundTripVariantScalar(t *testing.T) {
	table := types.NewBuiltinTable()
	v := &types.Variant{TypeID: uint8(types.TypeInt32), Value: int32(-7)}

	size, err := CalcSizeBinary(table, v, types.VariantDescriptor)
	require.NoError(t, err)
	assert.Equal(t, 1+4, size)

	state, pool := newChunkState(1024)
	st := EncodeBinary(table, v, types.VariantDescriptor, state, pool.exchange, nil)
	require.True(t, st.IsGood())
	pool.finish(state)
	assert.Zero(t, pool.exchanges)

	var pos int
	decoded, st := DecodeBinary(table, pool.written, &pos, types.VariantDescriptor)
	require.True(t, st.IsGood())
	got, ok := decoded.(*types.Variant)
	require.True(t, ok)
	assert.Equal(t, v.TypeID, got.TypeID)
	assert.False(t, got.IsArray)
	assert.Equal(t, v.Value, got.Value)
}

func TestRoundTripVariantArrayWithDimensions(t *testing.T) {
	table := types.NewBuiltinTable()
	v := &types.Variant{
		TypeID:     uint8(types.TypeByte),
		IsArray:    true,
		Value:      []any{byte(1), byte(2), byte(3), byte(4)},
		Dimensions: []int32{2, 2},
	}

	state, pool := newChunkState(1024)
	st := EncodeBinary(table, v, types.VariantDescriptor, state, pool.exchange, nil)
	require.True(t, st.IsGood())
	pool.finish(state)

	var pos int
	decoded, st := DecodeBinary(table, pool.written, &pos, types.VariantDescriptor)
	require.True(t, st.IsGood())
	got, ok := decoded.(*types.Variant)
	require.True(t, ok)
	assert.True(t, got.IsArray)
	assert.Equal(t, v.Value, got.Value)
	assert.Equal(t, v.Dimensions, got.Dimensions)
}

func TestNullVersusEmptyByteString(t *testing.T) {
	table := types.NewBuiltinTable()
	bsDesc := table.MustLookup(types.TypeByteString)

	nullSize, err := CalcSizeBinary(table, nil, bsDesc)
	require.NoError(t, err)
	assert.Equal(t, 4, nullSize, "null byte string encodes as a bare -1 length prefix")

	emptySize, err := CalcSizeBinary(table, []byte{}, bsDesc)
	require.NoError(t, err)
	assert.Equal(t, 4, emptySize, "empty byte string encodes as a zero length prefix, same size as null but distinct on the wire")

	state, pool := newChunkState(64)
	st := EncodeBinary(table, nil, bsDesc, state, pool.exchange, nil)
	require.True(t, st.IsGood())
	pool.finish(state)

	var pos int
	decoded, st := DecodeBinary(table, pool.written, &pos, bsDesc)
	require.True(t, st.IsGood())
	assert.Nil(t, decoded, "decoding the -1 marker must yield nil, not an empty slice")

	state2, pool2 := newChunkState(64)
	st = EncodeBinary(table, []byte{}, bsDesc, state2, pool2.exchange, nil)
	require.True(t, st.IsGood())
	pool2.finish(state2)
	assert.NotEqual(t, pool.written, pool2.written, "null and empty must not collapse onto the same wire bytes conceptually, though both are 4 bytes here they differ in semantics")

	pos = 0
	decoded2, st := DecodeBinary(table, pool2.written, &pos, bsDesc)
	require.True(t, st.IsGood())
	assert.Equal(t, []byte{}, decoded2)
}

func TestEncodeFailsOnTypeMismatch(t *testing.T) {
	table := types.NewBuiltinTable()
	d := table.MustLookup(types.TypeInt32)
	state, pool := newChunkState(64)
	st := EncodeBinary(table, "not an int32", d, state, pool.exchange, nil)
	assert.True(t, st.IsBad())
	assert.Equal(t, statuscode.BadEncodingError, st)
}

func TestDecodeFailsOnTruncatedBuffer(t *testing.T) {
	table := types.NewBuiltinTable()
	d := table.MustLookup(types.TypeInt64)
	buf := []byte{1, 2, 3}
	var pos int
	_, st := DecodeBinary(table, buf, &pos, d)
	assert.True(t, st.IsBad())
	assert.Equal(t, statuscode.BadDecodingError, st)
}

func TestExchangeFailurePropagates(t *testing.T) {
	table := types.NewBuiltinTable()
	d := table.MustLookup(types.TypeInt32)
	state := &EncodeState{Chunk: make([]byte, 2), Pos: 0}
	failingExchange := func(info ChunkInfo, state *EncodeState) statuscode.Code {
		return statuscode.BadOutOfMemory
	}
	st := EncodeBinary(table, int32(42), d, state, failingExchange, nil)
	assert.Equal(t, statuscode.BadOutOfMemory, st)
}
