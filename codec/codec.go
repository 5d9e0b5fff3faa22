// Package codec implements the chunked binary codec (C2): a streaming
// encoder that serializes typed values into caller-supplied fixed-capacity
// buffers, requesting a new buffer via a callback whenever the current one
// fills, and a single-buffer decoder for the same wire format.
//
// Little-endian, unaligned, no padding — see the wire format rules in the
// package's tests for worked examples (chunked array/string encode,
// round-trip, null-vs-empty string).
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/iosb-ics/opcua-gonm/statuscode"
	"github.com/iosb-ics/opcua-gonm/types"
)

// maxPrimitiveWidth bounds the widest primitive the encoder ever writes in
// one go (a Guid, 16 bytes). The exchange callback contract guarantees
// every fresh window is at least this wide.
const maxPrimitiveWidth = 16

// ChunkInfo is opaque per-encode context handed back to the exchange
// callback unexamined. In a full secure-channel stack it would carry
// channel/session identifiers; here it is whatever the caller wants.
type ChunkInfo any

// EncodeState is the mutable (chunk, cursor) pair the encoder writes
// through. Chunk is the active buffer; Pos is the write cursor, always in
// [0, len(Chunk)].
type EncodeState struct {
	Chunk []byte
	Pos   int
}

// ExchangeFunc is invoked when the current chunk has no room left for the
// next write. It must either install a fresh writable window into state
// and return statuscode.Good, or return a non-Good status that aborts the
// encode.
type ExchangeFunc func(info ChunkInfo, state *EncodeState) statuscode.Code

// CalcSizeBinary returns the exact number of bytes a call to EncodeBinary
// with the same arguments will write. Pure and deterministic; has no side
// effects and never invokes any callback.
func CalcSizeBinary(table *types.Table, v any, d *types.Descriptor) (int, error) {
	return sizeOf(table, v, d)
}

func sizeOf(table *types.Table, v any, d *types.Descriptor) (int, error) {
	switch d.Kind {
	case types.KindBoolean, types.KindSByte, types.KindByte:
		return 1, nil
	case types.KindInt16, types.KindUInt16:
		return 2, nil
	case types.KindInt32, types.KindUInt32, types.KindFloat, types.KindStatusCode:
		return 4, nil
	case types.KindInt64, types.KindUInt64, types.KindDouble, types.KindDateTime:
		return 8, nil
	case types.KindGuid:
		return 16, nil
	case types.KindString, types.KindByteString:
		b, isNull := toBytes(v)
		if isNull {
			return 4, nil
		}
		return 4 + len(b), nil
	case types.KindArray:
		return sizeOfArray(table, v, d)
	case types.KindStructure:
		return sizeOfStruct(table, v, d)
	case types.KindVariant:
		return sizeOfVariant(table, v)
	case types.KindExtensionObject:
		return sizeOfExtensionObject(v)
	default:
		return 0, fmt.Errorf("codec: unsupported descriptor kind %s", d.Kind)
	}
}

func sizeOfArray(table *types.Table, v any, d *types.Descriptor) (int, error) {
	if v == nil {
		return 4, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return 0, fmt.Errorf("codec: array value must be []any or nil, got %T", v)
	}
	total := 4
	for _, e := range arr {
		n, err := sizeOf(table, e, d.ElementType)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func sizeOfStruct(table *types.Table, v any, d *types.Descriptor) (int, error) {
	s, ok := v.(*types.Struct)
	if !ok {
		return 0, fmt.Errorf("codec: structure value must be *types.Struct, got %T", v)
	}
	if len(s.Fields) != len(d.Fields) {
		return 0, fmt.Errorf("codec: structure has %d fields, descriptor wants %d", len(s.Fields), len(d.Fields))
	}
	total := 0
	for i, f := range d.Fields {
		n, err := sizeOf(table, s.Fields[i], f.Descriptor)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func sizeOfVariant(table *types.Table, v any) (int, error) {
	variant, ok := v.(*types.Variant)
	if !ok {
		return 0, fmt.Errorf("codec: variant value must be *types.Variant, got %T", v)
	}
	elemDesc, ok := table.Lookup(uint16(variant.TypeID))
	if !ok {
		return 0, fmt.Errorf("codec: variant references unknown type id %d", variant.TypeID)
	}
	total := 1 // mask byte
	if variant.IsArray {
		n, err := sizeOfArray(table, variant.Value, &types.Descriptor{Kind: types.KindArray, ElementType: elemDesc})
		if err != nil {
			return 0, err
		}
		total += n
	} else {
		n, err := sizeOf(table, variant.Value, elemDesc)
		if err != nil {
			return 0, err
		}
		total += n
	}
	if len(variant.Dimensions) > 0 {
		dims := dimsToAny(variant.Dimensions)
		n, err := sizeOfArray(table, dims, &types.Descriptor{Kind: types.KindArray, ElementType: int32Descriptor})
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func sizeOfExtensionObject(v any) (int, error) {
	eo, ok := v.(*types.ExtensionObject)
	if !ok {
		return 0, fmt.Errorf("codec: extension object value must be *types.ExtensionObject, got %T", v)
	}
	return 2 + 1 + 4 + len(eo.Body), nil // type id (2) + encoding byte (1) + byte-string body
}

var int32Descriptor = &types.Descriptor{Name: "Int32", Kind: types.KindInt32}

func dimsToAny(dims []int32) []any {
	out := make([]any, len(dims))
	for i, d := range dims {
		out[i] = d
	}
	return out
}

// toBytes normalizes a string/byte-string value to its raw bytes. The bool
// result is true when v represents the null value (nil).
func toBytes(v any) ([]byte, bool) {
	if v == nil {
		return nil, true
	}
	switch b := v.(type) {
	case []byte:
		if b == nil {
			return nil, true
		}
		return b, false
	case string:
		return []byte(b), false
	default:
		return nil, true
	}
}

// EncodeBinary writes v (shaped per d) starting at state.Pos, never past
// len(state.Chunk). When space would be exceeded it invokes exchange,
// which must install a fresh window or return a non-Good status that is
// propagated as the result.
func EncodeBinary(table *types.Table, v any, d *types.Descriptor, state *EncodeState, exchange ExchangeFunc, info ChunkInfo) statuscode.Code {
	return encodeValue(table, v, d, state, exchange, info)
}

func encodeValue(table *types.Table, v any, d *types.Descriptor, state *EncodeState, exchange ExchangeFunc, info ChunkInfo) statuscode.Code {
	switch d.Kind {
	case types.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return statuscode.BadEncodingError
		}
		var raw byte
		if b {
			raw = 1
		}
		return writeBytes(state, exchange, info, []byte{raw})
	case types.KindSByte:
		n, ok := v.(int8)
		if !ok {
			return statuscode.BadEncodingError
		}
		return writeBytes(state, exchange, info, []byte{byte(n)})
	case types.KindByte:
		n, ok := v.(byte)
		if !ok {
			return statuscode.BadEncodingError
		}
		return writeBytes(state, exchange, info, []byte{n})
	case types.KindInt16:
		n, ok := v.(int16)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(n))
		return writeBytes(state, exchange, info, buf[:])
	case types.KindUInt16:
		n, ok := v.(uint16)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], n)
		return writeBytes(state, exchange, info, buf[:])
	case types.KindInt32:
		n, ok := v.(int32)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(n))
		return writeBytes(state, exchange, info, buf[:])
	case types.KindUInt32:
		n, ok := v.(uint32)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], n)
		return writeBytes(state, exchange, info, buf[:])
	case types.KindStatusCode:
		n, ok := v.(types.StatusCode)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(n))
		return writeBytes(state, exchange, info, buf[:])
	case types.KindFloat:
		f, ok := v.(float32)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
		return writeBytes(state, exchange, info, buf[:])
	case types.KindInt64:
		n, ok := v.(int64)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		return writeBytes(state, exchange, info, buf[:])
	case types.KindUInt64:
		n, ok := v.(uint64)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], n)
		return writeBytes(state, exchange, info, buf[:])
	case types.KindDateTime:
		n, ok := v.(int64)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		return writeBytes(state, exchange, info, buf[:])
	case types.KindDouble:
		f, ok := v.(float64)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		return writeBytes(state, exchange, info, buf[:])
	case types.KindGuid:
		g, ok := v.(types.Guid)
		if !ok {
			return statuscode.BadEncodingError
		}
		var buf [16]byte
		binary.LittleEndian.PutUint32(buf[0:4], g.Data1)
		binary.LittleEndian.PutUint16(buf[4:6], g.Data2)
		binary.LittleEndian.PutUint16(buf[6:8], g.Data3)
		copy(buf[8:16], g.Data4[:])
		return writeBytes(state, exchange, info, buf[:])
	case types.KindString, types.KindByteString:
		b, isNull := toBytes(v)
		return encodeByteSequence(b, isNull, state, exchange, info)
	case types.KindArray:
		return encodeArray(table, v, d, state, exchange, info)
	case types.KindStructure:
		return encodeStruct(table, v, d, state, exchange, info)
	case types.KindVariant:
		return encodeVariant(table, v, state, exchange, info)
	case types.KindExtensionObject:
		return encodeExtensionObject(v, state, exchange, info)
	default:
		return statuscode.BadEncodingError
	}
}

// ensure invokes exchange when the next n bytes (n <= maxPrimitiveWidth)
// would not fit in the remaining space of the current chunk.
func ensure(state *EncodeState, exchange ExchangeFunc, info ChunkInfo, n int) statuscode.Code {
	if state.Pos+n <= len(state.Chunk) {
		return statuscode.Good
	}
	return exchange(info, state)
}

// writeBytes writes a primitive (width <= maxPrimitiveWidth) atomically,
// requesting a fresh chunk first if needed. It never straddles a boundary.
func writeBytes(state *EncodeState, exchange ExchangeFunc, info ChunkInfo, b []byte) statuscode.Code {
	if st := ensure(state, exchange, info, len(b)); !st.IsGood() {
		return st
	}
	n := copy(state.Chunk[state.Pos:], b)
	state.Pos += n
	return statuscode.Good
}

// writeInt32 writes a signed 32-bit length prefix (or -1 for null) as an
// atomic primitive write.
func writeInt32(state *EncodeState, exchange ExchangeFunc, info ChunkInfo, n int32) statuscode.Code {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(n))
	return writeBytes(state, exchange, info, buf[:])
}

// drainPayload copies a variable-length byte payload into the chunk
// sequence, issuing as many full-chunk writes as needed and invoking
// exchange between chunks. Unlike writeBytes, this payload may straddle
// chunk boundaries freely — only the length prefix preceding it is atomic.
func drainPayload(payload []byte, state *EncodeState, exchange ExchangeFunc, info ChunkInfo) statuscode.Code {
	off := 0
	remaining := len(payload)
	for remaining > 0 {
		avail := len(state.Chunk) - state.Pos
		if avail == 0 {
			if st := exchange(info, state); !st.IsGood() {
				return st
			}
			avail = len(state.Chunk) - state.Pos
		}
		n := remaining
		if n > avail {
			n = avail
		}
		copy(state.Chunk[state.Pos:], payload[off:off+n])
		state.Pos += n
		off += n
		remaining -= n
	}
	return statuscode.Good
}

func encodeByteSequence(b []byte, isNull bool, state *EncodeState, exchange ExchangeFunc, info ChunkInfo) statuscode.Code {
	if isNull {
		return writeInt32(state, exchange, info, -1)
	}
	if st := writeInt32(state, exchange, info, int32(len(b))); !st.IsGood() {
		return st
	}
	if len(b) == 0 {
		return statuscode.Good
	}
	return drainPayload(b, state, exchange, info)
}

func encodeArray(table *types.Table, v any, d *types.Descriptor, state *EncodeState, exchange ExchangeFunc, info ChunkInfo) statuscode.Code {
	if v == nil {
		return writeInt32(state, exchange, info, -1)
	}
	arr, ok := v.([]any)
	if !ok {
		return statuscode.BadEncodingError
	}
	if st := writeInt32(state, exchange, info, int32(len(arr))); !st.IsGood() {
		return st
	}
	for _, e := range arr {
		if st := encodeValue(table, e, d.ElementType, state, exchange, info); !st.IsGood() {
			return st
		}
	}
	return statuscode.Good
}

func encodeStruct(table *types.Table, v any, d *types.Descriptor, state *EncodeState, exchange ExchangeFunc, info ChunkInfo) statuscode.Code {
	s, ok := v.(*types.Struct)
	if !ok || len(s.Fields) != len(d.Fields) {
		return statuscode.BadEncodingError
	}
	for i, f := range d.Fields {
		if st := encodeValue(table, s.Fields[i], f.Descriptor, state, exchange, info); !st.IsGood() {
			return st
		}
	}
	return statuscode.Good
}

func encodeVariant(table *types.Table, v any, state *EncodeState, exchange ExchangeFunc, info ChunkInfo) statuscode.Code {
	variant, ok := v.(*types.Variant)
	if !ok {
		return statuscode.BadEncodingError
	}
	elemDesc, ok := table.Lookup(uint16(variant.TypeID))
	if !ok {
		return statuscode.BadEncodingError
	}

	mask := variant.TypeID & 0x3F
	if variant.IsArray {
		mask |= 0x40
	}
	hasDims := len(variant.Dimensions) > 0
	if hasDims {
		mask |= 0x80
	}
	if st := writeBytes(state, exchange, info, []byte{mask}); !st.IsGood() {
		return st
	}

	if variant.IsArray {
		arrDesc := &types.Descriptor{Kind: types.KindArray, ElementType: elemDesc}
		if st := encodeArray(table, variant.Value, arrDesc, state, exchange, info); !st.IsGood() {
			return st
		}
	} else {
		if st := encodeValue(table, variant.Value, elemDesc, state, exchange, info); !st.IsGood() {
			return st
		}
	}

	if hasDims {
		dimsDesc := &types.Descriptor{Kind: types.KindArray, ElementType: int32Descriptor}
		if st := encodeArray(table, dimsToAny(variant.Dimensions), dimsDesc, state, exchange, info); !st.IsGood() {
			return st
		}
	}
	return statuscode.Good
}

func encodeExtensionObject(v any, state *EncodeState, exchange ExchangeFunc, info ChunkInfo) statuscode.Code {
	eo, ok := v.(*types.ExtensionObject)
	if !ok {
		return statuscode.BadEncodingError
	}
	var idBuf [2]byte
	binary.LittleEndian.PutUint16(idBuf[:], eo.TypeID)
	if st := writeBytes(state, exchange, info, idBuf[:]); !st.IsGood() {
		return st
	}
	hasBody := byte(0)
	if eo.Body != nil {
		hasBody = 1
	}
	if st := writeBytes(state, exchange, info, []byte{hasBody}); !st.IsGood() {
		return st
	}
	return encodeByteSequence(eo.Body, eo.Body == nil, state, exchange, info)
}
