package codec

import (
	"encoding/binary"
	"math"

	"github.com/iosb-ics/opcua-gonm/statuscode"
	"github.com/iosb-ics/opcua-gonm/types"
)

// DecodeBinary reads a value shaped per d out of buf starting at *pos,
// advancing *pos past the bytes consumed. Unlike EncodeBinary this is not
// chunked: decode always runs against a single fully-assembled buffer (the
// reassembled message), matching how the network manager hands completed
// messages to its consumers.
func DecodeBinary(table *types.Table, buf []byte, pos *int, d *types.Descriptor) (any, statuscode.Code) {
	return decodeValue(table, buf, pos, d)
}

func need(buf []byte, pos *int, n int) statuscode.Code {
	if *pos+n > len(buf) {
		return statuscode.BadDecodingError
	}
	return statuscode.Good
}

func decodeValue(table *types.Table, buf []byte, pos *int, d *types.Descriptor) (any, statuscode.Code) {
	switch d.Kind {
	case types.KindBoolean:
		if st := need(buf, pos, 1); st.IsBad() {
			return nil, st
		}
		v := buf[*pos] != 0
		*pos++
		return v, statuscode.Good
	case types.KindSByte:
		if st := need(buf, pos, 1); st.IsBad() {
			return nil, st
		}
		v := int8(buf[*pos])
		*pos++
		return v, statuscode.Good
	case types.KindByte:
		if st := need(buf, pos, 1); st.IsBad() {
			return nil, st
		}
		v := buf[*pos]
		*pos++
		return v, statuscode.Good
	case types.KindInt16:
		if st := need(buf, pos, 2); st.IsBad() {
			return nil, st
		}
		v := int16(binary.LittleEndian.Uint16(buf[*pos:]))
		*pos += 2
		return v, statuscode.Good
	case types.KindUInt16:
		if st := need(buf, pos, 2); st.IsBad() {
			return nil, st
		}
		v := binary.LittleEndian.Uint16(buf[*pos:])
		*pos += 2
		return v, statuscode.Good
	case types.KindInt32:
		if st := need(buf, pos, 4); st.IsBad() {
			return nil, st
		}
		v := int32(binary.LittleEndian.Uint32(buf[*pos:]))
		*pos += 4
		return v, statuscode.Good
	case types.KindUInt32:
		if st := need(buf, pos, 4); st.IsBad() {
			return nil, st
		}
		v := binary.LittleEndian.Uint32(buf[*pos:])
		*pos += 4
		return v, statuscode.Good
	case types.KindStatusCode:
		if st := need(buf, pos, 4); st.IsBad() {
			return nil, st
		}
		v := types.StatusCode(binary.LittleEndian.Uint32(buf[*pos:]))
		*pos += 4
		return v, statuscode.Good
	case types.KindFloat:
		if st := need(buf, pos, 4); st.IsBad() {
			return nil, st
		}
		v := math.Float32frombits(binary.LittleEndian.Uint32(buf[*pos:]))
		*pos += 4
		return v, statuscode.Good
	case types.KindInt64:
		if st := need(buf, pos, 8); st.IsBad() {
			return nil, st
		}
		v := int64(binary.LittleEndian.Uint64(buf[*pos:]))
		*pos += 8
		return v, statuscode.Good
	case types.KindUInt64:
		if st := need(buf, pos, 8); st.IsBad() {
			return nil, st
		}
		v := binary.LittleEndian.Uint64(buf[*pos:])
		*pos += 8
		return v, statuscode.Good
	case types.KindDateTime:
		if st := need(buf, pos, 8); st.IsBad() {
			return nil, st
		}
		v := int64(binary.LittleEndian.Uint64(buf[*pos:]))
		*pos += 8
		return v, statuscode.Good
	case types.KindDouble:
		if st := need(buf, pos, 8); st.IsBad() {
			return nil, st
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf[*pos:]))
		*pos += 8
		return v, statuscode.Good
	case types.KindGuid:
		if st := need(buf, pos, 16); st.IsBad() {
			return nil, st
		}
		var g types.Guid
		g.Data1 = binary.LittleEndian.Uint32(buf[*pos : *pos+4])
		g.Data2 = binary.LittleEndian.Uint16(buf[*pos+4 : *pos+6])
		g.Data3 = binary.LittleEndian.Uint16(buf[*pos+6 : *pos+8])
		copy(g.Data4[:], buf[*pos+8:*pos+16])
		*pos += 16
		return g, statuscode.Good
	case types.KindString:
		b, st := decodeByteSequence(buf, pos)
		if st.IsBad() {
			return nil, st
		}
		if b == nil {
			return nil, statuscode.Good // null string decodes to nil, empty string to ""
		}
		return string(b), statuscode.Good
	case types.KindByteString:
		return decodeByteSequence(buf, pos)
	case types.KindArray:
		return decodeArray(table, buf, pos, d)
	case types.KindStructure:
		return decodeStruct(table, buf, pos, d)
	case types.KindVariant:
		return decodeVariant(table, buf, pos)
	case types.KindExtensionObject:
		return decodeExtensionObject(buf, pos)
	default:
		return nil, statuscode.BadDecodingError
	}
}

func decodeInt32(buf []byte, pos *int) (int32, statuscode.Code) {
	if st := need(buf, pos, 4); st.IsBad() {
		return 0, st
	}
	v := int32(binary.LittleEndian.Uint32(buf[*pos:]))
	*pos += 4
	return v, statuscode.Good
}

func decodeByteSequence(buf []byte, pos *int) ([]byte, statuscode.Code) {
	n, st := decodeInt32(buf, pos)
	if st.IsBad() {
		return nil, st
	}
	if n < 0 {
		return nil, statuscode.Good
	}
	if st := need(buf, pos, int(n)); st.IsBad() {
		return nil, st
	}
	b := make([]byte, n)
	copy(b, buf[*pos:*pos+int(n)])
	*pos += int(n)
	return b, statuscode.Good
}

func decodeArray(table *types.Table, buf []byte, pos *int, d *types.Descriptor) (any, statuscode.Code) {
	n, st := decodeInt32(buf, pos)
	if st.IsBad() {
		return nil, st
	}
	if n < 0 {
		return nil, statuscode.Good
	}
	out := make([]any, 0, n)
	for i := int32(0); i < n; i++ {
		v, st := decodeValue(table, buf, pos, d.ElementType)
		if st.IsBad() {
			return nil, st
		}
		out = append(out, v)
	}
	return out, statuscode.Good
}

func decodeStruct(table *types.Table, buf []byte, pos *int, d *types.Descriptor) (any, statuscode.Code) {
	s := &types.Struct{Fields: make([]any, len(d.Fields))}
	for i, f := range d.Fields {
		v, st := decodeValue(table, buf, pos, f.Descriptor)
		if st.IsBad() {
			return nil, st
		}
		s.Fields[i] = v
	}
	return s, statuscode.Good
}

func decodeVariant(table *types.Table, buf []byte, pos *int) (any, statuscode.Code) {
	if st := need(buf, pos, 1); st.IsBad() {
		return nil, st
	}
	mask := buf[*pos]
	*pos++
	typeID := mask & 0x3F
	isArray := mask&0x40 != 0
	hasDims := mask&0x80 != 0

	elemDesc, ok := table.Lookup(uint16(typeID))
	if !ok {
		return nil, statuscode.BadDecodingError
	}

	variant := &types.Variant{TypeID: typeID, IsArray: isArray}
	if isArray {
		arrDesc := &types.Descriptor{Kind: types.KindArray, ElementType: elemDesc}
		v, st := decodeArray(table, buf, pos, arrDesc)
		if st.IsBad() {
			return nil, st
		}
		variant.Value = v
	} else {
		v, st := decodeValue(table, buf, pos, elemDesc)
		if st.IsBad() {
			return nil, st
		}
		variant.Value = v
	}

	if hasDims {
		dimsDesc := &types.Descriptor{Kind: types.KindArray, ElementType: int32Descriptor}
		v, st := decodeArray(table, buf, pos, dimsDesc)
		if st.IsBad() {
			return nil, st
		}
		dimsAny, _ := v.([]any)
		dims := make([]int32, len(dimsAny))
		for i, e := range dimsAny {
			dims[i], _ = e.(int32)
		}
		variant.Dimensions = dims
	}
	return variant, statuscode.Good
}

func decodeExtensionObject(buf []byte, pos *int) (any, statuscode.Code) {
	if st := need(buf, pos, 2); st.IsBad() {
		return nil, st
	}
	typeID := binary.LittleEndian.Uint16(buf[*pos:])
	*pos += 2
	if st := need(buf, pos, 1); st.IsBad() {
		return nil, st
	}
	hasBody := buf[*pos]
	*pos++
	if hasBody == 0 {
		_, st := decodeByteSequence(buf, pos) // consume the -1 length marker
		if st.IsBad() {
			return nil, st
		}
		return &types.ExtensionObject{TypeID: typeID, Body: nil}, statuscode.Good
	}
	body, st := decodeByteSequence(buf, pos)
	if st.IsBad() {
		return nil, st
	}
	return &types.ExtensionObject{TypeID: typeID, Body: body}, statuscode.Good
}
