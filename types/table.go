package types

import "fmt"

// Well-known builtin type ids. Values stay within 6 bits (0-63) because a
// Variant's wire encoding packs the contained type id into the low 6 bits
// of its one-byte mask.
const (
	TypeBoolean uint16 = iota + 1
	TypeSByte
	TypeByte
	TypeInt16
	TypeUInt16
	TypeInt32
	TypeUInt32
	TypeInt64
	TypeUInt64
	TypeFloat
	TypeDouble
	TypeDateTime
	TypeGuid
	TypeStatusCode
	TypeString
	TypeByteString
)

// Table is the read-only type-descriptor registry. Built once via
// NewBuiltinTable and never mutated afterward.
type Table struct {
	byID map[uint16]*Descriptor
}

// NewBuiltinTable builds the registry of primitive descriptors this codec
// understands out of the box. Called exactly once during process
// initialization; the returned Table is shared read-only thereafter.
func NewBuiltinTable() *Table {
	t := &Table{byID: make(map[uint16]*Descriptor, 16)}
	prim := func(id uint16, name string, kind Kind) {
		t.byID[id] = &Descriptor{ID: id, Name: name, Kind: kind}
	}
	prim(TypeBoolean, "Boolean", KindBoolean)
	prim(TypeSByte, "SByte", KindSByte)
	prim(TypeByte, "Byte", KindByte)
	prim(TypeInt16, "Int16", KindInt16)
	prim(TypeUInt16, "UInt16", KindUInt16)
	prim(TypeInt32, "Int32", KindInt32)
	prim(TypeUInt32, "UInt32", KindUInt32)
	prim(TypeInt64, "Int64", KindInt64)
	prim(TypeUInt64, "UInt64", KindUInt64)
	prim(TypeFloat, "Float", KindFloat)
	prim(TypeDouble, "Double", KindDouble)
	prim(TypeDateTime, "DateTime", KindDateTime)
	prim(TypeGuid, "Guid", KindGuid)
	prim(TypeStatusCode, "StatusCode", KindStatusCode)
	prim(TypeString, "String", KindString)
	prim(TypeByteString, "ByteString", KindByteString)
	return t
}

// Lookup returns the descriptor registered for id, if any.
func (t *Table) Lookup(id uint16) (*Descriptor, bool) {
	d, ok := t.byID[id]
	return d, ok
}

// MustLookup is Lookup but panics on an unknown id.
func (t *Table) MustLookup(id uint16) *Descriptor {
	d, ok := t.byID[id]
	if !ok {
		panic(fmt.Sprintf("types: unknown type id %d", id))
	}
	return d
}

// Register adds a non-builtin descriptor (e.g. an application-defined
// structure) to the table before the read-only phase begins.
func (t *Table) Register(d *Descriptor) {
	t.byID[d.ID] = d
}
