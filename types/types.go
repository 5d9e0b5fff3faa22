// Package types implements the type-descriptor table (C1) and the value
// shapes the binary codec walks generically (the Value / Type Descriptor
// data model).
package types

// Kind enumerates the shapes a Descriptor can describe.
type Kind uint8

const (
	KindBoolean Kind = iota
	KindSByte
	KindByte
	KindInt16
	KindUInt16
	KindInt32
	KindUInt32
	KindInt64
	KindUInt64
	KindFloat
	KindDouble
	KindDateTime
	KindGuid
	KindStatusCode
	KindString
	KindByteString
	KindArray
	KindStructure
	KindVariant
	KindExtensionObject
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "Boolean"
	case KindSByte:
		return "SByte"
	case KindByte:
		return "Byte"
	case KindInt16:
		return "Int16"
	case KindUInt16:
		return "UInt16"
	case KindInt32:
		return "Int32"
	case KindUInt32:
		return "UInt32"
	case KindInt64:
		return "Int64"
	case KindUInt64:
		return "UInt64"
	case KindFloat:
		return "Float"
	case KindDouble:
		return "Double"
	case KindDateTime:
		return "DateTime"
	case KindGuid:
		return "Guid"
	case KindStatusCode:
		return "StatusCode"
	case KindString:
		return "String"
	case KindByteString:
		return "ByteString"
	case KindArray:
		return "Array"
	case KindStructure:
		return "Structure"
	case KindVariant:
		return "Variant"
	case KindExtensionObject:
		return "ExtensionObject"
	default:
		return "Unknown"
	}
}

// FieldDescriptor names one ordered field of a Structure.
type FieldDescriptor struct {
	Name       string
	Descriptor *Descriptor
}

// Descriptor is the runtime layout of a type, built once into a Table and
// shared read-only by every encode/decode call. Consumers may hold the
// pointer for the lifetime of the process; it outlives every encode/decode.
type Descriptor struct {
	ID          uint16
	Name        string
	Kind        Kind
	ElementType *Descriptor       // set when Kind == KindArray
	Fields      []FieldDescriptor // set when Kind == KindStructure
}

// VariantDescriptor is the shared top-level descriptor for any value of
// Kind == KindVariant; the contained type is data-driven (carried in the
// Variant value itself), so no further metadata is needed here.
var VariantDescriptor = &Descriptor{Name: "Variant", Kind: KindVariant}

// ExtensionObjectDescriptor is the shared top-level descriptor for any
// value of Kind == KindExtensionObject.
var ExtensionObjectDescriptor = &Descriptor{Name: "ExtensionObject", Kind: KindExtensionObject}

// Guid is the fixed 16-byte value representation of the Guid primitive.
type Guid struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// StatusCode is the wire value representation of the StatusCode primitive.
// It is distinct from package statuscode's Code, which is this codebase's
// own operation result type, not a wire value.
type StatusCode uint32

// Struct is the ordered field-value list backing a Kind == KindStructure
// value. Fields[i] corresponds to the i-th entry of the descriptor's Fields.
type Struct struct {
	Fields []any
}

// Variant is a self-describing value: a type id plus either a scalar or an
// array of that type, with optional array dimensions.
type Variant struct {
	TypeID     uint8
	IsArray    bool
	Value      any
	Dimensions []int32
}

// ExtensionObject carries an opaque, already-encoded body tagged with the
// type id of the structure it holds.
type ExtensionObject struct {
	TypeID uint16
	Body   []byte
}
