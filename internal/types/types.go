package types

import "strings"

// Type represents a type in the vex type system.
type Type interface {
	String() string
	// IsType is a marker method to ensure type safety.
	IsType()
}

// PrimitiveKind represents the kind of a primitive type.
type PrimitiveKind string

const (
	// Int and Float are the untyped defaults the checker falls back to when a
	// literal or inference site has no narrower width in scope (e.g. an
	// unannotated channel element type). Concrete vex source always resolves
	// to one of the width-typed kinds below.
	Int    PrimitiveKind = "int"
	Float  PrimitiveKind = "float"
	Bool   PrimitiveKind = "bool"
	String PrimitiveKind = "string"
	Nil    PrimitiveKind = "nil"
	Void   PrimitiveKind = "void"
	Byte   PrimitiveKind = "byte"

	Int8   PrimitiveKind = "i8"
	Int16  PrimitiveKind = "i16"
	Int32  PrimitiveKind = "i32"
	Int64  PrimitiveKind = "i64"
	Int128 PrimitiveKind = "i128"

	U8    PrimitiveKind = "u8"
	U16   PrimitiveKind = "u16"
	U32   PrimitiveKind = "u32"
	U64   PrimitiveKind = "u64"
	U128  PrimitiveKind = "u128"
	Usize PrimitiveKind = "usize"

	F16  PrimitiveKind = "f16"
	F32  PrimitiveKind = "f32"
	F64  PrimitiveKind = "f64"
	F128 PrimitiveKind = "f128"
)

// signedWidths, unsignedWidths and floatWidths record the bit width of every
// integer/float kind so Classify can compare widths without a second table.
var signedWidths = map[PrimitiveKind]int{
	Int8: 8, Int16: 16, Int32: 32, Int64: 64, Int128: 128,
}

var unsignedWidths = map[PrimitiveKind]int{
	U8: 8, U16: 16, U32: 32, U64: 64, U128: 128, Usize: 64,
}

var floatWidths = map[PrimitiveKind]int{
	F16: 16, F32: 32, F64: 64, F128: 128,
}

// IsSigned reports whether kind is one of the signed integer widths.
func (k PrimitiveKind) IsSigned() bool { _, ok := signedWidths[k]; return ok }

// IsUnsigned reports whether kind is one of the unsigned integer widths.
func (k PrimitiveKind) IsUnsigned() bool { _, ok := unsignedWidths[k]; return ok }

// IsFloat reports whether kind is one of the floating-point widths.
func (k PrimitiveKind) IsFloat() bool { _, ok := floatWidths[k]; return ok }

// IsInteger reports whether kind is any signed or unsigned integer width.
func (k PrimitiveKind) IsInteger() bool { return k.IsSigned() || k.IsUnsigned() }

// Width returns the bit width of an integer or float kind, or 0 if kind has
// no fixed width (bool, string, void, nil, byte, or the untyped defaults).
func (k PrimitiveKind) Width() int {
	if w, ok := signedWidths[k]; ok {
		return w
	}
	if w, ok := unsignedWidths[k]; ok {
		return w
	}
	if w, ok := floatWidths[k]; ok {
		return w
	}
	return 0
}

// Primitive represents a primitive type.
type Primitive struct {
	Kind PrimitiveKind
}

func (p *Primitive) String() string { return string(p.Kind) }
func (p *Primitive) IsType()        {}

// Common primitive instances
var (
	TypeInt    = &Primitive{Kind: Int}
	TypeFloat  = &Primitive{Kind: Float}
	TypeBool   = &Primitive{Kind: Bool}
	TypeString = &Primitive{Kind: String}
	TypeNil    = &Primitive{Kind: Nil}
	TypeVoid   = &Primitive{Kind: Void}
	TypeByte   = &Primitive{Kind: Byte}

	TypeInt8   = &Primitive{Kind: Int8}
	TypeInt16  = &Primitive{Kind: Int16}
	TypeInt32  = &Primitive{Kind: Int32}
	TypeInt64  = &Primitive{Kind: Int64}
	TypeInt128 = &Primitive{Kind: Int128}

	TypeU8    = &Primitive{Kind: U8}
	TypeU16   = &Primitive{Kind: U16}
	TypeU32   = &Primitive{Kind: U32}
	TypeU64   = &Primitive{Kind: U64}
	TypeU128  = &Primitive{Kind: U128}
	TypeUsize = &Primitive{Kind: Usize}

	TypeF16  = &Primitive{Kind: F16}
	TypeF32  = &Primitive{Kind: F32}
	TypeF64  = &Primitive{Kind: F64}
	TypeF128 = &Primitive{Kind: F128}
)

// Struct represents a struct type.
type Struct struct {
	Name       string
	TypeParams []TypeParam
	Fields     []Field
}

type Field struct {
	Name string
	Type Type
}

func (s *Struct) String() string { return s.Name }
func (s *Struct) IsType()        {}

// Enum represents an enum type.
type Enum struct {
	Name       string
	TypeParams []TypeParam
	Variants   []Variant
}

type Variant struct {
	Name    string
	Payload []Type // Can be empty for unit variants
}

func (e *Enum) String() string { return e.Name }
func (e *Enum) IsType()        {}

// Function represents a function type.
type Function struct {
	TypeParams []TypeParam
	Params     []Type
	Return     Type
}

func (f *Function) String() string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.String())
	}
	ret := "void"
	if f.Return != nil {
		ret = f.Return.String()
	}
	return "fn(" + strings.Join(params, ", ") + ") -> " + ret
}
func (f *Function) IsType() {}

// Channel represents a channel type.
type Channel struct {
	Elem Type
	Dir  ChanDir
}

type ChanDir int

const (
	SendRecv ChanDir = iota
	SendOnly
	RecvOnly
)

func (c *Channel) String() string {
	switch c.Dir {
	case SendOnly:
		return "chan<- " + c.Elem.String()
	case RecvOnly:
		return "<-chan " + c.Elem.String()
	default:
		return "chan " + c.Elem.String()
	}
}
func (c *Channel) IsType() {}

// Named represents a reference to a named type (like a struct or enum)
// that hasn't been fully resolved or is just a reference.
type Named struct {
	Name string
	Ref  Type // The actual type it refers to, if resolved
}

func (n *Named) String() string { return n.Name }
func (n *Named) IsType()        {}
