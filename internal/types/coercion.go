package types

import "strings"

// literalSuffixKinds maps an explicit numeric literal suffix (e.g. the
// "i64" in "1_i64") to its primitive kind.
var literalSuffixKinds = map[string]*Primitive{
	"i8": TypeInt8, "i16": TypeInt16, "i32": TypeInt32, "i64": TypeInt64, "i128": TypeInt128,
	"u8": TypeU8, "u16": TypeU16, "u32": TypeU32, "u64": TypeU64, "u128": TypeU128, "usize": TypeUsize,
	"f16": TypeF16, "f32": TypeF32, "f64": TypeF64, "f128": TypeF128,
}

// integerLitType returns the type of an integer literal, honoring an
// explicit width suffix (`1_i64` -> i64) and otherwise defaulting to i32.
func integerLitType(text string) *Primitive {
	if suffix, ok := splitLiteralSuffix(text); ok {
		if kind, ok := literalSuffixKinds[suffix]; ok {
			return kind
		}
	}
	return TypeInt32
}

// floatLitType returns the type of a float literal, honoring an explicit
// width suffix (`1.5_f32` -> f32) and otherwise defaulting to f64.
func floatLitType(text string) *Primitive {
	if suffix, ok := splitLiteralSuffix(text); ok {
		if kind, ok := literalSuffixKinds[suffix]; ok {
			return kind
		}
	}
	return TypeF64
}

// isIntegerType reports whether t is any signed/unsigned integer width, or
// the untyped Int default.
func isIntegerType(t Type) bool {
	prim, ok := t.(*Primitive)
	if !ok {
		return false
	}
	return prim.Kind == Int || prim.Kind.IsInteger()
}

// splitLiteralSuffix extracts a trailing `_<suffix>` from a numeric literal's
// raw text, as produced by the lexer's readNumericSuffix.
func splitLiteralSuffix(text string) (string, bool) {
	idx := strings.LastIndexByte(text, '_')
	if idx < 0 {
		return "", false
	}
	return text[idx+1:], true
}

// CoercionKind classifies how one primitive type may convert to another
// without an explicit `as` cast.
type CoercionKind int

const (
	// Safe coercions apply implicitly wherever the source type is used.
	Safe CoercionKind = iota
	// Unsafe coercions require an enclosing `unsafe {}` block; outside one
	// they are a checker error.
	Unsafe
	// Forbidden coercions are always an error, unsafe block or not. An
	// explicit `as` cast bypasses this classification entirely.
	Forbidden
)

func (k CoercionKind) String() string {
	switch k {
	case Safe:
		return "safe"
	case Unsafe:
		return "unsafe"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Classify implements the coercion lattice from the language's coercion
// table: identical types and same-signedness widenings are Safe, narrowing
// within a signedness class is Unsafe, and crossing signed/unsigned or
// int/float is Forbidden.
//
// Only *Primitive pairs are classified; any other combination of types
// (including a Primitive paired with a non-Primitive) is Forbidden, since
// there is no implicit coercion between structural types.
func Classify(from, to Type) CoercionKind {
	src, ok := from.(*Primitive)
	if !ok {
		return Forbidden
	}
	dst, ok := to.(*Primitive)
	if !ok {
		return Forbidden
	}

	if src.Kind == dst.Kind {
		return Safe
	}

	switch {
	case src.Kind.IsSigned() && dst.Kind.IsSigned():
		return widenOrNarrow(src.Kind, dst.Kind)
	case src.Kind.IsUnsigned() && dst.Kind.IsUnsigned():
		return widenOrNarrow(src.Kind, dst.Kind)
	case src.Kind.IsFloat() && dst.Kind.IsFloat():
		return widenOrNarrow(src.Kind, dst.Kind)
	case src.Kind.IsInteger() && dst.Kind.IsInteger():
		// Signed <-> unsigned, regardless of width.
		return Forbidden
	case src.Kind.IsInteger() && dst.Kind.IsFloat(), src.Kind.IsFloat() && dst.Kind.IsInteger():
		return Forbidden
	default:
		return Forbidden
	}
}

// widenOrNarrow compares two kinds of the same signedness class (both
// signed, both unsigned, or both float) and classifies the conversion by
// relative width.
func widenOrNarrow(src, dst PrimitiveKind) CoercionKind {
	if dst.Width() >= src.Width() {
		return Safe
	}
	return Unsafe
}
