package ir

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wippyai/wasm-ir/errors"
)

// Literal is a constant value tagged with its type. Floats are stored as
// raw bit patterns so NaN payloads survive construction, serialization,
// and comparison. The zero Literal has TypeNone and is not a valid
// constant.
type Literal struct {
	bits uint64
	typ  Type
}

// Int32Literal creates an i32 constant.
func Int32Literal(v int32) Literal {
	return Literal{bits: uint64(uint32(v)), typ: TypeInt32}
}

// Int64Literal creates an i64 constant.
func Int64Literal(v int64) Literal {
	return Literal{bits: uint64(v), typ: TypeInt64}
}

// Float32Literal creates an f32 constant.
func Float32Literal(v float32) Literal {
	return Literal{bits: uint64(math.Float32bits(v)), typ: TypeFloat32}
}

// Float64Literal creates an f64 constant.
func Float64Literal(v float64) Literal {
	return Literal{bits: math.Float64bits(v), typ: TypeFloat64}
}

// Float32LiteralBits creates an f32 constant from a raw bit pattern.
func Float32LiteralBits(bits uint32) Literal {
	return Literal{bits: uint64(bits), typ: TypeFloat32}
}

// Float64LiteralBits creates an f64 constant from a raw bit pattern.
func Float64LiteralBits(bits uint64) Literal {
	return Literal{bits: bits, typ: TypeFloat64}
}

// Type returns the literal's value type.
func (l Literal) Type() Type {
	return l.typ
}

func (l Literal) mustBe(t Type, accessor string) {
	if l.typ != t {
		panic(errors.InvalidOperation(errors.PhaseBuild,
			"%s called on %s literal", accessor, l.typ))
	}
}

// I32 returns the i32 value. Panics if the literal holds another type.
func (l Literal) I32() int32 {
	l.mustBe(TypeInt32, "I32")
	return int32(uint32(l.bits))
}

// I64 returns the i64 value. Panics if the literal holds another type.
func (l Literal) I64() int64 {
	l.mustBe(TypeInt64, "I64")
	return int64(l.bits)
}

// F32 returns the f32 value. Panics if the literal holds another type.
func (l Literal) F32() float32 {
	l.mustBe(TypeFloat32, "F32")
	return math.Float32frombits(uint32(l.bits))
}

// F64 returns the f64 value. Panics if the literal holds another type.
func (l Literal) F64() float64 {
	l.mustBe(TypeFloat64, "F64")
	return math.Float64frombits(l.bits)
}

// F32Bits returns the raw f32 bit pattern. Panics if the literal holds
// another type.
func (l Literal) F32Bits() uint32 {
	l.mustBe(TypeFloat32, "F32Bits")
	return uint32(l.bits)
}

// F64Bits returns the raw f64 bit pattern. Panics if the literal holds
// another type.
func (l Literal) F64Bits() uint64 {
	l.mustBe(TypeFloat64, "F64Bits")
	return l.bits
}

// String renders the literal the way the text format spells constants.
func (l Literal) String() string {
	switch l.typ {
	case TypeInt32:
		return fmt.Sprintf("i32.const %d", l.I32())
	case TypeInt64:
		return fmt.Sprintf("i64.const %d", l.I64())
	case TypeFloat32:
		return "f32.const " + FormatFloat32(uint32(l.bits))
	case TypeFloat64:
		return "f64.const " + FormatFloat64(l.bits)
	}
	return "invalid literal"
}

// FormatFloat32 renders an f32 bit pattern in text format notation.
// Finite values use the shortest decimal form that parses back exactly;
// infinities and NaNs use the inf/nan:0x... spellings.
func FormatFloat32(bits uint32) string {
	f := math.Float32frombits(bits)
	switch {
	case math.IsInf(float64(f), 1):
		return "inf"
	case math.IsInf(float64(f), -1):
		return "-inf"
	case f != f:
		payload := bits & 0x7FFFFF
		if bits&0x80000000 != 0 {
			return fmt.Sprintf("-nan:0x%x", payload)
		}
		return fmt.Sprintf("nan:0x%x", payload)
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

// FormatFloat64 renders an f64 bit pattern in text format notation.
func FormatFloat64(bits uint64) string {
	f := math.Float64frombits(bits)
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f != f:
		payload := bits & 0xFFFFFFFFFFFFF
		if bits&0x8000000000000000 != 0 {
			return fmt.Sprintf("-nan:0x%x", payload)
		}
		return fmt.Sprintf("nan:0x%x", payload)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
