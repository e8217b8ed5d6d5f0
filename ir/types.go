package ir

// Type is the value type of an expression or storage slot.
type Type uint8

const (
	// TypeNone marks statements: expressions that produce no value.
	TypeNone Type = iota

	// TypeInt32 is a 32-bit integer.
	TypeInt32

	// TypeInt64 is a 64-bit integer.
	TypeInt64

	// TypeFloat32 is a 32-bit IEEE 754 float.
	TypeFloat32

	// TypeFloat64 is a 64-bit IEEE 754 float.
	TypeFloat64

	// TypeUnreachable marks expressions after which control never falls
	// through, such as an unconditional break or return.
	TypeUnreachable

	// TypeAuto requests type inference. It is only meaningful as a block
	// type hint passed to a factory; no constructed node carries it.
	TypeAuto
)

var typeNames = [...]string{
	TypeNone:        "none",
	TypeInt32:       "i32",
	TypeInt64:       "i64",
	TypeFloat32:     "f32",
	TypeFloat64:     "f64",
	TypeUnreachable: "unreachable",
	TypeAuto:        "auto",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "invalid"
}

// IsConcrete reports whether t is one of the four value types.
func (t Type) IsConcrete() bool {
	return t >= TypeInt32 && t <= TypeFloat64
}

// IsFloat reports whether t is a floating point type.
func (t Type) IsFloat() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// IsInteger reports whether t is an integer type.
func (t Type) IsInteger() bool {
	return t == TypeInt32 || t == TypeInt64
}

// Size returns the byte width of a concrete type, 0 otherwise.
func (t Type) Size() uint8 {
	switch t {
	case TypeInt32, TypeFloat32:
		return 4
	case TypeInt64, TypeFloat64:
		return 8
	}
	return 0
}

// TypeByName resolves a text format type name ("i32", "f64").
func TypeByName(name string) (Type, bool) {
	switch name {
	case "i32":
		return TypeInt32, true
	case "i64":
		return TypeInt64, true
	case "f32":
		return TypeFloat32, true
	case "f64":
		return TypeFloat64, true
	case "none":
		return TypeNone, true
	}
	return TypeNone, false
}
