package ir

import "strings"

// Signature is an interned function type: a parameter list and a single
// optional result. Signatures are registered and deduplicated by name
// through Module.AddFunctionType; pointer equality is interning equality.
type Signature struct {
	name   string
	params []Type
	result Type
}

// Name returns the signature's interned name.
func (s *Signature) Name() string { return s.name }

// Params returns the parameter types. The slice is owned by the signature
// and must not be modified.
func (s *Signature) Params() []Type { return s.params }

// Result returns the result type, TypeNone for no result.
func (s *Signature) Result() Type { return s.result }

// Matches reports whether the signature has exactly the given shape.
func (s *Signature) Matches(result Type, params []Type) bool {
	if s.result != result || len(s.params) != len(params) {
		return false
	}
	for i, p := range params {
		if s.params[i] != p {
			return false
		}
	}
	return true
}

// String renders the shape for diagnostics, such as "(i32, i32) -> i32".
func (s *Signature) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range s.params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	b.WriteString(s.result.String())
	return b.String()
}

var shapeCodes = map[Type]byte{
	TypeNone:    'v',
	TypeInt32:   'i',
	TypeInt64:   'j',
	TypeFloat32: 'f',
	TypeFloat64: 'd',
}

// shapeCode is the compact result-then-params encoding used for
// synthesized signature names: (i32, i32) -> i32 becomes "iii".
func shapeCode(result Type, params []Type) string {
	var b strings.Builder
	b.WriteByte(shapeCodes[result])
	for _, p := range params {
		b.WriteByte(shapeCodes[p])
	}
	return b.String()
}
