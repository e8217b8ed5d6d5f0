package ir

// Function is a defined function: a name, a signature, extra locals beyond
// the parameters, and a body expression. The local index space is the
// parameters first, then the extra locals.
type Function struct {
	name   string
	sig    *Signature
	locals []Type
	body   Expr
}

// Name returns the function's internal name.
func (f *Function) Name() string { return f.name }

// Sig returns the function's signature.
func (f *Function) Sig() *Signature { return f.sig }

// ExtraLocals returns the local types declared beyond the parameters. The
// slice is owned by the function and must not be modified.
func (f *Function) ExtraLocals() []Type { return f.locals }

// Body returns the function's body expression.
func (f *Function) Body() Expr { return f.body }

// NumParams returns the number of parameters.
func (f *Function) NumParams() int { return len(f.sig.params) }

// NumLocals returns the size of the combined local index space.
func (f *Function) NumLocals() int { return len(f.sig.params) + len(f.locals) }

// LocalType resolves an index across the combined parameter/local space.
func (f *Function) LocalType(index uint32) (Type, bool) {
	i := int(index)
	if i < len(f.sig.params) {
		return f.sig.params[i], true
	}
	i -= len(f.sig.params)
	if i < len(f.locals) {
		return f.locals[i], true
	}
	return TypeNone, false
}
