package ir

import (
	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir/internal/arena"
)

// exprSlabs holds one slab per node kind. All expressions built through a
// module's factory methods live here and are released together by Close.
type exprSlabs struct {
	blocks         arena.Slab[Block]
	ifs            arena.Slab[If]
	loops          arena.Slab[Loop]
	breaks         arena.Slab[Break]
	switches       arena.Slab[Switch]
	calls          arena.Slab[Call]
	callIndirects  arena.Slab[CallIndirect]
	getLocals      arena.Slab[GetLocal]
	setLocals      arena.Slab[SetLocal]
	getGlobals     arena.Slab[GetGlobal]
	setGlobals     arena.Slab[SetGlobal]
	loads          arena.Slab[Load]
	stores         arena.Slab[Store]
	consts         arena.Slab[Const]
	unaries        arena.Slab[Unary]
	binaries       arena.Slab[Binary]
	selects        arena.Slab[Select]
	drops          arena.Slab[Drop]
	returns        arena.Slab[Return]
	hosts          arena.Slab[Host]
	nops           arena.Slab[Nop]
	unreachables   arena.Slab[Unreachable]
	atomicRMWs     arena.Slab[AtomicRMW]
	atomicCmpxchgs arena.Slab[AtomicCmpxchg]
	atomicWaits    arena.Slab[AtomicWait]
	atomicWakes    arena.Slab[AtomicWake]
}

func (s *exprSlabs) len() int {
	return s.blocks.Len() + s.ifs.Len() + s.loops.Len() + s.breaks.Len() +
		s.switches.Len() + s.calls.Len() + s.callIndirects.Len() +
		s.getLocals.Len() + s.setLocals.Len() + s.getGlobals.Len() +
		s.setGlobals.Len() + s.loads.Len() + s.stores.Len() + s.consts.Len() +
		s.unaries.Len() + s.binaries.Len() + s.selects.Len() + s.drops.Len() +
		s.returns.Len() + s.hosts.Len() + s.nops.Len() + s.unreachables.Len() +
		s.atomicRMWs.Len() + s.atomicCmpxchgs.Len() + s.atomicWaits.Len() +
		s.atomicWakes.Len()
}

func (s *exprSlabs) release() {
	s.blocks.Release()
	s.ifs.Release()
	s.loops.Release()
	s.breaks.Release()
	s.switches.Release()
	s.calls.Release()
	s.callIndirects.Release()
	s.getLocals.Release()
	s.setLocals.Release()
	s.getGlobals.Release()
	s.setGlobals.Release()
	s.loads.Release()
	s.stores.Release()
	s.consts.Release()
	s.unaries.Release()
	s.binaries.Release()
	s.selects.Release()
	s.drops.Release()
	s.returns.Release()
	s.hosts.Release()
	s.nops.Release()
	s.unreachables.Release()
	s.atomicRMWs.Release()
	s.atomicCmpxchgs.Release()
	s.atomicWaits.Release()
	s.atomicWakes.Release()
}

func anyUnreachable(exprs ...Expr) bool {
	for _, e := range exprs {
		if e != nil && e.Type() == TypeUnreachable {
			return true
		}
	}
	return false
}

func anyOperandUnreachable(operands []Expr) bool {
	for _, e := range operands {
		if e.Type() == TypeUnreachable {
			return true
		}
	}
	return false
}

func checkOperands(what string, operands []Expr) error {
	for i, e := range operands {
		if e == nil {
			return errors.InvalidArgument(errors.PhaseBuild, "%s operand %d is nil", what, i)
		}
	}
	return nil
}

// checkAccess validates the shape of a memory access and resolves a zero
// alignment to the natural one.
func checkAccess(what string, typ Type, bytes uint8, align *uint32, atomic bool) error {
	if !typ.IsConcrete() {
		return errors.InvalidArgument(errors.PhaseBuild,
			"%s requires a value type, got %s", what, typ)
	}
	switch bytes {
	case 1, 2, 4, 8:
	default:
		return errors.InvalidArgument(errors.PhaseBuild,
			"%s width must be 1, 2, 4, or 8 bytes, got %d", what, bytes)
	}
	if bytes > typ.Size() {
		return errors.InvalidArgument(errors.PhaseBuild,
			"%s width %d exceeds the width of %s", what, bytes, typ)
	}
	if typ.IsFloat() && bytes != typ.Size() {
		return errors.InvalidArgument(errors.PhaseBuild,
			"%s of %s must use the full width", what, typ)
	}
	if atomic && !typ.IsInteger() {
		return errors.InvalidArgument(errors.PhaseBuild,
			"atomic %s requires an integer type, got %s", what, typ)
	}
	if *align == 0 {
		*align = uint32(bytes)
	}
	if *align&(*align-1) != 0 || *align > uint32(bytes) {
		return errors.InvalidArgument(errors.PhaseBuild,
			"%s alignment %d invalid for width %d", what, *align, bytes)
	}
	return nil
}

// breakValueType scans a block's children for branches that target the
// given label, honoring shadowing by inner blocks or loops that reuse it.
// The bool reports whether any targeting branch exists; the type is the
// first concrete carried value type, or none when branches carry nothing.
func breakValueType(list []Expr, name string) (Type, bool) {
	carried := TypeNone
	found := false
	note := func(value Expr) {
		found = true
		if value != nil && carried == TypeNone && value.Type().IsConcrete() {
			carried = value.Type()
		}
	}
	for _, child := range list {
		Walk(child, func(e Expr) bool {
			switch n := e.(type) {
			case *Block:
				if n.Name == name {
					return false
				}
			case *Loop:
				if n.Name == name {
					return false
				}
			case *Break:
				if n.Target == name {
					note(n.Value)
				}
			case *Switch:
				hit := n.Default == name
				for _, t := range n.Targets {
					if t == name {
						hit = true
						break
					}
				}
				if hit {
					note(n.Value)
				}
			}
			return true
		})
	}
	return carried, found
}

// Block builds a sequence. Pass TypeAuto to infer the yield type: the last
// child's type, or for a block ending in unreachable code, the type carried
// by breaks that target its label.
func (m *Module) Block(name string, children []Expr, typ Type) (*Block, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	for i, c := range children {
		if c == nil {
			return nil, errors.InvalidArgument(errors.PhaseBuild, "block child %d is nil", i)
		}
	}
	if typ == TypeAuto {
		switch {
		case len(children) == 0:
			typ = TypeNone
		case children[len(children)-1].Type() != TypeUnreachable:
			typ = children[len(children)-1].Type()
		default:
			typ = TypeUnreachable
			if name != "" {
				if t, ok := breakValueType(children, name); ok {
					typ = t
				}
			}
		}
	} else if typ != TypeNone && typ != TypeUnreachable && !typ.IsConcrete() {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "block type %s invalid", typ)
	}
	// A none typed block containing unreachable code cannot complete
	// normally unless a branch targets its label.
	if typ == TypeNone && anyOperandUnreachable(children) {
		if name == "" {
			typ = TypeUnreachable
		} else if _, targeted := breakValueType(children, name); !targeted {
			typ = TypeUnreachable
		}
	}

	e := m.exprs.blocks.Alloc()
	e.typ = typ
	e.Name = name
	e.List = append([]Expr(nil), children...)
	return e, nil
}

// If builds a conditional. IfFalse may be nil for a one-armed if, which
// yields nothing.
func (m *Module) If(cond, ifTrue, ifFalse Expr) (*If, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if cond == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "if requires a condition")
	}
	if ifTrue == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "if requires a true arm")
	}

	typ := TypeNone
	if ifFalse != nil {
		t, f := ifTrue.Type(), ifFalse.Type()
		switch {
		case t == f:
			typ = t
		case t == TypeUnreachable:
			typ = f
		case f == TypeUnreachable:
			typ = t
		default:
			typ = TypeNone
		}
	}
	if typ == TypeNone && cond.Type() == TypeUnreachable {
		typ = TypeUnreachable
	}

	e := m.exprs.ifs.Alloc()
	e.typ = typ
	e.Cond = cond
	e.IfTrue = ifTrue
	e.IfFalse = ifFalse
	return e, nil
}

// Loop builds a loop whose label, when named, is a restart target.
func (m *Module) Loop(name string, body Expr) (*Loop, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "loop requires a body")
	}
	e := m.exprs.loops.Alloc()
	e.typ = body.Type()
	e.Name = name
	e.Body = body
	return e, nil
}

// Break builds a branch to an enclosing label. Cond makes it conditional;
// Value, when present, is carried to the target.
func (m *Module) Break(target string, cond, value Expr) (*Break, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "break requires a target label")
	}

	typ := TypeUnreachable
	if cond != nil {
		switch {
		case cond.Type() == TypeUnreachable:
			typ = TypeUnreachable
		case value != nil:
			typ = value.Type()
		default:
			typ = TypeNone
		}
	}

	e := m.exprs.breaks.Alloc()
	e.typ = typ
	e.Target = target
	e.Cond = cond
	e.Value = value
	return e, nil
}

// Switch builds a table branch: Cond selects from Targets, out-of-range
// values go to Default.
func (m *Module) Switch(targets []string, defaultTarget string, cond, value Expr) (*Switch, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if defaultTarget == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "switch requires a default label")
	}
	if cond == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "switch requires a condition")
	}
	for i, t := range targets {
		if t == "" {
			return nil, errors.InvalidArgument(errors.PhaseBuild, "switch target %d is empty", i)
		}
	}

	e := m.exprs.switches.Alloc()
	e.typ = TypeUnreachable
	e.Targets = append([]string(nil), targets...)
	e.Default = defaultTarget
	e.Cond = cond
	e.Value = value
	return e, nil
}

// Call builds a direct call. The return type is stated by the caller so
// calls may be built before their target; Validate reconciles the two.
func (m *Module) Call(target string, operands []Expr, returnType Type) (*Call, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "call requires a target name")
	}
	if returnType != TypeNone && !returnType.IsConcrete() {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"call return type must be a value type or none, got %s", returnType)
	}
	if err := checkOperands("call", operands); err != nil {
		return nil, err
	}

	e := m.exprs.calls.Alloc()
	e.typ = returnType
	if anyOperandUnreachable(operands) {
		e.typ = TypeUnreachable
	}
	e.Target = target
	e.Operands = append([]Expr(nil), operands...)
	return e, nil
}

// CallIndirect builds a call through the function table. The named
// signature must already be registered; it fixes the call's type.
func (m *Module) CallIndirect(target Expr, operands []Expr, sigName string) (*CallIndirect, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "call_indirect requires a table index")
	}
	if sigName == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "call_indirect requires a signature name")
	}
	sig, ok := m.sigs[sigName]
	if !ok {
		return nil, errors.NotFound(errors.PhaseBuild, "function type", sigName)
	}
	if err := checkOperands("call_indirect", operands); err != nil {
		return nil, err
	}

	e := m.exprs.callIndirects.Alloc()
	e.typ = sig.result
	if target.Type() == TypeUnreachable || anyOperandUnreachable(operands) {
		e.typ = TypeUnreachable
	}
	e.Target = target
	e.Operands = append([]Expr(nil), operands...)
	e.Sig = sigName
	return e, nil
}

// GetLocal reads a parameter or local. The type is stated by the caller
// and checked against the containing function during Validate.
func (m *Module) GetLocal(index uint32, typ Type) (*GetLocal, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !typ.IsConcrete() {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"get_local requires a value type, got %s", typ)
	}
	e := m.exprs.getLocals.Alloc()
	e.typ = typ
	e.Index = index
	return e, nil
}

// SetLocal writes a parameter or local and yields nothing.
func (m *Module) SetLocal(index uint32, value Expr) (*SetLocal, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "set_local requires a value")
	}
	e := m.exprs.setLocals.Alloc()
	e.typ = TypeNone
	if value.Type() == TypeUnreachable {
		e.typ = TypeUnreachable
	}
	e.Index = index
	e.Value = value
	return e, nil
}

// TeeLocal writes a parameter or local and yields the stored value.
func (m *Module) TeeLocal(index uint32, value Expr) (*SetLocal, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "tee_local requires a value")
	}
	e := m.exprs.setLocals.Alloc()
	e.typ = value.Type()
	e.Index = index
	e.Value = value
	e.tee = true
	return e, nil
}

// GetGlobal reads a defined or imported global. The type is stated by the
// caller and checked during Validate.
func (m *Module) GetGlobal(name string, typ Type) (*GetGlobal, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "get_global requires a name")
	}
	if !typ.IsConcrete() {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"get_global requires a value type, got %s", typ)
	}
	e := m.exprs.getGlobals.Alloc()
	e.typ = typ
	e.Name = name
	return e, nil
}

// SetGlobal writes a mutable global.
func (m *Module) SetGlobal(name string, value Expr) (*SetGlobal, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "set_global requires a name")
	}
	if value == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "set_global requires a value")
	}
	e := m.exprs.setGlobals.Alloc()
	e.typ = TypeNone
	if value.Type() == TypeUnreachable {
		e.typ = TypeUnreachable
	}
	e.Name = name
	e.Value = value
	return e, nil
}

// Load builds a memory read of bytes width yielding typ. Narrow integer
// loads extend per signed. Zero align means natural alignment.
func (m *Module) Load(bytes uint8, signed bool, offset, align uint32, typ Type, ptr Expr) (*Load, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "load requires an address")
	}
	if err := checkAccess("load", typ, bytes, &align, false); err != nil {
		return nil, err
	}
	e := m.exprs.loads.Alloc()
	e.typ = typ
	if ptr.Type() == TypeUnreachable {
		e.typ = TypeUnreachable
	}
	e.Bytes = bytes
	e.Signed = signed
	e.Offset = offset
	e.Align = align
	e.Ptr = ptr
	return e, nil
}

// Store builds a memory write of the low bytes of a typ-typed value.
func (m *Module) Store(bytes uint8, offset, align uint32, ptr, value Expr, typ Type) (*Store, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "store requires an address")
	}
	if value == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "store requires a value")
	}
	if err := checkAccess("store", typ, bytes, &align, false); err != nil {
		return nil, err
	}
	e := m.exprs.stores.Alloc()
	e.typ = TypeNone
	if anyUnreachable(ptr, value) {
		e.typ = TypeUnreachable
	}
	e.Bytes = bytes
	e.Offset = offset
	e.Align = align
	e.Ptr = ptr
	e.Value = value
	e.ValueType = typ
	return e, nil
}

// AtomicLoad builds a sequentially consistent memory read. Atomic loads
// are naturally aligned and zero-extending.
func (m *Module) AtomicLoad(bytes uint8, offset uint32, typ Type, ptr Expr) (*Load, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic load requires an address")
	}
	align := uint32(bytes)
	if err := checkAccess("load", typ, bytes, &align, true); err != nil {
		return nil, err
	}
	e := m.exprs.loads.Alloc()
	e.typ = typ
	if ptr.Type() == TypeUnreachable {
		e.typ = TypeUnreachable
	}
	e.Bytes = bytes
	e.Offset = offset
	e.Align = align
	e.Ptr = ptr
	e.Atomic = true
	return e, nil
}

// AtomicStore builds a sequentially consistent, naturally aligned memory
// write.
func (m *Module) AtomicStore(bytes uint8, offset uint32, ptr, value Expr, typ Type) (*Store, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic store requires an address")
	}
	if value == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic store requires a value")
	}
	align := uint32(bytes)
	if err := checkAccess("store", typ, bytes, &align, true); err != nil {
		return nil, err
	}
	e := m.exprs.stores.Alloc()
	e.typ = TypeNone
	if anyUnreachable(ptr, value) {
		e.typ = TypeUnreachable
	}
	e.Bytes = bytes
	e.Offset = offset
	e.Align = align
	e.Ptr = ptr
	e.Value = value
	e.ValueType = typ
	e.Atomic = true
	return e, nil
}

// Const builds a literal.
func (m *Module) Const(value Literal) (*Const, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !value.Type().IsConcrete() {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "const requires a typed literal")
	}
	e := m.exprs.consts.Alloc()
	e.typ = value.Type()
	e.Value = value
	return e, nil
}

// Unary builds a one-operand operator application.
func (m *Module) Unary(op UnaryOp, value Expr) (*Unary, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !op.valid() {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "unknown unary op %d", op)
	}
	if value == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "%s requires an operand", op)
	}
	e := m.exprs.unaries.Alloc()
	e.typ = op.result()
	if value.Type() == TypeUnreachable {
		e.typ = TypeUnreachable
	}
	e.Op = op
	e.Value = value
	return e, nil
}

// Binary builds a two-operand operator application.
func (m *Module) Binary(op BinaryOp, left, right Expr) (*Binary, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !op.valid() {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "unknown binary op %d", op)
	}
	if left == nil || right == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "%s requires two operands", op)
	}
	e := m.exprs.binaries.Alloc()
	e.typ = op.result()
	if anyUnreachable(left, right) {
		e.typ = TypeUnreachable
	}
	e.Op = op
	e.Left = left
	e.Right = right
	return e, nil
}

// Select builds a value pick: cond non-zero takes ifTrue. Both arms are
// always evaluated.
func (m *Module) Select(cond, ifTrue, ifFalse Expr) (*Select, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if cond == nil || ifTrue == nil || ifFalse == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"select requires a condition and two arms")
	}

	var typ Type
	switch {
	case anyUnreachable(cond, ifTrue, ifFalse):
		typ = TypeUnreachable
	case ifTrue.Type() == ifFalse.Type():
		typ = ifTrue.Type()
	default:
		typ = TypeNone
	}

	e := m.exprs.selects.Alloc()
	e.typ = typ
	e.Cond = cond
	e.IfTrue = ifTrue
	e.IfFalse = ifFalse
	return e, nil
}

// Drop evaluates a value and discards it.
func (m *Module) Drop(value Expr) (*Drop, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "drop requires a value")
	}
	e := m.exprs.drops.Alloc()
	e.typ = TypeNone
	if value.Type() == TypeUnreachable {
		e.typ = TypeUnreachable
	}
	e.Value = value
	return e, nil
}

// Return exits the function, optionally carrying a value.
func (m *Module) Return(value Expr) (*Return, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	e := m.exprs.returns.Alloc()
	e.typ = TypeUnreachable
	e.Value = value
	return e, nil
}

// Host builds a host environment operation such as memory.size or
// memory.grow.
func (m *Module) Host(op HostOp, name string, operands []Expr) (*Host, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !op.valid() {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "unknown host op %d", op)
	}
	if len(operands) != hostInfo[op].numOperands {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"%s takes %d operand(s), got %d", op, hostInfo[op].numOperands, len(operands))
	}
	if err := checkOperands(op.String(), operands); err != nil {
		return nil, err
	}

	e := m.exprs.hosts.Alloc()
	e.typ = TypeInt32
	if anyOperandUnreachable(operands) {
		e.typ = TypeUnreachable
	}
	e.Op = op
	e.Name = name
	e.Operands = append([]Expr(nil), operands...)
	return e, nil
}

// Nop builds a node that does nothing. It cannot fail.
func (m *Module) Nop() *Nop {
	m.mustOpen()
	return m.exprs.nops.Alloc()
}

// Unreachable builds a node that traps when executed. It cannot fail.
func (m *Module) Unreachable() *Unreachable {
	m.mustOpen()
	e := m.exprs.unreachables.Alloc()
	e.typ = TypeUnreachable
	return e
}

// AtomicRMW builds an atomic read-modify-write yielding the old value.
func (m *Module) AtomicRMW(op AtomicRMWOp, bytes uint8, offset uint32, ptr, value Expr, typ Type) (*AtomicRMW, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !op.valid() {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "unknown atomic rmw op %d", op)
	}
	if ptr == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic rmw requires an address")
	}
	if value == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic rmw requires a value")
	}
	align := uint32(bytes)
	if err := checkAccess("atomic rmw", typ, bytes, &align, true); err != nil {
		return nil, err
	}

	e := m.exprs.atomicRMWs.Alloc()
	e.typ = typ
	if anyUnreachable(ptr, value) {
		e.typ = TypeUnreachable
	}
	e.Op = op
	e.Bytes = bytes
	e.Offset = offset
	e.Ptr = ptr
	e.Value = value
	return e, nil
}

// AtomicCmpxchg builds an atomic compare-exchange yielding the old value.
func (m *Module) AtomicCmpxchg(bytes uint8, offset uint32, ptr, expected, replacement Expr, typ Type) (*AtomicCmpxchg, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic cmpxchg requires an address")
	}
	if expected == nil || replacement == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"atomic cmpxchg requires expected and replacement values")
	}
	align := uint32(bytes)
	if err := checkAccess("atomic cmpxchg", typ, bytes, &align, true); err != nil {
		return nil, err
	}

	e := m.exprs.atomicCmpxchgs.Alloc()
	e.typ = typ
	if anyUnreachable(ptr, expected, replacement) {
		e.typ = TypeUnreachable
	}
	e.Bytes = bytes
	e.Offset = offset
	e.Ptr = ptr
	e.Expected = expected
	e.Replacement = replacement
	return e, nil
}

// AtomicWait builds a wait on a memory cell. The result is an i32 status:
// 0 woken, 1 value mismatch, 2 timed out.
func (m *Module) AtomicWait(ptr, expected, timeout Expr, expectedType Type) (*AtomicWait, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic wait requires an address")
	}
	if expected == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic wait requires an expected value")
	}
	if timeout == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic wait requires a timeout")
	}
	if !expectedType.IsInteger() {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"atomic wait requires an integer type, got %s", expectedType)
	}

	e := m.exprs.atomicWaits.Alloc()
	e.typ = TypeInt32
	if anyUnreachable(ptr, expected, timeout) {
		e.typ = TypeUnreachable
	}
	e.Ptr = ptr
	e.Expected = expected
	e.Timeout = timeout
	e.ExpectedType = expectedType
	return e, nil
}

// AtomicWake builds a notify of waiters on a memory cell, yielding the
// count woken.
func (m *Module) AtomicWake(ptr, wakeCount Expr) (*AtomicWake, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic wake requires an address")
	}
	if wakeCount == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "atomic wake requires a wake count")
	}

	e := m.exprs.atomicWakes.Alloc()
	e.typ = TypeInt32
	if anyUnreachable(ptr, wakeCount) {
		e.typ = TypeUnreachable
	}
	e.Ptr = ptr
	e.WakeCount = wakeCount
	return e, nil
}
