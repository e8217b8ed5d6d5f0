package ir

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
)

// Validate checks the whole module: every name reference must resolve,
// every node must agree with its operands, and module-level structures
// must be well formed. All problems are collected into one
// errors.ValidationError rather than stopping at the first.
func (m *Module) Validate() error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	v := &validator{m: m}
	v.checkModule()
	for _, fn := range m.funcOrder {
		v.checkFunction(fn)
	}

	if len(v.diags) > 0 {
		Logger().Debug("module validation failed", zap.Int("issues", len(v.diags)))
		return errors.NewValidationError(v.diags)
	}
	return nil
}

type labelScope struct {
	name   string
	isLoop bool
	typ    Type
}

type validator struct {
	m      *Module
	diags  []errors.Diagnostic
	fn     *Function
	where  string
	labels []labelScope
}

func (v *validator) addf(format string, args ...any) {
	v.diags = append(v.diags, errors.Diagnostic{
		Where:  v.where,
		Detail: fmt.Sprintf(format, args...),
	})
}

// typeMatches allows an unreachable producer anywhere a value is needed.
func typeMatches(actual, want Type) bool {
	return actual == want || actual == TypeUnreachable
}

func (v *validator) funcSig(name string) *Signature {
	if fn, ok := v.m.funcs[name]; ok {
		return fn.sig
	}
	if imp, ok := v.m.importNames[ExternalFunction][name]; ok {
		return imp.Sig
	}
	return nil
}

func (v *validator) globalInfo(name string) (Type, bool, bool) {
	if g := v.m.lookupGlobalNamed(name); g != nil {
		return g.Type, g.Mutable, true
	}
	if imp, ok := v.m.importNames[ExternalGlobal][name]; ok {
		return imp.GlobalType, false, true
	}
	return TypeNone, false, false
}

func (v *validator) hasMemory() bool {
	return v.m.hasMemory || len(v.m.importNames[ExternalMemory]) > 0
}

func (v *validator) hasTable() bool {
	return v.m.hasTable || len(v.m.importNames[ExternalTable]) > 0
}

func (v *validator) checkModule() {
	m := v.m

	v.where = "module"
	if m.hasMemory && len(m.importNames[ExternalMemory]) > 0 {
		v.addf("memory is both defined and imported")
	}
	if m.hasTable && len(m.importNames[ExternalTable]) > 0 {
		v.addf("function table is both defined and imported")
	}

	seen := make(map[string]bool, len(m.exports))
	for _, exp := range m.exports {
		v.where = "export " + exp.Name
		if seen[exp.Name] {
			v.addf("duplicate export name %q", exp.Name)
		}
		seen[exp.Name] = true

		switch exp.Kind {
		case ExternalFunction:
			if v.funcSig(exp.Internal) == nil {
				v.addf("exported function %q is not defined or imported", exp.Internal)
			}
		case ExternalGlobal:
			if _, _, ok := v.globalInfo(exp.Internal); !ok {
				v.addf("exported global %q is not defined or imported", exp.Internal)
			}
		case ExternalTable:
			if !v.hasTable() {
				v.addf("table export without a table")
			}
		case ExternalMemory:
			if !v.hasMemory() {
				v.addf("memory export without a memory")
			}
		}
	}

	if m.hasTable {
		v.where = "table"
		for i, name := range m.table {
			if v.funcSig(name) == nil {
				v.addf("table entry %d references unknown function %q", i, name)
			}
		}
	}

	if m.hasMemory {
		for i, seg := range m.memory.Segments {
			v.where = fmt.Sprintf("memory segment %d", i)
			v.checkConstExpr(seg.Offset, TypeInt32)
			if c, ok := seg.Offset.(*Const); ok && c.Value.Type() == TypeInt32 {
				end := uint64(uint32(c.Value.I32())) + uint64(len(seg.Data))
				if end > uint64(m.memory.Initial)*65536 {
					v.addf("segment of %d bytes at offset %d exceeds initial memory of %d pages",
						len(seg.Data), uint32(c.Value.I32()), m.memory.Initial)
				}
			}
		}
	}

	for _, g := range m.globals {
		v.where = "global " + g.Name
		v.checkConstExpr(g.Init, g.Type)
	}

	if m.start != nil {
		v.where = "start"
		if m.funcs[m.start.name] != m.start {
			v.addf("start function %q is no longer defined", m.start.name)
		} else if len(m.start.sig.params) != 0 || m.start.sig.result != TypeNone {
			v.addf("start function %q must take and return nothing, has %s",
				m.start.name, m.start.sig)
		}
	}
}

// checkConstExpr accepts the constant initializer forms: a literal of the
// wanted type, or a read of an imported global of that type.
func (v *validator) checkConstExpr(e Expr, want Type) {
	switch n := e.(type) {
	case *Const:
		if n.Value.Type() != want {
			v.addf("constant is %s, expected %s", n.Value.Type(), want)
		}
	case *GetGlobal:
		imp, ok := v.m.importNames[ExternalGlobal][n.Name]
		if !ok {
			v.addf("initializer references %q, which is not an imported global", n.Name)
			return
		}
		if imp.GlobalType != want {
			v.addf("initializer global %q is %s, expected %s", n.Name, imp.GlobalType, want)
		}
	default:
		v.addf("initializer must be a constant expression, got %s", e.Kind())
	}
}

func (v *validator) checkFunction(fn *Function) {
	v.fn = fn
	v.where = "function " + fn.name
	v.labels = v.labels[:0]

	v.check(fn.body)

	if !typeMatches(fn.body.Type(), fn.sig.result) {
		if fn.sig.result == TypeNone && fn.body.Type().IsConcrete() {
			v.addf("body yields %s but the function returns nothing", fn.body.Type())
		} else {
			v.addf("body yields %s, expected %s", fn.body.Type(), fn.sig.result)
		}
	}
	v.fn = nil
}

func (v *validator) resolveLabel(name string) (labelScope, bool) {
	for i := len(v.labels) - 1; i >= 0; i-- {
		if v.labels[i].name == name {
			return v.labels[i], true
		}
	}
	return labelScope{}, false
}

// checkBranch validates a break or switch edge against its target scope.
func (v *validator) checkBranch(target string, value Expr, via string) {
	scope, ok := v.resolveLabel(target)
	if !ok {
		v.addf("%s target %q is not in scope", via, target)
		return
	}
	if scope.isLoop {
		if value != nil {
			v.addf("%s to loop %q cannot carry a value", via, target)
		}
		return
	}
	if scope.typ.IsConcrete() {
		if value == nil {
			v.addf("%s to %q must carry a %s", via, target, scope.typ)
		} else if !typeMatches(value.Type(), scope.typ) {
			v.addf("%s to %q carries %s, expected %s", via, target, value.Type(), scope.typ)
		}
	} else if value != nil && value.Type().IsConcrete() {
		v.addf("%s to %q carries a value, but the target yields nothing", via, target)
	}
}

func (v *validator) checkAccessNode(what string, bytes uint8, align uint32, atomic bool, typ Type) {
	if !v.hasMemory() {
		v.addf("%s requires a memory", what)
	}
	if align == 0 || align&(align-1) != 0 || align > uint32(bytes) {
		v.addf("%s alignment %d invalid for width %d", what, align, bytes)
	}
	if atomic {
		if align != uint32(bytes) {
			v.addf("atomic %s must be naturally aligned", what)
		}
		if !typ.IsInteger() {
			v.addf("atomic %s on non-integer type %s", what, typ)
		}
	}
}

func (v *validator) check(e Expr) {
	switch n := e.(type) {
	case *Block:
		v.labels = append(v.labels, labelScope{name: n.Name, typ: n.Type()})
		for _, c := range n.List {
			v.check(c)
		}
		v.labels = v.labels[:len(v.labels)-1]

		for i, c := range n.List {
			if i != len(n.List)-1 && c.Type().IsConcrete() {
				v.addf("block %q child %d yields a value that is never used", n.Name, i)
			}
		}
		if n.Type().IsConcrete() {
			if len(n.List) == 0 {
				v.addf("empty block %q cannot yield %s", n.Name, n.Type())
			} else if !typeMatches(n.List[len(n.List)-1].Type(), n.Type()) {
				v.addf("block %q yields %s, last child is %s",
					n.Name, n.Type(), n.List[len(n.List)-1].Type())
			}
		} else if n.Type() == TypeNone && len(n.List) > 0 {
			if last := n.List[len(n.List)-1].Type(); last.IsConcrete() {
				v.addf("block %q yields nothing, last child is %s", n.Name, last)
			}
		}
		return

	case *Loop:
		v.labels = append(v.labels, labelScope{name: n.Name, isLoop: true, typ: n.Type()})
		v.check(n.Body)
		v.labels = v.labels[:len(v.labels)-1]
		return

	case *If:
		v.check(n.Cond)
		v.check(n.IfTrue)
		if n.IfFalse != nil {
			v.check(n.IfFalse)
		}
		if !typeMatches(n.Cond.Type(), TypeInt32) {
			v.addf("if condition is %s, expected i32", n.Cond.Type())
		}
		if n.Type().IsConcrete() {
			if n.IfFalse == nil {
				v.addf("if without else cannot yield %s", n.Type())
			} else {
				if !typeMatches(n.IfTrue.Type(), n.Type()) {
					v.addf("if yields %s, true arm is %s", n.Type(), n.IfTrue.Type())
				}
				if !typeMatches(n.IfFalse.Type(), n.Type()) {
					v.addf("if yields %s, false arm is %s", n.Type(), n.IfFalse.Type())
				}
			}
		}
		return

	case *Break:
		if n.Cond != nil {
			v.check(n.Cond)
			if !typeMatches(n.Cond.Type(), TypeInt32) {
				v.addf("break condition is %s, expected i32", n.Cond.Type())
			}
		}
		if n.Value != nil {
			v.check(n.Value)
		}
		v.checkBranch(n.Target, n.Value, "break")
		return

	case *Switch:
		if n.Value != nil {
			v.check(n.Value)
		}
		v.check(n.Cond)
		if !typeMatches(n.Cond.Type(), TypeInt32) {
			v.addf("switch condition is %s, expected i32", n.Cond.Type())
		}
		for _, t := range n.Targets {
			v.checkBranch(t, n.Value, "switch")
		}
		v.checkBranch(n.Default, n.Value, "switch")
		return

	case *Call:
		for _, op := range n.Operands {
			v.check(op)
		}
		sig := v.funcSig(n.Target)
		if sig == nil {
			v.addf("call to unknown function %q", n.Target)
			return
		}
		v.checkCallShape("call to "+quoted(n.Target), sig, n.Operands, n.Type())
		return

	case *CallIndirect:
		for _, op := range n.Operands {
			v.check(op)
		}
		v.check(n.Target)
		if !v.hasTable() {
			v.addf("call_indirect requires a function table")
		}
		if !typeMatches(n.Target.Type(), TypeInt32) {
			v.addf("call_indirect index is %s, expected i32", n.Target.Type())
		}
		sig, ok := v.m.sigs[n.Sig]
		if !ok {
			v.addf("call_indirect references unknown type %q", n.Sig)
			return
		}
		v.checkCallShape("call_indirect via "+quoted(n.Sig), sig, n.Operands, n.Type())
		return

	case *GetLocal:
		typ, ok := v.fn.LocalType(n.Index)
		if !ok {
			v.addf("get_local %d out of range (%d locals)", n.Index, v.fn.NumLocals())
		} else if n.Type() != typ {
			v.addf("get_local %d annotated %s, local is %s", n.Index, n.Type(), typ)
		}
		return

	case *SetLocal:
		v.check(n.Value)
		typ, ok := v.fn.LocalType(n.Index)
		if !ok {
			v.addf("set_local %d out of range (%d locals)", n.Index, v.fn.NumLocals())
		} else if !typeMatches(n.Value.Type(), typ) {
			v.addf("set_local %d stores %s, local is %s", n.Index, n.Value.Type(), typ)
		}
		return

	case *GetGlobal:
		typ, _, ok := v.globalInfo(n.Name)
		if !ok {
			v.addf("get_global references unknown global %q", n.Name)
		} else if n.Type() != typ {
			v.addf("get_global %q annotated %s, global is %s", n.Name, n.Type(), typ)
		}
		return

	case *SetGlobal:
		v.check(n.Value)
		typ, mutable, ok := v.globalInfo(n.Name)
		switch {
		case !ok:
			v.addf("set_global references unknown global %q", n.Name)
		case !mutable:
			v.addf("set_global writes immutable global %q", n.Name)
		case !typeMatches(n.Value.Type(), typ):
			v.addf("set_global %q stores %s, global is %s", n.Name, n.Value.Type(), typ)
		}
		return

	case *Load:
		v.check(n.Ptr)
		v.checkAccessNode("load", n.Bytes, n.Align, n.Atomic, n.Type())
		if n.Atomic && n.Signed {
			v.addf("atomic load cannot sign-extend")
		}
		if !typeMatches(n.Ptr.Type(), TypeInt32) {
			v.addf("load address is %s, expected i32", n.Ptr.Type())
		}
		return

	case *Store:
		v.check(n.Ptr)
		v.check(n.Value)
		v.checkAccessNode("store", n.Bytes, n.Align, n.Atomic, n.ValueType)
		if !typeMatches(n.Ptr.Type(), TypeInt32) {
			v.addf("store address is %s, expected i32", n.Ptr.Type())
		}
		if !typeMatches(n.Value.Type(), n.ValueType) {
			v.addf("store of %s, value is %s", n.ValueType, n.Value.Type())
		}
		return

	case *Const:
		return

	case *Unary:
		v.check(n.Value)
		if !typeMatches(n.Value.Type(), n.Op.operand()) {
			v.addf("%s operand is %s, expected %s", n.Op, n.Value.Type(), n.Op.operand())
		}
		return

	case *Binary:
		v.check(n.Left)
		v.check(n.Right)
		if !typeMatches(n.Left.Type(), n.Op.operand()) {
			v.addf("%s left operand is %s, expected %s", n.Op, n.Left.Type(), n.Op.operand())
		}
		if !typeMatches(n.Right.Type(), n.Op.operand()) {
			v.addf("%s right operand is %s, expected %s", n.Op, n.Right.Type(), n.Op.operand())
		}
		return

	case *Select:
		v.check(n.IfTrue)
		v.check(n.IfFalse)
		v.check(n.Cond)
		if !typeMatches(n.Cond.Type(), TypeInt32) {
			v.addf("select condition is %s, expected i32", n.Cond.Type())
		}
		t, f := n.IfTrue.Type(), n.IfFalse.Type()
		if t.IsConcrete() && f.IsConcrete() && t != f {
			v.addf("select arms disagree: %s vs %s", t, f)
		}
		return

	case *Drop:
		v.check(n.Value)
		if n.Value.Type() == TypeNone {
			v.addf("drop of an expression that yields nothing")
		}
		return

	case *Return:
		if n.Value != nil {
			v.check(n.Value)
		}
		result := v.fn.sig.result
		switch {
		case n.Value == nil && result != TypeNone:
			v.addf("return carries nothing, function returns %s", result)
		case n.Value != nil && result == TypeNone:
			v.addf("return carries %s, function returns nothing", n.Value.Type())
		case n.Value != nil && !typeMatches(n.Value.Type(), result):
			v.addf("return carries %s, function returns %s", n.Value.Type(), result)
		}
		return

	case *Host:
		for _, op := range n.Operands {
			v.check(op)
		}
		if !v.hasMemory() {
			v.addf("%s requires a memory", n.Op)
		}
		if n.Op == GrowMemory && !typeMatches(n.Operands[0].Type(), TypeInt32) {
			v.addf("memory.grow delta is %s, expected i32", n.Operands[0].Type())
		}
		return

	case *Nop, *Unreachable:
		return

	case *AtomicRMW:
		v.check(n.Ptr)
		v.check(n.Value)
		typ := n.Type()
		if typ == TypeUnreachable {
			typ = TypeInt32
			if n.Value.Type().IsConcrete() {
				typ = n.Value.Type()
			}
		}
		v.checkAccessNode("rmw", n.Bytes, uint32(n.Bytes), true, typ)
		if !typeMatches(n.Ptr.Type(), TypeInt32) {
			v.addf("atomic rmw address is %s, expected i32", n.Ptr.Type())
		}
		if n.Type().IsConcrete() && !typeMatches(n.Value.Type(), n.Type()) {
			v.addf("atomic rmw operand is %s, expected %s", n.Value.Type(), n.Type())
		}
		return

	case *AtomicCmpxchg:
		v.check(n.Ptr)
		v.check(n.Expected)
		v.check(n.Replacement)
		typ := n.Type()
		if typ == TypeUnreachable {
			typ = TypeInt32
			if n.Expected.Type().IsConcrete() {
				typ = n.Expected.Type()
			}
		}
		v.checkAccessNode("cmpxchg", n.Bytes, uint32(n.Bytes), true, typ)
		if !typeMatches(n.Ptr.Type(), TypeInt32) {
			v.addf("atomic cmpxchg address is %s, expected i32", n.Ptr.Type())
		}
		if n.Type().IsConcrete() {
			if !typeMatches(n.Expected.Type(), n.Type()) {
				v.addf("atomic cmpxchg expected value is %s, want %s", n.Expected.Type(), n.Type())
			}
			if !typeMatches(n.Replacement.Type(), n.Type()) {
				v.addf("atomic cmpxchg replacement is %s, want %s", n.Replacement.Type(), n.Type())
			}
		}
		return

	case *AtomicWait:
		v.check(n.Ptr)
		v.check(n.Expected)
		v.check(n.Timeout)
		if !v.hasMemory() {
			v.addf("atomic wait requires a memory")
		}
		if !typeMatches(n.Ptr.Type(), TypeInt32) {
			v.addf("atomic wait address is %s, expected i32", n.Ptr.Type())
		}
		if !typeMatches(n.Expected.Type(), n.ExpectedType) {
			v.addf("atomic wait expects %s, value is %s", n.ExpectedType, n.Expected.Type())
		}
		if !typeMatches(n.Timeout.Type(), TypeInt64) {
			v.addf("atomic wait timeout is %s, expected i64", n.Timeout.Type())
		}
		return

	case *AtomicWake:
		v.check(n.Ptr)
		v.check(n.WakeCount)
		if !v.hasMemory() {
			v.addf("atomic wake requires a memory")
		}
		if !typeMatches(n.Ptr.Type(), TypeInt32) {
			v.addf("atomic wake address is %s, expected i32", n.Ptr.Type())
		}
		if !typeMatches(n.WakeCount.Type(), TypeInt32) {
			v.addf("atomic wake count is %s, expected i32", n.WakeCount.Type())
		}
		return
	}
}

func (v *validator) checkCallShape(what string, sig *Signature, operands []Expr, annotated Type) {
	if len(operands) != len(sig.params) {
		v.addf("%s passes %d argument(s), %s takes %d",
			what, len(operands), sig.name, len(sig.params))
		return
	}
	for i, op := range operands {
		if !typeMatches(op.Type(), sig.params[i]) {
			v.addf("%s argument %d is %s, expected %s", what, i, op.Type(), sig.params[i])
		}
	}
	if annotated != TypeUnreachable && annotated != sig.result {
		v.addf("%s annotated %s, %s returns %s", what, annotated, sig.name, sig.result)
	}
}

func quoted(name string) string {
	return fmt.Sprintf("%q", name)
}
