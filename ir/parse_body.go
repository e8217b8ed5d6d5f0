package ir

import (
	"fmt"

	"github.com/wippyai/wasm-ir/errors"
	bin "github.com/wippyai/wasm-ir/ir/internal/binary"
)

type frameKind uint8

const (
	frameFunc frameKind = iota
	frameBlock
	frameLoop
	frameIf
)

// ctrlFrame is one open structured control region. Statements accumulate
// in stmts. poly is set once control cannot reach the current point, after
// which operand pops synthesize unreachable placeholders the same way the
// operand stack goes polymorphic during validation.
type ctrlFrame struct {
	kind    frameKind
	typ     Type // declared result type
	label   string
	stmts   []Expr
	poly    bool
	cond    Expr // if frames
	ifTrue  Expr // if frames, set once else is seen
	sawElse bool
}

// bodyReader rebuilds one function body as an expression tree. The binary
// form is a flat instruction sequence; values are matched to their
// consumers frame by frame, and labels are invented for branch targets
// since the binary keeps only relative depths.
type bodyReader struct {
	p       *parser
	r       *bin.Reader
	section string
	sig     *Signature
	locals  []Type // params then locals, grows when a scratch var is needed
	extras  []Type // declared locals then scratch vars
	frames  []ctrlFrame
	labelN  int
	result  Expr
}

func (b *bodyReader) errf(format string, args ...any) error {
	return b.r.Errorf(b.section, format, args...)
}

func (b *bodyReader) run() (Expr, error) {
	b.frames = append(b.frames, ctrlFrame{kind: frameFunc, typ: b.sig.result})
	for {
		op, err := b.r.ReadByte()
		if err != nil {
			return nil, b.r.WrapError(b.section, err)
		}
		done, err := b.step(op)
		if err != nil {
			return nil, err
		}
		if done {
			return b.result, nil
		}
	}
}

func (b *bodyReader) top() *ctrlFrame {
	return &b.frames[len(b.frames)-1]
}

func (b *bodyReader) push(e Expr) {
	f := b.top()
	f.stmts = append(f.stmts, e)
	if e.Type() == TypeUnreachable {
		f.poly = true
	}
}

// pop takes the most recent value off the current frame. When statements
// sit on top of the value, the group is rebuilt as a block that stashes
// the value in a scratch local, preserving evaluation order.
func (b *bodyReader) pop() (Expr, error) {
	f := b.top()
	i := len(f.stmts) - 1
	for i >= 0 && f.stmts[i].Type() == TypeNone {
		i--
	}
	if i < 0 {
		if f.poly {
			return b.p.m.Unreachable(), nil
		}
		return nil, b.errf("operand stack underflow")
	}
	value := f.stmts[i]
	if i == len(f.stmts)-1 {
		f.stmts = f.stmts[:i]
		return value, nil
	}

	after := append([]Expr(nil), f.stmts[i+1:]...)
	f.stmts = f.stmts[:i]
	var children []Expr
	if value.Type().IsConcrete() {
		scratch := uint32(len(b.locals))
		b.locals = append(b.locals, value.Type())
		b.extras = append(b.extras, value.Type())
		set, err := b.p.m.SetLocal(scratch, value)
		if err != nil {
			return nil, err
		}
		get, err := b.p.m.GetLocal(scratch, value.Type())
		if err != nil {
			return nil, err
		}
		children = append(append([]Expr{set}, after...), get)
	} else {
		children = append([]Expr{value}, after...)
	}
	return b.p.m.Block("", children, TypeAuto)
}

func (b *bodyReader) popOperands(n int) ([]Expr, error) {
	ops := make([]Expr, n)
	for i := n - 1; i >= 0; i-- {
		e, err := b.pop()
		if err != nil {
			return nil, err
		}
		ops[i] = e
	}
	return ops, nil
}

func (b *bodyReader) labelOf(f *ctrlFrame) string {
	if f.label == "" {
		f.label = fmt.Sprintf("label$%d", b.labelN)
		b.labelN++
	}
	return f.label
}

func (b *bodyReader) branchTarget(depth uint32) (*ctrlFrame, error) {
	if int(depth) >= len(b.frames) {
		return nil, b.errf("branch depth %d exceeds block nesting %d", depth, len(b.frames)-1)
	}
	return &b.frames[len(b.frames)-1-int(depth)], nil
}

// branchArity is the type a branch to the frame carries: nothing for
// loops, whose label is a restart target, and the declared result
// otherwise.
func branchArity(f *ctrlFrame) Type {
	if f.kind == frameLoop {
		return TypeNone
	}
	if f.typ.IsConcrete() {
		return f.typ
	}
	return TypeNone
}

func (b *bodyReader) readBlockType() (Type, error) {
	v, err := b.r.ReadS64()
	if err != nil {
		return TypeNone, b.r.WrapError(b.section, err)
	}
	switch v {
	case int64(bin.BlockTypeVoid):
		return TypeNone, nil
	case int64(bin.BlockTypeI32):
		return TypeInt32, nil
	case int64(bin.BlockTypeI64):
		return TypeInt64, nil
	case int64(bin.BlockTypeF32):
		return TypeFloat32, nil
	case int64(bin.BlockTypeF64):
		return TypeFloat64, nil
	}
	if v >= 0 {
		return TypeNone, errors.Unsupported(errors.PhaseParse, "block types with a type index")
	}
	return TypeNone, b.errf("invalid block type %d", v)
}

func (b *bodyReader) readMemarg() (align uint32, offset uint32, err error) {
	alignLog2, err := b.r.ReadU32()
	if err != nil {
		return 0, 0, b.r.WrapError(b.section, err)
	}
	if alignLog2 > 3 {
		return 0, 0, b.errf("alignment 2^%d out of range", alignLog2)
	}
	offset, err = b.r.ReadU32()
	if err != nil {
		return 0, 0, b.r.WrapError(b.section, err)
	}
	return 1 << alignLog2, offset, nil
}

// dropDangling wraps non-final concrete statements in drops. Dead code may
// leave values behind that nothing consumes; the tree form makes every
// non-final child a statement, so such values are dropped explicitly.
func (b *bodyReader) dropDangling(stmts []Expr) ([]Expr, error) {
	for i := 0; i < len(stmts)-1; i++ {
		if stmts[i].Type().IsConcrete() {
			d, err := b.p.m.Drop(stmts[i])
			if err != nil {
				return nil, err
			}
			stmts[i] = d
		}
	}
	return stmts, nil
}

// armExpr collapses a statement list to one expression for positions that
// hold a single child, wrapping multiple statements in an anonymous block.
func (b *bodyReader) armExpr(stmts []Expr, typ Type) (Expr, error) {
	switch len(stmts) {
	case 0:
		return b.p.m.Nop(), nil
	case 1:
		return stmts[0], nil
	}
	stmts, err := b.dropDangling(stmts)
	if err != nil {
		return nil, err
	}
	return b.p.m.Block("", stmts, typ)
}

// closeFrame reduces the innermost frame to an expression at end. The
// root frame finishes the body: its statements become the body expression
// directly, or an enclosing block when there are several or when branches
// target the function level.
func (b *bodyReader) closeFrame() (bool, error) {
	f := *b.top()
	b.frames = b.frames[:len(b.frames)-1]

	if f.kind == frameFunc || f.kind == frameBlock {
		var err error
		if f.stmts, err = b.dropDangling(f.stmts); err != nil {
			return false, err
		}
	}

	if f.kind == frameFunc {
		switch {
		case f.label == "" && len(f.stmts) == 1:
			b.result = f.stmts[0]
		case f.label == "" && len(f.stmts) == 0:
			b.result = b.p.m.Nop()
		default:
			blk, err := b.p.m.Block(f.label, f.stmts, f.typ)
			if err != nil {
				return false, err
			}
			b.result = blk
		}
		return true, nil
	}

	var node Expr
	switch f.kind {
	case frameBlock:
		blk, err := b.p.m.Block(f.label, f.stmts, f.typ)
		if err != nil {
			return false, err
		}
		node = blk

	case frameLoop:
		body, err := b.armExpr(f.stmts, f.typ)
		if err != nil {
			return false, err
		}
		loop, err := b.p.m.Loop(f.label, body)
		if err != nil {
			return false, err
		}
		node = loop

	case frameIf:
		ifTrue := f.ifTrue
		var ifFalse Expr
		if f.sawElse {
			if len(f.stmts) > 0 {
				arm, err := b.armExpr(f.stmts, f.typ)
				if err != nil {
					return false, err
				}
				ifFalse = arm
			}
		} else {
			arm, err := b.armExpr(f.stmts, f.typ)
			if err != nil {
				return false, err
			}
			ifTrue = arm
		}
		ifNode, err := b.p.m.If(f.cond, ifTrue, ifFalse)
		if err != nil {
			return false, err
		}
		node = ifNode
		// An if has no label of its own; a targeted one gains a wrapper
		// block carrying the label.
		if f.label != "" {
			blk, err := b.p.m.Block(f.label, []Expr{ifNode}, f.typ)
			if err != nil {
				return false, err
			}
			node = blk
		}
	}

	b.push(node)
	return false, nil
}

func (b *bodyReader) step(op byte) (bool, error) {
	switch op {
	case bin.OpEnd:
		return b.closeFrame()

	case bin.OpElse:
		f := b.top()
		if f.kind != frameIf || f.sawElse {
			return false, b.errf("else outside of an if")
		}
		arm, err := b.armExpr(f.stmts, f.typ)
		if err != nil {
			return false, err
		}
		f.ifTrue = arm
		f.sawElse = true
		f.stmts = nil
		f.poly = false

	case bin.OpBlock, bin.OpLoop:
		typ, err := b.readBlockType()
		if err != nil {
			return false, err
		}
		kind := frameBlock
		if op == bin.OpLoop {
			kind = frameLoop
		}
		b.frames = append(b.frames, ctrlFrame{kind: kind, typ: typ})

	case bin.OpIf:
		typ, err := b.readBlockType()
		if err != nil {
			return false, err
		}
		cond, err := b.pop()
		if err != nil {
			return false, err
		}
		b.frames = append(b.frames, ctrlFrame{kind: frameIf, typ: typ, cond: cond})

	case bin.OpBr, bin.OpBrIf:
		depth, err := b.r.ReadU32()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		target, err := b.branchTarget(depth)
		if err != nil {
			return false, err
		}
		label := b.labelOf(target)
		arity := branchArity(target)
		var cond, value Expr
		if op == bin.OpBrIf {
			if cond, err = b.pop(); err != nil {
				return false, err
			}
		}
		if arity != TypeNone {
			if value, err = b.pop(); err != nil {
				return false, err
			}
		}
		node, err := b.p.m.Break(label, cond, value)
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpBrTable:
		n, err := b.r.ReadU32()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		if int(n) > b.r.Len() {
			return false, b.errf("branch table count %d exceeds remaining input", n)
		}
		targets := make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			depth, err := b.r.ReadU32()
			if err != nil {
				return false, b.r.WrapError(b.section, err)
			}
			target, err := b.branchTarget(depth)
			if err != nil {
				return false, err
			}
			targets = append(targets, b.labelOf(target))
		}
		depth, err := b.r.ReadU32()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		def, err := b.branchTarget(depth)
		if err != nil {
			return false, err
		}
		defLabel := b.labelOf(def)
		cond, err := b.pop()
		if err != nil {
			return false, err
		}
		var value Expr
		if branchArity(def) != TypeNone {
			if value, err = b.pop(); err != nil {
				return false, err
			}
		}
		node, err := b.p.m.Switch(targets, defLabel, cond, value)
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpReturn:
		var value Expr
		var err error
		if b.sig.result.IsConcrete() {
			if value, err = b.pop(); err != nil {
				return false, err
			}
		}
		node, err := b.p.m.Return(value)
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpUnreachable:
		b.push(b.p.m.Unreachable())

	case bin.OpNop:
		b.push(b.p.m.Nop())

	case bin.OpCall:
		idx, err := b.r.ReadU32()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		if int(idx) >= len(b.p.funcSpaceNames) {
			return false, b.errf("call references function %d of %d", idx, len(b.p.funcSpaceNames))
		}
		sig := b.p.funcSpaceSigs[idx]
		ops, err := b.popOperands(len(sig.params))
		if err != nil {
			return false, err
		}
		node, err := b.p.m.Call(b.p.funcSpaceNames[idx], ops, sig.result)
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpCallIndirect:
		sigIdx, err := b.r.ReadU32()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		if int(sigIdx) >= len(b.p.sigs) {
			return false, b.errf("call_indirect references type %d of %d", sigIdx, len(b.p.sigs))
		}
		reserved, err := b.r.ReadByte()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		if reserved != 0 {
			return false, b.errf("call_indirect reserved byte is 0x%02X", reserved)
		}
		sig := b.p.sigs[sigIdx]
		target, err := b.pop()
		if err != nil {
			return false, err
		}
		ops, err := b.popOperands(len(sig.params))
		if err != nil {
			return false, err
		}
		node, err := b.p.m.CallIndirect(target, ops, sig.name)
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpDrop:
		value, err := b.pop()
		if err != nil {
			return false, err
		}
		node, err := b.p.m.Drop(value)
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpSelect:
		cond, err := b.pop()
		if err != nil {
			return false, err
		}
		ifFalse, err := b.pop()
		if err != nil {
			return false, err
		}
		ifTrue, err := b.pop()
		if err != nil {
			return false, err
		}
		node, err := b.p.m.Select(cond, ifTrue, ifFalse)
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpLocalGet, bin.OpLocalSet, bin.OpLocalTee:
		idx, err := b.r.ReadU32()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		if int(idx) >= len(b.locals) {
			return false, b.errf("local index %d of %d", idx, len(b.locals))
		}
		var node Expr
		switch op {
		case bin.OpLocalGet:
			node, err = b.p.m.GetLocal(idx, b.locals[idx])
		case bin.OpLocalSet:
			var value Expr
			if value, err = b.pop(); err != nil {
				return false, err
			}
			node, err = b.p.m.SetLocal(idx, value)
		default:
			var value Expr
			if value, err = b.pop(); err != nil {
				return false, err
			}
			node, err = b.p.m.TeeLocal(idx, value)
		}
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpGlobalGet, bin.OpGlobalSet:
		idx, err := b.r.ReadU32()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		if int(idx) >= len(b.p.globalSpaceNames) {
			return false, b.errf("global index %d of %d", idx, len(b.p.globalSpaceNames))
		}
		name := b.p.globalSpaceNames[idx]
		var node Expr
		if op == bin.OpGlobalGet {
			node, err = b.p.m.GetGlobal(name, b.p.globalSpaceTypes[idx])
		} else {
			var value Expr
			if value, err = b.pop(); err != nil {
				return false, err
			}
			node, err = b.p.m.SetGlobal(name, value)
		}
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpI32Const:
		v, err := b.r.ReadS32()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		node, err := b.p.m.Const(Int32Literal(v))
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpI64Const:
		v, err := b.r.ReadS64()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		node, err := b.p.m.Const(Int64Literal(v))
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpF32Const:
		bits, err := b.r.ReadU32LE()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		node, err := b.p.m.Const(Float32LiteralBits(bits))
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpF64Const:
		bits, err := b.r.ReadU64LE()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		node, err := b.p.m.Const(Float64LiteralBits(bits))
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpMemorySize, bin.OpMemoryGrow:
		reserved, err := b.r.ReadByte()
		if err != nil {
			return false, b.r.WrapError(b.section, err)
		}
		if reserved != 0 {
			return false, b.errf("memory opcode reserved byte is 0x%02X", reserved)
		}
		var node Expr
		if op == bin.OpMemorySize {
			node, err = b.p.m.Host(CurrentMemory, "", nil)
		} else {
			var delta Expr
			if delta, err = b.pop(); err != nil {
				return false, err
			}
			node, err = b.p.m.Host(GrowMemory, "", []Expr{delta})
		}
		if err != nil {
			return false, err
		}
		b.push(node)

	case bin.OpPrefixAtomic:
		return false, b.atomic()

	default:
		return false, b.plainOp(op)
	}
	return false, nil
}

// plainOp handles the single-byte memory access and numeric opcodes.
func (b *bodyReader) plainOp(op byte) error {
	if bytes, signed, typ, ok := loadSpec(op); ok {
		align, offset, err := b.readMemarg()
		if err != nil {
			return err
		}
		ptr, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.Load(bytes, signed, offset, align, typ, ptr)
		if err != nil {
			return err
		}
		b.push(node)
		return nil
	}
	if bytes, typ, ok := storeSpec(op); ok {
		align, offset, err := b.readMemarg()
		if err != nil {
			return err
		}
		value, err := b.pop()
		if err != nil {
			return err
		}
		ptr, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.Store(bytes, offset, align, ptr, value, typ)
		if err != nil {
			return err
		}
		b.push(node)
		return nil
	}
	if u, ok := unaryByCode[op]; ok {
		value, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.Unary(u, value)
		if err != nil {
			return err
		}
		b.push(node)
		return nil
	}
	if bo, ok := binaryByCode[op]; ok {
		right, err := b.pop()
		if err != nil {
			return err
		}
		left, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.Binary(bo, left, right)
		if err != nil {
			return err
		}
		b.push(node)
		return nil
	}
	return b.errf("unknown opcode 0x%02X", op)
}

func (b *bodyReader) atomic() error {
	sub, err := b.r.ReadU32()
	if err != nil {
		return b.r.WrapError(b.section, err)
	}

	switch {
	case sub == bin.AtomicNotify:
		align, offset, err := b.readMemarg()
		if err != nil {
			return err
		}
		if align != 4 || offset != 0 {
			return b.errf("atomic notify requires alignment 4 and a zero offset")
		}
		count, err := b.pop()
		if err != nil {
			return err
		}
		ptr, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.AtomicWake(ptr, count)
		if err != nil {
			return err
		}
		b.push(node)

	case sub == bin.AtomicWait32 || sub == bin.AtomicWait64:
		typ, width := TypeInt32, uint32(4)
		if sub == bin.AtomicWait64 {
			typ, width = TypeInt64, 8
		}
		align, offset, err := b.readMemarg()
		if err != nil {
			return err
		}
		if align != width || offset != 0 {
			return b.errf("atomic wait requires natural alignment and a zero offset")
		}
		timeout, err := b.pop()
		if err != nil {
			return err
		}
		expected, err := b.pop()
		if err != nil {
			return err
		}
		ptr, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.AtomicWait(ptr, expected, timeout, typ)
		if err != nil {
			return err
		}
		b.push(node)

	case sub == bin.AtomicFence:
		return errors.Unsupported(errors.PhaseParse, "atomic.fence")

	case sub >= bin.AtomicLoadBase && sub < bin.AtomicStoreBase:
		bytes, typ, offset, err := b.atomicAccess(sub - bin.AtomicLoadBase)
		if err != nil {
			return err
		}
		ptr, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.AtomicLoad(bytes, offset, typ, ptr)
		if err != nil {
			return err
		}
		b.push(node)

	case sub >= bin.AtomicStoreBase && sub < bin.AtomicRmwAdd:
		bytes, typ, offset, err := b.atomicAccess(sub - bin.AtomicStoreBase)
		if err != nil {
			return err
		}
		value, err := b.pop()
		if err != nil {
			return err
		}
		ptr, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.AtomicStore(bytes, offset, ptr, value, typ)
		if err != nil {
			return err
		}
		b.push(node)

	case sub >= bin.AtomicRmwAdd && sub < bin.AtomicRmwCmpxchg:
		rel := sub - bin.AtomicRmwAdd
		op, ok := atomicRMWByBase[bin.AtomicRmwAdd+(rel/7)*7]
		if !ok {
			return b.errf("unknown atomic opcode 0x%02X", sub)
		}
		bytes, typ, offset, err := b.atomicAccess(rel % 7)
		if err != nil {
			return err
		}
		value, err := b.pop()
		if err != nil {
			return err
		}
		ptr, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.AtomicRMW(op, bytes, offset, ptr, value, typ)
		if err != nil {
			return err
		}
		b.push(node)

	case sub >= bin.AtomicRmwCmpxchg && sub <= bin.AtomicSubOpcodeHi:
		bytes, typ, offset, err := b.atomicAccess(sub - bin.AtomicRmwCmpxchg)
		if err != nil {
			return err
		}
		replacement, err := b.pop()
		if err != nil {
			return err
		}
		expected, err := b.pop()
		if err != nil {
			return err
		}
		ptr, err := b.pop()
		if err != nil {
			return err
		}
		node, err := b.p.m.AtomicCmpxchg(bytes, offset, ptr, expected, replacement, typ)
		if err != nil {
			return err
		}
		b.push(node)

	default:
		return b.errf("unknown atomic opcode 0x%02X", sub)
	}
	return nil
}

// atomicAccess decodes the width slot and memarg shared by the atomic
// memory access groups. Atomic accesses must state natural alignment.
func (b *bodyReader) atomicAccess(slot uint32) (bytes uint8, typ Type, offset uint32, err error) {
	is64, bytes, ok := bin.AtomicSlotInfo(slot)
	if !ok {
		return 0, TypeNone, 0, b.errf("invalid atomic access width slot %d", slot)
	}
	typ = TypeInt32
	if is64 {
		typ = TypeInt64
	}
	align, offset, err := b.readMemarg()
	if err != nil {
		return 0, TypeNone, 0, err
	}
	if align != uint32(bytes) {
		return 0, TypeNone, 0, b.errf("atomic access requires natural alignment, got %d for width %d", align, bytes)
	}
	return bytes, typ, offset, nil
}

func loadSpec(op byte) (bytes uint8, signed bool, typ Type, ok bool) {
	switch op {
	case bin.OpI32Load:
		return 4, false, TypeInt32, true
	case bin.OpI64Load:
		return 8, false, TypeInt64, true
	case bin.OpF32Load:
		return 4, false, TypeFloat32, true
	case bin.OpF64Load:
		return 8, false, TypeFloat64, true
	case bin.OpI32Load8S:
		return 1, true, TypeInt32, true
	case bin.OpI32Load8U:
		return 1, false, TypeInt32, true
	case bin.OpI32Load16S:
		return 2, true, TypeInt32, true
	case bin.OpI32Load16U:
		return 2, false, TypeInt32, true
	case bin.OpI64Load8S:
		return 1, true, TypeInt64, true
	case bin.OpI64Load8U:
		return 1, false, TypeInt64, true
	case bin.OpI64Load16S:
		return 2, true, TypeInt64, true
	case bin.OpI64Load16U:
		return 2, false, TypeInt64, true
	case bin.OpI64Load32S:
		return 4, true, TypeInt64, true
	case bin.OpI64Load32U:
		return 4, false, TypeInt64, true
	}
	return 0, false, TypeNone, false
}

func storeSpec(op byte) (bytes uint8, typ Type, ok bool) {
	switch op {
	case bin.OpI32Store:
		return 4, TypeInt32, true
	case bin.OpI64Store:
		return 8, TypeInt64, true
	case bin.OpF32Store:
		return 4, TypeFloat32, true
	case bin.OpF64Store:
		return 8, TypeFloat64, true
	case bin.OpI32Store8:
		return 1, TypeInt32, true
	case bin.OpI32Store16:
		return 2, TypeInt32, true
	case bin.OpI64Store8:
		return 1, TypeInt64, true
	case bin.OpI64Store16:
		return 2, TypeInt64, true
	case bin.OpI64Store32:
		return 4, TypeInt64, true
	}
	return 0, TypeNone, false
}
