package ir

import (
	"math/bits"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
	bin "github.com/wippyai/wasm-ir/ir/internal/binary"
	"github.com/wippyai/wasm-ir/sourcemap"
)

// EmitOptions controls binary serialization.
type EmitOptions struct {
	// DebugInfo emits a name custom section carrying function and global
	// names.
	DebugInfo bool

	// SourceMapURL, when non-empty, enables source map generation from
	// the debug locations attached to expressions and appends a
	// sourceMappingURL custom section naming it.
	SourceMapURL string
}

// EmitResult is the output of EmitWithOptions.
type EmitResult struct {
	Binary    []byte
	SourceMap []byte // nil unless a source map was requested
}

// Emit serializes the module to the binary format with a name section.
// Validate first: Emit resolves names but does not re-check typing.
func (m *Module) Emit() ([]byte, error) {
	res, err := m.EmitWithOptions(EmitOptions{DebugInfo: true})
	if err != nil {
		return nil, err
	}
	return res.Binary, nil
}

// EmitWithOptions serializes the module to the binary format.
func (m *Module) EmitWithOptions(opts EmitOptions) (*EmitResult, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if m.hasMemory && len(m.importNames[ExternalMemory]) > 0 {
		return nil, errors.SerializeFailed("module defines a memory and imports one")
	}
	if m.hasTable && len(m.importNames[ExternalTable]) > 0 {
		return nil, errors.SerializeFailed("module defines a table and imports one")
	}

	e := &emitter{
		m:           m,
		sigIndex:    make(map[string]uint32, len(m.sigOrder)),
		funcIndex:   make(map[string]uint32),
		globalIndex: make(map[string]uint32),
	}
	for i, sig := range m.sigOrder {
		e.sigIndex[sig.name] = uint32(i)
	}
	for _, imp := range m.imports {
		switch imp.Kind {
		case ExternalFunction:
			e.funcIndex[imp.Name] = uint32(len(e.funcImports))
			e.funcImports = append(e.funcImports, imp)
		case ExternalGlobal:
			e.globalIndex[imp.Name] = uint32(len(e.globalImports))
			e.globalImports = append(e.globalImports, imp)
		}
	}
	for i, fn := range m.funcOrder {
		e.funcIndex[fn.name] = uint32(len(e.funcImports) + i)
	}
	for i, g := range m.globals {
		e.globalIndex[g.Name] = uint32(len(e.globalImports) + i)
	}

	out, err := e.write(opts)
	if err != nil {
		return nil, err
	}

	res := &EmitResult{Binary: out}
	if opts.SourceMapURL != "" {
		sm, err := e.buildSourceMap()
		if err != nil {
			return nil, err
		}
		res.SourceMap = sm
	}

	Logger().Debug("module emitted",
		zap.Int("bytes", len(res.Binary)),
		zap.Int("functions", len(m.funcOrder)))
	return res, nil
}

type locEntry struct {
	offset uint32
	loc    DebugLocation
}

type emitter struct {
	m             *Module
	sigIndex      map[string]uint32
	funcIndex     map[string]uint32
	globalIndex   map[string]uint32
	funcImports   []*Import
	globalImports []*Import

	locs []locEntry // offsets into the assembled binary
}

func valtypeByte(t Type) byte {
	switch t {
	case TypeInt32:
		return bin.ValI32
	case TypeInt64:
		return bin.ValI64
	case TypeFloat32:
		return bin.ValF32
	case TypeFloat64:
		return bin.ValF64
	}
	return 0
}

func writeBlockType(b *bin.Buffer, t Type) {
	switch t {
	case TypeInt32:
		b.WriteI33(int64(bin.BlockTypeI32))
	case TypeInt64:
		b.WriteI33(int64(bin.BlockTypeI64))
	case TypeFloat32:
		b.WriteI33(int64(bin.BlockTypeF32))
	case TypeFloat64:
		b.WriteI33(int64(bin.BlockTypeF64))
	default:
		b.WriteI33(int64(bin.BlockTypeVoid))
	}
}

func (e *emitter) write(opts EmitOptions) ([]byte, error) {
	out := &bin.Buffer{}
	out.WriteU32LE(bin.Magic)
	out.WriteU32LE(bin.Version)

	sections := []struct {
		id    byte
		build func() (*bin.Buffer, error)
	}{
		{bin.SectionType, e.typeSection},
		{bin.SectionImport, e.importSection},
		{bin.SectionFunction, e.functionSection},
		{bin.SectionTable, e.tableSection},
		{bin.SectionMemory, e.memorySection},
		{bin.SectionGlobal, e.globalSection},
		{bin.SectionExport, e.exportSection},
		{bin.SectionStart, e.startSection},
		{bin.SectionElement, e.elementSection},
		{bin.SectionCode, e.codeSection},
		{bin.SectionData, e.dataSection},
	}

	for _, sec := range sections {
		body, err := sec.build()
		if err != nil {
			return nil, err
		}
		if body == nil {
			continue
		}
		out.AppendByte(sec.id)
		out.WriteU32(uint32(body.Len()))
		if sec.id == bin.SectionCode {
			// Debug locations were recorded relative to the code
			// section body; pin them to the file now.
			base := uint32(out.Len())
			for i := range e.locs {
				e.locs[i].offset += base
			}
		}
		out.WriteBytes(body.Bytes)
	}

	if opts.DebugInfo {
		if body := e.nameSection(); body != nil {
			out.AppendByte(bin.SectionCustom)
			out.WriteU32(uint32(body.Len()))
			out.WriteBytes(body.Bytes)
		}
	}
	if opts.SourceMapURL != "" {
		body := &bin.Buffer{}
		body.WriteName("sourceMappingURL")
		body.WriteName(opts.SourceMapURL)
		out.AppendByte(bin.SectionCustom)
		out.WriteU32(uint32(body.Len()))
		out.WriteBytes(body.Bytes)
	}

	return out.Bytes, nil
}

func (e *emitter) typeSection() (*bin.Buffer, error) {
	if len(e.m.sigOrder) == 0 {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(uint32(len(e.m.sigOrder)))
	for _, sig := range e.m.sigOrder {
		b.AppendByte(bin.ValFunc)
		b.WriteU32(uint32(len(sig.params)))
		for _, p := range sig.params {
			b.AppendByte(valtypeByte(p))
		}
		if sig.result == TypeNone {
			b.WriteU32(0)
		} else {
			b.WriteU32(1)
			b.AppendByte(valtypeByte(sig.result))
		}
	}
	return b, nil
}

func (e *emitter) importSection() (*bin.Buffer, error) {
	if len(e.m.imports) == 0 {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(uint32(len(e.m.imports)))
	for _, imp := range e.m.imports {
		b.WriteName(imp.Module)
		b.WriteName(imp.Base)
		switch imp.Kind {
		case ExternalFunction:
			b.AppendByte(bin.KindFunc)
			b.WriteU32(e.sigIndex[imp.Sig.name])
		case ExternalTable:
			b.AppendByte(bin.KindTable)
			b.AppendByte(bin.ValFuncRef)
			b.WriteLimits(0, nil)
		case ExternalMemory:
			b.AppendByte(bin.KindMemory)
			b.WriteLimits(0, nil)
		case ExternalGlobal:
			b.AppendByte(bin.KindGlobal)
			b.AppendByte(valtypeByte(imp.GlobalType))
			b.AppendByte(0) // immutable
		}
	}
	return b, nil
}

func (e *emitter) functionSection() (*bin.Buffer, error) {
	if len(e.m.funcOrder) == 0 {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(uint32(len(e.m.funcOrder)))
	for _, fn := range e.m.funcOrder {
		idx, ok := e.sigIndex[fn.sig.name]
		if !ok {
			return nil, errors.SerializeFailed(
				"function %q uses unregistered type %q", fn.name, fn.sig.name)
		}
		b.WriteU32(idx)
	}
	return b, nil
}

func (e *emitter) tableSection() (*bin.Buffer, error) {
	if !e.m.hasTable {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(1)
	b.AppendByte(bin.ValFuncRef)
	size := uint32(len(e.m.table))
	b.WriteLimits(size, &size)
	return b, nil
}

func (e *emitter) memorySection() (*bin.Buffer, error) {
	if !e.m.hasMemory {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(1)
	if e.m.memory.Maximum == NoMaximum {
		b.WriteLimits(e.m.memory.Initial, nil)
	} else {
		max := e.m.memory.Maximum
		b.WriteLimits(e.m.memory.Initial, &max)
	}
	return b, nil
}

func (e *emitter) globalSection() (*bin.Buffer, error) {
	if len(e.m.globals) == 0 {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(uint32(len(e.m.globals)))
	for _, g := range e.m.globals {
		b.AppendByte(valtypeByte(g.Type))
		if g.Mutable {
			b.AppendByte(1)
		} else {
			b.AppendByte(0)
		}
		if err := e.constExpr(b, g.Init); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (e *emitter) exportSection() (*bin.Buffer, error) {
	exports := e.m.exports
	memoryName := e.m.memory.ExportName
	if e.m.hasMemory && memoryName != "" {
		for _, exp := range exports {
			if exp.Name == memoryName {
				memoryName = ""
				break
			}
		}
	} else {
		memoryName = ""
	}
	if len(exports) == 0 && memoryName == "" {
		return nil, nil
	}

	b := &bin.Buffer{}
	count := uint32(len(exports))
	if memoryName != "" {
		count++
	}
	b.WriteU32(count)
	for _, exp := range exports {
		b.WriteName(exp.Name)
		switch exp.Kind {
		case ExternalFunction:
			idx, ok := e.funcIndex[exp.Internal]
			if !ok {
				return nil, errors.SerializeFailed(
					"export %q references unknown function %q", exp.Name, exp.Internal)
			}
			b.AppendByte(bin.KindFunc)
			b.WriteU32(idx)
		case ExternalTable:
			b.AppendByte(bin.KindTable)
			b.WriteU32(0)
		case ExternalMemory:
			b.AppendByte(bin.KindMemory)
			b.WriteU32(0)
		case ExternalGlobal:
			idx, ok := e.globalIndex[exp.Internal]
			if !ok {
				return nil, errors.SerializeFailed(
					"export %q references unknown global %q", exp.Name, exp.Internal)
			}
			b.AppendByte(bin.KindGlobal)
			b.WriteU32(idx)
		}
	}
	if memoryName != "" {
		b.WriteName(memoryName)
		b.AppendByte(bin.KindMemory)
		b.WriteU32(0)
	}
	return b, nil
}

func (e *emitter) startSection() (*bin.Buffer, error) {
	if e.m.start == nil {
		return nil, nil
	}
	idx, ok := e.funcIndex[e.m.start.name]
	if !ok {
		return nil, errors.SerializeFailed(
			"start references unknown function %q", e.m.start.name)
	}
	b := &bin.Buffer{}
	b.WriteU32(idx)
	return b, nil
}

func (e *emitter) elementSection() (*bin.Buffer, error) {
	if !e.m.hasTable || len(e.m.table) == 0 {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(1) // one active segment
	b.WriteU32(0) // table index
	b.AppendByte(bin.OpI32Const)
	b.WriteI32(0)
	b.AppendByte(bin.OpEnd)
	b.WriteU32(uint32(len(e.m.table)))
	for _, name := range e.m.table {
		idx, ok := e.funcIndex[name]
		if !ok {
			return nil, errors.SerializeFailed(
				"table references unknown function %q", name)
		}
		b.WriteU32(idx)
	}
	return b, nil
}

func (e *emitter) codeSection() (*bin.Buffer, error) {
	if len(e.m.funcOrder) == 0 {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(uint32(len(e.m.funcOrder)))
	for _, fn := range e.m.funcOrder {
		fb := &bin.Buffer{}
		fe := &funcEmitter{em: e, buf: fb}
		writeLocals(fb, fn.locals)
		if err := fe.expr(fn.body); err != nil {
			return nil, errors.Wrap(errors.PhaseEmit, errors.KindSerialize, err,
				"function "+fn.name)
		}
		fb.AppendByte(bin.OpEnd)

		base := uint32(b.Len() + bin.LenU32(uint32(fb.Len())))
		for _, le := range fe.locs {
			e.locs = append(e.locs, locEntry{offset: base + le.offset, loc: le.loc})
		}
		b.WriteU32(uint32(fb.Len()))
		b.WriteBytes(fb.Bytes)
	}
	return b, nil
}

// writeLocals run-length encodes the extra locals.
func writeLocals(b *bin.Buffer, locals []Type) {
	type run struct {
		typ   Type
		count uint32
	}
	var runs []run
	for _, t := range locals {
		if len(runs) > 0 && runs[len(runs)-1].typ == t {
			runs[len(runs)-1].count++
		} else {
			runs = append(runs, run{typ: t, count: 1})
		}
	}
	b.WriteU32(uint32(len(runs)))
	for _, r := range runs {
		b.WriteU32(r.count)
		b.AppendByte(valtypeByte(r.typ))
	}
}

func (e *emitter) dataSection() (*bin.Buffer, error) {
	if !e.m.hasMemory || len(e.m.memory.Segments) == 0 {
		return nil, nil
	}
	b := &bin.Buffer{}
	b.WriteU32(uint32(len(e.m.memory.Segments)))
	for _, seg := range e.m.memory.Segments {
		b.WriteU32(0) // memory index
		if err := e.constExpr(b, seg.Offset); err != nil {
			return nil, err
		}
		b.WriteU32(uint32(len(seg.Data)))
		b.WriteBytes(seg.Data)
	}
	return b, nil
}

// constExpr emits an initializer: a const or an imported global read,
// terminated by end.
func (e *emitter) constExpr(b *bin.Buffer, expr Expr) error {
	fe := &funcEmitter{em: e, buf: b}
	if err := fe.expr(expr); err != nil {
		return err
	}
	b.AppendByte(bin.OpEnd)
	return nil
}

func (e *emitter) nameSection() *bin.Buffer {
	type entry struct {
		idx  uint32
		name string
	}
	var funcNames []entry
	for i, imp := range e.funcImports {
		funcNames = append(funcNames, entry{uint32(i), imp.Name})
	}
	for i, fn := range e.m.funcOrder {
		funcNames = append(funcNames, entry{uint32(len(e.funcImports) + i), fn.name})
	}
	var globalNames []entry
	for i, imp := range e.globalImports {
		globalNames = append(globalNames, entry{uint32(i), imp.Name})
	}
	for i, g := range e.m.globals {
		globalNames = append(globalNames, entry{uint32(len(e.globalImports) + i), g.Name})
	}
	if len(funcNames) == 0 && len(globalNames) == 0 {
		return nil
	}

	b := &bin.Buffer{}
	b.WriteName("name")
	writeMap := func(id byte, entries []entry) {
		if len(entries) == 0 {
			return
		}
		sub := &bin.Buffer{}
		sub.WriteU32(uint32(len(entries)))
		for _, en := range entries {
			sub.WriteU32(en.idx)
			sub.WriteName(en.name)
		}
		b.AppendByte(id)
		b.WriteU32(uint32(sub.Len()))
		b.WriteBytes(sub.Bytes)
	}
	writeMap(bin.NameSubsectionFunction, funcNames)
	writeMap(bin.NameSubsectionGlobal, globalNames)
	return b
}

func (e *emitter) buildSourceMap() ([]byte, error) {
	sb := sourcemap.NewBuilder(e.m.debugFiles)
	for _, le := range e.locs {
		line := le.loc.Line
		if line > 0 {
			line--
		}
		if err := sb.AddMapping(le.offset, int(le.loc.FileIndex), line, le.loc.Column); err != nil {
			return nil, err
		}
	}
	return sb.Build("").Encode()
}

// funcEmitter serializes one expression tree, tracking the label stack so
// break targets become relative depths. If frames occupy a depth level of
// their own and are pushed anonymously.
type funcEmitter struct {
	em     *emitter
	buf    *bin.Buffer
	labels []string
	locs   []locEntry // relative to buf
}

func (fe *funcEmitter) depthOf(target string) (uint32, error) {
	for i := len(fe.labels) - 1; i >= 0; i-- {
		if fe.labels[i] == target {
			return uint32(len(fe.labels) - 1 - i), nil
		}
	}
	return 0, errors.SerializeFailed("branch target %q is not in scope", target)
}

// mark records a debug location at the position of the node's own opcode.
func (fe *funcEmitter) mark(e Expr) {
	if loc := e.DebugLocation(); loc != nil {
		fe.locs = append(fe.locs, locEntry{offset: uint32(fe.buf.Len()), loc: *loc})
	}
}

// closeUnreachable follows a control structure that cannot be exited. Its
// block type was written as empty, so a trailing unreachable keeps the
// operand stack polymorphic for the surrounding code.
func (fe *funcEmitter) closeUnreachable(e Expr) {
	if e.Type() == TypeUnreachable {
		fe.buf.AppendByte(bin.OpUnreachable)
	}
}

func alignLog2(align uint32) uint32 {
	return uint32(bits.TrailingZeros32(align))
}

func (fe *funcEmitter) memarg(align, offset uint32) {
	fe.buf.WriteU32(alignLog2(align))
	fe.buf.WriteU32(offset)
}

func (fe *funcEmitter) atomicOp(sub uint32, align, offset uint32) {
	fe.buf.AppendByte(bin.OpPrefixAtomic)
	fe.buf.WriteU32(sub)
	fe.memarg(align, offset)
}

func (fe *funcEmitter) expr(e Expr) error {
	switch n := e.(type) {
	case *Block:
		fe.mark(n)
		fe.buf.AppendByte(bin.OpBlock)
		writeBlockType(fe.buf, n.Type())
		fe.labels = append(fe.labels, n.Name)
		for _, c := range n.List {
			if err := fe.expr(c); err != nil {
				return err
			}
		}
		fe.labels = fe.labels[:len(fe.labels)-1]
		fe.buf.AppendByte(bin.OpEnd)
		fe.closeUnreachable(n)

	case *If:
		if err := fe.expr(n.Cond); err != nil {
			return err
		}
		if n.Cond.Type() == TypeUnreachable {
			// The condition never yields a value to test, so the arms
			// are dead and the if opcode itself is not written.
			fe.mark(n)
			fe.buf.AppendByte(bin.OpUnreachable)
			return nil
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpIf)
		writeBlockType(fe.buf, n.Type())
		fe.labels = append(fe.labels, "")
		if err := fe.expr(n.IfTrue); err != nil {
			return err
		}
		if n.IfFalse != nil {
			fe.buf.AppendByte(bin.OpElse)
			if err := fe.expr(n.IfFalse); err != nil {
				return err
			}
		}
		fe.labels = fe.labels[:len(fe.labels)-1]
		fe.buf.AppendByte(bin.OpEnd)
		fe.closeUnreachable(n)

	case *Loop:
		fe.mark(n)
		fe.buf.AppendByte(bin.OpLoop)
		writeBlockType(fe.buf, n.Type())
		fe.labels = append(fe.labels, n.Name)
		if err := fe.expr(n.Body); err != nil {
			return err
		}
		fe.labels = fe.labels[:len(fe.labels)-1]
		fe.buf.AppendByte(bin.OpEnd)
		fe.closeUnreachable(n)

	case *Break:
		if n.Value != nil {
			if err := fe.expr(n.Value); err != nil {
				return err
			}
		}
		depth, err := fe.depthOf(n.Target)
		if err != nil {
			return err
		}
		if n.Cond != nil {
			if err := fe.expr(n.Cond); err != nil {
				return err
			}
			fe.mark(n)
			fe.buf.AppendByte(bin.OpBrIf)
		} else {
			fe.mark(n)
			fe.buf.AppendByte(bin.OpBr)
		}
		fe.buf.WriteU32(depth)

	case *Switch:
		if n.Value != nil {
			if err := fe.expr(n.Value); err != nil {
				return err
			}
		}
		if err := fe.expr(n.Cond); err != nil {
			return err
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpBrTable)
		fe.buf.WriteU32(uint32(len(n.Targets)))
		for _, t := range n.Targets {
			depth, err := fe.depthOf(t)
			if err != nil {
				return err
			}
			fe.buf.WriteU32(depth)
		}
		depth, err := fe.depthOf(n.Default)
		if err != nil {
			return err
		}
		fe.buf.WriteU32(depth)

	case *Call:
		for _, op := range n.Operands {
			if err := fe.expr(op); err != nil {
				return err
			}
		}
		idx, ok := fe.em.funcIndex[n.Target]
		if !ok {
			return errors.SerializeFailed("call to unknown function %q", n.Target)
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpCall)
		fe.buf.WriteU32(idx)

	case *CallIndirect:
		for _, op := range n.Operands {
			if err := fe.expr(op); err != nil {
				return err
			}
		}
		if err := fe.expr(n.Target); err != nil {
			return err
		}
		idx, ok := fe.em.sigIndex[n.Sig]
		if !ok {
			return errors.SerializeFailed("call_indirect references unknown type %q", n.Sig)
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpCallIndirect)
		fe.buf.WriteU32(idx)
		fe.buf.AppendByte(0) // table index

	case *GetLocal:
		fe.mark(n)
		fe.buf.AppendByte(bin.OpLocalGet)
		fe.buf.WriteU32(n.Index)

	case *SetLocal:
		if err := fe.expr(n.Value); err != nil {
			return err
		}
		fe.mark(n)
		if n.tee {
			fe.buf.AppendByte(bin.OpLocalTee)
		} else {
			fe.buf.AppendByte(bin.OpLocalSet)
		}
		fe.buf.WriteU32(n.Index)

	case *GetGlobal:
		idx, ok := fe.em.globalIndex[n.Name]
		if !ok {
			return errors.SerializeFailed("get_global references unknown global %q", n.Name)
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpGlobalGet)
		fe.buf.WriteU32(idx)

	case *SetGlobal:
		if err := fe.expr(n.Value); err != nil {
			return err
		}
		idx, ok := fe.em.globalIndex[n.Name]
		if !ok {
			return errors.SerializeFailed("set_global references unknown global %q", n.Name)
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpGlobalSet)
		fe.buf.WriteU32(idx)

	case *Load:
		if err := fe.expr(n.Ptr); err != nil {
			return err
		}
		fe.mark(n)
		if n.Atomic {
			slot, ok := bin.AtomicSlot(n.Type() == TypeInt64, n.Bytes)
			if !ok {
				return errors.SerializeFailed("unsupported atomic load shape")
			}
			fe.atomicOp(bin.AtomicLoadBase+slot, n.Align, n.Offset)
			break
		}
		op, err := loadOpcode(n)
		if err != nil {
			return err
		}
		fe.buf.AppendByte(op)
		fe.memarg(n.Align, n.Offset)

	case *Store:
		if err := fe.expr(n.Ptr); err != nil {
			return err
		}
		if err := fe.expr(n.Value); err != nil {
			return err
		}
		fe.mark(n)
		if n.Atomic {
			slot, ok := bin.AtomicSlot(n.ValueType == TypeInt64, n.Bytes)
			if !ok {
				return errors.SerializeFailed("unsupported atomic store shape")
			}
			fe.atomicOp(bin.AtomicStoreBase+slot, n.Align, n.Offset)
			break
		}
		op, err := storeOpcode(n)
		if err != nil {
			return err
		}
		fe.buf.AppendByte(op)
		fe.memarg(n.Align, n.Offset)

	case *Const:
		fe.mark(n)
		switch n.Value.Type() {
		case TypeInt32:
			fe.buf.AppendByte(bin.OpI32Const)
			fe.buf.WriteI32(n.Value.I32())
		case TypeInt64:
			fe.buf.AppendByte(bin.OpI64Const)
			fe.buf.WriteI64(n.Value.I64())
		case TypeFloat32:
			fe.buf.AppendByte(bin.OpF32Const)
			fe.buf.WriteF32Bits(n.Value.F32Bits())
		case TypeFloat64:
			fe.buf.AppendByte(bin.OpF64Const)
			fe.buf.WriteF64Bits(n.Value.F64Bits())
		}

	case *Unary:
		if err := fe.expr(n.Value); err != nil {
			return err
		}
		fe.mark(n)
		fe.buf.AppendByte(unaryInfo[n.Op].opcode)

	case *Binary:
		if err := fe.expr(n.Left); err != nil {
			return err
		}
		if err := fe.expr(n.Right); err != nil {
			return err
		}
		fe.mark(n)
		fe.buf.AppendByte(binaryInfo[n.Op].opcode)

	case *Select:
		if err := fe.expr(n.IfTrue); err != nil {
			return err
		}
		if err := fe.expr(n.IfFalse); err != nil {
			return err
		}
		if err := fe.expr(n.Cond); err != nil {
			return err
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpSelect)

	case *Drop:
		if err := fe.expr(n.Value); err != nil {
			return err
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpDrop)

	case *Return:
		if n.Value != nil {
			if err := fe.expr(n.Value); err != nil {
				return err
			}
		}
		fe.mark(n)
		fe.buf.AppendByte(bin.OpReturn)

	case *Host:
		for _, op := range n.Operands {
			if err := fe.expr(op); err != nil {
				return err
			}
		}
		fe.mark(n)
		fe.buf.AppendByte(hostInfo[n.Op].opcode)
		fe.buf.AppendByte(0) // memory index

	case *Nop:
		fe.mark(n)
		fe.buf.AppendByte(bin.OpNop)

	case *Unreachable:
		fe.mark(n)
		fe.buf.AppendByte(bin.OpUnreachable)

	case *AtomicRMW:
		if err := fe.expr(n.Ptr); err != nil {
			return err
		}
		if err := fe.expr(n.Value); err != nil {
			return err
		}
		slot, ok := bin.AtomicSlot(n.Type() == TypeInt64, n.Bytes)
		if !ok {
			return errors.SerializeFailed("unsupported atomic rmw shape")
		}
		fe.mark(n)
		fe.atomicOp(atomicRMWInfo[n.Op].base+slot, uint32(n.Bytes), n.Offset)

	case *AtomicCmpxchg:
		if err := fe.expr(n.Ptr); err != nil {
			return err
		}
		if err := fe.expr(n.Expected); err != nil {
			return err
		}
		if err := fe.expr(n.Replacement); err != nil {
			return err
		}
		slot, ok := bin.AtomicSlot(n.Type() == TypeInt64, n.Bytes)
		if !ok {
			return errors.SerializeFailed("unsupported atomic cmpxchg shape")
		}
		fe.mark(n)
		fe.atomicOp(bin.AtomicRmwCmpxchg+slot, uint32(n.Bytes), n.Offset)

	case *AtomicWait:
		if err := fe.expr(n.Ptr); err != nil {
			return err
		}
		if err := fe.expr(n.Expected); err != nil {
			return err
		}
		if err := fe.expr(n.Timeout); err != nil {
			return err
		}
		fe.mark(n)
		if n.ExpectedType == TypeInt64 {
			fe.atomicOp(bin.AtomicWait64, 8, 0)
		} else {
			fe.atomicOp(bin.AtomicWait32, 4, 0)
		}

	case *AtomicWake:
		if err := fe.expr(n.Ptr); err != nil {
			return err
		}
		if err := fe.expr(n.WakeCount); err != nil {
			return err
		}
		fe.mark(n)
		fe.atomicOp(bin.AtomicNotify, 4, 0)

	default:
		return errors.SerializeFailed("cannot serialize %s node", e.Kind())
	}
	return nil
}

func loadOpcode(n *Load) (byte, error) {
	switch n.Type() {
	case TypeInt32:
		switch {
		case n.Bytes == 4:
			return bin.OpI32Load, nil
		case n.Bytes == 1 && n.Signed:
			return bin.OpI32Load8S, nil
		case n.Bytes == 1:
			return bin.OpI32Load8U, nil
		case n.Bytes == 2 && n.Signed:
			return bin.OpI32Load16S, nil
		case n.Bytes == 2:
			return bin.OpI32Load16U, nil
		}
	case TypeInt64:
		switch {
		case n.Bytes == 8:
			return bin.OpI64Load, nil
		case n.Bytes == 1 && n.Signed:
			return bin.OpI64Load8S, nil
		case n.Bytes == 1:
			return bin.OpI64Load8U, nil
		case n.Bytes == 2 && n.Signed:
			return bin.OpI64Load16S, nil
		case n.Bytes == 2:
			return bin.OpI64Load16U, nil
		case n.Bytes == 4 && n.Signed:
			return bin.OpI64Load32S, nil
		case n.Bytes == 4:
			return bin.OpI64Load32U, nil
		}
	case TypeFloat32:
		return bin.OpF32Load, nil
	case TypeFloat64:
		return bin.OpF64Load, nil
	case TypeUnreachable:
		// The access shape decides; an unreachable load still encodes.
		if n.Bytes == 8 {
			return bin.OpI64Load, nil
		}
		return bin.OpI32Load, nil
	}
	return 0, errors.SerializeFailed("unsupported load shape")
}

func storeOpcode(n *Store) (byte, error) {
	switch n.ValueType {
	case TypeInt32:
		switch n.Bytes {
		case 4:
			return bin.OpI32Store, nil
		case 1:
			return bin.OpI32Store8, nil
		case 2:
			return bin.OpI32Store16, nil
		}
	case TypeInt64:
		switch n.Bytes {
		case 8:
			return bin.OpI64Store, nil
		case 1:
			return bin.OpI64Store8, nil
		case 2:
			return bin.OpI64Store16, nil
		case 4:
			return bin.OpI64Store32, nil
		}
	case TypeFloat32:
		return bin.OpF32Store, nil
	case TypeFloat64:
		return bin.OpF64Store, nil
	}
	return 0, errors.SerializeFailed("unsupported store shape")
}
