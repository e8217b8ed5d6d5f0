package wat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// Print renders a module in the folded s-expression text format. The
// output is deterministic: entities appear in registration order and
// every expression is fully parenthesized. Parse reads the result back.
func Print(m *ir.Module) (string, error) {
	w := &printer{}
	if err := w.module(m); err != nil {
		return "", err
	}
	return w.b.String(), nil
}

// PrintFunction renders a single function the way Print renders it inside
// a module.
func PrintFunction(m *ir.Module, fn *ir.Function) (string, error) {
	if fn == nil {
		return "", errors.InvalidArgument(errors.PhasePrint, "print requires a function")
	}
	w := &printer{}
	if err := w.function(fn); err != nil {
		return "", err
	}
	return w.b.String(), nil
}

type printer struct {
	b      strings.Builder
	indent int
}

func (w *printer) line(format string, args ...any) {
	w.b.WriteString(strings.Repeat(" ", w.indent))
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *printer) open(format string, args ...any) {
	w.line(format, args...)
	w.indent++
}

func (w *printer) close() {
	w.indent--
	w.line(")")
}

func (w *printer) module(m *ir.Module) error {
	w.open("(module")
	for _, sig := range m.Signatures() {
		w.line("(type $%s (func%s%s))", sig.Name(), paramsText(sig.Params()), resultText(sig.Result()))
	}
	for _, imp := range m.Imports() {
		switch imp.Kind {
		case ir.ExternalFunction:
			w.line("(import %q %q (func $%s (type $%s)))", imp.Module, imp.Base, imp.Name, imp.Sig.Name())
		case ir.ExternalTable:
			w.line("(import %q %q (table $%s 0 funcref))", imp.Module, imp.Base, imp.Name)
		case ir.ExternalMemory:
			w.line("(import %q %q (memory $%s 0))", imp.Module, imp.Base, imp.Name)
		case ir.ExternalGlobal:
			w.line("(import %q %q (global $%s %s))", imp.Module, imp.Base, imp.Name, imp.GlobalType)
		}
	}
	if mem, ok := m.MemoryInfo(); ok {
		var sb strings.Builder
		sb.WriteString("(memory $0")
		if mem.ExportName != "" {
			fmt.Fprintf(&sb, " (export %q)", mem.ExportName)
		}
		fmt.Fprintf(&sb, " %d", mem.Initial)
		if mem.Maximum != ir.NoMaximum {
			fmt.Fprintf(&sb, " %d", mem.Maximum)
		}
		sb.WriteString(")")
		w.line("%s", sb.String())
		for _, seg := range mem.Segments {
			offset, err := flatExpr(seg.Offset)
			if err != nil {
				return err
			}
			w.line("(data %s %s)", offset, escapeData(seg.Data))
		}
	}
	if names, ok := m.TableNames(); ok {
		w.line("(table $0 %d %d funcref)", len(names), len(names))
		var sb strings.Builder
		sb.WriteString("(elem (i32.const 0)")
		for _, n := range names {
			sb.WriteString(" $")
			sb.WriteString(n)
		}
		sb.WriteString(")")
		w.line("%s", sb.String())
	}
	for _, g := range m.Globals() {
		init, err := flatExpr(g.Init)
		if err != nil {
			return err
		}
		if g.Mutable {
			w.line("(global $%s (mut %s) %s)", g.Name, g.Type, init)
		} else {
			w.line("(global $%s %s %s)", g.Name, g.Type, init)
		}
	}
	for _, exp := range m.Exports() {
		var kind string
		switch exp.Kind {
		case ir.ExternalFunction:
			kind = "func"
		case ir.ExternalTable:
			kind = "table"
		case ir.ExternalMemory:
			kind = "memory"
		case ir.ExternalGlobal:
			kind = "global"
		}
		w.line("(export %q (%s $%s))", exp.Name, kind, exp.Internal)
	}
	if start := m.StartFunction(); start != nil {
		w.line("(start $%s)", start.Name())
	}
	for _, fn := range m.Functions() {
		if err := w.function(fn); err != nil {
			return err
		}
	}
	w.close()
	return nil
}

func (w *printer) function(fn *ir.Function) error {
	sig := fn.Sig()
	w.open("(func $%s (type $%s)%s%s", fn.Name(), sig.Name(), paramsText(sig.Params()), resultText(sig.Result()))
	if locals := fn.ExtraLocals(); len(locals) > 0 {
		var sb strings.Builder
		sb.WriteString("(local")
		for _, l := range locals {
			sb.WriteString(" ")
			sb.WriteString(l.String())
		}
		sb.WriteString(")")
		w.line("%s", sb.String())
	}
	if err := w.expr(fn.Body()); err != nil {
		return err
	}
	w.close()
	return nil
}

func paramsText(params []ir.Type) string {
	if len(params) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(" (param")
	for _, p := range params {
		sb.WriteString(" ")
		sb.WriteString(p.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func resultText(result ir.Type) string {
	if result == ir.TypeNone {
		return ""
	}
	return " (result " + result.String() + ")"
}

func blockResultText(t ir.Type) string {
	if t.IsConcrete() {
		return " (result " + t.String() + ")"
	}
	return ""
}

func labelText(name string) string {
	if name == "" {
		return ""
	}
	return " $" + name
}

// flatExpr renders a constant initializer on a single line.
func flatExpr(e ir.Expr) (string, error) {
	switch n := e.(type) {
	case *ir.Const:
		return "(" + n.Value.String() + ")", nil
	case *ir.GetGlobal:
		return "(global.get $" + n.Name + ")", nil
	}
	return "", errors.New(errors.PhasePrint, errors.KindSerialize).
		Detail("%s is not a constant expression", e.Kind()).Build()
}

func (w *printer) exprs(list []ir.Expr) error {
	for _, e := range list {
		if err := w.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (w *printer) expr(e ir.Expr) error {
	switch n := e.(type) {
	case *ir.Block:
		w.open("(block%s%s", labelText(n.Name), blockResultText(n.Type()))
		if err := w.exprs(n.List); err != nil {
			return err
		}
		w.close()

	case *ir.Loop:
		w.open("(loop%s%s", labelText(n.Name), blockResultText(n.Type()))
		if err := w.expr(n.Body); err != nil {
			return err
		}
		w.close()

	case *ir.If:
		w.open("(if%s", blockResultText(n.Type()))
		if err := w.expr(n.Cond); err != nil {
			return err
		}
		w.open("(then")
		if err := w.expr(n.IfTrue); err != nil {
			return err
		}
		w.close()
		if n.IfFalse != nil {
			w.open("(else")
			if err := w.expr(n.IfFalse); err != nil {
				return err
			}
			w.close()
		}
		w.close()

	case *ir.Break:
		switch {
		case n.Cond == nil && n.Value == nil:
			w.line("(br $%s)", n.Target)
		case n.Cond == nil:
			w.open("(br $%s", n.Target)
			if err := w.expr(n.Value); err != nil {
				return err
			}
			w.close()
		default:
			w.open("(br_if $%s", n.Target)
			if n.Value != nil {
				if err := w.expr(n.Value); err != nil {
					return err
				}
			}
			if err := w.expr(n.Cond); err != nil {
				return err
			}
			w.close()
		}

	case *ir.Switch:
		var sb strings.Builder
		sb.WriteString("(br_table")
		for _, t := range n.Targets {
			sb.WriteString(" $")
			sb.WriteString(t)
		}
		sb.WriteString(" $")
		sb.WriteString(n.Default)
		w.open("%s", sb.String())
		if n.Value != nil {
			if err := w.expr(n.Value); err != nil {
				return err
			}
		}
		if err := w.expr(n.Cond); err != nil {
			return err
		}
		w.close()

	case *ir.Call:
		if len(n.Operands) == 0 {
			w.line("(call $%s)", n.Target)
			break
		}
		w.open("(call $%s", n.Target)
		if err := w.exprs(n.Operands); err != nil {
			return err
		}
		w.close()

	case *ir.CallIndirect:
		w.open("(call_indirect (type $%s)", n.Sig)
		if err := w.exprs(n.Operands); err != nil {
			return err
		}
		if err := w.expr(n.Target); err != nil {
			return err
		}
		w.close()

	case *ir.GetLocal:
		w.line("(local.get %d)", n.Index)

	case *ir.SetLocal:
		op := "local.set"
		if n.IsTee() {
			op = "local.tee"
		}
		w.open("(%s %d", op, n.Index)
		if err := w.expr(n.Value); err != nil {
			return err
		}
		w.close()

	case *ir.GetGlobal:
		w.line("(global.get $%s)", n.Name)

	case *ir.SetGlobal:
		w.open("(global.set $%s", n.Name)
		if err := w.expr(n.Value); err != nil {
			return err
		}
		w.close()

	case *ir.Load:
		w.open("(%s%s", loadMnemonic(n), memargText(n.Offset, n.Align, n.Bytes, n.Atomic))
		if err := w.expr(n.Ptr); err != nil {
			return err
		}
		w.close()

	case *ir.Store:
		w.open("(%s%s", storeMnemonic(n), memargText(n.Offset, n.Align, n.Bytes, n.Atomic))
		if err := w.expr(n.Ptr); err != nil {
			return err
		}
		if err := w.expr(n.Value); err != nil {
			return err
		}
		w.close()

	case *ir.Const:
		w.line("(%s)", n.Value)

	case *ir.Unary:
		w.open("(%s", n.Op)
		if err := w.expr(n.Value); err != nil {
			return err
		}
		w.close()

	case *ir.Binary:
		w.open("(%s", n.Op)
		if err := w.expr(n.Left); err != nil {
			return err
		}
		if err := w.expr(n.Right); err != nil {
			return err
		}
		w.close()

	case *ir.Select:
		w.open("(select")
		if err := w.expr(n.IfTrue); err != nil {
			return err
		}
		if err := w.expr(n.IfFalse); err != nil {
			return err
		}
		if err := w.expr(n.Cond); err != nil {
			return err
		}
		w.close()

	case *ir.Drop:
		w.open("(drop")
		if err := w.expr(n.Value); err != nil {
			return err
		}
		w.close()

	case *ir.Return:
		if n.Value == nil {
			w.line("(return)")
			break
		}
		w.open("(return")
		if err := w.expr(n.Value); err != nil {
			return err
		}
		w.close()

	case *ir.Host:
		if len(n.Operands) == 0 {
			w.line("(%s)", n.Op)
			break
		}
		w.open("(%s", n.Op)
		if err := w.exprs(n.Operands); err != nil {
			return err
		}
		w.close()

	case *ir.Nop:
		w.line("(nop)")

	case *ir.Unreachable:
		w.line("(unreachable)")

	case *ir.AtomicRMW:
		w.open("(%s%s", rmwMnemonic(n.Type(), n.Bytes, n.Op.String()), offsetText(n.Offset))
		if err := w.expr(n.Ptr); err != nil {
			return err
		}
		if err := w.expr(n.Value); err != nil {
			return err
		}
		w.close()

	case *ir.AtomicCmpxchg:
		w.open("(%s%s", rmwMnemonic(n.Type(), n.Bytes, "cmpxchg"), offsetText(n.Offset))
		if err := w.expr(n.Ptr); err != nil {
			return err
		}
		if err := w.expr(n.Expected); err != nil {
			return err
		}
		if err := w.expr(n.Replacement); err != nil {
			return err
		}
		w.close()

	case *ir.AtomicWait:
		op := "memory.atomic.wait32"
		if n.ExpectedType == ir.TypeInt64 {
			op = "memory.atomic.wait64"
		}
		w.open("(%s", op)
		if err := w.expr(n.Ptr); err != nil {
			return err
		}
		if err := w.expr(n.Expected); err != nil {
			return err
		}
		if err := w.expr(n.Timeout); err != nil {
			return err
		}
		w.close()

	case *ir.AtomicWake:
		w.open("(memory.atomic.notify")
		if err := w.expr(n.Ptr); err != nil {
			return err
		}
		if err := w.expr(n.WakeCount); err != nil {
			return err
		}
		w.close()

	default:
		return errors.New(errors.PhasePrint, errors.KindSerialize).
			Detail("cannot print %s node", e.Kind()).Build()
	}
	return nil
}

func accessType(t ir.Type, bytes uint8) ir.Type {
	if t.IsConcrete() {
		return t
	}
	// Unreachable-typed accesses keep an integer spelling wide enough for
	// the declared width.
	if bytes == 8 {
		return ir.TypeInt64
	}
	return ir.TypeInt32
}

func loadMnemonic(n *ir.Load) string {
	t := accessType(n.Type(), n.Bytes)
	if n.Atomic {
		if n.Bytes == t.Size() {
			return t.String() + ".atomic.load"
		}
		return fmt.Sprintf("%s.atomic.load%d_u", t, n.Bytes*8)
	}
	if n.Bytes == t.Size() {
		return t.String() + ".load"
	}
	sign := "u"
	if n.Signed {
		sign = "s"
	}
	return fmt.Sprintf("%s.load%d_%s", t, n.Bytes*8, sign)
}

func storeMnemonic(n *ir.Store) string {
	t := accessType(n.ValueType, n.Bytes)
	if n.Atomic {
		if n.Bytes == t.Size() {
			return t.String() + ".atomic.store"
		}
		return fmt.Sprintf("%s.atomic.store%d", t, n.Bytes*8)
	}
	if n.Bytes == t.Size() {
		return t.String() + ".store"
	}
	return fmt.Sprintf("%s.store%d", t, n.Bytes*8)
}

func rmwMnemonic(t ir.Type, bytes uint8, op string) string {
	t = accessType(t, bytes)
	if bytes == t.Size() {
		return fmt.Sprintf("%s.atomic.rmw.%s", t, op)
	}
	return fmt.Sprintf("%s.atomic.rmw%d.%s_u", t, bytes*8, op)
}

func offsetText(offset uint32) string {
	if offset == 0 {
		return ""
	}
	return " offset=" + strconv.FormatUint(uint64(offset), 10)
}

func memargText(offset, align uint32, bytes uint8, atomic bool) string {
	s := offsetText(offset)
	if !atomic && align != uint32(bytes) {
		s += " align=" + strconv.FormatUint(uint64(align), 10)
	}
	return s
}

// escapeData renders segment bytes as a text format string literal.
func escapeData(data []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range data {
		switch {
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c >= 0x20 && c < 0x7F:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\%02x", c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
