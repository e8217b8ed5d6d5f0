package wat

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-ir/ir"
)

// PrintAsmjs renders the module's functions in a JavaScript-flavored form
// with asm.js-style coercions: `x|0` for 32-bit integers, `Math.fround`
// for f32, `+x` for f64. The output is a debugging aid, not a runnable
// program: 64-bit integers, memory accesses, and atomics appear as
// pseudo-calls, and control flow in value position collapses to a
// placeholder.
func PrintAsmjs(m *ir.Module) (string, error) {
	j := &asmPrinter{m: m, loops: make(map[string]bool)}
	j.line(0, "function asmModule() {")
	j.line(1, `"use asm";`)

	for _, g := range m.Globals() {
		j.line(1, "var %s = %s;", jsName(g.Name), j.expr(g.Init))
	}
	if len(m.Globals()) > 0 {
		j.line(0, "")
	}

	for _, fn := range m.Functions() {
		if err := j.function(fn); err != nil {
			return "", err
		}
		j.line(0, "")
	}

	var entries []string
	for _, e := range m.Exports() {
		if e.Kind == ir.ExternalFunction {
			entries = append(entries, fmt.Sprintf("%s: %s", jsName(e.Name), jsName(e.Internal)))
		}
	}
	j.line(1, "return { %s };", strings.Join(entries, ", "))
	j.line(0, "}")
	return j.b.String(), nil
}

type asmPrinter struct {
	m      *ir.Module
	b      strings.Builder
	loops  map[string]bool // label → rendered as a while loop
	locals []ir.Type
}

func (j *asmPrinter) line(indent int, format string, args ...any) {
	for i := 0; i < indent; i++ {
		j.b.WriteByte(' ')
	}
	fmt.Fprintf(&j.b, format, args...)
	j.b.WriteByte('\n')
}

func (j *asmPrinter) function(fn *ir.Function) error {
	params := fn.Sig().Params()
	names := make([]string, len(params))
	for i := range params {
		names[i] = fmt.Sprintf("l%d", i)
	}
	j.line(1, "function %s(%s) {", jsName(fn.Name()), strings.Join(names, ", "))
	for i, t := range params {
		j.line(2, "%s = %s;", names[i], coerce(t, names[i]))
	}
	j.locals = append(append([]ir.Type(nil), params...), fn.ExtraLocals()...)
	for i, t := range fn.ExtraLocals() {
		j.line(2, "var l%d = %s;", len(params)+i, zeroValue(t))
	}
	j.stmt(2, fn.Body(), fn.Sig().Result() != ir.TypeNone)
	j.line(1, "}")
	return nil
}

// stmt renders e in statement position. tail marks the function's final
// expression, which becomes a return when the function yields a value.
func (j *asmPrinter) stmt(indent int, e ir.Expr, tail bool) {
	switch n := e.(type) {
	case *ir.Block:
		kids := n.List
		if n.Name != "" {
			j.line(indent, "%s: {", jsName(n.Name))
			indent++
		}
		for i, k := range kids {
			j.stmt(indent, k, tail && i == len(kids)-1)
		}
		if n.Name != "" {
			j.line(indent-1, "}")
		}
	case *ir.Loop:
		name := n.Name
		if name == "" {
			name = "loop"
		}
		j.loops[name] = true
		j.line(indent, "%s: while (1) {", jsName(name))
		j.stmt(indent+1, n.Body, false)
		j.line(indent+1, "break;")
		j.line(indent, "}")
		delete(j.loops, name)
	case *ir.If:
		j.line(indent, "if (%s) {", j.expr(n.Cond))
		j.stmt(indent+1, n.IfTrue, tail)
		if n.IfFalse != nil {
			j.line(indent, "} else {")
			j.stmt(indent+1, n.IfFalse, tail)
		}
		j.line(indent, "}")
	case *ir.Break:
		jump := "break"
		if j.loops[n.Target] {
			jump = "continue"
		}
		if n.Cond != nil {
			j.line(indent, "if (%s) %s %s;", j.expr(n.Cond), jump, jsName(n.Target))
		} else {
			j.line(indent, "%s %s;", jump, jsName(n.Target))
		}
	case *ir.Switch:
		j.line(indent, "switch (%s) {", j.expr(n.Cond))
		for i, t := range n.Targets {
			j.line(indent+1, "case %d: break %s;", i, jsName(t))
		}
		j.line(indent+1, "default: break %s;", jsName(n.Default))
		j.line(indent, "}")
	case *ir.Return:
		if n.Value != nil {
			j.line(indent, "return %s;", j.expr(n.Value))
		} else {
			j.line(indent, "return;")
		}
	case *ir.Nop:
		// nothing
	case *ir.Unreachable:
		j.line(indent, "abort();")
	default:
		if tail && e.Type() != ir.TypeNone {
			j.line(indent, "return %s;", j.expr(e))
		} else {
			j.line(indent, "%s;", j.expr(e))
		}
	}
}

func (j *asmPrinter) expr(e ir.Expr) string {
	switch n := e.(type) {
	case *ir.Const:
		return constText(n.Value)
	case *ir.GetLocal:
		return j.localName(n.Index)
	case *ir.SetLocal:
		if n.IsTee() {
			return fmt.Sprintf("(%s = %s)", j.localName(n.Index), j.expr(n.Value))
		}
		return fmt.Sprintf("%s = %s", j.localName(n.Index), j.expr(n.Value))
	case *ir.GetGlobal:
		return jsName(n.Name)
	case *ir.SetGlobal:
		return fmt.Sprintf("%s = %s", jsName(n.Name), j.expr(n.Value))
	case *ir.Binary:
		return j.binary(n)
	case *ir.Unary:
		return j.unary(n)
	case *ir.Call:
		return coerce(n.Type(), fmt.Sprintf("%s(%s)", jsName(n.Target), j.operands(n.Operands)))
	case *ir.CallIndirect:
		return coerce(e.Type(), fmt.Sprintf("FUNCTION_TABLE[%s](%s)", j.expr(n.Target), j.operands(n.Operands)))
	case *ir.Load:
		return coerce(n.Type(), fmt.Sprintf("load%d(%s)", n.Bytes*8, j.expr(n.Ptr)))
	case *ir.Store:
		return fmt.Sprintf("store%d(%s, %s)", n.Bytes*8, j.expr(n.Ptr), j.expr(n.Value))
	case *ir.Select:
		return fmt.Sprintf("(%s ? %s : %s)", j.expr(n.Cond), j.expr(n.IfTrue), j.expr(n.IfFalse))
	case *ir.Drop:
		return j.expr(n.Value)
	case *ir.Host:
		switch n.Op {
		case ir.CurrentMemory:
			return "__memory_size()"
		case ir.GrowMemory:
			return fmt.Sprintf("__memory_grow(%s)", j.operands(n.Operands))
		}
		return fmt.Sprintf("__host(%s)", j.operands(n.Operands))
	case *ir.AtomicRMW, *ir.AtomicCmpxchg, *ir.AtomicWait, *ir.AtomicWake:
		return fmt.Sprintf("/* %s */ 0", e.Kind())
	default:
		// Control flow in value position has no faithful JS spelling.
		return fmt.Sprintf("/* %s */ 0", e.Kind())
	}
}

func (j *asmPrinter) operands(ops []ir.Expr) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = j.expr(o)
	}
	return strings.Join(parts, ", ")
}

func (j *asmPrinter) localName(index uint32) string {
	if int(index) < len(j.locals) {
		return fmt.Sprintf("l%d", index)
	}
	return fmt.Sprintf("l%d", index)
}

// jsBinops maps operators with a direct JS spelling; everything else is
// rendered as a pseudo-call.
var jsBinops = map[ir.BinaryOp]string{
	ir.AddInt32: "+", ir.SubInt32: "-", ir.MulInt32: "*",
	ir.AndInt32: "&", ir.OrInt32: "|", ir.XorInt32: "^",
	ir.ShlInt32: "<<", ir.ShrSInt32: ">>", ir.ShrUInt32: ">>>",
	ir.DivSInt32: "/", ir.RemSInt32: "%",
	ir.EqInt32: "==", ir.NeInt32: "!=",
	ir.LtSInt32: "<", ir.LeSInt32: "<=", ir.GtSInt32: ">", ir.GeSInt32: ">=",
	ir.AddFloat32: "+", ir.SubFloat32: "-", ir.MulFloat32: "*", ir.DivFloat32: "/",
	ir.EqFloat32: "==", ir.NeFloat32: "!=",
	ir.LtFloat32: "<", ir.LeFloat32: "<=", ir.GtFloat32: ">", ir.GeFloat32: ">=",
	ir.AddFloat64: "+", ir.SubFloat64: "-", ir.MulFloat64: "*", ir.DivFloat64: "/",
	ir.EqFloat64: "==", ir.NeFloat64: "!=",
	ir.LtFloat64: "<", ir.LeFloat64: "<=", ir.GtFloat64: ">", ir.GeFloat64: ">=",
}

func (j *asmPrinter) binary(n *ir.Binary) string {
	if op, ok := jsBinops[n.Op]; ok {
		return coerce(n.Type(), fmt.Sprintf("(%s %s %s)", j.expr(n.Left), op, j.expr(n.Right)))
	}
	return fmt.Sprintf("%s(%s, %s)", pseudoName(n.Op.String()), j.expr(n.Left), j.expr(n.Right))
}

func (j *asmPrinter) unary(n *ir.Unary) string {
	switch n.Op {
	case ir.EqZInt32, ir.EqZInt64:
		return fmt.Sprintf("(!(%s)|0)", j.expr(n.Value))
	case ir.NegFloat32, ir.NegFloat64:
		return coerce(n.Type(), fmt.Sprintf("(-%s)", j.expr(n.Value)))
	case ir.AbsFloat32, ir.AbsFloat64:
		return coerce(n.Type(), fmt.Sprintf("Math.abs(%s)", j.expr(n.Value)))
	case ir.SqrtFloat32, ir.SqrtFloat64:
		return coerce(n.Type(), fmt.Sprintf("Math.sqrt(%s)", j.expr(n.Value)))
	}
	return fmt.Sprintf("%s(%s)", pseudoName(n.Op.String()), j.expr(n.Value))
}

func coerce(t ir.Type, s string) string {
	switch t {
	case ir.TypeInt32:
		return fmt.Sprintf("(%s|0)", s)
	case ir.TypeFloat32:
		return fmt.Sprintf("Math.fround(%s)", s)
	case ir.TypeFloat64:
		return fmt.Sprintf("(+%s)", s)
	default:
		return s
	}
}

func zeroValue(t ir.Type) string {
	switch t {
	case ir.TypeFloat32:
		return "Math.fround(0)"
	case ir.TypeFloat64:
		return "0.0"
	default:
		return "0"
	}
}

func constText(l ir.Literal) string {
	switch l.Type() {
	case ir.TypeInt32:
		return fmt.Sprintf("%d", l.I32())
	case ir.TypeInt64:
		return fmt.Sprintf("%d", l.I64())
	case ir.TypeFloat32:
		return fmt.Sprintf("Math.fround(%v)", l.F32())
	case ir.TypeFloat64:
		return fmt.Sprintf("(+%v)", l.F64())
	}
	return "0"
}

// jsName turns an internal name into a JS identifier.
func jsName(name string) string {
	var b strings.Builder
	for i, r := range name {
		ok := r == '_' || r == '$' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func pseudoName(op string) string {
	return strings.NewReplacer(".", "_", "/", "_").Replace(op)
}
