package wat_test

import (
	"errors"
	"strings"
	"testing"

	irerrors "github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
	"github.com/wippyai/wasm-ir/wat"
)

// buildCounter assembles a module exercising most printable entities: a
// memory with a data segment, a mutable global, a function table, an
// exported function, and a start function.
func buildCounter(t *testing.T) *ir.Module {
	t.Helper()
	m := ir.NewModule()
	t.Cleanup(m.Close)

	binop, err := m.AddFunctionType("binop", ir.TypeInt32, []ir.Type{ir.TypeInt32, ir.TypeInt32})
	if err != nil {
		t.Fatalf("AddFunctionType: %v", err)
	}
	void, err := m.AddFunctionType("void", ir.TypeNone, nil)
	if err != nil {
		t.Fatalf("AddFunctionType: %v", err)
	}

	a, _ := m.GetLocal(0, ir.TypeInt32)
	b, _ := m.GetLocal(1, ir.TypeInt32)
	sum, err := m.Binary(ir.AddInt32, a, b)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	if _, err := m.AddFunction("add", binop, nil, sum); err != nil {
		t.Fatalf("AddFunction(add): %v", err)
	}
	if _, err := m.AddFunctionExport("add", "add"); err != nil {
		t.Fatalf("AddFunctionExport: %v", err)
	}

	zero, _ := m.Const(ir.Int32Literal(0))
	if _, err := m.AddGlobal("counter", ir.TypeInt32, true, zero); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}
	one, _ := m.Const(ir.Int32Literal(1))
	reset, err := m.SetGlobal("counter", one)
	if err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	initFn, err := m.AddFunction("init", void, nil, reset)
	if err != nil {
		t.Fatalf("AddFunction(init): %v", err)
	}
	if err := m.SetStart(initFn); err != nil {
		t.Fatalf("SetStart: %v", err)
	}

	off, _ := m.Const(ir.Int32Literal(8))
	segs := []ir.Segment{{Offset: off, Data: []byte("hi\x00")}}
	if err := m.SetMemory(1, ir.NoMaximum, "", segs); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}
	if err := m.SetFunctionTable([]string{"add"}); err != nil {
		t.Fatalf("SetFunctionTable: %v", err)
	}
	return m
}

func TestPrintParseRoundTrip(t *testing.T) {
	m := buildCounter(t)
	first, err := wat.Print(m)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}

	parsed, err := wat.Parse(first)
	if err != nil {
		t.Fatalf("Parse:\n%s\nerror: %v", first, err)
	}
	defer parsed.Close()
	if err := parsed.Validate(); err != nil {
		t.Fatalf("Validate after parse: %v", err)
	}

	second, err := wat.Print(parsed)
	if err != nil {
		t.Fatalf("Print after parse: %v", err)
	}
	if first != second {
		t.Errorf("round trip changed the text\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestPrintCoversModuleFields(t *testing.T) {
	m := buildCounter(t)
	text, err := wat.Print(m)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	for _, want := range []string{
		"(type $binop (func (param i32 i32) (result i32)))",
		"(memory $0 1)",
		`(data (i32.const 8) "hi\00")`,
		"(table $0 1 1 funcref)",
		"(elem (i32.const 0) $add)",
		"(global $counter (mut i32) (i32.const 0))",
		`(export "add" (func $add))`,
		"(start $init)",
		"(func $add (type $binop) (param i32 i32) (result i32)",
		"(i32.add",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestParseHandWritten(t *testing.T) {
	src := `
;; a max and an accumulating loop
(module
 (type $binop (func (param i32 i32) (result i32)))
 (func $max (export "max") (param $a i32) (param $b i32) (result i32)
  (if (result i32)
   (i32.gt_s (local.get $a) (local.get $b))
   (then (local.get $a))
   (else (local.get $b))))
 (func $sum (param $n i32) (result i32) (local $acc i32)
  (block $done
   (loop $top
    (br_if $done (i32.eqz (local.get $n)))
    (local.set $acc (i32.add (local.get $acc) (local.get $n)))
    (local.set $n (i32.sub (local.get $n) (i32.const 1)))
    (br $top)))
  (local.get $acc))
 (export "sum" (func $sum)))
`
	m, err := wat.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer m.Close()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if fn := m.GetFunction("max"); fn == nil {
		t.Error("function max not registered")
	} else if fn.Sig() != m.GetFunctionType("binop") {
		t.Error("max should reuse the declared binop type")
	}
	if exp := m.LookupExport("max"); exp == nil || exp.Kind != ir.ExternalFunction {
		t.Error("inline export not registered")
	}
	if fn := m.GetFunction("sum"); fn == nil {
		t.Error("function sum not registered")
	} else if len(fn.ExtraLocals()) != 1 || fn.ExtraLocals()[0] != ir.TypeInt32 {
		t.Errorf("sum locals = %v, want one i32", fn.ExtraLocals())
	}
}

func TestParseNumericBranchDepth(t *testing.T) {
	src := `
(module
 (func $pick (export "pick") (result i32)
  (block (result i32)
   (br 0 (i32.const 7)))))
`
	m, err := wat.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer m.Close()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	// The synthesized label must survive a reprint.
	text, err := wat.Print(m)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !strings.Contains(text, "(br $") {
		t.Errorf("numeric branch should resolve to a label:\n%s", text)
	}
}

func TestParseImportsAndIndirectCalls(t *testing.T) {
	src := `
(module
 (type $unop (func (param i32) (result i32)))
 (import "env" "bump" (func $bump (type $unop)))
 (import "env" "base" (global $base i32))
 (func $dispatch (param $i i32) (result i32)
  (call_indirect (type $unop)
   (call $bump (global.get $base))
   (local.get $i)))
 (table $0 1 1 funcref)
 (elem (i32.const 0) $dispatch))
`
	m, err := wat.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer m.Close()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if imp := m.LookupImport(ir.ExternalFunction, "bump"); imp == nil {
		t.Error("function import not registered")
	}
	if imp := m.LookupImport(ir.ExternalGlobal, "base"); imp == nil {
		t.Error("global import not registered")
	}
}

func TestParseMemoryOperations(t *testing.T) {
	src := `
(module
 (memory $0 1 4)
 (func $io (param $p i32) (result i32)
  (i32.store offset=4 (local.get $p) (i32.const -1))
  (i32.store8 (local.get $p) (i32.const 255))
  (drop (i64.load32_u (local.get $p)))
  (drop (i32.atomic.rmw.add (local.get $p) (i32.const 1)))
  (drop (memory.atomic.notify (local.get $p) (i32.const 2)))
  (drop (memory.grow (i32.const 1)))
  (i32.load16_s offset=2 (local.get $p))))
`
	m, err := wat.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer m.Close()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	mem, ok := m.MemoryInfo()
	if !ok {
		t.Fatal("memory not registered")
	}
	if mem.Initial != 1 || mem.Maximum != 4 {
		t.Errorf("memory limits = %d/%d, want 1/4", mem.Initial, mem.Maximum)
	}

	text, err := wat.Print(m)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	for _, want := range []string{
		"(i32.store offset=4",
		"(i32.store8",
		"(i64.load32_u",
		"(i32.atomic.rmw.add",
		"(memory.atomic.notify",
		"(memory.grow",
		"(i32.load16_s offset=2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("reprint missing %q:\n%s", want, text)
		}
	}
}

func TestParseFloatLiterals(t *testing.T) {
	src := `
(module
 (global $a f32 (f32.const 1.5))
 (global $b f64 (f64.const -inf))
 (global $c f64 (f64.const nan:0x4000000000000))
 (global $d f32 (f32.const 2e-3)))
`
	m, err := wat.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer m.Close()

	first, err := wat.Print(m)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	back, err := wat.Parse(first)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	defer back.Close()
	second, err := wat.Print(back)
	if err != nil {
		t.Fatalf("reprint: %v", err)
	}
	if first != second {
		t.Errorf("float literals changed across round trip\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unclosed module", "(module"},
		{"unknown field", "(module (frobnicate))"},
		{"unknown instruction", "(module (func $f (i32.frob)))"},
		{"call to unknown function", "(module (func $f (call $missing)))"},
		{"branch depth out of range", "(module (func $f (br 3)))"},
		{"data without memory", `(module (data (i32.const 0) "x"))`},
		{"bad escape", `(module (memory $0 1) (data (i32.const 0) "\zz"))`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := wat.Parse(tc.src); err == nil {
				t.Errorf("Parse(%q) should fail", tc.src)
			}
		})
	}
}

func TestParseErrorCarriesLine(t *testing.T) {
	_, err := wat.Parse("(module\n (func $f\n  (i32.frob)))")
	if err == nil {
		t.Fatal("Parse should fail")
	}
	var werr *irerrors.Error
	if !errors.As(err, &werr) {
		t.Fatalf("error type = %T, want *errors.Error", err)
	}
	if werr.Kind != irerrors.KindParse {
		t.Errorf("Kind = %v, want KindParse", werr.Kind)
	}
	if !strings.Contains(werr.Detail, "line 3") {
		t.Errorf("Detail = %q, want line 3 position", werr.Detail)
	}
}

func TestPrintFunction(t *testing.T) {
	m := buildCounter(t)
	text, err := wat.PrintFunction(m, m.GetFunction("add"))
	if err != nil {
		t.Fatalf("PrintFunction: %v", err)
	}
	if !strings.HasPrefix(text, "(func $add") {
		t.Errorf("unexpected prefix:\n%s", text)
	}
	if _, err := wat.PrintFunction(m, nil); err == nil {
		t.Error("PrintFunction(nil) should fail")
	}
}

func TestPrintAsmjs(t *testing.T) {
	m := buildCounter(t)
	text, err := wat.PrintAsmjs(m)
	if err != nil {
		t.Fatalf("PrintAsmjs: %v", err)
	}
	for _, want := range []string{
		`"use asm";`,
		"function add(l0, l1) {",
		"l0 = (l0|0);",
		"return ((l0 + l1)|0);",
		"return { add: add };",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}
