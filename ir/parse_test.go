package ir_test

import (
	"bytes"
	"errors"
	"testing"

	irerrors "github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// buildRoundTripFixture assembles a module touching every entity kind:
// an adder function, an export, a mutable global, a table entry, a memory
// with one data segment, and a start function.
func buildRoundTripFixture(t *testing.T, m *ir.Module) {
	t.Helper()
	must := exprMust(t)

	sig := mustSig(t, m, "ii_i", ir.TypeInt32, ir.TypeInt32, ir.TypeInt32)
	body := must(m.Binary(ir.AddInt32,
		must(m.GetLocal(0, ir.TypeInt32)),
		must(m.GetLocal(1, ir.TypeInt32))))
	mustAddFunction(t, m, "add", sig, nil, body)
	if _, err := m.AddFunctionExport("add", "add"); err != nil {
		t.Fatalf("AddFunctionExport: %v", err)
	}

	if _, err := m.AddGlobal("counter", ir.TypeInt32, true, mustConstI32(t, m, 7)); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}

	vv := mustSig(t, m, "v_v", ir.TypeNone)
	init := must(m.SetGlobal("counter", mustConstI32(t, m, 1)))
	start := mustAddFunction(t, m, "init", vv, nil, init)
	if err := m.SetStart(start); err != nil {
		t.Fatalf("SetStart: %v", err)
	}

	if err := m.SetFunctionTable([]string{"add"}); err != nil {
		t.Fatalf("SetFunctionTable: %v", err)
	}
	segs := []ir.Segment{{Offset: mustConstI32(t, m, 8), Data: []byte("hi\x00")}}
	if err := m.SetMemory(1, 2, "", segs); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}

	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	m := newTestModule(t)
	buildRoundTripFixture(t, m)

	data, err := m.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got, err := ir.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer got.Close()
	if err := got.Validate(); err != nil {
		t.Fatalf("Validate after parse: %v", err)
	}

	add := got.GetFunction("add")
	if add == nil {
		t.Fatal("parsed module lost the add function")
	}
	if s := add.Sig(); s.Result() != ir.TypeInt32 || len(s.Params()) != 2 {
		t.Errorf("add signature = %v, want (i32, i32) -> i32", s)
	}
	bin, ok := add.Body().(*ir.Binary)
	if !ok {
		t.Fatalf("add body is %T, want *ir.Binary", add.Body())
	}
	if bin.Op != ir.AddInt32 {
		t.Errorf("body op = %v, want i32.add", bin.Op)
	}
	left, lok := bin.Left.(*ir.GetLocal)
	right, rok := bin.Right.(*ir.GetLocal)
	if !lok || !rok || left.Index != 0 || right.Index != 1 {
		t.Errorf("body operands = %T/%T, want local.get 0 and local.get 1", bin.Left, bin.Right)
	}

	exp := got.LookupExport("add")
	if exp == nil || exp.Kind != ir.ExternalFunction || exp.Internal != "add" {
		t.Errorf("export = %+v, want the add function published as add", exp)
	}

	g := got.LookupGlobal("counter")
	if g == nil || g.Type != ir.TypeInt32 || !g.Mutable {
		t.Fatalf("global = %+v, want mutable i32 counter", g)
	}
	if c, ok := g.Init.(*ir.Const); !ok || c.Value.I32() != 7 {
		t.Errorf("global init = %v, want i32.const 7", g.Init)
	}

	if start := got.StartFunction(); start == nil || start.Name() != "init" {
		t.Errorf("start = %v, want the init function", start)
	}

	names, hasTable := got.TableNames()
	if !hasTable || len(names) != 1 || names[0] != "add" {
		t.Errorf("table = %v (%v), want [add]", names, hasTable)
	}

	mem, hasMemory := got.MemoryInfo()
	if !hasMemory || mem.Initial != 1 || mem.Maximum != 2 {
		t.Fatalf("memory = %+v (%v), want 1..2 pages", mem, hasMemory)
	}
	if len(mem.Segments) != 1 || !bytes.Equal(mem.Segments[0].Data, []byte("hi\x00")) {
		t.Errorf("segments = %+v, want one hi\\x00 segment at 8", mem.Segments)
	}
}

// Reparsing a parsed module's output must reproduce it byte for byte:
// synthesized label spellings settle after the first generation.
func TestParseEmitFixedPoint(t *testing.T) {
	m := newTestModule(t)
	buildRoundTripFixture(t, m)

	data, err := m.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	second, err := ir.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer second.Close()
	data2, err := second.Emit()
	if err != nil {
		t.Fatalf("Emit after parse: %v", err)
	}
	third, err := ir.Parse(data2)
	if err != nil {
		t.Fatalf("Parse second generation: %v", err)
	}
	defer third.Close()
	data3, err := third.Emit()
	if err != nil {
		t.Fatalf("Emit second generation: %v", err)
	}
	if !bytes.Equal(data2, data3) {
		t.Errorf("second generation differs:\n% X\n% X", data2, data3)
	}
}

func TestParseSynthesizesNames(t *testing.T) {
	m := newTestModule(t)
	vv := mustSig(t, m, "v_v", ir.TypeNone)
	if _, err := m.AddFunctionImport("tick", "env", "tick", vv); err != nil {
		t.Fatalf("AddFunctionImport: %v", err)
	}
	mustAddFunction(t, m, "run", vv, nil, m.Nop())
	if _, err := m.AddFunctionExport("run", "main"); err != nil {
		t.Fatalf("AddFunctionExport: %v", err)
	}

	res, err := m.EmitWithOptions(ir.EmitOptions{})
	if err != nil {
		t.Fatalf("EmitWithOptions: %v", err)
	}
	got, err := ir.Parse(res.Binary)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer got.Close()

	if imp := got.LookupImport(ir.ExternalFunction, "fimport$0"); imp == nil {
		t.Error("stripped import should parse as fimport$0")
	}
	fn := got.GetFunction("func$1")
	if fn == nil {
		t.Fatal("stripped function should parse as func$1, its space index")
	}
	exp := got.LookupExport("main")
	if exp == nil || exp.Internal != fn.Name() {
		t.Errorf("export = %+v, want it bound to %s", exp, fn.Name())
	}
}

func TestParseRebuildsBranchTargets(t *testing.T) {
	m := newTestModule(t)
	must := exprMust(t)
	vv := mustSig(t, m, "v_v", ir.TypeNone)

	brk := must(m.Break("again", mustConstI32(t, m, 0), nil))
	loop := must(m.Loop("again", brk))
	body := must(m.Block("done", []ir.Expr{loop}, ir.TypeNone))
	mustAddFunction(t, m, "spin", vv, nil, body)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	data, err := m.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got, err := ir.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer got.Close()
	if err := got.Validate(); err != nil {
		t.Fatalf("Validate after parse: %v", err)
	}

	var parsedLoop *ir.Loop
	var parsedBreak *ir.Break
	ir.Walk(got.GetFunction("spin").Body(), func(e ir.Expr) bool {
		switch n := e.(type) {
		case *ir.Loop:
			parsedLoop = n
		case *ir.Break:
			parsedBreak = n
		}
		return true
	})
	if parsedLoop == nil || parsedBreak == nil {
		t.Fatal("parsed body lost its loop or break")
	}
	if parsedLoop.Name == "" || parsedBreak.Target != parsedLoop.Name {
		t.Errorf("break targets %q, loop is labeled %q", parsedBreak.Target, parsedLoop.Name)
	}
	if parsedBreak.Cond == nil {
		t.Error("conditional break lost its condition")
	}
}

func TestParseAtomics(t *testing.T) {
	m := newTestModule(t)
	must := exprMust(t)
	vv := mustSig(t, m, "v_v", ir.TypeNone)

	rmw := must(m.AtomicRMW(ir.AtomicRMWAdd, 4, 0,
		mustConstI32(t, m, 0), mustConstI32(t, m, 1), ir.TypeInt32))
	mustAddFunction(t, m, "bump", vv, nil, must(m.Drop(rmw)))
	if err := m.SetMemory(1, 1, "", []ir.Segment{}); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	data, err := m.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got, err := ir.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer got.Close()

	var parsed *ir.AtomicRMW
	ir.Walk(got.GetFunction("bump").Body(), func(e ir.Expr) bool {
		if n, ok := e.(*ir.AtomicRMW); ok {
			parsed = n
		}
		return true
	})
	if parsed == nil {
		t.Fatal("parsed body lost the atomic rmw")
	}
	if parsed.Op != ir.AtomicRMWAdd || parsed.Bytes != 4 || parsed.Type() != ir.TypeInt32 {
		t.Errorf("rmw = op %v width %d type %v, want add 4 i32", parsed.Op, parsed.Bytes, parsed.Type())
	}
}

func TestParseSkipsUnknownCustomSections(t *testing.T) {
	m := newTestModule(t)
	data, err := m.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	data = append(data,
		0x00, 0x09, 0x05, 'w', 'e', 'i', 'r', 'd', 0xDE, 0xAD, 0xBE,
	)
	got, err := ir.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got.Close()
}

func TestParseErrors(t *testing.T) {
	adder := func(t *testing.T) []byte {
		m := newTestModule(t)
		buildRoundTripFixture(t, m)
		data, err := m.Emit()
		if err != nil {
			t.Fatalf("Emit: %v", err)
		}
		return data
	}

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte{0x01, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}},
		{"bad version", []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}},
		{"unknown section", append(append([]byte(nil), wasmHeader...), 0x0C, 0x00)},
		{"truncated section", append(append([]byte(nil), wasmHeader...), 0x01, 0x7F)},
		{"truncated body", nil}, // filled in below
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data
			if tc.name == "truncated body" {
				full := adder(t)
				data = full[:len(full)-4]
			}
			_, err := ir.Parse(data)
			if err == nil {
				t.Fatal("Parse accepted malformed input")
			}
			var perr *irerrors.Error
			if !errors.As(err, &perr) || perr.Kind != irerrors.KindParse {
				t.Errorf("error = %v, want KindParse", err)
			}
		})
	}
}
