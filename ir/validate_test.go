package ir_test

import (
	"errors"
	"strings"
	"testing"

	irerrors "github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// exprMust returns a helper that unwraps factory results inline, failing
// the test on a build error.
func exprMust(t *testing.T) func(e ir.Expr, err error) ir.Expr {
	return func(e ir.Expr, err error) ir.Expr {
		t.Helper()
		if err != nil {
			t.Fatalf("building expression: %v", err)
		}
		return e
	}
}

func mustAddFunction(t *testing.T, m *ir.Module, name string, sig *ir.Signature, locals []ir.Type, body ir.Expr) *ir.Function {
	t.Helper()
	fn, err := m.AddFunction(name, sig, locals, body)
	if err != nil {
		t.Fatalf("AddFunction(%q): %v", name, err)
	}
	return fn
}

func validationError(t *testing.T, err error) *irerrors.ValidationError {
	t.Helper()
	if err == nil {
		t.Fatal("Validate() = nil, want diagnostics")
	}
	var ve *irerrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Validate() = %v, want a ValidationError", err)
	}
	return ve
}

func wantDiag(t *testing.T, err error, substr string) {
	t.Helper()
	ve := validationError(t, err)
	for _, d := range ve.Diags {
		if strings.Contains(d.Detail, substr) {
			return
		}
	}
	t.Errorf("no diagnostic contains %q in:\n%v", substr, err)
}

func TestValidateCleanModuleIsQuiet(t *testing.T) {
	m := newTestModule(t)
	must := exprMust(t)

	vv := mustSig(t, m, "v_v", ir.TypeNone)
	iii := mustSig(t, m, "ii_i", ir.TypeInt32, ir.TypeInt32, ir.TypeInt32)
	iv := mustSig(t, m, "i_v", ir.TypeNone, ir.TypeInt32)

	if _, err := m.AddFunctionImport("log", "env", "log", iv); err != nil {
		t.Fatalf("AddFunctionImport: %v", err)
	}
	if _, err := m.AddGlobalImport("base", "env", "base", ir.TypeInt32); err != nil {
		t.Fatalf("AddGlobalImport: %v", err)
	}

	if _, err := m.AddGlobal("count", ir.TypeInt32, true, mustConstI32(t, m, 0)); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}
	if _, err := m.AddGlobal("origin", ir.TypeInt32, false, must(m.GetGlobal("base", ir.TypeInt32))); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}

	segments := []ir.Segment{
		{Offset: mustConstI32(t, m, 8), Data: []byte("hi")},
		{Offset: must(m.GetGlobal("base", ir.TypeInt32)), Data: []byte{1, 2, 3}},
	}
	if err := m.SetMemory(2, 4, "memory", segments); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}

	addBody := must(m.Binary(ir.AddInt32,
		must(m.GetLocal(0, ir.TypeInt32)),
		must(m.GetLocal(1, ir.TypeInt32))))
	mustAddFunction(t, m, "add", iii, nil, addBody)

	if err := m.SetFunctionTable([]string{"add"}); err != nil {
		t.Fatalf("SetFunctionTable: %v", err)
	}

	loop := must(m.Loop("again", must(m.If(
		must(m.GetLocal(0, ir.TypeInt32)),
		must(m.Break("again", nil, nil)),
		nil))))

	body := must(m.Block("out", []ir.Expr{
		must(m.SetLocal(0, mustConstI32(t, m, 5))),
		must(m.Break("out", mustConstI32(t, m, 0), nil)),
		loop,
		must(m.Call("log", []ir.Expr{mustConstI32(t, m, 3)}, ir.TypeNone)),
		must(m.SetGlobal("count", must(m.Call("add",
			[]ir.Expr{mustConstI32(t, m, 1), mustConstI32(t, m, 2)}, ir.TypeInt32)))),
		must(m.Store(4, 0, 0, mustConstI32(t, m, 16), mustConstI32(t, m, 7), ir.TypeInt32)),
		must(m.Drop(must(m.Load(4, false, 0, 0, ir.TypeInt32, mustConstI32(t, m, 16))))),
		must(m.Drop(must(m.CallIndirect(mustConstI32(t, m, 0),
			[]ir.Expr{mustConstI32(t, m, 1), mustConstI32(t, m, 2)}, "ii_i")))),
		must(m.Drop(must(m.Host(ir.GrowMemory, "", []ir.Expr{mustConstI32(t, m, 1)})))),
		must(m.Drop(must(m.AtomicRMW(ir.AtomicRMWAdd, 4, 0,
			mustConstI32(t, m, 8), mustConstI32(t, m, 1), ir.TypeInt32)))),
		must(m.Return(nil)),
	}, ir.TypeNone))

	run := mustAddFunction(t, m, "run", vv, []ir.Type{ir.TypeInt32}, body)
	if err := m.SetStart(run); err != nil {
		t.Fatalf("SetStart: %v", err)
	}

	if _, err := m.AddFunctionExport("add", "add"); err != nil {
		t.Fatalf("AddFunctionExport: %v", err)
	}
	if _, err := m.AddGlobalExport("count", "count"); err != nil {
		t.Fatalf("AddGlobalExport: %v", err)
	}
	if _, err := m.AddTableExport("0", "table"); err != nil {
		t.Fatalf("AddTableExport: %v", err)
	}

	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateModuleShape(t *testing.T) {
	t.Run("memory defined and imported", func(t *testing.T) {
		m := newTestModule(t)
		if _, err := m.AddMemoryImport("mem", "env", "memory"); err != nil {
			t.Fatalf("AddMemoryImport: %v", err)
		}
		if err := m.SetMemory(1, 1, "", []ir.Segment{}); err != nil {
			t.Fatalf("SetMemory: %v", err)
		}
		wantDiag(t, m.Validate(), "memory is both defined and imported")
	})

	t.Run("table defined and imported", func(t *testing.T) {
		m := newTestModule(t)
		vv := mustSig(t, m, "v_v", ir.TypeNone)
		mustAddFunction(t, m, "f", vv, nil, m.Nop())
		if _, err := m.AddTableImport("tbl", "env", "table"); err != nil {
			t.Fatalf("AddTableImport: %v", err)
		}
		if err := m.SetFunctionTable([]string{"f"}); err != nil {
			t.Fatalf("SetFunctionTable: %v", err)
		}
		wantDiag(t, m.Validate(), "function table is both defined and imported")
	})

	t.Run("duplicate export name", func(t *testing.T) {
		m := newTestModule(t)
		vv := mustSig(t, m, "v_v", ir.TypeNone)
		mustAddFunction(t, m, "f", vv, nil, m.Nop())
		for i := 0; i < 2; i++ {
			if _, err := m.AddFunctionExport("f", "x"); err != nil {
				t.Fatalf("AddFunctionExport: %v", err)
			}
		}
		wantDiag(t, m.Validate(), `duplicate export name "x"`)
	})

	t.Run("dangling exports", func(t *testing.T) {
		m := newTestModule(t)
		if _, err := m.AddFunctionExport("ghost", "f"); err != nil {
			t.Fatalf("AddFunctionExport: %v", err)
		}
		if _, err := m.AddGlobalExport("ghost", "g"); err != nil {
			t.Fatalf("AddGlobalExport: %v", err)
		}
		if _, err := m.AddTableExport("0", "t"); err != nil {
			t.Fatalf("AddTableExport: %v", err)
		}
		if _, err := m.AddMemoryExport("0", "m"); err != nil {
			t.Fatalf("AddMemoryExport: %v", err)
		}
		err := m.Validate()
		wantDiag(t, err, `exported function "ghost" is not defined or imported`)
		wantDiag(t, err, `exported global "ghost" is not defined or imported`)
		wantDiag(t, err, "table export without a table")
		wantDiag(t, err, "memory export without a memory")
	})

	t.Run("unknown table entry", func(t *testing.T) {
		m := newTestModule(t)
		if err := m.SetFunctionTable([]string{"ghost"}); err != nil {
			t.Fatalf("SetFunctionTable: %v", err)
		}
		wantDiag(t, m.Validate(), `table entry 0 references unknown function "ghost"`)
	})

	t.Run("segment offset must be i32", func(t *testing.T) {
		m := newTestModule(t)
		off, err := m.Const(ir.Int64Literal(0))
		if err != nil {
			t.Fatalf("Const: %v", err)
		}
		segs := []ir.Segment{{Offset: off, Data: []byte{1}}}
		if err := m.SetMemory(1, 1, "", segs); err != nil {
			t.Fatalf("SetMemory: %v", err)
		}
		wantDiag(t, m.Validate(), "constant is i64, expected i32")
	})

	t.Run("segment past initial size", func(t *testing.T) {
		m := newTestModule(t)
		segs := []ir.Segment{{Offset: mustConstI32(t, m, 65530), Data: make([]byte, 16)}}
		if err := m.SetMemory(1, 1, "", segs); err != nil {
			t.Fatalf("SetMemory: %v", err)
		}
		wantDiag(t, m.Validate(), "exceeds initial memory of 1 pages")
	})

	t.Run("start function removed", func(t *testing.T) {
		m := newTestModule(t)
		vv := mustSig(t, m, "v_v", ir.TypeNone)
		fn := mustAddFunction(t, m, "boot", vv, nil, m.Nop())
		if err := m.SetStart(fn); err != nil {
			t.Fatalf("SetStart: %v", err)
		}
		if err := m.RemoveFunction("boot"); err != nil {
			t.Fatalf("RemoveFunction: %v", err)
		}
		wantDiag(t, m.Validate(), `start function "boot" is no longer defined`)
	})

	t.Run("start function takes a parameter", func(t *testing.T) {
		m := newTestModule(t)
		iv := mustSig(t, m, "i_v", ir.TypeNone, ir.TypeInt32)
		fn := mustAddFunction(t, m, "boot", iv, nil, m.Nop())
		if err := m.SetStart(fn); err != nil {
			t.Fatalf("SetStart: %v", err)
		}
		wantDiag(t, m.Validate(), `start function "boot" must take and return nothing`)
	})
}

func TestValidateGlobalRules(t *testing.T) {
	m := newTestModule(t)
	must := exprMust(t)

	if _, err := m.AddGlobalImport("ibase", "env", "base", ir.TypeFloat32); err != nil {
		t.Fatalf("AddGlobalImport: %v", err)
	}

	addGlobal := func(name string, mutable bool, init ir.Expr) {
		t.Helper()
		if _, err := m.AddGlobal(name, ir.TypeInt32, mutable, init); err != nil {
			t.Fatalf("AddGlobal(%q): %v", name, err)
		}
	}
	addGlobal("ro", false, mustConstI32(t, m, 0))
	addGlobal("rw", true, mustConstI32(t, m, 0))
	addGlobal("badconst", false, exprOf(t, m, ir.TypeFloat32))
	addGlobal("fromdefined", false, must(m.GetGlobal("rw", ir.TypeInt32)))
	addGlobal("badimport", false, must(m.GetGlobal("ibase", ir.TypeFloat32)))
	addGlobal("computed", false, must(m.Binary(ir.AddInt32,
		mustConstI32(t, m, 1), mustConstI32(t, m, 2))))

	vv := mustSig(t, m, "v_v", ir.TypeNone)
	mustAddFunction(t, m, "w1", vv, nil, must(m.SetGlobal("ro", mustConstI32(t, m, 1))))
	mustAddFunction(t, m, "w2", vv, nil, must(m.SetGlobal("rw", exprOf(t, m, ir.TypeFloat64))))
	mustAddFunction(t, m, "w3", vv, nil, must(m.SetGlobal("ghost", mustConstI32(t, m, 1))))
	mustAddFunction(t, m, "r1", vv, nil, must(m.Drop(must(m.GetGlobal("ghost", ir.TypeInt32)))))
	mustAddFunction(t, m, "r2", vv, nil, must(m.Drop(must(m.GetGlobal("rw", ir.TypeFloat32)))))

	err := m.Validate()
	wantDiag(t, err, "constant is f32, expected i32")
	wantDiag(t, err, `initializer references "rw", which is not an imported global`)
	wantDiag(t, err, `initializer global "ibase" is f32, expected i32`)
	wantDiag(t, err, "initializer must be a constant expression")
	wantDiag(t, err, `set_global writes immutable global "ro"`)
	wantDiag(t, err, `set_global "rw" stores f64, global is i32`)
	wantDiag(t, err, `set_global references unknown global "ghost"`)
	wantDiag(t, err, `get_global references unknown global "ghost"`)
	wantDiag(t, err, `get_global "rw" annotated f32, global is i32`)
}

func TestValidateBodyDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		params []ir.Type
		result ir.Type
		locals []ir.Type
		body   func(t *testing.T, m *ir.Module) ir.Expr
		want   string
	}{
		{
			name:   "value left behind",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				return mustConstI32(t, m, 42)
			},
			want: "body yields i32 but the function returns nothing",
		},
		{
			name:   "missing result",
			result: ir.TypeInt32,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				return m.Nop()
			},
			want: "body yields none, expected i32",
		},
		{
			name:   "condition not i32",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.If(exprOf(t, m, ir.TypeFloat32), m.Nop(), nil))
			},
			want: "if condition is f32, expected i32",
		},
		{
			name:   "return without value",
			result: ir.TypeInt32,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Return(nil))
			},
			want: "return carries nothing, function returns i32",
		},
		{
			name:   "return against void",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Return(mustConstI32(t, m, 42)))
			},
			want: "return carries i32, function returns nothing",
		},
		{
			name:   "local out of range",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Drop(must(m.GetLocal(3, ir.TypeInt32))))
			},
			want: "get_local 3 out of range (0 locals)",
		},
		{
			name:   "local annotation mismatch",
			params: []ir.Type{ir.TypeInt64},
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Drop(must(m.GetLocal(0, ir.TypeInt32))))
			},
			want: "get_local 0 annotated i32, local is i64",
		},
		{
			name:   "stored type mismatch",
			params: []ir.Type{ir.TypeInt64},
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.SetLocal(0, mustConstI32(t, m, 1)))
			},
			want: "set_local 0 stores i32, local is i64",
		},
		{
			name:   "unary operand mismatch",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Drop(must(m.Unary(ir.EqZInt32, exprOf(t, m, ir.TypeFloat64)))))
			},
			want: "i32.eqz operand is f64, expected i32",
		},
		{
			name:   "binary operand mismatch",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Drop(must(m.Binary(ir.AddInt32,
					mustConstI32(t, m, 1), exprOf(t, m, ir.TypeFloat64)))))
			},
			want: "i32.add right operand is f64, expected i32",
		},
		{
			name:   "select arms disagree",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Select(mustConstI32(t, m, 1),
					exprOf(t, m, ir.TypeInt32), exprOf(t, m, ir.TypeFloat64)))
			},
			want: "select arms disagree: i32 vs f64",
		},
		{
			name:   "select condition mismatch",
			result: ir.TypeInt32,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Select(exprOf(t, m, ir.TypeFloat64),
					exprOf(t, m, ir.TypeInt32), exprOf(t, m, ir.TypeInt32)))
			},
			want: "select condition is f64, expected i32",
		},
		{
			name:   "drop of nothing",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Drop(m.Nop()))
			},
			want: "drop of an expression that yields nothing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModule(t)
			sig := mustSig(t, m, "sig", tt.result, tt.params...)
			mustAddFunction(t, m, "f", sig, tt.locals, tt.body(t, m))
			wantDiag(t, m.Validate(), tt.want)
		})
	}
}

func TestValidateBranchRules(t *testing.T) {
	tests := []struct {
		name   string
		result ir.Type
		body   func(t *testing.T, m *ir.Module) ir.Expr
		want   string
	}{
		{
			name:   "unknown label",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				br := must(m.Break("nope", mustConstI32(t, m, 1), nil))
				return must(m.Block("b", []ir.Expr{br}, ir.TypeNone))
			},
			want: `break target "nope" is not in scope`,
		},
		{
			name:   "value into loop",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				br := must(m.Break("l", mustConstI32(t, m, 1), mustConstI32(t, m, 2)))
				return must(m.Drop(must(m.Loop("l", br))))
			},
			want: `break to loop "l" cannot carry a value`,
		},
		{
			name:   "missing value",
			result: ir.TypeInt32,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				br := must(m.Break("b", mustConstI32(t, m, 1), nil))
				return must(m.Block("b", []ir.Expr{br, mustConstI32(t, m, 42)}, ir.TypeInt32))
			},
			want: `break to "b" must carry a i32`,
		},
		{
			name:   "wrong value type",
			result: ir.TypeInt32,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				br := must(m.Break("c", mustConstI32(t, m, 1), exprOf(t, m, ir.TypeFloat32)))
				return must(m.Block("c", []ir.Expr{br, mustConstI32(t, m, 42)}, ir.TypeInt32))
			},
			want: `break to "c" carries f32, expected i32`,
		},
		{
			name:   "value into void block",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				br := must(m.Break("d", mustConstI32(t, m, 1), mustConstI32(t, m, 2)))
				return must(m.Block("d", []ir.Expr{must(m.Drop(br)), m.Nop()}, ir.TypeNone))
			},
			want: `break to "d" carries a value, but the target yields nothing`,
		},
		{
			name:   "switch targets out of scope",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Switch([]string{"a"}, "b", mustConstI32(t, m, 0), nil))
			},
			want: `switch target "a" is not in scope`,
		},
		{
			name:   "shadowed label resolves to nearest",
			result: ir.TypeInt32,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				br := must(m.Break("x", mustConstI32(t, m, 1), nil))
				inner := must(m.Block("x", []ir.Expr{br, m.Nop()}, ir.TypeNone))
				return must(m.Block("x", []ir.Expr{inner, mustConstI32(t, m, 42)}, ir.TypeInt32))
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModule(t)
			sig := mustSig(t, m, "sig", tt.result)
			mustAddFunction(t, m, "f", sig, nil, tt.body(t, m))
			err := m.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			wantDiag(t, err, tt.want)
		})
	}
}

func TestValidateCallShapes(t *testing.T) {
	m := newTestModule(t)
	must := exprMust(t)

	vv := mustSig(t, m, "v_v", ir.TypeNone)
	iii := mustSig(t, m, "ii_i", ir.TypeInt32, ir.TypeInt32, ir.TypeInt32)

	addBody := must(m.Binary(ir.AddInt32,
		must(m.GetLocal(0, ir.TypeInt32)),
		must(m.GetLocal(1, ir.TypeInt32))))
	mustAddFunction(t, m, "add", iii, nil, addBody)
	if err := m.SetFunctionTable([]string{"add"}); err != nil {
		t.Fatalf("SetFunctionTable: %v", err)
	}

	args := func() []ir.Expr {
		return []ir.Expr{mustConstI32(t, m, 1), mustConstI32(t, m, 2)}
	}

	mustAddFunction(t, m, "unknown target", vv, nil,
		must(m.Drop(must(m.Call("mul", args(), ir.TypeInt32)))))
	mustAddFunction(t, m, "wrong arity", vv, nil,
		must(m.Drop(must(m.Call("add", []ir.Expr{mustConstI32(t, m, 1)}, ir.TypeInt32)))))
	mustAddFunction(t, m, "wrong annotation", vv, nil,
		must(m.Drop(must(m.Call("add", args(), ir.TypeFloat32)))))
	mustAddFunction(t, m, "wrong argument", vv, nil,
		must(m.Drop(must(m.Call("add",
			[]ir.Expr{exprOf(t, m, ir.TypeFloat64), mustConstI32(t, m, 2)}, ir.TypeInt32)))))
	mustAddFunction(t, m, "bad table index", vv, nil,
		must(m.Drop(must(m.CallIndirect(exprOf(t, m, ir.TypeFloat32), args(), "ii_i")))))

	err := m.Validate()
	wantDiag(t, err, `call to unknown function "mul"`)
	wantDiag(t, err, `call to "add" passes 1 argument(s), ii_i takes 2`)
	wantDiag(t, err, `call to "add" annotated f32, ii_i returns i32`)
	wantDiag(t, err, `call to "add" argument 0 is f64, expected i32`)
	wantDiag(t, err, "call_indirect index is f32, expected i32")

	t.Run("without a table", func(t *testing.T) {
		m := newTestModule(t)
		must := exprMust(t)
		vv := mustSig(t, m, "v_v", ir.TypeNone)
		mustSig(t, m, "i_i", ir.TypeInt32, ir.TypeInt32)
		mustAddFunction(t, m, "f", vv, nil,
			must(m.Drop(must(m.CallIndirect(mustConstI32(t, m, 0),
				[]ir.Expr{mustConstI32(t, m, 1)}, "i_i")))))
		wantDiag(t, m.Validate(), "call_indirect requires a function table")
	})

	t.Run("type removed after build", func(t *testing.T) {
		m := newTestModule(t)
		must := exprMust(t)
		vv := mustSig(t, m, "v_v", ir.TypeNone)
		mustSig(t, m, "i_i", ir.TypeInt32, ir.TypeInt32)
		mustAddFunction(t, m, "g", vv, nil, m.Nop())
		if err := m.SetFunctionTable([]string{"g"}); err != nil {
			t.Fatalf("SetFunctionTable: %v", err)
		}
		mustAddFunction(t, m, "f", vv, nil,
			must(m.Drop(must(m.CallIndirect(mustConstI32(t, m, 0),
				[]ir.Expr{mustConstI32(t, m, 1)}, "i_i")))))
		if err := m.RemoveFunctionType("i_i"); err != nil {
			t.Fatalf("RemoveFunctionType: %v", err)
		}
		wantDiag(t, m.Validate(), `call_indirect references unknown type "i_i"`)
	})
}

func TestValidateMemorylessOperations(t *testing.T) {
	m := newTestModule(t)
	must := exprMust(t)
	vv := mustSig(t, m, "v_v", ir.TypeNone)

	i64Zero := func() ir.Expr { return exprOf(t, m, ir.TypeInt64) }

	mustAddFunction(t, m, "load", vv, nil,
		must(m.Drop(must(m.Load(4, false, 0, 0, ir.TypeInt32, mustConstI32(t, m, 0))))))
	mustAddFunction(t, m, "store", vv, nil,
		must(m.Store(4, 0, 0, mustConstI32(t, m, 0), mustConstI32(t, m, 1), ir.TypeInt32)))
	mustAddFunction(t, m, "size", vv, nil,
		must(m.Drop(must(m.Host(ir.CurrentMemory, "", nil)))))
	mustAddFunction(t, m, "wait", vv, nil,
		must(m.Drop(must(m.AtomicWait(mustConstI32(t, m, 0),
			mustConstI32(t, m, 0), i64Zero(), ir.TypeInt32)))))
	mustAddFunction(t, m, "wake", vv, nil,
		must(m.Drop(must(m.AtomicWake(mustConstI32(t, m, 0), mustConstI32(t, m, 1))))))
	mustAddFunction(t, m, "cmpxchg", vv, nil,
		must(m.Drop(must(m.AtomicCmpxchg(4, 0, mustConstI32(t, m, 0),
			mustConstI32(t, m, 1), mustConstI32(t, m, 2), ir.TypeInt32)))))

	err := m.Validate()
	wantDiag(t, err, "load requires a memory")
	wantDiag(t, err, "store requires a memory")
	wantDiag(t, err, "memory.size requires a memory")
	wantDiag(t, err, "atomic wait requires a memory")
	wantDiag(t, err, "atomic wake requires a memory")
	wantDiag(t, err, "cmpxchg requires a memory")
}

func TestValidateBlockShape(t *testing.T) {
	tests := []struct {
		name   string
		result ir.Type
		body   func(t *testing.T, m *ir.Module) ir.Expr
		want   string
	}{
		{
			name:   "empty block with a result",
			result: ir.TypeInt32,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Block("e", nil, ir.TypeInt32))
			},
			want: `empty block "e" cannot yield i32`,
		},
		{
			name:   "last child mismatch",
			result: ir.TypeInt32,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Block("b", []ir.Expr{exprOf(t, m, ir.TypeFloat32)}, ir.TypeInt32))
			},
			want: `block "b" yields i32, last child is f32`,
		},
		{
			name:   "unused middle value",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Block("b", []ir.Expr{mustConstI32(t, m, 1), m.Nop()}, ir.TypeNone))
			},
			want: `block "b" child 0 yields a value that is never used`,
		},
		{
			name:   "stray trailing value",
			result: ir.TypeNone,
			body: func(t *testing.T, m *ir.Module) ir.Expr {
				must := exprMust(t)
				return must(m.Block("b", []ir.Expr{m.Nop(), mustConstI32(t, m, 1)}, ir.TypeNone))
			},
			want: `block "b" yields nothing, last child is i32`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModule(t)
			sig := mustSig(t, m, "sig", tt.result)
			mustAddFunction(t, m, "f", sig, nil, tt.body(t, m))
			wantDiag(t, m.Validate(), tt.want)
		})
	}
}

func TestValidateCollectsEveryDiagnostic(t *testing.T) {
	m := newTestModule(t)
	must := exprMust(t)

	vv := mustSig(t, m, "v_v", ir.TypeNone)
	mustAddFunction(t, m, "f", vv, nil,
		must(m.Drop(must(m.Call("ghost", nil, ir.TypeInt32)))))
	if _, err := m.AddFunctionExport("missing", "a"); err != nil {
		t.Fatalf("AddFunctionExport: %v", err)
	}
	if err := m.SetFunctionTable([]string{"also missing"}); err != nil {
		t.Fatalf("SetFunctionTable: %v", err)
	}

	err := m.Validate()
	ve := validationError(t, err)
	if len(ve.Diags) < 3 {
		t.Fatalf("len(Diags) = %d, want at least 3:\n%v", len(ve.Diags), err)
	}
	if !strings.HasPrefix(err.Error(), "module validation failed with") {
		t.Errorf("Error() = %q, want the grouped header", err.Error())
	}
	if !errors.Is(err, &irerrors.ValidationError{}) {
		t.Error("errors.Is should match any ValidationError")
	}

	var whereFunc, whereExport bool
	for _, d := range ve.Diags {
		if strings.HasPrefix(d.Where, "function ") {
			whereFunc = true
		}
		if strings.HasPrefix(d.Where, "export ") {
			whereExport = true
		}
	}
	if !whereFunc || !whereExport {
		t.Errorf("diagnostics should carry their location, got %v", ve.Diags)
	}
}
