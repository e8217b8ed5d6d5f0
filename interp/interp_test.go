package interp_test

import (
	"context"
	"errors"
	"testing"

	irerrors "github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/interp"
	"github.com/wippyai/wasm-ir/ir"
)

func newModule(t *testing.T) *ir.Module {
	t.Helper()
	m := ir.NewModule()
	t.Cleanup(m.Close)
	return m
}

// buildAdder defines an exported i32 add function.
func buildAdder(t *testing.T) *ir.Module {
	t.Helper()
	m := newModule(t)
	sig, err := m.AddFunctionType("binop", ir.TypeInt32, []ir.Type{ir.TypeInt32, ir.TypeInt32})
	if err != nil {
		t.Fatalf("AddFunctionType: %v", err)
	}
	a, _ := m.GetLocal(0, ir.TypeInt32)
	b, _ := m.GetLocal(1, ir.TypeInt32)
	sum, err := m.Binary(ir.AddInt32, a, b)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	if _, err := m.AddFunction("add", sig, nil, sum); err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	if _, err := m.AddFunctionExport("add", "add"); err != nil {
		t.Fatalf("AddFunctionExport: %v", err)
	}
	return m
}

func TestCallExport(t *testing.T) {
	m := buildAdder(t)
	results, err := interp.CallExport(context.Background(), m, "add",
		[]ir.Literal{ir.Int32Literal(2), ir.Int32Literal(40)})
	if err != nil {
		t.Fatalf("CallExport: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d values, want 1", len(results))
	}
	if got := results[0].I32(); got != 42 {
		t.Errorf("add(2, 40) = %d, want 42", got)
	}
}

func TestCallExportFloats(t *testing.T) {
	m := newModule(t)
	sig, err := m.AddFunctionType("fd", ir.TypeFloat64, []ir.Type{ir.TypeFloat64})
	if err != nil {
		t.Fatalf("AddFunctionType: %v", err)
	}
	x, _ := m.GetLocal(0, ir.TypeFloat64)
	doubled, err := m.Binary(ir.AddFloat64, x, x)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	if _, err := m.AddFunction("dbl", sig, nil, doubled); err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	if _, err := m.AddFunctionExport("dbl", "dbl"); err != nil {
		t.Fatalf("AddFunctionExport: %v", err)
	}

	results, err := interp.CallExport(context.Background(), m, "dbl",
		[]ir.Literal{ir.Float64Literal(1.25)})
	if err != nil {
		t.Fatalf("CallExport: %v", err)
	}
	if got := results[0].F64(); got != 2.5 {
		t.Errorf("dbl(1.25) = %v, want 2.5", got)
	}
}

func TestCallExportUnknownName(t *testing.T) {
	m := buildAdder(t)
	_, err := interp.CallExport(context.Background(), m, "missing", nil)
	if err == nil {
		t.Fatal("CallExport should fail for an unknown export")
	}
	var werr *irerrors.Error
	if !errors.As(err, &werr) {
		t.Fatalf("error type = %T, want *errors.Error", err)
	}
	if werr.Kind != irerrors.KindNotFound {
		t.Errorf("Kind = %v, want KindNotFound", werr.Kind)
	}
}

func TestRunStartCompletes(t *testing.T) {
	m := newModule(t)
	void, err := m.AddFunctionType("v", ir.TypeNone, nil)
	if err != nil {
		t.Fatalf("AddFunctionType: %v", err)
	}
	zero, _ := m.Const(ir.Int32Literal(0))
	if _, err := m.AddGlobal("flag", ir.TypeInt32, true, zero); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}
	one, _ := m.Const(ir.Int32Literal(1))
	set, err := m.SetGlobal("flag", one)
	if err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	fn, err := m.AddFunction("init", void, nil, set)
	if err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	if err := m.SetStart(fn); err != nil {
		t.Fatalf("SetStart: %v", err)
	}

	out, err := interp.RunStart(context.Background(), m)
	if err != nil {
		t.Fatalf("RunStart: %v", err)
	}
	if out.Trapped {
		t.Errorf("start trapped: %s", out.TrapMessage)
	}
}

func TestRunStartTrap(t *testing.T) {
	m := newModule(t)
	void, err := m.AddFunctionType("v", ir.TypeNone, nil)
	if err != nil {
		t.Fatalf("AddFunctionType: %v", err)
	}
	fn, err := m.AddFunction("boom", void, nil, m.Unreachable())
	if err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	if err := m.SetStart(fn); err != nil {
		t.Fatalf("SetStart: %v", err)
	}

	out, err := interp.RunStart(context.Background(), m)
	if err != nil {
		t.Fatalf("RunStart: %v", err)
	}
	if !out.Trapped {
		t.Fatal("start should trap on unreachable")
	}
	if out.TrapMessage == "" {
		t.Error("trap message should be preserved")
	}
}

func TestImportsAreUnsupported(t *testing.T) {
	m := newModule(t)
	sig, err := m.AddFunctionType("v", ir.TypeNone, nil)
	if err != nil {
		t.Fatalf("AddFunctionType: %v", err)
	}
	if _, err := m.AddFunctionImport("tick", "env", "tick", sig); err != nil {
		t.Fatalf("AddFunctionImport: %v", err)
	}

	_, err = interp.RunStart(context.Background(), m)
	if err == nil {
		t.Fatal("RunStart should refuse modules with imports")
	}
	var werr *irerrors.Error
	if !errors.As(err, &werr) {
		t.Fatalf("error type = %T, want *errors.Error", err)
	}
	if werr.Kind != irerrors.KindUnsupported {
		t.Errorf("Kind = %v, want KindUnsupported", werr.Kind)
	}
}
