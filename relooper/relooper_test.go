package relooper_test

import (
	"errors"
	"testing"

	irerrors "github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
	"github.com/wippyai/wasm-ir/relooper"
)

func newModule(t *testing.T) *ir.Module {
	t.Helper()
	m := ir.NewModule()
	t.Cleanup(m.Close)
	return m
}

// finish wraps a rendered body into a function and checks the module
// validates and survives the binary codec.
func finish(t *testing.T, m *ir.Module, body ir.Expr) {
	t.Helper()
	void, err := m.AddFunctionType("v", ir.TypeNone, nil)
	if err != nil {
		t.Fatalf("AddFunctionType: %v", err)
	}
	if _, err := m.AddFunction("f", void, []ir.Type{ir.TypeInt32}, body); err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	bin, err := m.Emit()
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	back, err := ir.Parse(bin)
	if err != nil {
		t.Fatalf("Parse of emitted binary: %v", err)
	}
	back.Close()
}

func mustConst(t *testing.T, m *ir.Module, v int32) ir.Expr {
	t.Helper()
	c, err := m.Const(ir.Int32Literal(v))
	if err != nil {
		t.Fatalf("Const: %v", err)
	}
	return c
}

func mustLocal(t *testing.T, m *ir.Module, index uint32) ir.Expr {
	t.Helper()
	l, err := m.GetLocal(index, ir.TypeInt32)
	if err != nil {
		t.Fatalf("GetLocal: %v", err)
	}
	return l
}

func TestRenderStraightLine(t *testing.T) {
	m := newModule(t)
	r := relooper.New(m)

	b0 := r.AddBlock(m.Nop())
	b1 := r.AddBlock(m.Nop())
	if err := r.AddBranch(b0, b1, nil, nil); err != nil {
		t.Fatalf("AddBranch: %v", err)
	}

	body, err := r.Render(b0, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	finish(t, m, body)
}

func TestRenderDiamond(t *testing.T) {
	m := newModule(t)
	r := relooper.New(m)

	entry := r.AddBlock(m.Nop())
	left := r.AddBlock(m.Nop())
	right := r.AddBlock(m.Nop())
	exit := r.AddBlock(m.Nop())

	if err := r.AddBranch(entry, left, mustLocal(t, m, 0), nil); err != nil {
		t.Fatalf("AddBranch(entry, left): %v", err)
	}
	if err := r.AddBranch(entry, right, nil, nil); err != nil {
		t.Fatalf("AddBranch(entry, right): %v", err)
	}
	if err := r.AddBranch(left, exit, nil, nil); err != nil {
		t.Fatalf("AddBranch(left, exit): %v", err)
	}
	if err := r.AddBranch(right, exit, nil, nil); err != nil {
		t.Fatalf("AddBranch(right, exit): %v", err)
	}

	body, err := r.Render(entry, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	finish(t, m, body)
}

func TestRenderLoop(t *testing.T) {
	m := newModule(t)
	r := relooper.New(m)

	head := r.AddBlock(m.Nop())
	tail := r.AddBlock(m.Nop())
	if err := r.AddBranch(head, head, mustLocal(t, m, 0), m.Nop()); err != nil {
		t.Fatalf("AddBranch(back edge): %v", err)
	}
	if err := r.AddBranch(head, tail, nil, nil); err != nil {
		t.Fatalf("AddBranch(head, tail): %v", err)
	}

	body, err := r.Render(head, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	finish(t, m, body)
}

func TestRenderSwitch(t *testing.T) {
	m := newModule(t)
	r := relooper.New(m)

	hub := r.AddBlockWithSwitch(m.Nop(), mustLocal(t, m, 0))
	a := r.AddBlock(m.Nop())
	b := r.AddBlock(m.Nop())
	fallback := r.AddBlock(m.Nop())

	if err := r.AddBranchForSwitch(hub, a, []uint32{0}, nil); err != nil {
		t.Fatalf("AddBranchForSwitch(a): %v", err)
	}
	if err := r.AddBranchForSwitch(hub, b, []uint32{1, 3}, m.Nop()); err != nil {
		t.Fatalf("AddBranchForSwitch(b): %v", err)
	}
	if err := r.AddBranchForSwitch(hub, fallback, nil, nil); err != nil {
		t.Fatalf("AddBranchForSwitch(default): %v", err)
	}

	body, err := r.Render(hub, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	finish(t, m, body)
}

func TestRenderDropsUnreachableBlocks(t *testing.T) {
	m := newModule(t)
	r := relooper.New(m)

	entry := r.AddBlock(m.Nop())
	next := r.AddBlock(m.Nop())
	r.AddBlock(m.Nop()) // never branched to
	if err := r.AddBranch(entry, next, nil, nil); err != nil {
		t.Fatalf("AddBranch: %v", err)
	}

	body, err := r.Render(entry, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var dispatch *ir.Switch
	ir.Walk(body, func(e ir.Expr) bool {
		if s, ok := e.(*ir.Switch); ok && dispatch == nil {
			dispatch = s
		}
		return true
	})
	if dispatch == nil {
		t.Fatal("rendered body has no dispatch switch")
	}
	if len(dispatch.Targets) != 2 {
		t.Errorf("dispatch targets = %d, want 2 reachable blocks", len(dispatch.Targets))
	}
	finish(t, m, body)
}

func TestRenderTwice(t *testing.T) {
	m := newModule(t)
	r := relooper.New(m)
	entry := r.AddBlock(m.Nop())

	if _, err := r.Render(entry, 0); err != nil {
		t.Fatalf("first Render: %v", err)
	}
	_, err := r.Render(entry, 0)
	if err == nil {
		t.Fatal("second Render should fail")
	}
	var werr *irerrors.Error
	if !errors.As(err, &werr) {
		t.Fatalf("error type = %T, want *errors.Error", err)
	}
	if werr.Kind != irerrors.KindInvalidOperation {
		t.Errorf("Kind = %v, want KindInvalidOperation", werr.Kind)
	}
	if werr.Phase != irerrors.PhaseRender {
		t.Errorf("Phase = %v, want PhaseRender", werr.Phase)
	}
}

func TestBranchOrdering(t *testing.T) {
	m := newModule(t)
	r := relooper.New(m)
	a := r.AddBlock(m.Nop())
	b := r.AddBlock(m.Nop())

	if err := r.AddBranch(a, b, nil, nil); err != nil {
		t.Fatalf("AddBranch: %v", err)
	}
	if err := r.AddBranch(a, b, mustLocal(t, m, 0), nil); err == nil {
		t.Error("conditional branch after the unconditional one should fail")
	}

	sw := r.AddBlockWithSwitch(m.Nop(), mustLocal(t, m, 0))
	if err := r.AddBranch(sw, b, nil, nil); err == nil {
		t.Error("AddBranch on a switch block should fail")
	}
	if err := r.AddBranchForSwitch(a, b, nil, nil); err == nil {
		t.Error("AddBranchForSwitch on a conditional block should fail")
	}
}
