// Package relooper turns an arbitrary control-flow graph into structured
// control flow over the expression form. Callers register basic blocks and
// the branches between them, then render once; the result is a dispatch
// loop driven by a label-helper local, which every graph shape can
// flow through.
package relooper

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// Relooper accumulates a control-flow graph for one function body.
// Instances are single-use: Render consumes the graph.
type Relooper struct {
	m        *ir.Module
	blocks   []*Block
	rendered bool
}

// Block is one basic block in the graph. Code runs when control enters
// the block; the branches added with AddBranch or AddBranchForSwitch
// decide where control goes next.
type Block struct {
	id       int
	code     ir.Expr
	selector ir.Expr // switch selector, nil for conditional blocks
	branches []*branch
	dispatch int // index in the rendered dispatch table
}

type branch struct {
	to      *Block
	cond    ir.Expr  // nil marks the unconditional (or default) branch
	code    ir.Expr  // optional, runs when the branch is taken
	indices []uint32 // switch selector values, nil for the default
}

// New returns an empty graph whose rendered output allocates nodes in m.
func New(m *ir.Module) *Relooper {
	return &Relooper{m: m}
}

// AddBlock registers a basic block running code, which may be nil for an
// empty block.
func (r *Relooper) AddBlock(code ir.Expr) *Block {
	b := &Block{id: len(r.blocks), code: code}
	r.blocks = append(r.blocks, b)
	return b
}

// AddBlockWithSwitch registers a basic block whose outgoing edges are
// selected by the i32 selector value rather than by branch conditions.
func (r *Relooper) AddBlockWithSwitch(code, selector ir.Expr) *Block {
	b := &Block{id: len(r.blocks), code: code, selector: selector}
	r.blocks = append(r.blocks, b)
	return b
}

// AddBranch adds an edge from a conditional block. Conditions are
// evaluated in the order branches were added; the branch with a nil
// condition is unconditional and must be the last one added.
func (r *Relooper) AddBranch(from, to *Block, cond, code ir.Expr) error {
	if from == nil || to == nil {
		return errors.InvalidArgument(errors.PhaseRender, "branch requires both endpoints")
	}
	if from.selector != nil {
		return errors.InvalidOperation(errors.PhaseRender, "switch blocks take AddBranchForSwitch edges")
	}
	if n := len(from.branches); n > 0 && from.branches[n-1].cond == nil {
		return errors.InvalidOperation(errors.PhaseRender, "block already has an unconditional branch")
	}
	from.branches = append(from.branches, &branch{to: to, cond: cond, code: code})
	return nil
}

// AddBranchForSwitch adds an edge taken when the block's selector matches
// one of indices. A nil or empty indices slice marks the default edge,
// which must be the last one added.
func (r *Relooper) AddBranchForSwitch(from, to *Block, indices []uint32, code ir.Expr) error {
	if from == nil || to == nil {
		return errors.InvalidArgument(errors.PhaseRender, "branch requires both endpoints")
	}
	if from.selector == nil {
		return errors.InvalidOperation(errors.PhaseRender, "conditional blocks take AddBranch edges")
	}
	if n := len(from.branches); n > 0 && from.branches[n-1].indices == nil {
		return errors.InvalidOperation(errors.PhaseRender, "block already has a default branch")
	}
	br := &branch{to: to, code: code}
	if len(indices) > 0 {
		br.indices = append([]uint32(nil), indices...)
	}
	from.branches = append(from.branches, br)
	return nil
}

// Render lowers the graph into a single expression. labelHelper is the
// index of a scratch i32 local in the destination function; it carries
// the dispatch index between iterations. The instance cannot be rendered
// twice, and blocks unreachable from entry are dropped.
func (r *Relooper) Render(entry *Block, labelHelper uint32) (ir.Expr, error) {
	if r.rendered {
		return nil, errors.InvalidOperation(errors.PhaseRender, "relooper instance was already rendered")
	}
	r.rendered = true
	if entry == nil {
		return nil, errors.InvalidArgument(errors.PhaseRender, "render requires an entry block")
	}

	reachable := r.reach(entry)
	order := make([]*Block, 0, reachable.Count())
	for _, b := range r.blocks {
		if reachable.Test(uint(b.id)) {
			b.dispatch = len(order)
			order = append(order, b)
		}
	}
	Logger().Debug("rendering graph",
		zap.Int("blocks", len(r.blocks)),
		zap.Int("reachable", len(order)))

	const topLabel = "relooper$top"
	const exitLabel = "relooper$exit"

	// Innermost: dispatch on the helper local.
	targets := make([]string, len(order))
	for i := range order {
		targets[i] = dispatchLabel(i)
	}
	helper, err := r.m.GetLocal(labelHelper, ir.TypeInt32)
	if err != nil {
		return nil, err
	}
	chain, err := r.m.Switch(targets, exitLabel, helper, nil)
	if err != nil {
		return nil, err
	}

	// Each block wraps the chain so far; its body runs after the wrapped
	// block breaks to the matching label.
	list := []ir.Expr{chain}
	for i, b := range order {
		labeled, err := r.m.Block(dispatchLabel(i), list, ir.TypeNone)
		if err != nil {
			return nil, err
		}
		body, err := r.blockBody(b, topLabel, exitLabel, labelHelper)
		if err != nil {
			return nil, err
		}
		list = append([]ir.Expr{labeled}, body...)
	}

	loopBody, err := r.m.Block("", list, ir.TypeNone)
	if err != nil {
		return nil, err
	}
	loop, err := r.m.Loop(topLabel, loopBody)
	if err != nil {
		return nil, err
	}
	seed, err := r.setHelper(labelHelper, entry.dispatch)
	if err != nil {
		return nil, err
	}
	return r.m.Block(exitLabel, []ir.Expr{seed, loop}, ir.TypeNone)
}

func (r *Relooper) reach(entry *Block) *bitset.BitSet {
	seen := bitset.New(uint(len(r.blocks)))
	stack := []*Block{entry}
	seen.Set(uint(entry.id))
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, br := range b.branches {
			if !seen.Test(uint(br.to.id)) {
				seen.Set(uint(br.to.id))
				stack = append(stack, br.to)
			}
		}
	}
	return seen
}

// blockBody renders a block's code followed by its branch selection.
func (r *Relooper) blockBody(b *Block, topLabel, exitLabel string, helper uint32) ([]ir.Expr, error) {
	var out []ir.Expr
	if b.code != nil {
		out = append(out, b.code)
	}

	if len(b.branches) == 0 {
		brk, err := r.m.Break(exitLabel, nil, nil)
		if err != nil {
			return nil, err
		}
		return append(out, brk), nil
	}

	if b.selector != nil {
		sel, err := r.switchSelection(b, topLabel, helper)
		if err != nil {
			return nil, err
		}
		return append(out, sel...), nil
	}

	last := b.branches[len(b.branches)-1]
	if last.cond != nil {
		return nil, errors.InvalidOperation(errors.PhaseRender,
			fmt.Sprintf("block %d has no unconditional branch", b.id))
	}
	for _, br := range b.branches[:len(b.branches)-1] {
		taken, err := r.gotoBlock(br, topLabel, helper)
		if err != nil {
			return nil, err
		}
		guarded, err := r.m.If(br.cond, taken, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, guarded)
	}
	taken, err := r.gotoBlock(last, topLabel, helper)
	if err != nil {
		return nil, err
	}
	return append(out, taken), nil
}

// switchSelection lowers a selector-driven block with the same wrapping
// trick as the outer dispatch: a br_table into per-branch regions.
func (r *Relooper) switchSelection(b *Block, topLabel string, helper uint32) ([]ir.Expr, error) {
	branches := b.branches
	def := branches[len(branches)-1]
	if def.indices != nil {
		return nil, errors.InvalidOperation(errors.PhaseRender,
			fmt.Sprintf("switch block %d has no default branch", b.id))
	}

	max := uint32(0)
	for _, br := range branches {
		for _, idx := range br.indices {
			if idx > max {
				max = idx
			}
		}
	}
	defLabel := switchLabel(b.id, len(branches)-1)
	targets := make([]string, max+1)
	for i := range targets {
		targets[i] = defLabel
	}
	for j, br := range branches {
		for _, idx := range br.indices {
			targets[idx] = switchLabel(b.id, j)
		}
	}

	chain, err := r.m.Switch(targets, defLabel, b.selector, nil)
	if err != nil {
		return nil, err
	}
	list := []ir.Expr{chain}
	for j, br := range branches {
		labeled, err := r.m.Block(switchLabel(b.id, j), list, ir.TypeNone)
		if err != nil {
			return nil, err
		}
		taken, err := r.gotoBlock(br, topLabel, helper)
		if err != nil {
			return nil, err
		}
		list = []ir.Expr{labeled, taken}
	}
	return list, nil
}

// gotoBlock renders taking one branch: optional edge code, then steering
// the dispatch loop at the target.
func (r *Relooper) gotoBlock(br *branch, topLabel string, helper uint32) (ir.Expr, error) {
	set, err := r.setHelper(helper, br.to.dispatch)
	if err != nil {
		return nil, err
	}
	next, err := r.m.Break(topLabel, nil, nil)
	if err != nil {
		return nil, err
	}
	steps := []ir.Expr{set, next}
	if br.code != nil {
		steps = append([]ir.Expr{br.code}, steps...)
	}
	return r.m.Block("", steps, ir.TypeNone)
}

func (r *Relooper) setHelper(helper uint32, value int) (ir.Expr, error) {
	c, err := r.m.Const(ir.Int32Literal(int32(value)))
	if err != nil {
		return nil, err
	}
	return r.m.SetLocal(helper, c)
}

func dispatchLabel(i int) string {
	return fmt.Sprintf("relooper$b%d", i)
}

func switchLabel(block, branch int) string {
	return fmt.Sprintf("relooper$s%d$%d", block, branch)
}
