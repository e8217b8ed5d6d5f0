package passes

import "github.com/wippyai/wasm-ir/ir"

// removeUnusedNames clears block and loop labels nothing branches to,
// so small functions print and emit without label noise.
type removeUnusedNames struct{}

func (removeUnusedNames) Name() string { return "remove-unused-names" }

func (removeUnusedNames) Run(m *ir.Module, _ *Options) error {
	for _, fn := range m.Functions() {
		used := make(map[string]bool)
		ir.Walk(fn.Body(), func(e ir.Expr) bool {
			switch n := e.(type) {
			case *ir.Break:
				used[n.Target] = true
			case *ir.Switch:
				for _, t := range n.Targets {
					used[t] = true
				}
				used[n.Default] = true
			}
			return true
		})
		ir.Walk(fn.Body(), func(e ir.Expr) bool {
			switch n := e.(type) {
			case *ir.Block:
				if n.Name != "" && !used[n.Name] {
					n.Name = ""
				}
			case *ir.Loop:
				if n.Name != "" && !used[n.Name] {
					n.Name = ""
				}
			}
			return true
		})
	}
	return nil
}
