package passes

import "github.com/wippyai/wasm-ir/ir"

// stripDebug drops every debug location and the debug file table, the
// module-side half of emitting without a source map.
type stripDebug struct{}

func (stripDebug) Name() string { return "strip-debug" }

func (stripDebug) Run(m *ir.Module, _ *Options) error {
	return m.ClearDebugInfo()
}
