package wasmir

import "sync"

// Tunables are the knobs shared by emission and the pass pipeline. They
// travel explicitly: ir.EmitOptions and passes.Options embed or copy them,
// and nothing in the library reads hidden global state.
type Tunables struct {
	// OptimizeLevel balances run speed against compile time, 0 through 3.
	OptimizeLevel int

	// ShrinkLevel balances code size against run speed, 0 through 2.
	ShrinkLevel int

	// DebugInfo keeps names and debug locations through emission.
	DebugInfo bool
}

var (
	defaultsMu sync.Mutex
	defaults   = Tunables{OptimizeLevel: 2, ShrinkLevel: 0, DebugInfo: true}
)

// Default returns the process-wide default tunables. They exist as a
// compatibility shim for toolchains that configure once and process many
// modules; prefer passing Tunables explicitly.
func Default() Tunables {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	return defaults
}

// SetDefault replaces the process-wide default tunables.
func SetDefault(t Tunables) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	defaults = t
}
