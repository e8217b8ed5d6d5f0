package wasmir_test

import (
	"testing"

	wasmir "github.com/wippyai/wasm-ir"
)

func TestDefaultTunables(t *testing.T) {
	d := wasmir.Default()
	if d.OptimizeLevel != 2 || d.ShrinkLevel != 0 || !d.DebugInfo {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}

func TestSetDefaultRoundTrips(t *testing.T) {
	old := wasmir.Default()
	defer wasmir.SetDefault(old)

	want := wasmir.Tunables{OptimizeLevel: 0, ShrinkLevel: 2, DebugInfo: false}
	wasmir.SetDefault(want)
	if got := wasmir.Default(); got != want {
		t.Fatalf("Default() = %+v, want %+v", got, want)
	}
}
