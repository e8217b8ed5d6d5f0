// Package passes holds the module transformation registry. Shipped passes
// are structural hygiene; heavier optimization plugs in through Register.
package passes

import (
	"sync"

	"go.uber.org/zap"

	wasmir "github.com/wippyai/wasm-ir"
	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// Options carries the tunables a pass consults while rewriting a module.
type Options struct {
	wasmir.Tunables
}

// DefaultOptions copies the process-wide tunables.
func DefaultOptions() *Options {
	return &Options{Tunables: wasmir.Default()}
}

// Pass rewrites a module in place. Run must leave the module valid.
type Pass interface {
	Name() string
	Run(m *ir.Module, opts *Options) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Pass)
	order      []string
)

// Register adds a pass under its name, replacing any previous
// registration.
func Register(p Pass) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[p.Name()]; !ok {
		order = append(order, p.Name())
	}
	registry[p.Name()] = p
}

// Lookup resolves a registered pass by name.
func Lookup(name string) (Pass, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// Names lists the registered passes in registration order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return append([]string(nil), order...)
}

// Run executes the named passes in order. A name with no registration
// fails with KindNotFound before any pass has touched the module.
func Run(m *ir.Module, names []string, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	resolved := make([]Pass, 0, len(names))
	for _, name := range names {
		p, ok := Lookup(name)
		if !ok {
			return errors.NotFound(errors.PhaseOptimize, "pass", name)
		}
		resolved = append(resolved, p)
	}
	for _, p := range resolved {
		Logger().Debug("running pass", zap.String("pass", p.Name()))
		if err := p.Run(m, opts); err != nil {
			return errors.Wrap(errors.PhaseOptimize, errors.KindInvalidOperation, err, "pass "+p.Name()+" failed")
		}
	}
	return nil
}

// Optimize runs the default hygiene pipeline: unused label removal
// always, debug stripping when the options ask for a debug-free module.
func Optimize(m *ir.Module, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	pipeline := []string{"remove-unused-names"}
	if !opts.DebugInfo {
		pipeline = append(pipeline, "strip-debug")
	}
	return Run(m, pipeline, opts)
}

func init() {
	Register(removeUnusedNames{})
	Register(stripDebug{})
}
