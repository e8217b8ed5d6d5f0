// Package interp executes built modules by emitting them to the binary
// format and running the result under an embedded wazero runtime. It is
// the reference answer for "what does this module do": tests and the CLI
// lean on it to confirm emitted binaries behave.
package interp

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
	"github.com/wippyai/wasm-ir/ir"
)

// Outcome describes how a module run ended.
type Outcome struct {
	// Trapped is set when execution reached a trap instead of completing.
	Trapped bool
	// TrapMessage holds the runtime's trap description when Trapped.
	TrapMessage string
}

// RunStart emits the module and instantiates it, which runs the start
// function. A trap during the start function is reported in the Outcome,
// not as an error; errors cover emit, compile, and import problems.
func RunStart(ctx context.Context, m *ir.Module) (*Outcome, error) {
	inst, err := instantiate(ctx, m)
	if err != nil {
		if out, ok := trapOutcome(err); ok {
			return out, nil
		}
		return nil, err
	}
	defer inst.close(ctx)
	return &Outcome{}, nil
}

// CallExport emits and instantiates the module, then invokes the named
// exported function. Results come back as literals typed per the export's
// signature.
func CallExport(ctx context.Context, m *ir.Module, name string, args []ir.Literal) ([]ir.Literal, error) {
	inst, err := instantiate(ctx, m)
	if err != nil {
		return nil, err
	}
	defer inst.close(ctx)

	fn := inst.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRun, "exported function", name)
	}

	raw := make([]uint64, len(args))
	for i, a := range args {
		raw[i] = encodeLiteral(a)
	}
	Logger().Debug("calling export", zap.String("name", name), zap.Int("args", len(args)))

	results, err := fn.Call(ctx, raw...)
	if err != nil {
		return nil, errors.Trap("export "+name+" trapped", err)
	}

	resultTypes := fn.Definition().ResultTypes()
	out := make([]ir.Literal, len(results))
	for i, r := range results {
		lit, err := decodeLiteral(resultTypes[i], r)
		if err != nil {
			return nil, err
		}
		out[i] = lit
	}
	return out, nil
}

type instance struct {
	rt  wazero.Runtime
	mod api.Module
}

func (i *instance) close(ctx context.Context) {
	i.rt.Close(ctx)
}

// instantiate emits m and brings it up under a fresh runtime with the
// threads feature enabled, so modules using atomics run unmodified.
func instantiate(ctx context.Context, m *ir.Module) (*instance, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(m.Imports()) > 0 {
		return nil, errors.Unsupported(errors.PhaseRun, "modules with imports")
	}
	binary, err := m.Emit()
	if err != nil {
		return nil, err
	}

	cfg := wazero.NewRuntimeConfig().
		WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	compiled, err := rt.CompileModule(ctx, binary)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.New(errors.PhaseRun, errors.KindInvalidOperation).
			Detail("emitted binary was rejected by the runtime").Cause(err).Build()
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("main"))
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return &instance{rt: rt, mod: mod}, nil
}

// trapOutcome classifies an instantiation error as a guest trap.
func trapOutcome(err error) (*Outcome, bool) {
	msg := err.Error()
	if strings.Contains(msg, "wasm error") || strings.Contains(msg, "unreachable") {
		return &Outcome{Trapped: true, TrapMessage: msg}, true
	}
	return nil, false
}

func encodeLiteral(l ir.Literal) uint64 {
	switch l.Type() {
	case ir.TypeInt32:
		return api.EncodeI32(l.I32())
	case ir.TypeInt64:
		return api.EncodeI64(l.I64())
	case ir.TypeFloat32:
		return api.EncodeF32(l.F32())
	case ir.TypeFloat64:
		return api.EncodeF64(l.F64())
	}
	return 0
}

func decodeLiteral(vt api.ValueType, raw uint64) (ir.Literal, error) {
	switch vt {
	case api.ValueTypeI32:
		return ir.Int32Literal(api.DecodeI32(raw)), nil
	case api.ValueTypeI64:
		return ir.Int64Literal(int64(raw)), nil
	case api.ValueTypeF32:
		return ir.Float32LiteralBits(uint32(raw)), nil
	case api.ValueTypeF64:
		return ir.Float64LiteralBits(raw), nil
	}
	return ir.Literal{}, errors.Unsupported(errors.PhaseRun, "result type "+api.ValueTypeName(vt))
}
