// Package wasmir provides an in-memory intermediate representation for
// WebAssembly modules: programmatic construction, inspection, validation,
// and conversion to and from the binary and text formats.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmir/              Root package with shared emit/optimize tunables
//	├── ir/              The object model: types, literals, expression trees,
//	│                    functions, the module builder, validation, and the
//	│                    binary codec
//	├── wat/             Text format printing and parsing, plus the legacy
//	│                    asm.js-flavored rendering
//	├── sourcemap/       Source map artifacts for emitted binaries
//	├── passes/          Pass registry and the module pass pipeline
//	├── relooper/        Structured control flow from block/branch graphs
//	├── interp/          Module execution backed by wazero
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Build, validate, and emit a module:
//
//	m := ir.NewModule()
//	defer m.Close()
//
//	sig, _ := m.AddFunctionType("", ir.TypeInt32, []ir.Type{ir.TypeInt32, ir.TypeInt32})
//	left, _ := m.GetLocal(0, ir.TypeInt32)
//	right, _ := m.GetLocal(1, ir.TypeInt32)
//	body, _ := m.Binary(ir.AddInt32, left, right)
//	m.AddFunction("adder", sig, nil, body)
//	m.AddFunctionExport("adder", "add")
//
//	if err := m.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	wasm, err := m.Emit()
//
// # Ownership Model
//
// Every expression and entity is owned by the module that created it and
// is released in one step by Module.Close. References must not outlive the
// module, and nodes must never be shared between modules.
//
// # Thread Safety
//
// A Module and everything it owns is confined to a single goroutine.
// Validation, emission, and printing are read-only and may overlap with
// each other on a quiescent module, but never with mutation.
package wasmir
