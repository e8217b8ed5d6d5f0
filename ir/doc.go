// Package ir is an in-memory object model for WebAssembly modules.
//
// A Module owns interned function types, functions, imports, exports,
// globals, an optional function table and memory, and every expression
// built through its factory methods. Expressions form trees: each node
// carries its result type, computed at construction the same way relative
// depths collapse to labels in the structured stack machine. Modules are
// built, inspected, validated, and serialized single-threaded; Close
// releases every expression at once and fails further use.
//
// Construction never validates across nodes. A Call may name a function
// that does not exist yet, a GetLocal may state any type, and bodies may
// be assembled bottom-up in any order. Validate reconciles the whole
// module once building is done and reports every defect it finds, one
// diagnostic per site.
//
// Emit writes the MVP binary format plus the threads feature's atomic
// operations, with optional name section and source map output. Parse
// reads the same format back, rebuilding trees from the flat instruction
// stream.
package ir
