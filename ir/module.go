package ir

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-ir/errors"
)

// ExternalKind identifies what an import or export refers to.
type ExternalKind uint8

const (
	ExternalFunction ExternalKind = iota
	ExternalTable
	ExternalMemory
	ExternalGlobal
)

var externalKindNames = [...]string{
	ExternalFunction: "function",
	ExternalTable:    "table",
	ExternalMemory:   "memory",
	ExternalGlobal:   "global",
}

func (k ExternalKind) String() string {
	if int(k) < len(externalKindNames) {
		return externalKindNames[k]
	}
	return "invalid"
}

// Import is an external entity bound to an internal name. Module and Base
// are the two-level external name. Sig is set for function imports,
// GlobalType for global imports.
type Import struct {
	Name       string
	Module     string
	Base       string
	Kind       ExternalKind
	Sig        *Signature
	GlobalType Type
}

// Export publishes an internal entity under an external name.
type Export struct {
	Name     string // external name
	Internal string // internal entity name
	Kind     ExternalKind
}

// Global is a module-level variable with a constant initializer.
type Global struct {
	Name    string
	Type    Type
	Mutable bool
	Init    Expr
}

// Segment is a run of bytes copied into linear memory at a constant offset
// during instantiation.
type Segment struct {
	Offset Expr
	Data   []byte
}

// NoMaximum marks a memory without a declared upper bound.
const NoMaximum = ^uint32(0)

// Memory describes the module's linear memory in 64KiB pages.
type Memory struct {
	Initial    uint32
	Maximum    uint32 // NoMaximum when absent
	ExportName string // exported under this name when non-empty
	Segments   []Segment
}

// Module is the unit of compilation: an owner for signatures, functions,
// imports, exports, globals, table and memory descriptions, and every
// expression node built through its factory methods.
//
// A Module and everything it owns is confined to a single goroutine.
// Close releases all owned storage at once; afterwards mutating operations
// return a use_after_free error and queries panic with one.
type Module struct {
	sigs      map[string]*Signature
	sigOrder  []*Signature
	funcs     map[string]*Function
	funcOrder []*Function

	imports     []*Import
	importNames map[ExternalKind]map[string]*Import

	exports []*Export
	globals []*Global

	table    []string
	hasTable bool

	memory    Memory
	hasMemory bool

	start *Function

	debugFiles []string

	exprs  exprSlabs
	closed bool
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{
		sigs:  make(map[string]*Signature),
		funcs: make(map[string]*Function),
		importNames: map[ExternalKind]map[string]*Import{
			ExternalFunction: {},
			ExternalTable:    {},
			ExternalMemory:   {},
			ExternalGlobal:   {},
		},
	}
}

// Close releases everything the module owns. It is idempotent; any other
// operation on a closed module is reported as use-after-free.
func (m *Module) Close() {
	if m.closed {
		return
	}
	Logger().Debug("module closed",
		zap.Int("expressions", m.exprs.len()),
		zap.Int("functions", len(m.funcOrder)),
		zap.Int("signatures", len(m.sigOrder)))
	m.exprs.release()
	m.sigs = nil
	m.sigOrder = nil
	m.funcs = nil
	m.funcOrder = nil
	m.imports = nil
	m.importNames = nil
	m.exports = nil
	m.globals = nil
	m.table = nil
	m.memory = Memory{}
	m.start = nil
	m.debugFiles = nil
	m.closed = true
}

func (m *Module) checkOpen() error {
	if m.closed {
		return errors.UseAfterFree("module")
	}
	return nil
}

func (m *Module) mustOpen() {
	if m.closed {
		panic(errors.UseAfterFree("module"))
	}
}

// AddFunctionType registers a signature. An empty name synthesizes one
// from the shape ("sig$iii" for (i32, i32) -> i32). Registering the same
// name with the same shape returns the existing signature; the same name
// with a different shape is an error.
func (m *Module) AddFunctionType(name string, result Type, params []Type) (*Signature, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if result != TypeNone && !result.IsConcrete() {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"signature result must be a value type or none, got %s", result)
	}
	for i, p := range params {
		if !p.IsConcrete() {
			return nil, errors.InvalidArgument(errors.PhaseBuild,
				"signature param %d must be a value type, got %s", i, p)
		}
	}

	if name == "" {
		name = "sig$" + shapeCode(result, params)
	}
	if existing, ok := m.sigs[name]; ok {
		if existing.Matches(result, params) {
			return existing, nil
		}
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"type name %q already registered as %s", name, existing)
	}

	sig := &Signature{
		name:   name,
		params: append([]Type(nil), params...),
		result: result,
	}
	m.sigs[name] = sig
	m.sigOrder = append(m.sigOrder, sig)
	return sig, nil
}

// GetFunctionType returns the signature registered under name, or nil.
func (m *Module) GetFunctionType(name string) *Signature {
	m.mustOpen()
	return m.sigs[name]
}

// GetFunctionTypeBySignature returns the first registered signature with
// the given shape, or nil. Registration order decides which of several
// same-shape signatures is found.
func (m *Module) GetFunctionTypeBySignature(result Type, params []Type) *Signature {
	m.mustOpen()
	for _, sig := range m.sigOrder {
		if sig.Matches(result, params) {
			return sig
		}
	}
	return nil
}

// RemoveFunctionType removes a signature by name.
func (m *Module) RemoveFunctionType(name string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.sigs[name]; !ok {
		return errors.NotFound(errors.PhaseBuild, "function type", name)
	}
	delete(m.sigs, name)
	for i, sig := range m.sigOrder {
		if sig.name == name {
			m.sigOrder = append(m.sigOrder[:i], m.sigOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AddFunction defines a function. The signature must be registered with
// this module, extra locals must be value types, and the body is required.
func (m *Module) AddFunction(name string, sig *Signature, extraLocals []Type, body Expr) (*Function, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "function requires a name")
	}
	if sig == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "function %q requires a signature", name)
	}
	if m.sigs[sig.name] != sig {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"signature %q is not registered with this module", sig.name)
	}
	if body == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "function %q requires a body", name)
	}
	for i, l := range extraLocals {
		if !l.IsConcrete() {
			return nil, errors.InvalidArgument(errors.PhaseBuild,
				"function %q local %d must be a value type, got %s", name, i, l)
		}
	}
	if _, ok := m.funcs[name]; ok {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "function %q already defined", name)
	}

	fn := &Function{
		name:   name,
		sig:    sig,
		locals: append([]Type(nil), extraLocals...),
		body:   body,
	}
	m.funcs[name] = fn
	m.funcOrder = append(m.funcOrder, fn)
	return fn, nil
}

// GetFunction returns the function defined under name, or nil.
func (m *Module) GetFunction(name string) *Function {
	m.mustOpen()
	return m.funcs[name]
}

// RemoveFunction removes a function by name. References from calls, the
// table, exports, or the start slot are left behind for Validate to flag.
func (m *Module) RemoveFunction(name string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.funcs[name]; !ok {
		return errors.NotFound(errors.PhaseBuild, "function", name)
	}
	delete(m.funcs, name)
	for i, fn := range m.funcOrder {
		if fn.name == name {
			m.funcOrder = append(m.funcOrder[:i], m.funcOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Module) addImport(imp *Import) (*Import, error) {
	if imp.Name == "" || imp.Module == "" || imp.Base == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"%s import requires internal, module, and base names", imp.Kind)
	}
	if _, ok := m.importNames[imp.Kind][imp.Name]; ok {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"%s import %q already defined", imp.Kind, imp.Name)
	}
	m.imports = append(m.imports, imp)
	m.importNames[imp.Kind][imp.Name] = imp
	return imp, nil
}

// AddFunctionImport declares a function import callable under name.
func (m *Module) AddFunctionImport(name, extModule, extBase string, sig *Signature) (*Import, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"function import %q requires a signature", name)
	}
	if m.sigs[sig.name] != sig {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"signature %q is not registered with this module", sig.name)
	}
	return m.addImport(&Import{
		Name:   name,
		Module: extModule,
		Base:   extBase,
		Kind:   ExternalFunction,
		Sig:    sig,
	})
}

// AddTableImport declares a function table import.
func (m *Module) AddTableImport(name, extModule, extBase string) (*Import, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.addImport(&Import{
		Name:   name,
		Module: extModule,
		Base:   extBase,
		Kind:   ExternalTable,
	})
}

// AddMemoryImport declares a linear memory import.
func (m *Module) AddMemoryImport(name, extModule, extBase string) (*Import, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.addImport(&Import{
		Name:   name,
		Module: extModule,
		Base:   extBase,
		Kind:   ExternalMemory,
	})
}

// AddGlobalImport declares an immutable global import readable under name.
func (m *Module) AddGlobalImport(name, extModule, extBase string, typ Type) (*Import, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !typ.IsConcrete() {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"global import %q requires a value type, got %s", name, typ)
	}
	return m.addImport(&Import{
		Name:       name,
		Module:     extModule,
		Base:       extBase,
		Kind:       ExternalGlobal,
		GlobalType: typ,
	})
}

// LookupImport returns the import of the given kind bound to name, or nil.
func (m *Module) LookupImport(kind ExternalKind, name string) *Import {
	m.mustOpen()
	return m.importNames[kind][name]
}

func (m *Module) addExport(internal, external string, kind ExternalKind) (*Export, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if internal == "" || external == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"%s export requires internal and external names", kind)
	}
	exp := &Export{Name: external, Internal: internal, Kind: kind}
	m.exports = append(m.exports, exp)
	return exp, nil
}

// AddFunctionExport exports the function named internal as external.
func (m *Module) AddFunctionExport(internal, external string) (*Export, error) {
	return m.addExport(internal, external, ExternalFunction)
}

// AddTableExport exports the function table as external.
func (m *Module) AddTableExport(internal, external string) (*Export, error) {
	return m.addExport(internal, external, ExternalTable)
}

// AddMemoryExport exports the linear memory as external.
func (m *Module) AddMemoryExport(internal, external string) (*Export, error) {
	return m.addExport(internal, external, ExternalMemory)
}

// AddGlobalExport exports the global named internal as external.
func (m *Module) AddGlobalExport(internal, external string) (*Export, error) {
	return m.addExport(internal, external, ExternalGlobal)
}

// LookupExport returns the export published under the external name, or nil.
func (m *Module) LookupExport(external string) *Export {
	m.mustOpen()
	for _, exp := range m.exports {
		if exp.Name == external {
			return exp
		}
	}
	return nil
}

// AddGlobal defines a global. Init must be a constant expression; Validate
// enforces constness and type agreement.
func (m *Module) AddGlobal(name string, typ Type, mutable bool, init Expr) (*Global, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "global requires a name")
	}
	if !typ.IsConcrete() {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"global %q requires a value type, got %s", name, typ)
	}
	if init == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild,
			"global %q requires an initializer", name)
	}
	if m.lookupGlobalNamed(name) != nil {
		return nil, errors.InvalidArgument(errors.PhaseBuild, "global %q already defined", name)
	}

	g := &Global{Name: name, Type: typ, Mutable: mutable, Init: init}
	m.globals = append(m.globals, g)
	return g, nil
}

func (m *Module) lookupGlobalNamed(name string) *Global {
	for _, g := range m.globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// LookupGlobal returns the global defined under name, or nil.
func (m *Module) LookupGlobal(name string) *Global {
	m.mustOpen()
	return m.lookupGlobalNamed(name)
}

// SetFunctionTable declares the function table contents. The list is
// required and must not be empty; an absent table is expressed by never
// calling this.
func (m *Module) SetFunctionTable(names []string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.InvalidArgument(errors.PhaseBuild,
			"function table requires a non-empty function list")
	}
	for i, n := range names {
		if n == "" {
			return errors.InvalidArgument(errors.PhaseBuild,
				"function table entry %d is empty", i)
		}
	}
	m.table = append([]string(nil), names...)
	m.hasTable = true
	return nil
}

// SetMemory declares the module's linear memory. The segment list is
// required (it may be empty); pass NoMaximum for an unbounded memory. A
// non-empty exportName publishes the memory.
func (m *Module) SetMemory(initial, maximum uint32, exportName string, segments []Segment) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if segments == nil {
		return errors.InvalidArgument(errors.PhaseBuild, "memory requires a segment list")
	}
	if maximum != NoMaximum && maximum < initial {
		return errors.InvalidArgument(errors.PhaseBuild,
			"memory maximum %d is below initial %d", maximum, initial)
	}
	for i, seg := range segments {
		if seg.Offset == nil {
			return errors.InvalidArgument(errors.PhaseBuild,
				"memory segment %d requires an offset expression", i)
		}
	}
	m.memory = Memory{
		Initial:    initial,
		Maximum:    maximum,
		ExportName: exportName,
		Segments:   append([]Segment(nil), segments...),
	}
	m.hasMemory = true
	return nil
}

// SetStart selects the function run at instantiation. A later call
// replaces the previous choice.
func (m *Module) SetStart(fn *Function) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if fn == nil {
		return errors.InvalidArgument(errors.PhaseBuild, "start requires a function")
	}
	if m.funcs[fn.name] != fn {
		return errors.InvalidArgument(errors.PhaseBuild,
			"start function %q is not defined in this module", fn.name)
	}
	m.start = fn
	return nil
}

// StartFunction returns the start function, or nil.
func (m *Module) StartFunction() *Function {
	m.mustOpen()
	return m.start
}

// AddDebugInfoFileName appends a source file name to the debug file table
// and returns its index.
func (m *Module) AddDebugInfoFileName(name string) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	m.debugFiles = append(m.debugFiles, name)
	return len(m.debugFiles) - 1, nil
}

// GetDebugInfoFileName returns the file name at index, or "".
func (m *Module) GetDebugInfoFileName(index int) string {
	m.mustOpen()
	if index < 0 || index >= len(m.debugFiles) {
		return ""
	}
	return m.debugFiles[index]
}

// SetDebugLocation attaches a source position to an expression. The file
// index must come from AddDebugInfoFileName.
func (m *Module) SetDebugLocation(e Expr, fileIndex, line, column uint32) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if e == nil {
		return errors.InvalidArgument(errors.PhaseBuild, "debug location requires an expression")
	}
	if int(fileIndex) >= len(m.debugFiles) {
		return errors.InvalidArgument(errors.PhaseBuild,
			"debug file index %d out of range (%d files)", fileIndex, len(m.debugFiles))
	}
	e.base().loc = &DebugLocation{FileIndex: fileIndex, Line: line, Column: column}
	return nil
}

// ClearDebugInfo removes every debug location in the module and empties
// the debug file table. Names are unaffected.
func (m *Module) ClearDebugInfo() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	clear := func(e Expr) bool {
		e.base().loc = nil
		return true
	}
	for _, fn := range m.funcOrder {
		Walk(fn.body, clear)
	}
	for _, g := range m.globals {
		Walk(g.Init, clear)
	}
	for _, seg := range m.memory.Segments {
		Walk(seg.Offset, clear)
	}
	m.debugFiles = nil
	return nil
}

// Ordered accessors for tools and codecs. Returned slices are owned by the
// module and must not be modified.

// Signatures returns registered signatures in registration order.
func (m *Module) Signatures() []*Signature {
	m.mustOpen()
	return m.sigOrder
}

// Functions returns defined functions in definition order.
func (m *Module) Functions() []*Function {
	m.mustOpen()
	return m.funcOrder
}

// Imports returns imports in declaration order.
func (m *Module) Imports() []*Import {
	m.mustOpen()
	return m.imports
}

// Exports returns exports in declaration order.
func (m *Module) Exports() []*Export {
	m.mustOpen()
	return m.exports
}

// Globals returns defined globals in definition order.
func (m *Module) Globals() []*Global {
	m.mustOpen()
	return m.globals
}

// TableNames returns the function table contents and whether a table was
// declared.
func (m *Module) TableNames() ([]string, bool) {
	m.mustOpen()
	return m.table, m.hasTable
}

// MemoryInfo returns the memory description and whether one was declared.
func (m *Module) MemoryInfo() (Memory, bool) {
	m.mustOpen()
	return m.memory, m.hasMemory
}

// DebugInfoFileNames returns the debug file table in index order.
func (m *Module) DebugInfoFileNames() []string {
	m.mustOpen()
	return m.debugFiles
}
