package ir

// ExprKind discriminates expression nodes.
type ExprKind uint8

const (
	KindInvalid ExprKind = iota
	KindBlock
	KindIf
	KindLoop
	KindBreak
	KindSwitch
	KindCall
	KindCallIndirect
	KindGetLocal
	KindSetLocal
	KindGetGlobal
	KindSetGlobal
	KindLoad
	KindStore
	KindConst
	KindUnary
	KindBinary
	KindSelect
	KindDrop
	KindReturn
	KindHost
	KindNop
	KindUnreachable
	KindAtomicRMW
	KindAtomicCmpxchg
	KindAtomicWait
	KindAtomicWake
)

var kindNames = [...]string{
	KindInvalid:       "invalid",
	KindBlock:         "block",
	KindIf:            "if",
	KindLoop:          "loop",
	KindBreak:         "break",
	KindSwitch:        "switch",
	KindCall:          "call",
	KindCallIndirect:  "call_indirect",
	KindGetLocal:      "get_local",
	KindSetLocal:      "set_local",
	KindGetGlobal:     "get_global",
	KindSetGlobal:     "set_global",
	KindLoad:          "load",
	KindStore:         "store",
	KindConst:         "const",
	KindUnary:         "unary",
	KindBinary:        "binary",
	KindSelect:        "select",
	KindDrop:          "drop",
	KindReturn:        "return",
	KindHost:          "host",
	KindNop:           "nop",
	KindUnreachable:   "unreachable",
	KindAtomicRMW:     "atomic_rmw",
	KindAtomicCmpxchg: "atomic_cmpxchg",
	KindAtomicWait:    "atomic_wait",
	KindAtomicWake:    "atomic_wake",
}

func (k ExprKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// DebugLocation ties an expression to a position in an original source file.
// FileIndex refers to the module's debug file name table.
type DebugLocation struct {
	FileIndex uint32
	Line      uint32
	Column    uint32
}

// Expr is an expression tree node. Nodes are created through the factory
// methods on Module, which owns their storage; a node must never be shared
// between modules. Payload fields on the concrete node types are exported
// for inspection and should be treated as read-only.
type Expr interface {
	Kind() ExprKind
	Type() Type

	// DebugLocation returns the node's source position, or nil.
	DebugLocation() *DebugLocation

	base() *exprBase
}

type exprBase struct {
	typ Type
	loc *DebugLocation
}

func (b *exprBase) Type() Type                    { return b.typ }
func (b *exprBase) DebugLocation() *DebugLocation { return b.loc }
func (b *exprBase) base() *exprBase               { return b }

// Block evaluates its children in order and yields the value of the last
// one. A named block is a break target; breaking to it exits the block.
type Block struct {
	exprBase
	Name string // optional label
	List []Expr
}

func (*Block) Kind() ExprKind { return KindBlock }

// If evaluates Cond and then one of the arms. IfFalse may be nil.
type If struct {
	exprBase
	Cond    Expr
	IfTrue  Expr
	IfFalse Expr
}

func (*If) Kind() ExprKind { return KindIf }

// Loop evaluates Body; a break targeting a loop's label restarts it.
type Loop struct {
	exprBase
	Name string // optional label
	Body Expr
}

func (*Loop) Kind() ExprKind { return KindLoop }

// Break jumps to the enclosing block or loop labeled Target. With Cond it
// is conditional; Value, when present, is carried to the target.
type Break struct {
	exprBase
	Target string
	Cond   Expr // optional
	Value  Expr // optional
}

func (*Break) Kind() ExprKind { return KindBreak }

// Switch jumps to Targets[Cond], or Default when Cond is out of range.
type Switch struct {
	exprBase
	Targets []string
	Default string
	Cond    Expr
	Value   Expr // optional
}

func (*Switch) Kind() ExprKind { return KindSwitch }

// Call invokes a defined or imported function by internal name.
type Call struct {
	exprBase
	Target   string
	Operands []Expr
}

func (*Call) Kind() ExprKind { return KindCall }

// CallIndirect invokes a function table entry selected by Target, checked
// against the signature named Sig.
type CallIndirect struct {
	exprBase
	Target   Expr // table index
	Operands []Expr
	Sig      string
}

func (*CallIndirect) Kind() ExprKind { return KindCallIndirect }

// GetLocal reads a parameter or local by index.
type GetLocal struct {
	exprBase
	Index uint32
}

func (*GetLocal) Kind() ExprKind { return KindGetLocal }

// SetLocal writes a parameter or local. A tee also yields the value.
type SetLocal struct {
	exprBase
	Index uint32
	Value Expr
	tee   bool
}

func (*SetLocal) Kind() ExprKind { return KindSetLocal }

// IsTee reports whether the node yields the stored value.
func (e *SetLocal) IsTee() bool { return e.tee }

// GetGlobal reads a defined or imported global by name.
type GetGlobal struct {
	exprBase
	Name string
}

func (*GetGlobal) Kind() ExprKind { return KindGetGlobal }

// SetGlobal writes a mutable global.
type SetGlobal struct {
	exprBase
	Name  string
	Value Expr
}

func (*SetGlobal) Kind() ExprKind { return KindSetGlobal }

// Load reads Bytes bytes from linear memory at Ptr+Offset. Narrow integer
// loads extend per Signed. Atomic loads are always zero-extending.
type Load struct {
	exprBase
	Bytes  uint8
	Signed bool
	Offset uint32
	Align  uint32
	Ptr    Expr
	Atomic bool
}

func (*Load) Kind() ExprKind { return KindLoad }

// Store writes the low Bytes bytes of Value to linear memory at
// Ptr+Offset. ValueType records the type of the stored value; the store
// itself yields nothing.
type Store struct {
	exprBase
	Bytes     uint8
	Offset    uint32
	Align     uint32
	Ptr       Expr
	Value     Expr
	ValueType Type
	Atomic    bool
}

func (*Store) Kind() ExprKind { return KindStore }

// Const yields a literal value.
type Const struct {
	exprBase
	Value Literal
}

func (*Const) Kind() ExprKind { return KindConst }

// Unary applies a one-operand operator.
type Unary struct {
	exprBase
	Op    UnaryOp
	Value Expr
}

func (*Unary) Kind() ExprKind { return KindUnary }

// Binary applies a two-operand operator.
type Binary struct {
	exprBase
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*Binary) Kind() ExprKind { return KindBinary }

// Select yields IfTrue when Cond is non-zero, IfFalse otherwise. Both arms
// are always evaluated.
type Select struct {
	exprBase
	Cond    Expr
	IfTrue  Expr
	IfFalse Expr
}

func (*Select) Kind() ExprKind { return KindSelect }

// Drop evaluates Value and discards it.
type Drop struct {
	exprBase
	Value Expr
}

func (*Drop) Kind() ExprKind { return KindDrop }

// Return exits the function, optionally carrying a value.
type Return struct {
	exprBase
	Value Expr // optional
}

func (*Return) Kind() ExprKind { return KindReturn }

// Host queries or adjusts the host environment.
type Host struct {
	exprBase
	Op       HostOp
	Name     string // optional
	Operands []Expr
}

func (*Host) Kind() ExprKind { return KindHost }

// Nop does nothing.
type Nop struct {
	exprBase
}

func (*Nop) Kind() ExprKind { return KindNop }

// Unreachable traps when executed.
type Unreachable struct {
	exprBase
}

func (*Unreachable) Kind() ExprKind { return KindUnreachable }

// AtomicRMW atomically reads memory at Ptr+Offset, combines the loaded
// value with Value per Op, writes the result back, and yields the old
// value.
type AtomicRMW struct {
	exprBase
	Op     AtomicRMWOp
	Bytes  uint8
	Offset uint32
	Ptr    Expr
	Value  Expr
}

func (*AtomicRMW) Kind() ExprKind { return KindAtomicRMW }

// AtomicCmpxchg atomically replaces memory at Ptr+Offset with Replacement
// when it equals Expected, yielding the old value.
type AtomicCmpxchg struct {
	exprBase
	Bytes       uint8
	Offset      uint32
	Ptr         Expr
	Expected    Expr
	Replacement Expr
}

func (*AtomicCmpxchg) Kind() ExprKind { return KindAtomicCmpxchg }

// AtomicWait suspends the current agent until notified at Ptr or until
// Timeout nanoseconds (i64, negative for none) pass, provided memory still
// holds Expected. Yields 0 (woken), 1 (mismatch), or 2 (timed out).
type AtomicWait struct {
	exprBase
	Ptr          Expr
	Expected     Expr
	Timeout      Expr
	ExpectedType Type
}

func (*AtomicWait) Kind() ExprKind { return KindAtomicWait }

// AtomicWake notifies up to WakeCount agents waiting at Ptr, yielding the
// number woken.
type AtomicWake struct {
	exprBase
	Ptr       Expr
	WakeCount Expr
}

func (*AtomicWake) Kind() ExprKind { return KindAtomicWake }
