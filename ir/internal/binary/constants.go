package binary

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
// Sections must appear in increasing order by ID (except custom sections).
const (
	SectionCustom   byte = 0  // Custom section (can appear anywhere)
	SectionType     byte = 1  // Type section (function signatures)
	SectionImport   byte = 2  // Import section
	SectionFunction byte = 3  // Function section (type indices)
	SectionTable    byte = 4  // Table section
	SectionMemory   byte = 5  // Memory section
	SectionGlobal   byte = 6  // Global section
	SectionExport   byte = 7  // Export section
	SectionStart    byte = 8  // Start section
	SectionElement  byte = 9  // Element section
	SectionCode     byte = 10 // Code section (function bodies)
	SectionData     byte = 11 // Data section
)

// Import/Export descriptor kinds identify the type of imported or exported item.
const (
	KindFunc   byte = 0 // Function import/export
	KindTable  byte = 1 // Table import/export
	KindMemory byte = 2 // Memory import/export
	KindGlobal byte = 3 // Global import/export
)

// Value type encodings as defined in the WebAssembly binary format.
const (
	ValI32     byte = 0x7F // 32-bit integer
	ValI64     byte = 0x7E // 64-bit integer
	ValF32     byte = 0x7D // 32-bit float
	ValF64     byte = 0x7C // 64-bit float
	ValFuncRef byte = 0x70 // Function reference (table element type)
	ValFunc    byte = 0x60 // Function type marker
)

// Block type constants (signed LEB128 values).
const (
	BlockTypeVoid int32 = -64 // 0x40
	BlockTypeI32  int32 = -1  // 0x7F
	BlockTypeI64  int32 = -2  // 0x7E
	BlockTypeF32  int32 = -3  // 0x7D
	BlockTypeF64  int32 = -4  // 0x7C
)

// Name section subsection IDs.
const (
	NameSubsectionModule   byte = 0
	NameSubsectionFunction byte = 1
	NameSubsectionLocal    byte = 2
	NameSubsectionGlobal   byte = 7
)

// Control flow opcodes
const (
	OpUnreachable  byte = 0x00
	OpNop          byte = 0x01
	OpBlock        byte = 0x02
	OpLoop         byte = 0x03
	OpIf           byte = 0x04
	OpElse         byte = 0x05
	OpEnd          byte = 0x0B
	OpBr           byte = 0x0C
	OpBrIf         byte = 0x0D
	OpBrTable      byte = 0x0E
	OpReturn       byte = 0x0F
	OpCall         byte = 0x10
	OpCallIndirect byte = 0x11
)

// Parametric opcodes
const (
	OpDrop   byte = 0x1A
	OpSelect byte = 0x1B
)

// Variable access opcodes
const (
	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpLocalTee  byte = 0x22
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24
)

// Memory load opcodes
const (
	OpI32Load    byte = 0x28
	OpI64Load    byte = 0x29
	OpF32Load    byte = 0x2A
	OpF64Load    byte = 0x2B
	OpI32Load8S  byte = 0x2C
	OpI32Load8U  byte = 0x2D
	OpI32Load16S byte = 0x2E
	OpI32Load16U byte = 0x2F
	OpI64Load8S  byte = 0x30
	OpI64Load8U  byte = 0x31
	OpI64Load16S byte = 0x32
	OpI64Load16U byte = 0x33
	OpI64Load32S byte = 0x34
	OpI64Load32U byte = 0x35
)

// Memory store opcodes
const (
	OpI32Store   byte = 0x36
	OpI64Store   byte = 0x37
	OpF32Store   byte = 0x38
	OpF64Store   byte = 0x39
	OpI32Store8  byte = 0x3A
	OpI32Store16 byte = 0x3B
	OpI64Store8  byte = 0x3C
	OpI64Store16 byte = 0x3D
	OpI64Store32 byte = 0x3E
)

// Memory size/grow opcodes
const (
	OpMemorySize byte = 0x3F
	OpMemoryGrow byte = 0x40
)

// Constant opcodes
const (
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF32Const byte = 0x43
	OpF64Const byte = 0x44
)

// Numeric opcodes occupy the contiguous range 0x45..0xBF; the operator
// tables in the ir package map each operator to its opcode directly, so
// only the range boundaries are named here.
const (
	OpNumericFirst byte = 0x45 // i32.eqz
	OpNumericLast  byte = 0xBF // f64.reinterpret_i64
)

// Sign extension opcodes
const (
	OpI32Extend8S  byte = 0xC0
	OpI32Extend16S byte = 0xC1
	OpI64Extend8S  byte = 0xC2
	OpI64Extend16S byte = 0xC3
	OpI64Extend32S byte = 0xC4
)

// Prefix opcodes
const (
	OpPrefixAtomic byte = 0xFE // Threads: atomic memory operations
)

// Atomic sub-opcodes (0xFE prefix). The seven width/type combinations of
// each memory access group share a base value; AtomicSlot computes the
// offset within a group.
const (
	AtomicNotify uint32 = 0x00 // memory.atomic.notify
	AtomicWait32 uint32 = 0x01 // memory.atomic.wait32
	AtomicWait64 uint32 = 0x02 // memory.atomic.wait64
	AtomicFence  uint32 = 0x03 // atomic.fence

	AtomicLoadBase    uint32 = 0x10 // i32.atomic.load
	AtomicStoreBase   uint32 = 0x17 // i32.atomic.store
	AtomicRmwAdd      uint32 = 0x1E // i32.atomic.rmw.add
	AtomicRmwSub      uint32 = 0x25
	AtomicRmwAnd      uint32 = 0x2C
	AtomicRmwOr       uint32 = 0x33
	AtomicRmwXor      uint32 = 0x3A
	AtomicRmwXchg     uint32 = 0x41
	AtomicRmwCmpxchg  uint32 = 0x48
	AtomicSubOpcodeHi uint32 = 0x4E // i64.atomic.rmw32.cmpxchg_u
)

// AtomicSlot returns the offset within an atomic memory access group for
// the given result width (is64) and access width in bytes. ok is false for
// combinations the format cannot express (such as an 8-byte i32 access).
func AtomicSlot(is64 bool, bytes uint8) (slot uint32, ok bool) {
	switch {
	case !is64 && bytes == 4:
		return 0, true
	case is64 && bytes == 8:
		return 1, true
	case !is64 && bytes == 1:
		return 2, true
	case !is64 && bytes == 2:
		return 3, true
	case is64 && bytes == 1:
		return 4, true
	case is64 && bytes == 2:
		return 5, true
	case is64 && bytes == 4:
		return 6, true
	}
	return 0, false
}

// AtomicSlotInfo is the inverse of AtomicSlot.
func AtomicSlotInfo(slot uint32) (is64 bool, bytes uint8, ok bool) {
	switch slot {
	case 0:
		return false, 4, true
	case 1:
		return true, 8, true
	case 2:
		return false, 1, true
	case 3:
		return false, 2, true
	case 4:
		return true, 1, true
	case 5:
		return true, 2, true
	case 6:
		return true, 4, true
	}
	return false, 0, false
}
