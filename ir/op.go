package ir

import bin "github.com/wippyai/wasm-ir/ir/internal/binary"

// Operator metadata shared by construction, validation, serialization, and
// printing. Every operator maps to its text format mnemonic, its binary
// opcode, and its operand/result types.
type opInfo struct {
	name    string
	opcode  byte
	operand Type
	result  Type
}

// UnaryOp identifies a one-operand operator.
type UnaryOp uint8

const (
	ClzInt32 UnaryOp = iota
	CtzInt32
	PopcntInt32
	EqZInt32
	ClzInt64
	CtzInt64
	PopcntInt64
	EqZInt64
	NegFloat32
	AbsFloat32
	CeilFloat32
	FloorFloat32
	TruncFloat32
	NearestFloat32
	SqrtFloat32
	NegFloat64
	AbsFloat64
	CeilFloat64
	FloorFloat64
	TruncFloat64
	NearestFloat64
	SqrtFloat64
	WrapInt64
	ExtendSInt32
	ExtendUInt32
	TruncSFloat32ToInt32
	TruncUFloat32ToInt32
	TruncSFloat64ToInt32
	TruncUFloat64ToInt32
	TruncSFloat32ToInt64
	TruncUFloat32ToInt64
	TruncSFloat64ToInt64
	TruncUFloat64ToInt64
	ConvertSInt32ToFloat32
	ConvertUInt32ToFloat32
	ConvertSInt64ToFloat32
	ConvertUInt64ToFloat32
	ConvertSInt32ToFloat64
	ConvertUInt32ToFloat64
	ConvertSInt64ToFloat64
	ConvertUInt64ToFloat64
	DemoteFloat64
	PromoteFloat32
	ReinterpretFloat32
	ReinterpretFloat64
	ReinterpretInt32
	ReinterpretInt64
	ExtendS8Int32
	ExtendS16Int32
	ExtendS8Int64
	ExtendS16Int64
	ExtendS32Int64

	numUnaryOps
)

var unaryInfo = [numUnaryOps]opInfo{
	ClzInt32:               {"i32.clz", 0x67, TypeInt32, TypeInt32},
	CtzInt32:               {"i32.ctz", 0x68, TypeInt32, TypeInt32},
	PopcntInt32:            {"i32.popcnt", 0x69, TypeInt32, TypeInt32},
	EqZInt32:               {"i32.eqz", 0x45, TypeInt32, TypeInt32},
	ClzInt64:               {"i64.clz", 0x79, TypeInt64, TypeInt64},
	CtzInt64:               {"i64.ctz", 0x7A, TypeInt64, TypeInt64},
	PopcntInt64:            {"i64.popcnt", 0x7B, TypeInt64, TypeInt64},
	EqZInt64:               {"i64.eqz", 0x50, TypeInt64, TypeInt32},
	NegFloat32:             {"f32.neg", 0x8C, TypeFloat32, TypeFloat32},
	AbsFloat32:             {"f32.abs", 0x8B, TypeFloat32, TypeFloat32},
	CeilFloat32:            {"f32.ceil", 0x8D, TypeFloat32, TypeFloat32},
	FloorFloat32:           {"f32.floor", 0x8E, TypeFloat32, TypeFloat32},
	TruncFloat32:           {"f32.trunc", 0x8F, TypeFloat32, TypeFloat32},
	NearestFloat32:         {"f32.nearest", 0x90, TypeFloat32, TypeFloat32},
	SqrtFloat32:            {"f32.sqrt", 0x91, TypeFloat32, TypeFloat32},
	NegFloat64:             {"f64.neg", 0x9A, TypeFloat64, TypeFloat64},
	AbsFloat64:             {"f64.abs", 0x99, TypeFloat64, TypeFloat64},
	CeilFloat64:            {"f64.ceil", 0x9B, TypeFloat64, TypeFloat64},
	FloorFloat64:           {"f64.floor", 0x9C, TypeFloat64, TypeFloat64},
	TruncFloat64:           {"f64.trunc", 0x9D, TypeFloat64, TypeFloat64},
	NearestFloat64:         {"f64.nearest", 0x9E, TypeFloat64, TypeFloat64},
	SqrtFloat64:            {"f64.sqrt", 0x9F, TypeFloat64, TypeFloat64},
	WrapInt64:              {"i32.wrap_i64", 0xA7, TypeInt64, TypeInt32},
	ExtendSInt32:           {"i64.extend_i32_s", 0xAC, TypeInt32, TypeInt64},
	ExtendUInt32:           {"i64.extend_i32_u", 0xAD, TypeInt32, TypeInt64},
	TruncSFloat32ToInt32:   {"i32.trunc_f32_s", 0xA8, TypeFloat32, TypeInt32},
	TruncUFloat32ToInt32:   {"i32.trunc_f32_u", 0xA9, TypeFloat32, TypeInt32},
	TruncSFloat64ToInt32:   {"i32.trunc_f64_s", 0xAA, TypeFloat64, TypeInt32},
	TruncUFloat64ToInt32:   {"i32.trunc_f64_u", 0xAB, TypeFloat64, TypeInt32},
	TruncSFloat32ToInt64:   {"i64.trunc_f32_s", 0xAE, TypeFloat32, TypeInt64},
	TruncUFloat32ToInt64:   {"i64.trunc_f32_u", 0xAF, TypeFloat32, TypeInt64},
	TruncSFloat64ToInt64:   {"i64.trunc_f64_s", 0xB0, TypeFloat64, TypeInt64},
	TruncUFloat64ToInt64:   {"i64.trunc_f64_u", 0xB1, TypeFloat64, TypeInt64},
	ConvertSInt32ToFloat32: {"f32.convert_i32_s", 0xB2, TypeInt32, TypeFloat32},
	ConvertUInt32ToFloat32: {"f32.convert_i32_u", 0xB3, TypeInt32, TypeFloat32},
	ConvertSInt64ToFloat32: {"f32.convert_i64_s", 0xB4, TypeInt64, TypeFloat32},
	ConvertUInt64ToFloat32: {"f32.convert_i64_u", 0xB5, TypeInt64, TypeFloat32},
	ConvertSInt32ToFloat64: {"f64.convert_i32_s", 0xB7, TypeInt32, TypeFloat64},
	ConvertUInt32ToFloat64: {"f64.convert_i32_u", 0xB8, TypeInt32, TypeFloat64},
	ConvertSInt64ToFloat64: {"f64.convert_i64_s", 0xB9, TypeInt64, TypeFloat64},
	ConvertUInt64ToFloat64: {"f64.convert_i64_u", 0xBA, TypeInt64, TypeFloat64},
	DemoteFloat64:          {"f32.demote_f64", 0xB6, TypeFloat64, TypeFloat32},
	PromoteFloat32:         {"f64.promote_f32", 0xBB, TypeFloat32, TypeFloat64},
	ReinterpretFloat32:     {"i32.reinterpret_f32", 0xBC, TypeFloat32, TypeInt32},
	ReinterpretFloat64:     {"i64.reinterpret_f64", 0xBD, TypeFloat64, TypeInt64},
	ReinterpretInt32:       {"f32.reinterpret_i32", 0xBE, TypeInt32, TypeFloat32},
	ReinterpretInt64:       {"f64.reinterpret_i64", 0xBF, TypeInt64, TypeFloat64},
	ExtendS8Int32:          {"i32.extend8_s", bin.OpI32Extend8S, TypeInt32, TypeInt32},
	ExtendS16Int32:         {"i32.extend16_s", bin.OpI32Extend16S, TypeInt32, TypeInt32},
	ExtendS8Int64:          {"i64.extend8_s", bin.OpI64Extend8S, TypeInt64, TypeInt64},
	ExtendS16Int64:         {"i64.extend16_s", bin.OpI64Extend16S, TypeInt64, TypeInt64},
	ExtendS32Int64:         {"i64.extend32_s", bin.OpI64Extend32S, TypeInt64, TypeInt64},
}

func (op UnaryOp) valid() bool {
	return op < numUnaryOps
}

func (op UnaryOp) String() string {
	if !op.valid() {
		return "invalid unary op"
	}
	return unaryInfo[op].name
}

func (op UnaryOp) operand() Type { return unaryInfo[op].operand }
func (op UnaryOp) result() Type  { return unaryInfo[op].result }

// BinaryOp identifies a two-operand operator. Both operands share one type.
type BinaryOp uint8

const (
	AddInt32 BinaryOp = iota
	SubInt32
	MulInt32
	DivSInt32
	DivUInt32
	RemSInt32
	RemUInt32
	AndInt32
	OrInt32
	XorInt32
	ShlInt32
	ShrSInt32
	ShrUInt32
	RotLInt32
	RotRInt32
	EqInt32
	NeInt32
	LtSInt32
	LtUInt32
	LeSInt32
	LeUInt32
	GtSInt32
	GtUInt32
	GeSInt32
	GeUInt32
	AddInt64
	SubInt64
	MulInt64
	DivSInt64
	DivUInt64
	RemSInt64
	RemUInt64
	AndInt64
	OrInt64
	XorInt64
	ShlInt64
	ShrSInt64
	ShrUInt64
	RotLInt64
	RotRInt64
	EqInt64
	NeInt64
	LtSInt64
	LtUInt64
	LeSInt64
	LeUInt64
	GtSInt64
	GtUInt64
	GeSInt64
	GeUInt64
	AddFloat32
	SubFloat32
	MulFloat32
	DivFloat32
	MinFloat32
	MaxFloat32
	CopySignFloat32
	EqFloat32
	NeFloat32
	LtFloat32
	LeFloat32
	GtFloat32
	GeFloat32
	AddFloat64
	SubFloat64
	MulFloat64
	DivFloat64
	MinFloat64
	MaxFloat64
	CopySignFloat64
	EqFloat64
	NeFloat64
	LtFloat64
	LeFloat64
	GtFloat64
	GeFloat64

	numBinaryOps
)

var binaryInfo = [numBinaryOps]opInfo{
	AddInt32:        {"i32.add", 0x6A, TypeInt32, TypeInt32},
	SubInt32:        {"i32.sub", 0x6B, TypeInt32, TypeInt32},
	MulInt32:        {"i32.mul", 0x6C, TypeInt32, TypeInt32},
	DivSInt32:       {"i32.div_s", 0x6D, TypeInt32, TypeInt32},
	DivUInt32:       {"i32.div_u", 0x6E, TypeInt32, TypeInt32},
	RemSInt32:       {"i32.rem_s", 0x6F, TypeInt32, TypeInt32},
	RemUInt32:       {"i32.rem_u", 0x70, TypeInt32, TypeInt32},
	AndInt32:        {"i32.and", 0x71, TypeInt32, TypeInt32},
	OrInt32:         {"i32.or", 0x72, TypeInt32, TypeInt32},
	XorInt32:        {"i32.xor", 0x73, TypeInt32, TypeInt32},
	ShlInt32:        {"i32.shl", 0x74, TypeInt32, TypeInt32},
	ShrSInt32:       {"i32.shr_s", 0x75, TypeInt32, TypeInt32},
	ShrUInt32:       {"i32.shr_u", 0x76, TypeInt32, TypeInt32},
	RotLInt32:       {"i32.rotl", 0x77, TypeInt32, TypeInt32},
	RotRInt32:       {"i32.rotr", 0x78, TypeInt32, TypeInt32},
	EqInt32:         {"i32.eq", 0x46, TypeInt32, TypeInt32},
	NeInt32:         {"i32.ne", 0x47, TypeInt32, TypeInt32},
	LtSInt32:        {"i32.lt_s", 0x48, TypeInt32, TypeInt32},
	LtUInt32:        {"i32.lt_u", 0x49, TypeInt32, TypeInt32},
	LeSInt32:        {"i32.le_s", 0x4C, TypeInt32, TypeInt32},
	LeUInt32:        {"i32.le_u", 0x4D, TypeInt32, TypeInt32},
	GtSInt32:        {"i32.gt_s", 0x4A, TypeInt32, TypeInt32},
	GtUInt32:        {"i32.gt_u", 0x4B, TypeInt32, TypeInt32},
	GeSInt32:        {"i32.ge_s", 0x4E, TypeInt32, TypeInt32},
	GeUInt32:        {"i32.ge_u", 0x4F, TypeInt32, TypeInt32},
	AddInt64:        {"i64.add", 0x7C, TypeInt64, TypeInt64},
	SubInt64:        {"i64.sub", 0x7D, TypeInt64, TypeInt64},
	MulInt64:        {"i64.mul", 0x7E, TypeInt64, TypeInt64},
	DivSInt64:       {"i64.div_s", 0x7F, TypeInt64, TypeInt64},
	DivUInt64:       {"i64.div_u", 0x80, TypeInt64, TypeInt64},
	RemSInt64:       {"i64.rem_s", 0x81, TypeInt64, TypeInt64},
	RemUInt64:       {"i64.rem_u", 0x82, TypeInt64, TypeInt64},
	AndInt64:        {"i64.and", 0x83, TypeInt64, TypeInt64},
	OrInt64:         {"i64.or", 0x84, TypeInt64, TypeInt64},
	XorInt64:        {"i64.xor", 0x85, TypeInt64, TypeInt64},
	ShlInt64:        {"i64.shl", 0x86, TypeInt64, TypeInt64},
	ShrSInt64:       {"i64.shr_s", 0x87, TypeInt64, TypeInt64},
	ShrUInt64:       {"i64.shr_u", 0x88, TypeInt64, TypeInt64},
	RotLInt64:       {"i64.rotl", 0x89, TypeInt64, TypeInt64},
	RotRInt64:       {"i64.rotr", 0x8A, TypeInt64, TypeInt64},
	EqInt64:         {"i64.eq", 0x51, TypeInt64, TypeInt32},
	NeInt64:         {"i64.ne", 0x52, TypeInt64, TypeInt32},
	LtSInt64:        {"i64.lt_s", 0x53, TypeInt64, TypeInt32},
	LtUInt64:        {"i64.lt_u", 0x54, TypeInt64, TypeInt32},
	LeSInt64:        {"i64.le_s", 0x57, TypeInt64, TypeInt32},
	LeUInt64:        {"i64.le_u", 0x58, TypeInt64, TypeInt32},
	GtSInt64:        {"i64.gt_s", 0x55, TypeInt64, TypeInt32},
	GtUInt64:        {"i64.gt_u", 0x56, TypeInt64, TypeInt32},
	GeSInt64:        {"i64.ge_s", 0x59, TypeInt64, TypeInt32},
	GeUInt64:        {"i64.ge_u", 0x5A, TypeInt64, TypeInt32},
	AddFloat32:      {"f32.add", 0x92, TypeFloat32, TypeFloat32},
	SubFloat32:      {"f32.sub", 0x93, TypeFloat32, TypeFloat32},
	MulFloat32:      {"f32.mul", 0x94, TypeFloat32, TypeFloat32},
	DivFloat32:      {"f32.div", 0x95, TypeFloat32, TypeFloat32},
	MinFloat32:      {"f32.min", 0x96, TypeFloat32, TypeFloat32},
	MaxFloat32:      {"f32.max", 0x97, TypeFloat32, TypeFloat32},
	CopySignFloat32: {"f32.copysign", 0x98, TypeFloat32, TypeFloat32},
	EqFloat32:       {"f32.eq", 0x5B, TypeFloat32, TypeInt32},
	NeFloat32:       {"f32.ne", 0x5C, TypeFloat32, TypeInt32},
	LtFloat32:       {"f32.lt", 0x5D, TypeFloat32, TypeInt32},
	LeFloat32:       {"f32.le", 0x5F, TypeFloat32, TypeInt32},
	GtFloat32:       {"f32.gt", 0x5E, TypeFloat32, TypeInt32},
	GeFloat32:       {"f32.ge", 0x60, TypeFloat32, TypeInt32},
	AddFloat64:      {"f64.add", 0xA0, TypeFloat64, TypeFloat64},
	SubFloat64:      {"f64.sub", 0xA1, TypeFloat64, TypeFloat64},
	MulFloat64:      {"f64.mul", 0xA2, TypeFloat64, TypeFloat64},
	DivFloat64:      {"f64.div", 0xA3, TypeFloat64, TypeFloat64},
	MinFloat64:      {"f64.min", 0xA4, TypeFloat64, TypeFloat64},
	MaxFloat64:      {"f64.max", 0xA5, TypeFloat64, TypeFloat64},
	CopySignFloat64: {"f64.copysign", 0xA6, TypeFloat64, TypeFloat64},
	EqFloat64:       {"f64.eq", 0x61, TypeFloat64, TypeInt32},
	NeFloat64:       {"f64.ne", 0x62, TypeFloat64, TypeInt32},
	LtFloat64:       {"f64.lt", 0x63, TypeFloat64, TypeInt32},
	LeFloat64:       {"f64.le", 0x65, TypeFloat64, TypeInt32},
	GtFloat64:       {"f64.gt", 0x64, TypeFloat64, TypeInt32},
	GeFloat64:       {"f64.ge", 0x66, TypeFloat64, TypeInt32},
}

func (op BinaryOp) valid() bool {
	return op < numBinaryOps
}

func (op BinaryOp) String() string {
	if !op.valid() {
		return "invalid binary op"
	}
	return binaryInfo[op].name
}

func (op BinaryOp) operand() Type { return binaryInfo[op].operand }
func (op BinaryOp) result() Type  { return binaryInfo[op].result }

// HostOp identifies an operation that queries or adjusts the host
// environment.
type HostOp uint8

const (
	// CurrentMemory returns the memory size in pages.
	CurrentMemory HostOp = iota

	// GrowMemory grows memory by a page delta, returning the old size in
	// pages or -1 on failure.
	GrowMemory

	numHostOps
)

var hostInfo = [numHostOps]struct {
	name        string
	opcode      byte
	numOperands int
}{
	CurrentMemory: {"memory.size", bin.OpMemorySize, 0},
	GrowMemory:    {"memory.grow", bin.OpMemoryGrow, 1},
}

func (op HostOp) valid() bool {
	return op < numHostOps
}

func (op HostOp) String() string {
	if !op.valid() {
		return "invalid host op"
	}
	return hostInfo[op].name
}

// AtomicRMWOp identifies an atomic read-modify-write operator. The binary
// sub-opcode depends on the operator, the value type, and the access width.
type AtomicRMWOp uint8

const (
	AtomicRMWAdd AtomicRMWOp = iota
	AtomicRMWSub
	AtomicRMWAnd
	AtomicRMWOr
	AtomicRMWXor
	AtomicRMWXchg

	numAtomicRMWOps
)

var atomicRMWInfo = [numAtomicRMWOps]struct {
	name string
	base uint32
}{
	AtomicRMWAdd:  {"add", bin.AtomicRmwAdd},
	AtomicRMWSub:  {"sub", bin.AtomicRmwSub},
	AtomicRMWAnd:  {"and", bin.AtomicRmwAnd},
	AtomicRMWOr:   {"or", bin.AtomicRmwOr},
	AtomicRMWXor:  {"xor", bin.AtomicRmwXor},
	AtomicRMWXchg: {"xchg", bin.AtomicRmwXchg},
}

func (op AtomicRMWOp) valid() bool {
	return op < numAtomicRMWOps
}

func (op AtomicRMWOp) String() string {
	if !op.valid() {
		return "invalid atomic rmw op"
	}
	return atomicRMWInfo[op].name
}

// Mnemonic and opcode lookup tables for the codecs.
var (
	unaryByName     = make(map[string]UnaryOp, numUnaryOps)
	binaryByName    = make(map[string]BinaryOp, numBinaryOps)
	unaryByCode     = make(map[byte]UnaryOp, numUnaryOps)
	binaryByCode    = make(map[byte]BinaryOp, numBinaryOps)
	atomicRMWByBase = make(map[uint32]AtomicRMWOp, numAtomicRMWOps)
)

func init() {
	for op := UnaryOp(0); op < numUnaryOps; op++ {
		unaryByName[unaryInfo[op].name] = op
		unaryByCode[unaryInfo[op].opcode] = op
	}
	for op := BinaryOp(0); op < numBinaryOps; op++ {
		binaryByName[binaryInfo[op].name] = op
		binaryByCode[binaryInfo[op].opcode] = op
	}
	for op := AtomicRMWOp(0); op < numAtomicRMWOps; op++ {
		atomicRMWByBase[atomicRMWInfo[op].base] = op
	}
}

// UnaryOpByName resolves a text format mnemonic such as "i32.clz".
func UnaryOpByName(name string) (UnaryOp, bool) {
	op, ok := unaryByName[name]
	return op, ok
}

// BinaryOpByName resolves a text format mnemonic such as "i32.add".
func BinaryOpByName(name string) (BinaryOp, bool) {
	op, ok := binaryByName[name]
	return op, ok
}
