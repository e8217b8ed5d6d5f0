package binary

import (
	"encoding/binary"
	"math"
)

// Buffer is an append-based writer for the WASM binary format.
type Buffer struct {
	Bytes []byte
}

func (b *Buffer) AppendByte(v byte) {
	b.Bytes = append(b.Bytes, v)
}

func (b *Buffer) WriteBytes(v []byte) {
	b.Bytes = append(b.Bytes, v...)
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return len(b.Bytes)
}

// WriteU32 writes unsigned LEB128 encoding.
func (b *Buffer) WriteU32(v uint32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			byt |= 0x80
		}
		b.AppendByte(byt)
		if v == 0 {
			break
		}
	}
}

// WriteU64 writes unsigned LEB128 encoding.
func (b *Buffer) WriteU64(v uint64) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			byt |= 0x80
		}
		b.AppendByte(byt)
		if v == 0 {
			break
		}
	}
}

// WriteI32 writes signed LEB128 encoding.
func (b *Buffer) WriteI32(v int32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && byt&0x40 == 0) || (v == -1 && byt&0x40 != 0) {
			b.AppendByte(byt)
			break
		}
		b.AppendByte(byt | 0x80)
	}
}

// WriteI64 writes signed LEB128 encoding.
func (b *Buffer) WriteI64(v int64) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && byt&0x40 == 0) || (v == -1 && byt&0x40 != 0) {
			b.AppendByte(byt)
			break
		}
		b.AppendByte(byt | 0x80)
	}
}

// WriteI33 writes signed LEB128 for block type values (33-bit range).
func (b *Buffer) WriteI33(v int64) {
	b.WriteI64(v)
}

func (b *Buffer) WriteF32(v float32) {
	b.WriteF32Bits(math.Float32bits(v))
}

func (b *Buffer) WriteF64(v float64) {
	b.WriteF64Bits(math.Float64bits(v))
}

// WriteF32Bits writes a raw little-endian float32 bit pattern.
func (b *Buffer) WriteF32Bits(bits uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, bits)
	b.WriteBytes(buf)
}

// WriteF64Bits writes a raw little-endian float64 bit pattern.
func (b *Buffer) WriteF64Bits(bits uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, bits)
	b.WriteBytes(buf)
}

// WriteU32LE writes a fixed-width little-endian uint32.
func (b *Buffer) WriteU32LE(v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	b.WriteBytes(buf)
}

// WriteName writes a length-prefixed UTF-8 name.
func (b *Buffer) WriteName(s string) {
	b.WriteU32(uint32(len(s)))
	b.WriteBytes([]byte(s))
}

// WriteLimits writes a limits encoding (flag byte, min, optional max).
func (b *Buffer) WriteLimits(min uint32, max *uint32) {
	if max != nil {
		b.AppendByte(0x01)
		b.WriteU32(min)
		b.WriteU32(*max)
	} else {
		b.AppendByte(0x00)
		b.WriteU32(min)
	}
}

// LenU32 returns the number of bytes the unsigned LEB128 encoding of v
// occupies.
func LenU32(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
