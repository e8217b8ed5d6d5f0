// Package sourcemap reads and writes source maps (version 3) whose
// generated positions are byte offsets into a wasm binary. The generated
// "file" has a single line; a mapping's column is the offset of an
// instruction, and its source position is the file, line, and column the
// instruction was compiled from.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wippyai/wasm-ir/errors"
)

// Map is the serialized source map document.
type Map struct {
	Version  int      `json:"version"`
	File     string   `json:"file,omitempty"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// Entry is one decoded mapping. Line and Column are zero based, as in the
// source map format itself.
type Entry struct {
	Offset uint32 // byte offset into the generated binary
	Source int    // index into Sources
	Line   uint32
	Column uint32
}

// Builder accumulates mappings and serializes them.
type Builder struct {
	sources []string
	entries []Entry
}

// NewBuilder creates a builder over a fixed source file table.
func NewBuilder(sources []string) *Builder {
	return &Builder{sources: append([]string(nil), sources...)}
}

// AddMapping records that the instruction at offset came from the given
// source position.
func (b *Builder) AddMapping(offset uint32, source int, line, column uint32) error {
	if source < 0 || source >= len(b.sources) {
		return errors.InvalidArgument(errors.PhaseEmit,
			"source index %d out of range (%d sources)", source, len(b.sources))
	}
	b.entries = append(b.entries, Entry{Offset: offset, Source: source, Line: line, Column: column})
	return nil
}

// Build produces the map document. Mappings are sorted by offset.
func (b *Builder) Build(file string) *Map {
	entries := append([]Entry(nil), b.entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })

	var buf []byte
	var prevOffset, prevLine, prevColumn uint32
	var prevSource int
	for i, e := range entries {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendVLQ(buf, int64(e.Offset)-int64(prevOffset))
		buf = appendVLQ(buf, int64(e.Source)-int64(prevSource))
		buf = appendVLQ(buf, int64(e.Line)-int64(prevLine))
		buf = appendVLQ(buf, int64(e.Column)-int64(prevColumn))
		prevOffset, prevSource, prevLine, prevColumn = e.Offset, e.Source, e.Line, e.Column
	}

	sources := b.sources
	if sources == nil {
		sources = []string{}
	}
	return &Map{
		Version:  3,
		File:     file,
		Sources:  sources,
		Names:    []string{},
		Mappings: string(buf),
	}
}

// Encode serializes the map as JSON.
func (m *Map) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.SerializeFailed("source map: %v", err)
	}
	return data, nil
}

// Parse decodes a JSON source map document.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.ParseFailed("source map", err)
	}
	if m.Version != 3 {
		return nil, errors.ParseFailed("source map",
			fmt.Errorf("unsupported version %d", m.Version))
	}
	return &m, nil
}

// Entries decodes the mappings. The generated file must be single line;
// that is the shape this package writes.
func (m *Map) Entries() ([]Entry, error) {
	if m.Mappings == "" {
		return nil, nil
	}

	var entries []Entry
	var offset, line, column int64
	var source int64
	pos := 0
	for pos < len(m.Mappings) {
		if m.Mappings[pos] == ';' {
			return nil, errors.ParseFailed("source map",
				fmt.Errorf("multi-line mappings are not supported"))
		}
		fields, next, err := decodeSegment(m.Mappings, pos)
		if err != nil {
			return nil, err
		}
		if len(fields) != 4 {
			return nil, errors.ParseFailed("source map",
				fmt.Errorf("segment has %d fields, expected 4", len(fields)))
		}
		offset += fields[0]
		source += fields[1]
		line += fields[2]
		column += fields[3]
		if offset < 0 || line < 0 || column < 0 ||
			source < 0 || source >= int64(len(m.Sources)) {
			return nil, errors.ParseFailed("source map",
				fmt.Errorf("segment out of range at byte %d", pos))
		}
		entries = append(entries, Entry{
			Offset: uint32(offset),
			Source: int(source),
			Line:   uint32(line),
			Column: uint32(column),
		})
		pos = next
		if pos < len(m.Mappings) && m.Mappings[pos] == ',' {
			pos++
		}
	}
	return entries, nil
}

const vlqChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var vlqValues = func() [128]int8 {
	var t [128]int8
	for i := range t {
		t[i] = -1
	}
	for i, c := range vlqChars {
		t[c] = int8(i)
	}
	return t
}()

// appendVLQ appends the base64 VLQ encoding of v: the sign moves to the
// low bit, then 5-bit digits with a continuation flag.
func appendVLQ(dst []byte, v int64) []byte {
	u := uint64(v) << 1
	if v < 0 {
		u = uint64(-v)<<1 | 1
	}
	for {
		digit := u & 0x1F
		u >>= 5
		if u != 0 {
			digit |= 0x20
		}
		dst = append(dst, vlqChars[digit])
		if u == 0 {
			return dst
		}
	}
}

// decodeSegment reads VLQ fields until a separator or the end of input.
func decodeSegment(s string, pos int) ([]int64, int, error) {
	var fields []int64
	for pos < len(s) && s[pos] != ',' && s[pos] != ';' {
		var u uint64
		shift := uint(0)
		for {
			if pos >= len(s) {
				return nil, 0, errors.ParseFailed("source map",
					fmt.Errorf("truncated VLQ value"))
			}
			c := s[pos]
			if c >= 128 || vlqValues[c] < 0 {
				return nil, 0, errors.ParseFailed("source map",
					fmt.Errorf("invalid VLQ character %q", c))
			}
			digit := uint64(vlqValues[c])
			pos++
			u |= (digit & 0x1F) << shift
			if digit&0x20 == 0 {
				break
			}
			shift += 5
			if shift > 60 {
				return nil, 0, errors.ParseFailed("source map",
					fmt.Errorf("VLQ value too long"))
			}
		}
		v := int64(u >> 1)
		if u&1 != 0 {
			v = -v
		}
		fields = append(fields, v)
	}
	return fields, pos, nil
}
