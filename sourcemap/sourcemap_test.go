package sourcemap_test

import (
	"strings"
	"testing"

	"github.com/wippyai/wasm-ir/sourcemap"
)

func TestBuilderRoundTrip(t *testing.T) {
	b := sourcemap.NewBuilder([]string{"main.c", "lib.c"})
	mappings := []sourcemap.Entry{
		{Offset: 5, Source: 0, Line: 10, Column: 2},
		{Offset: 9, Source: 1, Line: 3, Column: 0},
		{Offset: 17, Source: 0, Line: 11, Column: 8},
	}
	// Out of order on purpose; Build sorts by offset.
	for _, e := range []int{2, 0, 1} {
		m := mappings[e]
		if err := b.AddMapping(m.Offset, m.Source, m.Line, m.Column); err != nil {
			t.Fatalf("AddMapping: %v", err)
		}
	}

	doc := b.Build("out.wasm")
	if doc.Version != 3 {
		t.Errorf("Version = %d, want 3", doc.Version)
	}
	if doc.File != "out.wasm" {
		t.Errorf("File = %q, want out.wasm", doc.File)
	}

	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parsed, err := sourcemap.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	entries, err := parsed.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != len(mappings) {
		t.Fatalf("entries = %d, want %d", len(entries), len(mappings))
	}
	for i, want := range mappings {
		if entries[i] != want {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want)
		}
	}
}

func TestAddMappingRejectsBadSource(t *testing.T) {
	b := sourcemap.NewBuilder([]string{"only.c"})
	if err := b.AddMapping(0, 1, 0, 0); err == nil {
		t.Error("AddMapping with an out-of-range source should fail")
	}
	if err := b.AddMapping(0, -1, 0, 0); err == nil {
		t.Error("AddMapping with a negative source should fail")
	}
}

func TestEmptyBuilder(t *testing.T) {
	doc := sourcemap.NewBuilder(nil).Build("")
	if doc.Mappings != "" {
		t.Errorf("Mappings = %q, want empty", doc.Mappings)
	}
	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// sources and names stay arrays, not null, per the format.
	for _, want := range []string{`"sources":[]`, `"names":[]`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("encoded map missing %s: %s", want, data)
		}
	}
	parsed, err := sourcemap.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	entries, err := parsed.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want none", entries)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"wrong version", `{"version":2,"sources":[],"names":[],"mappings":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := sourcemap.Parse([]byte(tc.data)); err == nil {
				t.Errorf("Parse(%q) should fail", tc.data)
			}
		})
	}
}

func TestEntriesRejectsMalformedMappings(t *testing.T) {
	cases := []struct {
		name     string
		mappings string
	}{
		{"multi line", "AAAA;AAAA"},
		{"bad character", "AA!A"},
		{"wrong field count", "AAA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &sourcemap.Map{Version: 3, Sources: []string{"s"}, Mappings: tc.mappings}
			if _, err := m.Entries(); err == nil {
				t.Errorf("Entries(%q) should fail", tc.mappings)
			}
		})
	}
}
