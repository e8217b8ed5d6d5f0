package token

import "testing"

func TestTokenizeBasics(t *testing.T) {
	toks := Tokenize(`(module (func $f (result i32) (i32.const 42)))`)
	want := []struct {
		typ   Type
		value string
	}{
		{LParen, "("}, {Ident, "module"},
		{LParen, "("}, {Ident, "func"}, {Ident, "$f"},
		{LParen, "("}, {Ident, "result"}, {Ident, "i32"}, {RParen, ")"},
		{LParen, "("}, {Ident, "i32.const"}, {Number, "42"}, {RParen, ")"},
		{RParen, ")"}, {RParen, ")"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Type != w.typ || toks[i].Value != w.value {
			t.Errorf("token %d = {%v %q}, want {%v %q}", i, toks[i].Type, toks[i].Value, w.typ, w.value)
		}
	}
}

func TestTokenizeComments(t *testing.T) {
	toks := Tokenize(";; line comment\n(module (; block (; nested ;) ;) )")
	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3: %v", len(toks), toks)
	}
	if toks[1].Value != "module" {
		t.Errorf("token 1 = %q, want module", toks[1].Value)
	}
	if toks[0].Line != 2 {
		t.Errorf("line = %d, want 2", toks[0].Line)
	}
}

func TestTokenizeStringsKeepEscapes(t *testing.T) {
	toks := Tokenize(`(data "a\00b\"c")`)
	if len(toks) != 4 {
		t.Fatalf("got %d tokens: %v", len(toks), toks)
	}
	if toks[2].Type != String || toks[2].Value != `a\00b\"c` {
		t.Errorf("string token = {%v %q}", toks[2].Type, toks[2].Value)
	}
}

func TestTokenizeNumbersAndSpecials(t *testing.T) {
	toks := Tokenize(`-12 0x1F 1.5e-3 -inf nan:0x7fffff offset=16`)
	wantTypes := []Type{Number, Number, Number, Ident, Ident, Ident}
	wantValues := []string{"-12", "0x1F", "1.5e-3", "-inf", "nan:0x7fffff", "offset=16"}
	if len(toks) != len(wantTypes) {
		t.Fatalf("got %d tokens: %v", len(toks), toks)
	}
	for i := range wantTypes {
		if toks[i].Type != wantTypes[i] || toks[i].Value != wantValues[i] {
			t.Errorf("token %d = {%v %q}, want {%v %q}",
				i, toks[i].Type, toks[i].Value, wantTypes[i], wantValues[i])
		}
	}
}
