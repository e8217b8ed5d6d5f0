package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseBuild,
				Kind:   KindInvalidArgument,
				Path:   []string{"adder", "body"},
				Detail: "missing right operand",
			},
			contains: []string{"[build]", "invalid_argument", "adder.body", "missing right operand"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseParse,
				Kind:  KindParse,
			},
			contains: []string{"[parse]", "parse"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseEmit,
				Kind:   KindSerialize,
				Detail: "unresolvable call target",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[emit]", "serialize", "unresolvable call target", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseParse,
		Kind:  KindParse,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseBuild,
		Kind:  KindInvalidArgument,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseBuild, Kind: KindInvalidArgument}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseValidate, Kind: KindInvalidArgument}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseBuild, Kind: KindNotFound}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseBuild, Kind: KindInvalidArgument}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseBuild, KindInvalidArgument).
		Path("main", "body").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "i32", "f64").
		Build()

	if err.Phase != PhaseBuild {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseBuild)
	}
	if err.Kind != KindInvalidArgument {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidArgument)
	}
	if len(err.Path) != 2 || err.Path[0] != "main" || err.Path[1] != "body" {
		t.Errorf("Path = %v, want [main body]", err.Path)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected i32, got f64" {
		t.Errorf("Detail = %v, want 'expected i32, got f64'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidArgument", func(t *testing.T) {
		err := InvalidArgument(PhaseBuild, "block child %d is nil", 2)
		if err.Kind != KindInvalidArgument {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidArgument)
		}
		if err.Detail != "block child 2 is nil" {
			t.Errorf("Detail = %v", err.Detail)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseValidate, "function", "adder")
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
		if !strings.Contains(err.Detail, `"adder"`) {
			t.Errorf("Detail = %v, should contain name", err.Detail)
		}
	})

	t.Run("UseAfterFree", func(t *testing.T) {
		err := UseAfterFree("module")
		if err.Kind != KindUseAfterFree {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUseAfterFree)
		}
		if !strings.Contains(err.Detail, "after Close") {
			t.Errorf("Detail = %v", err.Detail)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseRun, "imported functions")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})

	t.Run("ParseFailed", func(t *testing.T) {
		cause := errors.New("unexpected end of section")
		err := ParseFailed("binary module", cause)
		if err.Kind != KindParse {
			t.Errorf("Kind = %v, want %v", err.Kind, KindParse)
		}
		if !errors.Is(err, cause) {
			t.Error("cause should unwrap")
		}
	})

	t.Run("SerializeFailed", func(t *testing.T) {
		err := SerializeFailed("call target %q unresolvable", "f")
		if err.Kind != KindSerialize {
			t.Errorf("Kind = %v, want %v", err.Kind, KindSerialize)
		}
	})
}

func TestValidationError(t *testing.T) {
	diags := []Diagnostic{
		{Where: "adder", Detail: "local index 7 out of range"},
		{Where: "adder", Detail: "call target \"missing\" not found"},
		{Where: "", Detail: "duplicate export \"main\""},
	}
	err := NewValidationError(diags)

	msg := err.Error()
	for _, want := range []string{"3 issue(s)", "adder", "local index 7", "(module)", "duplicate export"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q does not contain %q", msg, want)
		}
	}

	if !errors.Is(err, &ValidationError{}) {
		t.Error("errors.Is should match ValidationError target")
	}
	if !errors.Is(err, &Error{Kind: KindValidation}) {
		t.Error("errors.Is should match KindValidation target")
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("errors.As should extract ValidationError")
	}
	if len(ve.Diags) != 3 {
		t.Errorf("Diags = %d, want 3", len(ve.Diags))
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Where: "f", Detail: "bad type"}
	if d.String() != "f: bad type" {
		t.Errorf("String() = %q", d.String())
	}
	d = Diagnostic{Detail: "module-level"}
	if d.String() != "module-level" {
		t.Errorf("String() = %q", d.String())
	}
}
