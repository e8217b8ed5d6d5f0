package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBuild    Phase = "build"    // module and expression construction
	PhaseValidate Phase = "validate" // semantic validation
	PhaseEmit     Phase = "emit"     // binary serialization
	PhaseParse    Phase = "parse"    // binary/text parsing
	PhasePrint    Phase = "print"    // text rendering
	PhaseRender   Phase = "render"   // control-flow rendering
	PhaseOptimize Phase = "optimize" // pass pipeline
	PhaseRun      Phase = "run"      // module execution
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidArgument  Kind = "invalid_argument"
	KindInvalidOperation Kind = "invalid_operation"
	KindAllocation       Kind = "allocation"
	KindParse            Kind = "parse"
	KindValidation       Kind = "validation"
	KindUseAfterFree     Kind = "use_after_free"
	KindNotFound         Kind = "not_found"
	KindUnsupported      Kind = "unsupported"
	KindSerialize        Kind = "serialize"
	KindTrap             Kind = "trap"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the entity path (function name, expression position)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidArgument creates an invalid argument error
func InvalidArgument(phase Phase, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: detail,
	}
}

// InvalidOperation creates an invalid operation error
func InvalidOperation(phase Phase, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidOperation,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// UseAfterFree creates an error for operations on a released module
func UseAfterFree(what string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindUseAfterFree,
		Detail: fmt.Sprintf("%s used after Close", what),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %s", what),
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindParse,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// SerializeFailed creates an emit-time consistency error
func SerializeFailed(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseEmit,
		Kind:   KindSerialize,
		Detail: detail,
	}
}

// Trap creates an execution trap error
func Trap(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseRun,
		Kind:   KindTrap,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Diagnostic is a single validation finding
type Diagnostic struct {
	Where  string // function or entity name, empty for module-level findings
	Detail string
}

func (d Diagnostic) String() string {
	if d.Where == "" {
		return d.Detail
	}
	return d.Where + ": " + d.Detail
}

// ValidationError is returned when module validation finds one or more
// problems. It carries every diagnostic, not just the first.
type ValidationError struct {
	Diags []Diagnostic
}

// NewValidationError creates an error from collected diagnostics
func NewValidationError(diags []Diagnostic) *ValidationError {
	return &ValidationError{Diags: diags}
}

func (e *ValidationError) Error() string {
	if len(e.Diags) == 0 {
		return "[validate] validation: no diagnostics"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "module validation failed with %d issue(s):\n", len(e.Diags))

	// Group by location for cleaner output
	byWhere := make(map[string][]string)
	var order []string
	for _, d := range e.Diags {
		where := d.Where
		if where == "" {
			where = "(module)"
		}
		if _, exists := byWhere[where]; !exists {
			order = append(order, where)
		}
		byWhere[where] = append(byWhere[where], d.Detail)
	}

	for _, where := range order {
		b.WriteString("\n  ")
		b.WriteString(where)
		b.WriteString(":\n")
		for _, detail := range byWhere[where] {
			b.WriteString("    - ")
			b.WriteString(detail)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Kind == KindValidation
	}
	return false
}
