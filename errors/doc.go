// Package errors provides structured error types for the wasm-ir library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes context: entity path, offending value,
// and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindInvalidArgument).
//		Path("adder").
//		Detail("binary node requires a right operand").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseValidate, "function", "adder")
//	err := errors.ParseFailed("binary module", cause)
//
// Validation reports every finding at once through ValidationError, which
// groups its diagnostics by function when rendered.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
