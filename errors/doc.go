// Package errors provides structured error types for the hvr-interface module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the field path, Go type and layout names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindOutOfBounds).
//		Path("bounds", "center").
//		GoType("interop.Vec3").
//		WitType("vec3").
//		Detail("buffer too short").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NativeCall("interface_update", cause)
//	err := errors.OutOfBounds(errors.PhaseCapability, nil, 0, 0)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two errors match under errors.Is when Phase and Kind are equal.
package errors
