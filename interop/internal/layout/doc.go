// Package layout computes sequential (C-compatible) layouts for WIT record
// descriptions of native interop structures.
//
// # Layout Rules
//
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, f32=4)
//   - Records: fields laid out in declaration order with padding for alignment,
//     total size padded to the largest field alignment
//   - Tuples: same as records, addressed by position (fixed-length arrays)
//
// Pointers have no WIT spelling; callers describe them as u32 or u64 depending
// on the target ABI.
//
// # Usage
//
//	info := layout.NewCalculator().Calculate(recordDef)
//	// info.Size, info.Align, info.FieldOffs available
//
// This package is internal to interop.
package layout
