// Package interop defines the fixed-layout records exchanged with the engine
// and the byte layout they take on each target ABI.
//
// Every record is described once as a WIT record (see Describe). Sizes,
// alignments and field offsets are computed from those descriptions, so the
// struct-size tags the engine checks are never hard-coded:
//
//	info := interop.NewInitialisationInfo(interop.Wasm32)
//	// info.StructSize == interop.SizeOf(interop.Wasm32, &info) == 28
//
// # Layout Rules
//
// Fields are laid out in declaration order with natural alignment, the way a
// C compiler lays out the engine's headers:
//
//	Record               wasm32  native64
//	─────────────────────────────────────
//	Vec3                 12      12
//	Bounds               24      24
//	MemoryStats          48      48
//	FrameContext         16      24
//	InitialisationInfo   28      56
//
// # Strings
//
// InitialisationInfo is the only record holding strings. MarshalWith takes a
// StringPlacer that copies each non-empty string into engine memory and
// returns its address; empty strings become null pointers.
package interop
