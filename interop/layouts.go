package interop

import (
	"go.bytecodealliance.org/wit"
)

// Layout names. Tuples used for fixed-size float arrays are registered under
// their own names so nested lookups resolve through the same table.
const (
	layoutVec2               = "vec2"
	layoutVec3               = "vec3"
	layoutVec4               = "vec4"
	layoutF32x9              = "f32x9"
	layoutF32x16             = "f32x16"
	layoutMat33              = "mat33"
	layoutMat44              = "mat44"
	layoutBounds             = "bounds"
	layoutMemoryStats        = "memory-stats"
	layoutNetworkStats       = "network-stats"
	layoutStatsData          = "stats-data"
	layoutAdaptationSet      = "adaptation-set"
	layoutRepresentation     = "representation"
	layoutFrameContext       = "frame-context"
	layoutInitialisationInfo = "initialisation-info"
)

func describe(abi ABI) map[string]*wit.TypeDef {
	ptr := abi.pointerType()
	f32 := wit.F32{}
	u32 := wit.U32{}
	s32 := wit.S32{}
	u64 := wit.U64{}
	s64 := wit.S64{}

	vec3 := record(layoutVec3, field("x", f32), field("y", f32), field("z", f32))
	f32x9 := floats(layoutF32x9, 9)
	f32x16 := floats(layoutF32x16, 16)

	defs := []*wit.TypeDef{
		record(layoutVec2, field("x", f32), field("y", f32)),
		vec3,
		record(layoutVec4, field("x", f32), field("y", f32), field("z", f32), field("w", f32)),
		f32x9,
		f32x16,
		record(layoutMat33, field("m", f32x9)),
		record(layoutMat44, field("m", f32x16)),
		record(layoutBounds, field("center", vec3), field("half-dims", vec3)),
		record(layoutMemoryStats,
			field("alloc-bytes", u64),
			field("alloc-blocks", u64),
			field("free-bytes", u64),
			field("free-blocks", u64),
			field("used-bytes", s64),
			field("used-blocks", s64),
		),
		record(layoutNetworkStats,
			field("received-bits", s64),
			field("sent-bits", s64),
			field("bits-per-second", s64),
		),
		record(layoutStatsData,
			field("current", f32),
			field("total", f32),
			field("maximum", f32),
			field("minimum", f32),
			field("avg", f32),
			field("count", u32),
		),
		record(layoutAdaptationSet, field("mime-type", ptr), field("codec", ptr)),
		record(layoutRepresentation,
			field("max-fps", f32),
			field("bandwidth", u32),
			field("max-voxel-count", u32),
		),
		record(layoutFrameContext,
			field("struct-size", u32),
			field("pixel-format", u32),
			field("command-queue", ptr),
			field("command-encoder", ptr),
		),
		record(layoutInitialisationInfo,
			field("struct-size", u32),
			field("app-id", ptr),
			field("app-version", ptr),
			field("api-key", ptr),
			field("extension-path", ptr),
			field("cache-path", ptr),
			field("thread-pool-size", s32),
		),
	}

	byName := make(map[string]*wit.TypeDef, len(defs))
	for _, d := range defs {
		byName[*d.Name] = d
	}
	return byName
}

func record(name string, fields ...wit.Field) *wit.TypeDef {
	return &wit.TypeDef{
		Name: &name,
		Kind: &wit.Record{Fields: fields},
	}
}

func field(name string, t wit.Type) wit.Field {
	return wit.Field{Name: name, Type: t}
}

func floats(name string, n int) *wit.TypeDef {
	types := make([]wit.Type, n)
	for i := range types {
		types[i] = wit.F32{}
	}
	return &wit.TypeDef{
		Name: &name,
		Kind: &wit.Tuple{Types: types},
	}
}
