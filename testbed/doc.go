// Package testbed builds a simulated playback engine as a WebAssembly module.
//
// The simulated engine implements every entry point engine.WazeroEngine
// expects, with scripted answers taken from Options. It validates the
// InitialisationInfo size tag the way a real engine does and keeps its
// counters in exported globals (sim_updates, sim_reconnects, ...) so tests
// can observe native-side effects:
//
//	wasm := testbed.MustEngineModule(testbed.Options{
//		Types:   []string{"PointCloud", "Mesh"},
//		Default: "Mesh",
//	})
//	eng, err := engine.Load(ctx, wasm, nil)
//
// ModuleBuilder is the underlying hand assembler: types, one host import
// namespace, functions with raw bodies, globals, memory and data segments.
package testbed
