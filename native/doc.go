// Package native describes the call surface of the playback engine.
//
// The engine is opaque. Everything the host knows about it goes through
// Engine: lifecycle calls (IsInitialised, Initialise, Update, Reconnect), log
// plumbing, and bounded-string queries for info keys and render methods.
//
// Bounded strings use a caller-owned buffer of BufferCapacity bytes. The
// engine may or may not NUL-terminate; BoundedString handles both and never
// looks past the buffer.
//
//	name, ok, err := native.Query(func(buf []byte) (bool, error) {
//		return eng.RenderMethodType(ctx, 0, buf)
//	})
//
// Implementations live in engine (a WebAssembly build of the engine hosted by
// wazero) and native/nativetest (a scripted fake for tests).
package native
