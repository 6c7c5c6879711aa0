// Package engine hosts a playback engine compiled to WebAssembly.
//
// WazeroEngine implements native.Engine on top of wazero. The engine module
// is a core WebAssembly module using the wasm32 record layout:
//
//	Export                                   Signature
//	──────────────────────────────────────────────────────────────
//	memory                                   linear memory
//	hvr_alloc                                (size) -> ptr
//	interface_is_initialised                 () -> bool
//	interface_initialise                     (info_ptr)
//	interface_set_log_level                  (level)
//	interface_set_log_callback               (enabled)
//	interface_update                         ()
//	interface_reconnect                      ()
//	interface_get_info                       (key, buf, cap) -> bool
//	interface_get_render_method_type_count   () -> count
//	interface_get_render_method_type         (index, buf, cap) -> bool
//	interface_get_render_method_default      (buf, cap) -> bool
//	interface_get_memory_stats               (out_ptr) -> bool   optional
//	interface_get_network_stats              (out_ptr) -> bool   optional
//
// The module imports hvr_host.log(level, ptr, len), which forwards engine
// log lines to the callback installed with SetLogCallback.
//
// # Memory
//
// Two scratch blocks are allocated with hvr_alloc at load: a
// native.BufferCapacity output buffer shared by every bounded-string query
// and a key buffer for GetInfo. InitialisationInfo and its strings are copied
// in through fresh allocations on each Initialise call.
//
// # Concurrency
//
// wazero functions are not safe for concurrent calls, so every entry point
// runs under a single mutex. Log callbacks fire while that mutex is held.
package engine
