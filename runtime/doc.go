// Package runtime controls the playback engine's lifecycle.
//
// # Lifecycle
//
//	Uninitialized --Initialize--> Initializing --engine reports ready--> Ready
//	      ^                             |
//	      +------- failure -------------+
//
//	any state --support predicate false--> Unsupported
//
// Ready lasts for the life of the process; there is no teardown call.
//
// # Usage
//
//	rt := runtime.New(eng, runtime.OptionsFromConfig(cfg))
//	if !rt.Initialize(ctx) {
//	    log.Printf("engine unavailable: %v", rt.LastAttempt().Err)
//	}
//	for range ticker.C {
//	    rt.Update(ctx)
//	}
//
// Initialize never returns an error. The engine's own is-initialised answer
// is the result, and LastAttempt records what happened and why.
//
// # Reconnect gate
//
// Update runs the Monitor after each engine tick. The Monitor issues at most
// one reconnect per interval; its last-check time starts at zero, so the
// first tick after Initialize always reconnects.
package runtime
