// Package hvrinterface is the host-side boundary layer for an embedded
// volumetric-video playback engine.
//
// The engine itself is opaque and reachable only through a fixed set of entry
// points. This module initialises it once per process, mirrors its capability
// data, marshals fixed-layout structures across the boundary and drives the
// periodic update and reconnect tick.
//
// # Architecture Overview
//
//	hvrinterface/        Root package with Memory and Allocator interfaces
//	├── runtime/         Lifecycle controller (initialize, update, reconnect gate)
//	├── capability/      Cached render-method capability set
//	├── native/          Engine entry-point contract and bounded-string helpers
//	├── engine/          wazero host for engines shipped as WebAssembly modules
//	├── interop/         Fixed-layout records and their ABI layouts
//	├── platform/        Deny-lists, thread-pool policy, key and path resolvers
//	├── config/          Host configuration (file and environment)
//	├── metrics/         Prometheus collectors
//	├── testbed/         Simulated engine module for tests and demos
//	├── errors/          Structured error types
//	└── cmd/hvrctl/      Console for loading and ticking an engine
//
// # Quick Start
//
//	eng, err := engine.Load(ctx, moduleBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	rt := runtime.New(eng, runtime.Options{
//	    AppID:      "viewer",
//	    AppVersion: "1.0.0",
//	    Platform:   platform.Current(),
//	})
//
//	if !rt.Initialize(ctx) {
//	    log.Fatal(rt.LastAttempt().Err)
//	}
//
//	for range ticker.C {
//	    rt.Update(ctx)
//	}
//
// # Thread Safety
//
// Initialize is serialized by an internal mutex and the capability cache guards
// its snapshot. Update assumes a single host tick loop: it must not run
// concurrently with itself or before Initialize has returned.
package hvrinterface
