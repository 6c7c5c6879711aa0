package testbed

import (
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/hvr-interface/engine"
	"github.com/wippyai/hvr-interface/interop"
	"github.com/wippyai/hvr-interface/native"
)

// Exported globals of the simulated engine, readable with
// engine.WazeroEngine.Global.
const (
	GlobalInitialised = "sim_initialised"
	GlobalLogLevel    = "sim_log_level"
	GlobalLogEnabled  = "sim_log_enabled"
	GlobalUpdates     = "sim_updates"
	GlobalReconnects  = "sim_reconnects"
	GlobalInitCalls   = "sim_init_calls"
	GlobalStructSize  = "sim_struct_size"
	GlobalThreadPool  = "sim_thread_pool"
	GlobalAppID       = "sim_app_id"
)

// UpdateLogMessage is logged at info level on every update while a log
// callback is installed and the level admits it.
const UpdateLogMessage = "frame advanced"

// Options describes the simulated engine's behavior.
type Options struct {
	// Info answers get_info by exact key match.
	Info map[string]string
	// Types is the render-method enumeration, in engine order.
	Types []string
	// Default is the preferred render method. Empty reports no value.
	Default string

	Memory  interop.MemoryStats
	Network interop.NetworkStats

	// FailInitialise makes interface_initialise trap.
	FailInitialise bool
	// TrapDefault makes interface_get_render_method_default trap.
	TrapDefault bool
	// NoStats omits the optional statistics exports.
	NoStats bool
}

// DemoOptions returns the engine used by hvrctl -demo.
func DemoOptions() Options {
	return Options{
		Types:   []string{"InstancedCube", "PointCloud", "Mesh"},
		Default: "PointCloud",
		Info: map[string]string{
			"version": "sim-1.0.0",
			"vendor":  "hvr testbed",
		},
		Memory: interop.MemoryStats{
			AllocBytes:  1 << 20,
			AllocBlocks: 64,
			FreeBytes:   1 << 18,
			FreeBlocks:  16,
			UsedBytes:   (1 << 20) - (1 << 18),
			UsedBlocks:  48,
		},
		Network: interop.NetworkStats{
			ReceivedBits:  8_000_000,
			SentBits:      64_000,
			BitsPerSecond: 2_500_000,
		},
	}
}

const (
	dataStart   = 1024
	memoryPages = 2
)

// global indexes
const (
	gInitialised uint32 = iota
	gLogLevel
	gLogEnabled
	gUpdates
	gReconnects
	gInitCalls
	gStructSize
	gThreadPool
	gAppID
	gHeap
)

type dataLayout struct {
	segments []dataSegment
	next     uint32
}

// place stores b and returns its address.
func (d *dataLayout) place(b []byte) int32 {
	addr := d.next
	d.segments = append(d.segments, dataSegment{offset: addr, bytes: b})
	d.next = (addr + uint32(len(b)) + 7) &^ 7
	return int32(addr)
}

func (d *dataLayout) str(s string) (addr, n int32) {
	return d.place(append([]byte(s), 0)), int32(len(s) + 1)
}

// EngineModule builds a WebAssembly module implementing the engine entry
// points with scripted answers.
func EngineModule(opts Options) ([]byte, error) {
	abi := interop.Wasm32
	info := &interop.InitialisationInfo{}
	wantSize := int32(interop.SizeOf(abi, info))
	sizeOff, _ := interop.FieldOffset(abi, info, "struct-size")
	poolOff, _ := interop.FieldOffset(abi, info, "thread-pool-size")
	appOff, _ := interop.FieldOffset(abi, info, "app-id")

	data := &dataLayout{next: dataStart}
	logAddr, logLen := data.str(UpdateLogMessage)

	memStats, err := interop.Marshal(abi, &opts.Memory)
	if err != nil {
		return nil, fmt.Errorf("encode memory stats: %w", err)
	}
	netStats, err := interop.Marshal(abi, &opts.Network)
	if err != nil {
		return nil, fmt.Errorf("encode network stats: %w", err)
	}
	memAddr := data.place(memStats)
	netAddr := data.place(netStats)

	b := NewModuleBuilder()
	b.SetMemory(memoryPages, engine.ExportMemory)

	i32 := api.ValueTypeI32
	none := []api.ValueType{}
	one := []api.ValueType{i32}
	two := []api.ValueType{i32, i32}
	three := []api.ValueType{i32, i32, i32}

	logFn := b.ImportFunc(engine.HostModule, engine.HostFuncLog, engine.LogParams, none)

	b.AddGlobal(GlobalInitialised, i32, true, 0)
	b.AddGlobal(GlobalLogLevel, i32, true, int64(native.LogError))
	b.AddGlobal(GlobalLogEnabled, i32, true, 0)
	b.AddGlobal(GlobalUpdates, i32, true, 0)
	b.AddGlobal(GlobalReconnects, i32, true, 0)
	b.AddGlobal(GlobalInitCalls, i32, true, 0)
	b.AddGlobal(GlobalStructSize, i32, true, 0)
	b.AddGlobal(GlobalThreadPool, i32, true, 0)
	b.AddGlobal(GlobalAppID, i32, true, 0)

	// streq(a, b) -> i32 compares two NUL-terminated strings.
	var streq Code
	streq.Loop().
		LocalGet(0).Load8U().LocalSet(2).
		LocalGet(1).Load8U().LocalSet(3).
		LocalGet(2).LocalGet(3).Ne().If().I32Const(0).Return().End().
		LocalGet(2).Eqz().If().I32Const(1).Return().End().
		LocalGet(0).I32Const(1).Add().LocalSet(0).
		LocalGet(1).I32Const(1).Add().LocalSet(1).
		Br(0).
		End().
		I32Const(0)
	streqFn := b.AddFunc("", two, one, two, streq)

	// hvr_alloc(size) -> ptr, bump allocation in 8-byte steps.
	var alloc Code
	alloc.GlobalGet(gHeap).
		GlobalGet(gHeap).LocalGet(0).Add().I32Const(7).Add().I32Const(-8).And().
		GlobalSet(gHeap)
	b.AddFunc(engine.ExportAlloc, one, one, nil, alloc)

	var isInit Code
	isInit.GlobalGet(gInitialised)
	b.AddFunc(engine.ExportIsInitialised, none, one, nil, isInit)

	// Accepts the record only when its size tag matches the wasm32 layout.
	var initialise Code
	initialise.Incr(gInitCalls)
	if opts.FailInitialise {
		initialise.Unreachable()
	} else {
		initialise.
			LocalGet(0).Load(sizeOff).GlobalSet(gStructSize).
			LocalGet(0).Load(poolOff).GlobalSet(gThreadPool).
			LocalGet(0).Load(appOff).GlobalSet(gAppID).
			GlobalGet(gStructSize).I32Const(wantSize).Eq().GlobalSet(gInitialised)
	}
	b.AddFunc(engine.ExportInitialise, one, none, nil, initialise)

	var setLevel Code
	setLevel.LocalGet(0).GlobalSet(gLogLevel)
	b.AddFunc(engine.ExportSetLogLevel, one, none, nil, setLevel)

	var setCallback Code
	setCallback.LocalGet(0).GlobalSet(gLogEnabled)
	b.AddFunc(engine.ExportSetLogCallback, one, none, nil, setCallback)

	var update Code
	update.Incr(gUpdates).
		GlobalGet(gLogEnabled).If().
		GlobalGet(gLogLevel).I32Const(int32(native.LogInfo)).LeS().If().
		I32Const(int32(native.LogInfo)).I32Const(logAddr).I32Const(logLen - 1).Call(logFn).
		End().
		End()
	b.AddFunc(engine.ExportUpdate, none, none, nil, update)

	var reconnect Code
	reconnect.Incr(gReconnects)
	b.AddFunc(engine.ExportReconnect, none, none, nil, reconnect)

	keys := make([]string, 0, len(opts.Info))
	for k := range opts.Info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var getInfo Code
	for _, k := range keys {
		keyAddr, _ := data.str(k)
		valAddr, valLen := data.str(opts.Info[k])
		getInfo.LocalGet(0).I32Const(keyAddr).Call(streqFn).If().
			CopyOut(1, 2, valAddr, valLen).
			I32Const(1).Return().
			End()
	}
	getInfo.I32Const(0)
	b.AddFunc(engine.ExportGetInfo, three, one, nil, getInfo)

	var count Code
	count.I32Const(int32(len(opts.Types)))
	b.AddFunc(engine.ExportRenderMethodTypeCount, none, one, nil, count)

	var typeAt Code
	for i, t := range opts.Types {
		addr, n := data.str(t)
		typeAt.LocalGet(0).I32Const(int32(i)).Eq().If().
			CopyOut(1, 2, addr, n).
			I32Const(1).Return().
			End()
	}
	typeAt.I32Const(0)
	b.AddFunc(engine.ExportRenderMethodType, three, one, nil, typeAt)

	var def Code
	switch {
	case opts.TrapDefault:
		def.Unreachable()
	case opts.Default == "":
		def.I32Const(0)
	default:
		addr, n := data.str(opts.Default)
		def.CopyOut(0, 1, addr, n).I32Const(1)
	}
	b.AddFunc(engine.ExportRenderMethodDefault, two, one, nil, def)

	if !opts.NoStats {
		b.AddFunc(engine.ExportMemoryStats, one, one, nil, statsBody(memAddr, int32(len(memStats))))
		b.AddFunc(engine.ExportNetworkStats, one, one, nil, statsBody(netAddr, int32(len(netStats))))
	}

	heapStart := (data.next + 15) &^ 15
	if heapStart+16*1024 > memoryPages*65536 {
		return nil, fmt.Errorf("scripted data of %d bytes leaves no heap", heapStart-dataStart)
	}
	b.AddGlobal("", i32, true, int64(heapStart))

	for _, seg := range data.segments {
		b.AddData(seg.offset, seg.bytes)
	}
	return b.Build(), nil
}

// statsBody copies a fixed stats record to the out pointer once the engine
// is initialised.
func statsBody(addr, n int32) Code {
	var c Code
	c.GlobalGet(gInitialised).Eqz().If().I32Const(0).Return().End().
		LocalGet(0).I32Const(addr).I32Const(n).MemoryCopy().
		I32Const(1)
	return c
}

// MustEngineModule is EngineModule for fixed options known to be valid.
func MustEngineModule(opts Options) []byte {
	wasm, err := EngineModule(opts)
	if err != nil {
		panic(err)
	}
	return wasm
}
