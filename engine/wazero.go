package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/interop"
	"github.com/wippyai/hvr-interface/native"
)

// ModuleName is the instance name the engine module is registered under.
const ModuleName = "hvr_engine"

// Config holds configuration for loading an engine module.
type Config struct {
	// Logger receives load diagnostics and recovered panics.
	// nil means Logger().
	Logger *zap.Logger

	// MemoryLimitPages sets the maximum engine memory in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// WazeroEngine hosts a playback engine compiled to WebAssembly and exposes it
// as a native.Engine. Calls into the module are serialized.
type WazeroEngine struct {
	runtime  wazero.Runtime
	module   api.Module
	memory   *Memory
	fns      map[string]api.Function
	logger   *zap.Logger
	callback atomic.Pointer[native.LogCallback]
	outBuf   uint32
	keyBuf   uint32
	mu       sync.Mutex
}

var (
	_ native.Engine        = (*WazeroEngine)(nil)
	_ native.StatsReporter = (*WazeroEngine)(nil)
)

// Load compiles and instantiates an engine module. The module must export
// memory, hvr_alloc and every required interface_* entry point.
func Load(ctx context.Context, wasmBytes []byte, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	log := Logger()
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}

	e := &WazeroEngine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		fns:     make(map[string]api.Function),
		logger:  log,
	}

	if err := e.instantiate(ctx, wasmBytes); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, err
	}

	log.Debug("engine module loaded",
		zap.Uint32("memory_bytes", e.memory.Size()),
		zap.Bool("stats", e.fns[ExportMemoryStats] != nil))
	return e, nil
}

func (e *WazeroEngine) instantiate(ctx context.Context, wasmBytes []byte) error {
	_, err := e.runtime.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostLog), LogParams, nil).
		Export(HostFuncLog).
		Instantiate(ctx)
	if err != nil {
		return errors.Load("instantiate host module", err)
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return errors.Load("compile engine module", err)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(ModuleName))
	if err != nil {
		return errors.Load("instantiate engine module", err)
	}
	e.module = mod

	mem := mod.ExportedMemory(ExportMemory)
	if mem == nil {
		return errors.MissingExport(ExportMemory)
	}
	e.memory = &Memory{mem: mem}

	for _, name := range requiredExports {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return errors.MissingExport(name)
		}
		e.fns[name] = fn
	}
	for _, name := range optionalExports {
		if fn := mod.ExportedFunction(name); fn != nil {
			e.fns[name] = fn
		}
	}

	alloc := &Allocator{ctx: ctx, fn: e.fns[ExportAlloc]}
	if e.outBuf, err = alloc.Alloc(native.BufferCapacity, 8); err != nil {
		return errors.AllocationFailed(errors.PhaseLoad, native.BufferCapacity, err)
	}
	if e.keyBuf, err = alloc.Alloc(keyCapacity, 8); err != nil {
		return errors.AllocationFailed(errors.PhaseLoad, keyCapacity, err)
	}
	return nil
}

// hostLog implements hvr_host.log(level, ptr, len).
func (e *WazeroEngine) hostLog(_ context.Context, mod api.Module, stack []uint64) {
	level := native.LogLevel(api.DecodeI32(stack[0]))
	ptr := api.DecodeU32(stack[1])
	length := api.DecodeU32(stack[2])

	cb := e.callback.Load()
	if cb == nil || *cb == nil {
		return
	}
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		e.logger.Warn("engine log message out of bounds",
			zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		return
	}
	(*cb)(level, string(msg))
}

// call invokes an export with the engine lock held.
func (e *WazeroEngine) call(ctx context.Context, name string, params ...uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callLocked(ctx, name, params...)
}

func (e *WazeroEngine) callLocked(ctx context.Context, name string, params ...uint64) (result uint64, err error) {
	fn := e.fns[name]
	if fn == nil {
		return 0, errors.MissingExport(name)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recovered panic in engine call",
				zap.String("entry", name),
				zap.Any("panic", r))
			err = errors.NativeCall(name, fmt.Errorf("panic: %v", r))
		}
	}()

	results, callErr := fn.Call(ctx, params...)
	if callErr != nil {
		return 0, errors.NativeCall(name, callErr)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

// Target implements native.Engine.
func (e *WazeroEngine) Target() interop.ABI {
	return interop.Wasm32
}

func (e *WazeroEngine) IsInitialised(ctx context.Context) (bool, error) {
	r, err := e.call(ctx, ExportIsInitialised)
	return api.DecodeI32(r) != 0, err
}

// Initialise copies info and its strings into engine memory and calls
// interface_initialise with the record address.
func (e *WazeroEngine) Initialise(ctx context.Context, info *interop.InitialisationInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	abi := e.Target()
	alloc := &Allocator{ctx: ctx, fn: e.fns[ExportAlloc]}
	size := interop.SizeOf(abi, info)
	ptr, err := alloc.Alloc(size, interop.AlignOf(abi, info))
	if err != nil {
		return errors.AllocationFailed(errors.PhaseInit, size, err)
	}

	if err := interop.Write(e.memory, ptr, abi, info, e.stringPlacer(alloc)); err != nil {
		return err
	}

	_, err = e.callLocked(ctx, ExportInitialise, api.EncodeU32(ptr))
	return err
}

// stringPlacer copies strings into engine memory as NUL-terminated blocks.
func (e *WazeroEngine) stringPlacer(alloc *Allocator) interop.StringPlacer {
	return func(s string) (uint64, error) {
		n := uint32(len(s)) + 1
		ptr, err := alloc.Alloc(n, 1)
		if err != nil {
			return 0, err
		}
		data := make([]byte, n)
		copy(data, s)
		if err := e.memory.Write(ptr, data); err != nil {
			return 0, err
		}
		return uint64(ptr), nil
	}
}

func (e *WazeroEngine) SetLogLevel(ctx context.Context, level native.LogLevel) error {
	_, err := e.call(ctx, ExportSetLogLevel, api.EncodeI32(int32(level)))
	return err
}

// SetLogCallback installs cb as the receiver of engine log lines. cb runs on
// the calling goroutine of the engine entry point that logged, and must not
// call back into the engine.
func (e *WazeroEngine) SetLogCallback(ctx context.Context, cb native.LogCallback) error {
	enabled := uint64(0)
	if cb != nil {
		enabled = 1
	}
	e.callback.Store(&cb)
	_, err := e.call(ctx, ExportSetLogCallback, enabled)
	return err
}

func (e *WazeroEngine) Update(ctx context.Context) error {
	_, err := e.call(ctx, ExportUpdate)
	return err
}

func (e *WazeroEngine) Reconnect(ctx context.Context) error {
	_, err := e.call(ctx, ExportReconnect)
	return err
}

func (e *WazeroEngine) GetInfo(ctx context.Context, key string, buf []byte) (bool, error) {
	if len(key)+1 > keyCapacity {
		return false, errors.InvalidInput(errors.PhaseNative,
			fmt.Sprintf("info key of %d bytes exceeds %d", len(key), keyCapacity-1))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	data := make([]byte, len(key)+1)
	copy(data, key)
	if err := e.memory.Write(e.keyBuf, data); err != nil {
		return false, errors.Wrap(errors.PhaseNative, errors.KindOutOfBounds, err, "write info key")
	}
	return e.bounded(ctx, ExportGetInfo, buf, api.EncodeU32(e.keyBuf))
}

func (e *WazeroEngine) RenderMethodTypeCount(ctx context.Context) (int, error) {
	r, err := e.call(ctx, ExportRenderMethodTypeCount)
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(r)), nil
}

func (e *WazeroEngine) RenderMethodType(ctx context.Context, index int, buf []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bounded(ctx, ExportRenderMethodType, buf, api.EncodeI32(int32(index)))
}

func (e *WazeroEngine) RenderMethodDefault(ctx context.Context, buf []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bounded(ctx, ExportRenderMethodDefault, buf)
}

// bounded calls a bounded-string entry point with the scratch buffer
// appended to params and copies the output into buf. Requires e.mu.
func (e *WazeroEngine) bounded(ctx context.Context, name string, buf []byte, params ...uint64) (bool, error) {
	capacity := uint32(min(len(buf), native.BufferCapacity))

	params = append(params, api.EncodeU32(e.outBuf), api.EncodeU32(capacity))
	r, err := e.callLocked(ctx, name, params...)
	if err != nil || api.DecodeI32(r) == 0 {
		return false, err
	}

	out, err := e.memory.Read(e.outBuf, capacity)
	if err != nil {
		return false, errors.Wrap(errors.PhaseNative, errors.KindOutOfBounds, err, name)
	}
	copy(buf, out)
	return true, nil
}

// MemoryStats implements native.StatsReporter. Engines without the export
// report errors.KindUnsupported.
func (e *WazeroEngine) MemoryStats(ctx context.Context) (interop.MemoryStats, error) {
	var s interop.MemoryStats
	err := e.stats(ctx, ExportMemoryStats, &s)
	return s, err
}

// NetworkStats implements native.StatsReporter.
func (e *WazeroEngine) NetworkStats(ctx context.Context) (interop.NetworkStats, error) {
	var s interop.NetworkStats
	err := e.stats(ctx, ExportNetworkStats, &s)
	return s, err
}

func (e *WazeroEngine) stats(ctx context.Context, name string, r interop.Record) error {
	if e.fns[name] == nil {
		return errors.Unsupported(errors.PhaseNative, fmt.Sprintf("engine module does not export %q", name))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.callLocked(ctx, name, api.EncodeU32(e.outBuf))
	if err != nil {
		return err
	}
	if api.DecodeI32(res) == 0 {
		return errors.NotInitialized(errors.PhaseNative, "engine statistics")
	}
	return interop.Read(e.memory, e.outBuf, e.Target(), r)
}

// ReadString resolves an engine-owned NUL-terminated string handle, such as
// the fields of an AdaptationSet. The null handle reads as "".
func (e *WazeroEngine) ReadString(h interop.Handle) (string, error) {
	if h.IsNull() {
		return "", nil
	}
	if uint64(h) > uint64(^uint32(0)) {
		return "", errors.New(errors.PhaseUnmarshal, errors.KindOutOfBounds).
			Value(uint64(h)).
			Detail("handle outside 32-bit address space").
			Build()
	}
	return e.memory.CString(uint32(h))
}

// Memory exposes engine memory for record-level access.
func (e *WazeroEngine) Memory() *Memory {
	return e.memory
}

// Global reads an exported i32/i64 global of the engine module, for
// diagnostics.
func (e *WazeroEngine) Global(name string) (uint64, bool) {
	g := e.module.ExportedGlobal(name)
	if g == nil {
		return 0, false
	}
	return g.Get(), true
}

// Close releases the wazero runtime and everything instantiated in it.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
