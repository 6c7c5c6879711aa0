package engine_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/hvr-interface/engine"
	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/interop"
	"github.com/wippyai/hvr-interface/native"
	"github.com/wippyai/hvr-interface/testbed"
)

func load(t *testing.T, opts testbed.Options) *engine.WazeroEngine {
	t.Helper()
	ctx := context.Background()
	wasm, err := testbed.EngineModule(opts)
	if err != nil {
		t.Fatalf("build engine module: %v", err)
	}
	eng, err := engine.Load(ctx, wasm, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close(ctx) })
	return eng
}

func initialise(t *testing.T, eng *engine.WazeroEngine, appID string) {
	t.Helper()
	info := interop.NewInitialisationInfo(eng.Target())
	info.AppID = appID
	if err := eng.Initialise(context.Background(), &info); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
}

func global(t *testing.T, eng *engine.WazeroEngine, name string) uint64 {
	t.Helper()
	v, ok := eng.Global(name)
	if !ok {
		t.Fatalf("global %s not exported", name)
	}
	return v
}

func TestLoad_InvalidModule(t *testing.T) {
	_, err := engine.Load(context.Background(), []byte("not wasm"), nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData}) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestLoad_MissingExport(t *testing.T) {
	b := testbed.NewModuleBuilder()
	b.SetMemory(1, engine.ExportMemory)

	_, err := engine.Load(context.Background(), b.Build(), nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindMissingExport}) {
		t.Fatalf("expected missing export error, got %v", err)
	}
	if !strings.Contains(err.Error(), engine.ExportAlloc) {
		t.Errorf("error should name the export: %v", err)
	}
}

func TestInitialise(t *testing.T) {
	ctx := context.Background()
	eng := load(t, testbed.DemoOptions())

	ok, err := eng.IsInitialised(ctx)
	if err != nil || ok {
		t.Fatalf("fresh engine: initialised=%v err=%v", ok, err)
	}

	info := interop.NewInitialisationInfo(eng.Target())
	info.AppID = "viewer"
	info.AppVersion = "2.1.0"
	info.ThreadPoolSize = interop.ThreadPoolNone
	if err := eng.Initialise(ctx, &info); err != nil {
		t.Fatalf("Initialise: %v", err)
	}

	ok, err = eng.IsInitialised(ctx)
	if err != nil || !ok {
		t.Fatalf("after initialise: initialised=%v err=%v", ok, err)
	}
	if got := global(t, eng, testbed.GlobalStructSize); got != 28 {
		t.Errorf("engine saw struct size %d, want 28", got)
	}
	if got := global(t, eng, testbed.GlobalThreadPool); got != 0 {
		t.Errorf("engine saw thread pool %d, want 0", got)
	}

	appID, err := eng.ReadString(interop.Handle(global(t, eng, testbed.GlobalAppID)))
	if err != nil || appID != "viewer" {
		t.Errorf("app id through engine memory = %q, %v", appID, err)
	}
}

func TestInitialise_RejectsStaleStructSize(t *testing.T) {
	ctx := context.Background()
	eng := load(t, testbed.DemoOptions())

	info := interop.NewInitialisationInfo(interop.Native64)
	if err := eng.Initialise(ctx, &info); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if ok, _ := eng.IsInitialised(ctx); ok {
		t.Error("engine accepted a record tagged with the native64 size")
	}
}

func TestInitialise_Trap(t *testing.T) {
	ctx := context.Background()
	eng := load(t, testbed.Options{FailInitialise: true})

	info := interop.NewInitialisationInfo(eng.Target())
	err := eng.Initialise(ctx, &info)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindNativeCall}) {
		t.Fatalf("expected native call error, got %v", err)
	}
	if ok, _ := eng.IsInitialised(ctx); ok {
		t.Error("trapped initialise must leave the engine uninitialised")
	}
	if got := global(t, eng, testbed.GlobalInitCalls); got != 1 {
		t.Errorf("init calls = %d, want 1", got)
	}
}

func TestRenderMethods(t *testing.T) {
	ctx := context.Background()
	eng := load(t, testbed.DemoOptions())

	n, err := eng.RenderMethodTypeCount(ctx)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}

	want := []string{"InstancedCube", "PointCloud", "Mesh"}
	for i, w := range want {
		got, ok, err := native.Query(func(buf []byte) (bool, error) {
			return eng.RenderMethodType(ctx, i, buf)
		})
		if err != nil || !ok || got != w {
			t.Errorf("type %d = %q, %v, %v; want %q", i, got, ok, err, w)
		}
	}

	_, ok, err := native.Query(func(buf []byte) (bool, error) {
		return eng.RenderMethodType(ctx, 3, buf)
	})
	if err != nil || ok {
		t.Errorf("index past count: ok=%v err=%v", ok, err)
	}

	def, ok, err := native.Query(func(buf []byte) (bool, error) {
		return eng.RenderMethodDefault(ctx, buf)
	})
	if err != nil || !ok || def != "PointCloud" {
		t.Errorf("default = %q, %v, %v", def, ok, err)
	}
}

func TestRenderMethods_BoundedOutput(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("v", native.BufferCapacity+44)
	eng := load(t, testbed.Options{Types: []string{long, "PointCloud"}})

	got, ok, err := native.Query(func(buf []byte) (bool, error) {
		return eng.RenderMethodType(ctx, 0, buf)
	})
	if err != nil || !ok {
		t.Fatalf("query: %v, %v", ok, err)
	}
	if got != long[:native.BufferCapacity] {
		t.Errorf("got %d bytes, want truncation to %d", len(got), native.BufferCapacity)
	}

	small := make([]byte, 4)
	ok, err = eng.RenderMethodType(ctx, 1, small)
	if err != nil || !ok || string(small) != "Poin" {
		t.Errorf("small buffer = %q, %v, %v", small, ok, err)
	}
}

func TestRenderMethodDefault_Trap(t *testing.T) {
	eng := load(t, testbed.Options{Types: []string{"Mesh"}, TrapDefault: true})

	_, err := eng.RenderMethodDefault(context.Background(), native.NewBuffer())
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindNativeCall}) {
		t.Fatalf("expected native call error, got %v", err)
	}
}

func TestGetInfo(t *testing.T) {
	ctx := context.Background()
	eng := load(t, testbed.DemoOptions())

	v, ok, err := native.Query(func(buf []byte) (bool, error) {
		return eng.GetInfo(ctx, "version", buf)
	})
	if err != nil || !ok || v != "sim-1.0.0" {
		t.Errorf("version = %q, %v, %v", v, ok, err)
	}

	_, ok, err = native.Query(func(buf []byte) (bool, error) {
		return eng.GetInfo(ctx, "vers", buf)
	})
	if err != nil || ok {
		t.Errorf("prefix key matched: ok=%v err=%v", ok, err)
	}

	_, err = eng.GetInfo(ctx, strings.Repeat("k", 300), native.NewBuffer())
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindInvalidInput}) {
		t.Errorf("expected invalid input for long key, got %v", err)
	}
}

func TestLogCallback(t *testing.T) {
	ctx := context.Background()
	eng := load(t, testbed.DemoOptions())

	type line struct {
		msg   string
		level native.LogLevel
	}
	var lines []line
	if err := eng.SetLogCallback(ctx, func(level native.LogLevel, msg string) {
		lines = append(lines, line{msg: msg, level: level})
	}); err != nil {
		t.Fatalf("SetLogCallback: %v", err)
	}

	// Default level is error, so info lines are filtered by the engine.
	if err := eng.Update(ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("unexpected lines at error level: %v", lines)
	}

	if err := eng.SetLogLevel(ctx, native.LogDebug); err != nil {
		t.Fatalf("SetLogLevel: %v", err)
	}
	if err := eng.Update(ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(lines) != 1 || lines[0].msg != testbed.UpdateLogMessage || lines[0].level != native.LogInfo {
		t.Errorf("lines = %v", lines)
	}

	if err := eng.SetLogCallback(ctx, nil); err != nil {
		t.Fatalf("SetLogCallback(nil): %v", err)
	}
	_ = eng.Update(ctx)
	if len(lines) != 1 {
		t.Errorf("callback still invoked after removal: %v", lines)
	}
	if got := global(t, eng, testbed.GlobalUpdates); got != 3 {
		t.Errorf("updates = %d, want 3", got)
	}
}

func TestReconnect(t *testing.T) {
	ctx := context.Background()
	eng := load(t, testbed.Options{})

	for i := 0; i < 2; i++ {
		if err := eng.Reconnect(ctx); err != nil {
			t.Fatalf("Reconnect: %v", err)
		}
	}
	if got := global(t, eng, testbed.GlobalReconnects); got != 2 {
		t.Errorf("reconnects = %d, want 2", got)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	opts := testbed.DemoOptions()
	eng := load(t, opts)

	_, err := eng.MemoryStats(ctx)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindNotInitialized}) {
		t.Fatalf("expected not initialised before init, got %v", err)
	}

	initialise(t, eng, "viewer")

	mem, err := eng.MemoryStats(ctx)
	if err != nil {
		t.Fatalf("MemoryStats: %v", err)
	}
	if mem != opts.Memory {
		t.Errorf("memory stats = %+v, want %+v", mem, opts.Memory)
	}

	net, err := eng.NetworkStats(ctx)
	if err != nil {
		t.Fatalf("NetworkStats: %v", err)
	}
	if net != opts.Network {
		t.Errorf("network stats = %+v, want %+v", net, opts.Network)
	}
}

func TestStats_Unsupported(t *testing.T) {
	eng := load(t, testbed.Options{NoStats: true})

	_, err := eng.NetworkStats(context.Background())
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindUnsupported}) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestReadString_Null(t *testing.T) {
	eng := load(t, testbed.Options{})
	s, err := eng.ReadString(0)
	if err != nil || s != "" {
		t.Errorf("null handle = %q, %v", s, err)
	}
}
