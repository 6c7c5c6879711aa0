// Package nativetest provides a scripted native.Engine for tests.
package nativetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/wippyai/hvr-interface/interop"
	"github.com/wippyai/hvr-interface/native"
)

// Entry point names used as call-counter keys.
const (
	CallIsInitialised  = "is_initialised"
	CallInitialise     = "initialise"
	CallSetLogLevel    = "set_log_level"
	CallSetLogCallback = "set_log_callback"
	CallUpdate         = "update"
	CallReconnect      = "reconnect"
	CallGetInfo        = "get_info"
	CallTypeCount      = "render_method_type_count"
	CallType           = "render_method_type"
	CallDefault        = "render_method_default"
	CallMemoryStats    = "memory_stats"
	CallNetworkStats   = "network_stats"
)

// Fake is an in-memory engine. Configure the exported fields before use;
// they are read under the fake's lock so tests may also change them between
// calls through the setter methods.
type Fake struct {
	// Types is the render-method enumeration, in engine order.
	Types []string
	// Default is the preferred render method. Empty reports no value.
	Default string
	// Info answers GetInfo by key. Missing keys report no value.
	Info map[string]string

	// InitialiseErr is returned by Initialise, which then leaves the engine
	// uninitialised.
	InitialiseErr error
	// InitialisePanic, when non-nil, is raised by Initialise.
	InitialisePanic any
	// InitialiseIgnored makes Initialise return cleanly without taking effect.
	InitialiseIgnored bool

	CountErr     error
	TypeErrs     map[int]error
	DefaultErr   error
	UpdateErr    error
	ReconnectErr error

	Memory  interop.MemoryStats
	Network interop.NetworkStats

	ABI interop.ABI

	calls       map[string]int
	lastInfo    *interop.InitialisationInfo
	callback    native.LogCallback
	level       native.LogLevel
	mu          sync.Mutex
	initialised bool
}

var (
	_ native.Engine        = (*Fake)(nil)
	_ native.StatsReporter = (*Fake)(nil)
)

// New returns a fake reporting the given render methods.
func New(types ...string) *Fake {
	return &Fake{
		Types: types,
		ABI:   interop.Native64,
	}
}

func (f *Fake) record(name string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

// Calls returns how many times the named entry point was invoked.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls returns the number of entry-point invocations of any kind.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// LastInfo returns a copy of the record passed to the last Initialise call.
func (f *Fake) LastInfo() (interop.InitialisationInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastInfo == nil {
		return interop.InitialisationInfo{}, false
	}
	return *f.lastInfo, true
}

// LogLevel returns the level most recently set by the host.
func (f *Fake) LogLevel() native.LogLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Emit delivers a log line through the installed callback, if any.
func (f *Fake) Emit(level native.LogLevel, msg string) bool {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(level, msg)
	return true
}

// SetTypes replaces the render-method enumeration.
func (f *Fake) SetTypes(types ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Types = types
}

// SetDefault replaces the preferred render method and its failure.
func (f *Fake) SetDefault(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Default = name
	f.DefaultErr = err
}

func (f *Fake) Target() interop.ABI {
	return f.ABI
}

func (f *Fake) IsInitialised(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallIsInitialised)
	return f.initialised, nil
}

func (f *Fake) Initialise(_ context.Context, info *interop.InitialisationInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallInitialise)
	cp := *info
	f.lastInfo = &cp
	if f.InitialisePanic != nil {
		panic(f.InitialisePanic)
	}
	if f.InitialiseErr != nil {
		return f.InitialiseErr
	}
	if !f.InitialiseIgnored {
		f.initialised = true
	}
	return nil
}

func (f *Fake) SetLogLevel(_ context.Context, level native.LogLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallSetLogLevel)
	f.level = level
	return nil
}

func (f *Fake) SetLogCallback(_ context.Context, cb native.LogCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallSetLogCallback)
	f.callback = cb
	return nil
}

func (f *Fake) Update(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallUpdate)
	return f.UpdateErr
}

func (f *Fake) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallReconnect)
	return f.ReconnectErr
}

func (f *Fake) GetInfo(_ context.Context, key string, buf []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallGetInfo)
	v, ok := f.Info[key]
	if !ok {
		return false, nil
	}
	fill(buf, v)
	return true, nil
}

func (f *Fake) RenderMethodTypeCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallTypeCount)
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	return len(f.Types), nil
}

func (f *Fake) RenderMethodType(_ context.Context, index int, buf []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallType)
	if err := f.TypeErrs[index]; err != nil {
		return false, err
	}
	if index < 0 || index >= len(f.Types) {
		return false, nil
	}
	fill(buf, f.Types[index])
	return true, nil
}

func (f *Fake) RenderMethodDefault(_ context.Context, buf []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallDefault)
	if f.DefaultErr != nil {
		return false, f.DefaultErr
	}
	if f.Default == "" {
		return false, nil
	}
	fill(buf, f.Default)
	return true, nil
}

func (f *Fake) MemoryStats(context.Context) (interop.MemoryStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallMemoryStats)
	if !f.initialised {
		return interop.MemoryStats{}, fmt.Errorf("engine not initialised")
	}
	return f.Memory, nil
}

func (f *Fake) NetworkStats(context.Context) (interop.NetworkStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallNetworkStats)
	if !f.initialised {
		return interop.NetworkStats{}, fmt.Errorf("engine not initialised")
	}
	return f.Network, nil
}

// fill copies s into buf the way the engine does: truncated to capacity and
// NUL-terminated only when there is room.
func fill(buf []byte, s string) {
	n := copy(buf, s)
	if n < len(buf) {
		buf[n] = 0
	}
}
