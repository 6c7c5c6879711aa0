package native

import (
	"bytes"
	"context"

	"github.com/wippyai/hvr-interface/interop"
)

// BufferCapacity is the size of every bounded-string output buffer handed to
// the engine.
const BufferCapacity = 256

// LogLevel is the engine's log verbosity. Values match the engine's enum.
type LogLevel int32

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarning
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	default:
		return "unknown"
	}
}

// LogCallback receives log lines emitted by the engine.
type LogCallback func(level LogLevel, message string)

// Engine is the fixed set of entry points the playback engine exposes.
//
// Bounded-string queries write into buf (at most len(buf) bytes) and report
// whether the engine produced a value. A non-nil error means the call itself
// failed at the boundary (trap, missing export, bad memory access).
type Engine interface {
	// Target is the ABI the engine expects records in.
	Target() interop.ABI

	IsInitialised(ctx context.Context) (bool, error)
	Initialise(ctx context.Context, info *interop.InitialisationInfo) error
	SetLogLevel(ctx context.Context, level LogLevel) error
	SetLogCallback(ctx context.Context, cb LogCallback) error

	Update(ctx context.Context) error
	Reconnect(ctx context.Context) error

	GetInfo(ctx context.Context, key string, buf []byte) (bool, error)
	RenderMethodTypeCount(ctx context.Context) (int, error)
	RenderMethodType(ctx context.Context, index int, buf []byte) (bool, error)
	RenderMethodDefault(ctx context.Context, buf []byte) (bool, error)
}

// StatsReporter is implemented by engines that expose allocator and network
// counters.
type StatsReporter interface {
	MemoryStats(ctx context.Context) (interop.MemoryStats, error)
	NetworkStats(ctx context.Context) (interop.NetworkStats, error)
}

// NewBuffer returns an output buffer of BufferCapacity bytes.
func NewBuffer() []byte {
	return make([]byte, BufferCapacity)
}

// BoundedString returns the text in buf up to the first NUL. A buffer the
// engine filled completely yields all of it; nothing past len(buf) is read.
func BoundedString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// Query runs a bounded-string entry point with a fresh buffer and returns its
// text. ok is false when the engine reported no value.
func Query(fn func(buf []byte) (bool, error)) (s string, ok bool, err error) {
	buf := NewBuffer()
	ok, err = fn(buf)
	if err != nil || !ok {
		return "", ok, err
	}
	return BoundedString(buf), true, nil
}
