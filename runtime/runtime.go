package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/wippyai/hvr-interface/capability"
	"github.com/wippyai/hvr-interface/config"
	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/interop"
	"github.com/wippyai/hvr-interface/metrics"
	"github.com/wippyai/hvr-interface/native"
	"github.com/wippyai/hvr-interface/platform"
)

// Options configures a Runtime. Zero values select defaults.
type Options struct {
	// Support defaults to platform.Always.
	Support platform.Support
	// Key defaults to no key.
	Key platform.KeyResolver
	// Paths defaults to XDG paths for AppID.
	Paths platform.PathResolver
	// FS holds the cache directory. Defaults to the OS filesystem.
	FS afero.Fs
	// Clock drives the reconnect gate. Defaults to the real clock.
	Clock   clock.PassiveClock
	Logger  *zap.Logger
	Metrics metrics.Recorder

	AppID      string
	AppVersion string

	Platform          platform.Platform
	ReconnectInterval time.Duration

	// Verbose sets the engine log level to debug instead of error.
	Verbose bool
	// Interactive enables warnings meant for a developer at a console, such
	// as a missing encryption key.
	Interactive bool
}

// OptionsFromConfig maps host configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Key:               cfg.KeyResolver(),
		Paths:             cfg.Paths(),
		AppID:             cfg.AppID,
		AppVersion:        cfg.AppVersion,
		Platform:          cfg.ResolvePlatform(),
		ReconnectInterval: cfg.ReconnectInterval,
		Verbose:           cfg.Verbose,
		Interactive:       cfg.Interactive,
	}
}

// Runtime drives the engine lifecycle: one-time initialisation, the
// per-tick update with its reconnect gate, and capability queries.
//
// Initialize is safe to call from several goroutines. Update assumes a single
// ticking goroutine and must not run before the first Initialize returns.
type Runtime struct {
	eng      native.Engine
	cache    *capability.Cache
	monitor  *Monitor
	support  platform.Support
	key      platform.KeyResolver
	paths    platform.PathResolver
	fs       afero.Fs
	clock    clock.PassiveClock
	logger   *zap.Logger
	metrics  metrics.Recorder
	platform platform.Platform

	appID      string
	appVersion string

	// mu guards the initialise sequence only.
	mu sync.Mutex

	statusMu sync.Mutex
	last     Attempt
	state    atomic.Int32

	verbose     bool
	interactive bool
}

// New creates a Runtime over eng. No engine call is made until Initialize.
func New(eng native.Engine, opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	rec := metrics.OrNoOp(opts.Metrics)

	r := &Runtime{
		eng:         eng,
		support:     opts.Support,
		key:         opts.Key,
		paths:       opts.Paths,
		fs:          opts.FS,
		clock:       clk,
		logger:      logger,
		metrics:     rec,
		platform:    opts.Platform,
		appID:       opts.AppID,
		appVersion:  opts.AppVersion,
		verbose:     opts.Verbose,
		interactive: opts.Interactive,
	}
	if r.support == nil {
		r.support = platform.Always
	}
	if r.key == nil {
		r.key = platform.StaticKey("")
	}
	if r.paths == nil {
		r.paths = platform.XDGPaths{App: opts.AppID}
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	if r.platform.Name == "" {
		r.platform = platform.Current()
	}

	r.cache = capability.New(eng, capability.Options{
		Logger:   logger.Named("capability"),
		Metrics:  rec,
		DenyList: r.platform.DenyList,
	})
	r.monitor = NewMonitor(eng, MonitorOptions{
		Clock:    clk,
		Interval: opts.ReconnectInterval,
		Logger:   logger.Named("monitor"),
		Metrics:  rec,
	})
	return r
}

// Initialize brings the engine up once. It reports whether the engine is
// initialised afterwards, as the engine itself answers it. Failures are
// logged and recorded in LastAttempt, never returned.
func (r *Runtime) Initialize(ctx context.Context) bool {
	attempt := newAttempt(r.clock.Now())

	if !r.support.Supported() {
		r.setState(StateUnsupported)
		attempt.Outcome = OutcomeUnsupported
		r.finish(attempt)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queryInitialised(ctx) {
		r.setState(StateReady)
		attempt.Outcome = OutcomeAlreadyInitialized
		r.finish(attempt)
		return true
	}

	r.setState(StateInitializing)
	attempt.Err = r.initializeLocked(ctx)
	if attempt.Err != nil {
		r.logger.Error("engine initialise failed",
			zap.String("attempt", attempt.ID.String()),
			zap.Error(attempt.Err))
	}

	ok := r.queryInitialised(ctx)
	if ok {
		r.setState(StateReady)
		attempt.Outcome = OutcomeSucceeded
	} else {
		r.setState(StateUninitialized)
		attempt.Outcome = OutcomeFailed
		if attempt.Err == nil {
			attempt.Err = errors.NotInitialized(errors.PhaseInit, "engine")
		}
	}
	r.finish(attempt)
	return ok
}

func (r *Runtime) initializeLocked(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.PhaseInit, errors.KindNativeCall).
				Value(p).
				Detail("panic during initialise: %v", p).
				Build()
		}
	}()

	r.monitor.Reset()

	info, err := r.buildInfo()
	if err != nil {
		return err
	}
	if err := r.eng.Initialise(ctx, &info); err != nil {
		return errors.Wrap(errors.PhaseInit, errors.KindNativeCall, err, "initialise")
	}

	level := native.LogError
	if r.verbose {
		level = native.LogDebug
	}
	if err := r.eng.SetLogLevel(ctx, level); err != nil {
		return errors.Wrap(errors.PhaseInit, errors.KindNativeCall, err, "set log level")
	}
	if err := r.eng.SetLogCallback(ctx, r.forwardLog); err != nil {
		return errors.Wrap(errors.PhaseInit, errors.KindNativeCall, err, "set log callback")
	}
	return nil
}

// buildInfo assembles a fresh InitialisationInfo and wipes the cache
// directory it names.
func (r *Runtime) buildInfo() (interop.InitialisationInfo, error) {
	info := interop.NewInitialisationInfo(r.eng.Target())
	info.AppID = r.appID
	info.AppVersion = r.appVersion
	info.ThreadPoolSize = r.platform.ThreadPoolSize

	key, ok, err := r.key.ResolveKey()
	switch {
	case err != nil:
		r.logger.Warn("encryption key lookup failed", zap.Error(err))
	case !ok && r.interactive:
		r.logger.Warn("no encryption key configured; encrypted content will not play")
	case ok:
		info.APIKey = key
	}

	info.ExtensionPath = r.paths.ExtensionPath()
	if dir, ok := r.paths.CachePath(); ok {
		if err := platform.ResetDir(r.fs, dir); err != nil {
			return info, err
		}
		info.CachePath = dir
	}
	return info, nil
}

func (r *Runtime) forwardLog(level native.LogLevel, msg string) {
	switch level {
	case native.LogDebug:
		r.logger.Debug(msg, zap.String("source", "engine"))
	case native.LogInfo:
		r.logger.Info(msg, zap.String("source", "engine"))
	case native.LogWarning:
		r.logger.Warn(msg, zap.String("source", "engine"))
	default:
		r.logger.Error(msg, zap.String("source", "engine"), zap.Stringer("level", level))
	}
}

func (r *Runtime) queryInitialised(ctx context.Context) bool {
	ok, err := r.eng.IsInitialised(ctx)
	if err != nil {
		r.logger.Debug("is-initialised query failed", zap.Error(err))
		return false
	}
	return ok
}

func (r *Runtime) setState(s State) {
	r.state.Store(int32(s))
	r.metrics.RecordState(int(s))
}

func (r *Runtime) finish(a Attempt) {
	a.Duration = r.clock.Since(a.At)
	r.statusMu.Lock()
	r.last = a
	r.statusMu.Unlock()
	r.metrics.RecordInitAttempt(a.Outcome.String(), a.Duration)
}

// IsInitialized asks the engine whether it is initialised. It never calls
// the engine when the platform is unsupported.
func (r *Runtime) IsInitialized(ctx context.Context) bool {
	if !r.support.Supported() {
		r.setState(StateUnsupported)
		return false
	}
	ok := r.queryInitialised(ctx)
	r.observe(ok)
	return ok
}

// observe moves the state to match an is-initialised answer. An Initialize
// in progress owns the state until it finishes.
func (r *Runtime) observe(initialised bool) {
	want := StateUninitialized
	if initialised {
		want = StateReady
	}
	for {
		cur := State(r.state.Load())
		if cur == want || cur == StateInitializing {
			return
		}
		if r.state.CompareAndSwap(int32(cur), int32(want)) {
			r.metrics.RecordState(int(want))
			return
		}
	}
}

// Update advances the engine by one tick and runs the reconnect gate. It does
// nothing until the engine is initialised.
func (r *Runtime) Update(ctx context.Context) {
	if !r.IsInitialized(ctx) {
		return
	}

	start := r.clock.Now()
	err := r.eng.Update(ctx)
	r.metrics.RecordUpdate(r.clock.Since(start), err)
	if err != nil {
		r.logger.Warn("engine update failed", zap.Error(err))
	}

	r.monitor.Check(ctx)
}

// Info returns an engine information string, initialising on demand. It
// returns "" when the engine is unavailable or has no value for key.
func (r *Runtime) Info(ctx context.Context, key string) string {
	if !r.Initialize(ctx) {
		return ""
	}
	s, _, err := native.Query(func(buf []byte) (bool, error) {
		return r.eng.GetInfo(ctx, key, buf)
	})
	if err != nil {
		r.logger.Warn("info query failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return s
}

func (r *Runtime) stats() (native.StatsReporter, error) {
	if !r.support.Supported() {
		return nil, errors.Unsupported(errors.PhaseNative, "engine on this platform")
	}
	sr, ok := r.eng.(native.StatsReporter)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseNative, "engine statistics")
	}
	return sr, nil
}

// MemoryStats returns the engine's allocator counters.
func (r *Runtime) MemoryStats(ctx context.Context) (interop.MemoryStats, error) {
	sr, err := r.stats()
	if err != nil {
		return interop.MemoryStats{}, err
	}
	return sr.MemoryStats(ctx)
}

// NetworkStats returns the engine's network counters.
func (r *Runtime) NetworkStats(ctx context.Context) (interop.NetworkStats, error) {
	sr, err := r.stats()
	if err != nil {
		return interop.NetworkStats{}, err
	}
	return sr.NetworkStats(ctx)
}

// LastAttempt returns the most recent Initialize result.
func (r *Runtime) LastAttempt() Attempt {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.last
}

func (r *Runtime) State() State {
	return State(r.state.Load())
}

// Capabilities returns the render-method cache filtered by the platform's
// deny-list.
func (r *Runtime) Capabilities() *capability.Cache {
	return r.cache
}

func (r *Runtime) Monitor() *Monitor {
	return r.monitor
}

func (r *Runtime) Platform() platform.Platform {
	return r.platform
}
