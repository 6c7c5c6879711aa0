package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/hvr-interface/config"
	"github.com/wippyai/hvr-interface/engine"
	"github.com/wippyai/hvr-interface/metrics"
	"github.com/wippyai/hvr-interface/runtime"
	"github.com/wippyai/hvr-interface/testbed"
)

type options struct {
	configPath  string
	enginePath  string
	infoKeys    string
	demo        bool
	verbose     bool
	interactive bool
	showMetrics bool
	ticks       int
	tick        time.Duration
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to hvr.yaml (optional)")
	flag.StringVar(&o.enginePath, "engine", "", "Path to the engine wasm module")
	flag.BoolVar(&o.demo, "demo", false, "Use the built-in simulated engine")
	flag.StringVar(&o.infoKeys, "info", "version", "Engine info keys to query (comma-separated)")
	flag.IntVar(&o.ticks, "ticks", 0, "Number of update ticks to run")
	flag.DurationVar(&o.tick, "tick", 500*time.Millisecond, "Interval between update ticks")
	flag.BoolVar(&o.verbose, "v", false, "Verbose engine logging")
	flag.BoolVar(&o.showMetrics, "metrics", false, "Print collected metrics before exiting")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if o.enginePath != "" {
		cfg.EnginePath = o.enginePath
	}
	if o.verbose {
		cfg.Verbose = true
	}

	if !o.demo && cfg.EnginePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: hvrctl -engine <engine.wasm> [-ticks n] [-tick 500ms] [-info key,...]")
		fmt.Fprintln(os.Stderr, "       hvrctl -demo [-ticks n]")
		fmt.Fprintln(os.Stderr, "       hvrctl -demo -i  (interactive mode)")
		os.Exit(1)
	}

	if o.interactive {
		cfg.Interactive = true
		if err := runInteractive(cfg, o); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is a loaded engine with the runtime driving it.
type session struct {
	eng       *engine.WazeroEngine
	rt        *runtime.Runtime
	collector *metrics.Collector
	source    string
}

func (s *session) Close(ctx context.Context) error {
	return s.eng.Close(ctx)
}

func openSession(ctx context.Context, cfg *config.Config, demo bool, logger *zap.Logger) (*session, error) {
	wasm, source, err := engineBytes(cfg, demo)
	if err != nil {
		return nil, err
	}

	eng, err := engine.Load(ctx, wasm, &engine.Config{Logger: logger.Named("engine")})
	if err != nil {
		return nil, fmt.Errorf("load engine: %w", err)
	}

	collector := metrics.NewCollector(cfg.MetricsNamespace)
	opts := runtime.OptionsFromConfig(cfg)
	opts.Logger = logger
	opts.Metrics = collector

	return &session{
		eng:       eng,
		rt:        runtime.New(eng, opts),
		collector: collector,
		source:    source,
	}, nil
}

func engineBytes(cfg *config.Config, demo bool) ([]byte, string, error) {
	if demo {
		wasm, err := testbed.EngineModule(testbed.DemoOptions())
		if err != nil {
			return nil, "", fmt.Errorf("build demo engine: %w", err)
		}
		return wasm, "demo", nil
	}
	wasm, err := os.ReadFile(cfg.EnginePath)
	if err != nil {
		return nil, "", fmt.Errorf("read engine: %w", err)
	}
	return wasm, cfg.EnginePath, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.DisableStacktrace = true
	return zc.Build()
}

func run(cfg *config.Config, o options) error {
	ctx := context.Background()

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	s, err := openSession(ctx, cfg, o.demo, logger)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	fmt.Printf("Engine: %s\n", s.source)
	fmt.Printf("Platform: %s\n", s.rt.Platform())

	ok := s.rt.Initialize(ctx)
	attempt := s.rt.LastAttempt()
	fmt.Printf("State: %s (attempt %s: %s)\n", s.rt.State(), attempt.ID, attempt.Outcome)
	if !ok {
		return fmt.Errorf("engine did not initialise: %v", attempt.Err)
	}

	caps := s.rt.Capabilities()
	fmt.Printf("\nRender methods:\n")
	for i, t := range caps.SupportedTypes(ctx) {
		fmt.Printf("  %d  %s\n", i, t)
	}
	if def, err := caps.DefaultType(ctx); err != nil {
		fmt.Printf("Default: <none> (%v)\n", err)
	} else {
		fmt.Printf("Default: %s\n", def)
	}

	if keys := splitKeys(o.infoKeys); len(keys) > 0 {
		fmt.Printf("\nInfo:\n")
		for _, k := range keys {
			fmt.Printf("  %s = %q\n", k, s.rt.Info(ctx, k))
		}
	}

	if o.ticks > 0 {
		fmt.Printf("\nTicking %d times every %s:\n", o.ticks, o.tick)
		runTicks(ctx, s.rt, o.ticks, o.tick)
	}

	if mem, err := s.rt.MemoryStats(ctx); err == nil {
		fmt.Printf("\nMemory: alloc=%d used=%d free=%d\n", mem.AllocBytes, mem.UsedBytes, mem.FreeBytes)
	}
	if net, err := s.rt.NetworkStats(ctx); err == nil {
		fmt.Printf("Network: rx=%d tx=%d rate=%d bps\n", net.ReceivedBits, net.SentBits, net.BitsPerSecond)
	}

	if o.showMetrics {
		return printMetrics(s.collector)
	}
	return nil
}

func runTicks(ctx context.Context, rt *runtime.Runtime, n int, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := rt.Monitor().LastCheck()
	for i := 1; i <= n; i++ {
		rt.Update(ctx)
		if lc := rt.Monitor().LastCheck(); !lc.Equal(last) {
			fmt.Printf("  tick %d: reconnect requested\n", i)
			last = lc
		} else {
			fmt.Printf("  tick %d\n", i)
		}
		if i < n {
			<-ticker.C
		}
	}
}

func printMetrics(c *metrics.Collector) error {
	families, err := c.Registry().Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	fmt.Printf("\nMetrics:\n")
	for _, f := range families {
		for _, m := range f.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			fmt.Printf("  %s{%s} %g\n", f.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
