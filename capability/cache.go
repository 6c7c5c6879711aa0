package capability

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/metrics"
	"github.com/wippyai/hvr-interface/native"
)

// MaxRenderMethods bounds how many entries one refresh enumerates.
const MaxRenderMethods = 1024

// Options configures a Cache.
type Options struct {
	Logger  *zap.Logger
	Metrics metrics.Recorder
	// DenyList names render methods never published, whatever the engine
	// reports.
	DenyList []string
}

// Cache mirrors the engine's render-method enumeration. The set is built
// lazily on first access and rebuilt in full by Refresh; it is never patched
// incrementally. All methods are safe for concurrent use.
type Cache struct {
	eng     native.Engine
	deny    map[string]struct{}
	logger  *zap.Logger
	metrics metrics.Recorder
	types   []string
	mu      sync.Mutex
	built   bool
}

// New creates an empty cache over eng.
func New(eng native.Engine, opts Options) *Cache {
	deny := make(map[string]struct{}, len(opts.DenyList))
	for _, t := range opts.DenyList {
		deny[t] = struct{}{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		eng:     eng,
		deny:    deny,
		logger:  logger,
		metrics: metrics.OrNoOp(opts.Metrics),
	}
}

// SupportedTypes returns the published set in engine order, building it
// first if needed. The returned slice is a copy.
func (c *Cache) SupportedTypes(ctx context.Context) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLocked(ctx, false)
	return slices.Clone(c.types)
}

// Refresh rebuilds the set from the engine. Deny-listed and unreadable
// entries are left out. When the count query fails the previous set is kept
// and the error returned.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// Invalidate drops the set; the next access rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = nil
	c.built = false
}

// IndexOf returns the position of t in the published set, or 0 when t is
// absent. Use Lookup to tell a miss from a match at position 0.
func (c *Cache) IndexOf(ctx context.Context, t string) int {
	i, _ := c.Lookup(ctx, t)
	return i
}

// Lookup returns the position of t in the published set and whether it was
// found.
func (c *Cache) Lookup(ctx context.Context, t string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLocked(ctx, false)
	if i := slices.Index(c.types, t); i >= 0 {
		return i, true
	}
	return 0, false
}

// IsSupported reports whether t is in the published set. An empty set is
// rebuilt before answering.
func (c *Cache) IsSupported(ctx context.Context, t string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLocked(ctx, true)
	return slices.Contains(c.types, t)
}

// DefaultType returns the engine's preferred render method. If the engine
// cannot answer, the first published type is used instead. With nothing
// published either, it fails with an errors.KindOutOfBounds error; that is
// the only failure this cache passes to callers.
func (c *Cache) DefaultType(ctx context.Context) (string, error) {
	name, ok, err := native.Query(func(buf []byte) (bool, error) {
		return c.eng.RenderMethodDefault(ctx, buf)
	})
	if err == nil && ok {
		return name, nil
	}
	c.logger.Error("failed to get default render method type",
		zap.Bool("reported", ok),
		zap.Error(err))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLocked(ctx, false)
	if len(c.types) == 0 {
		return "", errors.OutOfBounds(errors.PhaseCapability, []string{"supported-types"}, 0, 0)
	}
	return c.types[0], nil
}

// TypeAt asks the engine directly for the render method at index, bypassing
// the cache and the deny-list. It returns "" on any failure.
func (c *Cache) TypeAt(ctx context.Context, index int) string {
	name, ok, err := native.Query(func(buf []byte) (bool, error) {
		return c.eng.RenderMethodType(ctx, index, buf)
	})
	if err != nil || !ok {
		c.logger.Debug("render method type unavailable",
			zap.Int("index", index),
			zap.Error(err))
		return ""
	}
	return name
}

// ensureLocked builds the set if it was never built, or if it is empty and
// emptyCounts is set.
func (c *Cache) ensureLocked(ctx context.Context, emptyCounts bool) {
	if c.built && !(emptyCounts && len(c.types) == 0) {
		return
	}
	if err := c.refreshLocked(ctx); err != nil {
		c.logger.Error("failed to build capability set", zap.Error(err))
	}
}

func (c *Cache) refreshLocked(ctx context.Context) error {
	n, err := c.eng.RenderMethodTypeCount(ctx)
	if err != nil {
		err = errors.Wrap(errors.PhaseCapability, errors.KindNativeCall, err, "render method count")
		c.metrics.RecordCapabilityRefresh(len(c.types), err)
		return err
	}

	switch {
	case n < 0:
		c.logger.Warn("engine reported a negative render method count", zap.Int("count", n))
		n = 0
	case n > MaxRenderMethods:
		c.logger.Warn("render method count capped",
			zap.Int("count", n),
			zap.Int("max", MaxRenderMethods))
		n = MaxRenderMethods
	}

	types := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name, ok, err := native.Query(func(buf []byte) (bool, error) {
			return c.eng.RenderMethodType(ctx, i, buf)
		})
		// Skipped entries shift later positions, so IndexOf can differ
		// from the engine's own index.
		if err != nil || !ok {
			c.logger.Warn("skipping unreadable render method",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		if _, denied := c.deny[name]; denied {
			continue
		}
		types = append(types, name)
	}

	c.types = types
	c.built = true
	c.metrics.RecordCapabilityRefresh(len(types), nil)
	c.logger.Debug("capability set rebuilt",
		zap.Int("reported", n),
		zap.Strings("types", types))
	return nil
}
