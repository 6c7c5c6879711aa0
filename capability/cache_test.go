package capability

import (
	"context"
	stderrors "errors"
	"slices"
	"testing"

	"github.com/wippyai/hvr-interface/engine"
	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/metrics"
	"github.com/wippyai/hvr-interface/native/nativetest"
	"github.com/wippyai/hvr-interface/testbed"
)

func TestSupportedTypes_DenyList(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		native []string
		deny   []string
		want   []string
	}{
		{
			name:   "instanced cube denied",
			native: []string{"InstancedCube", "PointCloud", "Mesh"},
			deny:   []string{"InstancedCube"},
			want:   []string{"PointCloud", "Mesh"},
		},
		{
			name:   "no deny-list",
			native: []string{"InstancedCube", "PointCloud", "Mesh"},
			want:   []string{"InstancedCube", "PointCloud", "Mesh"},
		},
		{
			name:   "everything denied",
			native: []string{"Mesh"},
			deny:   []string{"Mesh", "PointCloud"},
			want:   []string{},
		},
		{
			name:   "order preserved",
			native: []string{"Mesh", "Billboard", "PointCloud"},
			deny:   []string{"Billboard"},
			want:   []string{"Mesh", "PointCloud"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(nativetest.New(tc.native...), Options{DenyList: tc.deny})
			got := c.SupportedTypes(ctx)
			if !slices.Equal(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
			for _, d := range tc.deny {
				if c.IsSupported(ctx, d) {
					t.Errorf("denied type %q reported as supported", d)
				}
			}
		})
	}
}

func TestSupportedTypes_Lazy(t *testing.T) {
	ctx := context.Background()
	f := nativetest.New("PointCloud", "Mesh")
	c := New(f, Options{})

	if f.TotalCalls() != 0 {
		t.Fatal("New must not touch the engine")
	}

	c.SupportedTypes(ctx)
	c.SupportedTypes(ctx)
	if got := f.Calls(nativetest.CallTypeCount); got != 1 {
		t.Errorf("count queried %d times, want 1", got)
	}
}

func TestSupportedTypes_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := New(nativetest.New("PointCloud", "Mesh"), Options{})

	got := c.SupportedTypes(ctx)
	got[0] = "Tampered"
	if c.SupportedTypes(ctx)[0] != "PointCloud" {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestIndexOf(t *testing.T) {
	ctx := context.Background()
	c := New(nativetest.New("InstancedCube", "PointCloud", "Mesh"), Options{})

	if got := c.IndexOf(ctx, "Mesh"); got != 2 {
		t.Errorf("IndexOf(Mesh) = %d, want 2", got)
	}
	if got := c.IndexOf(ctx, "Nonexistent"); got != 0 {
		t.Errorf("IndexOf(Nonexistent) = %d, want 0", got)
	}

	if i, ok := c.Lookup(ctx, "InstancedCube"); !ok || i != 0 {
		t.Errorf("Lookup(InstancedCube) = %d, %v", i, ok)
	}
	if _, ok := c.Lookup(ctx, "Nonexistent"); ok {
		t.Error("Lookup should report a miss")
	}
}

func TestIndexOf_AfterDenyList(t *testing.T) {
	ctx := context.Background()
	c := New(nativetest.New("InstancedCube", "PointCloud", "Mesh"), Options{DenyList: []string{"InstancedCube"}})

	if got := c.IndexOf(ctx, "Mesh"); got != 1 {
		t.Errorf("IndexOf(Mesh) = %d, want 1", got)
	}
}

func TestIsSupported_RebuildsEmptySet(t *testing.T) {
	ctx := context.Background()
	f := nativetest.New()
	c := New(f, Options{})

	if c.IsSupported(ctx, "Mesh") {
		t.Fatal("nothing reported yet")
	}

	f.SetTypes("Mesh")
	// SupportedTypes keeps a built empty set; IsSupported rebuilds it.
	if got := c.SupportedTypes(ctx); len(got) != 0 {
		t.Errorf("SupportedTypes = %v, want the cached empty set", got)
	}
	if !c.IsSupported(ctx, "Mesh") {
		t.Error("IsSupported should rebuild an empty set")
	}
}

func TestRefreshAndInvalidate(t *testing.T) {
	ctx := context.Background()
	f := nativetest.New("PointCloud")
	c := New(f, Options{})

	c.SupportedTypes(ctx)
	f.SetTypes("PointCloud", "Mesh")

	if got := c.SupportedTypes(ctx); len(got) != 1 {
		t.Errorf("set changed without invalidation: %v", got)
	}

	c.Invalidate()
	if got := c.SupportedTypes(ctx); !slices.Equal(got, []string{"PointCloud", "Mesh"}) {
		t.Errorf("after Invalidate: %v", got)
	}

	f.SetTypes("Mesh")
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := c.SupportedTypes(ctx); !slices.Equal(got, []string{"Mesh"}) {
		t.Errorf("after Refresh: %v", got)
	}
}

func TestRefresh_CountFailureKeepsSet(t *testing.T) {
	ctx := context.Background()
	f := nativetest.New("PointCloud", "Mesh")
	c := New(f, Options{})
	c.SupportedTypes(ctx)

	f.CountErr = stderrors.New("engine busy")
	err := c.Refresh(ctx)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCapability, Kind: errors.KindNativeCall}) {
		t.Fatalf("expected capability error, got %v", err)
	}
	if got := c.SupportedTypes(ctx); len(got) != 2 {
		t.Errorf("previous set lost: %v", got)
	}
}

func TestRefresh_SkipsUnreadableEntries(t *testing.T) {
	ctx := context.Background()
	f := nativetest.New("PointCloud", "Broken", "Mesh")
	f.TypeErrs = map[int]error{1: stderrors.New("trap")}
	c := New(f, Options{})

	if got := c.SupportedTypes(ctx); !slices.Equal(got, []string{"PointCloud", "Mesh"}) {
		t.Errorf("got %v", got)
	}
}

func TestDefaultType(t *testing.T) {
	ctx := context.Background()

	t.Run("engine default", func(t *testing.T) {
		f := nativetest.New("PointCloud", "Mesh")
		f.Default = "Mesh"
		got, err := New(f, Options{}).DefaultType(ctx)
		if err != nil || got != "Mesh" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("falls back to first type on error", func(t *testing.T) {
		f := nativetest.New("InstancedCube", "PointCloud", "Mesh")
		f.DefaultErr = stderrors.New("trap")
		c := New(f, Options{DenyList: []string{"InstancedCube"}})
		got, err := c.DefaultType(ctx)
		if err != nil || got != "PointCloud" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("falls back when engine reports nothing", func(t *testing.T) {
		f := nativetest.New("Mesh")
		got, err := New(f, Options{}).DefaultType(ctx)
		if err != nil || got != "Mesh" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("empty set propagates", func(t *testing.T) {
		f := nativetest.New()
		f.DefaultErr = stderrors.New("trap")
		got, err := New(f, Options{}).DefaultType(ctx)
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCapability, Kind: errors.KindOutOfBounds}) {
			t.Fatalf("expected out of bounds, got %q, %v", got, err)
		}
	})
}

func TestTypeAt(t *testing.T) {
	ctx := context.Background()
	f := nativetest.New("InstancedCube", "PointCloud")
	c := New(f, Options{DenyList: []string{"InstancedCube"}})

	if got := c.TypeAt(ctx, 0); got != "InstancedCube" {
		t.Errorf("TypeAt(0) = %q, deny-list does not apply to direct lookups", got)
	}
	if got := c.TypeAt(ctx, 7); got != "" {
		t.Errorf("TypeAt(7) = %q, want empty", got)
	}
	if f.Calls(nativetest.CallTypeCount) != 0 {
		t.Error("TypeAt must not build the cache")
	}
}

func TestCacheReportsMetrics(t *testing.T) {
	ctx := context.Background()
	col := metrics.NewCollector("test")
	c := New(nativetest.New("PointCloud", "Mesh"), Options{Metrics: col})

	c.SupportedTypes(ctx)

	families, err := col.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "test_capability_types" {
			if v := f.GetMetric()[0].GetGauge().GetValue(); v != 2 {
				t.Errorf("types gauge = %v, want 2", v)
			}
			return
		}
	}
	t.Error("capability types gauge not found")
}

func TestCacheOverWasmEngine(t *testing.T) {
	ctx := context.Background()
	wasm := testbed.MustEngineModule(testbed.Options{
		Types:       []string{"InstancedCube", "PointCloud", "Mesh"},
		TrapDefault: true,
	})
	eng, err := engine.Load(ctx, wasm, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer eng.Close(ctx)

	c := New(eng, Options{DenyList: []string{"InstancedCube"}})
	if got := c.SupportedTypes(ctx); !slices.Equal(got, []string{"PointCloud", "Mesh"}) {
		t.Errorf("SupportedTypes = %v", got)
	}
	got, err := c.DefaultType(ctx)
	if err != nil || got != "PointCloud" {
		t.Errorf("DefaultType fallback = %q, %v", got, err)
	}
}

// reportedCount overrides the enumeration length the engine reports.
type reportedCount struct {
	*nativetest.Fake
	n int
}

func (r reportedCount) RenderMethodTypeCount(context.Context) (int, error) {
	return r.n, nil
}

func TestRefresh_OutOfRangeCounts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		count     int
		wantTypes int
		wantCalls int
	}{
		{"negative", -1, 0, 0},
		{"most negative i32", -2147483648, 0, 0},
		{"zero", 0, 0, 0},
		{"absurdly large", 1 << 30, 2, MaxRenderMethods},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := nativetest.New("PointCloud", "Mesh")
			f.DefaultErr = stderrors.New("trap")
			c := New(reportedCount{Fake: f, n: tc.count}, Options{})

			if got := c.SupportedTypes(ctx); len(got) != tc.wantTypes {
				t.Errorf("SupportedTypes = %v, want %d entries", got, tc.wantTypes)
			}
			if got := f.Calls(nativetest.CallType); got != tc.wantCalls {
				t.Errorf("entry lookups = %d, want %d", got, tc.wantCalls)
			}
			if c.IsSupported(ctx, "Nonexistent") {
				t.Error("IsSupported reported an unknown type")
			}
			if _, ok := c.Lookup(ctx, "Nonexistent"); ok {
				t.Error("Lookup found an unknown type")
			}
			if tc.wantTypes == 0 {
				if _, err := c.DefaultType(ctx); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCapability, Kind: errors.KindOutOfBounds}) {
					t.Errorf("DefaultType err = %v", err)
				}
			}
		})
	}
}
