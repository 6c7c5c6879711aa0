package nativetest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wippyai/hvr-interface/interop"
	"github.com/wippyai/hvr-interface/native"
)

func TestFakeLifecycle(t *testing.T) {
	ctx := context.Background()
	f := New("PointCloud")

	ok, _ := f.IsInitialised(ctx)
	if ok {
		t.Fatal("fresh fake should not be initialised")
	}

	info := interop.NewInitialisationInfo(f.Target())
	info.AppID = "viewer"
	if err := f.Initialise(ctx, &info); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	ok, _ = f.IsInitialised(ctx)
	if !ok {
		t.Error("fake should be initialised")
	}
	got, _ := f.LastInfo()
	if got.AppID != "viewer" {
		t.Errorf("LastInfo().AppID = %q", got.AppID)
	}
	if f.Calls(CallIsInitialised) != 2 || f.Calls(CallInitialise) != 1 {
		t.Errorf("unexpected call counts: %d, %d", f.Calls(CallIsInitialised), f.Calls(CallInitialise))
	}
}

func TestFakeInitialiseFailure(t *testing.T) {
	ctx := context.Background()
	f := New()
	f.InitialiseErr = errors.New("bad key")

	info := interop.NewInitialisationInfo(f.Target())
	if err := f.Initialise(ctx, &info); err == nil {
		t.Fatal("expected error")
	}
	if ok, _ := f.IsInitialised(ctx); ok {
		t.Error("failed initialise must not take effect")
	}
}

func TestFakeLogCallback(t *testing.T) {
	ctx := context.Background()
	f := New()
	if f.Emit(native.LogInfo, "dropped") {
		t.Error("Emit without callback should report false")
	}

	var got []string
	_ = f.SetLogCallback(ctx, func(level native.LogLevel, msg string) {
		got = append(got, level.String()+":"+msg)
	})
	f.Emit(native.LogWarning, "stream stalled")
	if len(got) != 1 || got[0] != "warning:stream stalled" {
		t.Errorf("got %v", got)
	}
}

func TestFakeBoundedStrings(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("x", native.BufferCapacity+10)
	f := New("Mesh", long)

	s, ok, err := native.Query(func(buf []byte) (bool, error) {
		return f.RenderMethodType(ctx, 1, buf)
	})
	if err != nil || !ok {
		t.Fatalf("query: %v %v", ok, err)
	}
	if len(s) != native.BufferCapacity {
		t.Errorf("truncated length = %d, want %d", len(s), native.BufferCapacity)
	}

	_, ok, _ = native.Query(func(buf []byte) (bool, error) {
		return f.RenderMethodType(ctx, 5, buf)
	})
	if ok {
		t.Error("out of range index should report no value")
	}
}
