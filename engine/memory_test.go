package engine

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

// onePageWASM exports a single page of memory as "memory".
var onePageWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // "memory"
	0x02, 0x00, // kind: memory, index 0
}

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, onePageWASM)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return &Memory{mem: mod.ExportedMemory(ExportMemory)}
}

func TestMemory_ReadWrite(t *testing.T) {
	mem := newTestMemory(t)

	if err := mem.Write(16, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := mem.Read(16, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, b := range []byte{1, 2, 3, 4} {
		if got[i] != b {
			t.Errorf("byte %d = %d, want %d", i, got[i], b)
		}
	}

	if err := mem.WriteU32(64, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	if v, _ := mem.ReadU32(64); v != 0xdeadbeef {
		t.Errorf("ReadU32 = %#x", v)
	}
	if err := mem.WriteU64(128, 1<<40|7); err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	if v, _ := mem.ReadU64(128); v != 1<<40|7 {
		t.Errorf("ReadU64 = %#x", v)
	}
	if mem.Size() != 65536 {
		t.Errorf("Size = %d", mem.Size())
	}
}

func TestMemory_OutOfBounds(t *testing.T) {
	mem := newTestMemory(t)
	end := mem.Size()

	if _, err := mem.Read(end-2, 4); err == nil {
		t.Error("Read past the end succeeded")
	}
	if err := mem.Write(end, []byte{1}); err == nil {
		t.Error("Write past the end succeeded")
	}
	if _, err := mem.ReadU32(end - 3); err == nil {
		t.Error("ReadU32 past the end succeeded")
	}
	if err := mem.WriteU64(end-4, 1); err == nil {
		t.Error("WriteU64 past the end succeeded")
	}
	if _, err := mem.CString(end); err == nil {
		t.Error("CString past the end succeeded")
	}
}

func TestMemory_CString(t *testing.T) {
	mem := newTestMemory(t)
	_ = mem.Write(256, []byte("Mesh\x00trailing"))
	_ = mem.Write(mem.Size()-3, []byte("abc"))

	if s, _ := mem.CString(256); s != "Mesh" {
		t.Errorf("CString = %q", s)
	}
	if s, _ := mem.CString(mem.Size() - 3); s != "abc" {
		t.Errorf("unterminated CString = %q", s)
	}
}
