package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	hvrinterface "github.com/wippyai/hvr-interface"
)

var (
	_ hvrinterface.Memory      = (*Memory)(nil)
	_ hvrinterface.MemorySizer = (*Memory)(nil)
	_ hvrinterface.Allocator   = (*Allocator)(nil)
)

// Memory adapts wazero api.Memory to hvrinterface.Memory.
type Memory struct {
	mem api.Memory
}

// Read reads bytes from memory. The slice aliases engine memory.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

// Write writes bytes to memory.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// CString reads a NUL-terminated string starting at offset. Reading stops at
// the end of memory when no terminator is found.
func (m *Memory) CString(offset uint32) (string, error) {
	size := m.mem.Size()
	if offset >= size {
		return "", fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	data, _ := m.mem.Read(offset, size-offset)
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

// Allocator adapts the engine's hvr_alloc export to hvrinterface.Allocator.
// hvr_alloc returns 8-byte aligned blocks; larger alignments are satisfied
// by over-allocating.
type Allocator struct {
	ctx context.Context
	fn  api.Function
}

// Alloc allocates size bytes aligned to align.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	request := size
	if align > 8 {
		request += align - 1
	}
	results, err := a.fn.Call(a.ctx, uint64(request))
	if err != nil {
		return 0, fmt.Errorf("allocation failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocation returned no result")
	}
	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, fmt.Errorf("engine out of memory")
	}
	return (ptr + align - 1) &^ (align - 1), nil
}
