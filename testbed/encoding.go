package testbed

import (
	"github.com/tetratelabs/wazero/api"
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

func valType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

func name(s string) []byte {
	return append(EncodeULEB128(uint32(len(s))), s...)
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, EncodeULEB128(uint32(len(body)))...)
	return append(out, body...)
}

// Code is a function body under construction. Methods append one
// instruction each and return the receiver so bodies read top to bottom.
type Code []byte

func (c *Code) op(b ...byte) *Code {
	*c = append(*c, b...)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.op(0x41)
	return c.op(EncodeSLEB128(v)...)
}

func (c *Code) LocalGet(i uint32) *Code  { c.op(0x20); return c.op(EncodeULEB128(i)...) }
func (c *Code) LocalSet(i uint32) *Code  { c.op(0x21); return c.op(EncodeULEB128(i)...) }
func (c *Code) GlobalGet(i uint32) *Code { c.op(0x23); return c.op(EncodeULEB128(i)...) }
func (c *Code) GlobalSet(i uint32) *Code { c.op(0x24); return c.op(EncodeULEB128(i)...) }
func (c *Code) Call(i uint32) *Code      { c.op(0x10); return c.op(EncodeULEB128(i)...) }
func (c *Code) Br(depth uint32) *Code    { c.op(0x0c); return c.op(EncodeULEB128(depth)...) }

// Load emits i32.load with natural alignment at a static offset.
func (c *Code) Load(offset uint32) *Code {
	c.op(0x28, 0x02)
	return c.op(EncodeULEB128(offset)...)
}

// Load8U emits i32.load8_u.
func (c *Code) Load8U() *Code { return c.op(0x2d, 0x00, 0x00) }

// MemoryCopy emits memory.copy within memory 0 (dst, src, n on the stack).
func (c *Code) MemoryCopy() *Code { return c.op(0xfc, 0x0a, 0x00, 0x00) }

func (c *Code) Add() *Code         { return c.op(0x6a) }
func (c *Code) And() *Code         { return c.op(0x71) }
func (c *Code) Eq() *Code          { return c.op(0x46) }
func (c *Code) Ne() *Code          { return c.op(0x47) }
func (c *Code) Eqz() *Code         { return c.op(0x45) }
func (c *Code) LtU() *Code         { return c.op(0x49) }
func (c *Code) LeS() *Code         { return c.op(0x4c) }
func (c *Code) Select() *Code      { return c.op(0x1b) }
func (c *Code) If() *Code          { return c.op(0x04, 0x40) }
func (c *Code) Loop() *Code        { return c.op(0x03, 0x40) }
func (c *Code) End() *Code         { return c.op(0x0b) }
func (c *Code) Return() *Code      { return c.op(0x0f) }
func (c *Code) Unreachable() *Code { return c.op(0x00) }

// Incr adds one to a mutable i32 global.
func (c *Code) Incr(global uint32) *Code {
	return c.GlobalGet(global).I32Const(1).Add().GlobalSet(global)
}

// CopyOut copies n bytes from a static address to the buffer held in
// bufLocal, truncated to the capacity held in capLocal.
func (c *Code) CopyOut(bufLocal, capLocal uint32, src, n int32) *Code {
	c.LocalGet(bufLocal)
	c.I32Const(src)
	c.I32Const(n).LocalGet(capLocal)
	c.I32Const(n).LocalGet(capLocal).LtU()
	c.Select()
	return c.MemoryCopy()
}
