package interop

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.bytecodealliance.org/wit"

	hvrinterface "github.com/wippyai/hvr-interface"
	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/interop/internal/layout"
)

// Record is a fixed-layout value that crosses the native boundary.
// Implementations are the pointer types of this package.
type Record interface {
	layoutName() string
	encode(e *encoder)
	decode(d *decoder)
}

// StringPlacer copies s into engine memory as a NUL-terminated string and
// returns its address.
type StringPlacer func(s string) (uint64, error)

// Describe returns the WIT record description of r for the given ABI.
func Describe(abi ABI, r Record) *wit.TypeDef {
	return tableFor(abi).def(r.layoutName())
}

// SizeOf returns the size in bytes of r laid out for abi. This is the value
// native structures expect in their struct-size tag.
func SizeOf(abi ABI, r Record) uint32 {
	return tableFor(abi).info(r.layoutName()).Size
}

// AlignOf returns the alignment of r laid out for abi.
func AlignOf(abi ABI, r Record) uint32 {
	return tableFor(abi).info(r.layoutName()).Align
}

// FieldOffset returns the byte offset of a top-level field of r.
func FieldOffset(abi ABI, r Record, name string) (uint32, bool) {
	off, ok := tableFor(abi).info(r.layoutName()).FieldOffs[name]
	return off, ok
}

// Marshal encodes r for abi. Records with string fields need MarshalWith.
func Marshal(abi ABI, r Record) ([]byte, error) {
	return MarshalWith(abi, r, nil)
}

// MarshalWith encodes r for abi, placing string fields through place.
func MarshalWith(abi ABI, r Record, place StringPlacer) ([]byte, error) {
	t := tableFor(abi)
	info := t.info(r.layoutName())
	e := &encoder{
		t:     t,
		buf:   make([]byte, info.Size),
		info:  info,
		path:  []string{r.layoutName()},
		place: place,
	}
	r.encode(e)
	if e.err != nil {
		return nil, e.err
	}
	return e.buf, nil
}

// Unmarshal decodes data laid out for abi into r.
func Unmarshal(abi ABI, data []byte, r Record) error {
	t := tableFor(abi)
	info := t.info(r.layoutName())
	if uint32(len(data)) < info.Size {
		return errors.ShortBuffer(errors.PhaseUnmarshal, r.layoutName(), int(info.Size), len(data))
	}
	d := &decoder{
		t:    t,
		buf:  data,
		info: info,
		path: []string{r.layoutName()},
	}
	r.decode(d)
	return d.err
}

// Write encodes r and stores it at offset in mem.
func Write(mem hvrinterface.Memory, offset uint32, abi ABI, r Record, place StringPlacer) error {
	data, err := MarshalWith(abi, r, place)
	if err != nil {
		return err
	}
	return mem.Write(offset, data)
}

// Read loads r from offset in mem.
func Read(mem hvrinterface.Memory, offset uint32, abi ABI, r Record) error {
	data, err := mem.Read(offset, SizeOf(abi, r))
	if err != nil {
		return errors.Wrap(errors.PhaseUnmarshal, errors.KindOutOfBounds, err, fmt.Sprintf("read %s", r.layoutName()))
	}
	return Unmarshal(abi, data, r)
}

type encoder struct {
	err   error
	t     *table
	place StringPlacer
	buf   []byte
	path  []string
	info  layout.Info
	base  uint32
}

func (e *encoder) offset(name string) (uint32, bool) {
	if e.err != nil {
		return 0, false
	}
	off, ok := e.info.FieldOffs[name]
	if !ok {
		e.err = errors.FieldMissing(errors.PhaseMarshal, e.path, name)
		return 0, false
	}
	return e.base + off, true
}

func (e *encoder) u32(name string, v uint32) {
	if off, ok := e.offset(name); ok {
		binary.LittleEndian.PutUint32(e.buf[off:], v)
	}
}

func (e *encoder) s32(name string, v int32) {
	e.u32(name, uint32(v))
}

func (e *encoder) f32(name string, v float32) {
	e.u32(name, math.Float32bits(v))
}

func (e *encoder) u64(name string, v uint64) {
	if off, ok := e.offset(name); ok {
		binary.LittleEndian.PutUint64(e.buf[off:], v)
	}
}

func (e *encoder) s64(name string, v int64) {
	e.u64(name, uint64(v))
}

func (e *encoder) ptr(name string, v uint64) {
	if e.t.abi.PointerSize == 8 {
		e.u64(name, v)
		return
	}
	if v > math.MaxUint32 {
		if e.err == nil {
			e.err = errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
				Path(append(e.path, name)...).
				Value(v).
				Detail("address does not fit a %d-byte pointer", e.t.abi.PointerSize).
				Build()
		}
		return
	}
	e.u32(name, uint32(v))
}

// str places s and stores its address. Empty strings encode as null.
func (e *encoder) str(name, s string) {
	if e.err != nil {
		return
	}
	if s == "" {
		e.ptr(name, 0)
		return
	}
	if e.place == nil {
		e.err = errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
			Path(append(e.path, name)...).
			Detail("string field needs a placer").
			Build()
		return
	}
	addr, err := e.place(s)
	if err != nil {
		e.err = errors.New(errors.PhaseMarshal, errors.KindAllocation).
			Path(append(e.path, name)...).
			Cause(err).
			Detail("place string").
			Build()
		return
	}
	e.ptr(name, addr)
}

func (e *encoder) record(name string, r Record) {
	off, ok := e.offset(name)
	if !ok {
		return
	}
	sub := &encoder{
		t:     e.t,
		buf:   e.buf,
		info:  e.t.info(r.layoutName()),
		path:  append(append([]string(nil), e.path...), name),
		place: e.place,
		base:  off,
	}
	r.encode(sub)
	e.err = sub.err
}

func (e *encoder) floats(name, tuple string, vs []float32) {
	off, ok := e.offset(name)
	if !ok {
		return
	}
	for i, elem := range e.t.info(tuple).ElemOffs {
		binary.LittleEndian.PutUint32(e.buf[off+elem:], math.Float32bits(vs[i]))
	}
}

type decoder struct {
	err  error
	t    *table
	buf  []byte
	path []string
	info layout.Info
	base uint32
}

func (d *decoder) offset(name string) (uint32, bool) {
	if d.err != nil {
		return 0, false
	}
	off, ok := d.info.FieldOffs[name]
	if !ok {
		d.err = errors.FieldMissing(errors.PhaseUnmarshal, d.path, name)
		return 0, false
	}
	return d.base + off, true
}

func (d *decoder) u32(name string) uint32 {
	if off, ok := d.offset(name); ok {
		return binary.LittleEndian.Uint32(d.buf[off:])
	}
	return 0
}

func (d *decoder) s32(name string) int32 {
	return int32(d.u32(name))
}

func (d *decoder) f32(name string) float32 {
	return math.Float32frombits(d.u32(name))
}

func (d *decoder) u64(name string) uint64 {
	if off, ok := d.offset(name); ok {
		return binary.LittleEndian.Uint64(d.buf[off:])
	}
	return 0
}

func (d *decoder) s64(name string) int64 {
	return int64(d.u64(name))
}

func (d *decoder) ptr(name string) uint64 {
	if d.t.abi.PointerSize == 8 {
		return d.u64(name)
	}
	return uint64(d.u32(name))
}

func (d *decoder) record(name string, r Record) {
	off, ok := d.offset(name)
	if !ok {
		return
	}
	sub := &decoder{
		t:    d.t,
		buf:  d.buf,
		info: d.t.info(r.layoutName()),
		path: append(append([]string(nil), d.path...), name),
		base: off,
	}
	r.decode(sub)
	d.err = sub.err
}

func (d *decoder) floats(name, tuple string, vs []float32) {
	off, ok := d.offset(name)
	if !ok {
		return
	}
	for i, elem := range d.t.info(tuple).ElemOffs {
		vs[i] = math.Float32frombits(binary.LittleEndian.Uint32(d.buf[off+elem:]))
	}
}
