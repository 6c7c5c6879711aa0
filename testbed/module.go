package testbed

import (
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero/api"
)

// ModuleBuilder assembles a core WebAssembly module from hand-written
// function bodies. Imports must be declared before any local function so the
// returned function indexes stay valid.
type ModuleBuilder struct {
	memoryExport string
	types        []funcType
	imports      []importFunc
	funcs        []localFunc
	globals      []global
	data         []dataSegment
	memoryPages  uint32
}

type funcType struct {
	params  []api.ValueType
	results []api.ValueType
}

type importFunc struct {
	module  string
	name    string
	typeIdx uint32
}

type localFunc struct {
	export  string
	locals  []api.ValueType
	body    Code
	typeIdx uint32
}

type global struct {
	export    string
	init      int64
	valueType api.ValueType
	mutable   bool
}

type dataSegment struct {
	bytes  []byte
	offset uint32
}

// NewModuleBuilder creates an empty module builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{}
}

func (b *ModuleBuilder) typeIndex(params, results []api.ValueType) uint32 {
	for i, t := range b.types {
		if slices.Equal(t.params, params) && slices.Equal(t.results, results) {
			return uint32(i)
		}
	}
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// ImportFunc declares a host function import and returns its function index.
func (b *ModuleBuilder) ImportFunc(module, name string, params, results []api.ValueType) uint32 {
	if len(b.funcs) > 0 {
		panic(fmt.Sprintf("testbed: import %s.%s declared after local functions", module, name))
	}
	b.imports = append(b.imports, importFunc{
		module:  module,
		name:    name,
		typeIdx: b.typeIndex(params, results),
	})
	return uint32(len(b.imports) - 1)
}

// AddFunc defines a function and returns its index. A non-empty export name
// exports it. The body must not include the final end opcode.
func (b *ModuleBuilder) AddFunc(export string, params, results, locals []api.ValueType, body Code) uint32 {
	b.funcs = append(b.funcs, localFunc{
		export:  export,
		locals:  locals,
		body:    body,
		typeIdx: b.typeIndex(params, results),
	})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// AddGlobal defines a global initialised to init and returns its index.
func (b *ModuleBuilder) AddGlobal(export string, t api.ValueType, mutable bool, init int64) uint32 {
	b.globals = append(b.globals, global{
		export:    export,
		init:      init,
		valueType: t,
		mutable:   mutable,
	})
	return uint32(len(b.globals) - 1)
}

// SetMemory defines linear memory with a minimum size in 64KiB pages.
func (b *ModuleBuilder) SetMemory(pages uint32, export string) {
	b.memoryPages = pages
	b.memoryExport = export
}

// AddData places bytes at a fixed memory offset.
func (b *ModuleBuilder) AddData(offset uint32, data []byte) {
	b.data = append(b.data, dataSegment{offset: offset, bytes: data})
}

// Build generates the WASM module bytes.
func (b *ModuleBuilder) Build() []byte {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(b.types) > 0 {
		wasm = append(wasm, section(0x01, b.buildTypeSection())...)
	}
	if len(b.imports) > 0 {
		wasm = append(wasm, section(0x02, b.buildImportSection())...)
	}
	if len(b.funcs) > 0 {
		wasm = append(wasm, section(0x03, b.buildFuncSection())...)
	}
	if b.memoryPages > 0 {
		mem := []byte{0x01, 0x00}
		mem = append(mem, EncodeULEB128(b.memoryPages)...)
		wasm = append(wasm, section(0x05, mem)...)
	}
	if len(b.globals) > 0 {
		wasm = append(wasm, section(0x06, b.buildGlobalSection())...)
	}
	wasm = append(wasm, section(0x07, b.buildExportSection())...)
	if len(b.funcs) > 0 {
		wasm = append(wasm, section(0x0a, b.buildCodeSection())...)
	}
	if len(b.data) > 0 {
		wasm = append(wasm, section(0x0b, b.buildDataSection())...)
	}
	return wasm
}

func (b *ModuleBuilder) buildTypeSection() []byte {
	s := EncodeULEB128(uint32(len(b.types)))
	for _, t := range b.types {
		s = append(s, 0x60)
		s = append(s, EncodeULEB128(uint32(len(t.params)))...)
		for _, p := range t.params {
			s = append(s, valType(p))
		}
		s = append(s, EncodeULEB128(uint32(len(t.results)))...)
		for _, r := range t.results {
			s = append(s, valType(r))
		}
	}
	return s
}

func (b *ModuleBuilder) buildImportSection() []byte {
	s := EncodeULEB128(uint32(len(b.imports)))
	for _, imp := range b.imports {
		s = append(s, name(imp.module)...)
		s = append(s, name(imp.name)...)
		s = append(s, 0x00)
		s = append(s, EncodeULEB128(imp.typeIdx)...)
	}
	return s
}

func (b *ModuleBuilder) buildFuncSection() []byte {
	s := EncodeULEB128(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		s = append(s, EncodeULEB128(f.typeIdx)...)
	}
	return s
}

func (b *ModuleBuilder) buildGlobalSection() []byte {
	s := EncodeULEB128(uint32(len(b.globals)))
	for _, g := range b.globals {
		s = append(s, valType(g.valueType))
		if g.mutable {
			s = append(s, 0x01)
		} else {
			s = append(s, 0x00)
		}
		switch g.valueType {
		case api.ValueTypeI64:
			s = append(s, 0x42)
			s = append(s, EncodeSLEB128(g.init)...)
		default:
			s = append(s, 0x41)
			s = append(s, EncodeSLEB128(int32(g.init))...)
		}
		s = append(s, 0x0b)
	}
	return s
}

func (b *ModuleBuilder) buildExportSection() []byte {
	var entries []byte
	n := uint32(0)

	if b.memoryPages > 0 && b.memoryExport != "" {
		entries = append(entries, name(b.memoryExport)...)
		entries = append(entries, 0x02, 0x00)
		n++
	}
	for i, g := range b.globals {
		if g.export == "" {
			continue
		}
		entries = append(entries, name(g.export)...)
		entries = append(entries, 0x03)
		entries = append(entries, EncodeULEB128(uint32(i))...)
		n++
	}
	for i, f := range b.funcs {
		if f.export == "" {
			continue
		}
		entries = append(entries, name(f.export)...)
		entries = append(entries, 0x00)
		entries = append(entries, EncodeULEB128(uint32(len(b.imports)+i))...)
		n++
	}

	return append(EncodeULEB128(n), entries...)
}

func (b *ModuleBuilder) buildCodeSection() []byte {
	s := EncodeULEB128(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		body := EncodeULEB128(uint32(len(f.locals)))
		for _, l := range f.locals {
			body = append(body, 0x01, valType(l))
		}
		body = append(body, f.body...)
		body = append(body, 0x0b)

		s = append(s, EncodeULEB128(uint32(len(body)))...)
		s = append(s, body...)
	}
	return s
}

func (b *ModuleBuilder) buildDataSection() []byte {
	s := EncodeULEB128(uint32(len(b.data)))
	for _, d := range b.data {
		s = append(s, 0x00, 0x41)
		s = append(s, EncodeSLEB128(int32(d.offset))...)
		s = append(s, 0x0b)
		s = append(s, EncodeULEB128(uint32(len(d.bytes)))...)
		s = append(s, d.bytes...)
	}
	return s
}
