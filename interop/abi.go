package interop

import (
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hvr-interface/interop/internal/layout"
)

// ABI identifies the target a record is laid out for. Only the pointer width
// differs between targets; all integers are little-endian.
type ABI struct {
	Name        string
	PointerSize uint32
}

var (
	// Wasm32 is the layout used by engines compiled to WebAssembly.
	Wasm32 = ABI{Name: "wasm32", PointerSize: 4}
	// Native64 is the layout used by 64-bit shared-library engines.
	Native64 = ABI{Name: "native64", PointerSize: 8}
)

func (a ABI) String() string {
	return a.Name
}

func (a ABI) pointerType() wit.Type {
	if a.PointerSize == 8 {
		return wit.U64{}
	}
	return wit.U32{}
}

// table holds the record descriptions for one ABI together with their
// computed layouts. Tables are immutable once built.
type table struct {
	defs  map[string]*wit.TypeDef
	infos map[*wit.TypeDef]layout.Info
	abi   ABI
}

var tables sync.Map // ABI -> *table

func tableFor(abi ABI) *table {
	if t, ok := tables.Load(abi); ok {
		return t.(*table)
	}

	defs := describe(abi)
	calc := layout.NewCalculator()
	infos := make(map[*wit.TypeDef]layout.Info, len(defs))
	for _, def := range defs {
		infos[def] = calc.Calculate(def)
	}

	t, _ := tables.LoadOrStore(abi, &table{abi: abi, defs: defs, infos: infos})
	return t.(*table)
}

func (t *table) def(name string) *wit.TypeDef {
	return t.defs[name]
}

func (t *table) info(name string) layout.Info {
	return t.infos[t.defs[name]]
}
