// Package ramdump provides the host object the analyzers read a ramdump
// through: physical and virtual memory reads, kernel symbol and struct layout
// lookups, and report file creation.
package ramdump

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSymbol is returned for symbols missing from the layout.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrUnknownType is returned for struct types or fields missing from the
	// layout.
	ErrUnknownType = errors.New("unknown type")
)

// StructLayout describes one kernel struct.
type StructLayout struct {
	Size   uint64            `json:"size" yaml:"size"`
	Fields map[string]uint64 `json:"fields" yaml:"fields"`
}

// Layout is the statically known kernel metadata of a ramdump: global symbol
// addresses, struct layouts and enum/constant values.
type Layout struct {
	Symbols   map[string]uint64       `json:"symbols" yaml:"symbols"`
	Structs   map[string]StructLayout `json:"structs" yaml:"structs"`
	Constants map[string]int64        `json:"constants" yaml:"constants"`
}

// AddressOf returns the address of a global symbol.
func (l Layout) AddressOf(symbol string) (uint64, error) {
	addr, ok := l.Symbols[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return addr, nil
}

// FieldOffset returns the offset of field inside typ, e.g.
// FieldOffset("struct zone", "free_area").
func (l Layout) FieldOffset(typ, field string) (uint64, error) {
	s, ok := l.Structs[typ]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	off, ok := s.Fields[field]
	if !ok {
		return 0, fmt.Errorf("%w: %s has no field %s", ErrUnknownType, typ, field)
	}
	return off, nil
}

// SizeOf returns the size of typ.
func (l Layout) SizeOf(typ string) (uint64, error) {
	s, ok := l.Structs[typ]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return s.Size, nil
}

// Constant returns the value of a kernel enum or macro, e.g. MIGRATE_TYPES.
func (l Layout) Constant(name string) (int64, error) {
	v, ok := l.Constants[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, name)
	}
	return v, nil
}
