// Package parsers provides the kernel state reports that run on top of a
// loaded ramdump: free page lists, pstore logs and scandump registers.
package parsers

import (
	"io"

	"github.com/go-logr/logr"
)

// Host is the view of a ramdump the reports read through.
// *ramdump.Ramdump implements it.
type Host interface {
	ReadPhysical(addr uint64, n int) ([]byte, error)
	ReadWord(va uint64) (uint64, error)
	ReadCString(va uint64, maxLen int) (string, error)
	PointerSize() int

	AddressOf(symbol string) (uint64, error)
	FieldOffset(typ, field string) (uint64, error)
	SizeOf(typ string) (uint64, error)
	Constant(name string) (int64, error)

	NumCPUs() int
	OutDir() string
	OpenFile(name string) (io.WriteCloser, error)
}

type options struct {
	log logr.Logger
}

// Option is a functional option for configuring a report run.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func buildOptions(opts []Option) options {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// lookup resolves a batch of layout queries, stopping at the first error.
type lookup struct {
	h   Host
	err error
}

func (l *lookup) addr(symbol string) uint64 {
	if l.err != nil {
		return 0
	}
	var v uint64
	v, l.err = l.h.AddressOf(symbol)
	return v
}

func (l *lookup) offset(typ, field string) uint64 {
	if l.err != nil {
		return 0
	}
	var v uint64
	v, l.err = l.h.FieldOffset(typ, field)
	return v
}

func (l *lookup) size(typ string) uint64 {
	if l.err != nil {
		return 0
	}
	var v uint64
	v, l.err = l.h.SizeOf(typ)
	return v
}

func (l *lookup) constant(name string) int64 {
	if l.err != nil {
		return 0
	}
	var v int64
	v, l.err = l.h.Constant(name)
	return v
}
