package tlbdump

import (
	"fmt"
	"io"
)

// FileHost is a PhysicalReader that can also create report files.
type FileHost interface {
	PhysicalReader
	OpenFile(name string) (io.WriteCloser, error)
}

// DispatchAndParse resolves key in the default registry and decodes the dump
// in [start, end] into out.
func DispatchAndParse(r PhysicalReader, key Key, start, end uint64, out io.Writer, opts ...Option) error {
	return defaultRegistry.Resolve(key).Parse(r, start, end, out, opts...)
}

// DispatchAndParseFile is DispatchAndParse writing to a report file created
// by the host. The file is closed on every path.
func DispatchAndParseFile(h FileHost, key Key, start, end uint64, name string, opts ...Option) (err error) {
	dec := defaultRegistry.Resolve(key)
	if !dec.Supported() {
		return fmt.Errorf("%w: %v", ErrUnsupportedVariant, key)
	}

	f, err := h.OpenFile(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", name, cerr)
		}
	}()

	return dec.Parse(h, start, end, f, opts...)
}
