// Package tlbdump decodes TLB dump regions captured in ARM/ARM64 ramdumps.
package tlbdump

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedVariant is returned when no decoder is registered for a
	// (hardware id, client id, version) key.
	ErrUnsupportedVariant = errors.New("unsupported tlb dump variant")

	// ErrOutOfRange is returned when the walk cursor passes the end of the
	// dump region.
	ErrOutOfRange = errors.New("past the end of array")

	// ErrShapeMismatch is returned when a row does not have one value per
	// registered column.
	ErrShapeMismatch = errors.New("bad table data size")
)

// OutOfRangeError reports the cursor and the expected end of the dump region
// at the point the walk was aborted.
type OutOfRangeError struct {
	Addr uint64
	End  uint64
}

// Error reports the cursor and the region end.
func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%v: cursor 0x%x, end 0x%x", ErrOutOfRange, e.Addr, e.End)
}

// Is makes errors.Is(err, ErrOutOfRange) hold for an *OutOfRangeError.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
