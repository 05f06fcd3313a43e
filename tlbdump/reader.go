package tlbdump

import (
	"encoding/binary"
	"fmt"
)

// WordSize is the size in bytes of one dump word.
const WordSize = 4

// PhysicalReader reads raw bytes at a physical address of the dump.
//
// Implementations must return an error rather than a short read when any part
// of the range is not backed by the dump.
type PhysicalReader interface {
	ReadPhysical(addr uint64, n int) ([]byte, error)
}

// ReadPackedWords reads count little-endian 32-bit words starting at addr.
func ReadPackedWords(r PhysicalReader, addr uint64, count int) ([]uint32, error) {
	data, err := r.ReadPhysical(addr, count*WordSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %d words at 0x%x: %w", count, addr, err)
	}
	if len(data) != count*WordSize {
		return nil, fmt.Errorf("short read at 0x%x: got %d bytes, expected %d",
			addr, len(data), count*WordSize)
	}

	words := make([]uint32, count)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*WordSize:])
	}
	return words, nil
}

// LineReader reads fixed-size dump lines of LineSize words.
type LineReader struct {
	reader    PhysicalReader
	lineSize  int
	lineBytes uint64
}

// NewLineReader creates a reader for lines of lineSize words.
func NewLineReader(r PhysicalReader, lineSize int) *LineReader {
	return &LineReader{reader: r, lineSize: lineSize}
}

// LineBytes returns the number of bytes covered by one line.
func (lr *LineReader) LineBytes() uint64 {
	if lr.lineBytes == 0 {
		lr.lineBytes = uint64(lr.lineSize * WordSize)
	}
	return lr.lineBytes
}

// ReadLine reads the line starting at addr.
func (lr *LineReader) ReadLine(addr uint64) ([]uint32, error) {
	return ReadPackedWords(lr.reader, addr, lr.lineSize)
}
