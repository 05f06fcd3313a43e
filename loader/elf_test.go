package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ramparser/loader"
)

// testSegment describes one PT_LOAD (or other) program header of a
// synthetic core file.
type testSegment struct {
	typ   uint32
	flags uint32
	vaddr uint64
	paddr uint64
	data  []byte
}

var _ = Describe("Ramdump Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "ramdump-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("with an ARM64 core", func() {
			var corePath string

			BeforeEach(func() {
				corePath = filepath.Join(tempDir, "ramdump.elf")
				writeCore64(corePath, 183, []testSegment{
					{typ: 4, flags: 0x4},
					{typ: 1, flags: 0x6, vaddr: 0xffffffc000000000, paddr: 0x80000000, data: []byte{1, 2, 3, 4}},
					{typ: 1, flags: 0x4, vaddr: 0, paddr: 0x86000000, data: []byte{5, 6, 7, 8, 9, 10, 11, 12}},
				})
			})

			It("should report the architecture", func() {
				dump, err := loader.Load(corePath)
				Expect(err).NotTo(HaveOccurred())
				Expect(dump.Arch).To(Equal(loader.ArchARM64))
				Expect(dump.Arch.String()).To(Equal("arm64"))
			})

			It("should key segments by physical address", func() {
				dump, err := loader.Load(corePath)
				Expect(err).NotTo(HaveOccurred())
				Expect(dump.Segments).To(HaveLen(2))

				Expect(dump.Segments[0].PhysAddr).To(Equal(uint64(0x80000000)))
				Expect(dump.Segments[0].Data).To(Equal([]byte{1, 2, 3, 4}))

				Expect(dump.Segments[1].PhysAddr).To(Equal(uint64(0x86000000)))
				Expect(dump.Segments[1].End()).To(Equal(uint64(0x86000008)))
			})
		})

		Context("with a 32-bit ARM core", func() {
			It("should load the segments", func() {
				corePath := filepath.Join(tempDir, "ramdump32.elf")
				writeCore32(corePath, 0x80000000, []byte{0xaa, 0xbb, 0xcc, 0xdd})

				dump, err := loader.Load(corePath)
				Expect(err).NotTo(HaveOccurred())
				Expect(dump.Arch).To(Equal(loader.ArchARM))
				Expect(dump.Segments).To(HaveLen(1))
				Expect(dump.Segments[0].PhysAddr).To(Equal(uint64(0x80000000)))
				Expect(dump.Segments[0].Data).To(Equal([]byte{0xaa, 0xbb, 0xcc, 0xdd}))
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/ramdump.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return error for non-ELF file", func() {
				notElfPath := filepath.Join(tempDir, "DDRCS0.BIN")
				Expect(os.WriteFile(notElfPath, []byte("not an elf file"), 0644)).To(Succeed())

				_, err := loader.Load(notElfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("ELF"))
			})

			It("should reject non-ARM machines", func() {
				corePath := filepath.Join(tempDir, "x86.elf")
				writeCore64(corePath, 62, []testSegment{
					{typ: 1, flags: 0x4, paddr: 0x1000, data: []byte{0}},
				})

				_, err := loader.Load(corePath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not an ARM"))
			})

			It("should reject cores without loadable segments", func() {
				corePath := filepath.Join(tempDir, "notes.elf")
				writeCore64(corePath, 183, []testSegment{{typ: 4, flags: 0x4}})

				_, err := loader.Load(corePath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("no loadable segments"))
			})
		})
	})

	Describe("LoadRaw", func() {
		It("should place the binary at the base address", func() {
			rawPath := filepath.Join(tempDir, "DDRCS0.BIN")
			Expect(os.WriteFile(rawPath, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 0644)).To(Succeed())

			dump, err := loader.LoadRaw(rawPath, 0x80000000)
			Expect(err).NotTo(HaveOccurred())
			Expect(dump.Arch).To(Equal(loader.ArchUnknown))
			Expect(dump.Segments).To(HaveLen(1))
			Expect(dump.Segments[0].PhysAddr).To(Equal(uint64(0x80000000)))
			Expect(dump.Segments[0].End()).To(Equal(uint64(0x80000008)))
		})

		It("should reject empty binaries", func() {
			rawPath := filepath.Join(tempDir, "empty.bin")
			Expect(os.WriteFile(rawPath, nil, 0644)).To(Succeed())

			_, err := loader.LoadRaw(rawPath, 0)
			Expect(err).To(HaveOccurred())
		})
	})
})

// writeCore64 writes an ELF64 little-endian core file with the given
// program headers, segment data following the headers.
func writeCore64(path string, machine uint16, segs []testSegment) {
	const ehsize, phentsize = 64, 56

	hdr := make([]byte, ehsize)
	copy(hdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	hdr[4] = 2 // ELFCLASS64
	hdr[5] = 1 // little endian
	hdr[6] = 1 // version
	binary.LittleEndian.PutUint16(hdr[16:18], 4) // ET_CORE
	binary.LittleEndian.PutUint16(hdr[18:20], machine)
	binary.LittleEndian.PutUint32(hdr[20:24], 1)
	binary.LittleEndian.PutUint64(hdr[32:40], ehsize) // phoff
	binary.LittleEndian.PutUint16(hdr[52:54], ehsize)
	binary.LittleEndian.PutUint16(hdr[54:56], phentsize)
	binary.LittleEndian.PutUint16(hdr[56:58], uint16(len(segs)))
	binary.LittleEndian.PutUint16(hdr[58:60], 64)

	offset := uint64(ehsize + phentsize*len(segs))
	phdrs := make([]byte, 0, phentsize*len(segs))
	for _, s := range segs {
		ph := make([]byte, phentsize)
		binary.LittleEndian.PutUint32(ph[0:4], s.typ)
		binary.LittleEndian.PutUint32(ph[4:8], s.flags)
		binary.LittleEndian.PutUint64(ph[8:16], offset)
		binary.LittleEndian.PutUint64(ph[16:24], s.vaddr)
		binary.LittleEndian.PutUint64(ph[24:32], s.paddr)
		binary.LittleEndian.PutUint64(ph[32:40], uint64(len(s.data)))
		binary.LittleEndian.PutUint64(ph[40:48], uint64(len(s.data)))
		binary.LittleEndian.PutUint64(ph[48:56], 0x1000)
		phdrs = append(phdrs, ph...)
		offset += uint64(len(s.data))
	}

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(hdr)
	_, _ = file.Write(phdrs)
	for _, s := range segs {
		_, _ = file.Write(s.data)
	}
}

// writeCore32 writes an ELF32 ARM core file with a single PT_LOAD segment.
func writeCore32(path string, paddr uint32, data []byte) {
	const ehsize, phentsize = 52, 32

	hdr := make([]byte, ehsize)
	copy(hdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	hdr[4] = 1 // ELFCLASS32
	hdr[5] = 1 // little endian
	hdr[6] = 1 // version
	binary.LittleEndian.PutUint16(hdr[16:18], 4)  // ET_CORE
	binary.LittleEndian.PutUint16(hdr[18:20], 40) // EM_ARM
	binary.LittleEndian.PutUint32(hdr[20:24], 1)
	binary.LittleEndian.PutUint32(hdr[28:32], ehsize) // phoff
	binary.LittleEndian.PutUint16(hdr[40:42], ehsize)
	binary.LittleEndian.PutUint16(hdr[42:44], phentsize)
	binary.LittleEndian.PutUint16(hdr[44:46], 1)
	binary.LittleEndian.PutUint16(hdr[46:48], 40)

	ph := make([]byte, phentsize)
	binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(ph[4:8], ehsize+phentsize)
	binary.LittleEndian.PutUint32(ph[8:12], 0xc0000000)
	binary.LittleEndian.PutUint32(ph[12:16], paddr)
	binary.LittleEndian.PutUint32(ph[16:20], uint32(len(data)))
	binary.LittleEndian.PutUint32(ph[20:24], uint32(len(data)))
	binary.LittleEndian.PutUint32(ph[24:28], 0x6) // PF_R | PF_W
	binary.LittleEndian.PutUint32(ph[28:32], 0x1000)

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(hdr)
	_, _ = file.Write(ph)
	_, _ = file.Write(data)
}
