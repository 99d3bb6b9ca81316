// Package testutil builds minimal Mach-O images for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// CPU types and subtypes used by fixtures
const (
	CPUTypeX86    uint32 = 7
	CPUTypeX86_64 uint32 = 0x01000007
	CPUTypeARM    uint32 = 12
	CPUTypeARM64  uint32 = 0x0100000c

	CPUSubtypeARM64All uint32 = 0
	CPUSubtypeARM64E   uint32 = 2
	CPUSubtypeARMV7    uint32 = 9
	CPUSubtypeX86All   uint32 = 3
)

// Mach-O header flags used by fixtures
const (
	FlagPIE                 uint32 = 0x200000
	FlagAllowStackExecution uint32 = 0x20000
)

const (
	lcSegment          = 0x1
	lcSymtab           = 0x2
	lcLoadDylib        = 0xc
	lcSegment64        = 0x19
	lcCodeSignature    = 0x1d
	lcEncryptionInfo   = 0x21
	lcEncryptionInfo64 = 0x2c
	lcRpath            = 0x8000001c

	nExt  = 0x01
	nSect = 0x0e
)

// MachO describes a single-architecture Mach-O image
type MachO struct {
	CPUType    uint32
	CPUSubtype uint32
	Is32       bool
	BigEndian  bool
	Flags      uint32

	Libraries    []string
	Symbols      []string // undefined external symbols
	LocalSymbols []string // defined non-external symbols
	RPaths       []string

	EncryptionInfo bool
	CryptID        uint32
	CodeSignature  bool
	Restricted     bool

	// Trailer is appended after the symbol data, e.g. to embed strings
	Trailer []byte
}

func (m MachO) order() binary.ByteOrder {
	if m.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func align(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// Bytes renders the image
func (m MachO) Bytes() []byte {
	bo := m.order()
	ptrAlign := 8
	headerSize := 32
	nlistSize := 16
	if m.Is32 {
		ptrAlign = 4
		headerSize = 28
		nlistSize = 12
	}

	var cmds [][]byte

	for _, lib := range m.Libraries {
		size := align(24+len(lib)+1, ptrAlign)
		c := make([]byte, size)
		bo.PutUint32(c[0:], lcLoadDylib)
		bo.PutUint32(c[4:], uint32(size))
		bo.PutUint32(c[8:], 24)
		bo.PutUint32(c[12:], 2)
		bo.PutUint32(c[16:], 0x10000)
		bo.PutUint32(c[20:], 0x10000)
		copy(c[24:], lib)
		cmds = append(cmds, c)
	}

	for _, rpath := range m.RPaths {
		size := align(12+len(rpath)+1, ptrAlign)
		c := make([]byte, size)
		bo.PutUint32(c[0:], lcRpath)
		bo.PutUint32(c[4:], uint32(size))
		bo.PutUint32(c[8:], 12)
		copy(c[12:], rpath)
		cmds = append(cmds, c)
	}

	if m.EncryptionInfo {
		cmd, size := uint32(lcEncryptionInfo64), 24
		if m.Is32 {
			cmd, size = lcEncryptionInfo, 20
		}
		c := make([]byte, size)
		bo.PutUint32(c[0:], cmd)
		bo.PutUint32(c[4:], uint32(size))
		bo.PutUint32(c[8:], 0x4000)
		bo.PutUint32(c[12:], 0x1000)
		bo.PutUint32(c[16:], m.CryptID)
		cmds = append(cmds, c)
	}

	if m.CodeSignature {
		c := make([]byte, 16)
		bo.PutUint32(c[0:], lcCodeSignature)
		bo.PutUint32(c[4:], 16)
		cmds = append(cmds, c)
	}

	if m.Restricted {
		cmds = append(cmds, m.segment("__RESTRICT"))
	}

	symbolCount := len(m.Symbols) + len(m.LocalSymbols)
	if symbolCount > 0 {
		cmds = append(cmds, make([]byte, 24)) // patched below
	}

	sizeOfCmds := 0
	for _, c := range cmds {
		sizeOfCmds += len(c)
	}
	dataOff := headerSize + sizeOfCmds

	var symdat, strtab bytes.Buffer
	strtab.WriteByte(0)
	writeSym := func(name string, typ uint8, sect uint8) {
		strx := uint32(strtab.Len())
		strtab.WriteString(name)
		strtab.WriteByte(0)
		rec := make([]byte, nlistSize)
		bo.PutUint32(rec[0:], strx)
		rec[4] = typ
		rec[5] = sect
		symdat.Write(rec)
	}
	for _, s := range m.LocalSymbols {
		writeSym(s, nSect, 1)
	}
	for _, s := range m.Symbols {
		writeSym(s, nExt, 0)
	}

	if symbolCount > 0 {
		c := cmds[len(cmds)-1]
		bo.PutUint32(c[0:], lcSymtab)
		bo.PutUint32(c[4:], 24)
		bo.PutUint32(c[8:], uint32(dataOff))
		bo.PutUint32(c[12:], uint32(symbolCount))
		bo.PutUint32(c[16:], uint32(dataOff+symdat.Len()))
		bo.PutUint32(c[20:], uint32(strtab.Len()))
	}

	var out bytes.Buffer
	hdr := make([]byte, headerSize)
	magic := uint32(0xfeedfacf)
	if m.Is32 {
		magic = 0xfeedface
	}
	bo.PutUint32(hdr[0:], magic)
	bo.PutUint32(hdr[4:], m.CPUType)
	bo.PutUint32(hdr[8:], m.CPUSubtype)
	bo.PutUint32(hdr[12:], 2) // MH_EXECUTE
	bo.PutUint32(hdr[16:], uint32(len(cmds)))
	bo.PutUint32(hdr[20:], uint32(sizeOfCmds))
	bo.PutUint32(hdr[24:], m.Flags)
	out.Write(hdr)
	for _, c := range cmds {
		out.Write(c)
	}
	out.Write(symdat.Bytes())
	out.Write(strtab.Bytes())
	out.Write(m.Trailer)
	return out.Bytes()
}

func (m MachO) segment(name string) []byte {
	bo := m.order()
	if m.Is32 {
		c := make([]byte, 56)
		bo.PutUint32(c[0:], lcSegment)
		bo.PutUint32(c[4:], 56)
		copy(c[8:24], name)
		return c
	}
	c := make([]byte, 72)
	bo.PutUint32(c[0:], lcSegment64)
	bo.PutUint32(c[4:], 72)
	copy(c[8:24], name)
	return c
}

// Fat renders a universal binary holding the given slices in order
func Fat(slices ...MachO) []byte {
	return fat(false, slices)
}

// Fat64 renders a universal binary with the 64-bit fat table (FAT_MAGIC_64)
func Fat64(slices ...MachO) []byte {
	return fat(true, slices)
}

func fat(is64 bool, slices []MachO) []byte {
	const sliceAlign = 12 // 4 KiB

	images := make([][]byte, len(slices))
	for i, s := range slices {
		images[i] = s.Bytes()
	}

	magic, entrySize := uint32(0xcafebabe), 20
	if is64 {
		magic, entrySize = 0xcafebabf, 32
	}

	offset := align(8+entrySize*len(slices), 1<<sliceAlign)
	var header bytes.Buffer
	_ = binary.Write(&header, binary.BigEndian, magic)
	_ = binary.Write(&header, binary.BigEndian, uint32(len(slices)))

	offsets := make([]int, len(slices))
	for i, img := range images {
		offsets[i] = offset
		_ = binary.Write(&header, binary.BigEndian, []uint32{slices[i].CPUType, slices[i].CPUSubtype})
		if is64 {
			_ = binary.Write(&header, binary.BigEndian, []uint64{uint64(offset), uint64(len(img))})
			_ = binary.Write(&header, binary.BigEndian, []uint32{sliceAlign, 0})
		} else {
			_ = binary.Write(&header, binary.BigEndian, []uint32{uint32(offset), uint32(len(img)), sliceAlign})
		}
		offset = align(offset+len(img), 1<<sliceAlign)
	}

	out := make([]byte, offset)
	copy(out, header.Bytes())
	for i, img := range images {
		copy(out[offsets[i]:], img)
	}
	return out
}

// WriteFile writes data to path, creating parent directories
func WriteFile(t testing.TB, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// Bundle creates <root>/Payload/<name>.app with the given executable image
// and returns the bundle directory.
func Bundle(t testing.TB, root, name, executable string, image []byte) string {
	t.Helper()
	bundleDir := filepath.Join(root, "Payload", name+".app")
	if err := os.MkdirAll(bundleDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if executable != "" {
		WriteFile(t, filepath.Join(bundleDir, executable), image)
	}
	return bundleDir
}
