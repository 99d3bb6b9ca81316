package gateways

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ochairo/binscope/internal/domain/entities"
)

// Mach-O magic numbers as read big-endian from the first four bytes
const (
	magic32    uint32 = 0xfeedface // MH_MAGIC
	cigam32    uint32 = 0xcefaedfe // MH_CIGAM
	magic64    uint32 = 0xfeedfacf // MH_MAGIC_64
	cigam64    uint32 = 0xcffaedfe // MH_CIGAM_64
	fatMagic   uint32 = 0xcafebabe // FAT_MAGIC, always big-endian
	fatMagic64 uint32 = 0xcafebabf // FAT_MAGIC_64
)

const (
	cpuArchABI64    int32 = 0x01000000
	cpuArchABI64_32 int32 = 0x02000000
	cpuSubtypeMask  int32 = -0x01000000 // 0xff000000, capability bits

	// more slices than this is a corrupt fat table, not a real binary
	maxFatArches = 64
)

// cpuTypeNames maps CPU type codes to architecture names
var cpuTypeNames = map[int32]string{
	-1:                   "ANY",
	1:                    "VAX",
	6:                    "MC680x0",
	7:                    "i386",
	cpuArchABI64 | 7:     "x86_64",
	8:                    "MIPS",
	10:                   "MC98000",
	11:                   "HPPA",
	12:                   "ARM",
	cpuArchABI64 | 12:    "ARM64",
	cpuArchABI64_32 | 12: "ARM64_32",
	13:                   "MC88000",
	14:                   "SPARC",
	15:                   "i860",
	16:                   "Alpha",
	18:                   "PowerPC",
	cpuArchABI64 | 18:    "PowerPC64",
}

var powerPCSubtypes = map[int32]string{
	0:   "CPU_SUBTYPE_POWERPC_ALL",
	1:   "CPU_SUBTYPE_POWERPC_601",
	2:   "CPU_SUBTYPE_POWERPC_602",
	3:   "CPU_SUBTYPE_POWERPC_603",
	4:   "CPU_SUBTYPE_POWERPC_603e",
	5:   "CPU_SUBTYPE_POWERPC_603ev",
	6:   "CPU_SUBTYPE_POWERPC_604",
	7:   "CPU_SUBTYPE_POWERPC_604e",
	8:   "CPU_SUBTYPE_POWERPC_620",
	9:   "CPU_SUBTYPE_POWERPC_750",
	10:  "CPU_SUBTYPE_POWERPC_7400",
	11:  "CPU_SUBTYPE_POWERPC_7450",
	100: "CPU_SUBTYPE_POWERPC_970",
}

// cpuSubtypeNames is keyed by CPU type: subtype codes only mean something per type
var cpuSubtypeNames = map[int32]map[int32]string{
	1: {
		0:  "CPU_SUBTYPE_VAX_ALL",
		1:  "CPU_SUBTYPE_VAX780",
		2:  "CPU_SUBTYPE_VAX785",
		3:  "CPU_SUBTYPE_VAX750",
		4:  "CPU_SUBTYPE_VAX730",
		5:  "CPU_SUBTYPE_UVAXI",
		6:  "CPU_SUBTYPE_UVAXII",
		7:  "CPU_SUBTYPE_VAX8200",
		8:  "CPU_SUBTYPE_VAX8500",
		9:  "CPU_SUBTYPE_VAX8600",
		10: "CPU_SUBTYPE_VAX8650",
		11: "CPU_SUBTYPE_VAX8800",
		12: "CPU_SUBTYPE_UVAXIII",
	},
	6: {
		1: "CPU_SUBTYPE_MC680x0_ALL",
		2: "CPU_SUBTYPE_MC68040",
		3: "CPU_SUBTYPE_MC68030_ONLY",
	},
	7: {
		3:    "CPU_SUBTYPE_I386_ALL",
		4:    "CPU_SUBTYPE_486",
		0x84: "CPU_SUBTYPE_486SX",
		5:    "CPU_SUBTYPE_PENT",
		0x16: "CPU_SUBTYPE_PENTPRO",
		0x36: "CPU_SUBTYPE_PENTII_M3",
		0x56: "CPU_SUBTYPE_PENTII_M5",
		0x67: "CPU_SUBTYPE_CELERON",
		0x77: "CPU_SUBTYPE_CELERON_MOBILE",
		8:    "CPU_SUBTYPE_PENTIUM_3",
		0x18: "CPU_SUBTYPE_PENTIUM_3_M",
		0x28: "CPU_SUBTYPE_PENTIUM_3_XEON",
		9:    "CPU_SUBTYPE_PENTIUM_M",
		10:   "CPU_SUBTYPE_PENTIUM_4",
		0x1a: "CPU_SUBTYPE_PENTIUM_4_M",
		11:   "CPU_SUBTYPE_ITANIUM",
		0x1b: "CPU_SUBTYPE_ITANIUM_2",
		12:   "CPU_SUBTYPE_XEON",
		0x1c: "CPU_SUBTYPE_XEON_MP",
	},
	cpuArchABI64 | 7: {
		3: "CPU_SUBTYPE_X86_64_ALL",
		4: "CPU_SUBTYPE_X86_ARCH1",
		8: "CPU_SUBTYPE_X86_64_H",
	},
	8: {
		0: "CPU_SUBTYPE_MIPS_ALL",
		1: "CPU_SUBTYPE_MIPS_R2300",
		2: "CPU_SUBTYPE_MIPS_R2600",
		3: "CPU_SUBTYPE_MIPS_R2800",
		4: "CPU_SUBTYPE_MIPS_R2000a",
		5: "CPU_SUBTYPE_MIPS_R2000",
		6: "CPU_SUBTYPE_MIPS_R3000a",
		7: "CPU_SUBTYPE_MIPS_R3000",
	},
	10: {
		0: "CPU_SUBTYPE_MC98000_ALL",
		1: "CPU_SUBTYPE_MC98601",
	},
	11: {
		0: "CPU_SUBTYPE_HPPA_ALL",
		1: "CPU_SUBTYPE_HPPA_7100LC",
	},
	12: {
		0:  "CPU_SUBTYPE_ARM_ALL",
		5:  "CPU_SUBTYPE_ARM_V4T",
		6:  "CPU_SUBTYPE_ARM_V6",
		7:  "CPU_SUBTYPE_ARM_V5TEJ",
		8:  "CPU_SUBTYPE_ARM_XSCALE",
		9:  "CPU_SUBTYPE_ARM_V7",
		10: "CPU_SUBTYPE_ARM_V7F",
		11: "CPU_SUBTYPE_ARM_V7S",
		12: "CPU_SUBTYPE_ARM_V7K",
		13: "CPU_SUBTYPE_ARM_V8",
		14: "CPU_SUBTYPE_ARM_V6M",
		15: "CPU_SUBTYPE_ARM_V7M",
		16: "CPU_SUBTYPE_ARM_V7EM",
	},
	cpuArchABI64 | 12: {
		0: "CPU_SUBTYPE_ARM64_ALL",
		1: "CPU_SUBTYPE_ARM64_V8",
		2: "CPU_SUBTYPE_ARM64E",
	},
	cpuArchABI64_32 | 12: {
		0: "CPU_SUBTYPE_ARM64_32_ALL",
		1: "CPU_SUBTYPE_ARM64_32_V8",
	},
	13: {
		0: "CPU_SUBTYPE_MC88000_ALL",
		1: "CPU_SUBTYPE_MC88100",
		2: "CPU_SUBTYPE_MC88110",
	},
	14: {
		0: "CPU_SUBTYPE_SPARC_ALL",
	},
	15: {
		0: "CPU_SUBTYPE_I860_ALL",
		1: "CPU_SUBTYPE_I860_860",
	},
	18:                powerPCSubtypes,
	cpuArchABI64 | 18: powerPCSubtypes,
}

// machOHeaderReader reads Mach-O headers without touching load commands,
// so a binary with corrupt load commands still reports its architecture
type machOHeaderReader struct{}

// NewMachOHeaderReader creates a new header reader
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewMachOHeaderReader() *machOHeaderReader {
	return &machOHeaderReader{}
}

// ReadHeader parses the header of a thin or fat Mach-O file.
// On failure the zero MachHeaderInfo is returned alongside the error.
func (r *machOHeaderReader) ReadHeader(path string) (entities.MachHeaderInfo, error) {
	//nolint:gosec // G304: path is the executable resolved inside the scanned bundle
	f, err := os.Open(path)
	if err != nil {
		return entities.MachHeaderInfo{}, fmt.Errorf("failed to open binary: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	info, err := r.readHeader(f)
	if err != nil {
		return entities.MachHeaderInfo{}, fmt.Errorf("%w: %s: %w", entities.ErrHeaderUnreadable, path, err)
	}
	return info, nil
}

func (r *machOHeaderReader) readHeader(ra io.ReaderAt) (entities.MachHeaderInfo, error) {
	var ident [4]byte
	if _, err := ra.ReadAt(ident[:], 0); err != nil {
		return entities.MachHeaderInfo{}, fmt.Errorf("failed to read magic: %w", err)
	}

	var archs []entities.ArchInfo
	fat := false

	switch magic := binary.BigEndian.Uint32(ident[:]); magic {
	case fatMagic, fatMagic64:
		fat = true
		var err error
		archs, err = r.readFatArchs(ra, magic == fatMagic64)
		if err != nil {
			return entities.MachHeaderInfo{}, err
		}
	default:
		arch, err := readArchHeader(ra, 0)
		if err != nil {
			return entities.MachHeaderInfo{}, err
		}
		archs = []entities.ArchInfo{arch}
	}

	// Only the first slice is reported at the top level
	first := archs[0]
	return entities.MachHeaderInfo{
		Endian:        first.Endian,
		Bits:          first.Bits,
		Bit:           fmt.Sprintf("%d-bit", first.Bits),
		Arch:          first.Arch,
		SubArch:       first.SubArch,
		CPUType:       first.CPUType,
		CPUSubtype:    first.CPUSubtype,
		Fat:           fat,
		Architectures: archs,
	}, nil
}

func (r *machOHeaderReader) readFatArchs(ra io.ReaderAt, is64 bool) ([]entities.ArchInfo, error) {
	var countBuf [4]byte
	if _, err := ra.ReadAt(countBuf[:], 4); err != nil {
		return nil, fmt.Errorf("failed to read fat header: %w", err)
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	if count == 0 || count > maxFatArches {
		return nil, fmt.Errorf("invalid fat architecture count %d", count)
	}

	entrySize := int64(20)
	if is64 {
		entrySize = 32
	}

	archs := make([]entities.ArchInfo, 0, count)
	for i := int64(0); i < int64(count); i++ {
		entry := make([]byte, entrySize)
		if _, err := ra.ReadAt(entry, 8+i*entrySize); err != nil {
			return nil, fmt.Errorf("failed to read fat arch %d: %w", i, err)
		}

		var offset uint64
		if is64 {
			offset = binary.BigEndian.Uint64(entry[8:16])
		} else {
			offset = uint64(binary.BigEndian.Uint32(entry[8:12]))
		}

		arch, err := readArchHeader(ra, int64(offset))
		if err != nil {
			return nil, fmt.Errorf("fat arch %d: %w", i, err)
		}
		arch.Offset = offset
		archs = append(archs, arch)
	}
	return archs, nil
}

func readArchHeader(ra io.ReaderAt, offset int64) (entities.ArchInfo, error) {
	if offset < 0 {
		return entities.ArchInfo{}, errors.New("negative header offset")
	}

	var hdr [12]byte
	if _, err := ra.ReadAt(hdr[:], offset); err != nil {
		return entities.ArchInfo{}, fmt.Errorf("failed to read header at %d: %w", offset, err)
	}

	magic := binary.BigEndian.Uint32(hdr[0:4])
	var bo binary.ByteOrder
	var endian string
	switch magic {
	case magic32, magic64:
		bo, endian = binary.BigEndian, ">"
	case cigam32, cigam64:
		bo, endian = binary.LittleEndian, "<"
	default:
		return entities.ArchInfo{}, fmt.Errorf("not a Mach-O file (magic %#08x)", magic)
	}

	cpuType := int32(bo.Uint32(hdr[4:8]))
	cpuSubtype := int32(bo.Uint32(hdr[8:12]))

	return entities.ArchInfo{
		Endian:     endian,
		Bits:       BitWidth(magic),
		Arch:       CPUTypeName(cpuType),
		SubArch:    CPUSubtypeName(cpuType, cpuSubtype),
		CPUType:    cpuType,
		CPUSubtype: cpuSubtype,
	}, nil
}

// BitWidth returns 64 for the 64-bit magic in either byte order and 32 for anything else
func BitWidth(magic uint32) int {
	if magic == magic64 || magic == cigam64 {
		return 64
	}
	return 32
}

// CPUTypeName returns the architecture name of a CPU type, or its decimal code when unknown
func CPUTypeName(cpuType int32) string {
	if name, ok := cpuTypeNames[cpuType]; ok {
		return name
	}
	return strconv.FormatInt(int64(cpuType), 10)
}

// CPUSubtypeName resolves a subtype within its CPU type, or returns the decimal code when unknown
func CPUSubtypeName(cpuType, cpuSubtype int32) string {
	st := cpuSubtype &^ cpuSubtypeMask
	if names, ok := cpuSubtypeNames[cpuType]; ok {
		if name, ok := names[st]; ok {
			return name
		}
	}
	return strconv.FormatInt(int64(st), 10)
}
