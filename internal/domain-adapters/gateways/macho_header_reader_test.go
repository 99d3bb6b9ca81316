package gateways

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/testutil"
)

func TestBitWidth(t *testing.T) {
	tests := []struct {
		magic uint32
		want  int
	}{
		{0xfeedfacf, 64},
		{0xcffaedfe, 64},
		{0xfeedface, 32},
		{0xcefaedfe, 32},
		{0xcafebabe, 32},
		{0x00000000, 32},
		{0xffffffff, 32},
		{0xfeedfacd, 32},
	}

	for _, tt := range tests {
		if got := BitWidth(tt.magic); got != tt.want {
			t.Errorf("BitWidth(%#08x) = %d, want %d", tt.magic, got, tt.want)
		}
	}
}

func TestCPUTypeName(t *testing.T) {
	tests := []struct {
		cpuType int32
		want    string
	}{
		{12, "ARM"},
		{0x0100000c, "ARM64"},
		{0x0200000c, "ARM64_32"},
		{7, "i386"},
		{0x01000007, "x86_64"},
		{18, "PowerPC"},
		{-1, "ANY"},
		{99, "99"},
		{0x01000063, "16777315"},
	}

	for _, tt := range tests {
		if got := CPUTypeName(tt.cpuType); got != tt.want {
			t.Errorf("CPUTypeName(%d) = %q, want %q", tt.cpuType, got, tt.want)
		}
	}
}

func TestCPUSubtypeName(t *testing.T) {
	tests := []struct {
		name       string
		cpuType    int32
		cpuSubtype int32
		want       string
	}{
		{"arm64 all", 0x0100000c, 0, "CPU_SUBTYPE_ARM64_ALL"},
		{"arm64e with ptrauth capability bits", 0x0100000c, -0x7ffffffe, "CPU_SUBTYPE_ARM64E"}, // 0x80000002
		{"armv7", 12, 9, "CPU_SUBTYPE_ARM_V7"},
		{"x86_64 with lib64 capability", 0x01000007, -0x7ffffffd, "CPU_SUBTYPE_X86_64_ALL"}, // 0x80000003
		{"same code differs per type", 7, 3, "CPU_SUBTYPE_I386_ALL"},
		{"powerpc64 shares powerpc table", 0x01000012, 100, "CPU_SUBTYPE_POWERPC_970"},
		{"unknown subtype", 0x0100000c, 42, "42"},
		{"unknown type", 99, 1, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CPUSubtypeName(tt.cpuType, tt.cpuSubtype); got != tt.want {
				t.Errorf("CPUSubtypeName(%d, %d) = %q, want %q", tt.cpuType, tt.cpuSubtype, got, tt.want)
			}
		})
	}
}

func TestMachOHeaderReader_ReadHeader(t *testing.T) {
	tests := []struct {
		name       string
		image      testutil.MachO
		wantEndian string
		wantBits   int
		wantArch   string
		wantSub    string
	}{
		{
			name:       "arm64 little endian",
			image:      testutil.MachO{CPUType: testutil.CPUTypeARM64, CPUSubtype: testutil.CPUSubtypeARM64All},
			wantEndian: "<",
			wantBits:   64,
			wantArch:   "ARM64",
			wantSub:    "CPU_SUBTYPE_ARM64_ALL",
		},
		{
			name:       "armv7 32-bit",
			image:      testutil.MachO{CPUType: testutil.CPUTypeARM, CPUSubtype: testutil.CPUSubtypeARMV7, Is32: true},
			wantEndian: "<",
			wantBits:   32,
			wantArch:   "ARM",
			wantSub:    "CPU_SUBTYPE_ARM_V7",
		},
		{
			name:       "big endian 64-bit",
			image:      testutil.MachO{CPUType: 0x01000012, CPUSubtype: 0, BigEndian: true},
			wantEndian: ">",
			wantBits:   64,
			wantArch:   "PowerPC64",
			wantSub:    "CPU_SUBTYPE_POWERPC_ALL",
		},
		{
			name:       "unmapped cpu type falls back to code",
			image:      testutil.MachO{CPUType: 77, CPUSubtype: 5},
			wantEndian: "<",
			wantBits:   64,
			wantArch:   "77",
			wantSub:    "5",
		},
	}

	reader := NewMachOHeaderReader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "bin"), tt.image.Bytes())

			info, err := reader.ReadHeader(path)
			if err != nil {
				t.Fatalf("ReadHeader() error = %v", err)
			}
			if info.Endian != tt.wantEndian {
				t.Errorf("Endian = %q, want %q", info.Endian, tt.wantEndian)
			}
			if info.Bits != tt.wantBits {
				t.Errorf("Bits = %d, want %d", info.Bits, tt.wantBits)
			}
			if info.Arch != tt.wantArch {
				t.Errorf("Arch = %q, want %q", info.Arch, tt.wantArch)
			}
			if info.SubArch != tt.wantSub {
				t.Errorf("SubArch = %q, want %q", info.SubArch, tt.wantSub)
			}
			if info.Fat {
				t.Error("thin binary reported as fat")
			}
			if len(info.Architectures) != 1 {
				t.Errorf("Architectures = %d, want 1", len(info.Architectures))
			}
		})
	}
}

func TestMachOHeaderReader_FatReportsFirstSlice(t *testing.T) {
	image := testutil.Fat(
		testutil.MachO{CPUType: testutil.CPUTypeARM, CPUSubtype: testutil.CPUSubtypeARMV7, Is32: true},
		testutil.MachO{CPUType: testutil.CPUTypeARM64, CPUSubtype: testutil.CPUSubtypeARM64All},
	)
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "universal"), image)

	info, err := NewMachOHeaderReader().ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}

	if !info.Fat {
		t.Error("Fat = false, want true")
	}
	if info.Arch != "ARM" || info.Bits != 32 || info.Bit != "32-bit" {
		t.Errorf("top-level header = %s/%d/%s, want first slice ARM/32/32-bit", info.Arch, info.Bits, info.Bit)
	}
	if len(info.Architectures) != 2 {
		t.Fatalf("Architectures = %d, want 2", len(info.Architectures))
	}
	if second := info.Architectures[1]; second.Arch != "ARM64" || second.Bits != 64 || second.Offset == 0 {
		t.Errorf("second slice = %+v", second)
	}
}

func TestMachOHeaderReader_Fat64(t *testing.T) {
	image := testutil.Fat64(
		testutil.MachO{CPUType: testutil.CPUTypeARM64, CPUSubtype: testutil.CPUSubtypeARM64E},
		testutil.MachO{CPUType: testutil.CPUTypeX86_64, CPUSubtype: testutil.CPUSubtypeX86All},
	)
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "universal64"), image)

	info, err := NewMachOHeaderReader().ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if !info.Fat || info.Arch != "ARM64" || info.SubArch != "CPU_SUBTYPE_ARM64E" {
		t.Errorf("header = %+v, want fat ARM64E first slice", info)
	}
	if len(info.Architectures) != 2 || info.Architectures[1].Arch != "x86_64" {
		t.Errorf("Architectures = %+v", info.Architectures)
	}
}

func TestMachOHeaderReader_Invalid(t *testing.T) {
	tmpDir := t.TempDir()

	badFat := new(bytes.Buffer)
	_ = binary.Write(badFat, binary.BigEndian, []uint32{0xcafebabe, 1000})

	truncatedFat := new(bytes.Buffer)
	_ = binary.Write(truncatedFat, binary.BigEndian, []uint32{0xcafebabe, 1, 12, 0, 4096, 100, 12})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text file", []byte("not a Mach-O binary")},
		{"short magic", []byte{0xcf, 0xfa}},
		{"magic without cpu fields", []byte{0xcf, 0xfa, 0xed, 0xfe, 0x0c}},
		{"elf", []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0}},
		{"fat with absurd arch count", badFat.Bytes()},
		{"fat slice offset past end", truncatedFat.Bytes()},
	}

	reader := NewMachOHeaderReader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, filepath.Join(tmpDir, tt.name), tt.data)

			info, err := reader.ReadHeader(path)
			if err == nil {
				t.Fatal("Expected error for invalid header, got nil")
			}
			if !errors.Is(err, entities.ErrHeaderUnreadable) {
				t.Errorf("error = %v, want ErrHeaderUnreadable", err)
			}
			if !info.IsZero() {
				t.Errorf("info = %+v, want zero value", info)
			}
		})
	}
}

func TestMachOHeaderReader_NonexistentFile(t *testing.T) {
	info, err := NewMachOHeaderReader().ReadHeader("/nonexistent/binary")

	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
	if !info.IsZero() {
		t.Errorf("info = %+v, want zero value", info)
	}
}

// FuzzMachOHeaderReader checks that arbitrary input never panics and that
// the reported bit width always agrees with the magic.
//
// Run with: go test -fuzz=FuzzMachOHeaderReader -fuzztime=30s
func FuzzMachOHeaderReader(f *testing.F) {
	f.Add(testutil.MachO{CPUType: testutil.CPUTypeARM64}.Bytes())
	f.Add(testutil.MachO{CPUType: testutil.CPUTypeARM, Is32: true}.Bytes())
	f.Add(testutil.Fat(testutil.MachO{CPUType: testutil.CPUTypeARM64}))
	f.Add([]byte{})
	f.Add([]byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 1})

	reader := NewMachOHeaderReader()

	f.Fuzz(func(t *testing.T, data []byte) {
		info, err := reader.readHeader(bytes.NewReader(data))
		if err != nil {
			return
		}
		if info.Fat || len(data) < 4 {
			return
		}
		want := BitWidth(binary.BigEndian.Uint32(data[:4]))
		if info.Bits != want {
			t.Errorf("Bits = %d, want %d", info.Bits, want)
		}
	})
}
