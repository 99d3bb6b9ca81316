package gateways

import (
	"bytes"
	"context"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ochairo/binscope/internal/domain/entities"
)

// Load commands debug/macho leaves as raw bytes
const (
	loadCmdCodeSignature    macho.LoadCmd = 0x1d
	loadCmdEncryptionInfo   macho.LoadCmd = 0x21
	loadCmdEncryptionInfo64 macho.LoadCmd = 0x2c
	loadCmdLoadWeakDylib    macho.LoadCmd = 0x80000018
	loadCmdReexportDylib    macho.LoadCmd = 0x8000001f
	loadCmdLazyLoadDylib    macho.LoadCmd = 0x20
	loadCmdLoadUpwardDylib  macho.LoadCmd = 0x80000023

	symbolTypeStab = 0xe0
	symbolTypeExt  = 0x01

	restrictSegment = "__RESTRICT"
)

// machOExtractor runs the checksec checks and collects symbols and
// linked libraries of a Mach-O executable using debug/macho.
type machOExtractor struct{}

// NewMachOExtractor creates a new Mach-O extractor
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewMachOExtractor() *machOExtractor {
	return &machOExtractor{}
}

// Extract analyzes the executable at path. Fat binaries are analyzed
// through their first slice.
func (g *machOExtractor) Extract(ctx context.Context, path string) (entities.MachOExtraction, error) {
	if err := ctx.Err(); err != nil {
		return entities.MachOExtraction{}, err
	}

	f, closeFn, err := openMachO(path)
	if err != nil {
		return entities.MachOExtraction{}, err
	}
	//nolint:errcheck // Defer close on read-only file
	defer closeFn()

	return entities.MachOExtraction{
		Checksec:  machOChecksec(f),
		Symbols:   machOSymbols(f),
		Libraries: machOLibraries(f),
	}, nil
}

func openMachO(path string) (*macho.File, func() error, error) {
	if isFat64(path) {
		return openFat64(path)
	}

	fat, err := macho.OpenFat(path)
	if err == nil {
		if len(fat.Arches) == 0 {
			_ = fat.Close()
			return nil, nil, fmt.Errorf("fat Mach-O file has no slices: %s", path)
		}
		return fat.Arches[0].File, fat.Close, nil
	}
	if !errors.Is(err, macho.ErrNotFat) {
		return nil, nil, fmt.Errorf("failed to open fat Mach-O file: %w", err)
	}

	f, err := macho.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Mach-O file: %w", err)
	}
	return f, f.Close, nil
}

func isFat64(path string) bool {
	//nolint:gosec // G304: path is the executable resolved inside the scanned bundle
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	var ident [4]byte
	if _, err := io.ReadFull(f, ident[:]); err != nil {
		return false
	}
	return binary.BigEndian.Uint32(ident[:]) == fatMagic64
}

// openFat64 opens the first slice of a FAT_MAGIC_64 file, which
// macho.OpenFat does not understand.
func openFat64(path string) (*macho.File, func() error, error) {
	//nolint:gosec // G304: path is the executable resolved inside the scanned bundle
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open fat Mach-O file: %w", err)
	}
	fail := func(err error) (*macho.File, func() error, error) {
		_ = f.Close()
		return nil, nil, err
	}

	st, err := f.Stat()
	if err != nil {
		return fail(fmt.Errorf("failed to stat fat Mach-O file: %w", err))
	}
	archs, err := NewMachOHeaderReader().readFatArchs(f, true)
	if err != nil {
		return fail(fmt.Errorf("failed to open fat Mach-O file: %w", err))
	}

	off := archs[0].Offset
	if off >= uint64(st.Size()) {
		return fail(fmt.Errorf("fat Mach-O slice offset %d beyond end of file", off))
	}
	mf, err := macho.NewFile(io.NewSectionReader(f, int64(off), st.Size()-int64(off)))
	if err != nil {
		return fail(fmt.Errorf("failed to open Mach-O slice: %w", err))
	}
	return mf, f.Close, nil
}

func machOChecksec(f *macho.File) entities.ChecksecReport {
	var (
		rpath, codeSig, restricted bool
		encrypted                  bool
	)
	for _, load := range f.Loads {
		switch l := load.(type) {
		case *macho.Rpath:
			rpath = true
		case *macho.Segment:
			if l.Name == restrictSegment {
				restricted = true
			}
		default:
			raw := load.Raw()
			if len(raw) < 8 {
				continue
			}
			switch macho.LoadCmd(f.ByteOrder.Uint32(raw)) {
			case loadCmdCodeSignature:
				codeSig = true
			case loadCmdEncryptionInfo, loadCmdEncryptionInfo64:
				if len(raw) >= 20 && f.ByteOrder.Uint32(raw[16:]) != 0 {
					encrypted = true
				}
			}
		}
	}

	names := symbolSet(f)
	return entities.ChecksecReport{
		NX:              nxItem(f.Flags&macho.FlagAllowStackExecution == 0),
		PIE:             pieItem(f.Flags&macho.FlagPIE != 0),
		StackCanary:     stackCanaryItem(names["___stack_chk_fail"] || names["___stack_chk_guard"]),
		ARC:             arcItem(names["_objc_release"] || names["_swift_release"]),
		RPath:           rpathItem(rpath),
		CodeSignature:   codeSignatureItem(codeSig),
		Encrypted:       encryptedItem(encrypted),
		Restricted:      restrictedItem(restricted),
		SymbolsStripped: strippedItem(isStripped(f)),
	}
}

func symbolSet(f *macho.File) map[string]bool {
	set := map[string]bool{}
	if f.Symtab == nil {
		return set
	}
	for _, s := range f.Symtab.Syms {
		set[s.Name] = true
	}
	return set
}

// isStripped reports whether no local, non-debug symbols remain
func isStripped(f *macho.File) bool {
	if f.Symtab == nil {
		return true
	}
	for _, s := range f.Symtab.Syms {
		if s.Type&symbolTypeStab != 0 {
			continue
		}
		if s.Type&symbolTypeExt == 0 {
			return false
		}
	}
	return true
}

func checksecItem(enabled bool, severity, description string) *entities.ChecksecItem {
	return &entities.ChecksecItem{Enabled: enabled, Severity: severity, Description: description}
}

func nxItem(enabled bool) *entities.ChecksecItem {
	if enabled {
		return checksecItem(true, entities.SeveritySecure,
			"The binary does not allow stack execution. Injected code on the stack cannot run.")
	}
	return checksecItem(false, entities.SeverityHigh,
		"The binary sets MH_ALLOW_STACK_EXECUTION. Stack memory is executable, which eases exploitation of memory corruption bugs.")
}

func pieItem(enabled bool) *entities.ChecksecItem {
	if enabled {
		return checksecItem(true, entities.SeverityInfo,
			"The binary is built as a Position Independent Executable and is loaded at a random address (ASLR).")
	}
	return checksecItem(false, entities.SeverityHigh,
		"The binary is not built with -fPIC. ASLR cannot randomize its load address.")
}

func stackCanaryItem(enabled bool) *entities.ChecksecItem {
	if enabled {
		return checksecItem(true, entities.SeverityInfo,
			"The binary references the stack protector. Stack buffer overflows are detected before the function returns.")
	}
	return checksecItem(false, entities.SeverityHigh,
		"The binary has no stack canary. Build with -fstack-protector-all to detect stack buffer overflows.")
}

func arcItem(enabled bool) *entities.ChecksecItem {
	if enabled {
		return checksecItem(true, entities.SeverityInfo,
			"The binary uses Automatic Reference Counting, which guards against common memory corruption bugs.")
	}
	return checksecItem(false, entities.SeverityHigh,
		"The binary does not use Automatic Reference Counting. Build with -fobjc-arc to reduce memory corruption bugs.")
}

func rpathItem(present bool) *entities.ChecksecItem {
	if present {
		return checksecItem(true, entities.SeverityWarning,
			"The binary has LC_RPATH entries. An attacker who controls a search path can hijack dylib loading. Remove unneeded @rpath entries.")
	}
	return checksecItem(false, entities.SeverityInfo, "The binary does not have LC_RPATH entries.")
}

func codeSignatureItem(present bool) *entities.ChecksecItem {
	if present {
		return checksecItem(true, entities.SeverityInfo, "The binary has a code signature.")
	}
	return checksecItem(false, entities.SeverityWarning, "The binary does not have a code signature.")
}

func encryptedItem(encrypted bool) *entities.ChecksecItem {
	if encrypted {
		return checksecItem(true, entities.SeverityInfo, "The binary is encrypted.")
	}
	return checksecItem(false, entities.SeverityWarning, "The binary is not encrypted.")
}

func restrictedItem(restricted bool) *entities.ChecksecItem {
	if restricted {
		return checksecItem(true, entities.SeverityInfo,
			"The binary has a __RESTRICT segment. dyld ignores DYLD_ environment variables for it.")
	}
	return checksecItem(false, entities.SeverityInfo,
		"The binary has no __RESTRICT segment. It relies on the platform to ignore DYLD_ environment variables.")
}

func strippedItem(stripped bool) *entities.ChecksecItem {
	if stripped {
		return checksecItem(true, entities.SeverityInfo, "Symbols are stripped.")
	}
	return checksecItem(false, entities.SeverityWarning,
		"Symbols are available. Local symbol names make reverse engineering easier.")
}

// machOSymbols returns the symbol table names in table order without duplicates
func machOSymbols(f *macho.File) []string {
	out := []string{}
	if f.Symtab == nil {
		return out
	}
	seen := make(map[string]bool, len(f.Symtab.Syms))
	for _, s := range f.Symtab.Syms {
		if s.Name == "" || seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s.Name)
	}
	return out
}

// machOLibraries returns every linked dylib in load command order, including
// weak, lazy, upward and re-exported ones.
func machOLibraries(f *macho.File) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, load := range f.Loads {
		if dylib, ok := load.(*macho.Dylib); ok {
			add(dylib.Name)
			continue
		}
		raw := load.Raw()
		if len(raw) < 12 {
			continue
		}
		switch macho.LoadCmd(f.ByteOrder.Uint32(raw)) {
		case loadCmdLoadWeakDylib, loadCmdReexportDylib, loadCmdLazyLoadDylib, loadCmdLoadUpwardDylib:
			add(dylibName(raw, f.ByteOrder))
		}
	}
	return out
}

func dylibName(raw []byte, bo binary.ByteOrder) string {
	off := bo.Uint32(raw[8:])
	if off >= uint32(len(raw)) {
		return ""
	}
	name := raw[off:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}
