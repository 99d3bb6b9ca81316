// Package gateways defines the contracts of the I/O adapters used by binary analysis.
package gateways

import (
	"context"

	"github.com/ochairo/binscope/internal/domain/entities"
)

// BundleLocator finds the application bundle and its primary executable
type BundleLocator interface {
	LocateBundle(sourceDir string) (string, error)
	ResolveExecutable(bundleDir, declaredName string) (entities.ExecutableRef, error)
}

// HeaderReader parses the fixed Mach-O header of an executable
type HeaderReader interface {
	ReadHeader(path string) (entities.MachHeaderInfo, error)
}

// MachOExtractor extracts checksec facts, symbols and linked libraries
type MachOExtractor interface {
	Extract(ctx context.Context, path string) (entities.MachOExtraction, error)
}

// ClassDumper recovers class metadata from an executable
type ClassDumper interface {
	Dump(ctx context.Context, scanID, toolsDir, binPath, appDir string, kind entities.BinaryKind) (entities.ClassDump, error)
}

// StringExtractor extracts printable strings from a binary
type StringExtractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// ScanStatusReporter is the append-only diagnostic sink of a scan.
// Implementations must never fail the caller.
type ScanStatusReporter interface {
	Append(scanID, message, detail string)
}
