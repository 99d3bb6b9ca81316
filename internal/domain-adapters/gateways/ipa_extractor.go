package gateways

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IPASuffix is the file extension of iOS application archives
const IPASuffix = ".ipa"

// ErrUnsafeArchivePath is returned for archive entries escaping the destination
var ErrUnsafeArchivePath = errors.New("archive entry escapes destination")

// ipaExtractor unpacks .ipa archives so the bundle locator can walk them
type ipaExtractor struct {
	maxFileSize int64
}

// NewIPAExtractor creates a new extractor. Entries larger than maxFileSize
// bytes are rejected; zero means no limit.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewIPAExtractor(maxFileSize int64) *ipaExtractor {
	return &ipaExtractor{maxFileSize: maxFileSize}
}

// IsIPA reports whether path looks like an application archive
func IsIPA(path string) bool {
	return strings.EqualFold(filepath.Ext(path), IPASuffix)
}

// Extract unpacks ipaPath into destDir. Symlinks are skipped.
func (g *ipaExtractor) Extract(ctx context.Context, ipaPath, destDir string) error {
	reader, err := zip.OpenReader(ipaPath)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = reader.Close()
		return fmt.Errorf("%w: %w", ErrUnsafeArchivePath, err)
	}
	if err != nil {
		return fmt.Errorf("failed to open IPA file as ZIP: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}
	root, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, err := safeJoin(root, file.Name)
		if err != nil {
			return err
		}

		mode := file.FileInfo().Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(path, 0o750); err != nil {
				return err
			}
			continue
		case mode&os.ModeSymlink != 0:
			continue
		}

		if g.maxFileSize > 0 && file.UncompressedSize64 > uint64(g.maxFileSize) {
			return fmt.Errorf("archive entry %s exceeds %d bytes", file.Name, g.maxFileSize)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return err
		}
		if err := g.extractFile(file, path, mode); err != nil {
			return fmt.Errorf("failed to extract %s: %w", file.Name, err)
		}
	}

	return nil
}

func (g *ipaExtractor) extractFile(file *zip.File, path string, mode os.FileMode) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only entry
	defer rc.Close()

	perm := os.FileMode(0o600)
	if mode.Perm()&0o100 != 0 {
		perm = 0o700
	}
	//nolint:gosec // G304: path is checked by safeJoin
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	var src io.Reader = rc
	if g.maxFileSize > 0 {
		src = io.LimitReader(rc, g.maxFileSize)
	}
	//nolint:gosec // G110: entry size is bounded by maxFileSize when set
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// safeJoin joins an archive entry name to root, refusing paths that leave it
func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchivePath, name)
	}
	path := filepath.Join(root, name)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchivePath, name)
	}
	return path, nil
}
