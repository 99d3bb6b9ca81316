package gateways

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/binscope/internal/domain/entities"
)

// BundleSuffix is the naming convention of iOS application bundles
const BundleSuffix = ".app"

// bundleLocator provides utilities for locating the application bundle and its executable
type bundleLocator struct{}

// NewBundleLocator creates a new bundle locator
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewBundleLocator() *bundleLocator {
	return &bundleLocator{}
}

// LocateBundle searches sourceDir recursively, in lexical order, for the first .app directory
func (l *bundleLocator) LocateBundle(sourceDir string) (string, error) {
	if _, err := os.Stat(sourceDir); err != nil {
		return "", fmt.Errorf("%w: %w", entities.ErrBundleNotFound, err)
	}

	var bundle string
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal
			if d != nil && d.IsDir() && path != sourceDir {
				return filepath.SkipDir
			}
			return err
		}
		if path == sourceDir || !d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), BundleSuffix) {
			bundle = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", entities.ErrBundleNotFound, err)
	}

	if bundle == "" {
		return "", fmt.Errorf("%w: no %s directory under %s", entities.ErrBundleNotFound, BundleSuffix, sourceDir)
	}
	return bundle, nil
}

// ExecutableCandidates returns the ranked executable candidates of a bundle:
// the declared name first (when given), then the bundle stem
func (l *bundleLocator) ExecutableCandidates(bundleDir, declaredName string) []entities.ExecutableCandidate {
	candidates := make([]entities.ExecutableCandidate, 0, 2)

	// Declared names come from Info.plist and must stay inside the bundle
	if declaredName != "" && declaredName == filepath.Base(declaredName) && declaredName != ".." {
		candidates = append(candidates, entities.ExecutableCandidate{
			Name:   declaredName,
			Path:   filepath.Join(bundleDir, declaredName),
			Source: entities.ExecutableFromDeclaredName,
		})
	}

	stem := BundleStem(bundleDir)
	if stem != "" && stem != declaredName {
		candidates = append(candidates, entities.ExecutableCandidate{
			Name:   stem,
			Path:   filepath.Join(bundleDir, stem),
			Source: entities.ExecutableFromBundleStem,
		})
	}

	return candidates
}

// ResolveExecutable picks the first candidate that is a regular file
func (l *bundleLocator) ResolveExecutable(bundleDir, declaredName string) (entities.ExecutableRef, error) {
	candidates := l.ExecutableCandidates(bundleDir, declaredName)

	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if isRegularFile(c.Path) {
			return entities.ExecutableRef{
				BundleDir: bundleDir,
				Path:      c.Path,
				Name:      c.Name,
				Source:    c.Source,
			}, nil
		}
		tried = append(tried, c.Path)
	}

	return entities.ExecutableRef{}, fmt.Errorf("%w: tried %s", entities.ErrExecutableNotFound, strings.Join(tried, ", "))
}

// BundleStem returns the bundle directory name without its extension
func BundleStem(bundleDir string) string {
	base := filepath.Base(bundleDir)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isRegularFile checks if a path is a regular file
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
