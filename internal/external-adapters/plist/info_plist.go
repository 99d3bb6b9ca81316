// Package plist reads application Info.plist files.
package plist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/binscope/internal/domain/entities"
	"howett.net/plist"
)

// InfoPlistName is the metadata file inside an application bundle
const InfoPlistName = "Info.plist"

// infoPlist holds the keys read from Info.plist. XML, binary and OpenStep
// encodings are all accepted.
type infoPlist struct {
	CFBundleExecutable         string `plist:"CFBundleExecutable"`
	CFBundleIdentifier         string `plist:"CFBundleIdentifier"`
	CFBundleDisplayName        string `plist:"CFBundleDisplayName"`
	CFBundleName               string `plist:"CFBundleName"`
	CFBundleShortVersionString string `plist:"CFBundleShortVersionString"`
	CFBundleVersion            string `plist:"CFBundleVersion"`
	MinimumOSVersion           string `plist:"MinimumOSVersion"`
}

// InfoPlistReader reads the declared executable and identity of a bundle
type InfoPlistReader struct{}

// NewInfoPlistReader creates a new Info.plist reader
func NewInfoPlistReader() *InfoPlistReader {
	return &InfoPlistReader{}
}

// Read parses <bundleDir>/Info.plist. A missing file yields an empty
// AppInfo and no error, so callers fall back to the bundle stem.
func (r *InfoPlistReader) Read(bundleDir string) (entities.AppInfo, error) {
	path := filepath.Join(bundleDir, InfoPlistName)

	//nolint:gosec // G304: path is inside the located bundle
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return entities.AppInfo{}, nil
	}
	if err != nil {
		return entities.AppInfo{}, fmt.Errorf("failed to open %s: %w", InfoPlistName, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	var info infoPlist
	if err := plist.NewDecoder(f).Decode(&info); err != nil {
		return entities.AppInfo{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	name := info.CFBundleDisplayName
	if name == "" {
		name = info.CFBundleName
	}
	version := info.CFBundleShortVersionString
	if version == "" {
		version = info.CFBundleVersion
	}

	return entities.AppInfo{
		Executable: info.CFBundleExecutable,
		BundleID:   info.CFBundleIdentifier,
		Name:       name,
		Version:    version,
		MinimumOS:  info.MinimumOSVersion,
	}, nil
}
