package entities

import "errors"

var (
	// ErrBundleNotFound is returned when no .app directory exists under the scan source
	ErrBundleNotFound = errors.New("application bundle not found")

	// ErrExecutableNotFound is returned when no candidate executable is a regular file
	ErrExecutableNotFound = errors.New("bundle executable not found")

	// ErrHeaderUnreadable is returned when a file has no parseable Mach-O header
	ErrHeaderUnreadable = errors.New("unreadable Mach-O header")
)
