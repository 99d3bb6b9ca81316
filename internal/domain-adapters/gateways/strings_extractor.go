package gateways

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// Defaults for string extraction
const (
	DefaultMinStringLength = 4
	DefaultMaxStrings      = 50000
)

const ctxCheckInterval = 64 * 1024

// stringsExtractor collects printable ASCII runs from a file, like strings(1)
type stringsExtractor struct {
	minLength int
	maxCount  int
}

// NewStringsExtractor creates a new strings extractor. Non-positive values
// fall back to the defaults.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewStringsExtractor(minLength, maxCount int) *stringsExtractor {
	if minLength <= 0 {
		minLength = DefaultMinStringLength
	}
	if maxCount <= 0 {
		maxCount = DefaultMaxStrings
	}
	return &stringsExtractor{minLength: minLength, maxCount: maxCount}
}

// Extract returns the distinct strings of the file in first-seen order
func (g *stringsExtractor) Extract(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Path is the analyzed executable
	if err != nil {
		return nil, fmt.Errorf("failed to open binary: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	return g.scan(ctx, f)
}

func (g *stringsExtractor) scan(ctx context.Context, r io.Reader) ([]string, error) {
	out := []string{}
	seen := map[string]bool{}
	run := make([]byte, 0, 256)

	flush := func() bool {
		if len(run) >= g.minLength {
			s := string(run)
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
		run = run[:0]
		return len(out) >= g.maxCount
	}

	br := bufio.NewReaderSize(r, ctxCheckInterval)
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		b, err := br.ReadByte()
		if err == io.EOF {
			flush()
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read binary: %w", err)
		}
		if isPrintable(b) {
			run = append(run, b)
			continue
		}
		if flush() {
			return out, nil
		}
	}
}

func isPrintable(b byte) bool {
	return b == '\t' || (b >= 0x20 && b < 0x7f)
}
