package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// checksumCalculator hashes scan inputs and rule files with SHA-256
type checksumCalculator struct{}

// NewChecksumCalculator creates a new checksum calculator
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewChecksumCalculator() *checksumCalculator {
	return &checksumCalculator{}
}

// CalculateChecksum calculates the SHA256 checksum of a file
func (c *checksumCalculator) CalculateChecksum(ctx context.Context, filePath string) (string, error) {
	//nolint:gosec // G304: File path is the scan input or rule file
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, ctxReader{ctx: ctx, r: f}); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum verifies a file's SHA256 checksum. The expected sum may be
// given in sha256sum format ("<hex>  <name>").
func (c *checksumCalculator) VerifyChecksum(ctx context.Context, filePath, expectedSum string) error {
	fields := strings.Fields(expectedSum)
	if len(fields) == 0 {
		return fmt.Errorf("empty checksum for %s", filePath)
	}
	expected := strings.ToLower(fields[0])

	actualSum, err := c.CalculateChecksum(ctx, filePath)
	if err != nil {
		return err
	}

	if actualSum != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actualSum)
	}

	return nil
}

// ctxReader stops a copy once the context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
