// Package gpg provides OpenPGP detached signature verification.
package gpg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const (
	armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE---"

	// OpenPGP signatures are well under 10 KiB
	maxSignatureSize = 10 * 1024
)

// ErrNoKeys is returned when verifying against an empty keyring
var ErrNoKeys = errors.New("no OpenPGP keys imported")

// Verifier checks detached OpenPGP signatures using ProtonMail's go-crypto.
// The dependency stays in external-adapters.
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a new verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{keyring: make(openpgp.EntityList, 0)}
}

// ImportKeyRing adds the armored or binary keys in data to the keyring
func (v *Verifier) ImportKeyRing(data []byte) error {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("no keys found")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// ImportKeyFromFile imports a key from a file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is user-provided for key import
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	if err := v.ImportKeyRing(data); err != nil {
		return fmt.Errorf("%s: %w", keyPath, err)
	}
	return nil
}

// Verify checks sig against data and returns the signer fingerprint
func (v *Verifier) Verify(data, sig []byte) (string, error) {
	if len(v.keyring) == 0 {
		return "", ErrNoKeys
	}
	if len(sig) > maxSignatureSize {
		return "", fmt.Errorf("signature too large: %d bytes", len(sig))
	}
	if len(sig) < 10 {
		return "", fmt.Errorf("signature too small to be a valid OpenPGP signature")
	}

	var (
		signer *openpgp.Entity
		err    error
	)
	if bytes.HasPrefix(sig, []byte(armoredSignaturePrefix)) {
		signer, err = openpgp.CheckArmoredDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(sig), nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(sig), nil)
	}
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}

	if signer == nil || signer.PrimaryKey == nil {
		return "", nil
	}
	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}

// VerifyFile verifies a detached signature file against a data file
func (v *Verifier) VerifyFile(filePath, sigPath string) (string, error) {
	//nolint:gosec // G304: filePath is user-provided for verification
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open data file: %w", err)
	}

	//nolint:gosec // G304: sigPath is user-provided for verification
	sigFile, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer sigFile.Close()

	sig, err := io.ReadAll(io.LimitReader(sigFile, maxSignatureSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read signature: %w", err)
	}

	return v.Verify(data, sig)
}

// KeyringSize returns the number of keys in the keyring
func (v *Verifier) KeyringSize() int {
	return len(v.keyring)
}

// ClearKeyring clears all imported keys
func (v *Verifier) ClearKeyring() {
	v.keyring = make(openpgp.EntityList, 0)
}
