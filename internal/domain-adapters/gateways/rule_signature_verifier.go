package gateways

import (
	"fmt"

	"github.com/ochairo/binscope/internal/external-adapters/gpg"
)

// ruleSignatureVerifier wraps the external OpenPGP adapter to verify
// detached signatures of rule corpora against a local keyring.
type ruleSignatureVerifier struct {
	verifier *gpg.Verifier
}

// NewRuleSignatureVerifier creates a verifier trusting the keys in keyringPaths
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewRuleSignatureVerifier(keyringPaths ...string) (*ruleSignatureVerifier, error) {
	v := gpg.NewVerifier()
	for _, path := range keyringPaths {
		if path == "" {
			continue
		}
		if err := v.ImportKeyFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to import rule signing key: %w", err)
		}
	}
	if v.KeyringSize() == 0 {
		return nil, fmt.Errorf("rule signature verification requires a keyring: %w", gpg.ErrNoKeys)
	}
	return &ruleSignatureVerifier{verifier: v}, nil
}

// Verify checks a detached signature over a rule corpus and returns the signer fingerprint
func (g *ruleSignatureVerifier) Verify(data, sig []byte) (string, error) {
	signer, err := g.verifier.Verify(data, sig)
	if err != nil {
		return "", fmt.Errorf("rule signature verification failed: %w", err)
	}
	return signer, nil
}

// VerifyFile verifies a rule file against its detached signature file
func (g *ruleSignatureVerifier) VerifyFile(rulesPath, sigPath string) (string, error) {
	signer, err := g.verifier.VerifyFile(rulesPath, sigPath)
	if err != nil {
		return "", fmt.Errorf("rule signature verification failed: %w", err)
	}
	return signer, nil
}

// KeyringSize returns the number of trusted keys
func (g *ruleSignatureVerifier) KeyringSize() int {
	return g.verifier.KeyringSize()
}
