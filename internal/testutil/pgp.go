package testutil

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// SigningKey is a throwaway OpenPGP key for signing test fixtures
type SigningKey struct {
	entity *openpgp.Entity
}

// NewSigningKey generates an Ed25519 signing key
func NewSigningKey(t testing.TB) *SigningKey {
	t.Helper()
	entity, err := openpgp.NewEntity("binscope test", "", "test@example.com", &packet.Config{
		Algorithm: packet.PubKeyAlgoEdDSA,
	})
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return &SigningKey{entity: entity}
}

// ArmoredPublicKey returns the armored public key block
func (k *SigningKey) ArmoredPublicKey(t testing.TB) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.entity.Serialize(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// PublicKey returns the binary public key
func (k *SigningKey) PublicKey(t testing.TB) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := k.entity.Serialize(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Sign returns an armored detached signature over data
func (k *SigningKey) Sign(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, k.entity, bytes.NewReader(data), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// SignBinary returns a binary detached signature over data
func (k *SigningKey) SignBinary(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := openpgp.DetachSign(&buf, k.entity, bytes.NewReader(data), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Fingerprint returns the uppercase hex fingerprint
func (k *SigningKey) Fingerprint() string {
	const hexDigits = "0123456789ABCDEF"
	fp := k.entity.PrimaryKey.Fingerprint
	out := make([]byte, 0, len(fp)*2)
	for _, b := range fp {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(out)
}
