package yaml

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ochairo/binscope/internal/external-adapters/gpg"
	"github.com/ochairo/binscope/internal/testutil"
)

const customRules = `- id: custom_rule
  description: Custom
  type: string
  pattern: _custom
  severity: high
`

func TestRuleRepository_Embedded(t *testing.T) {
	repo := NewRuleRepository()

	rules, err := repo.ListRules(context.Background())
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("embedded corpus is empty")
	}
	if repo.Source() != EmbeddedSource {
		t.Errorf("Source() = %s", repo.Source())
	}

	rule, err := repo.GetRule(context.Background(), "ios_binary_weak_hash")
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if rule.ID != "ios_binary_weak_hash" {
		t.Errorf("GetRule() id = %s", rule.ID)
	}

	// Callers get their own copy
	rules[0].ID = "changed"
	again, _ := repo.ListRules(context.Background())
	if again[0].ID == "changed" {
		t.Error("ListRules() exposed internal state")
	}
}

func TestRuleRepository_GetRule_NotFound(t *testing.T) {
	_, err := NewRuleRepository().GetRule(context.Background(), "nonexistent")
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("GetRule() error = %v, want ErrRuleNotFound", err)
	}
}

func TestRuleRepository_File(t *testing.T) {
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "rules.yml"), []byte(customRules))
	repo := NewRuleRepository(WithRulesFile(path))

	rules, err := repo.ListRules(context.Background())
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "custom_rule" {
		t.Errorf("ListRules() = %+v", rules)
	}
	if repo.Source() != path {
		t.Errorf("Source() = %s, want %s", repo.Source(), path)
	}
}

func TestRuleRepository_FileErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := testutil.WriteFile(t, filepath.Join(dir, "invalid.yml"), []byte("- id: a\n  type: nope\n  pattern: x\n"))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.yml")},
		{"invalid rules", invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRuleRepository(WithRulesFile(tt.path)).ListRules(context.Background()); err == nil {
				t.Error("ListRules() error = nil, want error")
			}
		})
	}
}

func TestRuleRepository_Signature(t *testing.T) {
	key := testutil.NewSigningKey(t)
	dir := t.TempDir()
	rulesPath := testutil.WriteFile(t, filepath.Join(dir, "rules.yml"), []byte(customRules))
	goodSig := testutil.WriteFile(t, filepath.Join(dir, "rules.yml.asc"), key.Sign(t, []byte(customRules)))
	badSig := testutil.WriteFile(t, filepath.Join(dir, "other.asc"), key.Sign(t, []byte("something else")))

	verifier := gpg.NewVerifier()
	if err := verifier.ImportKeyRing(key.ArmoredPublicKey(t)); err != nil {
		t.Fatal(err)
	}

	t.Run("valid signature", func(t *testing.T) {
		repo := NewRuleRepository(WithRulesFile(rulesPath), WithSignature(goodSig, verifier))
		signer, err := repo.Signer(context.Background())
		if err != nil {
			t.Fatalf("Signer() error = %v", err)
		}
		if signer != key.Fingerprint() {
			t.Errorf("Signer() = %s, want %s", signer, key.Fingerprint())
		}
	})

	t.Run("signature over other data", func(t *testing.T) {
		repo := NewRuleRepository(WithRulesFile(rulesPath), WithSignature(badSig, verifier))
		if _, err := repo.ListRules(context.Background()); err == nil {
			t.Fatal("ListRules() should reject a corpus with a bad signature")
		}
	})

	t.Run("missing signature file", func(t *testing.T) {
		repo := NewRuleRepository(WithRulesFile(rulesPath), WithSignature(filepath.Join(dir, "none.asc"), verifier))
		if _, err := repo.ListRules(context.Background()); err == nil {
			t.Fatal("ListRules() should fail without the signature file")
		}
	})

	t.Run("no verifier", func(t *testing.T) {
		repo := NewRuleRepository(WithRulesFile(rulesPath), WithSignature(goodSig, nil))
		if _, err := repo.ListRules(context.Background()); err == nil {
			t.Fatal("ListRules() should fail without a verifier")
		}
	})

	t.Run("embedded corpus cannot be signed", func(t *testing.T) {
		repo := NewRuleRepository(WithSignature(goodSig, verifier))
		if _, err := repo.ListRules(context.Background()); err == nil {
			t.Fatal("ListRules() should fail for a signature without a rules file")
		}
	})
}

func TestRuleRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRuleRepository().ListRules(ctx); err == nil {
		t.Error("ListRules() error = nil for canceled context")
	}
}
