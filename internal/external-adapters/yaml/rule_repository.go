package yaml

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces"
)

// EmbeddedSource names the built-in corpus
const EmbeddedSource = "embedded"

// maxSignatureSize bounds the detached signature read from disk
const maxSignatureSize = 10 * 1024

//go:embed default_rules.yml
var defaultRules []byte

// ErrRuleNotFound is returned by GetRule for an unknown id
var ErrRuleNotFound = errors.New("rule not found")

// SignatureVerifier checks a detached signature over a rule corpus
type SignatureVerifier interface {
	Verify(data, sig []byte) (string, error)
}

// Option configures a RuleRepository
type Option func(*RuleRepository)

// WithRulesFile loads rules from path instead of the embedded corpus
func WithRulesFile(path string) Option {
	return func(r *RuleRepository) { r.rulesPath = path }
}

// WithSignature requires the rules file to carry a valid detached signature
func WithSignature(sigPath string, verifier SignatureVerifier) Option {
	return func(r *RuleRepository) {
		r.sigPath = sigPath
		r.verifier = verifier
	}
}

// WithLogger sets the logger
func WithLogger(logger interfaces.Logger) Option {
	return func(r *RuleRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// RuleRepository implements repositories.RuleRepository over a YAML corpus.
// The corpus is loaded once, on first use.
type RuleRepository struct {
	rulesPath string
	sigPath   string
	verifier  SignatureVerifier
	parser    *RuleParser
	logger    interfaces.Logger

	once    sync.Once
	rules   []entities.BinaryRule
	signer  string
	loadErr error
}

// NewRuleRepository creates a new YAML-based rule repository
func NewRuleRepository(opts ...Option) *RuleRepository {
	r := &RuleRepository{
		parser: NewRuleParser(),
		logger: &interfaces.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Source returns the rules file path, or EmbeddedSource
func (r *RuleRepository) Source() string {
	if r.rulesPath == "" {
		return EmbeddedSource
	}
	return r.rulesPath
}

// Signer returns the fingerprint of the key that signed the corpus, if verified
func (r *RuleRepository) Signer(ctx context.Context) (string, error) {
	if _, err := r.ListRules(ctx); err != nil {
		return "", err
	}
	return r.signer, nil
}

// ListRules returns all rules of the corpus
func (r *RuleRepository) ListRules(ctx context.Context) ([]entities.BinaryRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.once.Do(r.load)
	if r.loadErr != nil {
		return nil, r.loadErr
	}

	out := make([]entities.BinaryRule, len(r.rules))
	copy(out, r.rules)
	return out, nil
}

// GetRule retrieves a rule by id
func (r *RuleRepository) GetRule(ctx context.Context, id string) (entities.BinaryRule, error) {
	rules, err := r.ListRules(ctx)
	if err != nil {
		return entities.BinaryRule{}, err
	}
	for _, rule := range rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return entities.BinaryRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

func (r *RuleRepository) load() {
	data := defaultRules
	if r.rulesPath != "" {
		//nolint:gosec // G304: rules path comes from configuration
		fileData, err := os.ReadFile(r.rulesPath)
		if err != nil {
			r.loadErr = fmt.Errorf("failed to read rules file: %w", err)
			return
		}
		data = fileData
	}

	if r.sigPath != "" {
		signer, err := r.verify(data)
		if err != nil {
			r.loadErr = err
			return
		}
		r.signer = signer
	}

	rules, err := r.parser.Parse(data)
	if err != nil {
		r.loadErr = fmt.Errorf("invalid rules %s: %w", r.Source(), err)
		return
	}
	r.rules = rules

	r.logger.Debug("binary rules loaded",
		interfaces.F("source", r.Source()),
		interfaces.F("rules", len(rules)),
		interfaces.F("signer", r.signer),
	)
}

func (r *RuleRepository) verify(data []byte) (string, error) {
	if r.rulesPath == "" {
		return "", fmt.Errorf("a rules signature requires a rules file")
	}
	if r.verifier == nil {
		return "", fmt.Errorf("no signature verifier configured for %s", r.sigPath)
	}

	//nolint:gosec // G304: signature path comes from configuration
	f, err := os.Open(r.sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open rules signature: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	sig, err := io.ReadAll(io.LimitReader(f, maxSignatureSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read rules signature: %w", err)
	}

	signer, err := r.verifier.Verify(data, sig)
	if err != nil {
		return "", fmt.Errorf("rules file %s: %w", r.rulesPath, err)
	}
	return signer, nil
}
