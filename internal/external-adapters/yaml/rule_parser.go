// Package yaml provides the YAML binary rule corpus parser and repository.
package yaml

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ochairo/binscope/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// yamlRule represents the raw YAML structure of a rule
type yamlRule struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description"`
	Type        string       `yaml:"type"`
	Pattern     patternList  `yaml:"pattern"`
	Patterns    patternList  `yaml:"patterns"`
	Severity    string       `yaml:"severity"`
	InputCase   string       `yaml:"input_case"`
	Metadata    yamlMetadata `yaml:"metadata"`
}

type yamlMetadata struct {
	CVSS        float64 `yaml:"cvss"`
	CWE         string  `yaml:"cwe"`
	OWASPMobile string  `yaml:"owasp-mobile"`
	MASVS       string  `yaml:"masvs"`
}

// patternList accepts a single pattern or a list of patterns
type patternList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (p *patternList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*p = patternList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("line %d: pattern must be a string or a list of strings", node.Line)
	}
}

var ruleTypes = map[string]string{
	"regex":      entities.RuleTypeRegex,
	"string":     entities.RuleTypeString,
	"string_and": entities.RuleTypeStringAnd,
	"stringand":  entities.RuleTypeStringAnd,
	"string_or":  entities.RuleTypeStringOr,
	"stringor":   entities.RuleTypeStringOr,
}

var severities = map[string]bool{
	entities.SeverityHigh:    true,
	entities.SeverityWarning: true,
	entities.SeverityInfo:    true,
	entities.SeveritySecure:  true,
}

// RuleParser parses YAML rule corpora
type RuleParser struct{}

// NewRuleParser creates a new YAML rule parser
func NewRuleParser() *RuleParser {
	return &RuleParser{}
}

// ParseFile parses a YAML rule file
func (p *RuleParser) ParseFile(filePath string) ([]entities.BinaryRule, error) {
	//nolint:gosec // G304: filePath is the configured rule corpus
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into validated rules. The document is a list of
// rules; ids must be unique.
func (p *RuleParser) Parse(data []byte) ([]entities.BinaryRule, error) {
	var raw []yamlRule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	rules := make([]entities.BinaryRule, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, yr := range raw {
		rule, err := convertRule(yr)
		if err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i+1, err)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("rule #%d: duplicate id %s", i+1, rule.ID)
		}
		seen[rule.ID] = true
		rules = append(rules, rule)
	}

	return rules, nil
}

func convertRule(yr yamlRule) (entities.BinaryRule, error) {
	id := strings.TrimSpace(yr.ID)
	if id == "" {
		return entities.BinaryRule{}, fmt.Errorf("rule must have an id")
	}

	ruleType, ok := ruleTypes[strings.ToLower(strings.TrimSpace(yr.Type))]
	if !ok {
		return entities.BinaryRule{}, fmt.Errorf("rule %s has unsupported type %q", id, yr.Type)
	}

	patterns := append(append([]string{}, yr.Pattern...), yr.Patterns...)
	if len(patterns) == 0 {
		return entities.BinaryRule{}, fmt.Errorf("rule %s has no pattern", id)
	}
	var compiled []*regexp.Regexp
	for _, pattern := range patterns {
		if pattern == "" {
			return entities.BinaryRule{}, fmt.Errorf("rule %s has an empty pattern", id)
		}
		if ruleType == entities.RuleTypeRegex {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return entities.BinaryRule{}, fmt.Errorf("rule %s has invalid pattern %q: %w", id, pattern, err)
			}
			compiled = append(compiled, re)
		}
	}

	severity := strings.ToLower(strings.TrimSpace(yr.Severity))
	if severity == "" {
		severity = entities.SeverityInfo
	}
	if !severities[severity] {
		return entities.BinaryRule{}, fmt.Errorf("rule %s has unknown severity %q", id, yr.Severity)
	}

	inputCase := strings.ToLower(strings.TrimSpace(yr.InputCase))
	switch inputCase {
	case "":
		inputCase = entities.InputCaseExact
	case entities.InputCaseExact, entities.InputCaseLower, entities.InputCaseUpper:
	default:
		return entities.BinaryRule{}, fmt.Errorf("rule %s has unknown input_case %q", id, yr.InputCase)
	}

	return entities.BinaryRule{
		ID:          id,
		Description: strings.TrimSpace(yr.Description),
		Type:        ruleType,
		Patterns:    patterns,
		Severity:    severity,
		InputCase:   inputCase,
		Metadata:    convertMetadata(yr.Metadata),
		Compiled:    compiled,
	}, nil
}

func convertMetadata(ym yamlMetadata) entities.RuleMetadata {
	return entities.RuleMetadata{
		CVSS:        ym.CVSS,
		CWE:         ym.CWE,
		OWASPMobile: ym.OWASPMobile,
		MASVS:       ym.MASVS,
	}
}
