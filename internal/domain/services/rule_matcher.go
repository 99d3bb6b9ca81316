package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces"
	"github.com/ochairo/binscope/internal/domain/interfaces/repositories"
	"github.com/ochairo/binscope/internal/domain/interfaces/services"
)

// ruleMatcher implements RuleMatcher over a rule repository
type ruleMatcher struct {
	rules  repositories.RuleRepository
	logger interfaces.Logger
}

// NewRuleMatcher creates a new rule matcher with dependency injection
func NewRuleMatcher(rules repositories.RuleRepository, logger interfaces.Logger) services.RuleMatcher {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ruleMatcher{rules: rules, logger: logger}
}

// Match runs every rule over the symbols and class dump and records hits in findings
func (m *ruleMatcher) Match(
	ctx context.Context,
	scanID string,
	findings map[string]entities.BinaryFinding,
	symbols []string,
	dump entities.ClassDump,
) error {
	rules, err := m.rules.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load binary rules: %w", err)
	}

	haystack := strings.Join(symbols, "\n")
	if dump.Content != "" {
		haystack += "\n" + dump.Content
	}
	if haystack == "" {
		return nil
	}

	m.logger.Debug("matching binary rules",
		interfaces.F("scan_id", scanID),
		interfaces.F("rules", len(rules)),
		interfaces.F("symbols", len(symbols)),
	)

	for _, rule := range rules {
		matches, err := MatchRule(rule, haystack)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			continue
		}
		findings[rule.ID] = entities.BinaryFinding{
			RuleID:      rule.ID,
			Description: fmt.Sprintf("%s - %s", rule.Description, strings.Join(matches, ", ")),
			Severity:    rule.Severity,
			Matches:     matches,
			CVSS:        rule.Metadata.CVSS,
			CWE:         rule.Metadata.CWE,
			OWASPMobile: rule.Metadata.OWASPMobile,
			MASVS:       rule.Metadata.MASVS,
		}
	}

	return nil
}

// MatchRule returns the sorted distinct matches of a single rule in data
// Pure business logic - no I/O
func MatchRule(rule entities.BinaryRule, data string) ([]string, error) {
	switch rule.InputCase {
	case entities.InputCaseLower:
		data = strings.ToLower(data)
	case entities.InputCaseUpper:
		data = strings.ToUpper(data)
	}

	var matches []string
	switch rule.Type {
	case entities.RuleTypeRegex:
		regexps, err := ruleRegexps(rule)
		if err != nil {
			return nil, err
		}
		for _, re := range regexps {
			matches = append(matches, re.FindAllString(data, -1)...)
		}
	case entities.RuleTypeString, entities.RuleTypeStringOr:
		for _, pattern := range rule.Patterns {
			if strings.Contains(data, pattern) {
				matches = append(matches, pattern)
			}
		}
	case entities.RuleTypeStringAnd:
		for _, pattern := range rule.Patterns {
			if !strings.Contains(data, pattern) {
				return nil, nil
			}
		}
		matches = append(matches, rule.Patterns...)
	default:
		return nil, fmt.Errorf("rule %s has unsupported type %q", rule.ID, rule.Type)
	}

	return distinctSorted(matches), nil
}

// ruleRegexps returns the patterns compiled at load, compiling them here
// only for rules built outside the parser
func ruleRegexps(rule entities.BinaryRule) ([]*regexp.Regexp, error) {
	if len(rule.Compiled) == len(rule.Patterns) {
		return rule.Compiled, nil
	}
	out := make([]*regexp.Regexp, 0, len(rule.Patterns))
	for _, pattern := range rule.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s has invalid pattern %q: %w", rule.ID, pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func distinctSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
