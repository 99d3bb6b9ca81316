package entities

import "regexp"

// Rule match types
const (
	RuleTypeRegex     = "regex"
	RuleTypeString    = "string"
	RuleTypeStringAnd = "string_and"
	RuleTypeStringOr  = "string_or"
)

// Rule input case handling
const (
	InputCaseExact = "exact"
	InputCaseLower = "lower"
	InputCaseUpper = "upper"
)

// BinaryRule is one entry of the binary rule corpus
type BinaryRule struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Patterns    []string     `json:"patterns"`
	Severity    string       `json:"severity"` // high, warning, info, secure
	InputCase   string       `json:"input_case"`
	Metadata    RuleMetadata `json:"metadata"`

	// Compiled holds Patterns compiled once at load, index-aligned. Set
	// only for regex rules.
	Compiled []*regexp.Regexp `json:"-"`
}

// RuleMetadata carries the standards mapping of a rule
type RuleMetadata struct {
	CVSS        float64 `json:"cvss"`
	CWE         string  `json:"cwe"`
	OWASPMobile string  `json:"owasp-mobile"`
	MASVS       string  `json:"masvs"`
}
