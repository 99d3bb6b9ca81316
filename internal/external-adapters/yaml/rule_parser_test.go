package yaml

import (
	"strings"
	"testing"

	"github.com/ochairo/binscope/internal/domain/entities"
)

func TestRuleParser_Parse(t *testing.T) {
	data := []byte(`
- id: weak_hash
  description: Weak hash API
  type: Regex
  pattern: \b_CC_MD5\b
  severity: Warning
  metadata:
    cvss: 3.0
    cwe: CWE-327
    owasp-mobile: M5
    masvs: MSTG-CRYPTO-4
- id: jailbreak
  description: Jailbreak detection
  type: string_or
  pattern:
    - /Applications/Cydia.app
    - /etc/apt
  severity: secure
- id: sqlite
  type: StringAnd
  patterns: [_sqlite3_open, _sqlite3_exec]
  input_case: lower
`)

	rules, err := NewRuleParser().Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("Parse() returned %d rules, want 3", len(rules))
	}

	weak := rules[0]
	if weak.Type != entities.RuleTypeRegex || weak.Severity != entities.SeverityWarning {
		t.Errorf("weak_hash = %+v", weak)
	}
	if weak.InputCase != entities.InputCaseExact {
		t.Errorf("default InputCase = %q, want exact", weak.InputCase)
	}
	if weak.Metadata.CVSS != 3.0 || weak.Metadata.OWASPMobile != "M5" || weak.Metadata.MASVS != "MSTG-CRYPTO-4" {
		t.Errorf("metadata = %+v", weak.Metadata)
	}

	if len(weak.Compiled) != 1 || weak.Compiled[0].String() != weak.Patterns[0] {
		t.Errorf("Compiled = %v, want the pattern compiled at load", weak.Compiled)
	}

	if got := rules[1].Patterns; len(got) != 2 || got[1] != "/etc/apt" {
		t.Errorf("jailbreak patterns = %v", got)
	}
	if rules[1].Compiled != nil {
		t.Errorf("string rule has compiled patterns: %v", rules[1].Compiled)
	}

	sqlite := rules[2]
	if sqlite.Type != entities.RuleTypeStringAnd || sqlite.InputCase != entities.InputCaseLower {
		t.Errorf("sqlite = %+v", sqlite)
	}
	if sqlite.Severity != entities.SeverityInfo {
		t.Errorf("default Severity = %q, want info", sqlite.Severity)
	}
}

func TestRuleParser_Parse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"not yaml", "- id: [", "failed to parse YAML"},
		{"mapping instead of list", "id: x", "failed to parse YAML"},
		{"missing id", "- type: string\n  pattern: x", "must have an id"},
		{"unknown type", "- id: a\n  type: glob\n  pattern: x", "unsupported type"},
		{"no pattern", "- id: a\n  type: string", "no pattern"},
		{"empty pattern", "- id: a\n  type: string\n  pattern: [\"\"]", "empty pattern"},
		{"bad regex", "- id: a\n  type: regex\n  pattern: '(['", "invalid pattern"},
		{"bad severity", "- id: a\n  type: string\n  pattern: x\n  severity: critical", "unknown severity"},
		{"bad input case", "- id: a\n  type: string\n  pattern: x\n  input_case: title", "unknown input_case"},
		{"pattern mapping", "- id: a\n  type: string\n  pattern: {k: v}", "pattern must be"},
		{"duplicate id", "- id: a\n  type: string\n  pattern: x\n- id: a\n  type: string\n  pattern: y", "duplicate id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleParser().Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRuleParser_EmbeddedCorpus(t *testing.T) {
	rules, err := NewRuleParser().Parse(defaultRules)
	if err != nil {
		t.Fatalf("embedded corpus does not parse: %v", err)
	}
	if len(rules) < 10 {
		t.Errorf("embedded corpus has %d rules", len(rules))
	}
	for _, rule := range rules {
		if rule.Description == "" {
			t.Errorf("rule %s has no description", rule.ID)
		}
		if rule.Type == entities.RuleTypeRegex && len(rule.Compiled) != len(rule.Patterns) {
			t.Errorf("rule %s: %d compiled of %d patterns", rule.ID, len(rule.Compiled), len(rule.Patterns))
		}
	}
}

func TestRuleParser_ParseFile_Missing(t *testing.T) {
	if _, err := NewRuleParser().ParseFile("/nonexistent/rules.yml"); err == nil {
		t.Error("ParseFile() should return error for nonexistent file")
	}
}
