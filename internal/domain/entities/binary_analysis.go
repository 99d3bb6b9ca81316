package entities

// BinaryKind is the runtime language of an application executable
type BinaryKind string

const (
	// BinaryKindSwift marks executables linked against the Swift core runtime
	BinaryKindSwift BinaryKind = "Swift"
	// BinaryKindObjectiveC is the default for everything else
	BinaryKindObjectiveC BinaryKind = "Objective C"
)

// ArchInfo describes a single architecture slice of a Mach-O file
type ArchInfo struct {
	Endian     string `json:"endian"` // ">" big-endian, "<" little-endian
	Bits       int    `json:"bits"`
	Arch       string `json:"arch"`
	SubArch    string `json:"subarch"`
	CPUType    int32  `json:"cpu_type"`
	CPUSubtype int32  `json:"cpu_subtype"`
	Offset     uint64 `json:"offset,omitempty"` // slice offset inside a fat file
}

// MachHeaderInfo is the parsed Mach-O header of an executable.
// For fat files the top-level fields describe the first slice only.
type MachHeaderInfo struct {
	Endian        string     `json:"endian,omitempty"`
	Bits          int        `json:"bits,omitempty"`
	Bit           string     `json:"bit,omitempty"` // "64-bit" / "32-bit"
	Arch          string     `json:"arch,omitempty"`
	SubArch       string     `json:"subarch,omitempty"`
	CPUType       int32      `json:"cpu_type,omitempty"`
	CPUSubtype    int32      `json:"cpu_subtype,omitempty"`
	Fat           bool       `json:"fat,omitempty"`
	Architectures []ArchInfo `json:"architectures,omitempty"`
}

// IsZero reports whether no header was parsed
func (h MachHeaderInfo) IsZero() bool {
	return h.Bits == 0 && h.Arch == "" && len(h.Architectures) == 0
}

// Checksec severities
const (
	SeverityHigh    = "high"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
	SeveritySecure  = "secure"
)

// ChecksecItem is the outcome of one hardening check
type ChecksecItem struct {
	Enabled     bool   `json:"enabled"`
	Severity    string `json:"severity"` // high, warning, info, secure
	Description string `json:"description"`
}

// ChecksecReport holds the hardening checks of a Mach-O executable
type ChecksecReport struct {
	NX              *ChecksecItem `json:"nx,omitempty"`
	PIE             *ChecksecItem `json:"pie,omitempty"`
	StackCanary     *ChecksecItem `json:"stack_canary,omitempty"`
	ARC             *ChecksecItem `json:"arc,omitempty"`
	RPath           *ChecksecItem `json:"rpath,omitempty"`
	CodeSignature   *ChecksecItem `json:"code_signature,omitempty"`
	Encrypted       *ChecksecItem `json:"encrypted,omitempty"`
	Restricted      *ChecksecItem `json:"restricted,omitempty"`
	SymbolsStripped *ChecksecItem `json:"symbols_stripped,omitempty"`
}

// IsEmpty reports whether no check was run
func (r ChecksecReport) IsEmpty() bool {
	return r == ChecksecReport{}
}

// MachOExtraction is what the checksec/symbol/library extractor produces
type MachOExtraction struct {
	Checksec  ChecksecReport
	Symbols   []string
	Libraries []string
}

// ClassDump is the output of a class-dump tool run.
// Tool and Content are empty when no dump could be produced.
type ClassDump struct {
	Tool    string `json:"tool,omitempty"`
	Path    string `json:"path,omitempty"`
	Content string `json:"-"`
}

// BinaryFinding is a rule hit on the symbols or class dump of a binary
type BinaryFinding struct {
	RuleID      string   `json:"rule_id"`
	Description string   `json:"detailed_desc"`
	Severity    string   `json:"severity"`
	Matches     []string `json:"matches"`
	CVSS        float64  `json:"cvss"`
	CWE         string   `json:"cwe"`
	OWASPMobile string   `json:"owasp-mobile"`
	MASVS       string   `json:"masvs"`
}

// BinaryAnalysisResult is the aggregate record of one binary analysis run
type BinaryAnalysisResult struct {
	ScanID          string                   `json:"scan_id,omitempty"`
	Checksec        ChecksecReport           `json:"checksec"`
	Symbols         []string                 `json:"symbols"`
	Libraries       []string                 `json:"libraries"`
	BinCodeAnalysis map[string]BinaryFinding `json:"bin_code_analysis"`
	Strings         []string                 `json:"strings"`
	BinInfo         MachHeaderInfo           `json:"bin_info"`
	BinType         BinaryKind               `json:"bin_type"`
	BinPath         string                   `json:"bin_path,omitempty"` // empty when no executable was analyzed
}

// NewBinaryAnalysisResult returns the all-default result with empty collections
func NewBinaryAnalysisResult(scanID string) *BinaryAnalysisResult {
	return &BinaryAnalysisResult{
		ScanID:          scanID,
		Symbols:         []string{},
		Libraries:       []string{},
		BinCodeAnalysis: map[string]BinaryFinding{},
		Strings:         []string{},
	}
}

// HasBinary reports whether an executable was fully analyzed
func (r *BinaryAnalysisResult) HasBinary() bool {
	return r.BinPath != ""
}

// BinaryAnalysisJob is one application to analyze in a batch
type BinaryAnalysisJob struct {
	ScanID         string
	SourceDir      string
	ToolsDir       string
	AppDir         string
	ExecutableName string
}
