package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/ochairo/binscope/internal/domain/entities"
)

var (
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func severityLabel(severity string) string {
	label := fmt.Sprintf("%-7s", strings.ToUpper(severity))
	switch severity {
	case entities.SeverityHigh:
		return red(label)
	case entities.SeverityWarning:
		return yellow(label)
	case entities.SeveritySecure:
		return green(label)
	default:
		return cyan(label)
	}
}

// severityRank orders findings with the most severe first
func severityRank(severity string) int {
	switch severity {
	case entities.SeverityHigh:
		return 0
	case entities.SeverityWarning:
		return 1
	case entities.SeverityInfo:
		return 2
	default:
		return 3
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// analysisReport is the JSON document of one analyzed application
type analysisReport struct {
	Input  string                         `json:"input"`
	Result *entities.BinaryAnalysisResult `json:"result"`
	Status []entities.ScanStatusEntry     `json:"scan_status,omitempty"`
}

func renderResult(w io.Writer, input string, r *entities.BinaryAnalysisResult, status []entities.ScanStatusEntry, showStrings bool) {
	fmt.Fprintf(w, "🔍 %s %s\n", bold("Binary analysis of"), input)
	fmt.Fprintf(w, "   Scan ID: %s\n", r.ScanID)

	if !r.HasBinary() && r.BinInfo.IsZero() && len(r.Libraries) == 0 {
		fmt.Fprintf(w, "\n%s No executable was analyzed\n", yellow("⚠"))
		renderStatus(w, status)
		return
	}

	binPath := r.BinPath
	if binPath == "" {
		binPath = faint("(incomplete)")
	}
	fmt.Fprintf(w, "   Binary:  %s\n", binPath)
	fmt.Fprintf(w, "   Type:    %s\n", r.BinType)
	renderHeader(w, r.BinInfo)

	renderChecksec(w, r.Checksec)

	fmt.Fprintf(w, "\n📚 %s (%d)\n", bold("Libraries"), len(r.Libraries))
	for _, lib := range r.Libraries {
		fmt.Fprintf(w, "   %s\n", lib)
	}

	renderFindings(w, r.BinCodeAnalysis)

	fmt.Fprintf(w, "\n🔤 %s: %d\n", bold("Strings"), len(r.Strings))
	if showStrings {
		for _, s := range r.Strings {
			fmt.Fprintf(w, "   %s\n", s)
		}
	}

	renderStatus(w, status)
}

func renderHeader(w io.Writer, h entities.MachHeaderInfo) {
	if h.IsZero() {
		fmt.Fprintf(w, "   Header:  %s\n", faint("unavailable"))
		return
	}
	fmt.Fprintf(w, "   Arch:    %s %s (%s) %s\n", h.Arch, h.SubArch, h.Bit, endianName(h.Endian))
	if h.Fat {
		fmt.Fprintf(w, "   Slices:  %d\n", len(h.Architectures))
		for _, a := range h.Architectures {
			fmt.Fprintf(w, "     - %s %s %d-bit %s\n", a.Arch, a.SubArch, a.Bits, endianName(a.Endian))
		}
	}
}

func endianName(tag string) string {
	switch tag {
	case "<":
		return "little-endian"
	case ">":
		return "big-endian"
	default:
		return tag
	}
}

func renderChecksec(w io.Writer, c entities.ChecksecReport) {
	fmt.Fprintf(w, "\n🛡  %s\n", bold("Checksec"))
	if c.IsEmpty() {
		fmt.Fprintf(w, "   %s\n", faint("not available"))
		return
	}

	items := []struct {
		name string
		item *entities.ChecksecItem
	}{
		{"NX", c.NX},
		{"PIE", c.PIE},
		{"Stack Canary", c.StackCanary},
		{"ARC", c.ARC},
		{"RPath", c.RPath},
		{"Code Signature", c.CodeSignature},
		{"Encrypted", c.Encrypted},
		{"Restricted", c.Restricted},
		{"Symbols Stripped", c.SymbolsStripped},
	}
	for _, it := range items {
		if it.item == nil {
			continue
		}
		mark := green("✓")
		if !it.item.Enabled {
			mark = red("✗")
		}
		fmt.Fprintf(w, "   %s %-17s %s %s\n", mark, it.name, severityLabel(it.item.Severity), faint(it.item.Description))
	}
}

func renderFindings(w io.Writer, findings map[string]entities.BinaryFinding) {
	fmt.Fprintf(w, "\n🚩 %s (%d)\n", bold("Findings"), len(findings))

	ids := make([]string, 0, len(findings))
	for id := range findings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := findings[ids[i]], findings[ids[j]]
		if ra, rb := severityRank(a.Severity), severityRank(b.Severity); ra != rb {
			return ra < rb
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		f := findings[id]
		fmt.Fprintf(w, "   %s %s\n", severityLabel(f.Severity), bold(id))
		fmt.Fprintf(w, "           %s\n", f.Description)
		var refs []string
		if f.CWE != "" {
			refs = append(refs, f.CWE)
		}
		if f.OWASPMobile != "" {
			refs = append(refs, "OWASP "+f.OWASPMobile)
		}
		if f.MASVS != "" {
			refs = append(refs, "MASVS "+f.MASVS)
		}
		if len(refs) > 0 {
			fmt.Fprintf(w, "           %s\n", faint(strings.Join(refs, " | ")))
		}
	}
}

func renderStatus(w io.Writer, status []entities.ScanStatusEntry) {
	if len(status) == 0 {
		return
	}
	fmt.Fprintf(w, "\n📝 %s\n", bold("Scan status"))
	for _, e := range status {
		line := e.Message
		if e.Detail != "" {
			line += ": " + e.Detail
		}
		fmt.Fprintf(w, "   %s %s\n", faint(e.Timestamp.Format("15:04:05")), line)
	}
}

// renderSummary prints one line per application of a batch
func renderSummary(w io.Writer, inputs []string, results []*entities.BinaryAnalysisResult) {
	fmt.Fprintf(w, "📦 %s (%d applications)\n\n", bold("Batch analysis"), len(results))
	for i, r := range results {
		mark := green("✓")
		if !r.HasBinary() {
			mark = yellow("⚠")
		}
		high := 0
		for _, f := range r.BinCodeAnalysis {
			if f.Severity == entities.SeverityHigh {
				high++
			}
		}
		fmt.Fprintf(w, "   %s %-40s %-12s findings: %-3d high: %s\n",
			mark, inputs[i], r.BinType, len(r.BinCodeAnalysis), highCount(high))
	}
}

func highCount(n int) string {
	if n > 0 {
		return red(n)
	}
	return fmt.Sprint(n)
}
