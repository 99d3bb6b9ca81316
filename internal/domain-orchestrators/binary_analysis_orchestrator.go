// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces"
	"github.com/ochairo/binscope/internal/domain/interfaces/gateways"
	"github.com/ochairo/binscope/internal/domain/interfaces/services"
)

// Scan status messages
const (
	StatusStarting       = "Starting Binary Analysis"
	StatusSkipping       = "Skipping binary analysis"
	StatusHeaderFailed   = "Failed to read Mach-O header"
	StatusAnalysisFailed = "Failed to run IPA Binary Analysis"
	StatusFinished       = "Binary analysis finished"
)

// BinaryAnalysisOrchestrator runs the binary analysis pipeline of one
// application: locate the bundle and executable, extract Mach-O facts,
// classify, dump classes, match rules and extract strings.
type BinaryAnalysisOrchestrator struct {
	locator    gateways.BundleLocator
	headers    gateways.HeaderReader
	extractor  gateways.MachOExtractor
	classifier services.BinaryClassifier
	dumper     gateways.ClassDumper
	matcher    services.RuleMatcher
	strings    gateways.StringExtractor
	status     gateways.ScanStatusReporter
	logger     interfaces.Logger
}

// NewBinaryAnalysisOrchestrator creates a new binary analysis orchestrator
func NewBinaryAnalysisOrchestrator(
	locator gateways.BundleLocator,
	headers gateways.HeaderReader,
	extractor gateways.MachOExtractor,
	classifier services.BinaryClassifier,
	dumper gateways.ClassDumper,
	matcher services.RuleMatcher,
	strings gateways.StringExtractor,
	status gateways.ScanStatusReporter,
	logger interfaces.Logger,
) *BinaryAnalysisOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if status == nil {
		status = discardStatus{}
	}

	return &BinaryAnalysisOrchestrator{
		locator:    locator,
		headers:    headers,
		extractor:  extractor,
		classifier: classifier,
		dumper:     dumper,
		matcher:    matcher,
		strings:    strings,
		status:     status,
		logger:     logger,
	}
}

// AnalyzeBinary analyzes the application unpacked under sourceDir. It never
// fails: problems are logged and recorded in the scan status, and the
// all-default result is returned when the analysis cannot complete.
func (o *BinaryAnalysisOrchestrator) AnalyzeBinary(
	ctx context.Context,
	scanID, sourceDir, toolsDir, appDir, executableName string,
) (result *entities.BinaryAnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error(StatusAnalysisFailed,
				interfaces.F("scan_id", scanID),
				interfaces.F("panic", fmt.Sprint(r)),
				interfaces.F("stack", string(debug.Stack())),
			)
			o.status.Append(scanID, StatusAnalysisFailed, fmt.Sprintf("panic: %v", r))
			result = entities.NewBinaryAnalysisResult(scanID)
		}
	}()

	startTime := time.Now()
	o.logger.Info(StatusStarting, interfaces.F("scan_id", scanID), interfaces.F("source", sourceDir))
	o.status.Append(scanID, StatusStarting, "")

	analyzed, err := o.analyze(ctx, scanID, sourceDir, toolsDir, appDir, executableName)
	if err != nil {
		o.logger.Error(StatusAnalysisFailed,
			interfaces.F("scan_id", scanID),
			interfaces.Err(err),
		)
		o.status.Append(scanID, StatusAnalysisFailed, err.Error())
		return entities.NewBinaryAnalysisResult(scanID)
	}

	o.logger.Info(StatusFinished,
		interfaces.F("scan_id", scanID),
		interfaces.F("binary", analyzed.BinPath),
		interfaces.F("type", string(analyzed.BinType)),
		interfaces.F("findings", len(analyzed.BinCodeAnalysis)),
		interfaces.F("duration", time.Since(startTime).String()),
	)
	return analyzed
}

// analyze returns an error only for failures that void the whole result
func (o *BinaryAnalysisOrchestrator) analyze(
	ctx context.Context,
	scanID, sourceDir, toolsDir, appDir, executableName string,
) (*entities.BinaryAnalysisResult, error) {
	result := entities.NewBinaryAnalysisResult(scanID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 1: Locate the bundle and its executable
	bundleDir, err := o.locator.LocateBundle(sourceDir)
	if err != nil {
		o.logger.Warn("Could not find .app directory",
			interfaces.F("scan_id", scanID),
			interfaces.Err(err),
		)
		return result, nil
	}

	ref, err := o.locator.ResolveExecutable(bundleDir, executableName)
	if err != nil {
		msg := fmt.Sprintf("Cannot find binary in %s. Skipping binary analysis.", bundleDir)
		if !errors.Is(err, entities.ErrExecutableNotFound) {
			msg = fmt.Sprintf("%s %v", msg, err)
		}
		o.logger.Warn(msg, interfaces.F("scan_id", scanID))
		o.status.Append(scanID, StatusSkipping, msg)
		return result, nil
	}
	binPath := ref.Path

	// Step 2: Checksec, symbols and libraries
	extractOK := true
	extraction, err := o.extract(ctx, binPath)
	if err != nil {
		extractOK = false
		extraction = entities.MachOExtraction{}
		fields := []interfaces.Field{
			interfaces.F("scan_id", scanID),
			interfaces.F("binary", ref.Name),
			interfaces.Err(err),
		}
		var p *extractorPanic
		if errors.As(err, &p) {
			fields = append(fields, interfaces.F("stack", string(p.stack)))
		}
		o.logger.Error("Running Mach-O analysis failed", fields...)
	}
	symbols := nonNil(extraction.Symbols)
	libraries := nonNil(extraction.Libraries)

	// Step 3: Mach-O header
	headerOK := true
	info, err := o.headers.ReadHeader(binPath)
	if err != nil {
		headerOK = false
		info = entities.MachHeaderInfo{}
		o.logger.Warn(StatusHeaderFailed,
			interfaces.F("scan_id", scanID),
			interfaces.F("binary", ref.Name),
			interfaces.Err(err),
		)
		o.status.Append(scanID, StatusHeaderFailed, err.Error())
	}

	// Step 4: Swift or Objective-C
	kind := o.classifier.Classify(libraries)

	// Step 5: Class dump
	dump, err := o.dumper.Dump(ctx, scanID, toolsDir, binPath, appDir, kind)
	if err != nil {
		return nil, fmt.Errorf("class dump failed: %w", err)
	}

	// Step 6: Binary rules
	findings := make(map[string]entities.BinaryFinding)
	if err := o.matcher.Match(ctx, scanID, findings, symbols, dump); err != nil {
		return nil, fmt.Errorf("binary rule matching failed: %w", err)
	}

	// Step 7: Strings
	o.logger.Info("Running strings against the binary", interfaces.F("scan_id", scanID))
	strs, err := o.strings.Extract(ctx, binPath)
	if err != nil {
		return nil, fmt.Errorf("string extraction failed: %w", err)
	}

	// Step 8: Assemble
	result.Checksec = extraction.Checksec
	result.Symbols = symbols
	result.Libraries = libraries
	result.BinCodeAnalysis = findings
	result.Strings = nonNil(strs)
	result.BinInfo = info
	result.BinType = kind
	if extractOK && headerOK {
		result.BinPath = binPath
	}

	return result, nil
}

// extractorPanic is a panic raised while parsing load commands of a
// malformed binary. It fails the extraction step only.
type extractorPanic struct {
	value any
	stack []byte
}

func (p *extractorPanic) Error() string {
	return fmt.Sprintf("mach-o extraction panicked: %v", p.value)
}

func (o *BinaryAnalysisOrchestrator) extract(ctx context.Context, binPath string) (extraction entities.MachOExtraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			extraction = entities.MachOExtraction{}
			err = &extractorPanic{value: r, stack: debug.Stack()}
		}
	}()
	return o.extractor.Extract(ctx, binPath)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

type discardStatus struct{}

func (discardStatus) Append(_, _, _ string) {}
