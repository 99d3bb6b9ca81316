package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/binscope/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/binscope/internal/domain-orchestrators"
	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces"
	"github.com/ochairo/binscope/internal/domain/services"
	"github.com/ochairo/binscope/internal/external-adapters/plist"
	"github.com/ochairo/binscope/internal/external-adapters/yaml"
)

// ruleRepository builds the configured rule corpus and loads it, so a
// tampered or invalid corpus stops the command before any analysis runs.
func (a *app) ruleRepository(ctx context.Context) (*yaml.RuleRepository, error) {
	rc := a.cfg.Rules
	opts := []yaml.Option{yaml.WithLogger(a.logger)}

	if rc.Path != "" {
		if rc.SHA256 != "" {
			if err := gateways.NewChecksumCalculator().VerifyChecksum(ctx, rc.Path, rc.SHA256); err != nil {
				return nil, fmt.Errorf("rules file %s: %w", rc.Path, err)
			}
		}
		opts = append(opts, yaml.WithRulesFile(rc.Path))
	}

	if rc.SignaturePath != "" {
		verifier, err := gateways.NewRuleSignatureVerifier(rc.KeyringPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, yaml.WithSignature(rc.SignaturePath, verifier))
	}

	repo := yaml.NewRuleRepository(opts...)
	if _, err := repo.ListRules(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// pipeline wires the binary analysis orchestrator
func (a *app) pipeline(ctx context.Context) (*orchestrators.BinaryAnalysisOrchestrator, *gateways.MemoryScanStatus, error) {
	rules, err := a.ruleRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	status := gateways.NewMemoryScanStatus(a.logger)
	o := orchestrators.NewBinaryAnalysisOrchestrator(
		gateways.NewBundleLocator(),
		gateways.NewMachOHeaderReader(),
		gateways.NewMachOExtractor(),
		services.NewBinaryClassifier(),
		gateways.NewClassDumper(a.logger, a.cfg.ClassDump.Timeout),
		services.NewRuleMatcher(rules, a.logger),
		gateways.NewStringsExtractor(a.cfg.Strings.MinLength, a.cfg.Strings.MaxCount),
		status,
		a.logger,
	)
	return o, status, nil
}

// jobOptions are the per-application overrides given on the command line
type jobOptions struct {
	scanID     string
	executable string
	outDir     string
}

// prepareJob turns an input path into an analysis job. IPA archives are
// unpacked into a temporary directory that cleanup removes.
func (a *app) prepareJob(ctx context.Context, input string, opts jobOptions) (entities.BinaryAnalysisJob, func(), error) {
	cleanup := func() {}
	job := entities.BinaryAnalysisJob{
		ScanID:         opts.scanID,
		ToolsDir:       a.cfg.Analysis.ToolsDir,
		ExecutableName: opts.executable,
	}

	info, err := os.Stat(input)
	if err != nil {
		return job, cleanup, fmt.Errorf("cannot access %s: %w", input, err)
	}

	var tempDirs []string
	cleanup = func() {
		for _, dir := range tempDirs {
			if err := os.RemoveAll(dir); err != nil {
				a.logger.Warn("failed to remove temporary directory", interfaces.F("path", dir), interfaces.Err(err))
			}
		}
	}

	switch {
	case info.IsDir():
		job.SourceDir = input
		if job.ScanID == "" {
			abs, err := filepath.Abs(input)
			if err != nil {
				abs = input
			}
			job.ScanID = filepath.Base(abs)
		}
	case gateways.IsIPA(input):
		workDir, err := os.MkdirTemp("", "binscope-ipa-*")
		if err != nil {
			return job, cleanup, fmt.Errorf("failed to create work directory: %w", err)
		}
		tempDirs = append(tempDirs, workDir)

		a.logger.Info("extracting IPA", interfaces.F("ipa", input), interfaces.F("dest", workDir))
		if err := gateways.NewIPAExtractor(a.cfg.Analysis.MaxIPAFileSize).Extract(ctx, input, workDir); err != nil {
			return job, cleanup, fmt.Errorf("failed to extract %s: %w", input, err)
		}
		job.SourceDir = workDir

		if job.ScanID == "" {
			sum, err := gateways.NewChecksumCalculator().CalculateChecksum(ctx, input)
			if err != nil {
				return job, cleanup, err
			}
			job.ScanID = sum
		}
	default:
		return job, cleanup, fmt.Errorf("%s is neither a directory nor an %s file", input, gateways.IPASuffix)
	}

	job.AppDir = opts.outDir
	if job.AppDir == "" {
		outDir, err := os.MkdirTemp("", "binscope-out-*")
		if err != nil {
			return job, cleanup, fmt.Errorf("failed to create output directory: %w", err)
		}
		tempDirs = append(tempDirs, outDir)
		job.AppDir = outDir
	} else if err := os.MkdirAll(job.AppDir, 0o750); err != nil {
		return job, cleanup, fmt.Errorf("failed to create output directory: %w", err)
	}

	if job.ExecutableName == "" {
		job.ExecutableName = a.declaredExecutable(job.SourceDir)
	}
	return job, cleanup, nil
}

// declaredExecutable reads CFBundleExecutable from the bundle's Info.plist.
// Any problem yields "" and the bundle stem is used instead.
func (a *app) declaredExecutable(sourceDir string) string {
	bundleDir, err := gateways.NewBundleLocator().LocateBundle(sourceDir)
	if err != nil {
		return ""
	}
	appInfo, err := plist.NewInfoPlistReader().Read(bundleDir)
	if err != nil {
		a.logger.Warn("failed to read Info.plist", interfaces.F("bundle", bundleDir), interfaces.Err(err))
		return ""
	}
	if appInfo.BundleID != "" {
		a.logger.Info("application bundle",
			interfaces.F("bundle_id", appInfo.BundleID),
			interfaces.F("name", appInfo.Name),
			interfaces.F("version", appInfo.Version),
		)
	}
	return strings.TrimSpace(appInfo.Executable)
}
