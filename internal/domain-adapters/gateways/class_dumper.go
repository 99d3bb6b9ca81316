package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces"
)

// Class dump tools and output file
const (
	ClassDumpTool   = "class-dump"
	SwiftDumpTool   = "dsdump"
	ClassDumpOutput = "classdump.txt"
)

// ClassDumper runs class-dump (Objective-C) or dsdump (Swift) against an
// executable and stores the output next to the application.
type ClassDumper struct {
	defaultTimeout time.Duration
	logger         interfaces.Logger
}

// NewClassDumper creates a new class dumper. A zero timeout means two minutes.
func NewClassDumper(logger interfaces.Logger, timeout time.Duration) *ClassDumper {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ClassDumper{defaultTimeout: timeout, logger: logger}
}

// ExecuteConfig describes one tool invocation
type ExecuteConfig struct {
	Tool       string
	Args       []string
	WorkingDir string
	Timeout    time.Duration
}

// ExecuteResult contains the result of a tool run
type ExecuteResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
	Error    error
}

// Execute runs a tool and captures its output
func (d *ClassDumper) Execute(ctx context.Context, config ExecuteConfig) *ExecuteResult {
	startTime := time.Now()
	result := &ExecuteResult{}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = d.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: Tool path is resolved from the tools directory or PATH
	cmd := exec.CommandContext(execCtx, config.Tool, config.Args...)
	cmd.WaitDelay = time.Second
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		result.ExitCode = -1
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.TimedOut = true
			result.Error = fmt.Errorf("%s timed out after %v", filepath.Base(config.Tool), timeout)
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		}
		return result
	}

	result.Success = true
	return result
}

// ToolFor returns the tool name and arguments used for a binary kind
func ToolFor(kind entities.BinaryKind, binPath string) (string, []string) {
	if kind == entities.BinaryKindSwift {
		return SwiftDumpTool, []string{"--swift", "--objc", "-vv", binPath}
	}
	return ClassDumpTool, []string{binPath}
}

// ResolveTool looks for the tool in toolsDir first and then on PATH
func ResolveTool(toolsDir, name string) (string, error) {
	if toolsDir != "" {
		candidate := filepath.Join(toolsDir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}

// Dump runs the class dump tool matching kind. A missing tool or a failing
// run yields an empty dump; only a timeout or cancellation is an error.
func (d *ClassDumper) Dump(
	ctx context.Context,
	scanID, toolsDir, binPath, appDir string,
	kind entities.BinaryKind,
) (entities.ClassDump, error) {
	name, args := ToolFor(kind, binPath)

	tool, err := ResolveTool(toolsDir, name)
	if err != nil {
		d.logger.Warn("class dump tool not available, skipping",
			interfaces.F("scan_id", scanID),
			interfaces.F("tool", name),
		)
		return entities.ClassDump{}, nil
	}

	d.logger.Info("dumping classes",
		interfaces.F("scan_id", scanID),
		interfaces.F("tool", name),
		interfaces.F("binary", filepath.Base(binPath)),
	)

	result := d.Execute(ctx, ExecuteConfig{Tool: tool, Args: args, WorkingDir: appDir})
	if !result.Success {
		if result.TimedOut {
			return entities.ClassDump{}, result.Error
		}
		if err := ctx.Err(); err != nil {
			return entities.ClassDump{}, err
		}
		d.logger.Warn("class dump failed",
			interfaces.F("scan_id", scanID),
			interfaces.F("tool", name),
			interfaces.F("exit_code", result.ExitCode),
			interfaces.F("stderr", truncate(result.Stderr, 512)),
		)
		return entities.ClassDump{}, nil
	}

	dump := entities.ClassDump{Tool: name, Content: result.Stdout}
	if appDir != "" && dump.Content != "" {
		out := filepath.Join(appDir, ClassDumpOutput)
		if err := os.WriteFile(out, []byte(dump.Content), 0o600); err != nil {
			d.logger.Warn("failed to save class dump",
				interfaces.F("scan_id", scanID),
				interfaces.F("path", out),
				interfaces.Err(err),
			)
		} else {
			dump.Path = out
		}
	}

	d.logger.Debug("class dump completed",
		interfaces.F("scan_id", scanID),
		interfaces.F("bytes", len(dump.Content)),
		interfaces.F("duration", result.Duration.String()),
	)
	return dump, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
