package orchestrators

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces"
)

// BinaryAnalyzer analyzes a single application
type BinaryAnalyzer interface {
	AnalyzeBinary(ctx context.Context, scanID, sourceDir, toolsDir, appDir, executableName string) *entities.BinaryAnalysisResult
}

// BatchOrchestrator analyzes many applications concurrently
type BatchOrchestrator struct {
	analyzer BinaryAnalyzer
	workers  int
	logger   interfaces.Logger
}

// NewBatchOrchestrator creates a batch orchestrator. Workers <= 0 uses the number of CPUs.
func NewBatchOrchestrator(analyzer BinaryAnalyzer, workers int, logger interfaces.Logger) *BatchOrchestrator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &BatchOrchestrator{analyzer: analyzer, workers: workers, logger: logger}
}

// AnalyzeAll runs every job and returns results in job order. A failing
// application degrades to its default result and never stops the batch.
// Jobs not started before ctx is canceled get the default result.
func (o *BatchOrchestrator) AnalyzeAll(ctx context.Context, jobs []entities.BinaryAnalysisJob) []*entities.BinaryAnalysisResult {
	results := make([]*entities.BinaryAnalysisResult, len(jobs))
	startTime := time.Now()

	o.logger.Info("starting batch analysis",
		interfaces.F("jobs", len(jobs)),
		interfaces.F("workers", o.workers),
	)

	g := new(errgroup.Group)
	g.SetLimit(o.workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = entities.NewBinaryAnalysisResult(job.ScanID)
				return nil
			}
			results[i] = o.analyzer.AnalyzeBinary(ctx, job.ScanID, job.SourceDir, job.ToolsDir, job.AppDir, job.ExecutableName)
			if results[i] == nil {
				results[i] = entities.NewBinaryAnalysisResult(job.ScanID)
			}
			return nil
		})
	}
	_ = g.Wait()

	analyzed := 0
	for _, r := range results {
		if r.HasBinary() {
			analyzed++
		}
	}
	o.logger.Info("batch analysis completed",
		interfaces.F("jobs", len(jobs)),
		interfaces.F("analyzed", analyzed),
		interfaces.F("duration", time.Since(startTime).String()),
	)

	return results
}
