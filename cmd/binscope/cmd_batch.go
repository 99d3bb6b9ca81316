package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/binscope/internal/domain-orchestrators"
	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces"
)

func newBatchCommand(a *app) *cobra.Command {
	var (
		outDir string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "batch <app-dir|file.ipa>...",
		Short: "Analyze many applications concurrently",
		Long: `Analyze several applications with a bounded number of workers. An
application that cannot be analyzed gets an empty result and never stops
the batch.`,
		Example: `  binscope batch apps/*.ipa --workers 8 --json`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			orchestrator, status, err := a.pipeline(ctx)
			if err != nil {
				return err
			}

			var cleanups []func()
			defer func() {
				for _, cleanup := range cleanups {
					cleanup()
				}
			}()

			jobs := make([]entities.BinaryAnalysisJob, 0, len(args))
			inputs := make([]string, 0, len(args))
			for _, input := range args {
				opts := jobOptions{}
				if outDir != "" {
					opts.outDir = filepath.Join(outDir, filepath.Base(input))
				}
				job, cleanup, err := a.prepareJob(ctx, input, opts)
				cleanups = append(cleanups, cleanup)
				if err != nil {
					a.logger.Error("skipping application", interfaces.F("input", input), interfaces.Err(err))
					continue
				}
				jobs = append(jobs, job)
				inputs = append(inputs, input)
			}

			batch := orchestrators.NewBatchOrchestrator(orchestrator, a.cfg.Analysis.Workers, a.logger)
			results := batch.AnalyzeAll(ctx, jobs)

			out := cmd.OutOrStdout()
			if asJSON {
				reports := make([]analysisReport, len(results))
				for i, r := range results {
					reports[i] = analysisReport{Input: inputs[i], Result: r, Status: status.Entries(r.ScanID)}
				}
				return writeJSON(out, reports)
			}
			renderSummary(out, inputs, results)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&outDir, "out", "", "Directory for per-application class dump output")
	flags.String("tools-dir", "", "Directory holding class-dump and dsdump")
	flags.Int("workers", 0, "Number of concurrent analyses (default from config)")
	flags.BoolVar(&asJSON, "json", false, "Print the results as JSON")

	return cmd
}
