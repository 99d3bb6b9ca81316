package main

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCommand(a *app) *cobra.Command {
	var (
		opts        jobOptions
		asJSON      bool
		showStrings bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <app-dir|file.ipa>",
		Short: "Analyze the executable of one application",
		Long: `Analyze the primary executable of an unpacked application directory or
an .ipa archive. The executable name is taken from --executable, then from
CFBundleExecutable in Info.plist, then from the bundle name.`,
		Example: `  # Analyze an IPA
  binscope analyze MyApp.ipa

  # Analyze an unpacked application with class-dump tools from ./tools
  binscope analyze ./MyApp --tools-dir ./tools --out ./report

  # Machine-readable output
  binscope analyze MyApp.ipa --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			input := args[0]

			job, cleanup, err := a.prepareJob(ctx, input, opts)
			defer cleanup()
			if err != nil {
				return err
			}

			orchestrator, status, err := a.pipeline(ctx)
			if err != nil {
				return err
			}

			result := orchestrator.AnalyzeBinary(ctx, job.ScanID, job.SourceDir, job.ToolsDir, job.AppDir, job.ExecutableName)
			entries := status.Entries(job.ScanID)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, analysisReport{Input: input, Result: result, Status: entries})
			}
			renderResult(out, input, result, entries, showStrings)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.executable, "executable", "", "Executable name inside the bundle")
	flags.StringVar(&opts.scanID, "scan-id", "", "Scan identifier (default: SHA-256 of the IPA or the directory name)")
	flags.StringVar(&opts.outDir, "out", "", "Directory for class dump output (default: temporary)")
	flags.String("tools-dir", "", "Directory holding class-dump and dsdump")
	flags.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	flags.BoolVar(&showStrings, "strings", false, "List extracted strings")

	return cmd
}
