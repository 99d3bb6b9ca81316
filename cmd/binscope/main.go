package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ochairo/binscope/internal/config"
	"github.com/ochairo/binscope/internal/domain/interfaces"
	"github.com/ochairo/binscope/internal/external-adapters/logrus"
)

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"tools-dir":  "analysis.tools_dir",
	"workers":    "analysis.workers",
	"rules":      "rules.path",
	"rules-sig":  "rules.signature_path",
	"keyring":    "rules.keyring_path",
	"rules-sha":  "rules.sha256",
}

// app carries the state shared by all subcommands
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "binscope",
		Short: "Static binary analysis of iOS applications",
		Long: `binscope locates the executable of an iOS application bundle or IPA and
reports its Mach-O header, hardening checks, linked libraries, rule findings
over symbols and class metadata, and embedded strings.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default ./binscope.yaml or ~/.binscope/binscope.yaml)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("rules", "", "Binary rules file (default: built-in rules)")

	root.AddCommand(
		newAnalyzeCommand(a),
		newBatchCommand(a),
		newHeaderCommand(a),
		newRulesCommand(a),
	)
	return root
}

// setup loads the configuration with the flags of cmd taking precedence
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v := config.New(a.cfgFile)
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logrus.New(logrus.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}).With(interfaces.F("command", cmd.Name()))
	if cfg.File != "" {
		a.logger.Debug("configuration loaded", interfaces.F("file", cfg.File))
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}
