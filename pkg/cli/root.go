// Package cli implements the scenestream command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/DeBrosOfficial/scenestream/pkg/config"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
)

// defaultConfigName is looked up in ~/.scenestream when --config is not set.
const defaultConfigName = "scenestream.yaml"

// BuildInfo is populated via -ldflags at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand assembles every subcommand.
func NewRootCommand(build BuildInfo) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "scenestream",
		Short:         "Stream exported scenes to a headset over the local network",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML config (default ~/.scenestream/"+defaultConfigName+")")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Override logging.format (console, json)")

	root.AddCommand(
		newRunCommand(flags, build),
		newDiscoverCommand(flags),
		newReceiveCommand(flags),
		newVersionCommand(build),
	)
	return root
}

// loadConfig resolves, loads and validates the config, applying flag overrides.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	path := f.configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath(defaultConfigName)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		return nil, fmt.Errorf("invalid configuration: %w", multierr.Combine(errs...))
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*logging.ColoredLogger, error) {
	return logging.NewLogger(logging.Options{
		Level:  cfg.Level,
		Format: cfg.Format,
		Color:  cfg.Color,
		File:   cfg.OutputFile,
	})
}
