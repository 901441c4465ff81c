package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/frommie/xmpmetadata/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the state shared by all commands.
type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
	logger     *zap.Logger
}

// newLogger builds a logger from the log settings. Verbose forces debug
// level.
func newLogger(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}
	if verbose {
		level.SetLevel(zap.DebugLevel)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.configPath == "" {
		a.cfg = config.NewDefaultConfig()
	} else {
		cfg, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	logger, err := newLogger(a.cfg.Log, a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "xmpmetadata",
		Short: "Write and read XMP metadata of generated images",
		Long: `xmpmetadata embeds descriptive XMP metadata (creator, title, keywords,
accessibility text, ...) into JPEG and PNG images and reads it back.

Examples:
  xmpmetadata save --title "Sunset" --creator "Alice; Bob" render.png
  xmpmetadata load --raw output/ComfyUI_00001_.png
  xmpmetadata widget prompt.json 3 seed --as int
  xmpmetadata format --civitai --prompt "a cat" --steps 20`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Show progress and debug logs")

	rootCmd.AddCommand(newSaveCommand(a))
	rootCmd.AddCommand(newLoadCommand(a))
	rootCmd.AddCommand(newWidgetCommand(a))
	rootCmd.AddCommand(newFormatCommand(a))
	rootCmd.AddCommand(newStemCommand(a))

	return rootCmd
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		os.Exit(1)
	}
}
