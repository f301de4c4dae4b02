package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/itsmostafa/gokernel/internal/config"
	"github.com/itsmostafa/gokernel/internal/display"
	"github.com/itsmostafa/gokernel/internal/engine"
	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/kernel"
	"github.com/itsmostafa/gokernel/internal/version"
)

var configPath string
var logLevel string
var displayPref string
var historyPath string
var noHistory bool

var rootCmd = &cobra.Command{
	Use:   "gokernel",
	Short: "Interactive JavaScript kernel for notebook front-ends",
	Long: `gokernel runs JavaScript cells in a persistent interpreter session, captures
everything they print and renders the value of the last expression as plain
text or LaTeX.

Use "serve" to speak the kernel protocol over stdin/stdout, or "console" for
an interactive terminal session.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("gokernel %s\n", version.String()))

	// Config file flag with env var fallback
	defaultConfig := os.Getenv("GOKERNEL_CONFIG")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to gokernel.toml (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&displayPref, "display", "", "Value display preference (plain, latex)")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "", "Path to the history database")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Do not record executed cells")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}

	cfg.Merge(&config.Config{
		Display: config.DisplayConfig{Preference: displayPref},
		History: config.HistoryConfig{Disabled: noHistory, Path: historyPath},
		Log:     config.LogConfig{Level: logLevel},
	})
	return cfg, nil
}

// newSession builds a kernel session from the configuration.
func newSession(pub kernel.Publisher, cfg *config.Config, logger *slog.Logger) (*kernel.Session, error) {
	pref, err := display.ParsePreference(cfg.Display.Preference)
	if err != nil {
		return nil, err
	}

	engineOpts := engine.Options{
		MaxCallStackSize: cfg.Engine.MaxCallStackSize,
		IncludePaths:     append([]string{}, cfg.Engine.IncludePaths...),
	}
	if wd, err := os.Getwd(); err == nil {
		engineOpts.IncludePaths = append(engineOpts.IncludePaths, wd)
		if !cfg.Engine.DisableFS {
			engineOpts.FS = engine.NewFS(wd)
		}
	}

	var store *history.Store
	if !cfg.History.Disabled {
		store, err = history.Open(cfg.History.Path, uuid.NewString())
		if err != nil {
			return nil, err
		}
		logger.Debug("recording history", "path", cfg.History.Path, "session", store.Session())
	}

	s, err := kernel.New(pub, kernel.Options{
		Engine:     engineOpts,
		Preference: pref,
		Preload:    cfg.Engine.Preload,
		History:    store,
		Logger:     logger,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return s, nil
}
