package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/gokernel/internal/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start an interactive terminal session",
	Long: `Console reads cells from the terminal, continuing a cell while it is
incomplete, and prints captured output and results as they are published.
Type exit or press Ctrl-D to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Keep informational logs out of the interactive output
		if logLevel == "" {
			cfg.Log.Level = "warn"
		}
		logger := cfg.Log.NewLogger(os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		c := console.New(cmd.InOrStdin(), cmd.OutOrStdout())
		s, err := newSession(c, cfg, logger)
		if err != nil {
			return err
		}
		return c.Run(ctx, s)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
