package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/gokernel/internal/kernel"
	"github.com/itsmostafa/gokernel/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the kernel protocol over stdin/stdout",
	Long: `Serve reads one JSON message per line from stdin and writes replies and
publications to stdout. Diagnostics go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := cfg.Log.NewLogger(os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		factory := func(pub kernel.Publisher) (server.Kernel, error) {
			s, err := newSession(pub, cfg, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
		return server.New(cmd.InOrStdin(), cmd.OutOrStdout(), factory, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
