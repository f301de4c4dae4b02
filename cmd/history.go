package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/gokernel/internal/history"
)

var historyLimit int
var historyUnique bool
var historySession int

var historyCmd = &cobra.Command{
	Use:   "history [pattern]",
	Short: "Show recorded cells",
	Long: `History prints cells recorded by previous sessions. With a glob pattern it
searches every session; with --session it lists one session (0 is the most
recent, -1 the one before); otherwise it shows the last cells.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := history.OpenReader(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		var entries []history.Entry
		switch {
		case len(args) == 1:
			entries, err = store.Search(args[0], historyLimit, historyUnique)
		case cmd.Flags().Changed("session"):
			entries, err = store.Range(historySession, 1, 0)
		default:
			entries, err = store.Tail(historyLimit)
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, e := range entries {
			prefix := fmt.Sprintf("%d/%d: ", e.Session, e.Line)
			indent := strings.Repeat(" ", len(prefix))
			fmt.Fprintf(w, "%s%s\n", prefix, strings.ReplaceAll(e.Source, "\n", "\n"+indent))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of cells to show (0 = all)")
	historyCmd.Flags().BoolVar(&historyUnique, "unique", false, "Show each distinct cell once when searching")
	historyCmd.Flags().IntVar(&historySession, "session", 0, "List the cells of one session")

	rootCmd.AddCommand(historyCmd)
}
