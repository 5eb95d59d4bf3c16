package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/companion/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show the history and memories the next reply would see",
		Long:  "Collect the recent conversation and greedily pack the best-scoring memories into the budget.",
		Run:   runContext,
	}

	cmd.Flags().Int("history", 0, "Messages of history (default: memory.history_limit)")
	cmd.Flags().IntP("budget", "b", 0, "Max bytes of memory content (default: memory.budget)")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	history, _ := cmd.Flags().GetInt("history")
	budget, _ := cmd.Flags().GetInt("budget")
	if history <= 0 {
		history = cfg.Memory.HistoryLimit
	}
	if budget <= 0 {
		budget = cfg.Memory.Budget
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	result, err := store.BuildContext(cmd.Context(), s, store.ContextParams{
		HistoryLimit: history,
		Budget:       budget,
	})
	if err != nil {
		exitErr("context", err)
	}
	printJSON(cmd, result)
}
