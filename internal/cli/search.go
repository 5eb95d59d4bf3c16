package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion/internal/model"
	"github.com/rcliao/companion/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the conversation by keyword",
		Long:  "Search message text and recorded thoughts for matching text.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().String("role", "", "Filter by role: user or assistant")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.SearchMessages(cmd.Context(), store.SearchParams{
		Query: query,
		Role:  model.Role(role),
		Limit: limit,
	})
	if err != nil {
		exitErr("search", err)
	}
	printJSON(cmd, results)
}
