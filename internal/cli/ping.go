package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the model API is reachable",
		Run:   runPing,
	}

	RootCmd.AddCommand(cmd)
}

func runPing(cmd *cobra.Command, args []string) {
	if err := newGateway().Ping(cmd.Context()); err != nil {
		exitErr("ping", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"base_url":%q}`+"\n", cfg.Gateway.BaseURL)
}
