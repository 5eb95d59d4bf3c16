package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the conversation",
		Long: "Clear the conversation and reset the mood. Memories and gallery are kept unless " +
			"--hard is given, which deletes everything including preferences.",
		Run: runReset,
	}

	cmd.Flags().Bool("hard", false, "Delete every record (irreversible)")

	RootCmd.AddCommand(cmd)
}

func runReset(cmd *cobra.Command, args []string) {
	hard, _ := cmd.Flags().GetBool("hard")

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open session", err)
	}
	defer s.Close()

	if hard {
		err = s.HardReset(cmd.Context())
	} else {
		err = s.ClearChat(cmd.Context())
	}
	if err != nil {
		exitErr("reset", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"hard":%t}`+"\n", hard)
}
