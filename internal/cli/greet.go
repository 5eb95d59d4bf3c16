package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "greet",
		Short: "Let your companion open the conversation",
		Run:   runGreet,
	}

	RootCmd.AddCommand(cmd)
}

func runGreet(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open session", err)
	}
	defer s.Close()

	msg, err := s.Greet(cmd.Context())
	if err != nil {
		exitErr("greet", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg.Content)
}
