package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:       "thoughts on|off",
		Short:     "Ask for the companion's internal thoughts alongside replies",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		Run:       runThoughts,
	}

	RootCmd.AddCommand(cmd)
}

func runThoughts(cmd *cobra.Command, args []string) {
	on, err := parseToggle(args[0])
	if err != nil {
		exitErr("thoughts", err)
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open session", err)
	}
	defer s.Close()

	if err := s.SetShowThoughts(cmd.Context(), on); err != nil {
		exitErr("thoughts", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"show_thoughts":%t}`+"\n", on)
}
