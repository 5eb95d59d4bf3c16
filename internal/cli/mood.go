package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mood",
		Short: "Show or change the companion's mood",
		Long: "Show the current mood and presence. --set overrides the mood (clamped to 0-100); " +
			"--explain shows how a message would move it without recording anything.",
		Run: runMood,
	}

	cmd.Flags().Int("set", -1, "Set the mood to this value")
	cmd.Flags().String("explain", "", "Evaluate a message against the current mood")

	RootCmd.AddCommand(cmd)
}

func runMood(cmd *cobra.Command, args []string) {
	explain, _ := cmd.Flags().GetString("explain")

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open session", err)
	}
	defer s.Close()

	if cmd.Flags().Changed("set") {
		n, _ := cmd.Flags().GetInt("set")
		if _, err := s.SetMood(cmd.Context(), n); err != nil {
			exitErr("set mood", err)
		}
	}

	if strings.TrimSpace(explain) != "" {
		printJSON(cmd, s.Explain(explain))
		return
	}
	printJSON(cmd, s.Status())
}
