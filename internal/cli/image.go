package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "image [prompt]",
		Short: "Generate a picture of your companion",
		Long:  "Generate an image from the prompt plus the persona's portrait description and save it to the gallery.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runImage,
	}

	RootCmd.AddCommand(cmd)
}

func runImage(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open session", err)
	}
	defer s.Close()

	item, err := s.Imagine(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		exitErr("image", err)
	}

	b, _ := json.MarshalIndent(item, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
