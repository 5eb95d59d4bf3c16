package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Synthesize speech",
		Long:  "Synthesize text (argument or stdin) in the companion's voice. Long text is spoken in segments.",
		Run:   runSpeak,
	}

	cmd.Flags().StringP("output", "o", "", "Audio file to write (required)")
	cmd.MarkFlagRequired("output")

	RootCmd.AddCommand(cmd)
}

func runSpeak(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")

	text := strings.Join(args, " ")
	if text == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			exitErr("read stdin", err)
		}
		text = string(data)
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open session", err)
	}
	defer s.Close()

	audio, err := s.Speak(cmd.Context(), text)
	if err != nil {
		exitErr("speak", err)
	}
	if err := os.WriteFile(output, audio, 0o644); err != nil {
		exitErr("write audio", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"file":%q,"bytes":%d}`+"\n", output, len(audio))
}
