package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion/internal/companion"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to your companion",
		Long: "Send one message, or start an interactive conversation when no message is given.\n" +
			"In a conversation: /image <prompt>, /thoughts on|off, /mood, /status, /quit.",
		Run: runChat,
	}

	cmd.Flags().Bool("offline", false, "Answer from the persona's phrase table without calling the model")
	cmd.Flags().Bool("json", false, "Print the full turn as JSON")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	offline, _ := cmd.Flags().GetBool("offline")
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open session", err)
	}
	defer s.Close()

	send := s.Send
	if offline {
		send = s.SendLocal
	}

	if len(args) > 0 {
		turn, err := send(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			exitErr("chat", err)
		}
		printTurn(cmd.OutOrStdout(), s, turn, asJSON)
		return
	}

	if err := repl(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), s, send, asJSON); err != nil {
		exitErr("chat", err)
	}
}

type sendFunc func(ctx context.Context, text string) (*companion.Turn, error)

func repl(ctx context.Context, in io.Reader, out io.Writer, s *companion.Session, send sendFunc, asJSON bool) error {
	st := s.Status()
	fmt.Fprintln(out, st.Line)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := slashCommand(ctx, out, s, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		turn, err := send(ctx, line)
		if err != nil {
			return err
		}
		printTurn(out, s, turn, asJSON)
	}
}

func slashCommand(ctx context.Context, out io.Writer, s *companion.Session, line string) (bool, error) {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/image":
		item, err := s.Imagine(ctx, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, item.MediaURL)
	case "/thoughts":
		on, err := parseToggle(rest)
		if err != nil {
			return false, err
		}
		if err := s.SetShowThoughts(ctx, on); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "thoughts %s\n", rest)
	case "/mood":
		r := s.Mood()
		fmt.Fprintf(out, "mood %d (%s)\n", r.State, r.Tier)
	case "/status":
		fmt.Fprintln(out, s.Status().Line)
	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
	return false, nil
}

func printTurn(out io.Writer, s *companion.Session, turn *companion.Turn, asJSON bool) {
	if asJSON {
		b, _ := json.MarshalIndent(turn, "", "  ")
		fmt.Fprintln(out, string(b))
		return
	}
	if turn.Reply.Thought != "" && s.ShowThoughts() {
		fmt.Fprintf(out, "(%s)\n", turn.Reply.Thought)
	}
	fmt.Fprintln(out, turn.Reply.Content)
}

func parseToggle(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
