package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion/internal/store"
)

func init() {
	history := &cobra.Command{
		Use:   "history",
		Short: "List recent messages, newest first",
		Run:   runHistory,
	}
	memories := &cobra.Command{
		Use:   "memories",
		Short: "List saved memories, newest first",
		Run:   runMemories,
	}
	gallery := &cobra.Command{
		Use:   "gallery",
		Short: "List generated images, newest first",
		Run:   runGallery,
	}

	for _, cmd := range []*cobra.Command{history, memories, gallery} {
		cmd.Flags().IntP("limit", "l", 20, "Max results")
		cmd.Flags().Int("offset", 0, "Skip this many records")
		RootCmd.AddCommand(cmd)
	}
}

func pageFlags(cmd *cobra.Command) store.Page {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return store.Page{Limit: limit, Offset: offset}
}

func runHistory(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	messages, err := s.RecentMessages(cmd.Context(), pageFlags(cmd))
	if err != nil {
		exitErr("history", err)
	}
	printJSON(cmd, messages)
}

func runMemories(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	memories, err := s.RecentMemories(cmd.Context(), pageFlags(cmd))
	if err != nil {
		exitErr("memories", err)
	}
	printJSON(cmd, memories)
}

func runGallery(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	items, err := s.RecentGallery(cmd.Context(), pageFlags(cmd))
	if err != nil {
		exitErr("gallery", err)
	}
	printJSON(cmd, items)
}

// printJSON writes v indented. Nil slices print as [].
func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	if string(b) == "null" {
		b = []byte("[]")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
