package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"academy/contentsync/internal/gitrepo"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <manifest>",
	Short: "List the commits that recorded ids in a manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of commits, 0 for all")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	commits, err := gitrepo.New(cfg.GitAuthor, cfg.GitEmail).History(path, historyLimit)
	if err != nil {
		return fmt.Errorf("read history of %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if len(commits) == 0 {
		fmt.Fprintln(out, "No commits")
		return nil
	}
	for _, c := range commits {
		subject, _, _ := strings.Cut(c.Message, "\n")
		fmt.Fprintf(out, "%s %s %s %s\n", c.Hash[:10], c.CreatedAt.UTC().Format(time.RFC3339), c.Author, subject)
	}
	return nil
}
