package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var manPageDir string

var manPageCmd = &cobra.Command{
	Use:   "man-page",
	Short: "Generate man page",
	Long: `Print the qvm(1) man page to stdout, or write one page per command
into --dir.`,
	Example: `  qvm man-page > qvm.1
  qvm man-page --dir /usr/local/share/man/man1`,
	Args: cobra.NoArgs,
	RunE: runManPage,
}

func init() {
	manPageCmd.Flags().StringVar(&manPageDir, "dir", "", "write a man page per command into this directory")
}

func manHeader() *doc.GenManHeader {
	return &doc.GenManHeader{
		Title:   "QVM",
		Section: "1",
		Source:  "qvm " + version,
		Manual:  "qvm manual",
	}
}

func runManPage(cmd *cobra.Command, args []string) error {
	root := cmd.Root()
	root.DisableAutoGenTag = true

	if manPageDir != "" {
		if err := os.MkdirAll(manPageDir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", manPageDir, err)
		}
		if err := doc.GenManTree(root, manHeader(), manPageDir); err != nil {
			return fmt.Errorf("failed to generate man pages: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Man pages written to %s\n", manPageDir)
		return nil
	}

	if err := doc.GenMan(root, manHeader(), cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to generate man page: %w", err)
	}
	return nil
}
