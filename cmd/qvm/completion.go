package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	completionDescription = `Generate shell autocompletions for qvm.

Valid arguments are bash, zsh, fish, and powershell. VM names are completed
from the configured storage root.

To load completions:

Bash:
  $ source <(qvm completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ qvm completion bash > /etc/bash_completion.d/qvm
  # macOS:
  $ qvm completion bash > $(brew --prefix)/etc/bash_completion.d/qvm

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ qvm completion zsh > "${fpath[1]}/_qvm"

fish:
  $ qvm completion fish | source

  # To load completions for each session, execute once:
  $ qvm install-fish

PowerShell:
  PS> qvm completion powershell | Out-String | Invoke-Expression`
)

var (
	completionFile   string
	completionNoDesc bool
	completionShells = []string{"bash", "zsh", "fish", "powershell"}
	completionCmd    = &cobra.Command{
		Use:       fmt.Sprintf("completion [options] {%s}", strings.Join(completionShells, "|")),
		Short:     "Generate shell autocompletions",
		Long:      completionDescription,
		ValidArgs: completionShells,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE:      completionRun,
		Example: `  qvm completion bash
  qvm completion zsh -f _qvm
  qvm completion fish --no-desc`,
	}
)

var installFishCmd = &cobra.Command{
	Use:   "install-fish",
	Short: "Install fish shell completions",
	Long: `Write fish completions to $XDG_CONFIG_HOME/fish/completions/qvm.fish
(~/.config/fish/completions/qvm.fish when XDG_CONFIG_HOME is unset).`,
	Args: cobra.NoArgs,
	RunE: runInstallFish,
}

func init() {
	flags := completionCmd.Flags()
	flags.StringVarP(&completionFile, "file", "f", "",
		"Output the completion to file rather than stdout")
	flags.BoolVar(&completionNoDesc, "no-desc", false,
		"Don't include descriptions in the completion output")
}

func completionRun(cmd *cobra.Command, args []string) error {
	var w io.Writer = cmd.OutOrStdout()

	if completionFile != "" {
		f, err := os.Create(completionFile)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", completionFile, err)
		}
		defer f.Close()
		w = f
	}

	shell := args[0]
	if err := genCompletion(cmd.Root(), shell, w, !completionNoDesc); err != nil {
		return err
	}

	if completionFile != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Completion script written to %s\n", completionFile)
	}
	return nil
}

func genCompletion(root *cobra.Command, shell string, w io.Writer, withDesc bool) error {
	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletionV2(w, withDesc)
	case "zsh":
		if withDesc {
			err = root.GenZshCompletion(w)
		} else {
			err = root.GenZshCompletionNoDesc(w)
		}
	case "fish":
		err = root.GenFishCompletion(w, withDesc)
	case "powershell":
		if withDesc {
			err = root.GenPowerShellCompletionWithDesc(w)
		} else {
			err = root.GenPowerShellCompletion(w)
		}
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s completion: %w", shell, err)
	}
	return nil
}

// fishCompletionPath returns where install-fish writes its script.
func fishCompletionPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not find home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "fish", "completions", "qvm.fish"), nil
}

func runInstallFish(cmd *cobra.Command, args []string) error {
	path, err := fishCompletionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	if err := genCompletion(cmd.Root(), "fish", f, true); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Fish completions installed to: %s\n", path)
	return nil
}
