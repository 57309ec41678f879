package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tnk4on/qvm/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage qvm configuration",
	Long:  `View and modify the defaults qvm applies to new VMs.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the current configuration.

Configuration is loaded from (in order of priority):
  1. /usr/share/qvm/config.yaml (system default)
  2. /etc/qvm/config.yaml (system admin)
  3. ~/.config/qvm/config.yaml (user)
  4. Environment variables (QVM_*)
  5. Command-line flags

--config or QVM_CONFIG replaces steps 1-3 with the given file.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default user configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file in default editor",
	Args:  cobra.NoArgs,
	RunE:  runConfigEdit,
}

var (
	configEditQuiet bool
	configInitForce bool
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEditCmd)

	configEditCmd.Flags().BoolVarP(&configEditQuiet, "quiet", "q", false, "Suppress output")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c := getConfig()

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := config.UserConfigPath()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(cmd.ErrOrStderr(), "(file does not exist)")
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.UserConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path, err := config.UserConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration file does not exist. Run 'qvm config init' first.")
		return nil
	}

	editor, err := findEditor()
	if err != nil {
		return fmt.Errorf("failed to find editor: %w\nSet EDITOR or VISUAL environment variable, or install nano, vim, or vi", err)
	}

	// EDITOR may carry arguments, e.g. "code --wait"
	editorParts := strings.Fields(editor)
	editorArgs := append(editorParts[1:], path)

	if !configEditQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Opening %s with %s...\n", path, editor)
	}

	c := exec.CommandContext(cmd.Context(), editorParts[0], editorArgs...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	edited, err := config.Load(path)
	if err == nil {
		err = edited.Validate()
	}
	if err != nil {
		return fmt.Errorf("edited configuration is invalid: %w", err)
	}
	return nil
}

// findEditor checks EDITOR, then VISUAL, then falls back to nano, vim and vi.
func findEditor() (string, error) {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if editor := os.Getenv(env); editor != "" {
			if _, err := exec.LookPath(strings.Fields(editor)[0]); err == nil {
				return editor, nil
			}
		}
	}

	for _, editor := range []string{"nano", "vim", "vi"} {
		if path, err := exec.LookPath(editor); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no editor found")
}
