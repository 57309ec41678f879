package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnk4on/qvm/internal/output"
	"github.com/tnk4on/qvm/internal/vm"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:     "show <name>",
	Aliases: []string{"inspect"},
	Short:   "Show a VM's descriptor",
	Long: `Print the descriptor of a VM.

The json output is identical in shape to the vm.json file; table prints a
short human-readable summary with all paths resolved.`,
	Example: `  qvm show demo
  qvm show demo -o yaml`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeVMNames,
	RunE:              runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "json", "output format (json|yaml|table)")
	_ = showCmd.RegisterFlagCompletionFunc("output", cobra.FixedCompletions([]string{"json", "yaml", "table"}, cobra.ShellCompDirectiveNoFileComp))
}

func runShow(cmd *cobra.Command, args []string) error {
	format := showOutput
	if jsonOut {
		format = string(output.FormatJSON)
	}
	if err := output.ValidateFormat(format); err != nil {
		return err
	}

	m, err := newManager(cmd)
	if err != nil {
		return err
	}
	d, err := m.Describe(args[0])
	if err != nil {
		return err
	}
	return printFormatted(cmd, format, d)
}

func printFormatted(cmd *cobra.Command, format string, d *vm.Descriptor) error {
	f, err := output.NewFormatter(output.Options{Format: output.Format(format)})
	if err != nil {
		return err
	}
	out, err := f.FormatVM(d)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
