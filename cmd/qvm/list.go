package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnk4on/qvm/internal/output"
)

var (
	listOutput    string
	listNoHeaders bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List VMs",
	Long:    `List every VM under the storage root with its state and main settings.`,
	Example: `  qvm list
  qvm list -o yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "output format (table|json|yaml)")
	listCmd.Flags().BoolVar(&listNoHeaders, "no-headers", false, "omit the table header")
	_ = listCmd.RegisterFlagCompletionFunc("output", cobra.FixedCompletions([]string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp))
}

func runList(cmd *cobra.Command, args []string) error {
	format := listOutput
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
	vms, err := m.List()
	if err != nil {
		return err
	}

	f, err := output.NewFormatter(output.Options{Format: output.Format(format), NoHeaders: listNoHeaders})
	if err != nil {
		return err
	}
	out, err := f.FormatVMList(vms)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
