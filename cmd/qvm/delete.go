package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a VM and its associated files",
	Long: `Delete a stopped VM and everything in its directory, including the disk
image and the UEFI variable store.

A running VM is never deleted. Unless --force is given, the files about to be
removed are listed and confirmation is requested.`,
	Example: `  qvm delete demo
  qvm delete demo --force`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeVMNames,
	RunE:              runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	m, err := newManager(cmd)
	if err != nil {
		return err
	}

	deleted, err := m.Delete(cmd.Context(), name, deleteForce)
	if err != nil {
		return err
	}
	if deleted {
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully deleted VM '%s'\n", name)
	}
	return nil
}
