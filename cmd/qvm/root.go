package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tnk4on/qvm/internal/config"
	"github.com/tnk4on/qvm/internal/vm"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "qvm",
	Short: "QEMU VM manager",
	Long: `qvm manages lightweight QEMU virtual machine definitions.

Each VM lives in <storage>/<name>.qvm/ and is described by a vm.json
descriptor holding its hardware, firmware, network and display settings,
plus an optional qcow2 disk image. qvm creates, inspects, updates and
deletes these definitions; a separate launcher consumes them.

Use --verbose to see how binaries and firmware were discovered.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func ExecuteWithContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default is ~/.config/qvm/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output (shows binary and firmware discovery)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false,
		"output in JSON format")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setDisplayCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(installFishCmd)
	rootCmd.AddCommand(manPageCmd)
}

func getConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

// newManager builds the VM manager for the configured storage root.
// Tests replace it to inject fake host tooling.
var newManager = func(cmd *cobra.Command) (*vm.Manager, error) {
	root, err := getConfig().StorageRoot()
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Storage root: %s", root)

	m := vm.NewManager(vm.NewPaths(root))
	m.In = cmd.InOrStdin()
	m.Out = cmd.OutOrStdout()
	return m, nil
}

// completeVMNames completes the first positional argument with existing VM names.
func completeVMNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if cfg == nil {
		// PersistentPreRunE does not run for __complete
		cfg, _ = config.Load(cfgFile)
	}
	m, err := newManager(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return m.Names(), cobra.ShellCompDirectiveNoFileComp
}
